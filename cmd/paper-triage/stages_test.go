// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-triage/internal/embedding"
	"github.com/pdiddy/paper-triage/pkg/types"
)

func TestParseSteps(t *testing.T) {
	tests := []struct {
		name    string
		sel     []string
		want    map[string]bool
		wantErr bool
	}{
		{name: "empty means all", sel: nil, want: map[string]bool{}},
		{name: "stages and steps", sel: []string{"metadata", " notification"}, want: map[string]bool{"metadata": true, "notification": true}},
		{name: "blank entries ignored", sel: []string{"", "scoring"}, want: map[string]bool{"scoring": true}},
		{name: "unknown", sel: []string{"metadata", "translate"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSteps(tt.sel)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func descriptorNames(cfg types.PipelineConfig, only map[string]bool) []string {
	var names []string
	for _, sd := range buildStages(cfg, nil, embedding.DefaultTopics, zerolog.Nop(), only) {
		if sd.Name != "" {
			names = append(names, sd.Name)
			continue
		}
		names = append(names, string(sd.Stage))
	}
	return names
}

func TestBuildStagesOrder(t *testing.T) {
	var cfg types.PipelineConfig
	assert.Equal(t,
		[]string{"metadata", "content", "embedding", "validation", "scoring", "reputation"},
		descriptorNames(cfg, nil))

	cfg.Retention.Enabled = true
	cfg.Notify.Enabled = true
	assert.Equal(t, stepNames(), descriptorNames(cfg, nil))
}

func TestBuildStagesFilter(t *testing.T) {
	cfg := types.PipelineConfig{}
	cfg.Notify.Enabled = true

	only, err := parseSteps([]string{"notification", "embedding"})
	require.NoError(t, err)
	assert.Equal(t, []string{"embedding", "notification"}, descriptorNames(cfg, only))
}

func TestBuildStagesMaintenanceIsNonFatal(t *testing.T) {
	cfg := types.PipelineConfig{}
	cfg.Retention.Enabled = true
	for _, sd := range buildStages(cfg, nil, embedding.DefaultTopics, zerolog.Nop(), map[string]bool{stepRetention: true}) {
		assert.True(t, sd.NonFatal)
		assert.NotNil(t, sd.Maintain)
	}
}

func TestStagesToReset(t *testing.T) {
	assert.Equal(t, []types.Stage{types.StageScoring}, stagesToReset(types.StageScoring, false))
	assert.Equal(t,
		[]types.Stage{types.StageScoring, types.StageReputation},
		stagesToReset(types.StageScoring, true))
	assert.Equal(t, types.Stages, stagesToReset(types.StageMetadata, true))
}

func TestSelectIDsRejectsBadDate(t *testing.T) {
	_, err := selectIDs(t.Context(), "2026-13-40", "")
	assert.ErrorContains(t, err, "invalid --date")
}
