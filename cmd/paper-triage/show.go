package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-triage/internal/store"
	"github.com/pdiddy/paper-triage/pkg/types"
)

var showCmd = &cobra.Command{
	Use:   "show ID...",
	Short: "Print stored papers",
	Long: `Show prints the stored record of each paper, including its per-stage
statuses and every enrichment field. Output is YAML unless --json is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().Bool("json", false, "output as JSON")
	showCmd.Flags().String("db", "", "sqlite database path (overrides store.path)")

	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, ids []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	ctx := cmd.Context()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	found, err := st.LoadMany(ctx, ids)
	if err != nil {
		return err
	}

	var papers []*types.Paper
	for _, id := range ids {
		p, ok := found[id]
		if !ok {
			logger.Warn().Str("paper_id", id).Msg("paper not found")
			continue
		}
		if !slices.Contains(papers, p) {
			papers = append(papers, p)
		}
	}
	if len(papers) == 0 {
		return fmt.Errorf("none of the %d paper(s) are stored", len(ids))
	}

	return writePapers(cmd.OutOrStdout(), papers, asJSON)
}

func writePapers(w io.Writer, papers []*types.Paper, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(papers)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(papers)
}
