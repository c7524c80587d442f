// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists papers and cached topic embeddings. One row per
// arXiv id holds the indexed status columns plus the full paper as JSON, so
// a load always returns every field the last checkpoint wrote.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"github.com/pdiddy/paper-triage/pkg/types"
)

// Store is the durable entity store.
type Store interface {
	// LoadMany returns the stored papers among ids. Unknown ids are absent
	// from the result.
	LoadMany(ctx context.Context, ids []string) (map[string]*types.Paper, error)

	// SaveMany upserts every paper in one transaction.
	SaveMany(ctx context.Context, papers map[string]*types.Paper) error

	// DeleteStale removes papers whose last_generated date is before cutoff
	// (YYYY-MM-DD) and whose id is not in keep.
	DeleteStale(ctx context.Context, cutoff string, keep []string) (int64, error)

	// TopicEmbedding returns the cached vector for topic under model.
	TopicEmbedding(ctx context.Context, topic, model string) ([]float64, bool, error)

	// SaveTopicEmbedding caches a topic vector.
	SaveTopicEmbedding(ctx context.Context, topic, model string, vec []float64) error

	Close() error
}

// ErrUnknownDriver is returned by Open for an unsupported driver.
var ErrUnknownDriver = errors.New("unknown store driver")

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg types.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return OpenSQLite(ctx, cfg.Path)
	case "postgres":
		return OpenPostgres(ctx, cfg.DSN)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownDriver, cfg.Driver)
}

const (
	papersTable = "papers"
	topicsTable = "topic_embeddings"

	// loadChunk bounds the number of ids bound into one IN clause.
	loadChunk = 500
)

var paperColumns = []string{
	"id",
	"title",
	"status_metadata",
	"status_content",
	"status_embedding",
	"status_validation",
	"status_scoring",
	"status_reputation",
	"recommendation",
	"last_generated",
	"updated_at",
	"data",
}

// upsertPaper builds the insert-or-update statement for one paper.
func upsertPaper(ph sq.PlaceholderFormat, p *types.Paper) (string, []any, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", nil, fmt.Errorf("encoding paper %s: %w", p.ID, err)
	}
	return sq.Insert(papersTable).
		Columns(paperColumns...).
		Values(
			p.ID,
			p.Title,
			string(p.StatusOf(types.StageMetadata)),
			string(p.StatusOf(types.StageContent)),
			string(p.StatusOf(types.StageEmbedding)),
			string(p.StatusOf(types.StageValidation)),
			string(p.StatusOf(types.StageScoring)),
			string(p.StatusOf(types.StageReputation)),
			p.Recommendation,
			p.LastGenerated,
			p.UpdatedAt,
			data,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			status_metadata = excluded.status_metadata,
			status_content = excluded.status_content,
			status_embedding = excluded.status_embedding,
			status_validation = excluded.status_validation,
			status_scoring = excluded.status_scoring,
			status_reputation = excluded.status_reputation,
			recommendation = excluded.recommendation,
			last_generated = excluded.last_generated,
			updated_at = excluded.updated_at,
			data = excluded.data`).
		PlaceholderFormat(ph).
		ToSql()
}

func selectPapers(ph sq.PlaceholderFormat, ids []string) (string, []any, error) {
	return sq.Select("data").
		From(papersTable).
		Where(sq.Eq{"id": ids}).
		PlaceholderFormat(ph).
		ToSql()
}

func deleteStale(ph sq.PlaceholderFormat, cutoff string, keep []string) (string, []any, error) {
	q := sq.Delete(papersTable).
		Where(sq.NotEq{"last_generated": ""}).
		Where(sq.Lt{"last_generated": cutoff})
	if len(keep) > 0 {
		q = q.Where(sq.NotEq{"id": keep})
	}
	return q.PlaceholderFormat(ph).ToSql()
}

func selectTopic(ph sq.PlaceholderFormat, topic, model string) (string, []any, error) {
	return sq.Select("vector").
		From(topicsTable).
		Where(sq.Eq{"topic": topic, "model": model}).
		PlaceholderFormat(ph).
		ToSql()
}

func upsertTopic(ph sq.PlaceholderFormat, topic, model string, vec []float64) (string, []any, error) {
	data, err := json.Marshal(vec)
	if err != nil {
		return "", nil, fmt.Errorf("encoding topic vector: %w", err)
	}
	return sq.Insert(topicsTable).
		Columns("topic", "model", "vector").
		Values(topic, model, data).
		Suffix("ON CONFLICT (topic, model) DO UPDATE SET vector = excluded.vector").
		PlaceholderFormat(ph).
		ToSql()
}

func decodePaper(data []byte) (*types.Paper, error) {
	var p types.Paper
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding paper: %w", err)
	}
	return &p, nil
}

// chunks splits ids into slices of at most n.
func chunks(ids []string, n int) [][]string {
	var out [][]string
	for len(ids) > n {
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// sortedIDs returns the map's keys in order so writes are deterministic.
func sortedIDs(papers map[string]*types.Paper) []string {
	ids := make([]string, 0, len(papers))
	for id := range papers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
