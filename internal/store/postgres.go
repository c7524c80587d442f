// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pdiddy/paper-triage/pkg/types"
)

// Pool is the subset of *pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Postgres is a Store backed by PostgreSQL.
type Postgres struct {
	db Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres wraps an existing pool. It does not create the schema.
func NewPostgres(db Pool) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres connects to dsn and creates the schema if needed.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	s := NewPostgres(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables if they do not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			status_metadata TEXT NOT NULL DEFAULT 'pending',
			status_content TEXT NOT NULL DEFAULT 'pending',
			status_embedding TEXT NOT NULL DEFAULT 'pending',
			status_validation TEXT NOT NULL DEFAULT 'pending',
			status_scoring TEXT NOT NULL DEFAULT 'pending',
			status_reputation TEXT NOT NULL DEFAULT 'pending',
			recommendation TEXT NOT NULL DEFAULT '',
			last_generated TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ,
			data JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_last_generated ON papers(last_generated)`,
		`CREATE TABLE IF NOT EXISTS topic_embeddings (
			topic TEXT NOT NULL,
			model TEXT NOT NULL,
			vector JSONB NOT NULL,
			PRIMARY KEY (topic, model)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// Close releases the pool.
func (s *Postgres) Close() error {
	s.db.Close()
	return nil
}

// LoadMany returns the stored papers among ids.
func (s *Postgres) LoadMany(ctx context.Context, ids []string) (map[string]*types.Paper, error) {
	out := make(map[string]*types.Paper, len(ids))
	for _, chunk := range chunks(ids, loadChunk) {
		query, args, err := selectPapers(sq.Dollar, chunk)
		if err != nil {
			return nil, err
		}
		rows, err := s.db.Query(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("querying papers: %w", err)
		}
		for rows.Next() {
			var data []byte
			if err := rows.Scan(&data); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning paper: %w", err)
			}
			p, err := decodePaper(data)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[p.ID] = p
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterating papers: %w", err)
		}
	}
	return out, nil
}

// SaveMany upserts every paper in one transaction.
func (s *Postgres) SaveMany(ctx context.Context, papers map[string]*types.Paper) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, id := range sortedIDs(papers) {
		query, args, err := upsertPaper(sq.Dollar, papers[id])
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("upserting paper %s: %w", id, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing papers: %w", err)
	}
	return nil
}

// DeleteStale removes papers last generated before cutoff, except keep.
func (s *Postgres) DeleteStale(ctx context.Context, cutoff string, keep []string) (int64, error) {
	query, args, err := deleteStale(sq.Dollar, cutoff, keep)
	if err != nil {
		return 0, err
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting stale papers: %w", err)
	}
	return tag.RowsAffected(), nil
}

// TopicEmbedding returns the cached vector for topic under model.
func (s *Postgres) TopicEmbedding(ctx context.Context, topic, model string) ([]float64, bool, error) {
	query, args, err := selectTopic(sq.Dollar, topic, model)
	if err != nil {
		return nil, false, err
	}
	var data []byte
	err = s.db.QueryRow(ctx, query, args...).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying topic embedding: %w", err)
	}
	var vec []float64
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false, fmt.Errorf("decoding topic embedding: %w", err)
	}
	return vec, true, nil
}

// SaveTopicEmbedding caches a topic vector.
func (s *Postgres) SaveTopicEmbedding(ctx context.Context, topic, model string, vec []float64) error {
	query, args, err := upsertTopic(sq.Dollar, topic, model, vec)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("saving topic embedding: %w", err)
	}
	return nil
}
