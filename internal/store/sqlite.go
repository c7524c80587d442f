// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-triage/pkg/types"
)

// SQLite is a Store backed by a local SQLite file.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens or creates the database at path and creates the schema
// if it does not exist.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer at a time; WAL lets readers proceed.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) createSchema(ctx context.Context) error {
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
			updated_at DATETIME,
			data TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_last_generated ON papers(last_generated)`,
		`CREATE TABLE IF NOT EXISTS topic_embeddings (
			topic TEXT NOT NULL,
			model TEXT NOT NULL,
			vector TEXT NOT NULL,
			PRIMARY KEY (topic, model)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// LoadMany returns the stored papers among ids.
func (s *SQLite) LoadMany(ctx context.Context, ids []string) (map[string]*types.Paper, error) {
	out := make(map[string]*types.Paper, len(ids))
	for _, chunk := range chunks(ids, loadChunk) {
		query, args, err := selectPapers(sq.Question, chunk)
		if err != nil {
			return nil, err
		}
		rows, err := s.db.QueryContext(ctx, query, args...)
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
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterating papers: %w", err)
		}
		rows.Close()
	}
	return out, nil
}

// SaveMany upserts every paper in one transaction.
func (s *SQLite) SaveMany(ctx context.Context, papers map[string]*types.Paper) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range sortedIDs(papers) {
		query, args, err := upsertPaper(sq.Question, papers[id])
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upserting paper %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// DeleteStale removes papers last generated before cutoff, except keep.
func (s *SQLite) DeleteStale(ctx context.Context, cutoff string, keep []string) (int64, error) {
	query, args, err := deleteStale(sq.Question, cutoff, keep)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting stale papers: %w", err)
	}
	return res.RowsAffected()
}

// TopicEmbedding returns the cached vector for topic under model.
func (s *SQLite) TopicEmbedding(ctx context.Context, topic, model string) ([]float64, bool, error) {
	query, args, err := selectTopic(sq.Question, topic, model)
	if err != nil {
		return nil, false, err
	}
	var data []byte
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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
func (s *SQLite) SaveTopicEmbedding(ctx context.Context, topic, model string, vec []float64) error {
	query, args, err := upsertTopic(sq.Question, topic, model, vec)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving topic embedding: %w", err)
	}
	return nil
}
