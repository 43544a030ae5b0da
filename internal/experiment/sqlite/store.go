// Package sqlite stores experiments in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Faultbox/arcloud/internal/experiment"
	"github.com/Faultbox/arcloud/internal/logger"
)

// ErrNotFound is returned by Load for an unknown experiment ID.
var ErrNotFound = errors.New("experiment not found")

//go:embed schema.sql
var schemaSQL string

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// Summary describes a stored experiment without its records.
type Summary struct {
	ID        string
	StartedAt time.Time
	Records   int
	Duration  time.Duration
}

// Store is an experiment.Sink backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Debug("experiment database opened", zap.String("path", path))
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Store writes exp and all its records in one transaction.
// Storing an experiment ID again replaces the earlier copy.
func (s *Store) Store(ctx context.Context, exp *experiment.Experiment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM experiment_records WHERE experiment_id = ?`,
		`DELETE FROM experiments WHERE experiment_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, exp.ID); err != nil {
			return fmt.Errorf("failed to replace experiment: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO experiments (experiment_id, started_at) VALUES (?, ?)`,
		exp.ID, exp.StartedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to insert experiment: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO experiment_records (experiment_id, seq, time_ms, num_features, avg_confidence, plane_area)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range exp.Records {
		if _, err := stmt.ExecContext(ctx,
			exp.ID, i, r.Time.Milliseconds(), r.NumFeatures, float64(r.AvgConfidence), r.PlaneArea,
		); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	logger.Info("experiment stored in database",
		zap.String("id", exp.ID),
		zap.Int("records", len(exp.Records)),
	)
	return nil
}

// List returns summaries of all stored experiments, oldest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.experiment_id, e.started_at, COUNT(r.seq), COALESCE(MAX(r.time_ms), 0)
		FROM experiments e
		LEFT JOIN experiment_records r ON r.experiment_id = e.experiment_id
		GROUP BY e.experiment_id, e.started_at
		ORDER BY e.started_at, e.experiment_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum       Summary
			startedAt int64
			lastMs    int64
		)
		if err := rows.Scan(&sum.ID, &startedAt, &sum.Records, &lastMs); err != nil {
			return nil, err
		}
		sum.StartedAt = time.Unix(0, startedAt)
		sum.Duration = time.Duration(lastMs) * time.Millisecond
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Load reads a stored experiment with its records.
func (s *Store) Load(ctx context.Context, id string) (*experiment.Experiment, error) {
	var startedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT started_at FROM experiments WHERE experiment_id = ?`, id,
	).Scan(&startedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	exp := &experiment.Experiment{ID: id, StartedAt: time.Unix(0, startedAt)}

	rows, err := s.db.QueryContext(ctx, `
		SELECT time_ms, num_features, avg_confidence, plane_area
		FROM experiment_records
		WHERE experiment_id = ?
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ms   int64
			conf float64
			r    experiment.Record
		)
		if err := rows.Scan(&ms, &r.NumFeatures, &conf, &r.PlaneArea); err != nil {
			return nil, err
		}
		r.Time = time.Duration(ms) * time.Millisecond
		r.AvgConfidence = float32(conf)
		exp.Add(r)
	}
	return exp, rows.Err()
}
