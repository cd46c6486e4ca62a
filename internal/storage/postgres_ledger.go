package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vishalmysore/moltbookcore/internal/core/ports"
)

// PostgresLedger persists the agent's audit trail in Postgres.
type PostgresLedger struct {
	Pool *pgxpool.Pool
}

func NewPostgresLedger(ctx context.Context, connStr string) (*PostgresLedger, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	l := &PostgresLedger{Pool: pool}
	if err := l.initSchema(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

var _ ports.Ledger = (*PostgresLedger)(nil)

func (l *PostgresLedger) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS activities (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			input TEXT,
			output TEXT,
			success BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS observations (
			id TEXT PRIMARY KEY,
			post_id TEXT,
			summary TEXT,
			created_at TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			level TEXT NOT NULL,
			message TEXT,
			created_at TIMESTAMPTZ DEFAULT now()
		)`,
	}

	for _, q := range queries {
		if _, err := l.Pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (l *PostgresLedger) TrackAction(ctx context.Context, kind, input, output string, success bool) error {
	_, err := l.Pool.Exec(ctx,
		"INSERT INTO activities (id, kind, input, output, success) VALUES ($1, $2, $3, $4, $5)",
		uuid.NewString(), kind, input, output, success)
	return err
}

func (l *PostgresLedger) TrackObservation(ctx context.Context, postID, summary string) error {
	_, err := l.Pool.Exec(ctx,
		"INSERT INTO observations (id, post_id, summary) VALUES ($1, $2, $3)",
		uuid.NewString(), postID, summary)
	return err
}

func (l *PostgresLedger) TrackLog(ctx context.Context, message string) error {
	return l.insertLog(ctx, "info", message)
}

func (l *PostgresLedger) TrackError(ctx context.Context, message string) error {
	return l.insertLog(ctx, "error", message)
}

func (l *PostgresLedger) insertLog(ctx context.Context, level, message string) error {
	_, err := l.Pool.Exec(ctx,
		"INSERT INTO audit_logs (id, level, message) VALUES ($1, $2, $3)",
		uuid.NewString(), level, message)
	return err
}
