// Package store persists sessions, transcripts, and usage in PostgreSQL.
package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/fk219/webbot-voice/pkg/live"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// FreeTierMonthlyTokens is the monthly allowance for free-tier users.
const FreeTierMonthlyTokens = 50000

// Compile-time interface checks: the store plugs straight into a live
// session as its persistence collaborators.
var (
	_ live.TranscriptSink = (*Store)(nil)
	_ live.UsageRecorder  = (*Store)(nil)
)

// Store is the PostgreSQL-backed persistence layer. All operations are safe
// for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database at dsn and runs pending migrations.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return goose.UpContext(ctx, db, "migrations")
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// NewSession describes a session row to create.
type NewSession struct {
	UserID    string
	ProjectID string
	AgentName string
	Voice     string
}

// CreateSession inserts a session row and returns its id.
func (s *Store) CreateSession(ctx context.Context, sess NewSession) (string, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_sessions (id, user_id, project_id, agent_name, voice, started_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		id, sess.UserID, sess.ProjectID, sess.AgentName, sess.Voice)
	if err != nil {
		return "", fmt.Errorf("store: create session: %w", err)
	}
	return id, nil
}

// SaveTranscript appends one utterance to a session's transcript.
func (s *Store) SaveTranscript(ctx context.Context, sessionID string, role live.Role, text string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		uuid.NewString(), sessionID, string(role), text)
	if err != nil {
		return fmt.Errorf("store: save transcript: %w", err)
	}
	return nil
}

// RecordUsage writes one usage row for a finished session or preview.
func (s *Store) RecordUsage(ctx context.Context, rec live.UsageRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO usage_logs (id, user_id, project_id, session_id, tokens_used, duration_ms, is_test, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		uuid.NewString(), rec.UserID, rec.ProjectID, rec.SessionID,
		rec.EstimatedTokens, rec.Duration.Milliseconds(), rec.IsTest)
	if err != nil {
		return fmt.Errorf("store: record usage: %w", err)
	}
	return nil
}

// UsageStatus is the result of a pre-flight usage check.
type UsageStatus struct {
	Tier       string
	TokensUsed int64
	Limit      int64
	Allowed    bool
}

// CheckUsageAvailability reports whether userID may start a new session.
// Free-tier users are capped at FreeTierMonthlyTokens per calendar month;
// other tiers are unlimited. Test sessions never count against the cap.
func (s *Store) CheckUsageAvailability(ctx context.Context, userID string) (UsageStatus, error) {
	var tier string
	err := s.pool.QueryRow(ctx,
		`SELECT subscription_tier FROM profiles WHERE id = $1`, userID).Scan(&tier)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		tier = "free"
	case err != nil:
		return UsageStatus{}, fmt.Errorf("store: load profile: %w", err)
	}

	if tier != "free" {
		return UsageStatus{Tier: tier, Allowed: true}, nil
	}

	monthStart := time.Now().UTC().Truncate(24 * time.Hour)
	monthStart = time.Date(monthStart.Year(), monthStart.Month(), 1, 0, 0, 0, 0, time.UTC)

	var used int64
	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(tokens_used), 0)
		FROM usage_logs
		WHERE user_id = $1 AND NOT is_test AND created_at >= $2`,
		userID, monthStart).Scan(&used)
	if err != nil {
		return UsageStatus{}, fmt.Errorf("store: sum usage: %w", err)
	}

	return UsageStatus{
		Tier:       tier,
		TokensUsed: used,
		Limit:      FreeTierMonthlyTokens,
		Allowed:    used < FreeTierMonthlyTokens,
	}, nil
}
