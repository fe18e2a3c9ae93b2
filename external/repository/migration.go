package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS guilds (
		guild_id TEXT PRIMARY KEY,
		guild_name TEXT NOT NULL DEFAULT '',
		total_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		conversations_count INTEGER NOT NULL DEFAULT 0,
		last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS active_conversations (
		channel_id TEXT PRIMARY KEY,
		guild_id TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		last_event_at TIMESTAMPTZ NOT NULL,
		last_speaker TEXT NOT NULL,
		participants TEXT[] NOT NULL DEFAULT '{}',
		score DOUBLE PRECISION NOT NULL DEFAULT 0,
		burst_count INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_active_conversations_guild ON active_conversations (guild_id)`,
	`CREATE TABLE IF NOT EXISTS conversation_history (
		id BIGSERIAL PRIMARY KEY,
		guild_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		participants_count INTEGER NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ NOT NULL,
		duration_seconds BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversation_history_guild ON conversation_history (guild_id)`,
	`CREATE TABLE IF NOT EXISTS registrations (
		id TEXT PRIMARY KEY,
		guild_id TEXT NOT NULL,
		guild_name TEXT NOT NULL DEFAULT '',
		invite_url TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		channel_name TEXT NOT NULL DEFAULT '',
		token TEXT NOT NULL UNIQUE,
		created_by TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending'
	)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
