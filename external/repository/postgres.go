package repository

import (
	"context"
	"time"

	"github.com/foxseedlab/kaiwarank/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) GetGuild(ctx context.Context, guildID string) (*repository.GuildRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT guild_id, guild_name, total_score, conversations_count, last_updated
		 FROM guilds WHERE guild_id = $1`,
		guildID)
	var g repository.GuildRecord
	err := row.Scan(&g.GuildID, &g.GuildName, &g.TotalScore, &g.ConversationsCount, &g.LastUpdated)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

func (r *PostgresRepository) UpsertGuildName(ctx context.Context, guildID, guildName string, updatedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO guilds (guild_id, guild_name, last_updated)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (guild_id) DO UPDATE SET
		   guild_name = EXCLUDED.guild_name,
		   last_updated = EXCLUDED.last_updated`,
		guildID, guildName, updatedAt)
	return err
}

func (r *PostgresRepository) AddGuildScore(ctx context.Context, input repository.AddGuildScoreInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO guilds (guild_id, total_score, conversations_count, last_updated)
		 VALUES ($1, $2, 1, $3)
		 ON CONFLICT (guild_id) DO UPDATE SET
		   total_score = guilds.total_score + EXCLUDED.total_score,
		   conversations_count = guilds.conversations_count + 1,
		   last_updated = EXCLUDED.last_updated`,
		input.GuildID, input.Score, input.UpdatedAt)
	return err
}

func (r *PostgresRepository) ListGuilds(ctx context.Context) ([]repository.GuildRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT guild_id, guild_name, total_score, conversations_count, last_updated
		 FROM guilds ORDER BY total_score DESC, guild_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.GuildRecord
	for rows.Next() {
		var g repository.GuildRecord
		if err := rows.Scan(&g.GuildID, &g.GuildName, &g.TotalScore, &g.ConversationsCount, &g.LastUpdated); err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) GetConversation(ctx context.Context, channelID string) (*repository.ConversationState, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT channel_id, guild_id, started_at, last_event_at, last_speaker, participants, score, burst_count
		 FROM active_conversations WHERE channel_id = $1`,
		channelID)
	var s repository.ConversationState
	err := row.Scan(&s.ChannelID, &s.GuildID, &s.StartedAt, &s.LastEventAt, &s.LastSpeaker, &s.Participants, &s.Score, &s.BurstCount)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) UpsertConversation(ctx context.Context, state repository.ConversationState) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO active_conversations
		   (channel_id, guild_id, started_at, last_event_at, last_speaker, participants, score, burst_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (channel_id) DO UPDATE SET
		   guild_id = EXCLUDED.guild_id,
		   started_at = EXCLUDED.started_at,
		   last_event_at = EXCLUDED.last_event_at,
		   last_speaker = EXCLUDED.last_speaker,
		   participants = EXCLUDED.participants,
		   score = EXCLUDED.score,
		   burst_count = EXCLUDED.burst_count`,
		state.ChannelID, state.GuildID, state.StartedAt, state.LastEventAt,
		state.LastSpeaker, state.Participants, state.Score, state.BurstCount)
	return err
}

func (r *PostgresRepository) DeleteConversation(ctx context.Context, channelID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM active_conversations WHERE channel_id = $1`, channelID)
	return err
}

func (r *PostgresRepository) ListConversations(ctx context.Context) ([]repository.ConversationState, error) {
	return r.queryConversations(ctx,
		`SELECT channel_id, guild_id, started_at, last_event_at, last_speaker, participants, score, burst_count
		 FROM active_conversations`)
}

func (r *PostgresRepository) ListGuildConversations(ctx context.Context, guildID string) ([]repository.ConversationState, error) {
	return r.queryConversations(ctx,
		`SELECT channel_id, guild_id, started_at, last_event_at, last_speaker, participants, score, burst_count
		 FROM active_conversations WHERE guild_id = $1`, guildID)
}

func (r *PostgresRepository) queryConversations(ctx context.Context, sql string, args ...any) ([]repository.ConversationState, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.ConversationState
	for rows.Next() {
		var s repository.ConversationState
		if err := rows.Scan(&s.ChannelID, &s.GuildID, &s.StartedAt, &s.LastEventAt, &s.LastSpeaker, &s.Participants, &s.Score, &s.BurstCount); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) DeleteBrokenConversations(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM active_conversations WHERE guild_id IS NULL OR guild_id = ''`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) InsertHistory(ctx context.Context, input repository.InsertHistoryInput) error {
	durationSeconds := int64(input.EndedAt.Sub(input.StartedAt) / time.Second)
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversation_history
		   (guild_id, channel_id, score, participants_count, started_at, ended_at, duration_seconds)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		input.GuildID, input.ChannelID, input.Score, input.ParticipantsCount,
		input.StartedAt, input.EndedAt, durationSeconds)
	return err
}

func (r *PostgresRepository) SaveRegistration(ctx context.Context, reg repository.Registration) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO registrations
		   (id, guild_id, guild_name, invite_url, channel_id, channel_name, token, created_by, created_at, expires_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		reg.ID, reg.GuildID, reg.GuildName, reg.InviteURL, reg.ChannelID, reg.ChannelName,
		reg.Token, reg.CreatedBy, reg.CreatedAt, reg.ExpiresAt, reg.Status)
	return err
}

func (r *PostgresRepository) GetRegistrationByToken(ctx context.Context, token string) (*repository.Registration, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, guild_id, guild_name, invite_url, channel_id, channel_name, token, created_by, created_at, expires_at, status
		 FROM registrations WHERE token = $1`,
		token)
	var reg repository.Registration
	err := row.Scan(&reg.ID, &reg.GuildID, &reg.GuildName, &reg.InviteURL, &reg.ChannelID, &reg.ChannelName,
		&reg.Token, &reg.CreatedBy, &reg.CreatedAt, &reg.ExpiresAt, &reg.Status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &reg, nil
}

func (r *PostgresRepository) CompleteRegistration(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE registrations SET status = 'completed' WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) ClearAllData(ctx context.Context) error {
	for _, stmt := range []string{
		`DELETE FROM guilds`,
		`DELETE FROM active_conversations`,
		`DELETE FROM conversation_history`,
		`DELETE FROM registrations`,
	} {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
