package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"

	"github.com/agentoven/promptplane/pkg/models"
)

// PgxDB is the subset of a pgx pool the configuration store needs.
type PgxDB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// OpenPostgres connects a pool, retrying while the database comes up.
func OpenPostgres(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	backoff := retry.WithMaxRetries(5, retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("Postgres not reachable yet, retrying")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

var configColumns = []string{
	"id",
	"interaction_code",
	"template_topic",
	"template_version",
	"model_code",
	"tier",
	"temperature",
	"max_tokens",
	"top_p",
	"frequency_penalty",
	"presence_penalty",
	"is_active",
	"effective_from",
	"effective_until",
	"created_at",
	"updated_at",
	"created_by",
	"updated_by",
}

func selectConfigBuilder() squirrel.SelectBuilder {
	return squirrel.
		Select(configColumns...).
		From("llm_configurations").
		PlaceholderFormat(squirrel.Dollar)
}

// PostgresConfigStore implements ConfigStore on PostgreSQL.
type PostgresConfigStore struct {
	db PgxDB
}

// NewPostgresConfigStore wraps a pgx pool (or a pgxmock pool in tests).
func NewPostgresConfigStore(db PgxDB) *PostgresConfigStore {
	return &PostgresConfigStore{db: db}
}

func (s *PostgresConfigStore) GetConfig(ctx context.Context, id string) (*models.LLMConfiguration, error) {
	query, args, err := selectConfigBuilder().Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build config select: %w", err)
	}
	var cfg models.LLMConfiguration
	if err := pgxscan.Get(ctx, s.db, &cfg, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, &ErrNotFound{Entity: "configuration", Key: id}
		}
		return nil, fmt.Errorf("get configuration %s: %w", id, err)
	}
	return &cfg, nil
}

func (s *PostgresConfigStore) ListConfigsByInteraction(ctx context.Context, interactionCode string) ([]models.LLMConfiguration, error) {
	return s.ListConfigs(ctx, ConfigFilter{InteractionCode: interactionCode})
}

func (s *PostgresConfigStore) ListConfigs(ctx context.Context, filter ConfigFilter) ([]models.LLMConfiguration, error) {
	b := selectConfigBuilder().OrderBy("created_at ASC", "id ASC")
	if filter.InteractionCode != "" {
		b = b.Where(squirrel.Eq{"interaction_code": filter.InteractionCode})
	}
	if filter.ActiveOnly {
		b = b.Where(squirrel.Eq{"is_active": true})
	}
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		b = b.Offset(uint64(filter.Offset))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build config list: %w", err)
	}
	out := []models.LLMConfiguration{}
	if err := pgxscan.Select(ctx, s.db, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	return out, nil
}

func configValues(c *models.LLMConfiguration) []any {
	return []any{
		c.ID,
		c.InteractionCode,
		c.TemplateTopic,
		c.TemplateVersion,
		c.ModelCode,
		c.Tier,
		c.Temperature,
		c.MaxTokens,
		c.TopP,
		c.FrequencyPenalty,
		c.PresencePenalty,
		c.IsActive,
		c.EffectiveFrom,
		c.EffectiveUntil,
		c.CreatedAt,
		c.UpdatedAt,
		c.CreatedBy,
		c.UpdatedBy,
	}
}

// CreateConfig inserts cfg; an existing id is reported as ErrAlreadyExists.
func (s *PostgresConfigStore) CreateConfig(ctx context.Context, cfg *models.LLMConfiguration) error {
	query, args, err := squirrel.
		Insert("llm_configurations").
		Columns(configColumns...).
		Values(configValues(cfg)...).
		Suffix("ON CONFLICT (id) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build config insert: %w", err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert configuration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrAlreadyExists{Entity: "configuration", Key: cfg.ID}
	}
	return nil
}

// UpdateConfig replaces every mutable column of an existing row.
func (s *PostgresConfigStore) UpdateConfig(ctx context.Context, cfg *models.LLMConfiguration) error {
	query, args, err := squirrel.Update("llm_configurations").
		Set("interaction_code", cfg.InteractionCode).
		Set("template_topic", cfg.TemplateTopic).
		Set("template_version", cfg.TemplateVersion).
		Set("model_code", cfg.ModelCode).
		Set("tier", cfg.Tier).
		Set("temperature", cfg.Temperature).
		Set("max_tokens", cfg.MaxTokens).
		Set("top_p", cfg.TopP).
		Set("frequency_penalty", cfg.FrequencyPenalty).
		Set("presence_penalty", cfg.PresencePenalty).
		Set("is_active", cfg.IsActive).
		Set("effective_from", cfg.EffectiveFrom).
		Set("effective_until", cfg.EffectiveUntil).
		Set("updated_at", cfg.UpdatedAt).
		Set("updated_by", cfg.UpdatedBy).
		Where(squirrel.Eq{"id": cfg.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build config update: %w", err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update configuration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "configuration", Key: cfg.ID}
	}
	return nil
}

func (s *PostgresConfigStore) DeleteConfig(ctx context.Context, id string) error {
	query, args, err := squirrel.Delete("llm_configurations").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build config delete: %w", err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete configuration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "configuration", Key: id}
	}
	return nil
}

func (s *PostgresConfigStore) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *PostgresConfigStore) Close() error {
	s.db.Close()
	return nil
}

var _ ConfigStore = (*PostgresConfigStore)(nil)
