package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
)

// Postgres wraps access to the optional closed-ticket archive database.
// When no DSN is configured the bot runs without an archive.
type Postgres struct {
	Pool *pgxpool.Pool
}

// NewPostgres establishes a connection pool when DSN is provided.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		logger.Warn("POSTGRES_DSN not provided; closed-ticket archive disabled")
		return &Postgres{Pool: nil}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("connected to postgres")
	return &Postgres{Pool: pool}, nil
}

// EnsureSchema creates the closed-ticket archive table when missing.
func (p *Postgres) EnsureSchema(ctx context.Context, logger *zap.Logger) error {
	if p == nil || p.Pool == nil {
		return nil
	}
	const ddl = `
        CREATE TABLE IF NOT EXISTS closed_tickets (
            id              BIGSERIAL PRIMARY KEY,
            ticket_id       TEXT        NOT NULL,
            channel_id      TEXT        NOT NULL,
            owner_user_id   TEXT        NOT NULL,
            ticket_type     TEXT        NOT NULL DEFAULT '',
            created_at      TIMESTAMPTZ NOT NULL,
            closed_at       TIMESTAMPTZ NOT NULL,
            closed_by       TEXT        NOT NULL DEFAULT '',
            close_reason    TEXT        NOT NULL DEFAULT '',
            message_count   INTEGER     NOT NULL DEFAULT 0,
            transcript_path TEXT
        );
        CREATE INDEX IF NOT EXISTS closed_tickets_closed_at_idx ON closed_tickets (closed_at DESC);`
	if _, err := p.Pool.Exec(ctx, ddl); err != nil {
		return err
	}
	logger.Info("closed-ticket archive schema ready")
	return nil
}

// Ping verifies database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return errors.New("postgres not configured")
	}
	return p.Pool.Ping(ctx)
}

// Close releases pool resources.
func (p *Postgres) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

// PoolHandle returns the underlying pgx pool, nil when unconfigured.
func (p *Postgres) PoolHandle() *pgxpool.Pool {
	if p == nil {
		return nil
	}
	return p.Pool
}
