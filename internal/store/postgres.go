package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const kvSchema = `
	CREATE TABLE IF NOT EXISTS funcdeck_kv (
		bucket     TEXT        NOT NULL,
		key        TEXT        NOT NULL,
		value      JSONB       NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (bucket, key)
	)
`

// Postgres is a Store backed by a single key-value table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and ensures the kv table exists.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	config.MaxConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, kvSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	log.Info().Str("host", config.ConnConfig.Host).Msg("connected to database")
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM funcdeck_kv WHERE bucket = $1 AND key = $2`,
		bucket, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", bucket, key, err)
	}
	return value, nil
}

func (p *Postgres) Put(ctx context.Context, bucket, key string, value []byte) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO funcdeck_kv (bucket, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (bucket, key) DO UPDATE SET value = $3, updated_at = now()`,
		bucket, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, bucket, key string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM funcdeck_kv WHERE bucket = $1 AND key = $2`,
		bucket, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, bucket string) (map[string][]byte, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT key, value FROM funcdeck_kv WHERE bucket = $1`,
		bucket,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", bucket, err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", bucket, err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

func (p *Postgres) Close() {
	p.pool.Close()
}
