package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/shariah-screen/internal/db"
	"github.com/sells-group/shariah-screen/internal/fields"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	table   string
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString, table string, poolCfg *PoolConfig) (*PostgresStore, error) {
	table, err := validTable(table)
	if err != nil {
		return nil, err
	}

	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, table: table, closeFn: pool.Close}, nil
}

// quoted returns the table as a sanitized, possibly schema-qualified
// identifier.
func (s *PostgresStore) quoted() string {
	return pgx.Identifier(strings.Split(s.table, ".")).Sanitize()
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS %[1]s (
	upsert_key TEXT PRIMARY KEY,
	ticker     TEXT NOT NULL,
	document   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_%[2]s_ticker ON %[1]s(ticker);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(postgresMigration, s.quoted(), indexSuffix(s.table)))
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Documents(ctx context.Context) ([]fields.Source, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT upsert_key, document FROM %s ORDER BY upsert_key`, s.quoted()))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query documents")
	}
	defer rows.Close()

	var docs []fields.Source
	for rows.Next() {
		var (
			key string
			raw []byte
		)
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			zap.L().Warn("postgres: skipping undecodable document", zap.String("upsert_key", key), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: iterate documents")
}

func indexSuffix(table string) string {
	return strings.ReplaceAll(table, ".", "_")
}
