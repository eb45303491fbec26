package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/shariah-screen/internal/fields"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn, table string) (*SQLiteStore, error) {
	table, err := validTable(table)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, table: table}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS %[1]s (
	upsert_key TEXT PRIMARY KEY,
	ticker     TEXT NOT NULL,
	document   TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_%[2]s_ticker ON %[1]s(ticker);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(sqliteMigration, s.table, indexSuffix(s.table)))
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Documents(ctx context.Context) ([]fields.Source, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT upsert_key, document FROM %s ORDER BY upsert_key`, s.table))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query documents")
	}
	defer rows.Close() //nolint:errcheck

	var docs []fields.Source
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		doc, err := decodeDocument([]byte(raw))
		if err != nil {
			zap.L().Warn("sqlite: skipping undecodable document", zap.String("upsert_key", key), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: iterate documents")
}
