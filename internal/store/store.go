// Package store reads raw screening documents from a database table. The
// engine never writes records; the table is populated upstream.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/sells-group/shariah-screen/internal/fields"
)

// DefaultTable is the document table read when none is configured.
const DefaultTable = "screening_records"

// Store is a read-only source of raw screening documents.
type Store interface {
	// Documents returns every document, ordered by upsert key.
	Documents(ctx context.Context) ([]fields.Source, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func validTable(name string) (string, error) {
	if name == "" {
		return DefaultTable, nil
	}
	if !tableNameRe.MatchString(name) {
		return "", eris.Errorf("store: invalid table name %q", name)
	}
	return name, nil
}

func decodeDocument(raw []byte) (fields.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc fields.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
