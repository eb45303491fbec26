package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/shariah-screen/internal/fields"
)

// StreamJSONRecords streams the objects of a top-level JSON array as
// document records. Numbers keep their source text and null elements are
// skipped. Empty input yields no records.
func StreamJSONRecords(ctx context.Context, r io.Reader) (<-chan fields.Source, <-chan error) {
	outCh := make(chan fields.Source, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		dec := json.NewDecoder(r)
		dec.UseNumber()

		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			errCh <- eris.Wrap(err, "json: read opening token")
			return
		}
		if d, ok := tok.(json.Delim); !ok || d != '[' {
			errCh <- eris.Errorf("json: expected '[', got %v", tok)
			return
		}

		for i := 0; dec.More(); i++ {
			var doc fields.Document
			if err := dec.Decode(&doc); err != nil {
				errCh <- eris.Wrapf(err, "json: decode record %d", i)
				return
			}
			if doc == nil {
				continue
			}
			select {
			case outCh <- doc:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}

		if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
			errCh <- eris.Wrap(err, "json: read closing token")
		}
	}()

	return outCh, errCh
}
