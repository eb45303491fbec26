package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/shariah-screen/internal/fields"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune   // default ','
	Charset    string // source encoding; default UTF-8
	Comment    rune   // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// decodeReader strips a leading byte order mark and converts the input to
// UTF-8.
func decodeReader(r io.Reader, charset string) (io.Reader, error) {
	if charset == "" || strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "utf8") {
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: unsupported charset %q", charset)
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

// StreamCSV reads a CSV file and sends rows to a channel.
// Caller must consume the returned row channel. Errors are sent on the error channel.
// Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		decoded, err := decodeReader(r, opts.Charset)
		if err != nil {
			errCh <- err
			return
		}

		reader := csv.NewReader(decoded)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // exports are ragged

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// StreamCSVRecords streams rows bound to the header in the first row.
func StreamCSVRecords(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan fields.Source, <-chan error) {
	rows, errs := StreamCSV(ctx, r, opts)
	return bindHeader(ctx, rows, errs)
}

// bindHeader turns a raw row stream into records keyed by the first row.
// Blank rows are skipped.
func bindHeader(ctx context.Context, rows <-chan []string, errs <-chan error) (<-chan fields.Source, <-chan error) {
	outCh := make(chan fields.Source, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		var header *fields.Header
		for row := range rows {
			if header == nil {
				header = fields.NewHeader(row)
				continue
			}
			if blank(row) {
				continue
			}
			select {
			case outCh <- header.Row(row):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "fetcher: context cancelled")
				return
			}
		}
		for err := range errs {
			if err != nil {
				errCh <- err
				return
			}
		}
	}()

	return outCh, errCh
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
