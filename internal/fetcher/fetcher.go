// Package fetcher streams raw screening records out of CSV, XLSX, JSON and
// zipped exports.
package fetcher

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/shariah-screen/internal/fields"
)

// Format identifies a dataset file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// DetectFormat infers the format from a file name. Zipped files are
// detected by the name of the entry inside the archive.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", eris.Errorf("fetcher: cannot detect format of %q", name)
}

// Options configures Stream.
type Options struct {
	Format    Format // empty means detect from the file name
	Delimiter rune   // CSV only; default ','
	Charset   string // CSV only; e.g. "windows-1252"; default UTF-8
	Sheet     string // XLSX only; default first sheet
}

// Stream opens path and streams one fields.Source per record. The first
// row of tabular files is the header. Both channels are closed when
// processing completes.
func Stream(ctx context.Context, path string, opts Options) (<-chan fields.Source, <-chan error) {
	rc, name, err := open(path)
	if err != nil {
		return failed(err)
	}

	format := opts.Format
	if format == "" {
		if format, err = DetectFormat(name); err != nil {
			rc.Close() //nolint:errcheck
			return failed(err)
		}
	}

	var (
		out  <-chan fields.Source
		errs <-chan error
	)
	switch format {
	case FormatCSV:
		out, errs = StreamCSVRecords(ctx, rc, CSVOptions{Delimiter: opts.Delimiter, Charset: opts.Charset, TrimSpace: true})
	case FormatJSON:
		out, errs = StreamJSONRecords(ctx, rc)
	case FormatXLSX:
		data, err := io.ReadAll(rc)
		rc.Close() //nolint:errcheck
		if err != nil {
			return failed(eris.Wrap(err, "fetcher: read xlsx"))
		}
		return StreamXLSXRecords(ctx, data, XLSXOptions{SheetName: opts.Sheet})
	default:
		rc.Close() //nolint:errcheck
		return failed(eris.Errorf("fetcher: unsupported format %q", format))
	}
	return closeAfter(rc, out, errs)
}

// open returns a reader for path and the name used for format detection.
// A .zip archive must hold exactly one data file.
func open(path string) (io.ReadCloser, string, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return OpenZIPSingle(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", eris.Wrapf(err, "fetcher: open %s", path)
	}
	return f, path, nil
}

func failed(err error) (<-chan fields.Source, <-chan error) {
	outCh := make(chan fields.Source)
	errCh := make(chan error, 1)
	errCh <- err
	close(outCh)
	close(errCh)
	return outCh, errCh
}

// closeAfter forwards records and errors, closing c once the producer is
// done.
func closeAfter(c io.Closer, in <-chan fields.Source, errs <-chan error) (<-chan fields.Source, <-chan error) {
	outCh := make(chan fields.Source, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(outCh)
		defer c.Close() //nolint:errcheck

		for rec := range in {
			outCh <- rec
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

// Collect drains a record stream into a slice.
func Collect(in <-chan fields.Source, errs <-chan error) ([]fields.Source, error) {
	var out []fields.Source
	for rec := range in {
		out = append(out, rec)
	}
	for err := range errs {
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
