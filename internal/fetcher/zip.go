package fetcher

import (
	"archive/zip"
	"io"

	"github.com/rotisserie/eris"
)

// zipEntry closes both the entry and its archive.
type zipEntry struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (z *zipEntry) Close() error {
	err := z.ReadCloser.Close()
	if cerr := z.archive.Close(); err == nil {
		err = cerr
	}
	return err
}

// OpenZIPSingle opens the single file in a ZIP archive without extracting
// it to disk. It returns the entry reader and the entry name.
func OpenZIPSingle(zipPath string) (io.ReadCloser, string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, "", eris.Wrap(err, "zip: open archive")
	}

	// Filter to only files (skip directories)
	var files []*zip.File
	for _, f := range r.File {
		if !f.FileInfo().IsDir() {
			files = append(files, f)
		}
	}

	if len(files) != 1 {
		r.Close() //nolint:errcheck
		return nil, "", eris.Errorf("zip: expected exactly 1 file, got %d", len(files))
	}

	rc, err := files[0].Open()
	if err != nil {
		r.Close() //nolint:errcheck
		return nil, "", eris.Wrap(err, "zip: open entry")
	}
	return &zipEntry{ReadCloser: rc, archive: r}, files[0].Name, nil
}
