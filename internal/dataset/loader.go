package dataset

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/shariah-screen/internal/fetcher"
	"github.com/sells-group/shariah-screen/internal/normalize"
	"github.com/sells-group/shariah-screen/internal/resilience"
	"github.com/sells-group/shariah-screen/internal/store"
)

// FileLoader loads a dataset from a CSV, XLSX, JSON or zipped export.
func FileLoader(path string, opts fetcher.Options, n *normalize.Normalizer) Loader {
	return func(ctx context.Context) (*Dataset, error) {
		in, errs := fetcher.Stream(ctx, path, opts)
		return Load(ctx, in, errs, n)
	}
}

// StoreOpener opens a document store for one load.
type StoreOpener func(ctx context.Context) (store.Store, error)

// StoreLoader loads a dataset from a document table. The store is opened
// for the duration of the load and closed afterwards.
func StoreLoader(open StoreOpener, n *normalize.Normalizer) Loader {
	return func(ctx context.Context) (*Dataset, error) {
		st, err := open(ctx)
		if err != nil {
			return nil, err
		}
		defer st.Close() //nolint:errcheck

		docs, err := st.Documents(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "dataset: read store")
		}
		return Build(docs, n), nil
	}
}

// WithRetry retries load on transient errors per cfg. Each attempt is a
// complete load, so a partially read store is never used.
func WithRetry(load Loader, cfg resilience.RetryConfig) Loader {
	return func(ctx context.Context) (*Dataset, error) {
		return resilience.DoVal[*Dataset](ctx, cfg, load)
	}
}
