package dataset

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Loader produces a fresh Dataset.
type Loader func(ctx context.Context) (*Dataset, error)

// Repository owns the dataset lifecycle. The dataset is loaded on first
// use, or eagerly with Preload; a failed load is not cached, so the next
// call retries.
type Repository struct {
	mu   sync.Mutex
	load Loader
	ds   *Dataset
}

// NewRepository creates a Repository around load.
func NewRepository(load Loader) *Repository {
	return &Repository{load: load}
}

// NewStaticRepository wraps an already built dataset.
func NewStaticRepository(ds *Dataset) *Repository {
	return &Repository{ds: ds, load: func(context.Context) (*Dataset, error) { return ds, nil }}
}

// Get returns the dataset, loading it if necessary. Concurrent callers
// wait for a single in-flight load.
func (r *Repository) Get(ctx context.Context) (*Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ds != nil {
		return r.ds, nil
	}
	ds, err := r.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	r.ds = ds
	return ds, nil
}

// Preload loads the dataset now.
func (r *Repository) Preload(ctx context.Context) error {
	_, err := r.Get(ctx)
	return err
}

// Reload replaces the dataset with a fresh load. On failure the previous
// dataset stays in place.
func (r *Repository) Reload(ctx context.Context) (*Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ds, err := r.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	r.ds = ds
	return ds, nil
}

// Loaded reports whether a dataset is currently held.
func (r *Repository) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ds != nil
}

func (r *Repository) loadLocked(ctx context.Context) (*Dataset, error) {
	if r.load == nil {
		return nil, eris.New("dataset: no loader configured")
	}
	ds, err := r.load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: load")
	}
	if ds == nil {
		return nil, eris.New("dataset: loader returned no dataset")
	}

	st := ds.Stats()
	zap.L().Info("dataset: loaded",
		zap.Int("rows", st.Rows),
		zap.Int("loaded", st.Loaded),
		zap.Int("dropped", st.Dropped),
		zap.Int("duplicates", st.Duplicates),
		zap.Int("anomalies", st.Anomalies),
		zap.String("table_version", st.TableVersion),
	)
	return ds, nil
}
