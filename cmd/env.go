package main

import (
	"context"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/shariah-screen/internal/config"
	"github.com/sells-group/shariah-screen/internal/dataset"
	"github.com/sells-group/shariah-screen/internal/fetcher"
	"github.com/sells-group/shariah-screen/internal/normalize"
	"github.com/sells-group/shariah-screen/internal/resilience"
	"github.com/sells-group/shariah-screen/internal/screening"
	"github.com/sells-group/shariah-screen/internal/store"
)

// initNormalizer builds the normalizer from the configured resolution table
// and fallback thresholds.
func initNormalizer(c *config.Config) (*normalize.Normalizer, error) {
	var table *normalize.Table
	if c.Dataset.FieldTable != "" {
		t, err := normalize.LoadTable(c.Dataset.FieldTable)
		if err != nil {
			return nil, err
		}
		table = t
	}
	return normalize.New(table).WithThresholds(normalize.Thresholds{
		DebtPct:    c.Screening.DebtThresholdPct,
		CashInvPct: c.Screening.CashInvThresholdPct,
		NPINPct:    c.Screening.NPINThresholdPct,
	}), nil
}

// openStore opens the configured document store.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Dataset.Source {
	case config.SourceSQLite:
		return store.NewSQLite(c.Store.DatabaseURL, c.Store.Table)
	case config.SourcePostgres:
		return store.NewPostgres(ctx, c.Store.DatabaseURL, c.Store.Table, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("dataset source %q has no store", c.Dataset.Source)
	}
}

// initLoader returns the dataset loader for the configured source.
func initLoader(c *config.Config, n *normalize.Normalizer) (dataset.Loader, error) {
	switch c.Dataset.Source {
	case config.SourceFile:
		opts := fetcher.Options{
			Format:  fetcher.Format(c.Dataset.Format),
			Charset: c.Dataset.Charset,
			Sheet:   c.Dataset.Sheet,
		}
		if c.Dataset.Delimiter != "" {
			opts.Delimiter, _ = utf8.DecodeRuneInString(c.Dataset.Delimiter)
		}
		return dataset.FileLoader(c.Dataset.Path, opts, n), nil
	case config.SourceSQLite, config.SourcePostgres:
		load := dataset.StoreLoader(func(ctx context.Context) (store.Store, error) {
			return openStore(ctx, c)
		}, n)
		return dataset.WithRetry(load, resilience.RetryConfig{
			MaxAttempts:    c.Store.RetryAttempts,
			InitialBackoff: c.Store.RetryBackoff,
			JitterFraction: 0.2,
			OnRetry:        resilience.RetryLogger(c.Dataset.Source, "load"),
		}), nil
	default:
		return nil, eris.Errorf("unsupported dataset source: %s", c.Dataset.Source)
	}
}

// initService wires the screening service for mode. The dataset is loaded
// on first use unless dataset.eager is set.
func initService(ctx context.Context, mode string) (*screening.Service, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	n, err := initNormalizer(cfg)
	if err != nil {
		return nil, err
	}
	load, err := initLoader(cfg, n)
	if err != nil {
		return nil, err
	}

	repo := dataset.NewRepository(load)
	if cfg.Dataset.Eager {
		if err := repo.Preload(ctx); err != nil {
			return nil, err
		}
	}

	zap.L().Debug("screening service ready",
		zap.String("source", cfg.Dataset.Source),
		zap.String("table_version", n.Table().Version),
		zap.Bool("eager", cfg.Dataset.Eager),
	)

	return screening.NewService(repo, screening.Options{
		StrictThresholds: cfg.Screening.StrictThresholds,
		ResidualEpsilon:  cfg.Screening.ResidualEpsilon,
		MaxConcurrency:   cfg.Portfolio.MaxConcurrency,
	}), nil
}

// loadDataset initializes the service and returns its dataset.
func loadDataset(ctx context.Context) (*dataset.Dataset, error) {
	svc, err := initService(ctx, "screen")
	if err != nil {
		return nil, err
	}
	return svc.Repository().Get(ctx)
}
