package pricestore

import (
	"context"
	"fmt"
	"time"

	"trade-journal/internal/config"
	"trade-journal/internal/schema"

	"go.uber.org/zap"
)

// FromConfig builds a Resolver over the sources named in cfg.Sources, in
// that order. Sources without the settings they need are skipped. The
// returned func releases client connections.
func FromConfig(ctx context.Context, cfg *config.Prices, table *schema.Table, logger *zap.Logger) (*Resolver, func(), error) {
	loc, err := time.LoadLocation(cfg.Location)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load location %q: %w", cfg.Location, err)
	}

	var sources []Source
	var closers []func()
	for _, name := range cfg.Sources {
		switch name {
		case "parquet":
			var bucket Bucket
			switch {
			case cfg.Parquet.Bucket != "":
				gcs, err := NewGCSBucket(ctx, cfg.Parquet.Bucket, cfg.Parquet.CredentialsFile)
				if err != nil {
					return nil, nil, err
				}
				closers = append(closers, func() { _ = gcs.Close() })
				bucket = gcs
			case cfg.Parquet.Dir != "":
				bucket = NewDirBucket(cfg.Parquet.Dir)
			default:
				logger.Info("Parquet source has no bucket or directory, skipping")
				continue
			}
			sources = append(sources, Source{Name: name, Store: NewParquetStore(
				bucket, cfg.Parquet.Prefix, cfg.Parquet.Ranges, table, loc, cfg.Parquet.Concurrency, logger,
			)})
		case "influx":
			if cfg.Influx.URL == "" {
				logger.Info("InfluxDB source has no URL, skipping")
				continue
			}
			s := NewInfluxStore(&cfg.Influx, loc, logger)
			closers = append(closers, s.Close)
			sources = append(sources, Source{Name: name, Store: s})
		case "yahoo":
			if cfg.Yahoo.BaseURL == "" {
				continue
			}
			sources = append(sources, Source{Name: name, Store: NewYahooStore(&cfg.Yahoo, loc, logger)})
		default:
			return nil, nil, fmt.Errorf("unknown price source %q", name)
		}
	}
	if len(sources) == 0 {
		return nil, nil, fmt.Errorf("no price sources configured")
	}

	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name
	}
	logger.Info("Price sources ready", zap.Strings("sources", names))

	return NewResolver(logger, sources...), func() {
		for _, c := range closers {
			c()
		}
	}, nil
}
