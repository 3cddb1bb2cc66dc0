package pricestore

import (
	"context"
	"testing"

	"trade-journal/internal/config"
	"trade-journal/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("SkipsUnconfiguredSources", func(t *testing.T) {
		cfg := &config.Prices{
			Sources:  []string{"parquet", "influx", "yahoo"},
			Location: "UTC",
			Parquet:  config.Parquet{Dir: t.TempDir(), Prefix: "ohlcv_intraday_1m", Ranges: []string{"2019_2025"}},
			Yahoo:    config.Yahoo{BaseURL: "https://example.test", RateLimit: 1, RateLimitBurst: 1},
		}

		r, closeFn, err := FromConfig(ctx, cfg, schema.Default(), zap.NewNop())

		require.NoError(t, err)
		defer closeFn()
		require.Len(t, r.sources, 2)
		assert.Equal(t, "parquet", r.sources[0].Name)
		assert.Equal(t, "yahoo", r.sources[1].Name)
	})

	t.Run("UnknownSource", func(t *testing.T) {
		_, _, err := FromConfig(ctx, &config.Prices{Sources: []string{"ftp"}, Location: "UTC"}, schema.Default(), zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("NoSources", func(t *testing.T) {
		_, _, err := FromConfig(ctx, &config.Prices{Sources: []string{"influx"}, Location: "UTC"}, schema.Default(), zap.NewNop())
		assert.Error(t, err)
	})
}
