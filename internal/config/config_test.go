package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("DefaultsWithoutFile", func(t *testing.T) {
		// Act
		cfg, err := LoadConfig(t.TempDir())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 10.0, cfg.Gaps.Threshold)
		assert.Equal(t, 20, cfg.Gaps.HistoryLimit)
		assert.Equal(t, 10, cfg.Import.MaxErrors)
		assert.Equal(t, time.Hour, cfg.Cache.TTL)
		assert.Equal(t, 5*time.Minute, cfg.Cache.SweepInterval)
		assert.Equal(t, []string{"2019_2025", "2004_2018"}, cfg.Prices.Parquet.Ranges)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
	})

	t.Run("FileAndEnvironment", func(t *testing.T) {
		// Arrange
		dir := t.TempDir()
		yml := []byte("gaps:\n  threshold: 15\ncache:\n  ttl: 30m\nlogger:\n  level: debug\n")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), yml, 0o644))
		t.Setenv("LOGGER_LEVEL", "warn")

		// Act
		cfg, err := LoadConfig(dir)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 15.0, cfg.Gaps.Threshold)
		assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
		assert.Equal(t, "warn", cfg.Logger.Level)
	})

	t.Run("MalformedFile", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("gaps: [\n"), 0o644))

		_, err := LoadConfig(dir)
		assert.Error(t, err)
	})
}
