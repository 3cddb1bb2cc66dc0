package market

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.March, day, hour, minute, 0, 0, time.UTC)
}

func TestAggregateToDaily(t *testing.T) {
	t.Run("SingleDay", func(t *testing.T) {
		// Arrange: out of order on purpose
		bars := []Bar{
			{Time: at(4, 9, 31), Open: 10.5, High: 12, Low: 10.4, Close: 11.8, Volume: 200},
			{Time: at(4, 9, 30), Open: 10, High: 10.6, Low: 9.5, Close: 10.5, Volume: 100},
			{Time: at(4, 15, 59), Open: 11.8, High: 11.9, Low: 11, Close: 11.2, Volume: 300},
		}

		// Act
		candles := AggregateToDaily(bars)

		// Assert
		require.Len(t, candles, 1)
		c := candles[0]
		assert.Equal(t, time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC), c.Date)
		assert.Equal(t, 10.0, c.Open)
		assert.Equal(t, 12.0, c.High)
		assert.Equal(t, 9.5, c.Low)
		assert.Equal(t, 11.2, c.Close)
		assert.Equal(t, 600.0, c.Volume)
	})

	t.Run("MultipleDaysSortedAndUnique", func(t *testing.T) {
		bars := []Bar{
			{Time: at(6, 10, 0), Open: 3, High: 4, Low: 2, Close: 3, Volume: 1},
			{Time: at(4, 10, 0), Open: 1, High: 2, Low: 1, Close: 2, Volume: 1},
			{Time: at(5, 10, 0), Open: 2, High: 3, Low: 1, Close: 2, Volume: 1},
			{Time: at(4, 11, 0), Open: 2, High: 2, Low: 1, Close: 1, Volume: 1},
		}

		candles := AggregateToDaily(bars)

		require.Len(t, candles, 3)
		for i := 1; i < len(candles); i++ {
			assert.True(t, candles[i-1].Date.Before(candles[i].Date))
		}
		assert.Equal(t, 2.0, candles[0].Volume)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		candles := AggregateToDaily(nil)
		assert.NotNil(t, candles)
		assert.Empty(t, candles)
	})

	t.Run("MissingFieldsAreDropped", func(t *testing.T) {
		bars := []Bar{
			{Time: at(4, 9, 30), Open: math.NaN(), High: 1, Low: 1, Close: 1},
			{Time: at(4, 9, 31), Open: 1, High: 1, Low: 1, Close: math.NaN()},
		}
		assert.Empty(t, AggregateToDaily(bars))
	})

	t.Run("Idempotent", func(t *testing.T) {
		bars := []Bar{
			{Time: at(4, 9, 30), Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100},
			{Time: at(4, 9, 31), Open: 10.5, High: 12, Low: 10, Close: 11, Volume: 50},
			{Time: at(5, 9, 30), Open: 11, High: 11.5, Low: 10.8, Close: 11.1, Volume: 70},
		}
		first := AggregateToDaily(bars)

		again := make([]Bar, 0, len(first))
		for _, c := range first {
			again = append(again, c.Bar())
		}

		assert.Equal(t, first, AggregateToDaily(again))
	})

	t.Run("CandleInvariants", func(t *testing.T) {
		bars := []Bar{
			{Time: at(4, 9, 30), Open: 10, High: 10.2, Low: 9.9, Close: 10.1, Volume: 5},
			{Time: at(4, 9, 31), Open: 10.1, High: 10.8, Low: 10, Close: 10.7, Volume: 5},
			{Time: at(4, 9, 32), Open: 10.7, High: 10.7, Low: 9.1, Close: 9.3, Volume: 5},
		}
		for _, c := range AggregateToDaily(bars) {
			assert.GreaterOrEqual(t, c.High, math.Max(c.Open, c.Close))
			assert.LessOrEqual(t, c.Low, math.Min(c.Open, c.Close))
			assert.GreaterOrEqual(t, c.Low, 0.0)
		}
	})
}

func TestAggregatePartitions(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	t.Run("LaterModificationWins", func(t *testing.T) {
		parts := []Partition{
			{Source: "b/minute.parquet", ModTime: newer, Bars: []Bar{{Time: at(4, 10, 0), Open: 2, High: 2, Low: 2, Close: 2, Volume: 2}}},
			{Source: "a/minute.parquet", ModTime: older, Bars: []Bar{{Time: at(4, 10, 0), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}}},
		}

		candles := AggregatePartitions(parts)

		require.Len(t, candles, 1)
		assert.Equal(t, 2.0, candles[0].Open)
	})

	t.Run("TieBrokenBySource", func(t *testing.T) {
		parts := []Partition{
			{Source: "z", ModTime: older, Bars: []Bar{{Time: at(4, 10, 0), Open: 9, High: 9, Low: 9, Close: 9}}},
			{Source: "a", ModTime: older, Bars: []Bar{{Time: at(4, 10, 0), Open: 1, High: 1, Low: 1, Close: 1}}},
		}

		candles := AggregatePartitions(parts)

		require.Len(t, candles, 1)
		assert.Equal(t, 9.0, candles[0].Open)
	})

	t.Run("DisjointPartitionsMerge", func(t *testing.T) {
		parts := []Partition{
			{Source: "mar", Bars: []Bar{{Time: at(5, 10, 0), Open: 1, High: 1, Low: 1, Close: 1}}},
			{Source: "feb", Bars: []Bar{{Time: at(4, 10, 0), Open: 1, High: 1, Low: 1, Close: 1}}},
		}

		candles := AggregatePartitions(parts)

		require.Len(t, candles, 2)
		assert.True(t, candles[0].Date.Before(candles[1].Date))
	})
}

func TestSlice(t *testing.T) {
	candles := AggregateToDaily([]Bar{
		{Time: at(4, 10, 0), Open: 1, High: 1, Low: 1, Close: 1},
		{Time: at(5, 10, 0), Open: 1, High: 1, Low: 1, Close: 1},
		{Time: at(6, 10, 0), Open: 1, High: 1, Low: 1, Close: 1},
	})

	assert.Len(t, Slice(candles, at(5, 0, 0), time.Time{}), 2)
	assert.Len(t, Slice(candles, time.Time{}, at(5, 23, 0)), 2)
	assert.Len(t, Slice(candles, at(5, 0, 0), at(5, 0, 0)), 1)
}
