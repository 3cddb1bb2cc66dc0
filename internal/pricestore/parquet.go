package pricestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"trade-journal/internal/market"
	"trade-journal/internal/schema"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const partitionFile = "minute.parquet"

// ParquetStore reads one-minute bars partitioned as
// <prefix>/<range>/<TICKER>/year=YYYY/month=MM/minute.parquet.
type ParquetStore struct {
	bucket      Bucket
	prefix      string
	ranges      []string
	table       *schema.Table
	loc         *time.Location
	concurrency int
	logger      *zap.Logger
}

// NewParquetStore creates a store over bucket. ranges are the top-level
// date-range directories to search.
func NewParquetStore(bucket Bucket, prefix string, ranges []string, table *schema.Table, loc *time.Location, concurrency int, logger *zap.Logger) *ParquetStore {
	if concurrency <= 0 {
		concurrency = 1
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ParquetStore{
		bucket:      bucket,
		prefix:      strings.Trim(prefix, "/"),
		ranges:      ranges,
		table:       table,
		loc:         loc,
		concurrency: concurrency,
		logger:      logger.Named("parquet-store"),
	}
}

func (s *ParquetStore) rangePrefix(r string) string {
	if s.prefix == "" {
		return r + "/"
	}
	return s.prefix + "/" + r + "/"
}

func (s *ParquetStore) Tickers(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, r := range s.ranges {
		dirs, err := s.bucket.Dirs(ctx, s.rangePrefix(r))
		if err != nil {
			return nil, err
		}
		for _, d := range dirs {
			seen[NormalizeTicker(d)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// partitions lists the ticker's partition files, optionally restricted to
// one month.
func (s *ParquetStore) partitions(ctx context.Context, ticker string, month time.Time) ([]Object, error) {
	var out []Object
	for _, r := range s.ranges {
		prefix := s.rangePrefix(r) + ticker + "/"
		if !month.IsZero() {
			prefix += fmt.Sprintf("year=%04d/month=%02d/", month.Year(), int(month.Month()))
		}
		objs, err := s.bucket.List(ctx, prefix)
		if err != nil {
			return nil, err
		}
		for _, o := range objs {
			if strings.HasSuffix(o.Key, "/"+partitionFile) {
				out = append(out, o)
			}
		}
	}
	return out, nil
}

// load reads and decodes partitions concurrently. Unreadable partitions are
// logged and skipped.
func (s *ParquetStore) load(ctx context.Context, objs []Object) ([]market.Partition, error) {
	parts := make([]market.Partition, len(objs))
	ok := make([]bool, len(objs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, o := range objs {
		i, o := i, o
		g.Go(func() error {
			data, err := s.bucket.Read(ctx, o.Key)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn("Skipping unreadable partition", zap.String("key", o.Key), zap.Error(err))
				return nil
			}
			bars, err := DecodeBars(data, s.table)
			if err != nil {
				s.logger.Warn("Skipping undecodable partition", zap.String("key", o.Key), zap.Error(err))
				return nil
			}
			parts[i] = market.Partition{Source: o.Key, ModTime: o.Updated, Bars: inLocation(bars, s.loc)}
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]market.Partition, 0, len(parts))
	for i, p := range parts {
		if ok[i] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *ParquetStore) DailyCandles(ctx context.Context, ticker string) ([]market.Candle, error) {
	ticker = NormalizeTicker(ticker)
	objs, err := s.partitions(ctx, ticker, time.Time{})
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}
	parts, err := s.load(ctx, objs)
	if err != nil {
		return nil, err
	}
	candles := market.AggregatePartitions(parts)
	s.logger.Debug("Loaded daily candles",
		zap.String("ticker", ticker),
		zap.Int("partitions", len(parts)),
		zap.Int("days", len(candles)),
	)
	return candles, nil
}

// IntradayBars returns the bars of one day. When partitions overlap, bars
// from the most recently modified partition win.
func (s *ParquetStore) IntradayBars(ctx context.Context, ticker string, date time.Time) ([]market.Bar, error) {
	ticker = NormalizeTicker(ticker)
	objs, err := s.partitions(ctx, ticker, date)
	if err != nil {
		return nil, err
	}
	parts, err := s.load(ctx, objs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(parts, func(i, j int) bool {
		if !parts[i].ModTime.Equal(parts[j].ModTime) {
			return parts[i].ModTime.Before(parts[j].ModTime)
		}
		return parts[i].Source < parts[j].Source
	})

	byTime := make(map[int64]market.Bar)
	for _, p := range parts {
		for _, b := range onDate(p.Bars, date, s.loc) {
			byTime[b.Time.UnixNano()] = b
		}
	}
	out := make([]market.Bar, 0, len(byTime))
	for _, b := range byTime {
		out = append(out, b)
	}
	sortBars(out)
	return out, nil
}

func sortBars(bars []market.Bar) {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
}

// DecodeBars reads a parquet file of OHLCV rows. Column names are resolved
// through the ohlcv column set; a timestamp column or a date column is
// required. Cells that cannot be read become NaN so the bar is dropped
// downstream.
func DecodeBars(data []byte, table *schema.Table) ([]market.Bar, error) {
	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	paths := f.Schema().Columns()
	headers := make([]string, len(paths))
	for i, p := range paths {
		headers[i] = p[len(p)-1]
	}
	m, err := table.Resolve(schema.SetOHLCV, headers)
	if err != nil {
		return nil, err
	}
	if !m.Has("timestamp") && !m.Has("date") {
		return nil, &schema.MissingColumnsError{Set: schema.SetOHLCV, Missing: []string{"timestamp"}}
	}

	columns := make(map[int]string, len(m))
	for canonical, idx := range m {
		columns[idx] = canonical
	}

	var bars []market.Bar
	buf := make([]parquet.Row, 512)
	for _, rg := range f.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				bars = append(bars, toBar(row, columns))
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to read parquet rows: %w", err)
			}
			if n == 0 {
				break
			}
		}
		rows.Close()
	}
	return bars, nil
}

func toBar(row parquet.Row, columns map[int]string) market.Bar {
	nan := math.NaN()
	b := market.Bar{Open: nan, High: nan, Low: nan, Close: nan}
	var day time.Time
	var clock time.Duration
	for _, v := range row {
		name, ok := columns[v.Column()]
		if !ok {
			continue
		}
		switch name {
		case "timestamp":
			b.Time = timestampOf(v)
		case "date":
			day = dateOf(v)
		case "time":
			clock = clockOf(v)
		case "open":
			b.Open = numberOf(v)
		case "high":
			b.High = numberOf(v)
		case "low":
			b.Low = numberOf(v)
		case "close":
			b.Close = numberOf(v)
		case "volume":
			if vol := numberOf(v); !math.IsNaN(vol) {
				b.Volume = vol
			}
		}
	}
	if b.Time.IsZero() && !day.IsZero() {
		b.Time = day.Add(clock)
	}
	if b.Time.IsZero() {
		b.Open = nan
	}
	return b
}

func numberOf(v parquet.Value) float64 {
	if v.IsNull() {
		return math.NaN()
	}
	switch v.Kind() {
	case parquet.Double:
		return v.Double()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Int32:
		return float64(v.Int32())
	case parquet.Int64:
		return float64(v.Int64())
	case parquet.ByteArray, parquet.FixedLenByteArray:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(v.ByteArray())), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// epoch interprets an integer timestamp by magnitude: nanoseconds,
// microseconds, milliseconds or seconds.
func epoch(n int64) time.Time {
	abs := n
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1e17:
		return time.Unix(0, n).UTC()
	case abs >= 1e14:
		return time.UnixMicro(n).UTC()
	case abs >= 1e11:
		return time.UnixMilli(n).UTC()
	default:
		return time.Unix(n, 0).UTC()
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

func timestampOf(v parquet.Value) time.Time {
	if v.IsNull() {
		return time.Time{}
	}
	switch v.Kind() {
	case parquet.Int64:
		return epoch(v.Int64())
	case parquet.Int32:
		return epoch(int64(v.Int32()))
	case parquet.ByteArray, parquet.FixedLenByteArray:
		s := strings.TrimSpace(string(v.ByteArray()))
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// dateOf reads a DATE column (days since the epoch) or a date string.
func dateOf(v parquet.Value) time.Time {
	if v.IsNull() {
		return time.Time{}
	}
	switch v.Kind() {
	case parquet.Int32:
		return time.Unix(int64(v.Int32())*86400, 0).UTC()
	case parquet.Int64:
		return market.DayOf(epoch(v.Int64()))
	case parquet.ByteArray, parquet.FixedLenByteArray:
		if t, err := time.Parse("2006-01-02", strings.TrimSpace(string(v.ByteArray()))); err == nil {
			return t
		}
	}
	return time.Time{}
}

func clockOf(v parquet.Value) time.Duration {
	if v.IsNull() {
		return 0
	}
	switch v.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		for _, layout := range []string{"15:04:05", "15:04"} {
			if t, err := time.Parse(layout, strings.TrimSpace(string(v.ByteArray()))); err == nil {
				return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
			}
		}
	case parquet.Int32:
		return time.Duration(v.Int32()) * time.Second
	case parquet.Int64:
		return time.Duration(v.Int64()) * time.Second
	}
	return 0
}
