package pricestore

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"time"

	"trade-journal/internal/config"
	"trade-journal/internal/market"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"
)

var validTicker = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-^=]{0,15}$`)

// ValidateTicker rejects symbols that could not be a ticker. It keeps user
// input out of Flux queries.
func ValidateTicker(ticker string) error {
	if !validTicker.MatchString(ticker) {
		return fmt.Errorf("invalid ticker %q", ticker)
	}
	return nil
}

// InfluxStore reads OHLCV points written as measurement "stock_prices"
// tagged by ticker, with fields open, high, low, close and volume.
type InfluxStore struct {
	client      influxdb2.Client
	query       api.QueryAPI
	bucket      string
	measurement string
	loc         *time.Location
	logger      *zap.Logger
}

// NewInfluxStore connects to the configured InfluxDB.
func NewInfluxStore(cfg *config.Influx, loc *time.Location, logger *zap.Logger) *InfluxStore {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	if loc == nil {
		loc = time.UTC
	}
	return &InfluxStore{
		client:      client,
		query:       client.QueryAPI(cfg.Org),
		bucket:      cfg.Bucket,
		measurement: cfg.Measurement,
		loc:         loc,
		logger:      logger.Named("influx-store"),
	}
}

// Close releases the client.
func (s *InfluxStore) Close() {
	s.client.Close()
}

func (s *InfluxStore) Tickers(ctx context.Context) ([]string, error) {
	flux := fmt.Sprintf(`
		import "influxdata/influxdb/schema"
		schema.tagValues(bucket: "%s", tag: "ticker", predicate: (r) => r._measurement == "%s", start: 0)
	`, s.bucket, s.measurement)

	result, err := s.query.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("InfluxDB ticker query failed: %w", err)
	}
	defer result.Close()

	var out []string
	for result.Next() {
		if v, ok := result.Record().Value().(string); ok {
			out = append(out, NormalizeTicker(v))
		}
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("error reading InfluxDB results: %w", result.Err())
	}
	sort.Strings(out)
	return out, nil
}

func (s *InfluxStore) bars(ctx context.Context, ticker, start, stop string) ([]market.Bar, error) {
	if err := ValidateTicker(ticker); err != nil {
		return nil, err
	}
	flux := fmt.Sprintf(`
		from(bucket: "%s")
		  |> range(start: %s, stop: %s)
		  |> filter(fn: (r) => r._measurement == "%s")
		  |> filter(fn: (r) => r.ticker == "%s")
		  |> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
		  |> sort(columns: ["_time"], desc: false)
	`, s.bucket, start, stop, s.measurement, ticker)

	result, err := s.query.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("InfluxDB query failed: %w", err)
	}
	defer result.Close()

	var bars []market.Bar
	for result.Next() {
		r := result.Record()
		bars = append(bars, market.Bar{
			Time:   r.Time().In(s.loc),
			Open:   field(r.ValueByKey("open")),
			High:   field(r.ValueByKey("high")),
			Low:    field(r.ValueByKey("low")),
			Close:  field(r.ValueByKey("close")),
			Volume: zeroIfNaN(field(r.ValueByKey("volume"))),
		})
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("error reading InfluxDB results: %w", result.Err())
	}
	return bars, nil
}

func (s *InfluxStore) DailyCandles(ctx context.Context, ticker string) ([]market.Candle, error) {
	ticker = NormalizeTicker(ticker)
	bars, err := s.bars(ctx, ticker, "0", "now()")
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}
	s.logger.Debug("Fetched bars from InfluxDB", zap.String("ticker", ticker), zap.Int("points", len(bars)))
	return market.AggregateToDaily(bars), nil
}

func (s *InfluxStore) IntradayBars(ctx context.Context, ticker string, date time.Time) ([]market.Bar, error) {
	ticker = NormalizeTicker(ticker)
	day := market.DayOf(date)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	bars, err := s.bars(ctx, ticker, start.Format(time.RFC3339), start.AddDate(0, 0, 1).Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	return onDate(bars, date, s.loc), nil
}

func field(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	default:
		return math.NaN()
	}
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
