package journal

import (
	"context"
	"errors"
	"fmt"
	"io"

	"trade-journal/internal/execution"
	"trade-journal/internal/importer"
	"trade-journal/internal/models"
	"trade-journal/internal/schema"
	"trade-journal/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ImportResult summarises an upload.
type ImportResult struct {
	Message       string          `json:"message"`
	Format        importer.Format `json:"format"`
	TradesCreated int             `json:"trades_created"`
	Errors        []string        `json:"errors"`
}

// Import reads an uploaded CSV or Excel file, reconstructs or parses trades
// and stores them for the user. Row problems are reported, not fatal.
func (s *Service) Import(ctx context.Context, userID uint, filename string, r io.Reader) (*ImportResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "journal.Import", attribute.String("file", filename))
	defer span.End()

	sheet, err := importer.ReadFile(filename, r)
	if err != nil {
		if errors.Is(err, importer.ErrUnsupportedFormat) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}

	format := s.parser.DetectFormat(sheet.Headers)
	log := s.logger.With(zap.Uint("user_id", userID), zap.String("file", filename), zap.String("format", string(format)))

	var trades []models.Trade
	var problems []string
	switch format {
	case importer.FormatExecutions:
		execs, rowErrs, err := s.parser.ParseExecutions(sheet)
		if err != nil {
			return s.missingColumns(log, format, err)
		}
		problems = rowMessages(rowErrs)
		var warnings []string
		trades, warnings = execution.Reconstruct(execs)
		problems = append(problems, warnings...)
	default:
		var rowErrs []importer.RowError
		trades, rowErrs, err = s.parser.ParseTrades(sheet)
		if err != nil {
			return s.missingColumns(log, format, err)
		}
		problems = rowMessages(rowErrs)
	}

	for i := range trades {
		trades[i].UserID = userID
	}
	if err := s.store.CreateBatch(ctx, trades); err != nil {
		return nil, err
	}
	s.metrics.imported(format, len(trades), len(problems))

	log.Info("Imported trades", zap.Int("rows", len(sheet.Rows)), zap.Int("trades", len(trades)), zap.Int("errors", len(problems)))
	return &ImportResult{
		Message:       fmt.Sprintf("Successfully imported %d trades", len(trades)),
		Format:        format,
		TradesCreated: len(trades),
		Errors:        s.capErrors(problems),
	}, nil
}

// missingColumns turns a header problem into an empty result carrying the
// reason; any other error is returned as is.
func (s *Service) missingColumns(log *zap.Logger, format importer.Format, err error) (*ImportResult, error) {
	var missing *schema.MissingColumnsError
	if !errors.As(err, &missing) {
		return nil, err
	}
	log.Warn("Import file is missing columns", zap.Strings("missing", missing.Missing))
	s.metrics.imported(format, 0, 1)
	return &ImportResult{
		Message: "No trades imported",
		Format:  format,
		Errors:  []string{err.Error()},
	}, nil
}

func (s *Service) capErrors(problems []string) []string {
	if len(problems) > s.maxErrors {
		return problems[:s.maxErrors]
	}
	if problems == nil {
		return []string{}
	}
	return problems
}

func rowMessages(errs []importer.RowError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}
