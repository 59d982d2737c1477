package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/newsharvest/internal/model"
)

const (
	// SheetName is the name of the only worksheet.
	SheetName = "Sheet"

	// FileName is the workbook file name inside the output directory.
	FileName = "results.xlsx"

	// dateFormat is the number format of the date column.
	dateFormat = "yyyy-mm-dd"
)

// Headers are the column titles, in column order.
var Headers = []string{
	"title",
	"description",
	"date",
	"picture",
	"search_text_in_title",
	"search_text_in_description",
	"is_contains_amount",
}

// ErrNoRecords is returned when there is nothing to export.
var ErrNoRecords = errors.New("no records to export")

// Column is one field of every record, aligned by row index.
type Column struct {
	Header string
	Values []any
}

// Columns pivots records into column-oriented data. The amount flag is
// written as "True" or "False".
func Columns(records []model.NewsRecord) []Column {
	cols := make([]Column, len(Headers))
	for i, h := range Headers {
		cols[i] = Column{Header: h, Values: make([]any, 0, len(records))}
	}
	for _, r := range records {
		cols[0].Values = append(cols[0].Values, r.Title)
		cols[1].Values = append(cols[1].Values, r.Description)
		cols[2].Values = append(cols[2].Values, r.Date.In(time.UTC))
		cols[3].Values = append(cols[3].Values, r.ImagePath)
		cols[4].Values = append(cols[4].Values, r.TitleMatchCount)
		cols[5].Values = append(cols[5].Values, r.DescriptionMatchCount)
		cols[6].Values = append(cols[6].Values, pythonBool(r.ContainsAmount))
	}
	return cols
}

func pythonBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// Sink writes workbooks into an output directory.
type Sink struct {
	outputDir string
	logger    *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSink creates a Sink writing to outputDir.
func NewSink(outputDir string, opts ...Option) *Sink {
	s := &Sink{outputDir: outputDir, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the workbook path.
func (s *Sink) Path() string {
	return filepath.Join(s.outputDir, FileName)
}

// Export writes set to the workbook and returns its path. An empty set
// returns ErrNoRecords and writes nothing.
func (s *Sink) Export(ctx context.Context, set *model.ResultSet) (string, error) {
	if set.IsEmpty() {
		return "", ErrNoRecords
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	records := set.Sorted()
	path := s.Path()

	if err := os.MkdirAll(s.outputDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := writeWorkbook(path, Columns(records)); err != nil {
		return "", err
	}

	s.logger.Info("news data saved into excel file", "path", path, "records", len(records))
	return path, nil
}

func writeWorkbook(path string, cols []Column) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close workbook: %w", cerr)
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name worksheet: %w", err)
	}

	for i, col := range cols {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("invalid column %d: %w", i+1, err)
		}
		values := append([]any{col.Header}, col.Values...)
		if err := f.SetSheetCol(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write column %s: %w", col.Header, err)
		}
	}

	if n := len(cols[2].Values); n > 0 {
		format := dateFormat
		style, err := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
		if err != nil {
			return fmt.Errorf("failed to create date style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(3, n+1)
		if err != nil {
			return fmt.Errorf("invalid date range: %w", err)
		}
		if err := f.SetCellStyle(SheetName, "C2", last, style); err != nil {
			return fmt.Errorf("failed to style date column: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
