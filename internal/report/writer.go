package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/nao1215/newsharvest/internal/model"
)

// ErrUnknownFormat is returned by New for an unsupported report format.
var ErrUnknownFormat = errors.New("unknown report format")

// Writer defines the interface for run report output.
type Writer interface {
	// Write outputs one run report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.RunReport) (int, error)

	// WriteSummary outputs a one-line-per-run overview of several runs,
	// as produced by a batch of queries.
	WriteSummary(reports []*model.RunReport) (int, error)
}

// New returns the writer for format ("text", "markdown" or "json").
// version is embedded in JSON output.
func New(format string, output io.Writer, version string) (Writer, error) {
	switch format {
	case "", "text":
		return NewSimpleWriter(output), nil
	case "markdown":
		return NewMarkdownWriter(output), nil
	case "json":
		return NewFullJSONWriter(output, version, WithPrettyPrint()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.RunReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the summary to all configured Writers.
func (m *MultiWriter) WriteSummary(reports []*model.RunReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(reports)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// status returns a short status text for a run.
func status(report *model.RunReport) string {
	switch {
	case report.ErrorMessage != "":
		return "ERROR - " + report.ErrorMessage
	case report.State == "ABORTED":
		return "No results"
	case report.RecordCount() == 0:
		return "Complete (no records in range)"
	default:
		return "Complete"
	}
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
