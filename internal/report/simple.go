package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/nao1215/newsharvest/internal/model"
)

var (
	accentColor  = lipgloss.Color("#2DA44E")
	warningColor = lipgloss.Color("#D29922")
	errorColor   = lipgloss.Color("#CF222E")
	dimColor     = lipgloss.Color("#6E7681")
	dateColor    = lipgloss.Color("#A371F7")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accentColor)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	dateStyle = lipgloss.NewStyle().
			Foreground(dateColor)

	okStyle = lipgloss.NewStyle().
		Foreground(accentColor).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)
)

// SimpleWriter outputs human-readable text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// recordLimit caps the number of listed records. Zero lists all.
	recordLimit int

	// verbose adds descriptions and image metadata.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithRecordLimit lists at most n records. Zero lists all of them.
func WithRecordLimit(n int) SimpleWriterOption {
	return func(w *SimpleWriter) {
		if n >= 0 {
			w.recordLimit = n
		}
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter:  newBaseWriter(output),
		recordLimit: 20,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeProgress(&sb, report)
	w.writeRecords(&sb, report)
	w.writeOutput(&sb, report)

	return io.WriteString(w.output, sb.String())
}

// WriteSummary outputs one line per run.
func (w *SimpleWriter) WriteSummary(reports []*model.RunReport) (int, error) {
	var sb strings.Builder

	sb.WriteString(sectionStyle.Render("RUN SUMMARY"))
	sb.WriteString("\n\n")
	if len(reports) == 0 {
		sb.WriteString("  No runs\n")
		return io.WriteString(w.output, sb.String())
	}

	for _, r := range reports {
		if r == nil {
			continue
		}
		fmt.Fprintf(&sb, "  %s %-40s %3d records  %s\n",
			w.statusMark(r),
			truncateString(r.Search.Query, 40),
			r.RecordCount(),
			status(r),
		)
	}
	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString(headerStyle.Render("NEWSHARVEST RUN REPORT"))
	sb.WriteString("\n\n")

	w.field(sb, "Query", report.Search.Query)
	w.field(sb, "Site", report.SiteURL)
	w.field(sb, "Lookback", fmt.Sprintf("%d months (threshold %s, effective %s)",
		report.Search.LookbackMonths, report.Search.ThresholdDate, report.EffectiveThreshold))
	w.field(sb, "Started", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if d := report.Duration(); d > 0 {
		w.field(sb, "Duration", d.Round(time.Millisecond).String())
	}
	w.field(sb, "State", report.State)
	w.field(sb, "Status", w.styledStatus(report))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeProgress(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString(sectionStyle.Render("SEARCH"))
	sb.WriteString("\n\n")

	w.field(sb, "Loaded results", fmt.Sprint(report.ResultsSeen))
	w.field(sb, "Show more clicks", fmt.Sprint(report.Expansions))
	if report.StoppedAt > 0 {
		w.field(sb, "Stopped at", fmt.Sprintf("article %d (outside the window)", report.StoppedAt))
	}
	w.field(sb, "Records", fmt.Sprintf("%d (%d mention an amount)", report.RecordCount(), report.AmountRecords()))
	if report.DownloadFailures > 0 {
		w.field(sb, "Download failures", warnStyle.Render(fmt.Sprint(report.DownloadFailures)))
	}
	if report.DefaultedDates > 0 {
		w.field(sb, "Defaulted dates", warnStyle.Render(fmt.Sprint(report.DefaultedDates)))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeRecords(sb *strings.Builder, report *model.RunReport) {
	if report.RecordCount() == 0 {
		return
	}

	sb.WriteString(sectionStyle.Render("RECORDS"))
	sb.WriteString("\n\n")

	records := report.Records
	if w.recordLimit > 0 && len(records) > w.recordLimit {
		records = records[:w.recordLimit]
	}
	for _, r := range records {
		marker := " "
		if r.ContainsAmount {
			marker = "$"
		}
		fmt.Fprintf(sb, "  %s %s %s\n", dateStyle.Render(r.Date.String()), marker, r.Title)
		if w.verbose && r.Description != "" {
			fmt.Fprintf(sb, "      %s\n", labelStyle.Render(r.Description))
		}
	}
	if hidden := report.RecordCount() - len(records); hidden > 0 {
		fmt.Fprintf(sb, "  ... and %d more\n", hidden)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeOutput(sb *strings.Builder, report *model.RunReport) {
	if report.SpreadsheetPath == "" && report.ArchivePath == "" {
		return
	}

	sb.WriteString(sectionStyle.Render("OUTPUT"))
	sb.WriteString("\n\n")

	if report.SpreadsheetPath != "" {
		w.field(sb, "Spreadsheet", report.SpreadsheetPath)
	}
	if report.ArchivePath != "" {
		w.field(sb, "Image archive", report.ArchivePath)
	}
	if len(report.Images) > 0 {
		withExif := 0
		for _, img := range report.Images {
			if img.HasEXIF {
				withExif++
			}
		}
		w.field(sb, "Images", fmt.Sprintf("%d (%d with EXIF)", len(report.Images), withExif))
		if w.verbose {
			for _, img := range report.Images {
				fmt.Fprintf(sb, "      %s %d bytes\n", img.Path, img.Size)
				keys := make([]string, 0, len(img.Tags))
				for k := range img.Tags {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(sb, "        %s: %s\n", k, img.Tags[k])
				}
			}
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) field(sb *strings.Builder, label, value string) {
	fmt.Fprintf(sb, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-18s", label+":")), value)
}

func (w *SimpleWriter) styledStatus(report *model.RunReport) string {
	text := status(report)
	switch {
	case report.ErrorMessage != "":
		return errorStyle.Render(text)
	case report.RecordCount() == 0:
		return warnStyle.Render(text)
	default:
		return okStyle.Render(text)
	}
}

func (w *SimpleWriter) statusMark(report *model.RunReport) string {
	switch {
	case report.ErrorMessage != "":
		return errorStyle.Render("x")
	case report.RecordCount() == 0:
		return warnStyle.Render("-")
	default:
		return okStyle.Render("+")
	}
}
