package report

import (
	"io"
	"sort"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/newsharvest/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSearch(md, report)
	w.writeRecords(md, report)
	w.writeImages(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs a table with one row per run.
func (w *MarkdownWriter) WriteSummary(reports []*model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("newsharvest Run Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		if r == nil {
			continue
		}
		rows = append(rows, []string{
			r.Search.Query,
			strconv.Itoa(r.Search.LookbackMonths),
			strconv.Itoa(r.RecordCount()),
			orDash(r.SpreadsheetPath),
			status(r),
		})
	}
	if len(rows) == 0 {
		md.PlainText("No runs.")
	} else {
		md.Table(markdown.TableSet{
			Header: []string{"Query", "Months", "Records", "Spreadsheet", "Status"},
			Rows:   rows,
		})
	}
	md.PlainText("")
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	md.H1("newsharvest Run Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Query", "`" + report.Search.Query + "`"},
			{"Site", report.SiteURL},
			{"Lookback", strconv.Itoa(report.Search.LookbackMonths) + " months"},
			{"Threshold", report.Search.ThresholdDate.String()},
			{"Effective threshold", report.EffectiveThreshold.String()},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"State", orDash(report.State)},
			{"Status", status(report)},
		},
	})
	md.PlainText("")

	w.writeAlert(md, report)
}

// writeAlert writes a GitHub alert matching the outcome of the run.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.RunReport) {
	switch {
	case report.ErrorMessage != "":
		md.Cautionf("The run failed: %s", report.ErrorMessage)
	case report.State == "ABORTED":
		md.Note("The search returned no results.")
	case report.RecordCount() == 0:
		md.Note("No article fell inside the lookback window.")
	case report.DownloadFailures > 0:
		md.Warningf("%d image(s) could not be downloaded; their records point at missing files.",
			report.DownloadFailures)
	default:
		md.Tip("All extracted articles were exported.")
	}
	md.PlainText("")
}

// writeSearch writes the pagination and extraction counters.
func (w *MarkdownWriter) writeSearch(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Search")
	md.PlainText("")

	stopped := "-"
	if report.StoppedAt > 0 {
		stopped = strconv.Itoa(report.StoppedAt)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Loaded results", strconv.Itoa(report.ResultsSeen)},
			{"Show more clicks", strconv.Itoa(report.Expansions)},
			{"Stopped at article", stopped},
			{"Records", strconv.Itoa(report.RecordCount())},
			{"Records with amounts", strconv.Itoa(report.AmountRecords())},
			{"Download failures", strconv.Itoa(report.DownloadFailures)},
			{"Defaulted dates", strconv.Itoa(report.DefaultedDates)},
		},
	})
	md.PlainText("")
}

// writeRecords writes the record table and a chart of records per month.
func (w *MarkdownWriter) writeRecords(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Records")
	md.PlainText("")

	if report.RecordCount() == 0 {
		md.PlainText("No records.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Records))
	for i, r := range report.Records {
		amount := "no"
		if r.ContainsAmount {
			amount = "yes"
		}
		rows[i] = []string{
			r.Date.String(),
			truncateString(r.Title, 60),
			strconv.Itoa(r.TitleMatchCount),
			strconv.Itoa(r.DescriptionMatchCount),
			amount,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Date", "Title", "Title matches", "Description matches", "Amount"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, r := range report.Records {
		if r.Description != "" {
			md.Details(truncateString(r.Title, 60), r.Description)
		}
	}
	md.PlainText("")

	w.writeMonthChart(md, report)
}

// writeMonthChart writes a mermaid pie chart of records per month.
func (w *MarkdownWriter) writeMonthChart(md *markdown.Markdown, report *model.RunReport) {
	counts := make(map[string]uint64)
	for _, r := range report.Records {
		counts[r.Date.String()[:7]]++
	}
	if len(counts) < 2 {
		return
	}

	months := make([]string, 0, len(counts))
	for m := range counts {
		months = append(months, m)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Records per Month"),
		piechart.WithShowData(true),
	)
	for _, m := range months {
		chart.LabelAndIntValue(m, counts[m])
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeImages writes output paths and image metadata.
func (w *MarkdownWriter) writeImages(md *markdown.Markdown, report *model.RunReport) {
	if report.SpreadsheetPath == "" && report.ArchivePath == "" {
		return
	}

	md.H2("Output")
	md.PlainText("")

	var items []string
	if report.SpreadsheetPath != "" {
		items = append(items, "Spreadsheet: `"+report.SpreadsheetPath+"`")
	}
	if report.ArchivePath != "" {
		items = append(items, "Image archive: `"+report.ArchivePath+"`")
	}
	md.BulletList(items...)
	md.PlainText("")

	if len(report.Images) == 0 {
		return
	}

	rows := make([][]string, len(report.Images))
	for i, img := range report.Images {
		exif := "-"
		if img.HasEXIF {
			exif = strconv.Itoa(len(img.Tags)) + " tags"
		}
		rows[i] = []string{img.Path, strconv.FormatInt(img.Size, 10), exif}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Image", "Bytes", "EXIF"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [newsharvest](https://github.com/nao1215/newsharvest)*")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
