package model

import "time"

// ImageInfo describes a downloaded article image.
type ImageInfo struct {
	// Path is the file the image was written to.
	Path string `json:"path"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// HasEXIF is true when EXIF metadata was found in the file.
	HasEXIF bool `json:"has_exif"`

	// Tags holds a selection of EXIF tags (camera, software, timestamps).
	Tags map[string]string `json:"tags,omitempty"`
}

// RunReport is the summary of one search run. It is filled in by the
// pipeline steps, printed at the end of the run and stored in the history
// database as JSON.
type RunReport struct {
	// ID identifies the run in the history database. It is empty until the
	// report is saved.
	ID string `json:"id,omitempty"`

	// Search is the configuration the run was started with.
	Search SearchConfig `json:"search"`

	// EffectiveThreshold is the date the range filter compared articles against.
	EffectiveThreshold Date `json:"effective_threshold"`

	// SiteURL is the news site that was searched.
	SiteURL string `json:"site_url"`

	// OutputDir is where the spreadsheet, images and archive were written.
	OutputDir string `json:"output_dir"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// State is the final state of the scraper state machine.
	State string `json:"state"`

	// Expansions is how many times the "show more" control was activated.
	Expansions int `json:"expansions"`

	// ResultsSeen is the number of result elements loaded when extraction began.
	ResultsSeen int `json:"results_seen"`

	// StoppedAt is the 1-based extraction index of the first out-of-range
	// article, or 0 when every loaded article was in range.
	StoppedAt int `json:"stopped_at,omitempty"`

	// Records are the unique extracted records, newest first.
	Records []NewsRecord `json:"records"`

	// DownloadFailures counts images that could not be downloaded.
	DownloadFailures int `json:"download_failures"`

	// DefaultedDates counts records whose date fell back to the run date.
	DefaultedDates int `json:"defaulted_dates"`

	// SpreadsheetPath is the written workbook, empty when nothing was exported.
	SpreadsheetPath string `json:"spreadsheet_path,omitempty"`

	// ArchivePath is the written image archive, empty when nothing was archived.
	ArchivePath string `json:"archive_path,omitempty"`

	// Images holds metadata about the downloaded images.
	Images []ImageInfo `json:"images,omitempty"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps"`

	// Error is the error that ended the run early, if any.
	Error        error  `json:"-"`
	ErrorMessage string `json:"error,omitempty"`
}

// NewRunReport creates a report for the given search.
func NewRunReport(search SearchConfig, siteURL, outputDir string) *RunReport {
	return &RunReport{
		Search:         search,
		SiteURL:        siteURL,
		OutputDir:      outputDir,
		StartedAt:      time.Now(),
		Records:        make([]NewsRecord, 0),
		PerformedSteps: make([]string, 0),
	}
}

// RecordCount returns the number of exported records.
func (r *RunReport) RecordCount() int {
	return len(r.Records)
}

// Duration returns how long the run took, or zero if it has not finished.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the run finished without an error.
func (r *RunReport) Succeeded() bool {
	return r.ErrorMessage == ""
}

// AmountRecords returns how many records mention a currency amount.
func (r *RunReport) AmountRecords() int {
	n := 0
	for _, rec := range r.Records {
		if rec.ContainsAmount {
			n++
		}
	}
	return n
}
