package config

import (
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/newsharvest/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "newsharvest"

	// DefaultSearchText is searched when nothing else is configured.
	DefaultSearchText = "Pakistan china economic corridor and benefits for both countries"

	// DefaultLookbackMonths is the default lookback window.
	DefaultLookbackMonths = 6

	// DefaultSiteURL is the news site that is searched.
	DefaultSiteURL = "https://www.aljazeera.com"

	// DefaultOutputDir is relative to the working directory, where the
	// spreadsheet and image archive are expected by downstream tooling.
	DefaultOutputDir = "output"

	// DefaultResultsTimeout bounds the wait for search results to appear.
	// The results page is rendered client side and is slow on cold caches.
	DefaultResultsTimeout = 20 * time.Second

	// DefaultShowMoreTimeout bounds the look for the "show more" button.
	// Once it expires every result is considered loaded.
	DefaultShowMoreTimeout = 5 * time.Second

	// DefaultActionTimeout bounds single browser actions such as clicks.
	DefaultActionTimeout = 30 * time.Second

	// DefaultDownloadTimeout bounds a single image download.
	DefaultDownloadTimeout = 30 * time.Second

	// DefaultMaxExpansions caps "show more" clicks per run.
	DefaultMaxExpansions = 100

	// DefaultStallLimit is the number of clicks without new results that
	// ends expansion.
	DefaultStallLimit = 3

	// DefaultBatchSize runs queries one at a time, sharing nothing but the
	// output root.
	DefaultBatchSize = 1

	// DefaultDownloadRate is the image download rate in requests per second.
	DefaultDownloadRate = 5.0

	// DefaultTorStartupTimeout bounds the Tor bootstrap, which usually
	// takes one to three minutes.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultUserAgent is sent with image downloads.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Report formats.
const (
	ReportText     = "text"
	ReportMarkdown = "markdown"
	ReportJSON     = "json"
)

// Config holds every option of a run. It is filled from defaults, the
// configuration file, a Provider and CLI flags, in that order.
type Config struct {
	// Queries are the search texts. Each query is one run.
	Queries []string

	// LookbackMonths is the lookback window in months.
	LookbackMonths int

	// Inputs are searches supplied by a Provider. Each carries its own
	// lookback window; when set they replace Queries and LookbackMonths.
	Inputs []Input

	// SiteURL is the news site to search.
	SiteURL string

	// OutputDir receives results.xlsx, images/ and archive_images.
	// With more than one query every run gets its own subdirectory.
	OutputDir string

	// Headless hides the browser window.
	Headless bool

	// ResultsTimeout bounds the wait for the results indicator.
	ResultsTimeout time.Duration

	// ShowMoreTimeout bounds the look for the "show more" button.
	ShowMoreTimeout time.Duration

	// ActionTimeout is the default timeout of browser actions.
	ActionTimeout time.Duration

	// DownloadTimeout bounds each image download.
	DownloadTimeout time.Duration

	// MaxExpansions caps the number of "show more" clicks.
	MaxExpansions int

	// StallLimit ends expansion after this many unproductive clicks.
	StallLimit int

	// ProxyAddress is an optional SOCKS5 proxy ("host:port") for downloads.
	ProxyAddress string

	// UseTor starts a Tor daemon and sends image downloads through it.
	UseTor bool

	// TorStartupTimeout bounds the Tor bootstrap.
	TorStartupTimeout time.Duration

	// UserAgent is sent with image downloads and by the browser.
	UserAgent string

	// DownloadRate limits image downloads per second. Zero disables the limit.
	DownloadRate float64

	// Locators override the site selectors.
	Locators model.Locators

	// BrowserPath points at a system Chromium. Empty uses the bundled one.
	BrowserPath string

	// InstallDriver downloads the Playwright driver and Chromium before the run.
	InstallDriver bool

	// ReplayPages are saved HTML result pages to scrape instead of the live site.
	ReplayPages []string

	// Verbose enables debug logging.
	Verbose bool

	// BatchSize is the number of queries run concurrently.
	BatchSize int

	// ReportFormat is one of ReportText, ReportMarkdown or ReportJSON.
	ReportFormat string

	// ReportFile receives the run report instead of stdout when set.
	ReportFile string

	// ConfigFilePath is the configuration file. When empty, .newsharvest
	// is searched in the working directory and then the home directory.
	ConfigFilePath string

	// DBDir is where the run history database lives.
	DBDir string

	// SaveToDB stores each run report in the history database.
	SaveToDB bool
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		LookbackMonths:    DefaultLookbackMonths,
		SiteURL:           DefaultSiteURL,
		OutputDir:         DefaultOutputDir,
		Headless:          true,
		ResultsTimeout:    DefaultResultsTimeout,
		ShowMoreTimeout:   DefaultShowMoreTimeout,
		ActionTimeout:     DefaultActionTimeout,
		DownloadTimeout:   DefaultDownloadTimeout,
		MaxExpansions:     DefaultMaxExpansions,
		StallLimit:        DefaultStallLimit,
		UserAgent:         DefaultUserAgent,
		DownloadRate:      DefaultDownloadRate,
		TorStartupTimeout: DefaultTorStartupTimeout,
		Locators:          model.DefaultLocators(),
		BatchSize:         DefaultBatchSize,
		ReportFormat:      ReportText,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// ApplyFile copies every value set in f onto c.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	if s := strings.TrimSpace(f.SearchText); s != "" {
		c.Queries = []string{s}
	}
	if f.NoOfMonths != nil {
		c.LookbackMonths = *f.NoOfMonths
	}
	if f.SiteURL != "" {
		c.SiteURL = f.SiteURL
	}
	if f.OutputDir != "" {
		c.OutputDir = f.OutputDir
	}
	if f.Headless != nil {
		c.Headless = *f.Headless
	}
	if f.ResultsTimeout > 0 {
		c.ResultsTimeout = f.ResultsTimeout
	}
	if f.ShowMoreTimeout > 0 {
		c.ShowMoreTimeout = f.ShowMoreTimeout
	}
	if f.ActionTimeout > 0 {
		c.ActionTimeout = f.ActionTimeout
	}
	if f.DownloadTimeout > 0 {
		c.DownloadTimeout = f.DownloadTimeout
	}
	if f.MaxExpansions != nil {
		c.MaxExpansions = *f.MaxExpansions
	}
	if f.StallLimit != nil {
		c.StallLimit = *f.StallLimit
	}
	if f.Proxy != "" {
		c.ProxyAddress = f.Proxy
	}
	if f.Tor != nil {
		c.UseTor = *f.Tor
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.DownloadRate != nil {
		c.DownloadRate = *f.DownloadRate
	}
	if f.BrowserPath != "" {
		c.BrowserPath = f.BrowserPath
	}
	c.Locators = f.Locators.Merge(c.Locators)
}

// ApplyInputs replaces the queries with provider inputs. Every input keeps
// its own lookback window. LookbackMonths follows the inputs only when they
// all agree on it.
func (c *Config) ApplyInputs(inputs []Input) {
	if len(inputs) == 0 {
		return
	}
	c.Inputs = append([]Input(nil), inputs...)
	c.Queries = make([]string, 0, len(inputs))
	for _, in := range inputs {
		c.Queries = append(c.Queries, in.SearchText)
	}
	if !slices.ContainsFunc(inputs, func(in Input) bool {
		return in.NoOfMonths != inputs[0].NoOfMonths
	}) {
		c.LookbackMonths = inputs[0].NoOfMonths
	}
}

// Searches returns one Input per run: the provider inputs when present,
// otherwise every query paired with LookbackMonths.
func (c *Config) Searches() []Input {
	if len(c.Inputs) > 0 {
		return append([]Input(nil), c.Inputs...)
	}
	searches := make([]Input, 0, len(c.Queries))
	for _, q := range c.Queries {
		searches = append(searches, Input{SearchText: q, NoOfMonths: c.LookbackMonths})
	}
	return searches
}

// XDGDataDir returns the XDG data directory for newsharvest.
// On Linux: ~/.local/share/newsharvest
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for newsharvest.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for newsharvest.
// Browser downloads land here.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Queries) == 0 || slices.ContainsFunc(c.Queries, func(q string) bool {
		return strings.TrimSpace(q) == ""
	}) {
		return ErrNoQuery
	}
	if c.LookbackMonths < 0 || slices.ContainsFunc(c.Inputs, func(in Input) bool {
		return in.NoOfMonths < 0
	}) {
		return ErrNegativeMonths
	}

	u, err := url.Parse(c.SiteURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidSiteURL
	}

	if strings.TrimSpace(c.OutputDir) == "" {
		return ErrEmptyOutputDir
	}
	if c.ResultsTimeout <= 0 || c.ShowMoreTimeout <= 0 || c.ActionTimeout <= 0 || c.DownloadTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxExpansions <= 0 {
		return ErrInvalidMaxExpansions
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.DownloadRate < 0 {
		return ErrInvalidDownloadRate
	}
	if c.UseTor && c.ProxyAddress != "" {
		return ErrProxyConflict
	}
	if c.UseTor && c.TorStartupTimeout <= 0 {
		return ErrInvalidTimeout
	}

	switch c.ReportFormat {
	case ReportText, ReportMarkdown, ReportJSON:
	default:
		return ErrInvalidReportFormat
	}

	return nil
}
