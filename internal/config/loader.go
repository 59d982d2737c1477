package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/newsharvest/internal/model"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".newsharvest"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the structure of the .newsharvest configuration file.
// Pointer fields distinguish "unset" from an explicit zero value.
type File struct {
	SearchText      string         `yaml:"search_text,omitempty"`
	NoOfMonths      *int           `yaml:"no_of_months,omitempty"`
	SiteURL         string         `yaml:"site_url,omitempty"`
	OutputDir       string         `yaml:"output_dir,omitempty"`
	Headless        *bool          `yaml:"headless,omitempty"`
	ResultsTimeout  time.Duration  `yaml:"results_timeout,omitempty"`
	ShowMoreTimeout time.Duration  `yaml:"show_more_timeout,omitempty"`
	ActionTimeout   time.Duration  `yaml:"action_timeout,omitempty"`
	DownloadTimeout time.Duration  `yaml:"download_timeout,omitempty"`
	MaxExpansions   *int           `yaml:"max_expansions,omitempty"`
	StallLimit      *int           `yaml:"stall_limit,omitempty"`
	Proxy           string         `yaml:"proxy,omitempty"`
	Tor             *bool          `yaml:"tor,omitempty"`
	UserAgent       string         `yaml:"user_agent,omitempty"`
	DownloadRate    *float64       `yaml:"download_rate,omitempty"`
	BrowserPath     string         `yaml:"browser_path,omitempty"`
	Locators        model.Locators `yaml:"locators,omitempty"`
}

// LoadConfigFile loads a configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .newsharvest in the current directory
// 3. Look for .newsharvest in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
