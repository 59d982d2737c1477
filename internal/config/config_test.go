package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/newsharvest/internal/model"
)

// TestNewConfig verifies the documented defaults.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default lookback is 6 months", func(t *testing.T) {
		t.Parallel()
		if cfg.LookbackMonths != 6 {
			t.Errorf("expected LookbackMonths to be 6, got %d", cfg.LookbackMonths)
		}
	})

	t.Run("default site is Al Jazeera", func(t *testing.T) {
		t.Parallel()
		if cfg.SiteURL != "https://www.aljazeera.com" {
			t.Errorf("unexpected SiteURL %q", cfg.SiteURL)
		}
	})

	t.Run("default results timeout is 20 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.ResultsTimeout != 20*time.Second {
			t.Errorf("expected ResultsTimeout to be 20s, got %v", cfg.ResultsTimeout)
		}
	})

	t.Run("default max expansions is 100", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxExpansions != 100 {
			t.Errorf("expected MaxExpansions to be 100, got %d", cfg.MaxExpansions)
		}
	})

	t.Run("default output is ./output", func(t *testing.T) {
		t.Parallel()
		if cfg.OutputDir != "output" {
			t.Errorf("expected OutputDir to be output, got %q", cfg.OutputDir)
		}
	})

	t.Run("default locators are set", func(t *testing.T) {
		t.Parallel()
		if cfg.Locators != model.DefaultLocators() {
			t.Error("expected default locators")
		}
	})

	t.Run("no query by default", func(t *testing.T) {
		t.Parallel()
		if len(cfg.Queries) != 0 {
			t.Errorf("expected no queries, got %v", cfg.Queries)
		}
	})
}

// TestConfigValidate tests one validation rule per case.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := NewConfig()
		cfg.Queries = []string{"gaza"}
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "valid config", modify: func(*Config) {}, wantErr: nil},
		{name: "zero months is allowed", modify: func(c *Config) { c.LookbackMonths = 0 }, wantErr: nil},
		{name: "no query", modify: func(c *Config) { c.Queries = nil }, wantErr: ErrNoQuery},
		{name: "blank query", modify: func(c *Config) { c.Queries = []string{"a", "  "} }, wantErr: ErrNoQuery},
		{name: "negative months", modify: func(c *Config) { c.LookbackMonths = -1 }, wantErr: ErrNegativeMonths},
		{name: "relative site url", modify: func(c *Config) { c.SiteURL = "/search" }, wantErr: ErrInvalidSiteURL},
		{name: "ftp site url", modify: func(c *Config) { c.SiteURL = "ftp://example.com" }, wantErr: ErrInvalidSiteURL},
		{name: "empty output", modify: func(c *Config) { c.OutputDir = " " }, wantErr: ErrEmptyOutputDir},
		{name: "zero results timeout", modify: func(c *Config) { c.ResultsTimeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "zero show more timeout", modify: func(c *Config) { c.ShowMoreTimeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "negative download timeout", modify: func(c *Config) { c.DownloadTimeout = -time.Second }, wantErr: ErrInvalidTimeout},
		{name: "zero max expansions", modify: func(c *Config) { c.MaxExpansions = 0 }, wantErr: ErrInvalidMaxExpansions},
		{name: "zero batch size", modify: func(c *Config) { c.BatchSize = 0 }, wantErr: ErrInvalidBatchSize},
		{name: "negative download rate", modify: func(c *Config) { c.DownloadRate = -1 }, wantErr: ErrInvalidDownloadRate},
		{name: "unknown report format", modify: func(c *Config) { c.ReportFormat = "pdf" }, wantErr: ErrInvalidReportFormat},
		{name: "proxy with tor", modify: func(c *Config) { c.UseTor = true; c.ProxyAddress = "127.0.0.1:9050" }, wantErr: ErrProxyConflict},
		{name: "tor without startup timeout", modify: func(c *Config) { c.UseTor = true; c.TorStartupTimeout = 0 }, wantErr: ErrInvalidTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.newsharvest")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".newsharvest")
		content := `search_text: "climate summit"
no_of_months: 0
headless: false
results_timeout: 45s
show_more_timeout: 2s
max_expansions: 12
proxy: "127.0.0.1:1080"
locators:
  show_more: "button.load-more"
`
		if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		f, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg := NewConfig()
		cfg.ApplyFile(f)

		if len(cfg.Queries) != 1 || cfg.Queries[0] != "climate summit" {
			t.Errorf("unexpected queries %v", cfg.Queries)
		}
		if cfg.LookbackMonths != 0 {
			t.Errorf("expected explicit zero months, got %d", cfg.LookbackMonths)
		}
		if cfg.Headless {
			t.Error("expected headless to be disabled")
		}
		if cfg.ResultsTimeout != 45*time.Second {
			t.Errorf("expected 45s, got %v", cfg.ResultsTimeout)
		}
		if cfg.ShowMoreTimeout != 2*time.Second {
			t.Errorf("expected 2s, got %v", cfg.ShowMoreTimeout)
		}
		if cfg.MaxExpansions != 12 {
			t.Errorf("expected 12, got %d", cfg.MaxExpansions)
		}
		if cfg.ProxyAddress != "127.0.0.1:1080" {
			t.Errorf("unexpected proxy %q", cfg.ProxyAddress)
		}
		if cfg.Locators.ShowMore != "button.load-more" {
			t.Errorf("expected overridden locator, got %q", cfg.Locators.ShowMore)
		}
		if cfg.Locators.ResultItem != model.DefaultLocators().ResultItem {
			t.Error("expected other locators to keep their defaults")
		}
		if cfg.SiteURL != DefaultSiteURL {
			t.Error("expected unset values to keep their defaults")
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".newsharvest")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("nil file is ignored", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ApplyFile(nil)
		if cfg.LookbackMonths != DefaultLookbackMonths {
			t.Error("expected defaults to be kept")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("search_text: x"), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{
		"data":   XDGDataDir(),
		"config": XDGConfigDir(),
		"cache":  XDGCacheDir(),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if !strings.HasSuffix(dir, AppName) {
				t.Errorf("expected %s dir to end with %s, got %q", name, AppName, dir)
			}
		})
	}
}

// TestApplyInputs tests replacing queries with provider inputs.
func TestApplyInputs(t *testing.T) {
	t.Parallel()

	t.Run("every input keeps its own window", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Queries = []string{"from file"}
		cfg.LookbackMonths = 4
		cfg.ApplyInputs([]Input{{SearchText: "a", NoOfMonths: 1}, {SearchText: "b", NoOfMonths: 12}})

		if strings.Join(cfg.Queries, ",") != "a,b" {
			t.Errorf("unexpected queries %v", cfg.Queries)
		}
		got := cfg.Searches()
		if len(got) != 2 || got[0].NoOfMonths != 1 || got[1].NoOfMonths != 12 {
			t.Errorf("Searches() = %+v, want a with 1 month and b with 12", got)
		}
		if cfg.LookbackMonths != 4 {
			t.Errorf("expected LookbackMonths to stay 4 for differing inputs, got %d", cfg.LookbackMonths)
		}
	})

	t.Run("agreeing inputs set the window", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ApplyInputs([]Input{{SearchText: "a", NoOfMonths: 2}, {SearchText: "b", NoOfMonths: 2}})
		if cfg.LookbackMonths != 2 {
			t.Errorf("expected LookbackMonths 2, got %d", cfg.LookbackMonths)
		}
	})

	t.Run("empty inputs are ignored", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Queries = []string{"from file"}
		cfg.ApplyInputs(nil)
		if len(cfg.Queries) != 1 || len(cfg.Inputs) != 0 {
			t.Errorf("expected config unchanged, got %v %v", cfg.Queries, cfg.Inputs)
		}
	})

	t.Run("negative input window is invalid", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ApplyInputs([]Input{{SearchText: "a", NoOfMonths: 3}, {SearchText: "b", NoOfMonths: -1}})
		if err := cfg.Validate(); !errors.Is(err, ErrNegativeMonths) {
			t.Errorf("expected ErrNegativeMonths, got %v", err)
		}
	})
}

// TestSearches tests pairing configured queries with the lookback window.
func TestSearches(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.Queries = []string{"x", "y"}
	cfg.LookbackMonths = 5

	got := cfg.Searches()
	want := []Input{{SearchText: "x", NoOfMonths: 5}, {SearchText: "y", NoOfMonths: 5}}
	if len(got) != len(want) {
		t.Fatalf("Searches() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Searches()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

// TestWorkItemProvider tests the accepted work item layouts.
func TestWorkItemProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    []Input
		wantErr error
	}{
		{
			name:    "list of work items",
			content: `[{"payload": {"search_text": " gaza ", "no_of_months": 2}, "files": {}}, {"payload": {"search_text": "sudan", "no_of_months": 1}}]`,
			want:    []Input{{SearchText: "gaza", NoOfMonths: 2}, {SearchText: "sudan", NoOfMonths: 1}},
		},
		{
			name:    "single work item",
			content: `{"payload": {"search_text": "gaza", "no_of_months": 3}}`,
			want:    []Input{{SearchText: "gaza", NoOfMonths: 3}},
		},
		{
			name:    "bare payload",
			content: `{"search_text": "gaza", "no_of_months": 4}`,
			want:    []Input{{SearchText: "gaza", NoOfMonths: 4}},
		},
		{
			name:    "items without search text",
			content: `[{"payload": {"no_of_months": 4}}, {"files": {}}]`,
			wantErr: ErrNoWorkItem,
		},
		{
			name:    "not json",
			content: `search_text=gaza`,
			wantErr: ErrNoWorkItem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "work-items.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("failed to write work item: %v", err)
			}

			got, err := NewWorkItemProvider(path, nil).Inputs(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d inputs, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("input %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		if _, err := NewWorkItemProvider(filepath.Join(t.TempDir(), "none.json"), nil).Inputs(context.Background()); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

// TestProviderFromEnv tests provider selection by environment.
func TestProviderFromEnv(t *testing.T) {
	t.Parallel()

	static := NewStaticProvider(Input{SearchText: DefaultSearchText, NoOfMonths: DefaultLookbackMonths})
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}

	t.Run("static outside production", func(t *testing.T) {
		t.Parallel()

		p, err := ProviderFromEnv(env(nil), static, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		inputs, err := p.Inputs(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(inputs) != 1 || inputs[0].SearchText != DefaultSearchText {
			t.Errorf("unexpected inputs %v", inputs)
		}
	})

	t.Run("work item in production", func(t *testing.T) {
		t.Parallel()

		p, err := ProviderFromEnv(env(map[string]string{
			EnvironmentVar:  ProductionEnvironment,
			WorkItemPathVar: "/tmp/items.json",
		}), static, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := p.(*WorkItemProvider); !ok {
			t.Errorf("expected *WorkItemProvider, got %T", p)
		}
	})

	t.Run("production without a path", func(t *testing.T) {
		t.Parallel()

		_, err := ProviderFromEnv(env(map[string]string{EnvironmentVar: ProductionEnvironment}), static, nil)
		if !errors.Is(err, ErrWorkItemPathUnset) {
			t.Errorf("expected ErrWorkItemPathUnset, got %v", err)
		}
	})
}
