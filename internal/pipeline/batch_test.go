package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/newsharvest/internal/model"
)

func testJobs(t *testing.T, queries ...string) []Job {
	t.Helper()

	searches := make([]model.SearchConfig, 0, len(queries))
	for _, q := range queries {
		s, err := model.NewSearchConfig(q, 6, fixedNow)
		if err != nil {
			t.Fatalf("NewSearchConfig(%q) error = %v", q, err)
		}
		searches = append(searches, s)
	}
	return NewJobs(searches, "https://www.aljazeera.com", t.TempDir())
}

func factoryOf(build func() *Pipeline) Factory {
	return func(_ context.Context, _ Job) (*Pipeline, error) {
		return build(), nil
	}
}

// TestNewJobs tests output directory assignment.
func TestNewJobs(t *testing.T) {
	t.Parallel()

	t.Run("single query writes to the output directory", func(t *testing.T) {
		t.Parallel()

		search, err := model.NewSearchConfig("gaza", 6, fixedNow)
		if err != nil {
			t.Fatal(err)
		}
		jobs := NewJobs([]model.SearchConfig{search}, "https://site.test", "output")

		if len(jobs) != 1 {
			t.Fatalf("expected 1 job, got %d", len(jobs))
		}
		if jobs[0].OutputDir != "output" {
			t.Errorf("OutputDir = %q, want output", jobs[0].OutputDir)
		}
		if jobs[0].SiteURL != "https://site.test" {
			t.Errorf("SiteURL = %q", jobs[0].SiteURL)
		}
	})

	t.Run("several queries get numbered subdirectories", func(t *testing.T) {
		t.Parallel()

		var searches []model.SearchConfig
		for _, q := range []string{"Pakistan China economic corridor", "Gaza: aid, talks & ceasefire", "Gaza: aid, talks & ceasefire"} {
			s, err := model.NewSearchConfig(q, 6, fixedNow)
			if err != nil {
				t.Fatal(err)
			}
			searches = append(searches, s)
		}
		jobs := NewJobs(searches, "https://site.test", "output")

		want := []string{
			filepath.Join("output", "01-pakistan-china-economic-corridor"),
			filepath.Join("output", "02-gaza-aid-talks-ceasefire"),
			filepath.Join("output", "03-gaza-aid-talks-ceasefire"),
		}
		for i, job := range jobs {
			if job.OutputDir != want[i] {
				t.Errorf("jobs[%d].OutputDir = %q, want %q", i, job.OutputDir, want[i])
			}
		}
	})
}

// TestSlug tests directory names derived from queries.
func TestSlug(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  string
	}{
		{"Climate Change", "climate-change"},
		{"  café   prices  ", "caf-prices"},
		{"???", "query"},
		{"a-very-long-query-that-keeps-going-and-going-past-the-limit", "a-very-long-query-that-keeps-going-and-going-pas"},
	}
	for _, tt := range tests {
		if got := slug(tt.query); got != tt.want {
			t.Errorf("slug(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(factoryOf(func() *Pipeline { return New() }))

		if bp.concurrency != 1 {
			t.Errorf("expected default concurrency 1, got %d", bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("applies WithConcurrency option", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(factoryOf(func() *Pipeline { return New() }), WithConcurrency(5))

		if bp.concurrency != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(factoryOf(func() *Pipeline { return New() }), WithConcurrency(0))

		if bp.concurrency != 1 {
			t.Errorf("expected concurrency 1, got %d", bp.concurrency)
		}
	})

	t.Run("WithBatchLogger(nil) falls back to default", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(factoryOf(func() *Pipeline { return New() }), WithBatchLogger(nil))

		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})
}

// TestBatchProcessorProcessBatch tests batch processing.
func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("processes all queries in order", func(t *testing.T) {
		t.Parallel()

		var processed atomic.Int32
		bp := NewBatchProcessor(factoryOf(func() *Pipeline {
			p := New(WithLogger(quietLogger()))
			p.AddStep(&mockStep{
				name: "counter",
				doFunc: func(_ context.Context, _ *model.RunReport) error {
					processed.Add(1)
					return nil
				},
			})
			return p
		}), WithConcurrency(3), WithBatchLogger(quietLogger()))

		jobs := testJobs(t, "first", "second", "third")
		results, err := bp.ProcessBatch(context.Background(), jobs)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if processed.Load() != 3 {
			t.Errorf("expected 3 processed, got %d", processed.Load())
		}
		for i, r := range results {
			if r.Search.Query != jobs[i].Search.Query {
				t.Errorf("results[%d]: got %q, want %q", i, r.Search.Query, jobs[i].Search.Query)
			}
			if r.OutputDir != jobs[i].OutputDir {
				t.Errorf("results[%d].OutputDir = %q, want %q", i, r.OutputDir, jobs[i].OutputDir)
			}
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		var mu sync.Mutex

		bp := NewBatchProcessor(factoryOf(func() *Pipeline {
			p := New(WithLogger(quietLogger()))
			p.AddStep(&mockStep{
				name: "concurrent-counter",
				doFunc: func(_ context.Context, _ *model.RunReport) error {
					n := current.Add(1)
					mu.Lock()
					if n > peak.Load() {
						peak.Store(n)
					}
					mu.Unlock()
					time.Sleep(20 * time.Millisecond)
					current.Add(-1)
					return nil
				},
			})
			return p
		}), WithConcurrency(2), WithBatchLogger(quietLogger()))

		queries := make([]string, 8)
		for i := range queries {
			queries[i] = fmt.Sprintf("query %d", i)
		}
		if _, err := bp.ProcessBatch(context.Background(), testJobs(t, queries...)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("peak concurrency was %d, expected <= 2", peak.Load())
		}
	})

	t.Run("continues after individual failure", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(factoryOf(func() *Pipeline {
			p := New(WithLogger(quietLogger()))
			p.AddStep(&mockStep{
				name: "sometimes-fails",
				doFunc: func(_ context.Context, report *model.RunReport) error {
					if report.Search.Query == "fail" {
						return errors.New("simulated failure")
					}
					return nil
				},
			})
			return p
		}), WithBatchLogger(quietLogger()))

		results, err := bp.ProcessBatch(context.Background(), testJobs(t, "first", "fail", "third"))

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if results[1].Error == nil {
			t.Error("expected error in second result")
		}
		if results[0].Error != nil || results[2].Error != nil {
			t.Error("other queries should succeed")
		}
	})

	t.Run("records factory failure in the report", func(t *testing.T) {
		t.Parallel()

		errBrowser := errors.New("browser unavailable")
		bp := NewBatchProcessor(func(_ context.Context, _ Job) (*Pipeline, error) {
			return nil, errBrowser
		}, WithBatchLogger(quietLogger()))

		results, err := bp.ProcessBatch(context.Background(), testJobs(t, "gaza"))

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !errors.Is(results[0].Error, errBrowser) {
			t.Errorf("Error = %v, want %v", results[0].Error, errBrowser)
		}
		if results[0].FinishedAt.IsZero() {
			t.Error("FinishedAt should be set")
		}
	})

	t.Run("handles context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		var started atomic.Int32

		bp := NewBatchProcessor(factoryOf(func() *Pipeline {
			p := New(WithLogger(quietLogger()))
			p.AddStep(&mockStep{
				name: "slow-step",
				doFunc: func(ctx context.Context, _ *model.RunReport) error {
					started.Add(1)
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(time.Second):
						return nil
					}
				},
			})
			return p
		}), WithConcurrency(2), WithBatchLogger(quietLogger()))

		queries := make([]string, 10)
		for i := range queries {
			queries[i] = fmt.Sprintf("query %d", i)
		}

		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		_, err := bp.ProcessBatch(ctx, testJobs(t, queries...))

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		//nolint:gosec // len(queries) is small
		if started.Load() >= int32(len(queries)) {
			t.Error("expected some queries to not start due to cancellation")
		}
	})
}

// TestBatchProcessorProcessBatchWithCallback tests callback-based processing.
func TestBatchProcessorProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	received := make(map[int]string)

	bp := NewBatchProcessor(factoryOf(func() *Pipeline {
		p := New(WithLogger(quietLogger()))
		p.AddStep(&mockStep{name: "noop"})
		return p
	}), WithConcurrency(3), WithBatchLogger(quietLogger()))

	jobs := testJobs(t, "first", "second", "third")
	err := bp.ProcessBatchWithCallback(context.Background(), jobs, func(report *model.RunReport, index int) {
		mu.Lock()
		received[index] = report.Search.Query
		mu.Unlock()
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(received) != 3 {
		t.Fatalf("expected 3 callbacks, got %d", len(received))
	}
	for i, job := range jobs {
		if received[i] != job.Search.Query {
			t.Errorf("callback %d: got %q, want %q", i, received[i], job.Search.Query)
		}
	}
}
