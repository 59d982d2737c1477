package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/nao1215/newsharvest/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the report
// filled in by the previous steps.
//
// Design decision: Step is an interface rather than a function type so a
// step can carry its own collaborators. ScrapeStep owns the browser session
// and the scraper options, ExportStep owns the spreadsheet sink, and Name()
// gives every log line of the run a stable step label.
type Step interface {
	// Do executes the pipeline step.
	// Non-critical problems (a missing image, an empty result set) are
	// recorded in the report and Do returns nil.
	Do(ctx context.Context, report *model.RunReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool

	// closer is released once Execute returns, whatever the outcome.
	closer io.Closer
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. The last error is still recorded in the report.
//
// Design decision: The default stops at the first failure. A failed scrape
// leaves nothing worth exporting, and exporting an empty spreadsheet over
// the results of an earlier run loses data. Continuing is useful when the
// archive step should still collect whatever images were downloaded.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// WithCloser registers a resource, usually the browser session, that
// Execute closes after the last step.
//
// Design decision: The session is opened by the pipeline factory but used
// by several steps, so no single step can close it. Handing it to the
// pipeline ties its lifetime to Execute: it is closed once, after the last
// step, on success, failure and cancellation alike. A Chromium process is
// never left behind when a batch job is cancelled between steps.
func WithCloser(c io.Closer) Option {
	return func(p *Pipeline) {
		p.closer = c
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:           make([]Step, 0),
		continueOnError: false,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
//
// Cancellation is checked before each step; a running step handles its
// own timeouts. Execute returns the first error encountered unless
// continueOnError is set. Either way the error is recorded in the report
// and FinishedAt is stamped before returning.
func (p *Pipeline) Execute(ctx context.Context, report *model.RunReport) error {
	defer func() {
		report.FinishedAt = time.Now()
		p.release()
	}()

	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			report.Error = ctx.Err()
			report.ErrorMessage = ctx.Err().Error()
			return ctx.Err()
		default:
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"query", report.Search.Query,
		)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"query", report.Search.Query,
				"error", err,
			)

			report.Error = err
			report.ErrorMessage = err.Error()

			if !p.continueOnError {
				return err
			}
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"query", report.Search.Query,
			)
		}

		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}

	return nil
}

func (p *Pipeline) release() {
	if p.closer == nil {
		return
	}
	if err := p.closer.Close(); err != nil {
		p.logger.Warn("failed to close pipeline resource", "error", err)
	}
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
