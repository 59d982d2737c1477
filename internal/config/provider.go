package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const (
	// EnvironmentVar selects the input provider. "PROD" reads a work item.
	EnvironmentVar = "environment"

	// ProductionEnvironment is the EnvironmentVar value that enables work items.
	ProductionEnvironment = "PROD"

	// WorkItemPathVar points at the JSON file holding the input work item.
	WorkItemPathVar = "RPA_INPUT_WORKITEM_PATH"
)

var (
	// ErrNoWorkItem is returned when the work item file holds no usable payload.
	ErrNoWorkItem = errors.New("no input work item")

	// ErrWorkItemPathUnset is returned in production when WorkItemPathVar is empty.
	ErrWorkItemPathUnset = errors.New(WorkItemPathVar + " is not set")
)

// Input is one search request: the text to search for and the lookback window.
type Input struct {
	SearchText string `json:"search_text"`
	NoOfMonths int    `json:"no_of_months"`
}

// Provider supplies search inputs.
type Provider interface {
	Inputs(ctx context.Context) ([]Input, error)
}

// StaticProvider returns fixed inputs.
type StaticProvider struct {
	inputs []Input
}

// NewStaticProvider returns a provider for the given inputs.
func NewStaticProvider(inputs ...Input) *StaticProvider {
	return &StaticProvider{inputs: inputs}
}

// Inputs returns the configured inputs.
func (p *StaticProvider) Inputs(_ context.Context) ([]Input, error) {
	return append([]Input(nil), p.inputs...), nil
}

// WorkItemProvider reads inputs from a work item JSON file. The file may hold
// a list of work items, a single work item, or a bare payload:
//
//	[{"payload": {"search_text": "...", "no_of_months": 3}}]
//	{"payload": {"search_text": "...", "no_of_months": 3}}
//	{"search_text": "...", "no_of_months": 3}
type WorkItemProvider struct {
	path   string
	logger *slog.Logger
}

// NewWorkItemProvider returns a provider reading path.
func NewWorkItemProvider(path string, logger *slog.Logger) *WorkItemProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkItemProvider{path: path, logger: logger}
}

type workItem struct {
	Payload *Input `json:"payload"`
}

// Inputs parses the work item file.
func (p *WorkItemProvider) Inputs(ctx context.Context) ([]Input, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.logger.Info("reading input work item", "path", p.path)
	data, err := os.ReadFile(p.path) //nolint:gosec // path comes from the robot environment
	if err != nil {
		return nil, fmt.Errorf("failed to read work item: %w", err)
	}

	inputs, err := parseWorkItems(data)
	if err != nil {
		return nil, err
	}
	p.logger.Info("connected to production environment", "items", len(inputs))
	return inputs, nil
}

func parseWorkItems(data []byte) ([]Input, error) {
	trimmed := strings.TrimSpace(string(data))
	var items []workItem

	switch {
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("invalid work item list: %w", err)
		}
	case strings.HasPrefix(trimmed, "{"):
		var item workItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("invalid work item: %w", err)
		}
		if item.Payload == nil {
			var bare Input
			if err := json.Unmarshal(data, &bare); err != nil {
				return nil, fmt.Errorf("invalid work item payload: %w", err)
			}
			item.Payload = &bare
		}
		items = []workItem{item}
	default:
		return nil, ErrNoWorkItem
	}

	var inputs []Input
	for _, item := range items {
		if item.Payload == nil || strings.TrimSpace(item.Payload.SearchText) == "" {
			continue
		}
		inputs = append(inputs, Input{
			SearchText: strings.TrimSpace(item.Payload.SearchText),
			NoOfMonths: item.Payload.NoOfMonths,
		})
	}
	if len(inputs) == 0 {
		return nil, ErrNoWorkItem
	}
	return inputs, nil
}

// ProviderFromEnv picks the work item provider when the environment variable
// is "PROD" and fallback otherwise.
func ProviderFromEnv(getenv func(string) string, fallback Provider, logger *slog.Logger) (Provider, error) {
	if getenv(EnvironmentVar) != ProductionEnvironment {
		return fallback, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("starting production environment")

	path := getenv(WorkItemPathVar)
	if path == "" {
		return nil, ErrWorkItemPathUnset
	}
	return NewWorkItemProvider(path, logger), nil
}
