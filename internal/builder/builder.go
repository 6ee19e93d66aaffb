// Package builder implements AI-assisted build generation: budget-filtered
// candidate retrieval, reference-build lookup, the completion call, and
// deterministic reconciliation of the model's answer against live catalog
// prices.
package builder

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rigforge/rigforge/internal/model"
	"github.com/rigforge/rigforge/internal/resilience"
	"github.com/rigforge/rigforge/internal/store"
	"github.com/rigforge/rigforge/pkg/anthropic"
)

// ErrNotConfigured is returned when the completion service is disabled or has
// no API key. Callers surface it as a setup problem, not a transient failure.
var ErrNotConfigured = eris.New("builder: completion service not configured")

// Catalog is the subset of the store the builder reads. No writes happen here;
// persisting a generated build is the caller's job.
type Catalog interface {
	ListHardware(ctx context.Context, filter store.HardwareFilter) ([]model.HardwareItem, error)
	GetHardware(ctx context.Context, id string) (*model.HardwareItem, error)
	ListReferenceBuilds(ctx context.Context, minPrice, maxPrice float64, limit int) ([]model.BuildConfig, error)
}

// Options tunes the generation pipeline. Zero values fall back to defaults.
type Options struct {
	Timeout       time.Duration // per-request deadline, default 60s
	MaxCandidates int           // per-category cap, default 8
	MaxReferences int           // reference builds, default 3
	DefaultBudget float64       // when no budget can be extracted, default 6000
	BudgetOverrun float64       // allowed total overage fraction, default 0.10
	Retry         resilience.RetryConfig
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = 8
	}
	if o.MaxReferences <= 0 {
		o.MaxReferences = 3
	}
	if o.DefaultBudget <= 0 {
		o.DefaultBudget = 6000
	}
	if o.BudgetOverrun <= 0 {
		o.BudgetOverrun = 0.10
	}
	if o.Retry.MaxAttempts == 0 {
		o.Retry = resilience.DefaultRetryConfig()
	}
	return o
}

// Builder generates machine configurations. Settings are read once by the
// caller and fixed at construction; the builder never queries settings state.
type Builder struct {
	catalog  Catalog
	client   anthropic.Client
	settings model.AISettings
	opts     Options
}

// New creates a Builder. client may be nil when settings are not configured;
// Generate then fails with ErrNotConfigured before touching it.
func New(catalog Catalog, client anthropic.Client, settings model.AISettings, opts Options) *Builder {
	return &Builder{
		catalog:  catalog,
		client:   client,
		settings: settings,
		opts:     opts.withDefaults(),
	}
}

// GenerateRequest is the inbound generation request.
type GenerateRequest struct {
	Prompt     string  `json:"prompt"`
	Budget     float64 `json:"budget,omitempty"`
	Usage      string  `json:"usage,omitempty"`
	Appearance string  `json:"appearance,omitempty"`
}
