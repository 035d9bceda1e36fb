// Package app assembles the runtime components around one store so that the
// HTTP API, the MCP server and the CLI share a single construction path.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/echobell/echobell/internal/classifier"
	"github.com/echobell/echobell/internal/doorbell"
	"github.com/echobell/echobell/internal/household"
	"github.com/echobell/echobell/internal/lifecycle"
	"github.com/echobell/echobell/internal/policy"
	"github.com/echobell/echobell/internal/rules"
	"github.com/echobell/echobell/internal/store"
	"github.com/echobell/echobell/internal/vision"
)

// ErrHouseholdReload marks a failed household reload inside Reload.
var ErrHouseholdReload = errors.New("household reload failed")

// Options configures the assembled components.
type Options struct {
	Classifier   classifier.Options
	DefaultModel string
	// PolicyPath selects a YAML policy file; empty uses the built-in document.
	PolicyPath string
	// EventRetention bounds the event log; zero keeps events forever.
	EventRetention time.Duration
}

// App holds the wired components.
type App struct {
	Store      store.Store
	Rules      *rules.Store
	Household  *household.Store
	Classifier *classifier.IntentClassifier
	Mapper     *vision.Mapper
	Policy     *policy.Engine
	Agent      *doorbell.Agent
	Lifecycle  *lifecycle.Manager

	logger *slog.Logger
}

// New wires components over st. It performs no I/O besides reading the policy file;
// call Reload to load rules and household state.
func New(st store.Store, opts Options, logger *slog.Logger) (*App, error) {
	engine, err := policy.Load(opts.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}

	rs := rules.New(st, logger)
	hs := household.NewStore(st, logger)
	cls := classifier.New(rs, opts.Classifier, logger)
	mapper := vision.NewMapper(rs, opts.DefaultModel, logger)

	return &App{
		Store:      st,
		Rules:      rs,
		Household:  hs,
		Classifier: cls,
		Mapper:     mapper,
		Policy:     engine,
		Agent:      doorbell.NewAgent(mapper, cls, engine, hs, st, logger),
		Lifecycle:  lifecycle.NewManager(st, opts.EventRetention, logger),
		logger:     logger,
	}, nil
}

// Reload refreshes the rule snapshot and the household snapshot.
// Both are attempted; errors are joined. A non-nil report means the new rule
// snapshot was published even when the error is non-nil.
func (a *App) Reload(ctx context.Context) (*rules.Report, error) {
	report, err := a.Rules.Reload(ctx)
	if _, herr := a.Household.Reload(ctx); herr != nil {
		a.logger.Error("household reload failed, keeping previous snapshot", "error", herr)
		err = errors.Join(err, fmt.Errorf("%w: %w", ErrHouseholdReload, herr))
	}
	return report, err
}
