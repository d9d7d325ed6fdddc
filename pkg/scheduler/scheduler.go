// Package scheduler runs the periodic maintenance that precedes up and run:
// image refresh, self-update, cache pruning and the template drift check.
package scheduler

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/obra/boxkit/pkg/drift"
	"github.com/obra/boxkit/pkg/staleness"
)

const (
	// DefaultInterval is how long a refresh stays valid
	DefaultInterval = 16 * time.Hour
	// DefaultRetention is how long untouched cache entries survive
	DefaultRetention = 30 * 24 * time.Hour
)

// ImageRefresher pulls newer images for a project
type ImageRefresher interface {
	RefreshImages(ctx context.Context, projectDir string) error
}

// ImageRefresherFunc adapts a function to ImageRefresher
type ImageRefresherFunc func(ctx context.Context, projectDir string) error

// RefreshImages calls f
func (f ImageRefresherFunc) RefreshImages(ctx context.Context, projectDir string) error {
	return f(ctx, projectDir)
}

// SelfUpdater brings the tool's own install up to date
type SelfUpdater interface {
	Update(ctx context.Context) error
}

// DriftChecker compares a project with its canonical template
type DriftChecker interface {
	Check(projectDir string) drift.Verdict
}

// Status categorizes what happened to one maintenance action
type Status int

const (
	// Skipped means the action did not run (fresh or disabled)
	Skipped Status = iota
	// Refreshed means the action ran and succeeded
	Refreshed
	// Failed means the action ran and returned an error
	Failed
)

func (s Status) String() string {
	switch s {
	case Refreshed:
		return "refreshed"
	case Failed:
		return "failed"
	default:
		return "skipped"
	}
}

// Outcome is the result of one maintenance action
type Outcome struct {
	Status Status
	Reason string // why it was skipped
	Err    error
}

// Options tunes the scheduler
type Options struct {
	Interval            time.Duration
	Retention           time.Duration
	DisableImageRefresh bool
	DisableSelfUpdate   bool
}

// Request names the keys and project for one invocation
type Request struct {
	ProjectKey string
	ToolKey    string
	ProjectDir string
}

// Report collects what MaybeRefresh did
type Report struct {
	Images     Outcome
	SelfUpdate Outcome
	Drift      drift.Verdict
	Pruned     int
}

// Scheduler decides which maintenance actions are due and runs them
type Scheduler struct {
	cache    *staleness.Cache
	images   ImageRefresher
	tool     SelfUpdater
	detector DriftChecker
	opts     Options
	logger   *slog.Logger
}

// New creates a scheduler. Zero durations in opts take the defaults; nil
// actions are always skipped.
func New(cache *staleness.Cache, images ImageRefresher, tool SelfUpdater, detector DriftChecker, opts Options, logger *slog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		cache:    cache,
		images:   images,
		tool:     tool,
		detector: detector,
		opts:     opts,
		logger:   logger,
	}
}

// MaybeRefresh runs every action whose key is stale. Action failures are
// logged and reported but never returned.
func (s *Scheduler) MaybeRefresh(ctx context.Context, req Request) Report {
	var report Report

	removed, err := s.cache.Prune(s.opts.Retention)
	if err != nil {
		s.logger.Warn("cache prune failed", "root", s.cache.Root(), "error", err)
	}
	report.Pruned = removed

	// One limit for both keys so they agree on "now".
	limit := s.cache.Limit(s.opts.Interval)

	report.Images = s.maybeRun(req.ProjectKey, limit, s.opts.DisableImageRefresh || s.images == nil, "image refresh", func() error {
		return s.images.RefreshImages(ctx, req.ProjectDir)
	})
	report.SelfUpdate = s.maybeRun(req.ToolKey, limit, s.opts.DisableSelfUpdate || s.tool == nil, "self-update", func() error {
		return s.tool.Update(ctx)
	})

	report.Drift = s.checkDrift(req.ProjectDir)
	return report
}

// Force runs both actions regardless of staleness and marks both keys.
func (s *Scheduler) Force(ctx context.Context, req Request) Report {
	var report Report
	report.Images = s.run(req.ProjectKey, s.images == nil, "image refresh", func() error {
		return s.images.RefreshImages(ctx, req.ProjectDir)
	})
	report.SelfUpdate = s.run(req.ToolKey, s.tool == nil, "self-update", func() error {
		return s.tool.Update(ctx)
	})
	report.Drift = s.checkDrift(req.ProjectDir)
	return report
}

func (s *Scheduler) maybeRun(key string, limit time.Time, disabled bool, name string, action func() error) Outcome {
	if disabled {
		return Outcome{Status: Skipped, Reason: "disabled"}
	}
	if key == "" {
		return Outcome{Status: Skipped, Reason: "no key"}
	}
	if !s.cache.StaleSince(key, limit) {
		s.logger.Debug("skipping fresh action", "action", name, "key", key)
		return Outcome{Status: Skipped, Reason: "fresh"}
	}
	return s.run(key, false, name, action)
}

func (s *Scheduler) run(key string, unavailable bool, name string, action func() error) Outcome {
	if unavailable {
		return Outcome{Status: Skipped, Reason: "disabled"}
	}
	if key == "" {
		return Outcome{Status: Skipped, Reason: "no key"}
	}

	// Marked before running so a failing action is not retried until the
	// interval passes again.
	if err := s.cache.MarkChecked(key); err != nil {
		s.logger.Warn("failed to record check", "key", key, "error", err)
	}

	s.logger.Info("running "+name, "key", key)
	if err := action(); err != nil {
		s.logger.Warn(name+" failed", "key", key, "error", err)
		return Outcome{Status: Failed, Err: err}
	}
	return Outcome{Status: Refreshed}
}

func (s *Scheduler) checkDrift(projectDir string) drift.Verdict {
	if s.detector == nil || projectDir == "" {
		return drift.Verdict{State: drift.Unknown, Reason: "no project"}
	}
	return s.detector.Check(projectDir)
}
