// Package runner executes modules: one at a time, all at once, or repeatedly
// in watch mode.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jacobarthurs/syswhy/internal/logging"
	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
)

const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Outcome is the result of one module invocation. Report is nil when the
// module failed or was skipped.
type Outcome struct {
	Module     string
	Report     *report.Report
	Err        error
	Skipped    bool
	SkipReason string
	Missing    []module.Permission
	Duration   time.Duration
}

func (o Outcome) Status() string {
	switch {
	case o.Skipped:
		return StatusSkipped
	case o.Err != nil || o.Report == nil:
		return StatusFailed
	default:
		return StatusOK
	}
}

type Runner struct {
	Log         *logrus.Logger
	Permissions module.Checker
}

func New(log *logrus.Logger) *Runner {
	if log == nil {
		log = logging.Discard
	}
	return &Runner{Log: log, Permissions: module.HostChecker}
}

// RunOne runs m unless it reports itself unavailable. Missing permissions are
// recorded on the outcome; the module still runs and degrades on its own.
// Cancelling ctx does not interrupt a module that has started; its values are
// still passed through.
func (r *Runner) RunOne(ctx context.Context, m module.Module, cfg module.Config) Outcome {
	name := m.Name()
	log := r.Log.WithField("module", name)

	if !m.IsAvailable() {
		log.Debug("module unavailable, skipping")
		return Outcome{Module: name, Skipped: true, SkipReason: "not available on this system"}
	}

	out := Outcome{Module: name}
	if r.Permissions.Euid != nil {
		out.Missing = r.Permissions.Missing(m.RequiredPermissions())
		if len(out.Missing) > 0 {
			log.WithField("missing", out.Missing).Info("running without required permissions")
		}
	}

	log.Debug("module started")
	start := time.Now()
	out.Report, out.Err = safeRun(context.WithoutCancel(ctx), m, cfg)
	out.Duration = time.Since(start)

	if out.Err == nil && out.Report == nil {
		out.Err = fmt.Errorf("%s returned neither a report nor an error", name)
	}
	if out.Err != nil {
		out.Report = nil
		log.WithError(out.Err).WithField("duration", out.Duration).Warn("module failed")
		return out
	}
	if !out.Report.Finalized() {
		out.Report.Finalize()
	}
	log.WithFields(logrus.Fields{
		"duration": out.Duration,
		"severity": out.Report.OverallSeverity,
	}).Debug("module finished")
	return out
}

func safeRun(ctx context.Context, m module.Module, cfg module.Config) (rep *report.Report, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			rep = nil
			err = &module.Error{
				Kind: module.KindInternal,
				Op:   m.Name(),
				Err:  fmt.Errorf("panic: %v\n%s", rec, debug.Stack()),
			}
		}
	}()
	return m.Run(ctx, cfg)
}

// RunAll runs every module concurrently. Outcomes keep the order of mods, and
// a failing or panicking module never affects its siblings.
func (r *Runner) RunAll(ctx context.Context, mods []module.Module, cfg module.Config) []Outcome {
	outcomes := make([]Outcome, len(mods))

	var g errgroup.Group
	for i, m := range mods {
		g.Go(func() error {
			outcomes[i] = r.RunOne(ctx, m, cfg)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Succeeded counts outcomes that produced a report.
func Succeeded(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Report != nil {
			n++
		}
	}
	return n
}

// Failed counts outcomes whose module returned an error or panicked.
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Status() == StatusFailed {
			n++
		}
	}
	return n
}

// ErrNoReports is returned by the CLI when an all-modules run had failures and
// produced no report.
var ErrNoReports = errors.New("no module produced a report")
