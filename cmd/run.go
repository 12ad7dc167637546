/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/jacobarthurs/syswhy/internal/compare"
	"github.com/jacobarthurs/syswhy/internal/config"
	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/output"
	"github.com/jacobarthurs/syswhy/internal/probes"
	"github.com/jacobarthurs/syswhy/internal/report"
	"github.com/jacobarthurs/syswhy/internal/runner"
	"github.com/jacobarthurs/syswhy/internal/toolexec"
)

// addRunFlags registers the flags shared by every command that runs probes.
func addRunFlags(fs *pflag.FlagSet) {
	fs.BoolP("watch", "w", false, "Re-run continuously until interrupted")
	fs.Int("interval", int(module.DefaultInterval/time.Second), "Seconds between watch iterations")
	fs.Int("top", module.DefaultTopN, "Number of top processes, files or units to list")
	fs.Int("count", 0, "Stop watching after this many iterations (0 = forever)")
	fs.String("prom-textfile", "", "Also write metrics to this file for the node_exporter textfile collector")
}

type session struct {
	file    *config.Config
	cfg     module.Config
	mods    []module.Module
	runner  *runner.Runner
	watch   runner.WatchOptions
	present *presenter
}

// newSession loads the config file, applies the command's flags over it and
// builds the probes against the live host.
func newSession(cmd *cobra.Command) (*session, error) {
	file, err := config.Load()
	if err != nil {
		return nil, err
	}

	cfg := module.DefaultConfig()
	file.Apply(&cfg)
	cfg.Verbose = globals.verbose
	cfg.JSONOutput = globals.json

	fs := cmd.Flags()
	if fs.Changed("interval") {
		secs, _ := fs.GetInt("interval")
		if secs <= 0 {
			return nil, fmt.Errorf("--interval must be a positive number of seconds, got %d", secs)
		}
		cfg.Interval = time.Duration(secs) * time.Second
	}
	if fs.Changed("top") {
		cfg.TopN, _ = fs.GetInt("top")
	}
	count, _ := fs.GetInt("count")
	if count < 0 {
		return nil, fmt.Errorf("--count must not be negative, got %d", count)
	}
	watch, _ := fs.GetBool("watch")
	cfg.Watch = watch || count > 0
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tools := toolexec.New(cfg.ToolTimeout, log)
	env := probes.HostEnv(tools, log)
	promPath, _ := fs.GetString("prom-textfile")

	log.WithField("interval", cfg.Interval).WithField("top", cfg.TopN).Debug("configuration resolved")

	return &session{
		file:    file,
		cfg:     cfg,
		mods:    probes.All(env),
		runner:  runner.New(log),
		watch:   runner.WatchOptions{Interval: cfg.Interval, Limit: count},
		present: newPresenter(os.Stdout, promPath, cfg.Watch),
	}, nil
}

// presenter renders outcomes in the selected format and keeps the previous
// iteration for watch-mode change summaries.
type presenter struct {
	w        io.Writer
	json     bool
	text     *output.Text
	promPath string
	clear    func()

	cmp  *compare.Comparator
	prev []*report.Report
}

func newPresenter(w *os.File, promPath string, watch bool) *presenter {
	return buildPresenter(w, term.IsTerminal(int(w.Fd())), promPath, watch)
}

func buildPresenter(w io.Writer, tty bool, promPath string, watch bool) *presenter {
	txt := output.NewText(w, tty && !globals.noColor)
	txt.Verbose = globals.verbose

	p := &presenter{
		w:        w,
		json:     globals.json,
		text:     txt,
		promPath: promPath,
		cmp:      compare.New(),
		clear:    func() {},
	}
	if watch && tty && !globals.json {
		out := termenv.NewOutput(w)
		p.clear = out.ClearScreen
	}
	return p
}

func reports(outcomes []runner.Outcome) []*report.Report {
	var out []*report.Report
	for _, o := range outcomes {
		if o.Report != nil {
			out = append(out, o.Report)
		}
	}
	return out
}

func (p *presenter) exportProm(outcomes []runner.Outcome) {
	if p.promPath == "" {
		return
	}
	if err := output.WriteTextfile(p.promPath, reports(outcomes)); err != nil {
		log.WithError(err).WithField("path", p.promPath).Error("writing prometheus textfile")
	}
}

// single renders the outcome of one module.
func (p *presenter) single(iteration int, o runner.Outcome) error {
	p.exportProm([]runner.Outcome{o})
	if p.json {
		switch o.Status() {
		case runner.StatusOK:
			return output.RenderJSON(p.w, o.Report)
		case runner.StatusSkipped:
			fmt.Fprintf(os.Stderr, "%s: skipped: %s\n", o.Module, o.SkipReason)
		}
		return nil
	}

	if iteration > 0 {
		p.clear()
	}
	if o.Status() == runner.StatusFailed {
		// Reported by the caller.
		return nil
	}
	if err := p.text.Outcomes([]runner.Outcome{o}); err != nil {
		return err
	}
	return p.changes(iteration, o)
}

// all renders an all-modules run.
func (p *presenter) all(iteration int, started time.Time, outcomes []runner.Outcome) error {
	p.exportProm(outcomes)
	if p.json {
		return output.RenderJSON(p.w, output.NewEnvelope(started, outcomes))
	}
	if iteration > 0 {
		p.clear()
	}
	if err := p.text.Outcomes(outcomes); err != nil {
		return err
	}
	return p.changes(iteration, outcomes...)
}

func (p *presenter) changes(iteration int, outcomes ...runner.Outcome) error {
	cur := reports(outcomes)
	defer func() { p.prev = cur }()
	if iteration == 0 {
		return nil
	}
	fmt.Fprintln(p.w)
	return p.text.Changes(p.cmp.CompareAll(p.prev, cur))
}

// runSingle runs one module once or in watch mode. Only a failed run of a
// one-shot invocation is an error.
func runSingle(ctx context.Context, s *session, m module.Module) error {
	if !s.cfg.Watch {
		o := s.runner.RunOne(ctx, m, s.cfg)
		if err := s.present.single(0, o); err != nil {
			return err
		}
		if o.Status() == runner.StatusFailed {
			return fmt.Errorf("%s: %w", o.Module, o.Err)
		}
		return nil
	}

	step := func(ctx context.Context) []runner.Outcome {
		return []runner.Outcome{s.runner.RunOne(ctx, m, s.cfg)}
	}
	return runner.Watch(ctx, s.watch, step, func(i int, outcomes []runner.Outcome) error {
		o := outcomes[0]
		if o.Status() == runner.StatusFailed {
			fmt.Fprintf(os.Stderr, "%s: %v\n", o.Module, o.Err)
		}
		return s.present.single(i, o)
	})
}

// runAll runs mods concurrently once or in watch mode. A one-shot run fails
// only when some module failed and none produced a report; a run where every
// module was skipped is not an error.
func runAll(ctx context.Context, s *session, mods []module.Module) error {
	if !s.cfg.Watch {
		started := time.Now()
		outcomes := s.runner.RunAll(ctx, mods, s.cfg)
		if err := s.present.all(0, started, outcomes); err != nil {
			return err
		}
		if runner.Succeeded(outcomes) == 0 && runner.Failed(outcomes) > 0 {
			return runner.ErrNoReports
		}
		return nil
	}

	var started time.Time
	step := func(ctx context.Context) []runner.Outcome {
		started = time.Now()
		return s.runner.RunAll(ctx, mods, s.cfg)
	}
	return runner.Watch(ctx, s.watch, step, func(i int, outcomes []runner.Outcome) error {
		return s.present.all(i, started, outcomes)
	})
}
