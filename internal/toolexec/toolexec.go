// Package toolexec runs vendor command-line tools with an explicit argv and a
// bounded runtime. Nothing here goes through a shell.
package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/timeout"
	"github.com/sirupsen/logrus"

	"github.com/jacobarthurs/syswhy/internal/module"
)

type Runner interface {
	LookPath(name string) (string, error)
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type Exec struct {
	Timeout time.Duration
	Log     *logrus.Logger
}

func New(timeout time.Duration, log *logrus.Logger) *Exec {
	return &Exec{Timeout: timeout, Log: log}
}

func (e *Exec) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Output runs name with args and returns its stdout. A missing executable is
// reported as module.KindToolNotFound before anything is started.
func (e *Exec) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, &module.Error{Kind: module.KindToolNotFound, Op: name, Err: err}
	}

	start := time.Now()
	var out []byte
	if e.Timeout > 0 {
		policy := timeout.New[[]byte](e.Timeout)
		out, err = failsafe.With(policy).WithContext(ctx).GetWithExecution(func(execution failsafe.Execution[[]byte]) ([]byte, error) {
			return run(execution.Context(), path, args)
		})
	} else {
		out, err = run(ctx, path, args)
	}

	if e.Log != nil {
		e.Log.WithFields(logrus.Fields{
			"tool":     name,
			"args":     strings.Join(args, " "),
			"duration": time.Since(start).Round(time.Millisecond).String(),
			"ok":       err == nil,
		}).Debug("tool invocation")
	}

	if err != nil {
		if errors.Is(err, timeout.ErrExceeded) {
			return nil, fmt.Errorf("%s: timed out after %s", name, e.Timeout)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func run(ctx context.Context, path string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if isPermissionMessage(msg) {
			return nil, &module.Error{Kind: module.KindPermissionDenied, Err: errors.New(msg)}
		}
		if msg != "" {
			return nil, fmt.Errorf("%w: %s", err, firstLine(msg))
		}
		return nil, err
	}
	return out, nil
}

func isPermissionMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "permission denied") || strings.Contains(lower, "operation not permitted")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Available reports whether name resolves on PATH.
func Available(r Runner, name string) bool {
	_, err := r.LookPath(name)
	return err == nil
}
