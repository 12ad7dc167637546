// Package backend resolves a value through an ordered chain of collectors,
// falling through to the next one when a collector fails.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jacobarthurs/syswhy/internal/module"
)

type Backend[T, R any] interface {
	Name() string
	Collect(ctx context.Context, target T) (R, error)
}

// Func adapts a function to Backend.
type Func[T, R any] struct {
	ID string
	Fn func(ctx context.Context, target T) (R, error)
}

func (f Func[T, R]) Name() string { return f.ID }

func (f Func[T, R]) Collect(ctx context.Context, target T) (R, error) {
	return f.Fn(ctx, target)
}

type Attempt struct {
	Backend string
	Err     error
}

type Resolution struct {
	Winner   string
	Attempts []Attempt
}

// Failures lists "backend: reason" for every failed attempt.
func (r Resolution) Failures() []string {
	var out []string
	for _, a := range r.Attempts {
		if a.Err != nil {
			out = append(out, fmt.Sprintf("%s: %v", a.Backend, a.Err))
		}
	}
	return out
}

type Chain[T, R any] []Backend[T, R]

func (c Chain[T, R]) Names() []string {
	names := make([]string, len(c))
	for i, b := range c {
		names[i] = b.Name()
	}
	return names
}

// Resolve tries each backend in order and returns the first success. When all
// fail the error is a module.KindBackendExhausted wrapping every attempt error.
func (c Chain[T, R]) Resolve(ctx context.Context, target T) (R, Resolution, error) {
	var (
		zero R
		res  Resolution
		errs []error
	)

	for _, b := range c {
		if err := ctx.Err(); err != nil {
			return zero, res, err
		}
		out, err := b.Collect(ctx, target)
		res.Attempts = append(res.Attempts, Attempt{Backend: b.Name(), Err: err})
		if err == nil {
			res.Winner = b.Name()
			return out, res, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
	}

	return zero, res, &module.Error{
		Kind: module.KindBackendExhausted,
		Op:   "tried " + strings.Join(c.Names(), ", "),
		Err:  errors.Join(errs...),
	}
}
