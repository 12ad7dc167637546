package toolexec

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"

	"github.com/jacobarthurs/syswhy/internal/module"
)

// Response is the canned result of one fake tool.
type Response struct {
	Out []byte
	Err error
}

// Fake is a Runner backed by canned responses, for probe tests. Tools not in
// Tools are treated as missing from PATH.
type Fake struct {
	Tools map[string]Response

	mu    sync.Mutex
	calls []string
}

func NewFake() *Fake {
	return &Fake{Tools: map[string]Response{}}
}

// Set registers a tool that prints out and exits cleanly.
func (f *Fake) Set(name, out string) *Fake {
	f.Tools[name] = Response{Out: []byte(out)}
	return f
}

// Fail registers a tool that is installed but fails.
func (f *Fake) Fail(name string, err error) *Fake {
	f.Tools[name] = Response{Err: err}
	return f
}

func (f *Fake) LookPath(name string) (string, error) {
	if _, ok := f.Tools[name]; !ok {
		return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
	}
	return "/usr/bin/" + name, nil
}

func (f *Fake) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, ok := f.Tools[name]
	if !ok {
		return nil, &module.Error{Kind: module.KindToolNotFound, Op: name, Err: errors.New("executable file not found in $PATH")}
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Out, nil
}

// Calls returns every invocation so far as "name arg arg".
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
