package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
	"github.com/jacobarthurs/syswhy/internal/runner"
)

func RenderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Envelope wraps the outcomes of one all-modules run.
type Envelope struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Results   []Result  `json:"results"`
}

type Result struct {
	Module             string              `json:"module"`
	Status             string              `json:"status"`
	Report             *report.Report      `json:"report,omitempty"`
	Error              *ErrorInfo          `json:"error,omitempty"`
	SkipReason         string              `json:"skip_reason,omitempty"`
	MissingPermissions []module.Permission `json:"missing_permissions,omitempty"`
	DurationMS         int64               `json:"duration_ms"`
}

type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func NewEnvelope(started time.Time, outcomes []runner.Outcome) Envelope {
	env := Envelope{
		RunID:     uuid.NewString(),
		StartedAt: started.UTC(),
		Results:   make([]Result, 0, len(outcomes)),
	}
	for _, o := range outcomes {
		res := Result{
			Module:             o.Module,
			Status:             o.Status(),
			SkipReason:         o.SkipReason,
			MissingPermissions: o.Missing,
			DurationMS:         o.Duration.Milliseconds(),
		}
		switch res.Status {
		case runner.StatusOK:
			res.Report = o.Report
		case runner.StatusFailed:
			res.Error = errorInfo(o.Err)
		}
		env.Results = append(env.Results, res)
	}
	return env
}

func errorInfo(err error) *ErrorInfo {
	if err == nil {
		return &ErrorInfo{Kind: module.KindInternal.String(), Message: "no report produced"}
	}
	return &ErrorInfo{Kind: module.KindOf(err).String(), Message: err.Error()}
}
