package cascade

import (
	"time"

	"recordkeeper-hq/keeper/pkg/retention"
	"recordkeeper-hq/keeper/pkg/retention/action"
)

// Status is the result of one policy.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusSkipped     Status = "skipped"
	StatusFailed      Status = "failed"
	StatusUnsupported Status = "unsupported"
)

// Step is one action applied to one entity.
type Step struct {
	action.Outcome
	Error string `json:"error,omitempty"`
}

// PolicyReport describes what a run did for one policy.
type PolicyReport struct {
	PolicyID string                  `json:"policy_id"`
	Entity   string                  `json:"entity"`
	Kind     retention.Kind          `json:"kind"`
	Action   retention.Action        `json:"action"`
	Storage  retention.StorageSystem `json:"storage_system"`
	Status   Status                  `json:"status"`
	Reason   string                  `json:"reason,omitempty"`
	Error    string                  `json:"error,omitempty"`
	Steps    []Step                  `json:"steps"`
	Duration time.Duration           `json:"duration"`
}

func (pr *PolicyReport) add(out action.Outcome, err error) {
	s := Step{Outcome: out}
	if err != nil {
		s.Error = err.Error()
	}
	pr.Steps = append(pr.Steps, s)
}

func (pr *PolicyReport) fail(err error) {
	pr.Status = StatusFailed
	pr.Error = err.Error()
}

// Report is the result of one run.
type Report struct {
	RunID    string          `json:"run_id"`
	Mode     retention.Mode  `json:"mode"`
	DryRun   bool            `json:"dry_run"`
	Started  time.Time       `json:"started"`
	Finished time.Time       `json:"finished"`
	Policies []*PolicyReport `json:"policies"`
}

// Summary counts policies by status.
type Summary struct {
	Total       int `json:"total"`
	Succeeded   int `json:"succeeded"`
	Skipped     int `json:"skipped"`
	Unsupported int `json:"unsupported"`
	Failed      int `json:"failed"`
}

// Summary counts the report's policies by status.
func (r *Report) Summary() Summary {
	s := Summary{Total: len(r.Policies)}
	for _, p := range r.Policies {
		switch p.Status {
		case StatusSuccess:
			s.Succeeded++
		case StatusSkipped:
			s.Skipped++
		case StatusUnsupported:
			s.Unsupported++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Status is "success" when no policy failed, "failed" when every policy
// failed, and "partial" otherwise.
func (r *Report) Status() string {
	s := r.Summary()
	switch {
	case s.Failed == 0:
		return "success"
	case s.Failed == s.Total:
		return "failed"
	default:
		return "partial"
	}
}

// Duration is the run's wall time.
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
