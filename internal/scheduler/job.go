package scheduler

import (
	"context"
	"errors"
	"time"
)

// historyLimit bounds the results kept per job
const historyLimit = 100

// ErrSkip marks a run with nothing to do in the current competition stage,
// e.g. a visitor sync after the event ended. Wrap it with the reason; the
// run is recorded as skipped and never retried.
var ErrSkip = errors.New("job skipped")

// Job is a recurring competition maintenance task: visitor sync, budget
// repair, cache housekeeping
// ⭐ SSOT: 定时任务接口只在这里定义
type Job interface {
	Name() string

	// Run performs one pass. Returning an error wrapping ErrSkip records a
	// skip; any other error is retried.
	Run(ctx context.Context) error

	// Schedule is a cron expression with a seconds field, e.g.
	// "0 */15 * * * *", or a descriptor such as "@every 10m"
	Schedule() string
}

// Outcome is how a run ended
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// JobResult is one run of a job
type JobResult struct {
	JobName    string        `json:"job_name"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	Duration   time.Duration `json:"duration"`
	Outcome    Outcome       `json:"outcome"`
	Attempts   int           `json:"attempts"`
	SkipReason string        `json:"skip_reason,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Succeeded reports whether the run completed its work
func (r JobResult) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// JobHistory keeps the latest results of one job
type JobHistory struct {
	Results []JobResult
}

// Add records a result, dropping the oldest beyond historyLimit
func (h *JobHistory) Add(result JobResult) {
	h.Results = append(h.Results, result)
	if len(h.Results) > historyLimit {
		h.Results = h.Results[len(h.Results)-historyLimit:]
	}
}

// Latest returns the last n results, oldest first
func (h *JobHistory) Latest(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}
	if n <= 0 {
		return []JobResult{}
	}
	return h.Results[len(h.Results)-n:]
}

// Count returns the number of results with outcome o
func (h *JobHistory) Count(o Outcome) int {
	n := 0
	for _, r := range h.Results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

// SuccessRate is successes over runs that did work; skips are not counted
func (h *JobHistory) SuccessRate() float64 {
	ok, failed := h.Count(OutcomeSuccess), h.Count(OutcomeFailed)
	if ok+failed == 0 {
		return 0
	}
	return float64(ok) / float64(ok+failed)
}
