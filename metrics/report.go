package metrics

import (
	"fmt"
	"time"

	"github.com/hupe1980/agentorg/core"
)

// Report summarizes one simulation run.
type Report struct {
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time,omitzero"`
	Duration        time.Duration `json:"duration"`
	TotalTasks      int           `json:"total_tasks"`
	CompletedTasks  int           `json:"completed_tasks"`
	FailedTasks     int           `json:"failed_tasks"`
	PendingTasks    int           `json:"pending_tasks"`
	ReasoningCalls  int64         `json:"reasoning_calls"`
	ReasoningErrors int64         `json:"reasoning_errors"`
	// CallsRemaining is the unused model call budget, -1 when no limit applies.
	CallsRemaining int `json:"calls_remaining"`
}

// BuildReport counts tasks by status. A zero end time means the run is still
// going and the duration is measured up to now.
func BuildReport(start, end time.Time, tasks []core.Task, calls, failed int64) Report {
	r := Report{StartTime: start, EndTime: end, TotalTasks: len(tasks), ReasoningCalls: calls, ReasoningErrors: failed, CallsRemaining: -1}
	for _, t := range tasks {
		switch t.Status {
		case core.TaskCompleted:
			r.CompletedTasks++
		case core.TaskFailed:
			r.FailedTasks++
		default:
			r.PendingTasks++
		}
	}
	if !start.IsZero() {
		stop := end
		if stop.IsZero() {
			stop = time.Now()
		}
		r.Duration = stop.Sub(start)
	}
	return r
}

// SuccessRate is the share of completed tasks among all tasks.
func (r Report) SuccessRate() float64 {
	if r.TotalTasks == 0 {
		return 0
	}
	return float64(r.CompletedTasks) / float64(r.TotalTasks)
}

func (r Report) String() string {
	return fmt.Sprintf("tasks=%d completed=%d failed=%d open=%d reasoning_calls=%d reasoning_errors=%d duration=%s",
		r.TotalTasks, r.CompletedTasks, r.FailedTasks, r.PendingTasks, r.ReasoningCalls, r.ReasoningErrors, r.Duration.Round(time.Millisecond))
}
