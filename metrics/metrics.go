// Package metrics records simulation counters as OpenTelemetry instruments
// and keeps in-process totals for the end-of-run report.
package metrics

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/hupe1980/agentorg/core"
)

const meterName = "agentorg"

// Recorder holds all agentorg metric instruments. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	tasksCreated      metric.Int64Counter
	tasksFinished     metric.Int64Counter
	mailsSent         metric.Int64Counter
	reasoningCalls    metric.Int64Counter
	reasoningDuration metric.Float64Histogram

	calls  atomic.Int64
	errors atomic.Int64
}

// New creates the instruments on the global meter provider.
func New() (*Recorder, error) {
	return NewWithMeter(otel.Meter(meterName))
}

// NewNoop creates a recorder whose instruments discard measurements.
func NewNoop() *Recorder {
	r, _ := NewWithMeter(noop.NewMeterProvider().Meter(meterName))
	return r
}

// NewWithMeter creates the instruments on meter.
func NewWithMeter(meter metric.Meter) (*Recorder, error) {
	r := &Recorder{}
	var err error

	r.tasksCreated, err = meter.Int64Counter("agentorg.tasks.created",
		metric.WithDescription("Number of tasks created"))
	if err != nil {
		return nil, err
	}

	r.tasksFinished, err = meter.Int64Counter("agentorg.tasks.finished",
		metric.WithDescription("Number of tasks reaching a terminal status"))
	if err != nil {
		return nil, err
	}

	r.mailsSent, err = meter.Int64Counter("agentorg.mail.sent",
		metric.WithDescription("Number of mails routed"))
	if err != nil {
		return nil, err
	}

	r.reasoningCalls, err = meter.Int64Counter("agentorg.reasoning.calls",
		metric.WithDescription("Number of reasoning calls"))
	if err != nil {
		return nil, err
	}

	r.reasoningDuration, err = meter.Float64Histogram("agentorg.reasoning.duration_seconds",
		metric.WithDescription("Reasoning call duration in seconds"))
	if err != nil {
		return nil, err
	}

	return r, nil
}

// TaskCreated counts a new task.
func (r *Recorder) TaskCreated(ctx context.Context) {
	if r == nil {
		return
	}
	r.tasksCreated.Add(ctx, 1)
}

// TaskFinished counts a task reaching status.
func (r *Recorder) TaskFinished(ctx context.Context, status core.TaskStatus) {
	if r == nil {
		return
	}
	r.tasksFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
}

// MailSent counts a routed mail.
func (r *Recorder) MailSent(ctx context.Context, subject core.Subject, delivered bool) {
	if r == nil {
		return
	}
	r.mailsSent.Add(ctx, 1, metric.WithAttributes(
		attribute.String("subject", string(subject)),
		attribute.Bool("delivered", delivered),
	))
}

// ReasoningCall records one reasoning call and its outcome.
func (r *Recorder) ReasoningCall(ctx context.Context, worker string, dur time.Duration, err error) {
	if r == nil {
		return
	}
	r.calls.Add(1)
	if err != nil {
		r.errors.Add(1)
	}
	attrs := metric.WithAttributes(attribute.String("worker", worker), attribute.Bool("success", err == nil))
	r.reasoningCalls.Add(ctx, 1, attrs)
	r.reasoningDuration.Record(ctx, dur.Seconds(), attrs)
}

// ReasoningCounts returns total and failed reasoning calls.
func (r *Recorder) ReasoningCounts() (calls, failed int64) {
	if r == nil {
		return 0, 0
	}
	return r.calls.Load(), r.errors.Load()
}

// Reset zeroes the in-process totals. Exported instruments are cumulative and unaffected.
func (r *Recorder) Reset() {
	if r == nil {
		return
	}
	r.calls.Store(0)
	r.errors.Store(0)
}
