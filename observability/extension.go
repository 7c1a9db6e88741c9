package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/ext"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
)

// Compile-time interface checks.
var (
	_ ext.Extension             = (*MetricsExtension)(nil)
	_ ext.InstanceCreated       = (*MetricsExtension)(nil)
	_ ext.ExecutionCreated      = (*MetricsExtension)(nil)
	_ ext.ExecutionTransitioned = (*MetricsExtension)(nil)
	_ ext.StepExecutionCreated  = (*MetricsExtension)(nil)
	_ ext.StepTransitioned      = (*MetricsExtension)(nil)
)

const meterName = "github.com/xraph/jobrepo/observability"

// MetricsExtension records lifecycle counters via an OTel meter.
type MetricsExtension struct {
	InstanceCreated       metric.Int64Counter
	ExecutionCreated      metric.Int64Counter
	ExecutionTransitioned metric.Int64Counter
	ExecutionFinished     metric.Int64Counter
	StepCreated           metric.Int64Counter
	StepTransitioned      metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension on meter.
// Instrument creation errors fall back to the noop instruments the OTel
// API returns alongside them.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc)) //nolint:errcheck // noop fallback
		return c
	}
	return &MetricsExtension{
		InstanceCreated:       counter("jobrepo.instance.created", "Job instances created"),
		ExecutionCreated:      counter("jobrepo.execution.created", "Job executions created"),
		ExecutionTransitioned: counter("jobrepo.execution.transitioned", "Job execution status transitions"),
		ExecutionFinished:     counter("jobrepo.execution.finished", "Job executions that reached a terminal status"),
		StepCreated:           counter("jobrepo.step.created", "Step executions created"),
		StepTransitioned:      counter("jobrepo.step.transitioned", "Step execution status transitions"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Instance hooks ──────────────────────────────────

// OnInstanceCreated implements ext.InstanceCreated.
func (m *MetricsExtension) OnInstanceCreated(ctx context.Context, inst *instance.JobInstance) error {
	m.InstanceCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("job_name", inst.JobName)))
	return nil
}

// ── Execution hooks ─────────────────────────────────

// OnExecutionCreated implements ext.ExecutionCreated.
func (m *MetricsExtension) OnExecutionCreated(ctx context.Context, _ *execution.JobExecution) error {
	m.ExecutionCreated.Add(ctx, 1)
	return nil
}

// OnExecutionTransitioned implements ext.ExecutionTransitioned.
func (m *MetricsExtension) OnExecutionTransitioned(ctx context.Context, exec *execution.JobExecution, from status.Status) error {
	m.ExecutionTransitioned.Add(ctx, 1, transitionAttrs(from, exec.Status))
	if exec.Status.IsTerminal() {
		m.ExecutionFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(exec.Status))))
	}
	return nil
}

// ── Step hooks ──────────────────────────────────────

// OnStepExecutionCreated implements ext.StepExecutionCreated.
func (m *MetricsExtension) OnStepExecutionCreated(ctx context.Context, se *step.StepExecution) error {
	m.StepCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("step_name", se.StepName)))
	return nil
}

// OnStepTransitioned implements ext.StepTransitioned.
func (m *MetricsExtension) OnStepTransitioned(ctx context.Context, se *step.StepExecution, from status.Status) error {
	m.StepTransitioned.Add(ctx, 1, transitionAttrs(from, se.Status))
	return nil
}

func transitionAttrs(from, to status.Status) metric.AddOption {
	return metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	)
}
