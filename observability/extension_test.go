package observability_test

import (
	"context"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/ext"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/observability"
	"github.com/xraph/jobrepo/status"
	"github.com/xraph/jobrepo/step"
)

func newTestExtension() (*observability.MetricsExtension, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return observability.NewMetricsExtensionWithMeter(mp.Meter("test")), reader
}

// counterTotal sums every data point of the named counter.
func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: expected Sum[int64], got %T", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestMetricsExtension_Name(t *testing.T) {
	e, _ := newTestExtension()
	if e.Name() != "observability-metrics" {
		t.Errorf("expected name %q, got %q", "observability-metrics", e.Name())
	}
}

func TestMetricsExtension_Counters(t *testing.T) {
	e, reader := newTestExtension()
	ctx := context.Background()

	_ = e.OnInstanceCreated(ctx, &instance.JobInstance{ID: 1, JobName: "payroll"})
	_ = e.OnExecutionCreated(ctx, &execution.JobExecution{ID: 1, Status: status.Starting})
	_ = e.OnExecutionTransitioned(ctx, &execution.JobExecution{ID: 1, Status: status.Started}, status.Starting)
	_ = e.OnExecutionTransitioned(ctx, &execution.JobExecution{ID: 1, Status: status.Completed}, status.Started)
	_ = e.OnStepExecutionCreated(ctx, &step.StepExecution{ID: 1, StepName: "load"})
	_ = e.OnStepTransitioned(ctx, &step.StepExecution{ID: 1, Status: status.Started}, status.Starting)

	tests := []struct {
		name string
		want int64
	}{
		{"jobrepo.instance.created", 1},
		{"jobrepo.execution.created", 1},
		{"jobrepo.execution.transitioned", 2},
		{"jobrepo.execution.finished", 1},
		{"jobrepo.step.created", 1},
		{"jobrepo.step.transitioned", 1},
	}
	for _, tt := range tests {
		if got := counterTotal(t, reader, tt.name); got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestMetricsExtension_TransitionAttributes(t *testing.T) {
	e, reader := newTestExtension()
	_ = e.OnExecutionTransitioned(context.Background(),
		&execution.JobExecution{ID: 3, Status: status.Failed}, status.Started)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "jobrepo.execution.transitioned" {
				continue
			}
			sum := m.Data.(metricdata.Sum[int64])
			set := sum.DataPoints[0].Attributes
			from, _ := set.Value(attribute.Key("from"))
			to, _ := set.Value(attribute.Key("to"))
			if from.AsString() != "STARTED" || to.AsString() != "FAILED" {
				t.Errorf("attributes from=%q to=%q", from.AsString(), to.AsString())
			}
			found = true
		}
	}
	if !found {
		t.Fatal("jobrepo.execution.transitioned not recorded")
	}
}

func TestMetricsExtension_RegistryIntegration(t *testing.T) {
	e, reader := newTestExtension()
	r := ext.NewRegistry(slog.Default())
	r.Register(e)

	r.EmitInstanceCreated(context.Background(), &instance.JobInstance{ID: 1, JobName: "payroll"})
	r.EmitInstanceCreated(context.Background(), &instance.JobInstance{ID: 2, JobName: "payroll"})

	if got := counterTotal(t, reader, "jobrepo.instance.created"); got != 2 {
		t.Errorf("instance.created = %d, want 2", got)
	}
}

func TestMetricsExtension_DefaultNoopSafe(t *testing.T) {
	e := observability.NewMetricsExtension()
	if err := e.OnExecutionCreated(context.Background(), &execution.JobExecution{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
