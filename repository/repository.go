package repository

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/ext"
	mw "github.com/xraph/jobrepo/middleware"
	"github.com/xraph/jobrepo/observability"
	"github.com/xraph/jobrepo/schema"
	"github.com/xraph/jobrepo/sequence"
	"github.com/xraph/jobrepo/store"
)

const instrumentationName = "github.com/xraph/jobrepo"

// Repository records job instances, executions and step executions on a
// store.Store.
type Repository struct {
	store      store.Store
	alloc      *sequence.Allocator
	extensions *ext.Registry
	chain      mw.Middleware
	mws        []mw.Middleware
	timeout    time.Duration
	now        func() time.Time
	logger     *slog.Logger

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	pendingExts    []ext.Extension
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger used by the middleware chain and extension
// registry.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

// WithExtension registers an extension.
func WithExtension(e ext.Extension) Option {
	return func(r *Repository) { r.pendingExts = append(r.pendingExts, e) }
}

// WithMiddleware appends middleware after the built-in chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(r *Repository) { r.mws = append(r.mws, m) }
}

// WithTimeout bounds every operation. Zero leaves deadlines to the caller.
func WithTimeout(d time.Duration) Option {
	return func(r *Repository) { r.timeout = d }
}

// WithConfig applies the repository-level settings of cfg.
func WithConfig(cfg jobrepo.Config) Option {
	return func(r *Repository) { r.timeout = cfg.OperationTimeout }
}

// WithTracerProvider sets a custom OTel TracerProvider for the tracing
// middleware. If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Repository) { r.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the metrics
// middleware and the observability extension. If not set, the global
// provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(r *Repository) { r.meterProvider = mp }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// New creates a Repository on s.
func New(s store.Store, opts ...Option) (*Repository, error) {
	if s == nil {
		return nil, jobrepo.ErrNoStore
	}

	r := &Repository{
		store:  s,
		alloc:  sequence.NewAllocator(s),
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.extensions = ext.NewRegistry(r.logger)

	var tracingMw mw.Middleware
	if r.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(r.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}

	var metricsMw mw.Middleware
	var obsExt *observability.MetricsExtension
	if r.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(r.meterProvider.Meter(instrumentationName))
		obsExt = observability.NewMetricsExtensionWithMeter(r.meterProvider.Meter(instrumentationName + "/observability"))
	} else {
		metricsMw = mw.Metrics()
		obsExt = observability.NewMetricsExtension()
	}
	r.extensions.Register(obsExt)
	for _, e := range r.pendingExts {
		r.extensions.Register(e)
	}
	r.pendingExts = nil

	// recover → tracing → metrics → logging → timeout → caller middleware.
	all := []mw.Middleware{
		mw.Recover(r.logger),
		tracingMw,
		metricsMw,
		mw.Logging(r.logger),
		mw.Timeout(r.timeout),
	}
	all = append(all, r.mws...)
	r.chain = mw.Chain(all...)

	return r, nil
}

// run executes fn through the middleware chain.
func (r *Repository) run(ctx context.Context, op mw.Operation, fn mw.Handler) error {
	return r.chain(ctx, op, fn)
}

// Store returns the underlying store.
func (r *Repository) Store() store.Store { return r.store }

// Extensions returns the extension registry.
func (r *Repository) Extensions() *ext.Registry { return r.extensions }

// ──────────────────────────────────────────────────
// Setup and administration
// ──────────────────────────────────────────────────

// Migrate creates missing collections and indexes and seeds missing
// counters. Safe to call on every start.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.run(ctx, mw.Operation{Name: "Migrate", Entity: "schema"}, r.store.Migrate)
}

// Ping checks backend connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.run(ctx, mw.Operation{Name: "Ping", Entity: "schema"}, r.store.Ping)
}

// Sequences reports the last issued value of every counter.
func (r *Repository) Sequences(ctx context.Context) (map[sequence.Kind]int64, error) {
	var out map[sequence.Kind]int64
	err := r.run(ctx, mw.Operation{Name: "Sequences", Entity: "sequence"}, func(ctx context.Context) error {
		var err error
		out, err = r.alloc.Current(ctx)
		return err
	})
	return out, err
}

// Indexes reports the indexes present per collection.
func (r *Repository) Indexes(ctx context.Context) (map[schema.Collection][]string, error) {
	var out map[schema.Collection][]string
	err := r.run(ctx, mw.Operation{Name: "Indexes", Entity: "schema"}, func(ctx context.Context) error {
		var err error
		out, err = r.store.ListIndexes(ctx)
		return err
	})
	return out, err
}

// Close notifies Shutdown extensions and closes the store.
func (r *Repository) Close(ctx context.Context) error {
	r.extensions.EmitShutdown(ctx)
	return r.store.Close()
}
