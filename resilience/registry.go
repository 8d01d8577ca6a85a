package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/gmorales/steadfast/observe"
)

// ResourceConfig configures one protected upstream resource.
type ResourceConfig struct {
	// Meta identifies the resource for logs, traces, and metrics.
	Meta observe.ServiceMeta

	// CircuitBreaker configures the resource's breaker. Name is filled from
	// Meta when empty.
	CircuitBreaker CircuitBreakerConfig

	// RateLimiter configures the resource's admission gate. Nil disables
	// rate limiting.
	RateLimiter *RateLimiterConfig

	// Bulkhead configures an optional concurrency gate. Nil disables it.
	Bulkhead *BulkheadConfig

	// Call is the default composition applied by Do. The circuit breaker
	// field is managed by the resource and must be left unset.
	Call CallOptions
}

// Resource owns the per-upstream resilience state: exactly one circuit
// breaker and, where configured, one rate limiter and one bulkhead. Retry and
// the composer are stateless strategies applied per call.
type Resource struct {
	meta    observe.ServiceMeta
	breaker *CircuitBreaker
	limiter *RateLimiter
	bulk    *Bulkhead
	call    CallOptions
	logger  observe.Logger
	metrics observe.Metrics
	tracer  observe.Tracer
}

// Meta returns the resource's service metadata.
func (r *Resource) Meta() observe.ServiceMeta { return r.meta }

// CircuitBreaker returns the resource's breaker.
func (r *Resource) CircuitBreaker() *CircuitBreaker { return r.breaker }

// RateLimiter returns the resource's rate limiter, or nil when not configured.
func (r *Resource) RateLimiter() *RateLimiter { return r.limiter }

// Do runs one protected call against the resource: rate-limit admission
// first (an entry gate, outside the composed pipeline), then the optional
// bulkhead, then timeout → circuit breaker → retry.
func (r *Resource) Do(ctx context.Context, op func(context.Context) error) error {
	if op == nil {
		return ErrNilOperation
	}

	if r.limiter != nil {
		waitStart := time.Now()
		if err := r.limiter.Acquire(ctx); err != nil {
			return err
		}
		if wait := time.Since(waitStart); wait > time.Millisecond {
			r.metrics.RecordRateLimitWait(ctx, r.meta, wait)
		}
	}

	if r.bulk != nil {
		if err := r.bulk.Acquire(ctx); err != nil {
			return err
		}
		defer r.bulk.Release()
	}

	ctx, span := r.tracer.StartSpan(ctx, r.meta)
	start := time.Now()

	opts := r.call
	opts.CircuitBreaker = r.breaker
	err := ExecuteWithResilience(ctx, op, opts)

	r.tracer.EndSpan(span, err)
	r.metrics.RecordCall(ctx, r.meta, time.Since(start), err)

	return err
}

// Reset returns the resource's breaker and limiter to their initial state.
func (r *Resource) Reset() {
	r.breaker.Reset()
	if r.limiter != nil {
		r.limiter.Reset()
	}
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Logger is handed to every constructed breaker, limiter, and retry.
	// Default: observe.NopLogger()
	Logger observe.Logger

	// Metrics receives call, retry, transition, and wait recordings.
	// Default: observe.NopMetrics()
	Metrics observe.Metrics

	// Tracer wraps spans around resource calls.
	// Default: observe.NewNoopTracer()
	Tracer observe.Tracer
}

// Registry constructs and owns one Resource per logical upstream, keyed by
// service name. It replaces module-level default instances: all state is
// held by an explicitly constructed registry passed via dependency injection.
type Registry struct {
	logger  observe.Logger
	metrics observe.Metrics
	tracer  observe.Tracer

	mu        sync.RWMutex
	resources map[string]*Resource
}

// NewRegistry creates an empty registry.
func NewRegistry(config RegistryConfig) *Registry {
	logger := config.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = observe.NopMetrics()
	}
	tracer := config.Tracer
	if tracer == nil {
		tracer = observe.NewNoopTracer()
	}

	return &Registry{
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		resources: make(map[string]*Resource),
	}
}

// Resource returns the resource registered under the given service name, or
// creates it from config on first use. The breaker and limiter are singletons
// per name, shared across all concurrent calls targeting that upstream.
func (reg *Registry) Resource(config ResourceConfig) *Resource {
	name := config.Meta.Name

	reg.mu.RLock()
	res, ok := reg.resources[name]
	reg.mu.RUnlock()
	if ok {
		return res
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	// Double check: another caller may have registered it meanwhile.
	if res, ok := reg.resources[name]; ok {
		return res
	}

	res = reg.buildResource(config)
	reg.resources[name] = res
	return res
}

// Lookup returns the resource registered under name, if any.
func (reg *Registry) Lookup(name string) (*Resource, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	res, ok := reg.resources[name]
	return res, ok
}

// Names returns the names of all registered resources.
func (reg *Registry) Names() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	names := make([]string, 0, len(reg.resources))
	for name := range reg.resources {
		names = append(names, name)
	}
	return names
}

func (reg *Registry) buildResource(config ResourceConfig) *Resource {
	meta := config.Meta
	svcLogger := reg.logger.WithService(meta)

	cbConfig := config.CircuitBreaker
	if cbConfig.Name == "" {
		cbConfig.Name = meta.Name
	}
	if cbConfig.Logger == nil {
		cbConfig.Logger = svcLogger
	}

	// Fan state transitions out to metrics without displacing a caller hook.
	callerHook := cbConfig.OnStateChange
	cbConfig.OnStateChange = func(from, to State, reason string) {
		reg.metrics.RecordStateChange(context.Background(), meta, from.String(), to.String())
		if callerHook != nil {
			callerHook(from, to, reason)
		}
	}

	res := &Resource{
		meta:    meta,
		breaker: NewCircuitBreaker(cbConfig),
		call:    config.Call,
		logger:  svcLogger,
		metrics: reg.metrics,
		tracer:  reg.tracer,
	}

	if config.RateLimiter != nil {
		rlConfig := *config.RateLimiter
		if rlConfig.Name == "" {
			rlConfig.Name = meta.Name
		}
		if rlConfig.Logger == nil {
			rlConfig.Logger = svcLogger
		}
		res.limiter = NewRateLimiter(rlConfig)
	}

	if config.Bulkhead != nil {
		res.bulk = NewBulkhead(*config.Bulkhead)
	}

	if res.call.Retry.Logger == nil {
		res.call.Retry.Logger = svcLogger
	}
	callerRetryHook := res.call.Retry.OnRetry
	res.call.Retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		reg.metrics.RecordRetry(context.Background(), meta, attempt)
		if callerRetryHook != nil {
			callerRetryHook(attempt, err, delay)
		}
	}

	return res
}
