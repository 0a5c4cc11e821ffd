package workflow

import (
	"context"
	"time"

	"github.com/kbukum/agentflow/logger"
	"github.com/kbukum/agentflow/observability"
)

// Orchestrator composes executors into sequential, parallel, graph and
// hybrid workflows on top of the layer scheduler.
type Orchestrator struct {
	config     Config
	log        *logger.Logger
	metrics    *observability.Metrics
	middleware []Middleware
	observers  []Observer
	observer   Observer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig sets the default execution settings.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.config = cfg }
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithRunMetrics enables run-level metrics.
func WithRunMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithMiddleware wraps every node executor with mw, first outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *Orchestrator) { o.middleware = append(o.middleware, mw...) }
}

// WithObserver sends the progress events of every run to obs. It may be
// given more than once.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs) }
}

// New creates an Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{config: DefaultConfig()}
	for _, opt := range opts {
		opt(o)
	}
	o.config.ApplyDefaults()
	switch len(o.observers) {
	case 0:
	case 1:
		o.observer = o.observers[0]
	default:
		o.observer = Observers(o.observers)
	}
	if o.log == nil {
		o.log = logger.Get("workflow")
	}
	return o
}

// Config returns the default execution settings.
func (o *Orchestrator) Config() Config { return o.config }

// RunOption overrides settings for a single call.
type RunOption func(*runOptions)

type runOptions struct {
	image  string
	config Config
}

// WithImage forwards an image locator to the root nodes.
func WithImage(image string) RunOption {
	return func(r *runOptions) { r.image = image }
}

// WithMaxConcurrency overrides the concurrency cap. Values <= 0 are ignored.
func WithMaxConcurrency(n int) RunOption {
	return func(r *runOptions) {
		if n > 0 {
			r.config.MaxConcurrency = n
		}
	}
}

// WithFailurePolicy overrides the failure policy.
func WithFailurePolicy(p FailurePolicy) RunOption {
	return func(r *runOptions) {
		if p != "" {
			r.config.FailurePolicy = p
		}
	}
}

// WithTimeout overrides the run timeout.
func WithTimeout(d time.Duration) RunOption {
	return func(r *runOptions) { r.config.Timeout = d }
}

func (o *Orchestrator) runOptions(opts []RunOption) runOptions {
	ro := runOptions{config: o.config}
	for _, opt := range opts {
		opt(&ro)
	}
	return ro
}

// Invocation is a generic workflow request. At most one of Dependencies and
// DSL may be set; with neither, all nodes run in a single layer.
type Invocation struct {
	Nodes          []Node
	Dependencies   Dependencies
	DSL            string
	Task           string
	Image          string
	MaxConcurrency int
}

// Sequential runs nodes as a chain: each node receives its predecessor's
// output.
func (o *Orchestrator) Sequential(ctx context.Context, nodes []Node, task string, opts ...RunOption) (*Result, error) {
	deps := make(Dependencies, len(nodes))
	for i := 1; i < len(nodes); i++ {
		deps.Add(nodes[i].ID, nodes[i-1].ID)
	}
	return o.execute(ctx, PatternSequential, nodes, deps, task, o.runOptions(opts))
}

// Parallel runs all nodes at once with the same task. Outputs holds every
// node's output in declaration order.
func (o *Orchestrator) Parallel(ctx context.Context, nodes []Node, task string, opts ...RunOption) (*Result, error) {
	return o.execute(ctx, PatternParallel, nodes, nil, task, o.runOptions(opts))
}

// Graph runs nodes according to an explicit dependency map.
func (o *Orchestrator) Graph(ctx context.Context, nodes []Node, deps Dependencies, task string, opts ...RunOption) (*Result, error) {
	return o.execute(ctx, PatternGraph, nodes, deps, task, o.runOptions(opts))
}

// GraphDSL runs nodes according to a dependency expression.
func (o *Orchestrator) GraphDSL(ctx context.Context, nodes []Node, dsl string, task string, opts ...RunOption) (*Result, error) {
	deps, err := ParseDSL(dsl)
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, PatternGraph, nodes, deps, task, o.runOptions(opts))
}

// Run executes an Invocation as a graph workflow.
func (o *Orchestrator) Run(ctx context.Context, inv Invocation) (*Result, error) {
	deps := inv.Dependencies
	if inv.DSL != "" {
		if len(inv.Dependencies) > 0 {
			return nil, invalidf("dependencies and dsl are mutually exclusive")
		}
		parsed, err := ParseDSL(inv.DSL)
		if err != nil {
			return nil, err
		}
		deps = parsed
	}
	return o.execute(ctx, PatternGraph, inv.Nodes, deps, inv.Task,
		o.runOptions([]RunOption{WithImage(inv.Image), WithMaxConcurrency(inv.MaxConcurrency)}))
}

// Plan validates nodes against deps without executing anything.
func (o *Orchestrator) Plan(nodes []Node, deps Dependencies) (*Graph, error) {
	ids, _, err := indexNodes(nodes)
	if err != nil {
		return nil, err
	}
	return Build(ids, deps)
}

func (o *Orchestrator) execute(ctx context.Context, pattern Pattern, nodes []Node, deps Dependencies, task string, ro runOptions) (*Result, error) {
	ids, byID, err := indexNodes(nodes)
	if err != nil {
		return nil, err
	}
	g, err := Build(ids, deps)
	if err != nil {
		return nil, err
	}
	if len(o.middleware) > 0 {
		for id, n := range byID {
			n.Executor = Chain(n.Executor, o.middleware...)
			byID[id] = n
		}
	}

	s := &Scheduler{Config: ro.config, Logger: o.log, Metrics: o.metrics, Observer: o.observer}
	return s.run(ctx, pattern, g, byID, task, ro.image)
}
