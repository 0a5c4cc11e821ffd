package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/agentflow/bootstrap"
	"github.com/kbukum/agentflow/executor"
	"github.com/kbukum/agentflow/kafka"
	"github.com/kbukum/agentflow/observability"
	"github.com/kbukum/agentflow/version"
	"github.com/kbukum/agentflow/workflow"
)

// cli holds the global flags shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string
	out        io.Writer
	errOut     io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "agentflow",
		Short: "Run dependency-graph workflows of agent executors",
		Long: `agentflow composes configured executors (subprocesses, remote HTTP agents
and templates) into sequential, parallel, graph and hybrid workflows.

Workflows are YAML definitions whose graph edges are written in the
dependency DSL, for example "research->analyse, research->critique,
analyse&critique->report".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Get().Short(),
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default: ./agentflow.yml, ./config.yml, ~/.agentflow/config.yml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(
		c.newRunCmd(),
		c.newValidateCmd(),
		c.newServeCmd(),
		c.newExecutorsCmd(),
		c.newTokenCmd(),
		c.newVersionCmd(),
	)
	return root
}

// newApp loads the configuration and creates the application with the
// telemetry component and, when enabled, the Kafka event sink registered.
func (c *cli) newApp() (*bootstrap.App[*AppConfig], error) {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if cfg.Version == "" {
		cfg.Version = version.Get().Short()
	}

	app, err := bootstrap.NewApp(cfg, bootstrap.WithSummaryWriter(c.errOut))
	if err != nil {
		return nil, err
	}
	if err := app.RegisterComponent(observability.NewTelemetry(cfg.Tracing, cfg.Metrics)); err != nil {
		return nil, err
	}
	if cfg.Kafka.Enabled {
		sink, err := kafka.NewEventSink(cfg.Kafka, app.Logger)
		if err != nil {
			return nil, err
		}
		if err := app.RegisterComponent(sink); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// engine is the wired orchestration stack of one process.
type engine struct {
	registry     *workflow.Registry
	orchestrator *workflow.Orchestrator
	loader       *workflow.FileDefinitionLoader
	metrics      *observability.Metrics
}

// newEngine builds the executor registry and orchestrator. It runs after
// telemetry has started so instruments bind to the configured provider.
func newEngine(app *bootstrap.App[*AppConfig], opts ...workflow.Option) (*engine, error) {
	reg := workflow.NewRegistry()
	if err := executor.RegisterAll(reg, app.Cfg.Executors); err != nil {
		return nil, err
	}

	if sink, ok := app.Components.Get("kafka").(*kafka.EventSink); ok {
		opts = append(opts, workflow.WithObserver(sink))
	}

	metrics, err := observability.NewMetrics(observability.Meter(serviceName))
	if err != nil {
		return nil, err
	}

	orch := workflow.New(append([]workflow.Option{
		workflow.WithConfig(app.Cfg.Orchestrator),
		workflow.WithLogger(app.Logger.WithComponent("workflow")),
		workflow.WithRunMetrics(metrics),
		workflow.WithMiddleware(
			workflow.WithTracing("executor"),
			workflow.WithMetrics(metrics),
			workflow.WithLogging(app.Logger.WithComponent("executor")),
		),
	}, opts...)...)

	return &engine{
		registry:     reg,
		orchestrator: orch,
		loader:       workflow.NewFileDefinitionLoader(app.Cfg.Workflows.Dirs...),
		metrics:      metrics,
	}, nil
}

// loadDefinition reads a definition from file when set, otherwise looks
// up name in the configured workflow directories.
func (e *engine) loadDefinition(file, name string) (*workflow.Definition, error) {
	if file != "" {
		return workflow.LoadDefinition(file)
	}
	return e.loader.Load(name)
}
