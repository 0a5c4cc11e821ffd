package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kbukum/agentflow/api"
	"github.com/kbukum/agentflow/bootstrap"
	"github.com/kbukum/agentflow/component"
	"github.com/kbukum/agentflow/logger"
	"github.com/kbukum/agentflow/sse"
	"github.com/kbukum/agentflow/workflow"
)

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the workflow HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.newApp()
			if err != nil {
				return err
			}
			app.OnConfigure(configureServer)
			return app.Run(cmd.Context())
		},
	}
}

// configureServer wires the engine into the HTTP and event stream
// components. It runs after telemetry has started.
func configureServer(_ context.Context, app *bootstrap.App[*AppConfig]) error {
	events := sse.NewComponent("/v1/events")
	eng, err := newEngine(app, workflow.WithObserver(api.NewRunEvents(events.Hub())))
	if err != nil {
		return err
	}

	srv, err := api.New(app.Cfg.Server, api.Deps{
		Orchestrator: eng.orchestrator,
		Registry:     eng.registry,
		Loader:       eng.loader,
		Metrics:      eng.metrics,
		Events:       events.Hub(),
		Checkers:     append(app.Components.Checkers(), component.AsChecker(events)),
		Service:      app.Name,
		Version:      app.Version,
	}, app.Logger)
	if err != nil {
		return err
	}
	// Registered after the server so streams close before it shuts down.
	for _, c := range []component.Component{srv, events} {
		if err := app.RegisterComponent(c); err != nil {
			return err
		}
	}

	for _, info := range eng.registry.Describe() {
		app.Summary.TrackExecutors(executorLabel(info.Name, info.Kind))
	}
	names, err := eng.loader.List()
	if err != nil {
		app.Logger.Warn("could not list workflows", logger.MergeWithError(nil, err))
	} else {
		app.Summary.TrackWorkflows(names...)
	}
	return nil
}

func executorLabel(name, kind string) string {
	if kind == "" {
		return name
	}
	return name + " (" + kind + ")"
}
