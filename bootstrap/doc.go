// Package bootstrap runs an agentflow process through a uniform lifecycle:
// start components, run configure callbacks, check readiness, then either
// serve until a shutdown signal or run one finite task.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(telemetry)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*AppConfig]) error {
//	    return a.RegisterComponent(server)
//	})
//	err = app.Run(ctx)
//
// Components are stopped in reverse registration order within the
// graceful timeout, whichever way the process ends.
package bootstrap
