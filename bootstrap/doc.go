// Package bootstrap runs the meetscribe process lifecycle: typed config,
// component registration, startup and shutdown hooks, signal handling and
// graceful shutdown.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(db)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
//	    return wireHandlers(a)
//	})
//	err = app.Run(ctx)
package bootstrap
