// Package bootstrap runs a floq command through a uniform lifecycle:
// components start in registration order, configure callbacks and hooks
// run, a startup summary is printed, and then either a finite task runs
// (RunTask) or the process waits for a signal (Run). Shutdown stops the
// components in reverse order within a graceful timeout.
//
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    return err
//	}
//	app.RegisterComponent(monitor)
//	app.RegisterComponent(server.NewComponent(srv))
//	return app.RunTask(ctx, func(ctx context.Context) error {
//	    _, err := task.Run(ctx)
//	    return err
//	})
//
// SIGINT and SIGTERM cancel the task context; a task that honors
// cancellation returns normally and the components still shut down.
package bootstrap
