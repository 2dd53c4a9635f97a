// Package httpserver runs an http.Server bound to a context with graceful
// shutdown, and provides liveness and readiness handlers.
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server", logger.Error(err))
//	}
package httpserver
