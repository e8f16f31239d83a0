package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tickd/internal/app"
)

const stopTimeout = 15 * time.Second

// runDaemon starts the app and blocks until SIGINT/SIGTERM or a fatal error.
// SIGHUP reloads the config file.
func runDaemon(cfgPath string) error {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	a, err := app.NewApp(cfgPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		shutdown(a, app.StopFatalError)
		return err
	}

	reason := app.StopUnknown
loop:
	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				_ = a.Reload(ctx)
				continue
			case syscall.SIGTERM:
				reason = app.StopSIGTERM
			default:
				reason = app.StopSIGINT
			}
			break loop
		case <-a.Done():
			reason = app.StopFatalError
			break loop
		}
	}

	fatal := a.Err()
	shutdown(a, reason)
	if reason == app.StopFatalError {
		return fatal
	}
	return nil
}

func shutdown(a *app.App, reason app.StopReason) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	_ = a.Stop(ctx, reason)
}
