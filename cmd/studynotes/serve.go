package main

import (
	"context"
	"log/slog"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/hrygo/studynotes/server"
)

func runServe(cmd *cobra.Command, _ []string) error {
	instanceProfile, err := loadProfile()
	if err != nil {
		return err
	}

	// SIGTERM is what process managers such as systemd and Kubernetes send.
	ctx, stop := signal.NotifyContext(cmd.Context(), terminationSignals...)
	defer stop()

	a, err := newApp(ctx, instanceProfile)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		return err
	}
	defer a.Close()

	s := server.NewServer(instanceProfile, a.serverDependencies())
	if err := s.Start(ctx); err != nil {
		slog.Error("failed to start server", "error", err)
		return err
	}
	printGreetings(instanceProfile, a.pipeline != nil)

	<-ctx.Done()
	s.Shutdown(context.Background())
	return nil
}
