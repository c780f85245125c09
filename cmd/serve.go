package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"personabot/config"
	"personabot/handlers"
)

var servePort string

// serveCmd runs the web chat widget
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web chat widget and its JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "port to listen on (overrides PORT)")
}

func serve(ctx context.Context) error {
	logger := log.WithFields(log.Fields{"module": "cmd", "function": "serve"})
	cfg := config.Config

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	idle := time.Duration(cfg.Options.IdleTimeoutMinutes) * time.Minute
	go a.store.RunPruner(ctx, time.Minute, idle)

	manager := handlers.NewManager(a.controller, a.store, a.db)
	go sweepHints(ctx, manager.Hints)

	port := cfg.Options.Port
	if servePort != "" {
		port = servePort
	}
	server := &http.Server{
		Addr:    ":" + port,
		Handler: manager.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting server on :%s", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func sweepHints(ctx context.Context, hints *handlers.Hints) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hints.Sweep()
		}
	}
}
