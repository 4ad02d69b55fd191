package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/gembooth/internal/handlers"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	var staticDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the photobooth web server",
		Long: `Starts the GemBooth HTTP API and serves the booth UI from the static directory.

Each browser creates its own session; photos, modes and the custom instruction
live in memory for as long as the session exists.`,
		Example: `  # Start server on the configured address (default :8888)
  gembooth serve

  # Start server on a custom address
  gembooth serve --addr :3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if staticDir == "" {
				staticDir = cfg.Server.StaticDir
			}

			sessionOpts, err := sessionOptions(cfg)
			if err != nil {
				return err
			}
			handler := handlers.New(sessionOpts, staticDir, handlers.Limits{
				MaxSessions: cfg.Server.MaxSessions,
				IdleTimeout: cfg.IdleTimeout(),
			})
			go handler.RunExpiry(cmd.Context(), time.Minute)

			// Set up routes
			mux := http.NewServeMux()
			handler.Register(mux)
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("GemBooth available", "addr", addr, "provider", cfg.Provider.Name, "model", sessionOpts.Model)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				handler.Close(shutdownCtx)
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (overrides server.addr)")
	cmd.Flags().StringVar(&staticDir, "static", "", "Directory holding the booth UI (overrides server.static_dir)")

	return cmd
}
