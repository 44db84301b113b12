package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/incorpdash/app"
	"github.com/jmcleod/incorpdash/session"
	bboltstorage "github.com/jmcleod/incorpdash/storage/bbolt"
	"github.com/jmcleod/incorpdash/web"
)

var (
	addr        string
	dataDir     string
	authTimeout time.Duration
	tlsCert     string
	tlsKey      string
	webhookURL  string
	webhookAuth string
)

const dbFile = "dashboard.db"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(os.Stderr, logLevel)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		kv, err := bboltstorage.NewFromFile(filepath.Join(dataDir, dbFile), nil)
		if err != nil {
			return fmt.Errorf("failed to open dashboard storage: %w", err)
		}
		defer kv.Close()

		timeout := effectiveAuthTimeout()
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		backend, closeBackend, err := openBackend(ctx, kv, logger)
		cancel()
		if err != nil {
			return err
		}
		defer closeBackend()

		theme := web.NewTheme()
		a := app.New(app.Config{AuthTimeout: timeout}, backend, kv, theme, app.WithLogger(logger))
		if err := a.Start(cmd.Context()); err != nil {
			return err
		}
		defer a.Close()

		opts := []web.Option{
			web.WithLogger(logger),
			web.WithAlertHandler(func(e web.AlertEvent) {
				logger.Warn("security alert", "type", e.Type, "count", e.Count, "threshold", e.Threshold)
			}),
		}
		if webhookURL != "" {
			opts = append(opts, web.WithAuditWebhook(webhookURL, webhookAuth))
		}
		s := web.New(a, theme, opts...)
		defer s.Close()

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
		r.Mount("/", s.Router())

		server := &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		useTLS := tlsCert != "" && tlsKey != ""
		if useTLS {
			cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
			if err != nil {
				return fmt.Errorf("failed to load TLS key pair: %w", err)
			}
			server.TLSConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if useTLS {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		out := cmd.OutOrStdout()
		printBanner(out)
		fmt.Fprintf(out, "Serving dashboard on %s (backend: %s, data: %s, signed in: %t)...\n",
			addr, backendKind, dataDir, a.Sessions.IsAuthenticated())

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// effectiveAuthTimeout applies the same default app.Config does to a
// non-positive --auth-timeout.
func effectiveAuthTimeout() time.Duration {
	if authTimeout <= 0 {
		return session.DefaultTimeout
	}
	return authTimeout
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Address to listen on")
	serveCmd.Flags().DurationVar(&authTimeout, "auth-timeout", session.DefaultTimeout, "Bound on session checks and sign-out calls")
	serveCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serveCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
	serveCmd.Flags().StringVar(&webhookURL, "audit-webhook", "", "URL that receives audit events as JSON")
	serveCmd.Flags().StringVar(&webhookAuth, "audit-webhook-header", "", `Header added to audit webhook requests, as "Name: value"`)
}
