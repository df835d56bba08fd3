package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sigma-chat/internal/server"
	"sigma-chat/internal/session"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve one chat session over HTTP and websocket",
	Long: `Starts the web boundary:

  GET  /api/state     current view with parsed markup
  POST /api/messages  {"text": "..."}
  POST /api/reset
  POST /api/locale    {"locale": "en"}
  GET  /ws            state pushed after every change`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	log, err := newLogger("")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collab, cleanup, err := newCollaborator(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := cfg.SessionOptions()
	opts.Logger = log
	ctrl := session.NewController(session.New(collab, opts), log)
	srv := server.New(ctrl, log)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info("starting chat server", zap.String("addr", cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Close()
		err := httpServer.Shutdown(shutdownCtx)
		ctrl.Close()
		return err
	})
	return eg.Wait()
}
