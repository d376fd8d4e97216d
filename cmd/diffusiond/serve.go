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

	"diffusiond/internal/config"
	"diffusiond/internal/httpapi"
	"diffusiond/internal/results"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API",
		Example: "  diffusiond serve --models-dir ~/models/diffusion --worker-url http://127.0.0.1:7861",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	f := cmd.Flags()
	f.String("addr", "", "HTTP listen address (default "+config.DefaultAddr+")")
	f.String("cors-origins", "", "Comma-separated list of allowed CORS origins (empty disables CORS)")
	f.String("gallery", "", "SQLite gallery path (default "+config.DefaultGalleryPath+")")
	f.Bool("no-gallery", false, "Keep generated images in memory only")
	f.String("autosave-dir", "", "Default autosave directory for requests that name none")
	f.String("autosave-format", "", "Default autosave format: png|jpeg|bmp|tiff")
	f.Bool("reduce-memory", false, "Unload the pipeline after every batch")
	f.Bool("link-conditioning", false, "Link the conditioning directory into each model package")
	f.Bool("no-previews", false, "Never ask the worker for preview frames, whatever the request says")
	f.Int("max-wait-sec", 0, "Seconds a request waits for a running batch before 409")
	f.Int("upscale-factor", 0, "Integer factor used by the upscaler")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svcs, err := buildServices(ctx, a.cfg, a.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := svcs.Close(); err != nil {
			a.log.Warn().Err(err).Msg("shutdown cleanup failed")
		}
	}()

	format, _ := results.ParseFormat(a.cfg.AutosaveFormat)
	httpapi.SetLogger(a.log.With().Str("component", "http").Logger())
	httpapi.SetAutosaveDefaults(a.cfg.AutosaveDir, format)
	httpapi.SetCORSOptions(len(a.cfg.CORSOrigins) > 0, a.cfg.CORSOrigins, nil, nil)
	if a.cfg.WorkerTimeoutSec > 0 {
		httpapi.SetGenerateTimeoutSeconds(int64(a.cfg.WorkerTimeoutSec))
	}
	httpapi.SetBaseContext(ctx)

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           httpapi.NewMux(httpapi.NewService(svcs.orch, svcs.gallery)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.cfg.Addr).Str("models_dir", a.cfg.ModelsDir).Msg("diffusiond listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	// Stop the running batch so shutdown does not wait out a long generation.
	svcs.orch.Cancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
