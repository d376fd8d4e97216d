package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"diffusiond/internal/backend"
	"diffusiond/internal/backend/httpworker"
	"diffusiond/internal/catalog"
	"diffusiond/internal/common/fsutil"
	"diffusiond/internal/config"
	"diffusiond/internal/gpu"
	"diffusiond/internal/orchestrator"
	"diffusiond/internal/results"
)

// services is everything built from a Config.
type services struct {
	orch    *orchestrator.Orchestrator
	gallery results.Gallery
	close   func() error
}

func expandDirs(cfg config.Config) (config.Config, error) {
	var err error
	for _, p := range []*string{&cfg.ModelsDir, &cfg.ConditioningDir, &cfg.GalleryPath, &cfg.AutosaveDir, &cfg.LogFile} {
		if *p, err = fsutil.ExpandHome(*p); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// buildServices wires the orchestrator and its collaborators from cfg and
// loads the initial catalog. A failed first scan is logged, not fatal:
// POST /models/refresh retries it.
func buildServices(ctx context.Context, cfg config.Config, log zerolog.Logger) (*services, error) {
	defaultUnits, err := backend.ParseComputeUnits(cfg.ComputeUnits)
	if err != nil {
		return nil, err
	}
	if _, err := results.ParseFormat(cfg.AutosaveFormat); err != nil {
		return nil, err
	}

	scanner := catalog.NewScanner(log.With().Str("component", "catalog").Logger())
	scanner.LinkConditioning = cfg.LinkConditioning

	newBackend := backend.Factory{}.New
	if cfg.WorkerURL != "" {
		client := httpworker.New(httpworker.Options{
			BaseURL:        cfg.WorkerURL,
			APIKey:         cfg.WorkerAPIKey,
			RequestTimeout: time.Duration(cfg.WorkerTimeoutSec) * time.Second,
			NoPreviews:     cfg.NoPreviews,
			Logger:         log.With().Str("component", "worker").Logger(),
		})
		newBackend = client.Factory().New
	} else {
		log.Warn().Msg("no worker_url configured; generation requests will fail with 503")
	}

	resolver := gpu.NewResolver(log.With().Str("component", "gpu").Logger())
	resolve := func(u backend.ComputeUnits) backend.ComputeUnits {
		if u == "" || u == backend.ComputeAuto {
			u = defaultUnits
		}
		return resolver.Resolve(u)
	}

	s := &services{close: func() error { return nil }}
	if cfg.NoGallery {
		s.gallery = results.NewMemoryGallery()
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.GalleryPath), 0o755); err != nil {
			return nil, fmt.Errorf("gallery dir: %w", err)
		}
		g, err := results.OpenGallery(cfg.GalleryPath)
		if err != nil {
			return nil, fmt.Errorf("open gallery: %w", err)
		}
		s.gallery = g
		s.close = g.Close
	}

	s.orch = orchestrator.New(orchestrator.Config{
		Scanner:         scanner,
		ModelsDir:       cfg.ModelsDir,
		ConditioningDir: cfg.ConditioningDir,
		NewBackend:      newBackend,
		ResolveCompute:  resolve,
		Upscaler:        results.NewCatmullRom(cfg.UpscaleFactor),
		Saver:           results.NewAutosaver(),
		Sink:            s.gallery,
		Publisher:       orchestrator.NewLogPublisher(log.With().Str("component", "events").Logger()),
		Logger:          log.With().Str("component", "orchestrator").Logger(),
		MaxWait:         time.Duration(cfg.MaxWaitSec) * time.Second,
		ReduceMemory:    cfg.ReduceMemory,
	})
	if _, err := s.orch.RefreshModels(ctx); err != nil {
		log.Warn().Err(err).Str("models_dir", cfg.ModelsDir).Msg("initial model scan failed")
	}
	return s, nil
}

func (s *services) Close() error {
	err := s.orch.Close()
	if cerr := s.close(); err == nil {
		err = cerr
	}
	return err
}
