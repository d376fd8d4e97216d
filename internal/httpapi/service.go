package httpapi

import (
	"context"

	"diffusiond/internal/catalog"
	"diffusiond/internal/orchestrator"
	"diffusiond/internal/progress"
	"diffusiond/internal/results"
	"diffusiond/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []catalog.ModelEntry
	RefreshModels(ctx context.Context) ([]catalog.ModelEntry, error)
	SwitchModel(selected string, group []string) (catalog.ModelEntry, bool, error)
	Status() types.StatusResponse
	Run(ctx context.Context, req orchestrator.Request) (orchestrator.BatchResult, error)
	Submit(ctx context.Context, req orchestrator.Request) (string, error)
	Op(id string) (orchestrator.Op, bool)
	Cancel() bool
	Ready() bool
	Progress() *progress.Broadcaster
	ListImages(ctx context.Context, limit int) ([]results.GeneratedImage, error)
	Image(ctx context.Context, id string) (results.GeneratedImage, error)
}

// orchestratorService serves the API from an orchestrator and the gallery it
// stores into.
type orchestratorService struct {
	*orchestrator.Orchestrator
	gallery results.Gallery
}

// NewService adapts o and g to Service. A nil gallery serves empty listings.
func NewService(o *orchestrator.Orchestrator, g results.Gallery) Service {
	if g == nil {
		g = results.NewMemoryGallery()
	}
	return &orchestratorService{Orchestrator: o, gallery: g}
}

func (s *orchestratorService) ListImages(ctx context.Context, limit int) ([]results.GeneratedImage, error) {
	return s.gallery.List(ctx, limit)
}

func (s *orchestratorService) Image(ctx context.Context, id string) (results.GeneratedImage, error) {
	return s.gallery.Get(ctx, id)
}
