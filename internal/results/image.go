// Package results receives completed generations: optional upscaling,
// optional autosave to disk, and registration in a gallery store.
package results

import (
	"context"
	"image"
	"time"
)

// GeneratedImage is one completed generation. Ownership passes to the sink
// once it is handed off.
type GeneratedImage struct {
	ID             string
	Prompt         string
	NegativePrompt string
	Model          string
	Scheduler      string
	Steps          int
	GuidanceScale  float32
	Strength       float32
	Width          int
	Height         int
	Seed           uint32
	GeneratedAt    time.Time
	Image          image.Image
	// Path is set once the image has been autosaved.
	Path string
	// Upscaler names the upscaler applied, empty when none was.
	Upscaler string
}

// Gallery is the store completed images are handed to.
type Gallery interface {
	Store(ctx context.Context, img GeneratedImage) (string, error)
	Get(ctx context.Context, id string) (GeneratedImage, error)
	List(ctx context.Context, limit int) ([]GeneratedImage, error)
}

var (
	_ Gallery = (*SQLiteGallery)(nil)
	_ Gallery = (*MemoryGallery)(nil)
)
