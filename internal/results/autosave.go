package results

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Format is an autosave image codec.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// ParseFormat accepts a codec name or common extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "bmp":
		return FormatBMP, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	default:
		return "", fmt.Errorf("unsupported image format %q", s)
	}
}

func (f Format) ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// Encode writes img to w in format f.
func Encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 92})
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported image format %q", f)
	}
}

const maxSlugLen = 48

// Autosaver writes results into a directory with names derived from the
// prompt, the seed and a running count per directory.
type Autosaver struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewAutosaver() *Autosaver { return &Autosaver{counts: make(map[string]int)} }

// Save encodes img into dir and returns the written path.
func (a *Autosaver) Save(ctx context.Context, img GeneratedImage, dir string, f Format) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if img.Image == nil {
		return "", errors.New("autosave: no pixel data")
	}
	if f == "" {
		f = FormatPNG
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("autosave dir: %w", err)
	}
	slug := promptSlug(img.Prompt)
	for {
		count := a.nextCount(dir)
		p := filepath.Join(dir, fmt.Sprintf("%s.%d.%d.%s", slug, img.Seed, count, f.ext()))
		file, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("autosave: %w", err)
		}
		if err := Encode(file, img.Image, f); err != nil {
			file.Close()
			_ = os.Remove(p)
			return "", fmt.Errorf("autosave encode: %w", err)
		}
		if err := file.Close(); err != nil {
			return "", fmt.Errorf("autosave: %w", err)
		}
		return p, nil
	}
}

// nextCount continues numbering from the files already in dir.
func (a *Autosaver) nextCount(dir string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, ok := a.counts[dir]
	if !ok {
		if entries, err := os.ReadDir(dir); err == nil {
			for _, e := range entries {
				if !e.IsDir() {
					n++
				}
			}
		}
	}
	n++
	a.counts[dir] = n
	return n
}

func promptSlug(prompt string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(prompt) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
		} else if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
		if b.Len() >= maxSlugLen {
			break
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		return "image"
	}
	return s
}
