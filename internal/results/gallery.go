package results

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"image/png"
	"sort"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	// SQLite driver (pure Go, no CGO required)
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrImageNotFound is returned by Get for unknown ids.
var ErrImageNotFound = errors.New("image not found")

// SQLiteGallery stores results in a SQLite database, pixels as PNG blobs.
type SQLiteGallery struct {
	db *sql.DB
}

// OpenGallery opens (or creates) the gallery database at path and applies
// pending migrations.
func OpenGallery(path string) (*SQLiteGallery, error) {
	if path == "" {
		return nil, fmt.Errorf("gallery path is required")
	}
	// golang-migrate closes the connection it is handed, so migrations get their own.
	if err := migrateUp(path); err != nil {
		return nil, err
	}
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteGallery{db: db}, nil
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, q := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", q, err)
		}
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func migrateUp(path string) error {
	db, err := openSQLite(path)
	if err != nil {
		return err
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return fmt.Errorf("migration source: %w", err)
	}
	drv, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Close releases the database.
func (g *SQLiteGallery) Close() error { return g.db.Close() }

// Store inserts img under a fresh id (or its own, when already set) and returns the id.
func (g *SQLiteGallery) Store(ctx context.Context, img GeneratedImage) (string, error) {
	if img.Image == nil {
		return "", errors.New("gallery: no pixel data")
	}
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.Image); err != nil {
		return "", fmt.Errorf("gallery encode: %w", err)
	}
	_, err := g.db.ExecContext(ctx, `INSERT INTO images
		(id, prompt, negative_prompt, model, scheduler, steps, guidance_scale, strength, width, height, seed, generated_at, path, upscaler, png)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		img.ID, img.Prompt, img.NegativePrompt, img.Model, img.Scheduler, img.Steps,
		img.GuidanceScale, img.Strength, img.Width, img.Height, int64(img.Seed),
		img.GeneratedAt.UnixNano(), img.Path, img.Upscaler, buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("gallery insert: %w", err)
	}
	return img.ID, nil
}

const selectColumns = `id, prompt, negative_prompt, model, scheduler, steps, guidance_scale, strength, width, height, seed, generated_at, path, upscaler`

type rowScanner interface{ Scan(dest ...any) error }

func scanImage(r rowScanner, extra ...any) (GeneratedImage, error) {
	var (
		img  GeneratedImage
		seed int64
		at   int64
	)
	dest := []any{&img.ID, &img.Prompt, &img.NegativePrompt, &img.Model, &img.Scheduler, &img.Steps,
		&img.GuidanceScale, &img.Strength, &img.Width, &img.Height, &seed, &at, &img.Path, &img.Upscaler}
	if err := r.Scan(append(dest, extra...)...); err != nil {
		return GeneratedImage{}, err
	}
	img.Seed = uint32(seed)
	img.GeneratedAt = time.Unix(0, at)
	return img, nil
}

// Get loads one image including its pixels.
func (g *SQLiteGallery) Get(ctx context.Context, id string) (GeneratedImage, error) {
	var blob []byte
	row := g.db.QueryRowContext(ctx, `SELECT `+selectColumns+`, png FROM images WHERE id = ?`, id)
	img, err := scanImage(row, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return GeneratedImage{}, ErrImageNotFound
	}
	if err != nil {
		return GeneratedImage{}, fmt.Errorf("gallery get: %w", err)
	}
	pix, err := png.Decode(bytes.NewReader(blob))
	if err != nil {
		return GeneratedImage{}, fmt.Errorf("gallery decode: %w", err)
	}
	img.Image = pix
	return img, nil
}

// List returns the newest records first, without pixel data.
func (g *SQLiteGallery) List(ctx context.Context, limit int) ([]GeneratedImage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := g.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM images ORDER BY generated_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("gallery list: %w", err)
	}
	defer rows.Close()
	var out []GeneratedImage
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("gallery scan: %w", err)
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// MemoryGallery keeps results in memory.
type MemoryGallery struct {
	mu     sync.Mutex
	images map[string]GeneratedImage
}

func NewMemoryGallery() *MemoryGallery {
	return &MemoryGallery{images: make(map[string]GeneratedImage)}
}

func (g *MemoryGallery) Store(ctx context.Context, img GeneratedImage) (string, error) {
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	g.mu.Lock()
	g.images[img.ID] = img
	g.mu.Unlock()
	return img.ID, nil
}

func (g *MemoryGallery) Get(ctx context.Context, id string) (GeneratedImage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	img, ok := g.images[id]
	if !ok {
		return GeneratedImage{}, ErrImageNotFound
	}
	return img, nil
}

func (g *MemoryGallery) List(ctx context.Context, limit int) ([]GeneratedImage, error) {
	g.mu.Lock()
	out := make([]GeneratedImage, 0, len(g.images))
	for _, img := range g.images {
		img.Image = nil
		out = append(out, img)
	}
	g.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].GeneratedAt.After(out[j].GeneratedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
