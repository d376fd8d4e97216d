package e2e

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"diffusiond/internal/backend/httpworker"
	"diffusiond/internal/catalog"
	"diffusiond/internal/httpapi"
	"diffusiond/internal/orchestrator"
	"diffusiond/internal/results"
)

// createModelsDir lays out compiled model packages with a split-einsum U-Net.
func createModelsDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	desc := []map[string]any{{
		"mlProgramOperationTypeHistogram": map[string]int{"Ios16.einsum": 4},
		"inputSchema": []map[string]string{
			{"name": "sample", "shape": "[2, 4, 64, 64]"},
			{"name": "timestep", "shape": "[2]"},
			{"name": "encoder_hidden_states", "shape": "[2, 768, 1, 77]"},
		},
	}}
	b, err := json.Marshal(desc)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range names {
		unet := filepath.Join(dir, n, "Unet.mlmodelc")
		if err := os.MkdirAll(unet, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(unet, "metadata.json"), b, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// worker is a scripted inference worker speaking the NDJSON protocol. The
// finished image is 4x4 with the seed in the red channel of pixel (0,0).
type worker struct {
	mu     sync.Mutex
	loads  int
	seeds  []int64
	steps  int
	delay  time.Duration
	server *httptest.Server
}

func startWorker(t *testing.T) *worker {
	t.Helper()
	w := &worker{steps: 4}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/load", func(rw http.ResponseWriter, r *http.Request) {
		w.mu.Lock()
		w.loads++
		w.mu.Unlock()
		_ = json.NewEncoder(rw).Encode(map[string]string{"pipeline_id": "p1"})
	})
	mux.HandleFunc("/v1/unload", func(rw http.ResponseWriter, r *http.Request) {
		_, _ = rw.Write([]byte("{}"))
	})
	mux.HandleFunc("/v1/generate", func(rw http.ResponseWriter, r *http.Request) {
		var req struct {
			Seed int64 `json:"seed"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.mu.Lock()
		w.seeds = append(w.seeds, req.Seed)
		steps, delay := w.steps, w.delay
		w.mu.Unlock()
		enc := json.NewEncoder(rw)
		fl := rw.(http.Flusher)
		for s := 1; s <= steps; s++ {
			_ = enc.Encode(map[string]any{"type": "step", "step": s, "total": steps})
			fl.Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(delay):
			}
		}
		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		img.Set(0, 0, color.RGBA{R: uint8(req.Seed), A: 255})
		var buf bytes.Buffer
		_ = png.Encode(&buf, img)
		_ = enc.Encode(map[string]any{"type": "image", "image": base64.StdEncoding.EncodeToString(buf.Bytes())})
	})
	w.server = httptest.NewServer(mux)
	t.Cleanup(w.server.Close)
	return w
}

type stack struct {
	srv     *httptest.Server
	orch    *orchestrator.Orchestrator
	gallery *results.SQLiteGallery
}

// newStack wires catalog, worker client, orchestrator, SQLite gallery and the
// HTTP API the way the daemon does.
func newStack(t *testing.T, modelsDir, workerURL string) *stack {
	t.Helper()
	log := zerolog.Nop()
	g, err := results.OpenGallery(filepath.Join(t.TempDir(), "gallery.db"))
	if err != nil {
		t.Fatalf("open gallery: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	client := httpworker.New(httpworker.Options{BaseURL: workerURL, Logger: log})
	o := orchestrator.New(orchestrator.Config{
		Scanner:    catalog.NewScanner(log),
		ModelsDir:  modelsDir,
		NewBackend: client.Factory().New,
		Upscaler:   results.NewCatmullRom(2),
		Saver:      results.NewAutosaver(),
		Sink:       g,
		Logger:     log,
		MaxWait:    50 * time.Millisecond,
	})
	t.Cleanup(func() { _ = o.Close() })
	if _, err := o.RefreshModels(t.Context()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(httpapi.NewService(o, g)))
	t.Cleanup(srv.Close)
	return &stack{srv: srv, orch: o, gallery: g}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func httpPostJSON(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func decodeJSON(t *testing.T, b []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("decode %q: %v", b, err)
	}
}
