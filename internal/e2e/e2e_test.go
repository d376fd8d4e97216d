package e2e

import (
	"bytes"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"diffusiond/pkg/types"
)

func TestE2E_GenerateStoreAndFetch(t *testing.T) {
	w := startWorker(t)
	st := newStack(t, createModelsDir(t, "sd21", "Alpha"), w.server.URL)
	saveDir := t.TempDir()

	resp, body := httpGet(t, st.srv.URL+"/models")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/models %d %s", resp.StatusCode, body)
	}
	var mr types.ModelsResponse
	decodeJSON(t, body, &mr)
	if len(mr.Models) != 2 || mr.Models[0].Name != "Alpha" || mr.Models[1].Attention != "split-einsum" {
		t.Fatalf("unexpected catalog: %+v", mr.Models)
	}

	resp, body = httpPostJSON(t, st.srv.URL+"/generate",
		`{"prompt":"red fox","model":"sd21","count":2,"seed":7,"steps":4,"save_dir":"`+saveDir+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/generate %d %s", resp.StatusCode, body)
	}
	var gr types.GenerateResponse
	decodeJSON(t, body, &gr)
	if len(gr.Images) != 2 || gr.Images[0].Seed != 7 || gr.Images[1].Seed != 8 || gr.Failed != 0 {
		t.Fatalf("unexpected batch: %+v", gr)
	}
	for _, img := range gr.Images {
		if img.Path == "" || filepath.Dir(img.Path) != saveDir {
			t.Fatalf("image not autosaved into %s: %+v", saveDir, img)
		}
		if _, err := os.Stat(img.Path); err != nil {
			t.Fatalf("autosaved file missing: %v", err)
		}
	}

	resp, body = httpGet(t, st.srv.URL+"/images")
	var ir types.ImagesResponse
	decodeJSON(t, body, &ir)
	if len(ir.Images) != 2 {
		t.Fatalf("expected 2 gallery images, got %+v", ir)
	}

	resp, body = httpGet(t, st.srv.URL+"/images/"+gr.Images[1].ID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/images/{id} %d %s", resp.StatusCode, body)
	}
	img, err := png.Decode(bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if r, _, _, _ := img.At(0, 0).RGBA(); r>>8 != 8 {
		t.Fatalf("expected seed 8 in stored pixels, got %d", r>>8)
	}

	resp, body = httpGet(t, st.srv.URL+"/status")
	var sr types.StatusResponse
	decodeJSON(t, body, &sr)
	if sr.State != "ready" || sr.Loaded == nil || sr.Loaded.Model != "sd21" || sr.Busy {
		t.Fatalf("unexpected status: %+v", sr)
	}

	// Same model and settings reuse the loaded pipeline.
	httpPostJSON(t, st.srv.URL+"/generate", `{"prompt":"again","model":"sd21","steps":2}`)
	w.mu.Lock()
	loads := w.loads
	w.mu.Unlock()
	if loads != 1 {
		t.Fatalf("expected one load, got %d", loads)
	}
}

func TestE2E_AsyncOperation(t *testing.T) {
	w := startWorker(t)
	w.delay = 20 * time.Millisecond
	st := newStack(t, createModelsDir(t, "sd21"), w.server.URL)

	resp, body := httpPostJSON(t, st.srv.URL+"/generate", `{"prompt":"async fox","count":3,"seed":100,"async":true}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d %s", resp.StatusCode, body)
	}
	var gr types.GenerateResponse
	decodeJSON(t, body, &gr)
	if gr.OpID == "" {
		t.Fatalf("missing op id")
	}

	// The slot is held, so a synchronous request is turned away.
	resp, _ = httpPostJSON(t, st.srv.URL+"/generate", `{"prompt":"impatient"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 while busy, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(5 * time.Second)
	var op types.OpStatus
	for {
		_, body = httpGet(t, st.srv.URL+"/ops/"+gr.OpID)
		decodeJSON(t, body, &op)
		if op.State != "running" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("operation did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if op.State != "done" || op.Result == nil || len(op.Result.Images) != 3 || op.Result.Images[2].Seed != 102 {
		t.Fatalf("unexpected op: %+v", op)
	}
}

func TestE2E_CancelStopsBatch(t *testing.T) {
	w := startWorker(t)
	w.steps, w.delay = 50, 10*time.Millisecond
	st := newStack(t, createModelsDir(t, "sd21"), w.server.URL)

	_, body := httpPostJSON(t, st.srv.URL+"/generate", `{"prompt":"long","count":5,"async":true}`)
	var gr types.GenerateResponse
	decodeJSON(t, body, &gr)

	deadline := time.Now().Add(2 * time.Second)
	for st.orch.Snapshot().State != "running" {
		if time.Now().After(deadline) {
			t.Fatalf("batch never started running")
		}
		time.Sleep(5 * time.Millisecond)
	}
	resp, body := httpPostJSON(t, st.srv.URL+"/cancel", "")
	var cr types.CancelResponse
	decodeJSON(t, body, &cr)
	if resp.StatusCode != http.StatusOK || !cr.Running {
		t.Fatalf("cancel: %d %s", resp.StatusCode, body)
	}

	deadline = time.Now().Add(5 * time.Second)
	var op types.OpStatus
	for {
		_, body = httpGet(t, st.srv.URL+"/ops/"+gr.OpID)
		decodeJSON(t, body, &op)
		if op.State != "running" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("cancelled batch did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if op.Result == nil || !op.Result.Cancelled || len(op.Result.Images) != 0 {
		t.Fatalf("expected a cancelled batch with no images, got %+v", op)
	}
}

func TestE2E_ErrorMapping(t *testing.T) {
	w := startWorker(t)
	st := newStack(t, createModelsDir(t, "sd21"), w.server.URL)

	resp, body := httpPostJSON(t, st.srv.URL+"/generate", `{"prompt":"x","model":"missing"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown model, got %d %s", resp.StatusCode, body)
	}
	resp, body = httpPostJSON(t, st.srv.URL+"/generate", `{"prompt":"x","scheduler":"euler-ancestral"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unsupported scheduler, got %d %s", resp.StatusCode, body)
	}
	resp, body = httpPostJSON(t, st.srv.URL+"/generate", `{"prompt":"x","mask":"`+strings.Repeat("A", 8)+`"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for undecodable mask, got %d %s", resp.StatusCode, body)
	}

	// With the worker gone, loading fails as a dependency outage.
	w.server.Close()
	resp, body = httpPostJSON(t, st.srv.URL+"/generate", `{"prompt":"x"}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with worker down, got %d %s", resp.StatusCode, body)
	}
	_, body = httpGet(t, st.srv.URL+"/status")
	var sr types.StatusResponse
	decodeJSON(t, body, &sr)
	if sr.State != "error" || sr.Message == "" {
		t.Fatalf("expected error state after failed load, got %+v", sr)
	}
}
