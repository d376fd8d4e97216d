package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"diffusiond/internal/results"
)

// sseHeartbeat keeps idle event streams open through proxies.
var sseHeartbeat = 15 * time.Second

// handleEvents streams progress snapshots as server-sent events. Readers that
// fall behind skip straight to the newest snapshot.
func handleEvents(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ch, cancel := svc.Progress().Subscribe(1)
		defer cancel()
		tick := time.NewTicker(sseHeartbeat)
		defer tick.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-serverBaseCtx.Done():
				return
			case <-tick.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case s, ok := <-ch:
				if !ok {
					return
				}
				data, err := json.Marshal(progressEvent(s))
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

// handlePreview serves the current preview frame as PNG, or 204 when the
// running step has none. ?max=N scales the frame down.
func handlePreview(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		img := svc.Progress().Snapshot().Preview
		if img == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if v := r.URL.Query().Get("max"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeJSONError(w, http.StatusBadRequest, "max must be a positive integer")
				return
			}
			img = results.Thumbnail(img, n)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		if err := results.Encode(w, img, results.FormatPNG); err != nil {
			zlog.Warn().Err(err).Msg("preview encode failed")
		}
	}
}
