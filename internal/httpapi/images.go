package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"diffusiond/internal/results"
	"diffusiond/pkg/types"
)

const maxImageListLimit = 500

func handleImages(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxImageListLimit)
		}
		imgs, err := svc.ListImages(r.Context(), limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		out := types.ImagesResponse{Images: make([]types.ImageSummary, 0, len(imgs))}
		for _, img := range imgs {
			out.Images = append(out.Images, imageSummary(img))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

var contentTypes = map[results.Format]string{
	results.FormatPNG:  "image/png",
	results.FormatJPEG: "image/jpeg",
	results.FormatBMP:  "image/bmp",
	results.FormatTIFF: "image/tiff",
}

// handleImage serves stored pixels, PNG by default or ?format=jpeg|bmp|tiff.
func handleImage(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := results.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		img, err := svc.Image(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if img.Image == nil {
			writeJSONError(w, http.StatusNotFound, "image has no stored pixels")
			return
		}
		w.Header().Set("Content-Type", contentTypes[f])
		w.Header().Set("Cache-Control", "private, max-age=86400")
		if err := results.Encode(w, img.Image, f); err != nil {
			zlog.Warn().Err(err).Str("id", img.ID).Msg("image encode failed")
		}
	}
}
