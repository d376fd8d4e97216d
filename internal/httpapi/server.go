package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"diffusiond/internal/catalog"
	"diffusiond/internal/orchestrator"
	"diffusiond/pkg/types"
)

var startedAt = time.Now()

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(corsOptions()))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	// Event streams and binary image routes stay uncompressed.
	r.Get("/events", handleEvents(svc))
	r.Get("/preview", handlePreview(svc))
	r.Get("/images/{id}", handleImage(svc))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5, "application/json"))

		r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, modelsResponse(svc.ListModels()))
		})

		r.Post("/models/refresh", func(w http.ResponseWriter, r *http.Request) {
			models, err := svc.RefreshModels(r.Context())
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, modelsResponse(models))
		})

		r.Get("/models/match", handleModelMatch(svc))

		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			st := svc.Status()
			st.UptimeSeconds = int64(time.Since(startedAt).Seconds())
			st.ServerTimeUnix = time.Now().Unix()
			writeJSON(w, http.StatusOK, st)
		})

		r.Post("/generate", handleGenerate(svc))

		r.Get("/ops/{id}", func(w http.ResponseWriter, r *http.Request) {
			op, ok := svc.Op(chi.URLParam(r, "id"))
			if !ok {
				writeJSONError(w, http.StatusNotFound, "operation not found")
				return
			}
			writeJSON(w, http.StatusOK, opStatus(op))
		})

		r.Post("/cancel", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, types.CancelResponse{Running: svc.Cancel()})
		})

		r.Get("/images", handleImages(svc))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func corsOptions() cors.Options {
	opts := cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: corsAllowedMethods,
		AllowedHeaders: corsAllowedHeaders,
		MaxAge:         300,
	}
	if len(opts.AllowedMethods) == 0 {
		opts.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	if len(opts.AllowedHeaders) == 0 {
		opts.AllowedHeaders = []string{"Content-Type", "X-Log-Level", "X-Request-Id"}
	}
	return opts
}

func handleGenerate(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var in types.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(in.Prompt) == "" {
			writeJSONError(w, http.StatusBadRequest, "prompt is required")
			return
		}
		req, err := toRequest(in)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		lvl := requestLogLevel(r)
		start := time.Now()
		if lvl >= LevelInfo {
			ev := zlog.Info().Str("path", r.URL.Path).Str("model", in.Model).Int("count", req.Count).Bool("async", in.Async)
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				ev = ev.Str("request_id", rid)
			}
			ev.Msg("generate start")
		}

		if in.Async {
			id, err := svc.Submit(r.Context(), req)
			if err != nil {
				logEnd(r, lvl, writeServiceError(w, err), start, err)
				return
			}
			w.Header().Set("Location", "/ops/"+id)
			writeJSON(w, http.StatusAccepted, types.GenerateResponse{OpID: id})
			logEnd(r, lvl, http.StatusAccepted, start, nil)
			return
		}

		ctx, cancel := generateContext(r)
		defer cancel()
		res, err := svc.Run(ctx, req)
		if err != nil {
			// Client went away; nothing left to write.
			if r.Context().Err() != nil {
				logEnd(r, lvl, 499, start, err)
				return
			}
			logEnd(r, lvl, writeServiceError(w, err), start, err)
			return
		}
		writeJSON(w, http.StatusOK, batchResponse(res))
		logEnd(r, lvl, http.StatusOK, start, nil)
	}
}

// handleModelMatch picks the model to switch to from ?group=a,b given the
// currently ?selected one.
func handleModelMatch(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		selected := strings.TrimSpace(q.Get("selected"))
		if selected == "" {
			writeJSONError(w, http.StatusBadRequest, "selected is required")
			return
		}
		var group []string
		for _, g := range strings.Split(q.Get("group"), ",") {
			if g = strings.TrimSpace(g); g != "" {
				group = append(group, g)
			}
		}
		m, matched, err := svc.SwitchModel(selected, group)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.ModelMatchResponse{Model: orchestrator.ModelView(m), Matched: matched})
	}
}

func modelsResponse(models []catalog.ModelEntry) types.ModelsResponse {
	out := types.ModelsResponse{Models: make([]types.Model, 0, len(models))}
	for _, m := range models {
		out.Models = append(out.Models, orchestrator.ModelView(m))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
