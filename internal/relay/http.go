package relay

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/observability"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/protocol"
)

type HTTPConfig struct {
	Observability observability.Config
	// RequestTimeout bounds the plain HTTP routes. The websocket route is
	// long lived and never subject to it.
	RequestTimeout time.Duration
}

type teamsResponse struct {
	Teams      []string `json:"teams"`
	ServerTime int64    `json:"serverTime"`
}

// NewHTTPHandler exposes the relay websocket and its diagnostics routes.
func NewHTTPHandler(h *Handler, cfg HTTPConfig) http.Handler {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/ws", h.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("ok"))
		})

		r.Get("/teams", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, teamsResponse{
				Teams:      h.Registry().Teams(),
				ServerTime: time.Now().UnixMilli(),
			})
		})

		r.Get("/schema", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string][]string{"schemas": protocol.SchemaNames()})
		})

		r.Get("/schema/{name}", func(w http.ResponseWriter, r *http.Request) {
			schema, ok := protocol.Schema(chi.URLParam(r, "name"))
			if !ok {
				httpError(w, "unknown schema", http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, schema)
		})
	})

	if cfg.Observability.Mount(r) {
		h.logger.Printf("pprof routes enabled")
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func httpError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
