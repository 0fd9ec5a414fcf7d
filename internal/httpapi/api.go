// Package httpapi serves the REST side of the canvas: room name
// generation, password checks and updates, image upload and download,
// and the operational endpoints (health, metrics, manual sweep).
package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"canvaslab/internal/logging"
	"canvaslab/internal/room"
	"canvaslab/internal/store"
	"canvaslab/internal/sweeper"
)

// API bundles the dependencies of the HTTP handlers.
type API struct {
	reg           *room.Registry
	st            *store.Store
	sw            *sweeper.Sweeper
	maxImageBytes int64
	origins       []string
	log           *zap.Logger
}

// New builds the handler set.
func New(reg *room.Registry, st *store.Store, sw *sweeper.Sweeper, maxImageBytes int64, origins []string, log *zap.Logger) *API {
	if log == nil {
		log = logging.L()
	}
	return &API{
		reg:           reg,
		st:            st,
		sw:            sw,
		maxImageBytes: maxImageBytes,
		origins:       origins,
		log:           log,
	}
}

// Router assembles the full route table. The WebSocket handler is
// mounted as-is; everything under /api goes through the CORS wrapper.
func (a *API) Router(ws http.Handler) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(a.cors)
	api.HandleFunc("/room/generate", a.handleGenerateName).Methods(http.MethodGet)
	api.HandleFunc("/room/{name}/check", a.handleCheckRoom).Methods(http.MethodGet)
	api.HandleFunc("/room/{name}/password", a.handleSetPassword).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/upload/image", a.handleUploadImage).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/uploads/{room}/{filename}", a.handleServeUpload).Methods(http.MethodGet)
	api.HandleFunc("/sweep", a.handleSweep).Methods(http.MethodPost)

	r.Handle("/ws", ws)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", a.handleHealth).Methods(http.MethodGet)
	return r
}

// cors mirrors the WebSocket origin policy onto the REST endpoints. An
// empty allowlist reflects any origin back, the development default.
func (a *API) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && a.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) originAllowed(origin string) bool {
	if len(a.origins) == 0 {
		return true
	}
	for _, allowed := range a.origins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleSweep(w http.ResponseWriter, _ *http.Request) {
	removed, err := a.sw.Sweep()
	if err != nil {
		a.log.Error("manual sweep failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError keeps the error contract uniform: a JSON object with a
// single message field and the status carrying the semantics.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}
