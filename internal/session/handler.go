package session

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"canvaslab/internal/logging"
	"canvaslab/internal/middleware"
	"canvaslab/internal/room"
)

// Handler upgrades /ws requests and runs a session per connection.
type Handler struct {
	reg      *room.Registry
	ips      *middleware.IPRateLimit
	origins  []string
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler builds the WebSocket entrypoint. An empty origin list
// allows every origin, which is the development default; production
// deployments set ALLOWED_ORIGINS.
func NewHandler(reg *room.Registry, ips *middleware.IPRateLimit, origins []string, log *zap.Logger) *Handler {
	if log == nil {
		log = logging.L()
	}
	h := &Handler{reg: reg, ips: ips, origins: origins, log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.origins) == 0 {
		return true
	}
	for _, allowed := range h.origins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := middleware.ClientIP(r)
	if !h.ips.Allow(ip) {
		h.log.Warn("connection rate limit exceeded", zap.String("ip", ip))
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("upgrade failed", zap.String("ip", ip), zap.Error(err))
		return
	}
	New(conn, h.reg, h.log).Run()
}
