package ws

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/zt1106/baodatui3/internal/dispatch"
	"github.com/zt1106/baodatui3/internal/middleware"
	"github.com/zt1106/baodatui3/internal/services/user"
)

// RouterConfig holds configuration for the HTTP router
type RouterConfig struct {
	Logger   *slog.Logger
	Users    *user.Service
	Registry *dispatch.Registry
}

// NewRouter creates the HTTP router: the websocket endpoint plus a
// health check.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	r.Handle("/ws", NewHandler(cfg.Users, cfg.Registry, cfg.Logger)).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
