package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gdtech/hackathon/internal/api/handlers"
	"github.com/gdtech/hackathon/pkg/logger"
)

// Handlers groups everything the router serves
type Handlers struct {
	Hackathon *handlers.HackathonHandler
	Cache     *handlers.CacheHandler
	Health    *handlers.HealthHandler
	// Token serves /hackathon/token/*; nil disables the routes
	Token *handlers.TokenHandler
	// WebSocket serves /ws/ranking; nil disables the route
	WebSocket http.HandlerFunc
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 路由配置只在这个函数
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/hackathon").Subrouter()
	api.HandleFunc("/health", h.Health.Health).Methods(http.MethodGet)

	api.HandleFunc("/stage", h.Hackathon.GetStage).Methods(http.MethodGet)
	api.HandleFunc("/projects", h.Hackathon.GetProjects).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", h.Hackathon.GetProject).Methods(http.MethodGet)
	api.HandleFunc("/login", h.Hackathon.Login).Methods(http.MethodPost)
	api.HandleFunc("/investor/{username}", h.Hackathon.GetInvestor).Methods(http.MethodGet)
	api.HandleFunc("/invest", h.Hackathon.Invest).Methods(http.MethodPost)

	api.HandleFunc("/cache/clear", h.Cache.ClearAll).Methods(http.MethodPost)
	api.HandleFunc("/cache/clear/investor/{username}", h.Cache.ClearInvestor).Methods(http.MethodPost)
	api.HandleFunc("/cache/clear/project/{id}", h.Cache.ClearProject).Methods(http.MethodPost)

	if h.Token != nil {
		api.HandleFunc("/token/update/{account}", h.Token.UpdateToken).Methods(http.MethodPost)
		api.HandleFunc("/token/status/{account}", h.Token.GetStatus).Methods(http.MethodGet)
	}

	if h.WebSocket != nil {
		r.HandleFunc("/ws/ranking", h.WebSocket).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(notFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}
