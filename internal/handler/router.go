package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	agenthandler "github.com/apexrevenue/atlas-agent/internal/handler/agent"
	voicehandler "github.com/apexrevenue/atlas-agent/internal/handler/voice"
	middlewarePkg "github.com/apexrevenue/atlas-agent/internal/middleware"
	agentservice "github.com/apexrevenue/atlas-agent/internal/service/agent"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(store *agentservice.Store, voiceHandler *voicehandler.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	agentHandler := agenthandler.New(store)

	r.Route("/api", func(api chi.Router) {
		agentHandler.RegisterRoutes(api)

		if voiceHandler != nil {
			voiceHandler.RegisterRoutes(api)
		}
	})

	return r
}
