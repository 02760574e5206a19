package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"

	"github.com/sleevescan/sleevescan/pkg/auth"

	httpLogger "github.com/chi-middleware/logrus-logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sleevescan/sleevescan/internal"
	"github.com/sleevescan/sleevescan/pkg/models"
)

var log = internal.GetLogger()

const ReadHeaderTimeout = 5 * time.Second

// Create creates a new HTTP server with the given app state
func Create(appState *models.AppState) *http.Server {
	router := setupRouter(appState)
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", appState.Config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: ReadHeaderTimeout,
	}
}

func setupRouter(appState *models.AppState) *chi.Mux {
	router := chi.NewRouter()
	router.Use(httpLogger.Logger("router", log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(SendVersion)
	router.Use(middleware.Heartbeat("/healthz"))

	if appState.Config.Auth.Required {
		log.Info("JWT authentication required")
		router.Use(auth.JWTVerifier(appState.Config))
		router.Use(jwtauth.Authenticator)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/snapshot", func(r chi.Router) {
			r.Post("/", CreateSnapshotHandler(appState))
			r.Get("/{snapshotID}", GetSnapshotHandler(appState))
		})
		r.Get("/gallery", GetGalleryHandler(appState))
	})

	// raw snapshot images retained on disk
	if appState.Config.Server.SnapshotDir != "" {
		fileServer := http.FileServer(http.Dir(appState.Config.Server.SnapshotDir))
		router.Handle("/snapshots/*", http.StripPrefix("/snapshots/", fileServer))
	}

	return router
}
