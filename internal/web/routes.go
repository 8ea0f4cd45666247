package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/picscreenr/internal/web/handlers"
	"github.com/kozaktomas/picscreenr/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	imagesHandler := handlers.NewImagesHandler(s.config, s.ingester, s.reader)
	personsHandler := handlers.NewPersonsHandler(s.reader)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Post("/upload_image", imagesHandler.Upload)
	s.router.Get("/description/{id}", imagesHandler.Description)
	s.router.Get("/identify/{id}", imagesHandler.Identify)
	s.router.Get("/persons/{id}", personsHandler.Get)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.NoSniff)
		r.Get("/uploads/{filename}", imagesHandler.ServeUpload)
	})
}
