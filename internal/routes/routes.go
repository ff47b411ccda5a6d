package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/pawhaven/pawhaven-backend/internal/handlers"
	"github.com/pawhaven/pawhaven-backend/internal/middleware"
)

func SetupRoutes(r *chi.Mux) {
	// Profile routes
	r.Post("/api/profiles", handlers.EnsureProfile)
	r.Get("/api/profiles/{userID}", handlers.GetProfile)
	r.Put("/api/profiles/{userID}", handlers.UpdateProfile)

	// Cat listing routes
	r.Get("/api/cats", handlers.ListCats)
	r.Post("/api/cats", handlers.CreateCat)
	r.Get("/api/cats/{catID}", handlers.GetCat)
	r.Put("/api/cats/{catID}/status", handlers.UpdateCatStatus)
	r.Delete("/api/cats/{catID}", handlers.DeleteCat)
	r.Get("/api/users/{userID}/cats", handlers.ListUserCats)

	// Serverless-style function routes
	r.Post("/api/functions/report-cat", handlers.ReportCat)
	r.With(middleware.UploadRateLimit).Post("/api/functions/upload-media", handlers.UploadMedia)
}
