package api

import (
	"fmt"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/rohits-web03/softvault/docs"
	"github.com/rohits-web03/softvault/internal/access"
	"github.com/rohits-web03/softvault/internal/api/handlers"
	"github.com/rohits-web03/softvault/internal/api/middleware"
)

func health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func SetupRouter(h *handlers.Handlers, log zerolog.Logger) http.Handler {
	mainMux := http.NewServeMux()
	c := cors.New(h.Config.CorsConfig())
	need := middleware.Require

	// ---------- PUBLIC ROUTES ----------
	mainMux.HandleFunc("GET /health", health)
	mainMux.HandleFunc("GET /api/v1/health", health)
	mainMux.HandleFunc("/docs/", httpSwagger.WrapHandler)

	mainMux.HandleFunc("POST /api/v1/auth/sign-up", h.RegisterUser)
	mainMux.HandleFunc("POST /api/v1/auth/login", h.LoginUser)
	mainMux.HandleFunc("GET /api/v1/auth/google/login", h.HandleGoogleLogin)
	mainMux.HandleFunc("GET /api/v1/auth/google/callback", h.HandleGoogleCallback)

	mainMux.HandleFunc("GET /api/v1/software", h.ListSoftware)
	mainMux.HandleFunc("GET /api/v1/software/categories", h.GetCategories)
	mainMux.HandleFunc("GET /api/v1/software/logos/{filename}", h.GetLogo)
	mainMux.HandleFunc("GET /api/v1/software/{id}", h.GetSoftware)

	// ---------- PROTECTED ROUTES ----------
	protectedMux := http.NewServeMux()

	protectedMux.HandleFunc("POST /auth/logout", h.Logout)
	protectedMux.HandleFunc("GET /auth/me", h.Me)

	protectedMux.HandleFunc("POST /requests", need(access.SubmitRequest, h.CreateRequest))
	protectedMux.HandleFunc("GET /requests", h.ListRequests)
	protectedMux.HandleFunc("POST /requests/{id}/review", need(access.ReviewRequest, h.ReviewRequest))

	protectedMux.HandleFunc("POST /software", need(access.ManageCatalog, h.CreateSoftware))
	protectedMux.HandleFunc("PUT /software/{id}", need(access.ManageCatalog, h.UpdateSoftware))
	protectedMux.HandleFunc("DELETE /software/{id}", need(access.ManageCatalog, h.DeleteSoftware))
	protectedMux.HandleFunc("POST /software/{id}/versions", need(access.ManageCatalog, h.UploadVersion))
	protectedMux.HandleFunc("DELETE /software/{id}/versions/{versionId}", need(access.ManageCatalog, h.DeleteVersion))
	protectedMux.HandleFunc("POST /software/{id}/logo", need(access.ManageCatalog, h.UploadLogo))

	protectedMux.HandleFunc("GET /downloads/logs", need(access.Download, h.DownloadLogs))
	protectedMux.HandleFunc("GET /downloads/stats", need(access.ViewStats, h.DownloadStats))
	protectedMux.HandleFunc("GET /downloads/{versionId}", need(access.Download, h.Download))

	protectedMux.HandleFunc("GET /configs", need(access.ManageConfig, h.ListConfigs))
	protectedMux.HandleFunc("POST /configs", need(access.ManageConfig, h.CreateConfig))
	protectedMux.HandleFunc("GET /configs/{key}", need(access.ManageConfig, h.GetConfig))
	protectedMux.HandleFunc("PUT /configs/{key}", need(access.ManageConfig, h.UpdateConfig))
	protectedMux.HandleFunc("DELETE /configs/{key}", need(access.ManageConfig, h.DeleteConfig))

	protectedMux.HandleFunc("GET /categories", h.ListCategoryEntries)
	protectedMux.HandleFunc("GET /categories/all", h.CategoryNames)
	protectedMux.HandleFunc("GET /categories/{id}", h.GetCategory)
	protectedMux.HandleFunc("POST /categories", need(access.ManageCatalog, h.CreateCategory))
	protectedMux.HandleFunc("PUT /categories/{id}", need(access.ManageCatalog, h.UpdateCategory))
	protectedMux.HandleFunc("DELETE /categories/{id}", need(access.ManageCatalog, h.DeleteCategory))

	protectedMux.HandleFunc("GET /users", need(access.ManageUsers, h.ListUsers))
	protectedMux.HandleFunc("POST /users", need(access.ManageUsers, h.CreateUser))
	protectedMux.HandleFunc("PUT /users/{id}", need(access.ManageUsers, h.UpdateUser))
	protectedMux.HandleFunc("DELETE /users/{id}", need(access.ManageUsers, h.DeleteUser))

	protectedMux.HandleFunc("GET /stats/dashboard", need(access.ViewStats, h.Dashboard))
	protectedMux.HandleFunc("GET /stats/tasks", need(access.ViewAudit, h.JobStats))
	protectedMux.HandleFunc("GET /audit-logs", need(access.ViewAudit, h.AuditLogs))

	mainMux.Handle("/api/v1/",
		http.StripPrefix(
			"/api/v1",
			middleware.AuthMiddleware(h.Config.JWTSecret, h.Users)(protectedMux),
		),
	)

	log.Debug().Msg("router initialized")
	handler := c.Handler(mainMux)
	handler = middleware.Recover(handler)
	handler = middleware.Logger(log)(handler)
	return handler
}
