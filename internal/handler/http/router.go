package http

import (
	"io"
	"log/slog"

	"github.com/cmlabs-hris/payroll-dispatch/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

type RouterConfig struct {
	AllowedOrigins []string
}

func NewRouter(logger *slog.Logger, cfg RouterConfig, JWTService jwt.Service, payrollHandler PayrollHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {
		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired)

			r.Route("/payroll-runs", func(r chi.Router) {
				r.Get("/", payrollHandler.ListRuns)
				r.Post("/", payrollHandler.CreateRun)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", payrollHandler.GetRun)
					r.Delete("/", payrollHandler.DeleteRun)

					r.Post("/employees", payrollHandler.AddEmployees)
					r.Route("/lines/{lineID}", func(r chi.Router) {
						r.Delete("/", payrollHandler.RemoveEmployee)
						r.Patch("/", payrollHandler.UpdateLine)
						r.Post("/payment", payrollHandler.MarkLinePayment)
					})

					r.Post("/finalize", payrollHandler.Finalize)
					r.Post("/reopen", payrollHandler.Reopen)
					r.Post("/release", payrollHandler.Release)
					r.Post("/reprocess", payrollHandler.Reprocess)
					r.Post("/cancel", payrollHandler.Cancel)
				})
			})
		})
	})
	return r
}

// NewLogger builds the JSON logger shared by the request logger and the services.
func NewLogger(w io.Writer, appName, version, env string) *slog.Logger {
	logFormat := httplog.SchemaECS.Concise(env != "development")
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", appName),
		slog.String("version", version),
		slog.String("env", env),
	)
}
