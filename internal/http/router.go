package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lochiel/hacienda/internal/auth"
	authHandler "github.com/lochiel/hacienda/internal/http/auth"
	"github.com/lochiel/hacienda/internal/http/document"
	"github.com/lochiel/hacienda/internal/http/dut"
	"github.com/lochiel/hacienda/internal/http/exchange"
	"github.com/lochiel/hacienda/internal/http/export"
	"github.com/lochiel/hacienda/internal/http/httpx"
	"github.com/lochiel/hacienda/internal/http/matching"
	"github.com/lochiel/hacienda/internal/http/sale"
)

type Handlers struct {
	Auth      *authHandler.Handler
	Sales     *sale.Handler
	Documents *document.Handler
	DUT       *dut.Handler
	Exchange  *exchange.Handler
	Matching  *matching.Handler
	Export    *export.Handler
}

type Options struct {
	CORSOrigins []string
	Metrics     bool
}

func New(h Handlers, authSvc *auth.Service, opts Options) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if opts.Metrics {
		router.Handle("/metrics", promhttp.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		requireAuth := auth.Middleware(authSvc)

		r.Route("/auth", func(r chi.Router) {
			h.Auth.Routes(r, requireAuth)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/sales", func(r chi.Router) {
				r.Route("/{id}/documents", h.Documents.Routes)
				h.Sales.Routes(r)
			})

			r.Route("/alerts", h.Sales.AlertRoutes)
			r.Route("/dut", h.DUT.Routes)
			r.Route("/exchange", h.Exchange.Routes)

			r.Route("/matching", func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleAdmin))
				h.Matching.Routes(r)
			})

			r.Route("/export", func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				h.Export.Routes(r)
			})
		})
	})

	return router
}
