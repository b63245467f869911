package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrJamesThe3rd/dealflow/internal/http/export"
	"github.com/MrJamesThe3rd/dealflow/internal/http/forecast"
	"github.com/MrJamesThe3rd/dealflow/internal/http/importcsv"
	metrics "github.com/MrJamesThe3rd/dealflow/internal/http/middleware"
	"github.com/MrJamesThe3rd/dealflow/internal/http/opportunity"
)

func New(
	allowedOrigins []string,
	opportunitiesV1 *opportunity.Handler,
	forecastV1 *forecast.Handler,
	importV1 *importcsv.Handler,
	exportV1 *export.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	router.Use(metrics.Metrics)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/opportunities", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			opportunitiesV1.Routes(r)
		})

		r.Route("/forecast", forecastV1.Routes)

		r.Route("/import", importV1.Routes)

		r.Route("/export", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			exportV1.Routes(r)
		})
	})

	return router
}
