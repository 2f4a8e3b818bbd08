package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-display-service/internal/observability"
)

// NewRouter wires the routes. PUT /city is rate limited; PUT /city and POST /refresh carry
// requestTimeout so ?wait=true is bounded.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/weather", h.GetWeather).Methods(http.MethodGet)

	withTimeout := TimeoutMiddleware(requestTimeout)
	router.Handle("/city", RateLimitMiddleware(limiter)(withTimeout(http.HandlerFunc(h.PutCity)))).Methods(http.MethodPut)
	router.Handle("/refresh", withTimeout(http.HandlerFunc(h.PostRefresh))).Methods(http.MethodPost)

	return router
}
