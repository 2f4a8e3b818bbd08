package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-display-service/internal/client"
	"github.com/kjstillabower/weather-display-service/internal/display"
	"github.com/kjstillabower/weather-display-service/internal/observability"
	"github.com/kjstillabower/weather-display-service/internal/traffic"
	"github.com/kjstillabower/weather-display-service/internal/validation"
)

// Display is the part of display.Controller the handlers use.
type Display interface {
	SetCity(ctx context.Context, city string) (<-chan struct{}, error)
	Refresh(ctx context.Context, trigger string) <-chan struct{}
	Snapshot() display.State
	View(now time.Time) display.View
}

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	display      Display
	healthConfig *HealthConfig
	logger       *zap.Logger
	validate     *validator.Validate
	now          func() time.Time

	shuttingDown     atomic.Bool
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. healthConfig may be nil, which disables the degraded check.
func NewHandler(d Display, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	return &Handler{
		display:      d,
		healthConfig: healthConfig,
		logger:       logger,
		validate:     validator.New(),
		now:          time.Now,
	}
}

// SetShuttingDown flips /health to shutting-down. Called on SIGTERM before the server drains.
func (h *Handler) SetShuttingDown(v bool) {
	h.shuttingDown.Store(v)
}

// GetWeather handles GET /weather.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	view := h.display.View(h.now())
	if view.Error != "" {
		writeError(w, r, http.StatusServiceUnavailable, "WEATHER_UNAVAILABLE", view.Error)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type cityRequest struct {
	City string `json:"city" validate:"required,max=200"`
}

// PutCity handles PUT /city. The display switches to the new city immediately and the
// response carries the loading view (202). With ?wait=true the handler waits for both
// fetches, bounded by the request timeout, and answers 200 once they settle.
func (h *Handler) PutCity(w http.ResponseWriter, r *http.Request) {
	var req cityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON like {\"city\": \"Recife\"}")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", validationMessage(err))
		return
	}

	done, err := h.display.SetCity(r.Context(), req.City)
	if err != nil {
		if isCityValidationError(err) {
			writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
			return
		}
		writeServiceError(w, r, err)
		return
	}
	h.respondAfter(w, r, done)
}

// PostRefresh handles POST /refresh.
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	if h.display.Snapshot().City == "" {
		writeError(w, r, http.StatusConflict, "NO_CITY", "no city selected")
		return
	}
	done := h.display.Refresh(r.Context(), display.TriggerManual)
	h.respondAfter(w, r, done)
}

func (h *Handler) respondAfter(w http.ResponseWriter, r *http.Request, done <-chan struct{}) {
	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, h.display.View(h.now()))
		return
	}
	select {
	case <-done:
		view := h.display.View(h.now())
		if view.Error != "" {
			writeError(w, r, http.StatusServiceUnavailable, "WEATHER_UNAVAILABLE", view.Error)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case <-r.Context().Done():
		writeJSON(w, http.StatusAccepted, h.display.View(h.now()))
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, "city is required")
		case "max":
			parts = append(parts, fmt.Sprintf("city must be at most %s characters", fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("city failed %s", fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func isCityValidationError(err error) bool {
	return errors.Is(err, validation.ErrCityEmpty) ||
		errors.Is(err, validation.ErrCityTooShort) ||
		errors.Is(err, validation.ErrCityTooLong) ||
		errors.Is(err, validation.ErrCityInvalidChars)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{
		client.ProviderHGBrasil:   h.providerCheck(client.ProviderHGBrasil),
		client.ProviderWeatherAPI: h.providerCheck(client.ProviderWeatherAPI),
	}
	snap := h.display.Snapshot()
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "weather-display-service",
		"version":   "dev",
		"city":      snap.City,
		"checks":    checks,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates, in order: shutting-down, then degraded (current
// conditions failing at or above the configured rate), then healthy. Hourly forecast
// failures never degrade the service; they only show in checks.
func (h *Handler) computeHealthStatus() healthResult {
	if h.shuttingDown.Load() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.providerCheck(client.ProviderHGBrasil) == "unhealthy" {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func (h *Handler) providerCheck(provider string) string {
	if h.healthConfig == nil || h.healthConfig.DegradedWindow <= 0 || h.healthConfig.DegradedErrorPct <= 0 {
		return "healthy"
	}
	errs, total := traffic.ErrorRate(provider, h.healthConfig.DegradedWindow)
	if total > 0 && float64(errs)*100/float64(total) >= float64(h.healthConfig.DegradedErrorPct) {
		return "unhealthy"
	}
	return "healthy"
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope. requestId is the correlation ID when set.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeServiceError writes a 500 for unexpected errors and logs the cause.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusInternalServerError, "INTERNAL", "unexpected error")
	observability.LoggerFromContext(r.Context(), zap.NewNop()).Error("request failed", zap.Error(err))
}
