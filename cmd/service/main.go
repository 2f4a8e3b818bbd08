package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-display-service/internal/client"
	"github.com/kjstillabower/weather-display-service/internal/config"
	"github.com/kjstillabower/weather-display-service/internal/display"
	httphandler "github.com/kjstillabower/weather-display-service/internal/http"
	"github.com/kjstillabower/weather-display-service/internal/observability"
	"github.com/kjstillabower/weather-display-service/internal/scheduler"
)

func main() {
	logger, err := observability.NewLogger("weather-display-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	hgClient, err := client.NewHGBrasilClient(cfg.HGBrasilAPIKey, cfg.HGBrasilURL, cfg.HGBrasilTimeout)
	if err != nil {
		logger.Fatal("hgbrasil client", zap.Error(err))
	}
	waClient, err := client.NewWeatherAPIClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout, cfg.DisplayTimezone)
	if err != nil {
		logger.Fatal("weatherapi client", zap.Error(err))
	}

	if cfg.CircuitBreakerEnabled {
		breakerCfg := client.BreakerConfig{
			FailureThreshold: uint32(cfg.CircuitBreakerFailureThreshold),
			HalfOpenRequests: uint32(cfg.CircuitBreakerHalfOpenRequests),
			Timeout:          cfg.CircuitBreakerTimeout,
		}
		hgClient.SetCircuitBreaker(newBreaker(logger, client.ProviderHGBrasil, breakerCfg))
		waClient.SetCircuitBreaker(newBreaker(logger, client.ProviderWeatherAPI, breakerCfg))
		logger.Info("circuit breakers enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	controller := display.NewController(hgClient, waClient, logger, display.Options{
		Zone:          cfg.DisplayTimezone,
		CityMinLength: cfg.CityMinLength,
		CityMaxLength: cfg.CityMaxLength,
	})
	if _, err := controller.SetCity(context.Background(), cfg.DefaultCity); err != nil {
		logger.Fatal("default city", zap.String("city", cfg.DefaultCity), zap.Error(err))
	}

	refresher := scheduler.New(controller, cfg.RefreshInterval, cfg.RequestTimeout, logger)
	if err := refresher.Start(); err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}

	observability.RegisterProviderGauges(cfg.DegradedWindow, client.ProviderHGBrasil, client.ProviderWeatherAPI)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(controller, &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
	}, logger)
	router := httphandler.NewRouter(handler, logger, limiter, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", ":"+cfg.ServerPort),
			zap.String("default_city", cfg.DefaultCity))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	handler.SetShuttingDown(true)
	refresher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := httphandler.WaitForInFlight(shutdownCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}
	logger.Info("shutdown complete")
}

func newBreaker(logger *zap.Logger, provider string, cfg client.BreakerConfig) *gobreaker.CircuitBreaker {
	observability.CircuitBreakerState.WithLabelValues(provider).Set(0)
	return client.NewBreaker(provider, cfg, func(from, to string) {
		observability.RecordCircuitBreakerTransition(provider, from, to)
		logger.Warn("circuit breaker state change",
			zap.String("provider", provider),
			zap.String("from", from),
			zap.String("to", to))
	})
}
