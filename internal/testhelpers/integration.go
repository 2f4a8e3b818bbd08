//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/weather-display-service/internal/client"
	"github.com/kjstillabower/weather-display-service/internal/display"
)

// IntegrationTestConfig holds provider settings for tests that hit the real APIs.
type IntegrationTestConfig struct {
	HGBrasilAPIKey string
	HGBrasilURL    string
	WeatherAPIKey  string
	WeatherAPIURL  string
	City           string
}

// GetIntegrationConfig loads integration settings from the environment.
// Skips the test unless both provider keys are set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	cfg := IntegrationTestConfig{
		HGBrasilAPIKey: os.Getenv("HGBRASIL_API_KEY"),
		HGBrasilURL:    envOr("HGBRASIL_URL", "https://api.hgbrasil.com/weather"),
		WeatherAPIKey:  os.Getenv("WEATHERAPI_API_KEY"),
		WeatherAPIURL:  envOr("WEATHERAPI_URL", "https://api.weatherapi.com/v1/forecast.json"),
		City:           envOr("INTEGRATION_CITY", "Camaragibe"),
	}
	if cfg.HGBrasilAPIKey == "" || cfg.WeatherAPIKey == "" {
		t.Skip("HGBRASIL_API_KEY and WEATHERAPI_API_KEY not set, skipping integration test")
	}
	return cfg
}

// SetupIntegrationClients returns both provider clients with breakers disabled.
func SetupIntegrationClients(t *testing.T, cfg IntegrationTestConfig) (*client.HGBrasilClient, *client.WeatherAPIClient) {
	t.Helper()
	hg, err := client.NewHGBrasilClient(cfg.HGBrasilAPIKey, cfg.HGBrasilURL, 10*time.Second)
	if err != nil {
		t.Fatalf("NewHGBrasilClient() error = %v", err)
	}
	wa, err := client.NewWeatherAPIClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, 10*time.Second, nil)
	if err != nil {
		t.Fatalf("NewWeatherAPIClient() error = %v", err)
	}
	return hg, wa
}

// SetupIntegrationController wires a Controller to the real providers, logging to t.
func SetupIntegrationController(t *testing.T, cfg IntegrationTestConfig) *display.Controller {
	t.Helper()
	hg, wa := SetupIntegrationClients(t, cfg)
	return display.NewController(hg, wa, zaptest.NewLogger(t), display.Options{
		Zone:          time.UTC,
		CityMinLength: 1,
		CityMaxLength: 100,
	})
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
