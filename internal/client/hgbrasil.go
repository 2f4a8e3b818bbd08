package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-display-service/internal/models"
)

// ProviderHGBrasil labels primary provider metrics and logs.
const ProviderHGBrasil = "hgbrasil"

// PrimaryClient fetches current conditions plus the multi-day forecast.
type PrimaryClient interface {
	GetCurrentConditions(ctx context.Context, city string) (models.CurrentConditions, error)
}

// HGBrasilClient talks to the HG Brasil weather API.
type HGBrasilClient struct {
	apiKey string
	t      *transport
}

func NewHGBrasilClient(apiKey, apiURL string, timeout time.Duration) (*HGBrasilClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: HG Brasil API key is required", ErrInvalidAPIKey)
	}
	if apiURL == "" {
		return nil, fmt.Errorf("HG Brasil API URL is required")
	}
	return &HGBrasilClient{
		apiKey: strings.TrimSpace(apiKey),
		t:      newTransport(ProviderHGBrasil, apiURL, timeout),
	}, nil
}

// SetCircuitBreaker wraps every call in cb. Pass nil to disable.
func (c *HGBrasilClient) SetCircuitBreaker(cb *gobreaker.CircuitBreaker) {
	c.t.breaker = cb
}

type hgBrasilResponse struct {
	ValidKey *bool            `json:"valid_key"`
	Error    bool             `json:"error"`
	Message  string           `json:"message"`
	Results  *hgBrasilResults `json:"results"`
}

type hgBrasilResults struct {
	Temp          float64 `json:"temp"`
	Date          string  `json:"date"`
	Time          string  `json:"time"`
	Description   string  `json:"description"`
	Currently     string  `json:"currently"`
	City          string  `json:"city"`
	CityName      string  `json:"city_name"`
	Humidity      int     `json:"humidity"`
	Cloudiness    float64 `json:"cloudiness"`
	WindSpeedy    string  `json:"wind_speedy"`
	ConditionSlug string  `json:"condition_slug"`
	Forecast      []struct {
		Date        string  `json:"date"`
		Weekday     string  `json:"weekday"`
		Max         float64 `json:"max"`
		Min         float64 `json:"min"`
		Condition   string  `json:"condition"`
		Description string  `json:"description"`
	} `json:"forecast"`
}

// GetCurrentConditions fetches conditions for city. A body without a results object
// fails with ErrInvalidResponseShape.
func (c *HGBrasilClient) GetCurrentConditions(ctx context.Context, city string) (models.CurrentConditions, error) {
	resp, err := c.t.get(ctx, map[string]string{
		"key":       c.apiKey,
		"city_name": city,
	})
	if err != nil {
		return models.CurrentConditions{}, err
	}
	if err := statusError(resp.StatusCode()); err != nil {
		return models.CurrentConditions{}, err
	}

	var apiResp hgBrasilResponse
	if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
		return models.CurrentConditions{}, fmt.Errorf("%w: parse response: %v", ErrInvalidResponseShape, err)
	}
	if apiResp.Error {
		return models.CurrentConditions{}, fmt.Errorf("%w: %s", ErrUpstreamFailure, apiResp.Message)
	}
	if apiResp.ValidKey != nil && !*apiResp.ValidKey {
		return models.CurrentConditions{}, fmt.Errorf("%w: rejected by provider", ErrInvalidAPIKey)
	}
	if apiResp.Results == nil {
		return models.CurrentConditions{}, fmt.Errorf("%w: missing results", ErrInvalidResponseShape)
	}
	return mapHGBrasil(*apiResp.Results, city), nil
}

func mapHGBrasil(r hgBrasilResults, city string) models.CurrentConditions {
	name := r.City
	if name == "" {
		name = r.CityName
	}
	if name == "" {
		name = city
	}
	days := make([]models.DailyForecast, 0, len(r.Forecast))
	for _, d := range r.Forecast {
		days = append(days, models.DailyForecast{
			Date:        d.Date,
			Weekday:     d.Weekday,
			MaxC:        d.Max,
			MinC:        d.Min,
			Condition:   d.Condition,
			Description: d.Description,
		})
	}
	return models.CurrentConditions{
		City:          name,
		Temperature:   r.Temp,
		Description:   r.Description,
		ConditionSlug: r.ConditionSlug,
		Humidity:      r.Humidity,
		Cloudiness:    r.Cloudiness,
		WindSpeedy:    r.WindSpeedy,
		Date:          r.Date,
		Time:          r.Time,
		Currently:     r.Currently,
		Forecast:      days,
		FetchedAt:     time.Now(),
	}
}
