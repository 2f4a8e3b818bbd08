package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-display-service/internal/condition"
	"github.com/kjstillabower/weather-display-service/internal/models"
)

// ProviderWeatherAPI labels secondary provider metrics and logs.
const ProviderWeatherAPI = "weatherapi"

// hourLayout is the WeatherAPI hour timestamp format, in the city's local zone.
const hourLayout = "2006-01-02 15:04"

// HourlyClient fetches today's hour-by-hour forecast.
type HourlyClient interface {
	GetHourlyForecast(ctx context.Context, city string) (models.HourlyForecast, error)
}

// WeatherAPIClient talks to the WeatherAPI.com forecast endpoint.
type WeatherAPIClient struct {
	apiKey   string
	t        *transport
	fallback *time.Location
}

// NewWeatherAPIClient returns a client. fallback is the zone used to parse hour
// timestamps when the response carries no usable tz_id; nil means UTC.
func NewWeatherAPIClient(apiKey, apiURL string, timeout time.Duration, fallback *time.Location) (*WeatherAPIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: WeatherAPI key is required", ErrInvalidAPIKey)
	}
	if apiURL == "" {
		return nil, fmt.Errorf("WeatherAPI URL is required")
	}
	if fallback == nil {
		fallback = time.UTC
	}
	return &WeatherAPIClient{
		apiKey:   strings.TrimSpace(apiKey),
		t:        newTransport(ProviderWeatherAPI, apiURL, timeout),
		fallback: fallback,
	}, nil
}

// SetCircuitBreaker wraps every call in cb. Pass nil to disable.
func (c *WeatherAPIClient) SetCircuitBreaker(cb *gobreaker.CircuitBreaker) {
	c.t.breaker = cb
}

type weatherAPIResponse struct {
	Location struct {
		Name      string `json:"name"`
		TzID      string `json:"tz_id"`
		Localtime string `json:"localtime"`
	} `json:"location"`
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Hour []struct {
				Time      string  `json:"time"`
				TempC     float64 `json:"temp_c"`
				IsDay     int     `json:"is_day"`
				Condition struct {
					Text string `json:"text"`
					Code int    `json:"code"`
				} `json:"condition"`
			} `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
	Error *weatherAPIError `json:"error"`
}

type weatherAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *weatherAPIError) asError() error {
	switch e.Code {
	case 1006:
		return fmt.Errorf("%w: %s", ErrLocationNotFound, e.Message)
	case 1002, 2006, 2007, 2008:
		return fmt.Errorf("%w: %s", ErrInvalidAPIKey, e.Message)
	}
	return fmt.Errorf("%w: provider error %d: %s", ErrUpstreamFailure, e.Code, e.Message)
}

// GetHourlyForecast fetches today's hours for city. Timestamps are parsed in the
// city's zone; conditions are translated into the display vocabulary.
func (c *WeatherAPIClient) GetHourlyForecast(ctx context.Context, city string) (models.HourlyForecast, error) {
	resp, err := c.t.get(ctx, map[string]string{
		"key":    c.apiKey,
		"q":      city,
		"days":   "1",
		"aqi":    "no",
		"alerts": "no",
	})
	if err != nil {
		return models.HourlyForecast{}, err
	}

	var apiResp weatherAPIResponse
	decodeErr := json.Unmarshal(resp.Body(), &apiResp)
	if apiResp.Error != nil {
		return models.HourlyForecast{}, apiResp.Error.asError()
	}
	if err := statusError(resp.StatusCode()); err != nil {
		return models.HourlyForecast{}, err
	}
	if decodeErr != nil {
		return models.HourlyForecast{}, fmt.Errorf("%w: parse response: %v", ErrInvalidResponseShape, decodeErr)
	}
	if len(apiResp.Forecast.ForecastDay) == 0 {
		return models.HourlyForecast{}, fmt.Errorf("%w: missing forecastday", ErrInvalidResponseShape)
	}

	loc := c.fallback
	tz := apiResp.Location.TzID
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			tz = ""
		}
	}

	raw := apiResp.Forecast.ForecastDay[0].Hour
	hours := make([]models.HourlyEntry, 0, len(raw))
	for _, h := range raw {
		ts, err := time.ParseInLocation(hourLayout, h.Time, loc)
		if err != nil {
			return models.HourlyForecast{}, fmt.Errorf("%w: hour time %q: %v", ErrInvalidResponseShape, h.Time, err)
		}
		hours = append(hours, models.HourlyEntry{
			Time:          ts,
			TempC:         h.TempC,
			Condition:     string(condition.FromWeatherAPI(h.Condition.Code, h.IsDay == 1)),
			ConditionText: h.Condition.Text,
			ProviderCode:  h.Condition.Code,
		})
	}

	name := apiResp.Location.Name
	if name == "" {
		name = city
	}
	return models.HourlyForecast{
		City:      name,
		TZ:        tz,
		Location:  loc,
		Hours:     hours,
		FetchedAt: time.Now(),
	}, nil
}
