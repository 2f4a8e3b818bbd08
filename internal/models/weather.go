package models

import "time"

// CurrentConditions is the primary provider's view of a city: current weather plus a
// multi-day forecast whose first entry is today.
type CurrentConditions struct {
	City          string          `json:"city"`
	Temperature   float64         `json:"temperature"`
	Description   string          `json:"description"`
	ConditionSlug string          `json:"conditionSlug"`
	Humidity      int             `json:"humidity"`
	Cloudiness    float64         `json:"cloudiness"`
	WindSpeedy    string          `json:"windSpeedy"`
	Date          string          `json:"date"`
	Time          string          `json:"time"`
	Currently     string          `json:"currently"` // "dia" or "noite"
	Forecast      []DailyForecast `json:"forecast"`
	FetchedAt     time.Time       `json:"fetchedAt"`
}

// IsDaytime reports whether the provider marked the current period as day.
func (c CurrentConditions) IsDaytime() bool {
	return c.Currently == "dia"
}

type DailyForecast struct {
	Date        string  `json:"date"`
	Weekday     string  `json:"weekday"`
	MaxC        float64 `json:"max"`
	MinC        float64 `json:"min"`
	Condition   string  `json:"condition"`
	Description string  `json:"description,omitempty"`
}

// HourlyForecast holds one day of hourly entries from the secondary provider,
// ordered by time. Location is the city-local zone the timestamps were parsed in.
type HourlyForecast struct {
	City      string         `json:"city"`
	TZ        string         `json:"tz"`
	Location  *time.Location `json:"-"`
	Hours     []HourlyEntry  `json:"hours"`
	FetchedAt time.Time      `json:"fetchedAt"`
}

// HourlyEntry is a single hour. Condition is already translated into the primary
// provider's vocabulary; ProviderCode keeps the raw upstream code for debugging.
type HourlyEntry struct {
	Time          time.Time `json:"time"`
	TempC         float64   `json:"tempC"`
	Condition     string    `json:"condition"`
	ConditionText string    `json:"conditionText,omitempty"`
	ProviderCode  int       `json:"providerCode,omitempty"`
}
