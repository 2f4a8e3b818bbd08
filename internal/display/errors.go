package display

import (
	"errors"
	"fmt"
)

// ErrEmptyHourly is returned when the secondary provider answers with no hours.
var ErrEmptyHourly = errors.New("hourly forecast has no entries")

// UnavailableMessage is shown when current conditions cannot be loaded.
const UnavailableMessage = "Não foi possível carregar os dados do clima."

// WeatherFetchError is a failed primary (current conditions) fetch. It clears the display.
type WeatherFetchError struct {
	City string
	Err  error
}

func (e *WeatherFetchError) Error() string {
	return fmt.Sprintf("fetch current conditions for %q: %v", e.City, e.Err)
}

func (e *WeatherFetchError) Unwrap() error { return e.Err }

// SecondaryForecastError is a failed hourly fetch. It is logged and never shown.
type SecondaryForecastError struct {
	City string
	Err  error
}

func (e *SecondaryForecastError) Error() string {
	return fmt.Sprintf("fetch hourly forecast for %q: %v", e.City, e.Err)
}

func (e *SecondaryForecastError) Unwrap() error { return e.Err }
