// Package forecast reduces provider forecasts to the slots shown on the display.
// Everything here is a pure function of its inputs.
package forecast

import (
	"github.com/kjstillabower/weather-display-service/internal/condition"
	"github.com/kjstillabower/weather-display-service/internal/models"
)

const (
	// NextHoursWindow is how many hours after the current one are shown.
	NextHoursWindow = 4
	// UpcomingDaysWindow is how many days after today are shown.
	UpcomingDaysWindow = 6
)

// HourSlot is one upcoming hour, ready for display.
type HourSlot struct {
	Clock string  `json:"clock"`
	TempC float64 `json:"tempC"`
	Icon  string  `json:"icon"`
}

// DaySlot is one upcoming day, ready for display.
type DaySlot struct {
	Weekday string  `json:"weekday"`
	Date    string  `json:"date"`
	MaxC    float64 `json:"max"`
	MinC    float64 `json:"min"`
	Icon    string  `json:"icon"`
}

// NextHours keeps the entries whose hour is at or after currentHour, drops the first
// of them (the current hour itself) and returns up to NextHoursWindow of the rest.
// entries must be today's hours in time order; the result is never nil.
func NextHours(entries []models.HourlyEntry, currentHour int) []HourSlot {
	out := make([]HourSlot, 0, NextHoursWindow)
	skipped := false
	for _, e := range entries {
		if e.Time.Hour() < currentHour {
			continue
		}
		if !skipped {
			skipped = true
			continue
		}
		out = append(out, HourSlot{
			Clock: e.Time.Format("15:04"),
			TempC: e.TempC,
			Icon:  condition.Icon(e.Condition),
		})
		if len(out) == NextHoursWindow {
			break
		}
	}
	return out
}

// UpcomingDays returns the days after today (days[0]), at most UpcomingDaysWindow.
func UpcomingDays(days []models.DailyForecast) []DaySlot {
	out := make([]DaySlot, 0, UpcomingDaysWindow)
	if len(days) < 2 {
		return out
	}
	for _, d := range days[1:] {
		out = append(out, DaySlot{
			Weekday: d.Weekday,
			Date:    d.Date,
			MaxC:    d.MaxC,
			MinC:    d.MinC,
			Icon:    condition.Icon(d.Condition),
		})
		if len(out) == UpcomingDaysWindow {
			break
		}
	}
	return out
}
