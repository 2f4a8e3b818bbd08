package display

import (
	"time"

	"github.com/kjstillabower/weather-display-service/internal/condition"
	"github.com/kjstillabower/weather-display-service/internal/forecast"
	"github.com/kjstillabower/weather-display-service/internal/models"
)

// State is what the display currently holds for one city.
//
// Loading implies Current and Hourly are nil. A non-empty Error implies the same.
type State struct {
	City       string
	Loading    bool
	Error      string
	ErrorCode  string
	Current    *models.CurrentConditions
	Hourly     *models.HourlyForecast
	Generation uint64
	UpdatedAt  time.Time
}

// View is the render-ready projection of a State at a given instant.
type View struct {
	City         string              `json:"city"`
	Loading      bool                `json:"loading"`
	Error        string              `json:"error,omitempty"`
	Current      *CurrentView        `json:"current,omitempty"`
	NextHours    []forecast.HourSlot `json:"nextHours"`
	UpcomingDays []forecast.DaySlot  `json:"upcomingDays"`
	UpdatedAt    *time.Time          `json:"updatedAt,omitempty"`
}

// CurrentView is the headline block. TodayMax and TodayMin are nil when the
// provider sent no forecast days.
type CurrentView struct {
	City        string   `json:"city"`
	Temperature float64  `json:"temperature"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	IsDaytime   bool     `json:"isDaytime"`
	Humidity    int      `json:"humidity"`
	Cloudiness  float64  `json:"cloudiness"`
	WindSpeedy  string   `json:"windSpeedy"`
	Date        string   `json:"date"`
	Time        string   `json:"time"`
	TodayMax    *float64 `json:"todayMax,omitempty"`
	TodayMin    *float64 `json:"todayMin,omitempty"`
}

// BuildView derives the view of s at now. The current hour is taken in the city's own
// zone when the hourly forecast carries one, otherwise in zone.
func BuildView(s State, now time.Time, zone *time.Location) View {
	v := View{
		City:         s.City,
		Loading:      s.Loading,
		Error:        s.Error,
		NextHours:    []forecast.HourSlot{},
		UpcomingDays: []forecast.DaySlot{},
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		v.UpdatedAt = &t
	}
	if s.Current != nil {
		c := s.Current
		cv := &CurrentView{
			City:        c.City,
			Temperature: c.Temperature,
			Description: c.Description,
			Icon:        condition.Icon(c.ConditionSlug),
			IsDaytime:   c.IsDaytime(),
			Humidity:    c.Humidity,
			Cloudiness:  c.Cloudiness,
			WindSpeedy:  c.WindSpeedy,
			Date:        c.Date,
			Time:        c.Time,
		}
		if len(c.Forecast) > 0 {
			maxC, minC := c.Forecast[0].MaxC, c.Forecast[0].MinC
			cv.TodayMax, cv.TodayMin = &maxC, &minC
		}
		v.Current = cv
		v.UpcomingDays = forecast.UpcomingDays(c.Forecast)
	}
	if s.Hourly != nil {
		loc := s.Hourly.Location
		if loc == nil {
			loc = zone
		}
		if loc == nil {
			loc = time.UTC
		}
		v.NextHours = forecast.NextHours(s.Hourly.Hours, now.In(loc).Hour())
	}
	return v
}
