package display

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/weather-display-service/internal/client"
	"github.com/kjstillabower/weather-display-service/internal/models"
	"github.com/kjstillabower/weather-display-service/internal/observability"
	"github.com/kjstillabower/weather-display-service/internal/validation"
)

type primaryResult struct {
	cur models.CurrentConditions
	err error
}

type hourlyResult struct {
	hf  models.HourlyForecast
	err error
}

// fakePrimary blocks each call until the test sends a result on the city's channel.
type fakePrimary struct {
	mu      sync.Mutex
	results map[string]chan primaryResult
	corrIDs []string
}

func newFakePrimary(cities ...string) *fakePrimary {
	f := &fakePrimary{results: make(map[string]chan primaryResult)}
	for _, c := range cities {
		f.results[c] = make(chan primaryResult, 4)
	}
	return f
}

func (f *fakePrimary) GetCurrentConditions(ctx context.Context, city string) (models.CurrentConditions, error) {
	f.mu.Lock()
	f.corrIDs = append(f.corrIDs, observability.CorrelationID(ctx))
	ch := f.results[city]
	f.mu.Unlock()
	r := <-ch
	return r.cur, r.err
}

type fakeHourly struct {
	results map[string]chan hourlyResult
}

func newFakeHourly(cities ...string) *fakeHourly {
	f := &fakeHourly{results: make(map[string]chan hourlyResult)}
	for _, c := range cities {
		f.results[c] = make(chan hourlyResult, 4)
	}
	return f
}

func (f *fakeHourly) GetHourlyForecast(_ context.Context, city string) (models.HourlyForecast, error) {
	r := <-f.results[city]
	return r.hf, r.err
}

func conditionsFor(city string) models.CurrentConditions {
	return models.CurrentConditions{
		City:          city,
		Temperature:   29,
		Description:   "Tempo nublado",
		ConditionSlug: "cloudly_day",
		Currently:     "dia",
		Forecast: []models.DailyForecast{
			{Date: "03/11", Weekday: "Dom", MaxC: 31, MinC: 23, Condition: "cloudly_day"},
			{Date: "04/11", Weekday: "Seg", MaxC: 30, MinC: 22, Condition: "rain"},
			{Date: "05/11", Weekday: "Ter", MaxC: 29, MinC: 21, Condition: "storm"},
		},
	}
}

func hourlyFor(city string) models.HourlyForecast {
	day := time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)
	hours := make([]models.HourlyEntry, 24)
	for h := range hours {
		hours[h] = models.HourlyEntry{Time: day.Add(time.Duration(h) * time.Hour), TempC: float64(20 + h%10), Condition: "rain"}
	}
	return models.HourlyForecast{City: city, TZ: "UTC", Location: time.UTC, Hours: hours}
}

func newTestController(t *testing.T, p client.PrimaryClient, h client.HourlyClient) (*Controller, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	c := NewController(p, h, zap.New(core), Options{Zone: time.UTC, CityMinLength: 1, CityMaxLength: 100})
	return c, logs
}

func wait(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fetches did not settle")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestController_SetCity_Success(t *testing.T) {
	p, h := newFakePrimary("Camaragibe"), newFakeHourly("Camaragibe")
	c, _ := newTestController(t, p, h)

	ctx := observability.WithCorrelationID(context.Background(), "corr-1")
	done, err := c.SetCity(ctx, "  Camaragibe ")
	if err != nil {
		t.Fatalf("SetCity() error = %v", err)
	}
	s := c.Snapshot()
	if !s.Loading || s.City != "Camaragibe" || s.Current != nil || s.Hourly != nil {
		t.Fatalf("state right after SetCity = %+v, want loading with no data", s)
	}

	p.results["Camaragibe"] <- primaryResult{cur: conditionsFor("Camaragibe, PE")}
	h.results["Camaragibe"] <- hourlyResult{hf: hourlyFor("Camaragibe")}
	wait(t, done)

	v := c.View(time.Date(2024, 11, 3, 14, 30, 0, 0, time.UTC))
	if v.Loading || v.Error != "" {
		t.Fatalf("view = %+v, want loaded without error", v)
	}
	if v.Current == nil || v.Current.City != "Camaragibe, PE" || !v.Current.IsDaytime {
		t.Fatalf("Current = %+v", v.Current)
	}
	if *v.Current.TodayMax != 31 || *v.Current.TodayMin != 23 {
		t.Errorf("today = %v/%v, want 31/23", *v.Current.TodayMax, *v.Current.TodayMin)
	}
	if v.Current.Icon != "partly-sunny-outline" {
		t.Errorf("Current.Icon = %q", v.Current.Icon)
	}
	wantClocks := []string{"15:00", "16:00", "17:00", "18:00"}
	if len(v.NextHours) != len(wantClocks) {
		t.Fatalf("NextHours = %+v, want %v", v.NextHours, wantClocks)
	}
	for i, want := range wantClocks {
		if v.NextHours[i].Clock != want {
			t.Errorf("NextHours[%d].Clock = %q, want %q", i, v.NextHours[i].Clock, want)
		}
	}
	if len(v.UpcomingDays) != 2 || v.UpcomingDays[0].Weekday != "Seg" {
		t.Errorf("UpcomingDays = %+v", v.UpcomingDays)
	}
	if len(p.corrIDs) != 1 || p.corrIDs[0] != "corr-1" {
		t.Errorf("correlation IDs seen by provider = %v, want [corr-1]", p.corrIDs)
	}
}

func TestController_HourlyHeldWhileLoading(t *testing.T) {
	p, h := newFakePrimary("Recife"), newFakeHourly("Recife")
	c, _ := newTestController(t, p, h)

	done, err := c.SetCity(context.Background(), "Recife")
	if err != nil {
		t.Fatalf("SetCity() error = %v", err)
	}
	h.results["Recife"] <- hourlyResult{hf: hourlyFor("Recife")}
	waitFor(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.pending != nil
	})
	if s := c.Snapshot(); !s.Loading || s.Hourly != nil {
		t.Fatalf("state = %+v, want loading with hourly held back", s)
	}

	p.results["Recife"] <- primaryResult{cur: conditionsFor("Recife, PE")}
	wait(t, done)
	s := c.Snapshot()
	if s.Loading || s.Current == nil || s.Hourly == nil {
		t.Fatalf("state = %+v, want current and hourly published", s)
	}
}

func TestController_PrimaryFailureClearsDisplay(t *testing.T) {
	p, h := newFakePrimary("Nowhere"), newFakeHourly("Nowhere")
	c, logs := newTestController(t, p, h)

	done, err := c.SetCity(context.Background(), "Nowhere")
	if err != nil {
		t.Fatalf("SetCity() error = %v", err)
	}
	p.results["Nowhere"] <- primaryResult{err: fmt.Errorf("%w: HTTP 404", client.ErrLocationNotFound)}
	h.results["Nowhere"] <- hourlyResult{hf: hourlyFor("Nowhere")}
	wait(t, done)

	s := c.Snapshot()
	if s.Loading || s.Error != UnavailableMessage || s.ErrorCode != "location_not_found" {
		t.Fatalf("state = %+v, want error state", s)
	}
	if s.Current != nil || s.Hourly != nil {
		t.Errorf("error state still holds data: current=%v hourly=%v", s.Current, s.Hourly)
	}

	entries := logs.FilterMessage("current conditions unavailable").All()
	if len(entries) != 1 || entries[0].Level != zapcore.ErrorLevel {
		t.Fatalf("error logs = %+v, want one error entry", entries)
	}
	if msg, _ := entries[0].ContextMap()["error"].(string); !strings.Contains(msg, `"Nowhere"`) || !strings.Contains(msg, "location not found") {
		t.Errorf("logged error = %q, want city and cause", msg)
	}
}

func TestController_HourlyFailureOnlyLogs(t *testing.T) {
	tests := []struct {
		name    string
		result  hourlyResult
		wantErr error
	}{
		{"provider error", hourlyResult{err: fmt.Errorf("%w: HTTP 503", client.ErrUpstreamFailure)}, client.ErrUpstreamFailure},
		{"empty hours", hourlyResult{hf: models.HourlyForecast{City: "Olinda"}}, ErrEmptyHourly},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, h := newFakePrimary("Olinda"), newFakeHourly("Olinda")
			c, logs := newTestController(t, p, h)

			done, err := c.SetCity(context.Background(), "Olinda")
			if err != nil {
				t.Fatalf("SetCity() error = %v", err)
			}
			p.results["Olinda"] <- primaryResult{cur: conditionsFor("Olinda, PE")}
			h.results["Olinda"] <- tt.result
			wait(t, done)

			s := c.Snapshot()
			if s.Error != "" || s.Current == nil || s.Hourly != nil {
				t.Fatalf("state = %+v, want current shown and hourly absent", s)
			}
			v := c.View(time.Now())
			if len(v.NextHours) != 0 || v.NextHours == nil {
				t.Errorf("NextHours = %#v, want empty non-nil", v.NextHours)
			}
			entries := logs.FilterMessage("hourly forecast unavailable").All()
			if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
				t.Fatalf("warn logs = %+v, want one warn entry", entries)
			}
			if msg, _ := entries[0].ContextMap()["error"].(string); !strings.Contains(msg, tt.wantErr.Error()) {
				t.Errorf("logged error = %q, want cause %q", msg, tt.wantErr)
			}
		})
	}
}

func TestController_StaleResponsesDiscarded(t *testing.T) {
	p, h := newFakePrimary("Recife", "Olinda"), newFakeHourly("Recife", "Olinda")
	c, logs := newTestController(t, p, h)
	before := testutil.ToFloat64(observability.StaleResponsesDiscardedTotal.WithLabelValues(client.ProviderHGBrasil))

	doneA, err := c.SetCity(context.Background(), "Recife")
	if err != nil {
		t.Fatalf("SetCity(Recife) error = %v", err)
	}
	doneB, err := c.SetCity(context.Background(), "Olinda")
	if err != nil {
		t.Fatalf("SetCity(Olinda) error = %v", err)
	}

	p.results["Olinda"] <- primaryResult{cur: conditionsFor("Olinda, PE")}
	h.results["Olinda"] <- hourlyResult{hf: hourlyFor("Olinda")}
	wait(t, doneB)

	p.results["Recife"] <- primaryResult{cur: conditionsFor("Recife, PE")}
	h.results["Recife"] <- hourlyResult{hf: hourlyFor("Recife")}
	wait(t, doneA)

	s := c.Snapshot()
	if s.City != "Olinda" || s.Current == nil || s.Current.City != "Olinda, PE" || s.Hourly.City != "Olinda" {
		t.Fatalf("state = %+v, want Olinda data only", s)
	}
	after := testutil.ToFloat64(observability.StaleResponsesDiscardedTotal.WithLabelValues(client.ProviderHGBrasil))
	if after-before != 1 {
		t.Errorf("stale hgbrasil discards = %v, want 1", after-before)
	}
	if n := logs.FilterMessage("stale response discarded").Len(); n != 2 {
		t.Errorf("stale discard logs = %d, want 2", n)
	}
}

func TestController_RefreshKeepsDisplayedData(t *testing.T) {
	p, h := newFakePrimary("Recife"), newFakeHourly("Recife")
	c, _ := newTestController(t, p, h)

	done, _ := c.SetCity(context.Background(), "Recife")
	p.results["Recife"] <- primaryResult{cur: conditionsFor("Recife, PE")}
	h.results["Recife"] <- hourlyResult{hf: hourlyFor("Recife")}
	wait(t, done)
	gen := c.Snapshot().Generation

	done = c.Refresh(context.Background(), TriggerManual)
	s := c.Snapshot()
	if s.Loading || s.Current == nil || s.Hourly == nil || s.Generation != gen+1 {
		t.Fatalf("state during refresh = %+v, want data kept under new generation", s)
	}

	updated := conditionsFor("Recife, PE")
	updated.Temperature = 31
	p.results["Recife"] <- primaryResult{cur: updated}
	h.results["Recife"] <- hourlyResult{hf: hourlyFor("Recife")}
	wait(t, done)
	if got := c.Snapshot().Current.Temperature; got != 31 {
		t.Errorf("Temperature after refresh = %v, want 31", got)
	}
}

func TestController_RefreshRecoversFromError(t *testing.T) {
	p, h := newFakePrimary("Recife"), newFakeHourly("Recife")
	c, _ := newTestController(t, p, h)

	done, _ := c.SetCity(context.Background(), "Recife")
	p.results["Recife"] <- primaryResult{err: client.ErrUpstreamFailure}
	h.results["Recife"] <- hourlyResult{hf: hourlyFor("Recife")}
	wait(t, done)
	if s := c.Snapshot(); s.Error == "" || s.Hourly != nil {
		t.Fatalf("state = %+v, want error without hourly", s)
	}

	done = c.Refresh(context.Background(), TriggerScheduled)
	h.results["Recife"] <- hourlyResult{hf: hourlyFor("Recife")}
	waitFor(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.pending != nil
	})
	if s := c.Snapshot(); s.Hourly != nil {
		t.Fatal("hourly published while error is shown")
	}
	p.results["Recife"] <- primaryResult{cur: conditionsFor("Recife, PE")}
	wait(t, done)
	if s := c.Snapshot(); s.Error != "" || s.Current == nil || s.Hourly == nil {
		t.Fatalf("state = %+v, want recovered display", s)
	}
}

func TestController_RefreshWithoutCity(t *testing.T) {
	c, _ := newTestController(t, newFakePrimary(), newFakeHourly())
	select {
	case <-c.Refresh(context.Background(), TriggerScheduled):
	default:
		t.Fatal("Refresh() without a city should return a closed channel")
	}
}

func TestController_SetCity_Invalid(t *testing.T) {
	c, _ := newTestController(t, newFakePrimary(), newFakeHourly())
	done, err := c.SetCity(context.Background(), "   ")
	if !errors.Is(err, validation.ErrCityEmpty) {
		t.Fatalf("SetCity() error = %v, want ErrCityEmpty", err)
	}
	if done != nil {
		t.Error("SetCity() returned a channel on validation error")
	}
	if s := c.Snapshot(); s.City != "" || s.Generation != 0 {
		t.Errorf("state changed on invalid city: %+v", s)
	}
}

func TestFetchErrors_Unwrap(t *testing.T) {
	cause := fmt.Errorf("%w: HTTP 404", client.ErrLocationNotFound)
	var err error = &WeatherFetchError{City: "Nowhere", Err: cause}
	var fe *WeatherFetchError
	if !errors.As(err, &fe) || fe.City != "Nowhere" {
		t.Fatalf("errors.As(WeatherFetchError) failed for %v", err)
	}
	if !errors.Is(err, client.ErrLocationNotFound) {
		t.Error("WeatherFetchError should unwrap to its cause")
	}

	err = &SecondaryForecastError{City: "Olinda", Err: ErrEmptyHourly}
	var se *SecondaryForecastError
	if !errors.As(err, &se) || !errors.Is(err, ErrEmptyHourly) {
		t.Errorf("SecondaryForecastError unwrap failed for %v", err)
	}
	if errors.As(err, &fe) {
		t.Error("SecondaryForecastError must not match WeatherFetchError")
	}
}

func TestController_MissingResultsLeavesNoStaleData(t *testing.T) {
	p, h := newFakePrimary("Recife", "Olinda"), newFakeHourly("Recife", "Olinda")
	c, _ := newTestController(t, p, h)

	done, _ := c.SetCity(context.Background(), "Recife")
	p.results["Recife"] <- primaryResult{cur: conditionsFor("Recife, PE")}
	h.results["Recife"] <- hourlyResult{hf: hourlyFor("Recife")}
	wait(t, done)

	done, _ = c.SetCity(context.Background(), "Olinda")
	p.results["Olinda"] <- primaryResult{err: fmt.Errorf("%w: missing results", client.ErrInvalidResponseShape)}
	h.results["Olinda"] <- hourlyResult{hf: hourlyFor("Olinda")}
	wait(t, done)

	s := c.Snapshot()
	if s.City != "Olinda" || s.Error == "" || s.ErrorCode != string(client.ErrorCategoryResponseShape) {
		t.Fatalf("state = %+v, want response_shape error for Olinda", s)
	}
	if s.Current != nil || s.Hourly != nil {
		t.Errorf("Recife data survived the failed switch: current=%v hourly=%v", s.Current, s.Hourly)
	}
	v := c.View(time.Now())
	if v.Current != nil || len(v.NextHours) != 0 || len(v.UpcomingDays) != 0 {
		t.Errorf("view = %+v, want nothing but the error", v)
	}
}
