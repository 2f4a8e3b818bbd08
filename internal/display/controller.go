// Package display owns the weather shown for the selected city and the fetches that fill it.
package display

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-display-service/internal/client"
	"github.com/kjstillabower/weather-display-service/internal/models"
	"github.com/kjstillabower/weather-display-service/internal/observability"
	"github.com/kjstillabower/weather-display-service/internal/traffic"
	"github.com/kjstillabower/weather-display-service/internal/validation"
)

// Refresh triggers, used as metric labels.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// Options configures a Controller.
type Options struct {
	// Zone is used for the current hour when the city's own zone is unknown.
	Zone          *time.Location
	CityMinLength int
	CityMaxLength int
}

// Controller holds the display state for the selected city. Each SetCity or Refresh
// starts a new generation; fetch results from older generations are discarded.
type Controller struct {
	primary client.PrimaryClient
	hourly  client.HourlyClient
	logger  *zap.Logger
	opts    Options
	now     func() time.Time

	mu    sync.Mutex
	gen   uint64
	state State
	// pending holds an hourly result that arrived before the primary fetch settled.
	pending *models.HourlyForecast
}

// NewController returns a Controller with no city selected.
func NewController(primary client.PrimaryClient, hourly client.HourlyClient, logger *zap.Logger, opts Options) *Controller {
	if opts.Zone == nil {
		opts.Zone = time.UTC
	}
	return &Controller{
		primary: primary,
		hourly:  hourly,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

// SetCity validates city, clears the display and starts both fetches.
// The returned channel is closed once both fetches have settled.
func (c *Controller) SetCity(ctx context.Context, city string) (<-chan struct{}, error) {
	city, err := validation.ValidateCity(city, c.opts.CityMinLength, c.opts.CityMaxLength)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.state = State{City: city, Loading: true, Generation: gen}
	c.pending = nil
	c.mu.Unlock()

	observability.CityChangesTotal.Inc()
	observability.LoggerFromContext(ctx, c.logger).Info("city selected",
		zap.String("city", city),
		zap.Uint64("generation", gen),
	)
	return c.dispatch(ctx, gen, city), nil
}

// Refresh re-fetches the current city under a new generation, keeping what is displayed
// until the results arrive. It returns a closed channel when no city is selected.
func (c *Controller) Refresh(ctx context.Context, trigger string) <-chan struct{} {
	c.mu.Lock()
	city := c.state.City
	if city == "" {
		c.mu.Unlock()
		done := make(chan struct{})
		close(done)
		return done
	}
	c.gen++
	gen := c.gen
	c.state.Generation = gen
	c.pending = nil
	c.mu.Unlock()

	observability.RefreshesTotal.WithLabelValues(trigger).Inc()
	observability.LoggerFromContext(ctx, c.logger).Debug("refresh started",
		zap.String("city", city),
		zap.String("trigger", trigger),
		zap.Uint64("generation", gen),
	)
	return c.dispatch(ctx, gen, city)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// View returns the render-ready view of the current state at now.
func (c *Controller) View(now time.Time) View {
	return BuildView(c.Snapshot(), now, c.opts.Zone)
}

// dispatch runs both fetches detached from ctx cancellation; the provider clients
// enforce their own timeouts.
func (c *Controller) dispatch(ctx context.Context, gen uint64, city string) <-chan struct{} {
	fetchCtx := context.WithoutCancel(ctx)
	logger := observability.LoggerFromContext(ctx, c.logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		cur, err := c.primary.GetCurrentConditions(fetchCtx, city)
		c.applyPrimary(logger, gen, city, cur, err)
	}()
	go func() {
		defer wg.Done()
		hf, err := c.hourly.GetHourlyForecast(fetchCtx, city)
		if err == nil && len(hf.Hours) == 0 {
			err = ErrEmptyHourly
		}
		c.applyHourly(logger, gen, city, hf, err)
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// currentLocked reports whether a result tagged (gen, city) still belongs to the display.
// Must be called with mu held.
func (c *Controller) currentLocked(gen uint64, city string) bool {
	return gen == c.gen && city == c.state.City
}

func (c *Controller) applyPrimary(logger *zap.Logger, gen uint64, city string, cur models.CurrentConditions, err error) {
	c.mu.Lock()
	if !c.currentLocked(gen, city) {
		c.mu.Unlock()
		discardStale(logger, client.ProviderHGBrasil, gen, city)
		return
	}
	if err != nil {
		category := client.CategorizeError(err)
		c.state.Loading = false
		c.state.Error = UnavailableMessage
		c.state.ErrorCode = string(category)
		c.state.Current = nil
		c.state.Hourly = nil
		c.state.UpdatedAt = c.now()
		c.pending = nil
		c.mu.Unlock()

		fetchErr := &WeatherFetchError{City: city, Err: err}
		traffic.RecordError(client.ProviderHGBrasil)
		observability.ProviderFetchErrorsTotal.WithLabelValues(client.ProviderHGBrasil, string(category)).Inc()
		logger.Error("current conditions unavailable",
			zap.String("city", city),
			zap.String("category", string(category)),
			zap.Error(fetchErr),
		)
		return
	}

	c.state.Loading = false
	c.state.Error = ""
	c.state.ErrorCode = ""
	c.state.Current = &cur
	if c.pending != nil {
		c.state.Hourly = c.pending
		c.pending = nil
	}
	c.state.UpdatedAt = c.now()
	c.mu.Unlock()

	traffic.RecordSuccess(client.ProviderHGBrasil)
	logger.Debug("current conditions updated", zap.String("city", city), zap.Uint64("generation", gen))
}

func (c *Controller) applyHourly(logger *zap.Logger, gen uint64, city string, hf models.HourlyForecast, err error) {
	c.mu.Lock()
	if !c.currentLocked(gen, city) {
		c.mu.Unlock()
		discardStale(logger, client.ProviderWeatherAPI, gen, city)
		return
	}
	if err != nil {
		c.state.Hourly = nil
		c.pending = nil
		c.mu.Unlock()

		fetchErr := &SecondaryForecastError{City: city, Err: err}
		category := client.CategorizeError(err)
		if errors.Is(err, ErrEmptyHourly) {
			category = client.ErrorCategoryResponseShape
		}
		traffic.RecordError(client.ProviderWeatherAPI)
		observability.ProviderFetchErrorsTotal.WithLabelValues(client.ProviderWeatherAPI, string(category)).Inc()
		logger.Warn("hourly forecast unavailable",
			zap.String("city", city),
			zap.String("category", string(category)),
			zap.Error(fetchErr),
		)
		return
	}

	if c.state.Loading || c.state.Error != "" {
		c.pending = &hf
	} else {
		c.state.Hourly = &hf
		c.state.UpdatedAt = c.now()
	}
	c.mu.Unlock()

	traffic.RecordSuccess(client.ProviderWeatherAPI)
	logger.Debug("hourly forecast updated",
		zap.String("city", city),
		zap.Int("hours", len(hf.Hours)),
		zap.Uint64("generation", gen),
	)
}

func discardStale(logger *zap.Logger, provider string, gen uint64, city string) {
	observability.StaleResponsesDiscardedTotal.WithLabelValues(provider).Inc()
	logger.Debug("stale response discarded",
		zap.String("provider", provider),
		zap.String("city", city),
		zap.Uint64("generation", gen),
	)
}

