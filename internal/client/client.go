package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/wind-applet/internal/models"
	"github.com/kjstillabower/wind-applet/internal/observability"
	"github.com/kjstillabower/wind-applet/internal/traffic"
)

// DefaultStationURL is the station polled by the applet.
const DefaultStationURL = "https://reg.bom.gov.au/fwo/IDN60701/IDN60701.94592.json"

const maxBodyBytes = 1 << 20

var (
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrNoObservations  = errors.New("station returned no observations")
	ErrCircuitOpen     = errors.New("circuit breaker open")
)

// ObservationClient reports the current observation at the station, returning
// the failure to the caller.
type ObservationClient interface {
	Observe(ctx context.Context, loc models.Location) (models.Observation, error)
}

// StationClient polls a single fixed station endpoint. The location passed to
// Observe and Fetch does not change the request; the station is fixed.
type StationClient struct {
	stationURL string
	userAgent  string
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
	outcomes   *traffic.Tracker
}

// Options configures a StationClient. Zero values select defaults.
type Options struct {
	StationURL string
	UserAgent  string
	// Timeout bounds each request. Zero leaves requests unbounded, so a hung
	// station keeps the last observation on screen.
	Timeout time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	Logger     *zap.Logger
	// Outcomes, if set, records each Fetch result for health reporting.
	Outcomes *traffic.Tracker
}

// NewStationClient returns a client for the configured station.
func NewStationClient(opts Options) *StationClient {
	if opts.StationURL == "" {
		opts.StationURL = DefaultStationURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = observability.AppID
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &StationClient{
		stationURL: opts.StationURL,
		userAgent:  opts.UserAgent,
		client:     httpClient,
		logger:     opts.Logger,
		outcomes:   opts.Outcomes,
	}
}

// BreakerConfig configures the optional circuit breaker.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before a probe.
	OpenTimeout time.Duration
}

// EnableCircuitBreaker stops hitting the station after repeated failures. While
// open, Fetch returns the no-data observation without a request.
func (c *StationClient) EnableCircuitBreaker(cfg BreakerConfig) {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 5 * time.Minute
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "station",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// stationResponse mirrors the station document. Entries are kept raw so a
// malformed field only loses that field.
type stationResponse struct {
	Observations struct {
		Data []map[string]json.RawMessage `json:"data"`
	} `json:"observations"`
}

// Fetch returns the current observation, or the no-data observation on any
// failure. Failures are logged and never returned.
func (c *StationClient) Fetch(ctx context.Context, loc models.Location) models.Observation {
	obs, err := c.Observe(ctx, loc)
	if err != nil {
		category := CategorizeError(err)
		observability.StationFetchErrorsTotal.WithLabelValues(string(category)).Inc()
		c.logger.Error("failed to get station observation",
			zap.Error(err),
			zap.String("category", string(category)),
			zap.String("url", c.stationURL))
		if c.outcomes != nil {
			c.outcomes.RecordError()
		}
		return models.Observation{}
	}
	if c.outcomes != nil {
		c.outcomes.RecordSuccess()
	}
	return obs
}

// Observe performs one GET against the station and decodes the first observation.
func (c *StationClient) Observe(ctx context.Context, loc models.Location) (models.Observation, error) {
	if c.breaker == nil {
		return c.callStation(ctx)
	}
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.callStation(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.StationFetchesTotal.WithLabelValues("circuit_open").Inc()
			return models.Observation{}, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return models.Observation{}, err
	}
	return result.(models.Observation), nil
}

func (c *StationClient) callStation(ctx context.Context) (models.Observation, error) {
	start := time.Now()
	observability.StationFetchesInFlight.Inc()
	defer observability.StationFetchesInFlight.Dec()

	obs, err := c.doRequest(ctx)
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.StationFetchesTotal.WithLabelValues(status).Inc()
	observability.StationFetchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	return obs, err
}

func (c *StationClient) doRequest(ctx context.Context) (models.Observation, error) {
	req, err := c.buildRequest(ctx)
	if err != nil {
		return models.Observation{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.Observation{}, fmt.Errorf("request timeout: %w", err)
		}
		return models.Observation{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Observation{}, fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.Observation{}, fmt.Errorf("read response body: %w", err)
	}
	return decodeObservation(body)
}

func (c *StationClient) buildRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.stationURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// decodeObservation takes the first entry of observations.data. Absent, null or
// mistyped fields decode as absent.
func decodeObservation(body []byte) (models.Observation, error) {
	var resp stationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Observation{}, fmt.Errorf("parse response: %w", err)
	}
	if len(resp.Observations.Data) == 0 {
		return models.Observation{}, ErrNoObservations
	}

	entry := resp.Observations.Data[0]
	if entry == nil {
		return models.Observation{}, fmt.Errorf("parse response: observation entry is null")
	}
	var obs models.Observation
	if raw, ok := entry["wind_dir"]; ok {
		var dir *string
		if json.Unmarshal(raw, &dir) == nil && dir != nil {
			obs.WindDir = *dir
		}
	}
	obs.WindSpeedKt = decodeKnots(entry["wind_spd_kt"])
	obs.GustKt = decodeKnots(entry["gust_kt"])
	return obs, nil
}

// decodeKnots accepts whole numbers in int32 range; anything else is absent.
func decodeKnots(raw json.RawMessage) *int {
	if len(raw) == 0 {
		return nil
	}
	var v *int32
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return nil
	}
	return models.Knots(int(*v))
}
