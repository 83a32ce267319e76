// Package cloudcover retrieves hourly cloud fractions from a Dark Sky
// compatible forecast API.
package cloudcover

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
	"github.com/couchcryptid/uv-irradiance-etl/internal/observability"
)

const (
	provider = "cloud_cover"

	// trustedSource is the station network whose observations make the
	// hourly values reliable enough to choose a correction model.
	trustedSource = "madis"

	// maxStationDistance is how far (km) the nearest station may be before
	// the values are flagged as imprecise.
	maxStationDistance = 30.0
)

// Client fetches cloud cover for a day and position.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a cloud cover client.
func NewClient(baseURL, token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger.With("provider", provider),
	}
}

// CloudCover returns the hourly cloud fractions of date at pos. Hours without
// a value are left out. pos.Longitude is positive West; the API expects
// East-positive longitudes.
func (c *Client) CloudCover(ctx context.Context, date time.Time, pos domain.Position) (domain.CloudCover, error) {
	day := domain.TruncateDay(date)
	location := fmt.Sprintf("%s,%s,%s",
		strconv.FormatFloat(pos.Latitude, 'f', -1, 64),
		strconv.FormatFloat(-pos.Longitude, 'f', -1, 64),
		day.Format("2006-01-02T15:04:05"))
	u := fmt.Sprintf("%s/forecast/%s/%s", c.baseURL, url.PathEscape(c.token), location)
	params := url.Values{
		"exclude": {"minutely,currently,daily"},
		"units":   {"si"},
	}

	forecast, err := c.doRequest(ctx, u+"?"+params.Encode())
	if err != nil {
		return domain.CloudCover{}, err
	}

	log := c.logger.With("date", day.Format(time.DateOnly))
	var cover domain.CloudCover
	if !slices.Contains(forecast.Flags.Sources, trustedSource) {
		log.Warn("cloud cover comes from untrusted sources, correction model may be imprecise",
			"sources", forecast.Flags.Sources)
		cover.Notes = append(cover.Notes, fmt.Sprintf(
			"cloud cover does not come from %s (sources: %s), correction model may be imprecise",
			strings.ToUpper(trustedSource), strings.Join(forecast.Flags.Sources, ", ")))
	}
	if forecast.Flags.NearestStation > maxStationDistance {
		log.Warn("nearest weather station is far from the instrument, correction model may be imprecise",
			"distance_km", forecast.Flags.NearestStation)
		cover.Notes = append(cover.Notes, fmt.Sprintf(
			"nearest weather station is %g km from the instrument, correction model may be imprecise",
			forecast.Flags.NearestStation))
	}

	for i, hour := range forecast.Hourly.Data {
		if hour.CloudCover == nil {
			log.Debug("no cloud cover for hour", "hour", i)
			continue
		}
		cover.Times = append(cover.Times, float64(i*60))
		cover.Values = append(cover.Values, *hour.CloudCover)
	}
	if len(cover.Values) == 0 {
		c.metrics.RemoteRequests.WithLabelValues(provider, "empty").Inc()
		return domain.CloudCover{}, domain.ErrUnavailable
	}
	return cover, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RemoteDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.RemoteRequests.WithLabelValues(provider, "error").Inc()
		return response{}, &domain.RemoteServiceError{Provider: provider, URL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.RemoteRequests.WithLabelValues(provider, "error").Inc()
		return response{}, &domain.RemoteServiceError{Provider: provider, URL: c.baseURL, StatusCode: resp.StatusCode}
	}

	var forecast response
	if err := json.NewDecoder(resp.Body).Decode(&forecast); err != nil {
		c.metrics.RemoteRequests.WithLabelValues(provider, "error").Inc()
		return response{}, &domain.RemoteServiceError{Provider: provider, URL: c.baseURL, Err: fmt.Errorf("decode response: %w", err)}
	}
	c.metrics.RemoteRequests.WithLabelValues(provider, "success").Inc()
	return forecast, nil
}

// Forecast API response types.

type response struct {
	Hourly hourly `json:"hourly"`
	Flags  flags  `json:"flags"`
}

type hourly struct {
	Data []hour `json:"data"`
}

type hour struct {
	CloudCover *float64 `json:"cloudCover"`
}

type flags struct {
	Sources        []string `json:"sources"`
	NearestStation float64  `json:"nearest-station"`
}
