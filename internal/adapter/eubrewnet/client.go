// Package eubrewnet fetches UV scans, ozone summaries and calibration data
// from the EUBREWNET instrument network database.
package eubrewnet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/uv-irradiance-etl/internal/config"
	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
	"github.com/couchcryptid/uv-irradiance-etl/internal/observability"
)

const provider = "eubrewnet"

// Client queries the EUBREWNET API. It is safe for concurrent use; requests
// are paced by a shared rate limiter.
type Client struct {
	baseURL    string
	user       string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a client from the EUBREWNET_* settings.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:  cfg.EubrewnetURL,
		user:     cfg.EubrewnetUser,
		password: cfg.EubrewnetPassword,
		httpClient: &http.Client{
			Timeout: cfg.EubrewnetTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.EubrewnetRPS), 1),
		metrics: metrics,
		logger:  logger.With("provider", provider),
	}
}

// Ozone returns the level 1.5 ozone observations of a day.
func (c *Client) Ozone(ctx context.Context, brewerID string, date time.Time) (domain.Ozone, error) {
	var rows [][]any
	if err := c.get(ctx, "/data/get/O3L1_5", dayQuery(brewerID, date), &rows); err != nil {
		return domain.Ozone{}, err
	}
	// The first row names the columns.
	if len(rows) < 2 {
		return domain.Ozone{}, domain.ErrUnavailable
	}

	var ozone domain.Ozone
	for _, row := range rows[1:] {
		minutes, value, err := parseOzoneRow(row)
		if err != nil {
			return domain.Ozone{}, c.decodeError("/data/get/O3L1_5", err)
		}
		ozone.Times = append(ozone.Times, minutes)
		ozone.Values = append(ozone.Values, value)
	}

	model, err := c.BrewerModel(ctx, brewerID, date)
	switch {
	case err == nil:
		ozone.BrewerType = model
	case ctx.Err() != nil:
		return domain.Ozone{}, ctx.Err()
	default:
		c.logger.Warn("brewer model unavailable, straylight falls back to settings",
			"brewer_id", brewerID, "error", err)
	}
	return ozone, nil
}

// BrewerModel returns the lower-case model name ("mkiii") of an instrument as
// configured on date.
func (c *Client) BrewerModel(ctx context.Context, brewerID string, date time.Time) (string, error) {
	const path = "/getdataold/getBrewerModel"
	var model string
	if err := c.get(ctx, path, dayQuery(brewerID, date), &model); err != nil {
		return "", err
	}
	model = strings.ToLower(strings.TrimSpace(model))
	if model == "" {
		return "", domain.ErrUnavailable
	}
	return model, nil
}

// parseOzoneRow reads the observation time (column 1, "20200502T083000Z")
// and the ozone column (9) of a row.
func parseOzoneRow(row []any) (minutes, value float64, err error) {
	if len(row) < 10 {
		return 0, 0, fmt.Errorf("ozone row has %d columns, want at least 10", len(row))
	}
	stamp, ok := row[1].(string)
	if !ok || len(stamp) < 2 {
		return 0, 0, fmt.Errorf("ozone row time %v is not a timestamp", row[1])
	}
	t, err := time.Parse("20060102T150405", stamp[:len(stamp)-1])
	if err != nil {
		return 0, 0, fmt.Errorf("ozone row time: %w", err)
	}
	value, err = toFloat(row[9])
	if err != nil {
		return 0, 0, fmt.Errorf("ozone row value: %w", err)
	}
	minutes = float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60
	return minutes, value, nil
}

// Calibration returns the UVR response valid on date.
func (c *Client) Calibration(ctx context.Context, brewerID string, date time.Time) (domain.Calibration, error) {
	var data []json.RawMessage
	const path = "/getdataold/getUVR"
	if err := c.get(ctx, path, dayQuery(brewerID, date), &data); err != nil {
		return domain.Calibration{}, err
	}
	if len(data) < 3 {
		return domain.Calibration{}, domain.ErrUnavailable
	}

	var wavelengths, values []float64
	if err := json.Unmarshal(data[1], &wavelengths); err != nil {
		return domain.Calibration{}, c.decodeError(path, err)
	}
	if err := json.Unmarshal(data[2], &values); err != nil {
		return domain.Calibration{}, c.decodeError(path, err)
	}
	if len(wavelengths) != len(values) {
		return domain.Calibration{}, c.decodeError(path, fmt.Errorf("%d wavelengths for %d values", len(wavelengths), len(values)))
	}
	if len(wavelengths) < 2 {
		return domain.Calibration{}, domain.ErrUnavailable
	}
	for i := range wavelengths {
		wavelengths[i] /= 10
	}
	cal := domain.Calibration{Wavelengths: wavelengths, Values: values}
	if err := cal.Validate(); err != nil {
		return domain.Calibration{}, c.decodeError(path, &domain.MalformedInputError{File: "UVR response", Reason: err.Error()})
	}
	return cal, nil
}

// Sections returns every UV scan of a day across all scan types the
// instrument recorded.
func (c *Client) Sections(ctx context.Context, brewerID string, date time.Time) ([]domain.Section, error) {
	var scanTypes []string
	if err := c.get(ctx, "/getdataold/getUVAvailableScanTypes", dayQuery(brewerID, date), &scanTypes); err != nil {
		return nil, err
	}

	var sections []domain.Section
	for _, scanType := range scanTypes {
		q := dayQuery(brewerID, date)
		q.Set("scantype", scanType)
		var data []json.RawMessage
		if err := c.get(ctx, "/getdataold/getUV", q, &data); err != nil {
			if errors.Is(err, domain.ErrUnavailable) {
				continue
			}
			return nil, err
		}
		parsed, err := parseScans(scanType, data)
		if err != nil {
			return nil, c.decodeError("/getdataold/getUV", err)
		}
		sections = append(sections, parsed...)
	}
	if len(sections) == 0 {
		return nil, domain.ErrUnavailable
	}
	return sections, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, v any) error {
	endpoint := c.baseURL + path + "?" + query.Encode()

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RemoteDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.RemoteRequests.WithLabelValues(provider, "error").Inc()
		return &domain.RemoteServiceError{Provider: provider, URL: path, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
		c.metrics.RemoteRequests.WithLabelValues(provider, "empty").Inc()
		return domain.ErrUnavailable
	case resp.StatusCode != http.StatusOK:
		c.metrics.RemoteRequests.WithLabelValues(provider, "error").Inc()
		return &domain.RemoteServiceError{Provider: provider, URL: path, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return c.decodeError(path, err)
	}
	c.metrics.RemoteRequests.WithLabelValues(provider, "success").Inc()
	c.logger.Debug("remote data retrieved", "path", path, "brewer_id", query.Get("brewerid"), "date", query.Get("date"))
	return nil
}

func (c *Client) decodeError(path string, err error) error {
	c.metrics.RemoteRequests.WithLabelValues(provider, "error").Inc()
	return &domain.RemoteServiceError{Provider: provider, URL: path, Err: fmt.Errorf("decode response: %w", err)}
}

func dayQuery(brewerID string, date time.Time) url.Values {
	return url.Values{
		"brewerid": {brewerID},
		"date":     {date.Format(time.DateOnly)},
	}
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, fmt.Errorf("unexpected value %v", v)
	}
}
