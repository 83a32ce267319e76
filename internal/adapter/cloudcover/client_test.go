package cloudcover

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
	"github.com/couchcryptid/uv-irradiance-etl/internal/observability"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return &Client{
		token:      testToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func ptr(v float64) *float64 { return &v }

func TestClient_CloudCover_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forecast/test-token/37.1,-6.73,2020-05-02T00:00:00", r.URL.Path)
		assert.Equal(t, "minutely,currently,daily", r.URL.Query().Get("exclude"))
		assert.Equal(t, "si", r.URL.Query().Get("units"))

		resp := response{
			Hourly: hourly{Data: []hour{{CloudCover: ptr(0.1)}, {}, {CloudCover: ptr(0.95)}}},
			Flags:  flags{Sources: []string{"madis", "cmc"}, NearestStation: 4.2},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	cover, err := testClient(srv.URL).CloudCover(context.Background(), testDate.Add(9*time.Hour), testPos)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 120}, cover.Times)
	assert.Equal(t, []float64{0.1, 0.95}, cover.Values)
	assert.Empty(t, cover.Notes)
}

func TestClient_CloudCover_QualityNotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `{"hourly":{"data":[{"cloudCover":0.4}]},"flags":{"sources":["isd","cmc"],"nearest-station":52.5}}`)
	}))
	defer srv.Close()

	cover, err := testClient(srv.URL).CloudCover(context.Background(), testDate, testPos)
	require.NoError(t, err)
	require.Len(t, cover.Notes, 2)
	assert.Contains(t, cover.Notes[0], "MADIS")
	assert.Contains(t, cover.Notes[0], "isd, cmc")
	assert.Contains(t, cover.Notes[1], "52.5 km")
}

func TestClient_CloudCover_NoValuesIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `{"hourly":{"data":[{},{}]},"flags":{"sources":["isd"],"nearest-station":52.0}}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CloudCover(context.Background(), testDate, testPos)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestClient_CloudCover_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CloudCover(context.Background(), testDate, testPos)
	var remote *domain.RemoteServiceError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusForbidden, remote.StatusCode)
	assert.NotContains(t, err.Error(), testToken)
}

func TestClient_CloudCover_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CloudCover(context.Background(), testDate, testPos)
	var remote *domain.RemoteServiceError
	require.ErrorAs(t, err, &remote)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_CloudCover_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL).CloudCover(ctx, testDate, testPos)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
