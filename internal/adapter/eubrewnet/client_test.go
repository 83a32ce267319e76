package eubrewnet

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
	"github.com/couchcryptid/uv-irradiance-etl/internal/observability"
)

const (
	testUser     = "station"
	testPassword = "secret"
)

var testDate = time.Date(2020, time.May, 2, 0, 0, 0, 0, time.UTC)

func testClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		user:       testUser,
		password:   testPassword,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func serveJSON(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, testUser, user)
		assert.Equal(t, testPassword, pass)
		assert.Equal(t, "033", r.URL.Query().Get("brewerid"))
		assert.Equal(t, "2020-05-02", r.URL.Query().Get("date"))

		key := r.URL.Path
		if st := r.URL.Query().Get("scantype"); st != "" {
			key += "?" + st
		}
		body, ok := routes[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Ozone(t *testing.T) {
	srv := serveJSON(t, map[string]string{
		"/data/get/O3L1_5": `[
			["gmt","date","a","b","c","d","e","f","g","o3"],
			[0,"20200502T083000Z",0,0,0,0,0,0,0,301.5],
			[0,"20200502T101530Z",0,0,0,0,0,0,0,"305.25"]
		]`,
		"/getdataold/getBrewerModel": `" MKIII "`,
	})
	c := testClient(srv.URL)

	ozone, err := c.Ozone(context.Background(), "033", testDate)
	require.NoError(t, err)
	assert.Equal(t, []float64{510, 615.5}, ozone.Times)
	assert.Equal(t, []float64{301.5, 305.25}, ozone.Values)
	assert.Equal(t, "mkiii", ozone.BrewerType)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.metrics.RemoteRequests.WithLabelValues(provider, "success")))

	apply, known := domain.StraylightApplies(ozone.BrewerType)
	assert.True(t, known)
	assert.False(t, apply)
}

func TestClient_Ozone_WithoutBrewerModel(t *testing.T) {
	srv := serveJSON(t, map[string]string{
		"/data/get/O3L1_5": `[["h"],[0,"20200502T083000Z",0,0,0,0,0,0,0,301.5]]`,
	})
	ozone, err := testClient(srv.URL).Ozone(context.Background(), "033", testDate)
	require.NoError(t, err)
	assert.Equal(t, []float64{301.5}, ozone.Values)
	assert.Empty(t, ozone.BrewerType)
}

func TestClient_BrewerModel_Empty(t *testing.T) {
	srv := serveJSON(t, map[string]string{"/getdataold/getBrewerModel": `""`})
	_, err := testClient(srv.URL).BrewerModel(context.Background(), "033", testDate)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestClient_Ozone_HeaderOnlyIsUnavailable(t *testing.T) {
	srv := serveJSON(t, map[string]string{"/data/get/O3L1_5": `[["gmt","date"]]`})
	_, err := testClient(srv.URL).Ozone(context.Background(), "033", testDate)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestClient_Ozone_BadRow(t *testing.T) {
	srv := serveJSON(t, map[string]string{"/data/get/O3L1_5": `[["h"],[0,"yesterday",0,0,0,0,0,0,0,1]]`})
	_, err := testClient(srv.URL).Ozone(context.Background(), "033", testDate)
	var remote *domain.RemoteServiceError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, provider, remote.Provider)
}

func TestClient_Calibration(t *testing.T) {
	srv := serveJSON(t, map[string]string{
		"/getdataold/getUVR": `[["wl","resp"],[2900,2905,2910],[0.4,0.41,0.42]]`,
	})
	cal, err := testClient(srv.URL).Calibration(context.Background(), "033", testDate)
	require.NoError(t, err)
	assert.Equal(t, []float64{290, 290.5, 291}, cal.Wavelengths)
	assert.Equal(t, []float64{0.4, 0.41, 0.42}, cal.Values)
}

func TestClient_Calibration_UnorderedIsRejected(t *testing.T) {
	srv := serveJSON(t, map[string]string{"/getdataold/getUVR": `[[],[3000,2900],[0.4,0.41]]`})
	var err error
	require.NotPanics(t, func() {
		_, err = testClient(srv.URL).Calibration(context.Background(), "033", testDate)
	})
	var remote *domain.RemoteServiceError
	require.ErrorAs(t, err, &remote)
	assert.True(t, domain.IsMalformed(err))
}

func TestClient_Calibration_LengthMismatch(t *testing.T) {
	srv := serveJSON(t, map[string]string{"/getdataold/getUVR": `[[],[2900,2905],[0.4]]`})
	_, err := testClient(srv.URL).Calibration(context.Background(), "033", testDate)
	var remote *domain.RemoteServiceError
	assert.ErrorAs(t, err, &remote)
}

const scanHeader = `["x","y",0.2294,3.1e-8,3,"2020-05-02","Arenosillo",37.1,6.73,25.5,1013,10]`

func TestClient_Sections(t *testing.T) {
	srv := serveJSON(t, map[string]string{
		"/getdataold/getUVAvailableScanTypes": `["ux","uv"]`,
		"/getdataold/getUV?ux": `[` + scanHeader + `,[600,601,602],[2900,2905,2900],[0,10,0],[100,400,300]]`,
		"/getdataold/getUV?uv": `[` + scanHeader + `,[700],[2900],[0],[100],` + scanHeader + `,[800],[2900],[0],[0]]`,
	})

	sections, err := testClient(srv.URL).Sections(context.Background(), "033", testDate)
	require.NoError(t, err)
	require.Len(t, sections, 3)

	ux := sections[0]
	assert.Equal(t, "ux", ux.Header.Type)
	assert.Equal(t, 0.2294, ux.Header.IntegrationTime)
	assert.Equal(t, 3, ux.Header.Cycles)
	assert.Equal(t, testDate, ux.Header.Date)
	assert.Equal(t, "Arenosillo", ux.Header.Place)
	assert.Equal(t, domain.Position{Latitude: 37.1, Longitude: 6.73}, ux.Header.Position)
	assert.Equal(t, 1013.0, ux.Header.Pressure)
	assert.Equal(t, 10.0, ux.Header.Dark)

	// Duplicate 290 nm samples are merged by mean.
	assert.Equal(t, []float64{290, 290.5}, ux.Wavelengths())
	assert.Equal(t, []float64{200, 400}, ux.Events())
	assert.Equal(t, []float64{601, 601}, ux.Times())

	assert.Equal(t, "uv", sections[1].Header.Type)
	assert.Equal(t, 0.0, sections[2].Values[0].Std)
}

func TestClient_Sections_NoScansIsUnavailable(t *testing.T) {
	srv := serveJSON(t, map[string]string{"/getdataold/getUVAvailableScanTypes": `[]`})
	_, err := testClient(srv.URL).Sections(context.Background(), "033", testDate)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestClient_Sections_BadGroupSize(t *testing.T) {
	srv := serveJSON(t, map[string]string{
		"/getdataold/getUVAvailableScanTypes": `["ux"]`,
		"/getdataold/getUV?ux":                `[` + scanHeader + `,[600]]`,
	})
	_, err := testClient(srv.URL).Sections(context.Background(), "033", testDate)
	var remote *domain.RemoteServiceError
	assert.ErrorAs(t, err, &remote)
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	c := testClient(srv.URL)

	_, err := c.Calibration(context.Background(), "033", testDate)
	var remote *domain.RemoteServiceError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusUnauthorized, remote.StatusCode)
	assert.False(t, domain.IsUnavailable(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.RemoteRequests.WithLabelValues(provider, "error")))
}

func TestClient_NotFoundIsUnavailable(t *testing.T) {
	srv := serveJSON(t, map[string]string{})
	_, err := testClient(srv.URL).Calibration(context.Background(), "033", testDate)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := testClient(url).Ozone(context.Background(), "033", testDate)
	var remote *domain.RemoteServiceError
	require.ErrorAs(t, err, &remote)
	assert.Error(t, remote.Err)
}

func TestMeanOfDuplicates(t *testing.T) {
	in := []domain.RawValue{
		domain.NewRawValue(2, 291, 20, 50),
		domain.NewRawValue(1, 290, 0, 100),
		domain.NewRawValue(3, 290, 2, 300),
	}
	out := meanOfDuplicates(in)
	require.Len(t, out, 2)
	assert.Equal(t, domain.NewRawValue(2, 290, 1, 200), out[0])
	assert.Equal(t, in[0], out[1])
}
