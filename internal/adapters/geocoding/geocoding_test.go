package geocoding_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/geomap/internal/adapters/geocoding"
	"github.com/samirrijal/geomap/internal/core/domain"
)

func serve(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNominatim_Geocode(t *testing.T) {
	var got *http.Request
	srv := serve(t, http.StatusOK, `[{"display_name":"Dam, Amsterdam","lat":"52.3731","lon":"4.8922"}]`, func(r *http.Request) { got = r })

	n := geocoding.NewNominatim(srv.URL, "geomap-test/1.0", time.Second)
	bias := domain.BoundsAround(domain.Coordinate{Lat: 52, Lng: 5}, 1)
	res, err := n.Geocode(context.Background(), "Dam 1, Amsterdam", bias)
	require.NoError(t, err)

	assert.Equal(t, domain.Coordinate{Lat: 52.3731, Lng: 4.8922}, res.Position)
	assert.Equal(t, "Dam, Amsterdam", res.DisplayName)
	assert.Equal(t, "geomap-test/1.0", got.Header.Get("User-Agent"))
	assert.Equal(t, "Dam 1, Amsterdam", got.URL.Query().Get("q"))
	assert.Equal(t, "json", got.URL.Query().Get("format"))
	assert.NotEmpty(t, got.URL.Query().Get("viewbox"))
}

func TestNominatim_NoResults(t *testing.T) {
	srv := serve(t, http.StatusOK, `[]`, nil)
	_, err := geocoding.NewNominatim(srv.URL, "ua", time.Second).Geocode(context.Background(), "nowhere", domain.Bounds{})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestNominatim_UpstreamError(t *testing.T) {
	srv := serve(t, http.StatusTooManyRequests, `{}`, nil)
	_, err := geocoding.NewNominatim(srv.URL, "ua", time.Second).Geocode(context.Background(), "Dam", domain.Bounds{})
	assert.True(t, errors.Is(err, domain.ErrNetwork))
}

func TestGoogle_Geocode(t *testing.T) {
	var got *http.Request
	srv := serve(t, http.StatusOK, `{"status":"OK","results":[{"formatted_address":"Dam, 1012 Amsterdam","geometry":{"location":{"lat":52.3731,"lng":4.8922}}}]}`, func(r *http.Request) { got = r })

	res, err := geocoding.NewGoogle(srv.URL, "KEY", "PT BR", time.Second).Geocode(context.Background(), "Dam", domain.Bounds{})
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinate{Lat: 52.3731, Lng: 4.8922}, res.Position)
	assert.Equal(t, "KEY", got.URL.Query().Get("key"))
	assert.Equal(t, "pt-br", got.URL.Query().Get("language"))
	assert.Empty(t, got.URL.Query().Get("bounds"))
}

func TestGoogle_Statuses(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"status":"ZERO_RESULTS","results":[]}`, nil)
	_, err := geocoding.NewGoogle(srv.URL, "KEY", "EN US", time.Second).Geocode(context.Background(), "x", domain.Bounds{})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	srv = serve(t, http.StatusOK, `{"status":"REQUEST_DENIED","error_message":"bad key"}`, nil)
	_, err = geocoding.NewGoogle(srv.URL, "KEY", "EN US", time.Second).Geocode(context.Background(), "x", domain.Bounds{})
	assert.True(t, errors.Is(err, domain.ErrNetwork))

	_, err = geocoding.NewGoogle(srv.URL, "", "EN US", time.Second).Geocode(context.Background(), "x", domain.Bounds{})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestMapTiler_Geocode(t *testing.T) {
	var got *http.Request
	srv := serve(t, http.StatusOK, `{"type":"FeatureCollection","features":[{"type":"Feature","place_name":"Dam, Amsterdam","properties":{},"geometry":{"type":"Point","coordinates":[4.8922,52.3731]}}]}`, func(r *http.Request) { got = r })

	res, err := geocoding.NewMapTiler(srv.URL, "KEY", time.Second).Geocode(context.Background(), "Dam 1", domain.Bounds{})
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinate{Lat: 52.3731, Lng: 4.8922}, res.Position)
	assert.Equal(t, "Dam, Amsterdam", res.DisplayName)
	assert.True(t, strings.HasSuffix(got.URL.Path, ".json"))
	assert.Equal(t, "1", got.URL.Query().Get("limit"))
}

func TestMapTiler_Empty(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"type":"FeatureCollection","features":[]}`, nil)
	_, err := geocoding.NewMapTiler(srv.URL, "KEY", time.Second).Geocode(context.Background(), "x", domain.Bounds{})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
