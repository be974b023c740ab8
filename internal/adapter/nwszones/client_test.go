package nwszones

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/geo"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/resilience"
)

const zoneFeatureJSON = `{
  "type": "Feature",
  "id": "https://api.weather.gov/zones/forecast/WAZ001",
  "geometry": {"type": "Polygon", "coordinates": [[[-123.0, 48.0], [-122.0, 48.0], [-122.0, 49.0], [-123.0, 49.0], [-123.0, 48.0]]]},
  "properties": {"id": "WAZ001", "name": "Western Whatcom County"}
}`

// httpFetcher adapts resilience.GetHTTP to Fetcher without retries.
type httpFetcher struct{ client *http.Client }

func (f httpFetcher) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	return resilience.GetHTTP(ctx, f.client, url, header)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string) *Client {
	return NewClient(httpFetcher{client: http.DefaultClient}, baseURL+"/", "test-agent", discardLogger())
}

func TestZonePath(t *testing.T) {
	tests := []struct {
		id      string
		want    string
		wantErr bool
	}{
		{id: "WAZ001", want: "/zones/forecast/WAZ001"},
		{id: " wac073 ", want: "/zones/county/WAC073"},
		{id: "WAF650", wantErr: true},
		{id: "WAZ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := zonePath(tt.id)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownZoneType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_Lookup_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/zones/forecast/WAZ001", r.URL.Path)
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(zoneFeatureJSON))
	}))
	defer srv.Close()

	g, err := testClient(srv.URL).Lookup(context.Background(), "WAZ001")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, geo.TypePolygon, g.Type)
	assert.True(t, g.ContainsPoint(geo.Point{Lon: -122.5, Lat: 48.5}))
}

func TestClient_Lookup_NullGeometry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"type": "Feature", "geometry": null, "properties": {}}`))
	}))
	defer srv.Close()

	g, err := testClient(srv.URL).Lookup(context.Background(), "WAZ001")
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestClient_Lookup_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Lookup(context.Background(), "WAZ999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WAZ999")
}

func TestClient_Lookup_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Lookup(context.Background(), "WAZ001")
	require.Error(t, err)
}
