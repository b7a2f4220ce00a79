package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/granulemap/granulemap/sink"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

const dataset = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"id": 1,
			"properties": {"ancestors": [{"granule_name": "a"}, {"granule_name": "b"}]},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[0, 0], [1, 0], [1, 1], [0, 0]]]
			}
		},
		{
			"type": "Feature",
			"id": 2,
			"properties": {"ancestors": [{"granule_name": "c"}]},
			"geometry": {
				"type": "MultiPolygon",
				"coordinates": [
					[[[10, 0], [11, 0], [11, 1], [10, 0]]],
					[[[20, 0], [21, 0], [21, 1], [20, 0]]]
				]
			}
		}
	]
}`

func newTestServer(t *testing.T, path string) *httptest.Server {
	return newTestServerWithStore(t, &DatasetStore{Path: path})
}

func newTestServerWithStore(t *testing.T, store *DatasetStore) *httptest.Server {
	server := httptest.NewServer(NewRouter(RouterOptions{
		Store:          store,
		Version:        "v1.2.3",
		AllowedOrigins: []string{"https://example.org"},
	}))
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, body
}

func TestRouter(t *testing.T) {
	server := newTestServer(t, writeDataset(t, dataset))

	t.Run("outline", func(t *testing.T) {
		res, body := get(t, server.URL+"/outline")
		require.Equal(t, http.StatusOK, res.StatusCode)
		require.Equal(t, "application/json", res.Header.Get("Content-Type"))

		var outline OutlineResponse
		require.NoError(t, json.Unmarshal(body, &outline))
		require.Equal(t, 2, outline.Data.Length)
		require.Equal(t, [][][2]float64{
			{{0, 0}, {1, 0}, {1, 1}, {0, 0}},
			{{10, 0}, {11, 0}, {11, 1}, {10, 0}},
			{{20, 0}, {21, 0}, {21, 1}, {20, 0}},
		}, outline.Data.Positions)
	})

	t.Run("footprints", func(t *testing.T) {
		res, body := get(t, server.URL+"/footprints")
		require.Equal(t, http.StatusOK, res.StatusCode)
		require.Equal(t, sink.GeoJSONContentType, res.Header.Get("Content-Type"))
		require.Equal(t, dataset, string(body))
	})

	t.Run("version", func(t *testing.T) {
		res, body := get(t, server.URL+"/version")
		require.Equal(t, http.StatusOK, res.StatusCode)
		require.Equal(t, "v1.2.3", string(body))
	})

	t.Run("health and readiness", func(t *testing.T) {
		res, _ := get(t, server.URL+"/health")
		require.Equal(t, http.StatusOK, res.StatusCode)

		res, _ = get(t, server.URL+"/ready")
		require.Equal(t, http.StatusOK, res.StatusCode)
	})

	t.Run("unknown path", func(t *testing.T) {
		res, _ := get(t, server.URL+"/nope")
		require.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("heatmap only accepts posts", func(t *testing.T) {
		res, _ := get(t, server.URL+"/heatmap")
		require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
	})
}

func TestRouterWithoutDataset(t *testing.T) {
	server := newTestServer(t, filepath.Join(t.TempDir(), "missing.geojson"))

	res, _ := get(t, server.URL+"/outline")
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	res, _ = get(t, server.URL+"/ready")
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestRouterWithInvalidDataset(t *testing.T) {
	server := newTestServer(t, writeDataset(t, `{"type": "nope"`))

	res, _ := get(t, server.URL+"/outline")
	require.Equal(t, http.StatusInternalServerError, res.StatusCode)
}
