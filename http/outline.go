package http

import (
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/granulemap/granulemap/sink"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/segmentio/encoding/json"
)

// OutlineData is the flattened exterior rings of every footprint. Length is
// the number of features the rings come from.
type OutlineData struct {
	Length    int            `json:"length"`
	Positions [][][2]float64 `json:"positions"`
}

// OutlineResponse is the body of the outline endpoint.
type OutlineResponse struct {
	Data OutlineData `json:"data"`
}

// NewOutlineResponse returns the outline of the polygonal features of fc.
func NewOutlineResponse(fc *geojson.FeatureCollection) OutlineResponse {
	data := OutlineData{
		Length:    len(fc.Features),
		Positions: [][][2]float64{},
	}

	for _, f := range fc.Features {
		data.Positions = append(data.Positions, exteriorRings(f.Geometry)...)
	}
	return OutlineResponse{Data: data}
}

// exteriorRings returns the exterior ring of each polygon of g. Other
// geometries have none.
func exteriorRings(g orb.Geometry) [][][2]float64 {
	var polygons []orb.Polygon

	switch g := g.(type) {
	case orb.Polygon:
		polygons = []orb.Polygon{g}
	case orb.MultiPolygon:
		polygons = g
	}

	rings := make([][][2]float64, 0, len(polygons))
	for _, p := range polygons {
		if len(p) == 0 {
			continue
		}

		ring := make([][2]float64, len(p[0]))
		for i, v := range p[0] {
			ring[i] = [2]float64{v[0], v[1]}
		}
		rings = append(rings, ring)
	}
	return rings
}

// HandleFootprints serves the dataset as published.
func HandleFootprints(store *DatasetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := store.Load(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", sink.GeoJSONContentType)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// HandleOutline serves the outline of the dataset footprints.
func HandleOutline(store *DatasetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fc, _, err := store.FeatureCollection(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		body, err := json.Marshal(NewOutlineResponse(fc))
		if err != nil {
			writeError(w, errors.New("encoding outline failed").Wrap(err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsType(err, ErrTypeDatasetUnavailable):
		status = http.StatusServiceUnavailable
	case errors.IsType(err, ErrTypeInvalidQuery):
		status = http.StatusBadRequest
	}

	logs.WithTag("status", status).Error(err)
	http.Error(w, http.StatusText(status), status)
}
