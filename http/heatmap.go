package http

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/granulemap/granulemap/models"
	"github.com/granulemap/granulemap/source"
	"github.com/paulmach/orb/geojson"
	"github.com/segmentio/encoding/json"
)

const (
	heatmapDateLayout   = "2006-01-02"
	maxHeatmapQuerySize = 1 << 16
)

// Ancestor attribute keys, as stored by the database and by the shapefile
// exports.
var (
	granuleNameKeys  = []string{models.GranuleNameKey, "GRANULE_NA"}
	platformTypeKeys = []string{"platform_type", "PLATFORM_T"}
	startTimeKeys    = []string{"start_time", "START_TIME"}
)

var startTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// HeatmapFilter selects the ancestors that count toward the weight of a
// footprint. Empty lists and dates match everything. Dates are days in
// the 2006-01-02 layout and both ends are included.
type HeatmapFilter struct {
	ProductType  []string `json:"product_type"`
	PlatformType []string `json:"platform_type"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
}

// HeatmapQuery is the body of a heatmap request.
type HeatmapQuery struct {
	Filter HeatmapFilter `json:"filter"`
}

// HeatmapData is the exterior rings of the footprints that have at least one
// matching ancestor. Weights holds the number of matching ancestors of the
// footprint each ring comes from.
type HeatmapData struct {
	Length    int            `json:"length"`
	Positions [][][2]float64 `json:"positions"`
	Weights   []int          `json:"weights"`
}

// HeatmapResponse is the body of the heatmap endpoint.
type HeatmapResponse struct {
	Data HeatmapData `json:"data"`
}

type ancestorMatcher struct {
	productTypes  []string
	platformTypes []string
	start         time.Time
	end           time.Time
}

func (f HeatmapFilter) matcher() (ancestorMatcher, error) {
	m := ancestorMatcher{
		productTypes:  f.ProductType,
		platformTypes: f.PlatformType,
	}

	var err error
	if f.StartDate != "" {
		if m.start, err = time.Parse(heatmapDateLayout, f.StartDate); err != nil {
			return ancestorMatcher{}, errors.New("invalid heatmap start date").
				WithType(ErrTypeInvalidQuery).
				WithTag("start_date", f.StartDate).
				Wrap(err)
		}
	}
	if f.EndDate != "" {
		if m.end, err = time.Parse(heatmapDateLayout, f.EndDate); err != nil {
			return ancestorMatcher{}, errors.New("invalid heatmap end date").
				WithType(ErrTypeInvalidQuery).
				WithTag("end_date", f.EndDate).
				Wrap(err)
		}
		m.end = m.end.AddDate(0, 0, 1)
	}

	if !m.start.IsZero() && !m.end.IsZero() && !m.end.After(m.start) {
		return ancestorMatcher{}, errors.New("heatmap end date is before start date").
			WithType(ErrTypeInvalidQuery).
			WithTag("start_date", f.StartDate).
			WithTag("end_date", f.EndDate)
	}
	return m, nil
}

func (m ancestorMatcher) match(ancestor map[string]any) bool {
	if len(m.productTypes) != 0 {
		name := stringAttribute(ancestor, granuleNameKeys)
		if len(name) < 10 || !slices.Contains(m.productTypes, name[7:10]) {
			return false
		}
	}

	if len(m.platformTypes) != 0 {
		if !slices.Contains(m.platformTypes, stringAttribute(ancestor, platformTypeKeys)) {
			return false
		}
	}

	if m.start.IsZero() && m.end.IsZero() {
		return true
	}

	start, ok := parseStartTime(stringAttribute(ancestor, startTimeKeys))
	if !ok {
		return false
	}
	if !m.start.IsZero() && start.Before(m.start) {
		return false
	}
	if !m.end.IsZero() && !start.Before(m.end) {
		return false
	}
	return true
}

func stringAttribute(attrs map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := attrs[k].(string); ok {
			return v
		}
	}
	return ""
}

func parseStartTime(v string) (time.Time, bool) {
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NewHeatmapResponse returns the footprints of fc weighted by the number of
// their ancestors that match filter.
func NewHeatmapResponse(fc *geojson.FeatureCollection, filter HeatmapFilter) (HeatmapResponse, error) {
	m, err := filter.matcher()
	if err != nil {
		return HeatmapResponse{}, err
	}

	data := HeatmapData{
		Positions: [][][2]float64{},
		Weights:   []int{},
	}

	for _, f := range fc.Features {
		ancestors, _ := f.Properties[source.AncestorsKey].([]any)

		weight := 0
		for _, a := range ancestors {
			if attrs, ok := a.(map[string]any); ok && m.match(attrs) {
				weight++
			}
		}
		if weight == 0 {
			continue
		}

		rings := exteriorRings(f.Geometry)
		data.Length++
		data.Positions = append(data.Positions, rings...)
		for range rings {
			data.Weights = append(data.Weights, weight)
		}
	}

	return HeatmapResponse{Data: data}, nil
}

func heatmapCacheKey(datasetSum uint64, filter HeatmapFilter) (string, error) {
	f, err := json.Marshal(filter)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("heatmap:%016x:%s", datasetSum, f), nil
}

// HandleHeatmap serves the footprints weighted by the ancestors that match
// the filter of the request. Responses are cached per dataset and filter.
func HandleHeatmap(store *DatasetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxHeatmapQuerySize))
		if err != nil {
			writeError(w, errors.New("reading heatmap query failed").
				WithType(ErrTypeInvalidQuery).
				Wrap(err))
			return
		}

		var query HeatmapQuery
		if err := json.Unmarshal(body, &query); err != nil {
			writeError(w, errors.New("decoding heatmap query failed").
				WithType(ErrTypeInvalidQuery).
				Wrap(err))
			return
		}
		if _, err := query.Filter.matcher(); err != nil {
			writeError(w, err)
			return
		}

		fc, sum, err := store.FeatureCollection(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		key, err := heatmapCacheKey(sum, query.Filter)
		if err != nil {
			writeError(w, errors.New("encoding heatmap cache key failed").Wrap(err))
			return
		}

		res, ok := store.cached(r.Context(), heatmapCache, key)
		if !ok {
			heatmap, err := NewHeatmapResponse(fc, query.Filter)
			if err != nil {
				writeError(w, err)
				return
			}

			if res, err = json.Marshal(heatmap); err != nil {
				writeError(w, errors.New("encoding heatmap failed").Wrap(err))
				return
			}
			store.cache(r.Context(), key, res)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(res)
	}
}
