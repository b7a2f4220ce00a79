package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouterOptions configures the outline service routes.
type RouterOptions struct {
	Store          *DatasetStore
	Version        string
	AllowedOrigins []string
}

// NewRouter returns the handler of the outline service.
func NewRouter(opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(CORS(opts.AllowedOrigins))

	r.Get("/outline", HandleOutline(opts.Store))
	r.Get("/footprints", HandleFootprints(opts.Store))
	r.Post("/heatmap", HandleHeatmap(opts.Store))
	r.Get("/version", HandleVersion(opts.Version))
	r.Get("/health", HandleHealthCheck)
	r.Get("/ready", HandleReadyCheck(opts.Store.Ready))
	return r
}
