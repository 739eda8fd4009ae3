// Package httpapi serves the NewU HTTP surface: the host bridge endpoint,
// metrics, health and a read-only station listing.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Visual-Illusions/NewU/internal/station"
)

// Stations lists stations.
type Stations interface {
	Stations() []station.Snapshot
}

// Deps are the handlers and data sources mounted by NewHandler.
// Nil handlers are left unmounted.
type Deps struct {
	Stations Stations
	Bridge   http.Handler
	Metrics  http.Handler
}

type stationView struct {
	Name        string   `json:"name"`
	World       string   `json:"world"`
	Dimension   string   `json:"dimension"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Z           float64  `json:"z"`
	Discoverers []string `json:"discoverers"`
}

func toView(s station.Snapshot) stationView {
	d := s.Discoverers
	if d == nil {
		d = []string{}
	}
	return stationView{
		Name:        s.Name,
		World:       s.Placement.World,
		Dimension:   string(s.Placement.Dimension),
		X:           s.Placement.X,
		Y:           s.Placement.Y,
		Z:           s.Placement.Z,
		Discoverers: d,
	}
}

// NewHandler builds the router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	if deps.Bridge != nil {
		r.Method(http.MethodGet, "/ws", deps.Bridge)
	}

	r.Route("/v1/stations", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			all := deps.Stations.Stations()
			out := make([]stationView, 0, len(all))
			for _, s := range all {
				out = append(out, toView(s))
			}
			writeJSON(w, http.StatusOK, out)
		})
		r.Get("/{name}", func(w http.ResponseWriter, req *http.Request) {
			name := chi.URLParam(req, "name")
			for _, s := range deps.Stations.Stations() {
				if s.Name == name {
					writeJSON(w, http.StatusOK, toView(s))
					return
				}
			}
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "station not found"})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encoding response", "error", err)
	}
}
