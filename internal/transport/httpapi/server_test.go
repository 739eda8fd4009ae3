package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Visual-Illusions/NewU/internal/model"
	"github.com/Visual-Illusions/NewU/internal/station"
)

type memStore struct {
	mu      sync.Mutex
	records []station.Record
}

func (s *memStore) Load() ([]station.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records), nil
}

func (s *memStore) Save(records []station.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = slices.Clone(records)
	return nil
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	reg := station.NewRegistry(&memStore{})
	require.NoError(t, reg.Add(station.NewStation("Home", model.NewPose("world", model.DimensionNormal, 10, 64, 10))))
	require.NoError(t, reg.Add(station.NewStation("Fort", model.NewPose("world", model.DimensionNether, 0, 40, 0))))
	reg.Discover("steve", model.NewPose("world", model.DimensionNormal, 12, 64, 12))

	return NewHandler(Deps{
		Stations: reg,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("newu_stations 2\n"))
		}),
	})
}

func TestHandler_Healthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandler_Metrics(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "newu_stations 2\n", rec.Body.String())
}

func TestHandler_ListStations(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stations/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []stationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Home", got[0].Name)
	assert.Equal(t, 10.5, got[0].X)
	assert.Equal(t, []string{"steve"}, got[0].Discoverers)
	assert.Equal(t, "NETHER", got[1].Dimension)
	assert.Equal(t, []string{}, got[1].Discoverers)
}

func TestHandler_GetStation(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stations/Fort", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got stationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Fort", got.Name)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stations/Nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_UnmountedBridge(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
