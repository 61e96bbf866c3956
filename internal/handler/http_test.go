package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metrotrack/internal/cache"
	"metrotrack/internal/domain"
	"metrotrack/internal/stations"
)

type fakeEngine struct {
	trains []domain.TrainRecord
	err    error
	calls  int
}

func (f *fakeEngine) TrainsByLine(ctx context.Context, line string) ([]domain.TrainRecord, error) {
	f.calls++
	return f.trains, f.err
}

func (f *fakeEngine) TrainsByStation(ctx context.Context, line, code string) ([]domain.TrainRecord, error) {
	f.calls++
	return f.trains, f.err
}

type memoryCache struct {
	data    map[string]cache.Snapshot
	readErr error
}

func (m *memoryCache) Trains(ctx context.Context, key string) (*cache.Snapshot, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	snap, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (m *memoryCache) StoreTrains(ctx context.Context, key string, snap cache.Snapshot) error {
	m.data[key] = snap
	return nil
}

func newMux(h *HTTPHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/lines/{line}/trains", h.ListLineTrains)
	mux.HandleFunc("GET /v1/lines/{line}/stations", h.ListStations)
	mux.HandleFunc("GET /v1/lines/{line}/stations/{code}/trains", h.ListStationTrains)
	return mux
}

func newTestHandler(engine Reconciler, c ResultCache) *http.ServeMux {
	ref := stations.NewRef(map[string]map[string]string{
		"1": {"서울역": "0150", "청량리": "0158"},
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newMux(NewHTTPHandler(engine, ref, c, logger))
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func sampleTrains() []domain.TrainRecord {
	code := "0158"
	return []domain.TrainRecord{{
		TrainNumber:    "K1234",
		Line:           "1",
		CurrentStation: &domain.StationPoint{Name: "청량리", Code: &code},
		Status:         domain.StatusArrived,
	}}
}

func TestListLineTrains(t *testing.T) {
	engine := &fakeEngine{trains: sampleTrains()}
	rec := get(t, newTestHandler(engine, nil), "/v1/lines/1/trains")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp TrainsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, sampleTrains(), resp.Trains)
}

func TestListLineTrains_EmptyIsArray(t *testing.T) {
	rec := get(t, newTestHandler(&fakeEngine{}, nil), "/v1/lines/1/trains")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"trains":[]`)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestListStationTrains_UsesCache(t *testing.T) {
	engine := &fakeEngine{trains: sampleTrains()}
	c := &memoryCache{data: map[string]cache.Snapshot{}}
	h := newTestHandler(engine, c)

	first := get(t, h, "/v1/lines/1/stations/0158/trains")
	second := get(t, h, "/v1/lines/1/stations/0158/trains")

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 1, engine.calls)
	require.Contains(t, c.data, "trains:station:1:0158")

	var a, b TrainsResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	assert.Equal(t, a.Trains, b.Trains)
	assert.True(t, a.ServerTime.Equal(b.ServerTime), "cached result keeps its generation time")
}

func TestListLineTrains_CacheReadErrorFallsThrough(t *testing.T) {
	engine := &fakeEngine{trains: sampleTrains()}
	c := &memoryCache{data: map[string]cache.Snapshot{}, readErr: errors.New("connection reset")}

	rec := get(t, newTestHandler(engine, c), "/v1/lines/1/trains")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, engine.calls)
}

func TestListLineTrains_ErrorsNotCached(t *testing.T) {
	engine := &fakeEngine{err: domain.Errorf(domain.KindUpstreamInvalid, "primary_feed", "invalid result")}
	c := &memoryCache{data: map[string]cache.Snapshot{}}

	rec := get(t, newTestHandler(engine, c), "/v1/lines/1/trains")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, c.data)
}

func TestListLineTrains_ErrorStatus(t *testing.T) {
	tests := []struct {
		err      error
		want     int
		wantKind string
	}{
		{err: domain.Errorf(domain.KindInvalidArgument, "reconcile", "unknown line"), want: http.StatusBadRequest, wantKind: "invalid_argument"},
		{err: domain.Errorf(domain.KindTimeout, "reconcile", "deadline"), want: http.StatusGatewayTimeout, wantKind: "timeout"},
		{err: domain.Errorf(domain.KindTransport, "primary_feed", "connection refused"), want: http.StatusBadGateway, wantKind: "transport"},
		{err: domain.Errorf(domain.KindMalformedResponse, "secondary_feed", "bad json"), want: http.StatusBadGateway, wantKind: "malformed_response"},
		{err: domain.Errorf(domain.KindConfiguration, "refstore", "no driver"), want: http.StatusInternalServerError, wantKind: "configuration"},
		{err: fmt.Errorf("wrapped: %w", context.DeadlineExceeded), want: http.StatusGatewayTimeout, wantKind: "timeout"},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := get(t, newTestHandler(&fakeEngine{err: tt.err}, nil), "/v1/lines/1/trains")
			assert.Equal(t, tt.want, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantKind, resp.Kind)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestListStations(t *testing.T) {
	h := newTestHandler(&fakeEngine{}, nil)

	rec := get(t, h, "/v1/lines/1/stations")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "1", resp.Line)
	assert.Equal(t, []stations.Station{{Name: "서울역", Code: "0150"}, {Name: "청량리", Code: "0158"}}, resp.Stations)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/v1/lines/9/stations").Code)
}
