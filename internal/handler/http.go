package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"metrotrack/internal/cache"
	"metrotrack/internal/domain"
	"metrotrack/internal/stations"
)

type Reconciler interface {
	TrainsByLine(ctx context.Context, line string) ([]domain.TrainRecord, error)
	TrainsByStation(ctx context.Context, line, stationCode string) ([]domain.TrainRecord, error)
}

// ResultCache is satisfied by *cache.RedisCache.
type ResultCache interface {
	Trains(ctx context.Context, key string) (*cache.Snapshot, error)
	StoreTrains(ctx context.Context, key string, snap cache.Snapshot) error
}

type HTTPHandler struct {
	engine   Reconciler
	stations *stations.Ref
	cache    ResultCache
	logger   *slog.Logger
}

// NewHTTPHandler builds the train API. resultCache may be nil.
func NewHTTPHandler(engine Reconciler, ref *stations.Ref, resultCache ResultCache, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{
		engine:   engine,
		stations: ref,
		cache:    resultCache,
		logger:   logger.With("component", "http_handler"),
	}
}

type TrainsResponse struct {
	Trains     []domain.TrainRecord `json:"trains"`
	Count      int                  `json:"count"`
	ServerTime time.Time            `json:"serverTime"`
}

type StationsResponse struct {
	Line     string             `json:"line"`
	Stations []stations.Station `json:"stations"`
}

func (h *HTTPHandler) ListLineTrains(w http.ResponseWriter, r *http.Request) {
	line := r.PathValue("line")
	if line == "" {
		respondError(w, http.StatusBadRequest, "missing line")
		return
	}

	h.serveTrains(w, r, cache.KeyLineTrains(line), func(ctx context.Context) ([]domain.TrainRecord, error) {
		return h.engine.TrainsByLine(ctx, line)
	})
}

func (h *HTTPHandler) ListStationTrains(w http.ResponseWriter, r *http.Request) {
	line := r.PathValue("line")
	code := r.PathValue("code")
	if line == "" || code == "" {
		respondError(w, http.StatusBadRequest, "missing line or station code")
		return
	}

	h.serveTrains(w, r, cache.KeyStationTrains(line, code), func(ctx context.Context) ([]domain.TrainRecord, error) {
		return h.engine.TrainsByStation(ctx, line, code)
	})
}

func (h *HTTPHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	line := r.PathValue("line")
	if !h.stations.HasLine(line) {
		respondError(w, http.StatusNotFound, "line not found")
		return
	}

	respondJSON(w, http.StatusOK, StationsResponse{
		Line:     line,
		Stations: h.stations.Stations(line),
	})
}

func (h *HTTPHandler) serveTrains(w http.ResponseWriter, r *http.Request, key string, query func(context.Context) ([]domain.TrainRecord, error)) {
	ctx := r.Context()

	if h.cache != nil {
		snap, err := h.cache.Trains(ctx, key)
		if err != nil {
			h.logger.Warn("cache read failed", "key", key, "error", err)
		} else if snap != nil {
			respondTrains(w, snap.Trains, snap.GeneratedAt)
			return
		}
	}

	trains, err := query(ctx)
	if err != nil {
		h.logger.Warn("query failed", "key", key, "error", err, "request_id", RequestID(ctx))
		respondDomainError(w, err)
		return
	}

	now := time.Now()
	if h.cache != nil {
		if err := h.cache.StoreTrains(ctx, key, cache.Snapshot{Trains: trains, GeneratedAt: now}); err != nil {
			h.logger.Warn("cache write failed", "key", key, "error", err)
		}
	}

	respondTrains(w, trains, now)
}

// respondTrains reports generatedAt as the server time so cached results
// show their age.
func respondTrains(w http.ResponseWriter, trains []domain.TrainRecord, generatedAt time.Time) {
	if trains == nil {
		trains = []domain.TrainRecord{}
	}
	respondJSON(w, http.StatusOK, TrainsResponse{
		Trains:     trains,
		Count:      len(trains),
		ServerTime: generatedAt,
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindTransport, domain.KindUpstreamInvalid, domain.KindMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondDomainError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	if kind == 0 && errors.Is(err, context.DeadlineExceeded) {
		kind = domain.KindTimeout
	}
	resp := errorResponse{Error: err.Error()}
	if kind != 0 {
		resp.Kind = kind.String()
	}
	respondJSON(w, statusForKind(kind), resp)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
