// Package reconcile turns raw primary-feed records into canonical train
// records, correcting them from the reference database and the secondary
// live-position feed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"metrotrack/internal/domain"
	"metrotrack/internal/stations"
)

type PrimaryFeed interface {
	TrainsByLine(ctx context.Context, line string, dirCode int) ([]domain.RawTrain, error)
	TrainsByStation(ctx context.Context, line, stationCode string) ([]domain.RawTrain, error)
}

type SecondaryFeed interface {
	// Positions returns nil, nil when no correction is available.
	Positions(ctx context.Context, lineName string) (map[string]domain.LivePosition, error)
}

type ScheduleSource interface {
	DayType(ctx context.Context, t time.Time) (domain.DayType, error)
	ScheduleFact(ctx context.Context, trainNumber string, dayType domain.DayType) (*domain.ScheduleFact, error)
}

// Deps are the collaborators of an Engine. Secondary and Schedules are
// optional; a nil value disables that correction.
type Deps struct {
	Stations  *stations.Ref
	Primary   PrimaryFeed
	Secondary SecondaryFeed
	Schedules ScheduleSource
	Logger    *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Options struct {
	// QueryTimeout bounds a whole reconciliation call. Zero disables it.
	QueryTimeout time.Duration
}

// Engine is safe for concurrent use; queries share only read-only data.
type Engine struct {
	stations  *stations.Ref
	primary   PrimaryFeed
	secondary SecondaryFeed
	schedules ScheduleSource
	logger    *slog.Logger
	now       func() time.Time
	opts      Options
}

func New(deps Deps, opts Options) (*Engine, error) {
	if deps.Stations == nil {
		return nil, domain.Errorf(domain.KindConfiguration, "reconcile", "station reference is required")
	}
	if deps.Primary == nil {
		return nil, domain.Errorf(domain.KindConfiguration, "reconcile", "primary feed is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		stations:  deps.Stations,
		primary:   deps.Primary,
		secondary: deps.Secondary,
		schedules: deps.Schedules,
		logger:    logger.With("component", "reconcile"),
		now:       now,
		opts:      opts,
	}, nil
}

// TrainsByLine reconciles every train currently running on line.
func (e *Engine) TrainsByLine(ctx context.Context, line string) ([]domain.TrainRecord, error) {
	if !e.stations.HasLine(line) {
		return nil, domain.Errorf(domain.KindInvalidArgument, "reconcile", "unknown line %q", line)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	profile := profileFor(line)
	var raws []domain.RawTrain
	for dir := 1; dir <= len(profile.directions); dir++ {
		res, err := e.primary.TrainsByLine(ctx, line, dir)
		if err != nil {
			return nil, e.queryError(ctx, err)
		}
		raws = append(raws, res...)
	}

	return e.reconcile(ctx, line, raws, "")
}

// TrainsByStation reconciles the trains the primary feed reports around
// stationCode on line.
func (e *Engine) TrainsByStation(ctx context.Context, line, stationCode string) ([]domain.TrainRecord, error) {
	if !e.stations.HasLine(line) {
		return nil, domain.Errorf(domain.KindInvalidArgument, "reconcile", "unknown line %q", line)
	}
	stationName, ok := e.stations.Name(line, stationCode)
	if !ok {
		return nil, domain.Errorf(domain.KindInvalidArgument, "reconcile", "unknown station %q on line %s", stationCode, line)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	raws, err := e.primary.TrainsByStation(ctx, line, stationCode)
	if err != nil {
		return nil, e.queryError(ctx, err)
	}

	return e.reconcile(ctx, line, raws, stationName)
}

func (e *Engine) reconcile(ctx context.Context, line string, raws []domain.RawTrain, queriedStation string) ([]domain.TrainRecord, error) {
	start := time.Now()
	profile := profileFor(line)

	drafts, err := e.buildDrafts(line, profile, raws, queriedStation)
	if err != nil {
		return nil, err
	}

	// The secondary feed is fetched before the reference store is queried,
	// but schedules are merged first.
	var positions map[string]domain.LivePosition
	useSecondary := e.secondary != nil && profile.secondaryName != "" && len(drafts) > 0
	if useSecondary {
		positions, err = e.secondary.Positions(ctx, profile.secondaryName)
		if err != nil {
			return nil, e.queryError(ctx, err)
		}
		if positions == nil {
			e.logger.Debug("no secondary correction available", "line", line)
		}
	}

	scheduled := 0
	if e.schedules != nil && len(drafts) > 0 {
		scheduled, err = e.applySchedules(ctx, drafts)
		if err != nil {
			return nil, e.queryError(ctx, err)
		}
	}

	corrected := 0
	if useSecondary {
		corrected = applyPositions(e.stations, line, profile, drafts, positions)
	}

	result := make([]domain.TrainRecord, 0, len(drafts))
	for _, d := range drafts {
		finalize(e.stations, line, profile, d)
		result = append(result, d.rec)
	}

	e.logger.Debug("reconciled trains",
		"line", line,
		"station", queriedStation,
		"trains", len(result),
		"scheduled", scheduled,
		"secondary_corrected", corrected,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

// applySchedules applies reference-database facts for today's day type.
// Lookup failures degrade to "no correction"; only a timeout aborts.
func (e *Engine) applySchedules(ctx context.Context, drafts []*draft) (int, error) {
	dayType, err := e.schedules.DayType(ctx, e.now())
	if err != nil {
		if ctx.Err() != nil {
			return 0, err
		}
		e.logger.Warn("day type lookup failed, skipping schedule correction", "error", err)
		return 0, nil
	}

	applied := 0
	for _, d := range drafts {
		fact, err := e.schedules.ScheduleFact(ctx, d.rec.TrainNumber, dayType)
		if err != nil {
			if ctx.Err() != nil {
				return applied, err
			}
			e.logger.Warn("schedule lookup failed", "train", d.rec.TrainNumber, "error", err)
			continue
		}
		if fact == nil {
			continue
		}
		applySchedule(e.stations, d, fact)
		applied++
	}
	return applied, nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.opts.QueryTimeout)
}

// queryError makes sure an expired query deadline surfaces as a timeout.
func (e *Engine) queryError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && domain.KindOf(err) != domain.KindTimeout {
		return domain.NewError(domain.KindTimeout, "reconcile", fmt.Errorf("query deadline exceeded: %w", err))
	}
	if domain.KindOf(err) == 0 {
		return domain.NewError(domain.KindTransport, "reconcile", err)
	}
	return err
}
