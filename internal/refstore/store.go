// Package refstore reads the offline-built reference database: per-train
// schedule facts and the public holiday calendar.
package refstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/bluele/gcache"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"metrotrack/internal/domain"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Options struct {
	Driver    string
	DSN       string
	CacheSize int
	CacheTTL  time.Duration
	Location  *time.Location
}

// Store is safe for concurrent use. The database handle is opened on first
// use and kept for the life of the process; database/sql hands each query
// its own connection.
type Store struct {
	opts   Options
	logger *slog.Logger

	openOnce sync.Once
	db       *sql.DB
	openErr  error

	facts    gcache.Cache
	holidays gcache.Cache
}

func New(opts Options, logger *slog.Logger) *Store {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 4096
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 6 * time.Hour
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	return &Store{
		opts:   opts,
		logger: logger.With("component", "refstore"),
		facts: gcache.New(opts.CacheSize).
			LRU().
			Expiration(opts.CacheTTL).
			Build(),
		holidays: gcache.New(64).
			LRU().
			Expiration(opts.CacheTTL).
			Build(),
	}
}

func (s *Store) conn() (*sql.DB, error) {
	s.openOnce.Do(func() {
		switch s.opts.Driver {
		case DriverSQLite, DriverPostgres:
		default:
			s.openErr = domain.Errorf(domain.KindConfiguration, "refstore", "unsupported driver %q", s.opts.Driver)
			return
		}
		db, err := sql.Open(s.opts.Driver, s.opts.DSN)
		if err != nil {
			s.openErr = domain.NewError(domain.KindConfiguration, "refstore", fmt.Errorf("open: %w", err))
			return
		}
		s.db = db
		s.logger.Info("reference database opened", "driver", s.opts.Driver)
	})
	return s.db, s.openErr
}

// Ping checks the reference database is reachable and has the expected tables.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	for _, table := range []string{"train_list", "holiday_list"} {
		var n int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return domain.NewError(domain.KindConfiguration, "refstore", fmt.Errorf("table %s: %w", table, err))
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) placeholder(n int) string {
	if s.opts.Driver == DriverPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// DayType resolves the day type of the operating day containing t.
func (s *Store) DayType(ctx context.Context, t time.Time) (domain.DayType, error) {
	date := OperatingDate(t.In(s.opts.Location))
	holiday, err := s.IsHoliday(ctx, date)
	if err != nil {
		return domain.DayTypeWeekday, err
	}
	return ClassifyDay(date, holiday), nil
}

func (s *Store) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	key := HolidayKey(date)
	if v, err := s.holidays.Get(key); err == nil {
		return v.(bool), nil
	}

	db, err := s.conn()
	if err != nil {
		return false, err
	}

	var n int
	query := "SELECT COUNT(*) FROM holiday_list WHERE date = " + s.placeholder(1)
	if err := db.QueryRowContext(ctx, query, key).Scan(&n); err != nil {
		return false, fmt.Errorf("query holiday %s: %w", key, err)
	}

	holiday := n > 0
	_ = s.holidays.Set(key, holiday)
	return holiday, nil
}

type factKey struct {
	trainNumber string
	dayType     domain.DayType
}

// ScheduleFact returns the unique row for (trainNumber, dayType), or nil if
// the reference data has none.
func (s *Store) ScheduleFact(ctx context.Context, trainNumber string, dayType domain.DayType) (*domain.ScheduleFact, error) {
	key := factKey{trainNumber: trainNumber, dayType: dayType}
	if v, err := s.facts.Get(key); err == nil {
		fact, _ := v.(*domain.ScheduleFact)
		return copyFact(fact), nil
	}

	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT is_express, org_stn_nm, dst_stn_nm FROM train_list WHERE trn_no = %s AND day_type = %s",
		s.placeholder(1), s.placeholder(2),
	)

	var (
		express int
		fact    = &domain.ScheduleFact{TrainNumber: trainNumber, DayType: dayType}
	)
	err = db.QueryRowContext(ctx, query, trainNumber, int(dayType)).Scan(&express, &fact.OriginName, &fact.DestinationName)
	if errors.Is(err, sql.ErrNoRows) {
		_ = s.facts.Set(key, (*domain.ScheduleFact)(nil))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query schedule fact %s/%s: %w", trainNumber, dayType, err)
	}
	fact.IsExpress = express != 0

	_ = s.facts.Set(key, fact)
	return copyFact(fact), nil
}

func copyFact(f *domain.ScheduleFact) *domain.ScheduleFact {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}
