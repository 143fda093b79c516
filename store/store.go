// Package store reads vehicle visits from the Ridgeways and RNG parking databases.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/round-cube/parking-pay/pricing"
	log "github.com/sirupsen/logrus"
)

var ErrNotFound = errors.New("vehicle not found")

type Vehicle struct {
	TransactionID int64
	Plate         string
	EntryTime     time.Time
	ExitTime      *time.Time
	Facility      pricing.Facility
}

// ExitOr returns the recorded exit time, or now while the vehicle is still parked.
func (v Vehicle) ExitOr(now time.Time) time.Time {
	if v.ExitTime != nil {
		return *v.ExitTime
	}
	return now
}

type Store struct {
	ridgeways *pgxpool.Pool
	rng       *pgxpool.Pool
	loc       *time.Location
}

// New takes one pool per facility database. Timestamps in both databases are
// stored without a zone and are read as wall-clock time in loc.
func New(ridgeways, rng *pgxpool.Pool, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{ridgeways: ridgeways, rng: rng, loc: loc}
}

func NewPool(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.WithField("database", poolConfig.ConnConfig.Database).Info("connected to database")
	return pool, nil
}

const latestVisitQuery = `
	SELECT id, time_in, time_out FROM transactions
	WHERE vehicle_number = $1 ORDER BY time_in DESC LIMIT 1`

func (s *Store) LatestVisit(ctx context.Context, plate string) (Vehicle, error) {
	v := Vehicle{Plate: plate, Facility: pricing.Ridgeways}
	var exit *time.Time
	err := s.ridgeways.QueryRow(ctx, latestVisitQuery, plate).Scan(&v.TransactionID, &v.EntryTime, &exit)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vehicle{}, ErrNotFound
	}
	if err != nil {
		return Vehicle{}, fmt.Errorf("failed to query latest visit: %w", err)
	}
	v.EntryTime = wallClock(v.EntryTime, s.loc)
	if exit != nil {
		t := wallClock(*exit, s.loc)
		v.ExitTime = &t
	}
	return v, nil
}

const linkPhoneQuery = `
	UPDATE transactions SET mobile_number = $1
	WHERE id = (SELECT id FROM transactions WHERE vehicle_number = $2 ORDER BY time_in DESC LIMIT 1)`

func (s *Store) LinkPhone(ctx context.Context, plate, phone string) error {
	tag, err := s.ridgeways.Exec(ctx, linkPhoneQuery, phone, plate)
	if err != nil {
		return fmt.Errorf("failed to link phone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const linkedVehiclesQuery = `
	SELECT vehicle_number FROM transactions
	WHERE mobile_number = $1 AND vehicle_number IS NOT NULL
	GROUP BY vehicle_number ORDER BY MAX(id) DESC LIMIT $2`

func (s *Store) LinkedVehicles(ctx context.Context, phone string, limit int) ([]string, error) {
	rows, err := s.ridgeways.Query(ctx, linkedVehiclesQuery, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query linked vehicles: %w", err)
	}
	plates, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan linked vehicles: %w", err)
	}
	return plates, nil
}

func (s *Store) IsRNGVehicle(ctx context.Context, plate string) (bool, error) {
	var exists bool
	err := s.rng.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE vehicle_number = $1)`, plate).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check rng ownership: %w", err)
	}
	return exists, nil
}

// RNGFeeDue asks the RNG database for the fee it computes itself. A NULL result means nothing is due.
func (s *Store) RNGFeeDue(ctx context.Context, plate string) (int, error) {
	var due *int64
	if err := s.rng.QueryRow(ctx, `SELECT check_parking_fee_due($1)::bigint`, plate).Scan(&due); err != nil {
		return 0, fmt.Errorf("failed to query rng fee due: %w", err)
	}
	if due == nil || *due < 0 {
		return 0, nil
	}
	return int(*due), nil
}

// wallClock keeps the clock reading of a zoneless timestamp and attaches loc to it.
func wallClock(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}
