package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// ConnectionConfig is database.connection from the JSON config file.
type ConnectionConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	DatabaseName string
}

func (c ConnectionConfig) dsn() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&timeout=5s",
		c.Username, c.Password, c.Host, c.Port, c.DatabaseName)
}

// MySQL is the production Store: one connection pool, one transaction per
// InsertVesselStatus call.
type MySQL struct {
	db  *sql.DB
	log *zap.Logger
	cfg ConnectionConfig
}

// Open establishes the connection pool and verifies connectivity.
func Open(ctx context.Context, cfg ConnectionConfig, log *zap.Logger) (*MySQL, error) {
	db, err := sql.Open("mysql", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &MySQL{db: db, log: log, cfg: cfg}, nil
}

func (s *MySQL) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Reconnect rebuilds the connection pool. Callers drive the backoff loop;
// this call itself makes exactly one attempt.
func (s *MySQL) Reconnect(ctx context.Context) error {
	db, err := sql.Open("mysql", s.cfg.dsn())
	if err != nil {
		return fmt.Errorf("store: reconnect open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("store: reconnect ping: %w", err)
	}
	old := s.db
	s.db = db
	return old.Close()
}

// InsertVesselStatus applies the vessel_status insert and the accompanying
// trip mutation inside one transaction. Partial success is impossible: a
// failure at any step rolls back the whole transaction.
func (s *MySQL) InsertVesselStatus(ctx context.Context, row VesselStatusRow, delta TripDelta) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO vessel_status
			(timestamp_utc_ms, latitude, longitude, average_speed_kn, max_speed_kn,
			 is_moored, engine_on, total_distance_nm, total_time_ms,
			 wind_speed_kn, wind_angle_deg, heading_deg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.TimestampUTCMs, row.Latitude, row.Longitude, row.AverageSpeedKn, row.MaxSpeedKn,
		row.IsMoored, row.EngineOn, row.TotalDistanceNM, row.TotalTimeMs,
		row.WindSpeedKn, row.WindAngleDeg, row.HeadingDeg,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert vessel_status: %w", err)
	}

	var tripID int64
	switch delta.Op {
	case TripOpNone:
		// no trip mutation accompanies this write
	case TripOpCreate:
		res, err := tx.ExecContext(ctx, `
			INSERT INTO trips
				(description, start_timestamp_utc, end_timestamp_utc,
				 total_distance_sailed_nm, total_distance_motoring_nm,
				 total_time_sailing_ms, total_time_motoring_ms, total_time_moored_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			delta.Description, delta.StartTimestamp, delta.EndTimestamp,
			delta.DistanceSailedNM, delta.DistanceMotorNM,
			delta.TimeSailingMs, delta.TimeMotoringMs, delta.TimeMooredMs,
		)
		if err != nil {
			return 0, fmt.Errorf("store: insert trip: %w", err)
		}
		tripID, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("store: trip last insert id: %w", err)
		}
	case TripOpUpdate:
		active, err := s.loadActiveTripTx(ctx, tx, delta.EndTimestamp)
		if err != nil {
			return 0, err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE trips SET
				end_timestamp_utc = ?,
				total_distance_sailed_nm = total_distance_sailed_nm + ?,
				total_distance_motoring_nm = total_distance_motoring_nm + ?,
				total_time_sailing_ms = total_time_sailing_ms + ?,
				total_time_motoring_ms = total_time_motoring_ms + ?,
				total_time_moored_ms = total_time_moored_ms + ?
			WHERE id = ?`,
			delta.EndTimestamp, delta.DistanceSailedNM, delta.DistanceMotorNM,
			delta.TimeSailingMs, delta.TimeMotoringMs, delta.TimeMooredMs, active.ID,
		)
		if err != nil {
			return 0, fmt.Errorf("store: update trip: %w", err)
		}
		tripID = active.ID
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return tripID, nil
}

func (s *MySQL) UpsertEnvironmentalData(ctx context.Context, row EnvironmentalDataRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO environmental_data
			(timestamp_utc_ms, metric_id, value_avg, value_max, value_min, unit)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			value_avg = VALUES(value_avg), value_max = VALUES(value_max),
			value_min = VALUES(value_min), unit = VALUES(unit)`,
		row.TimestampUTCMs, row.MetricID, row.ValueAvg, row.ValueMax, row.ValueMin, row.Unit,
	)
	if err != nil {
		return fmt.Errorf("store: upsert environmental_data: %w", err)
	}
	return nil
}

func (s *MySQL) LoadActiveTrip(ctx context.Context, now time.Time) (*Trip, error) {
	return s.loadActiveTripTx(ctx, s.db, now)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *MySQL) loadActiveTripTx(ctx context.Context, q queryer, now time.Time) (*Trip, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, description, start_timestamp_utc, end_timestamp_utc,
		       total_distance_sailed_nm, total_distance_motoring_nm,
		       total_time_sailing_ms, total_time_motoring_ms, total_time_moored_ms
		FROM trips ORDER BY id DESC LIMIT 1`)

	var t Trip
	err := row.Scan(&t.ID, &t.Description, &t.StartTimestampUTC, &t.EndTimestampUTC,
		&t.TotalDistanceSailedNM, &t.TotalDistanceMotoringNM,
		&t.TotalTimeSailingMs, &t.TotalTimeMotoringMs, &t.TotalTimeMooredMs)
	if err == sql.ErrNoRows {
		return nil, ErrNoActiveTrip
	}
	if err != nil {
		return nil, fmt.Errorf("store: load active trip: %w", err)
	}
	if !t.IsActive(now) {
		return nil, ErrNoActiveTrip
	}
	return &t, nil
}

func (s *MySQL) Close() error { return s.db.Close() }
