package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process reference Store, used by handler tests and by
// `cmd/marinetelemetryd --dump` mode where no database is configured.
type Memory struct {
	mu          sync.Mutex
	vesselRows  []VesselStatusRow
	envRows     map[int64Key]EnvironmentalDataRow
	trips       []Trip
	nextTripID  int64
	unavailable bool
}

type int64Key struct {
	ts       int64
	metricID int
}

func NewMemory() *Memory {
	return &Memory{envRows: make(map[int64Key]EnvironmentalDataRow), nextTripID: 1}
}

// SetUnavailable lets tests simulate a downed connection.
func (m *Memory) SetUnavailable(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = v
}

func (m *Memory) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return ErrUnavailable
	}
	return nil
}

func (m *Memory) InsertVesselStatus(ctx context.Context, row VesselStatusRow, delta TripDelta) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return 0, ErrUnavailable
	}

	m.vesselRows = append(m.vesselRows, row)

	switch delta.Op {
	case TripOpNone:
		return 0, nil
	case TripOpCreate:
		trip := Trip{
			ID:                      m.nextTripID,
			Description:             delta.Description,
			StartTimestampUTC:       delta.StartTimestamp,
			EndTimestampUTC:         delta.EndTimestamp,
			TotalDistanceSailedNM:   delta.DistanceSailedNM,
			TotalDistanceMotoringNM: delta.DistanceMotorNM,
			TotalTimeSailingMs:      delta.TimeSailingMs,
			TotalTimeMotoringMs:     delta.TimeMotoringMs,
			TotalTimeMooredMs:       delta.TimeMooredMs,
		}
		m.nextTripID++
		m.trips = append(m.trips, trip)
		return trip.ID, nil
	case TripOpUpdate:
		if len(m.trips) == 0 {
			return 0, ErrNoActiveTrip
		}
		t := &m.trips[len(m.trips)-1]
		t.EndTimestampUTC = delta.EndTimestamp
		t.TotalDistanceSailedNM += delta.DistanceSailedNM
		t.TotalDistanceMotoringNM += delta.DistanceMotorNM
		t.TotalTimeSailingMs += delta.TimeSailingMs
		t.TotalTimeMotoringMs += delta.TimeMotoringMs
		t.TotalTimeMooredMs += delta.TimeMooredMs
		return t.ID, nil
	}
	return 0, nil
}

func (m *Memory) UpsertEnvironmentalData(ctx context.Context, row EnvironmentalDataRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return ErrUnavailable
	}
	m.envRows[int64Key{ts: row.TimestampUTCMs, metricID: row.MetricID}] = row
	return nil
}

func (m *Memory) LoadActiveTrip(ctx context.Context, now time.Time) (*Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return nil, ErrUnavailable
	}
	if len(m.trips) == 0 {
		return nil, ErrNoActiveTrip
	}
	last := m.trips[len(m.trips)-1]
	if !last.IsActive(now) {
		return nil, ErrNoActiveTrip
	}
	return &last, nil
}

func (m *Memory) Close() error { return nil }

// VesselRows exposes persisted rows for assertions in tests.
func (m *Memory) VesselRows() []VesselStatusRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]VesselStatusRow(nil), m.vesselRows...)
}

// EnvRows exposes persisted environmental rows for assertions in tests.
func (m *Memory) EnvRows() []EnvironmentalDataRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EnvironmentalDataRow, 0, len(m.envRows))
	for _, r := range m.envRows {
		out = append(out, r)
	}
	return out
}
