// Package handler turns monitor snapshots into persisted rows, gating on
// adaptive cadence and driving the trip lifecycle.
package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/oceanrelay/marinetelemetryd/internal/geo"
	"github.com/oceanrelay/marinetelemetryd/internal/store"
	"github.com/oceanrelay/marinetelemetryd/internal/vesselmonitor"
	"go.uber.org/zap"
)

// VesselStatusConfig is database.vessel_status from the JSON config file.
type VesselStatusConfig struct {
	IntervalMoored   time.Duration
	IntervalUnderway time.Duration
}

// VesselStatusHandler decides when to persist a VesselStatus snapshot,
// computes the distance/time delta against the previously persisted
// snapshot, and drives the trip lifecycle around it.
type VesselStatusHandler struct {
	log *zap.Logger
	cfg VesselStatusConfig

	lastPersisted    *vesselmonitor.Status
	lastReportedMax  float64
	currentTrip      *store.Trip
	lastPersistAt    time.Time

	now func() time.Time
}

func NewVesselStatusHandler(cfg VesselStatusConfig, log *zap.Logger) *VesselStatusHandler {
	return &VesselStatusHandler{
		cfg: cfg,
		log: log,
		now: time.Now,
	}
}

// shouldPersist applies the adaptive cadence gate: moored and underway
// vessels persist at different rates. The zero lastPersistAt means nothing
// has been written since startup, so the first report always goes through.
func (h *VesselStatusHandler) shouldPersist(isMoored bool) bool {
	if h.lastPersistAt.IsZero() {
		return true
	}
	interval := h.cfg.IntervalUnderway
	if isMoored {
		interval = h.cfg.IntervalMoored
	}
	return h.now().Sub(h.lastPersistAt) >= interval
}

// Handle persists status if the cadence gate admits it. It returns
// (false, nil) when the gate simply didn't fire — that is not an error.
func (h *VesselStatusHandler) Handle(ctx context.Context, s store.Store, status vesselmonitor.Status) (bool, error) {
	if !status.IsValid() || !h.shouldPersist(status.IsMoored) {
		return false, nil
	}

	distanceNM, timeMs := h.computeDelta(status)
	maxSpeed := status.MaxSpeedKn
	if maxSpeed < h.lastReportedMax {
		maxSpeed = h.lastReportedMax
	}
	// Recorded before the store call: a failed write keeps carrying the max
	// into the next attempt instead of losing it. Reset only on success.
	h.lastReportedMax = maxSpeed
	avgSpeed := 0.0
	if timeMs > 0 {
		avgSpeed = distanceNM / (float64(timeMs) / 3600_000.0)
	}

	pos := status.EffectivePosition()
	row := store.VesselStatusRow{
		TimestampUTCMs:  status.Timestamp.UnixMilli(),
		Latitude:        pos.Latitude,
		Longitude:       pos.Longitude,
		AverageSpeedKn:  avgSpeed,
		MaxSpeedKn:      maxSpeed,
		IsMoored:        status.IsMoored,
		EngineOn:        status.EngineOn,
		TotalDistanceNM: distanceNM,
		TotalTimeMs:     timeMs,
		WindSpeedKn:     status.WindSpeedKn,
		WindAngleDeg:    status.WindAngleDeg,
		HeadingDeg:      status.HeadingDeg,
	}

	delta := h.determineTripOperation(status, distanceNM, timeMs)

	tripID, err := s.InsertVesselStatus(ctx, row, delta)
	if err != nil {
		return false, fmt.Errorf("handler: persist vessel status: %w", err)
	}

	h.applyTripResult(delta, tripID, status.Timestamp)
	h.lastPersisted = &status
	h.lastReportedMax = 0.0
	h.lastPersistAt = h.now()
	return true, nil
}

// computeDelta returns great-circle distance (nm) and elapsed time (ms)
// between the previously persisted status and this one. The first ever
// report has no predecessor, so both are zero.
func (h *VesselStatusHandler) computeDelta(status vesselmonitor.Status) (distanceNM float64, timeMs int64) {
	if h.lastPersisted == nil {
		return 0, 0
	}
	prevPos := h.lastPersisted.EffectivePosition()
	curPos := status.EffectivePosition()
	distanceNM = geo.DistanceNM(prevPos, curPos)
	timeMs = status.Timestamp.Sub(h.lastPersisted.Timestamp).Milliseconds()
	if timeMs < 0 {
		timeMs = 0
	}
	return distanceNM, timeMs
}

func (h *VesselStatusHandler) determineTripOperation(status vesselmonitor.Status, distanceNM float64, timeMs int64) store.TripDelta {
	timeMooredMs, timeMotoringMs, distanceMotorNM, timeSailingMs, distanceSailedNM := accumulate(status, distanceNM, timeMs)

	if h.currentTrip == nil || !h.currentTrip.IsActive(status.Timestamp) {
		return store.TripDelta{
			Op:               store.TripOpCreate,
			Description:      fmt.Sprintf("Trip %s", status.Timestamp.UTC().Format("2006-01-02")),
			StartTimestamp:   status.Timestamp,
			EndTimestamp:     status.Timestamp,
			DistanceSailedNM: distanceSailedNM,
			DistanceMotorNM:  distanceMotorNM,
			TimeSailingMs:    timeSailingMs,
			TimeMotoringMs:   timeMotoringMs,
			TimeMooredMs:     timeMooredMs,
		}
	}
	return store.TripDelta{
		Op:               store.TripOpUpdate,
		EndTimestamp:     status.Timestamp,
		DistanceSailedNM: distanceSailedNM,
		DistanceMotorNM:  distanceMotorNM,
		TimeSailingMs:    timeSailingMs,
		TimeMotoringMs:   timeMotoringMs,
		TimeMooredMs:     timeMooredMs,
	}
}

// accumulate splits one delta into moored/motoring/sailing buckets: moored
// time never counts toward distance; underway time counts as motoring iff
// the engine is on, else sailing.
func accumulate(status vesselmonitor.Status, distanceNM float64, timeMs int64) (timeMooredMs, timeMotoringMs int64, distanceMotorNM float64, timeSailingMs int64, distanceSailedNM float64) {
	switch {
	case status.IsMoored:
		timeMooredMs = timeMs
	case status.EngineOn:
		distanceMotorNM = distanceNM
		timeMotoringMs = timeMs
	default:
		distanceSailedNM = distanceNM
		timeSailingMs = timeMs
	}
	return
}

func (h *VesselStatusHandler) applyTripResult(delta store.TripDelta, tripID int64, timestamp time.Time) {
	if delta.Op == store.TripOpNone {
		return
	}
	if delta.Op == store.TripOpCreate {
		h.currentTrip = &store.Trip{
			ID:                      tripID,
			Description:             delta.Description,
			StartTimestampUTC:       delta.StartTimestamp,
			EndTimestampUTC:         delta.EndTimestamp,
			TotalDistanceSailedNM:   delta.DistanceSailedNM,
			TotalDistanceMotoringNM: delta.DistanceMotorNM,
			TotalTimeSailingMs:      delta.TimeSailingMs,
			TotalTimeMotoringMs:     delta.TimeMotoringMs,
			TotalTimeMooredMs:       delta.TimeMooredMs,
		}
		return
	}
	if h.currentTrip != nil {
		h.currentTrip.EndTimestampUTC = delta.EndTimestamp
		h.currentTrip.TotalDistanceSailedNM += delta.DistanceSailedNM
		h.currentTrip.TotalDistanceMotoringNM += delta.DistanceMotorNM
		h.currentTrip.TotalTimeSailingMs += delta.TimeSailingMs
		h.currentTrip.TotalTimeMotoringMs += delta.TimeMotoringMs
		h.currentTrip.TotalTimeMooredMs += delta.TimeMooredMs
	}
}

// LoadTrip restores the in-progress trip at startup and after a store
// reconnect, so accumulation continues on the row already in the table
// instead of opening a duplicate trip.
func (h *VesselStatusHandler) LoadTrip(ctx context.Context, s store.Store) error {
	trip, err := s.LoadActiveTrip(ctx, h.now())
	if err != nil {
		if err == store.ErrNoActiveTrip {
			h.currentTrip = nil
			return nil
		}
		return fmt.Errorf("handler: load active trip: %w", err)
	}
	h.currentTrip = trip
	return nil
}
