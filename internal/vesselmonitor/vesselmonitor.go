// Package vesselmonitor maintains position, speed, wind and engine state
// for the vessel and periodically emits a Status report for persistence.
package vesselmonitor

import (
	"math"
	"time"

	"github.com/oceanrelay/marinetelemetryd/internal/geo"
	"github.com/oceanrelay/marinetelemetryd/internal/message"
	"github.com/samber/lo"
)

const (
	eventInterval             = 10 * time.Second
	mooringDetectionWindow    = 120 * time.Second
	mooringThresholdMeters    = 30.0
	mooringAccuracy           = 0.90
	maxValidSOGKn             = 25.0
	maxPositionDeviationMeter = 100.0
	positionValidationWindow  = 10 * time.Second
	minSamplesForValidation   = 10
	metersPerNM               = 1852.0
)

type positionSample struct {
	position geo.Position
	at       time.Time
}

type speedSample struct {
	speedKn float64
	at      time.Time
}

type windSample struct {
	speedKn  float64
	angleDeg float64
	at       time.Time
}

// Status is a periodic snapshot of vessel state, the shape
// VesselStatusHandler persists.
type Status struct {
	CurrentPosition   geo.Position
	AveragePosition   *geo.Position
	NumberOfSamples   int
	MaxSpeedKn        float64
	IsMoored          bool
	EngineOn          bool
	HeadingDeg        *float64
	WindSpeedKn       *float64
	WindSpeedVariance *float64
	WindAngleDeg      *float64
	WindAngleVariance *float64
	Timestamp         time.Time
}

// IsValid reports whether this status carries at least one position
// sample.
func (s Status) IsValid() bool { return s.NumberOfSamples > 0 }

// EffectivePosition returns AveragePosition while moored (smoothing GPS
// jitter at anchor), else CurrentPosition.
func (s Status) EffectivePosition() geo.Position {
	if s.IsMoored && s.AveragePosition != nil {
		return *s.AveragePosition
	}
	return s.CurrentPosition
}

// Monitor accumulates position, speed and wind samples and periodically
// emits a Status snapshot.
type Monitor struct {
	positions []positionSample
	speeds    []speedSample
	winds     []windSample

	lastEventTime  time.Time
	engineOn       bool
	lastHeadingDeg *float64

	now func() time.Time
}

func New() *Monitor {
	now := time.Now()
	return &Monitor{lastEventTime: now, now: time.Now}
}

// ProcessWind folds an apparent wind reading into true wind, using the
// most recent speed sample (rejected if older than 5s — true wind needs a
// contemporaneous boat speed).
func (m *Monitor) ProcessWind(wind message.WindData) {
	now := m.now()
	windSpeedKn := wind.SpeedKnots()
	windAngleDeg := wind.Angle * 180 / math.Pi

	if len(m.speeds) == 0 {
		m.evictWinds(now)
		return
	}
	latest := m.speeds[len(m.speeds)-1]
	if latest.at.Add(5 * time.Second).Before(now) {
		// speed sample too old to pair with this wind reading
		m.evictWinds(now)
		return
	}

	trueSpeedKn, trueAngleDeg := geo.TrueWind(windSpeedKn, windAngleDeg, latest.speedKn)
	m.winds = append(m.winds, windSample{
		speedKn:  trueSpeedKn,
		angleDeg: geo.Normalize0To360(trueAngleDeg),
		at:       now,
	})
	m.evictWinds(now)
}

func (m *Monitor) evictWinds(now time.Time) {
	cutoff := now.Add(-600*time.Second - 30*time.Second)
	m.winds = lo.Filter(m.winds, func(w windSample, _ int) bool { return !w.at.Before(cutoff) })
}

// ProcessPosition validates a position against the recent median before
// accepting it, rejecting GPS noise.
func (m *Monitor) ProcessPosition(pos message.PositionRapidUpdate) {
	now := m.now()
	p := geo.Position{Latitude: pos.Latitude, Longitude: pos.Longitude}

	if !m.isValidPosition(p, now) {
		return
	}
	m.positions = append(m.positions, positionSample{position: p, at: now})

	cutoff := now.Add(-mooringDetectionWindow - 30*time.Second)
	m.positions = lo.Filter(m.positions, func(s positionSample, _ int) bool { return !s.at.Before(cutoff) })
}

// ProcessCOGSOG records a speed sample, rejecting unrealistic SOG (noise).
func (m *Monitor) ProcessCOGSOG(msg message.COGSOGRapidUpdate) {
	now := m.now()
	sogKn := msg.SOGKnots()
	if sogKn > maxValidSOGKn {
		return
	}
	m.speeds = append(m.speeds, speedSample{speedKn: sogKn, at: now})

	cutoff := now.Add(-eventInterval - 5*time.Second)
	m.speeds = lo.Filter(m.speeds, func(s speedSample, _ int) bool { return !s.at.Before(cutoff) })
}

// ProcessEngine tracks whether the engine is running.
func (m *Monitor) ProcessEngine(msg message.EngineRapidUpdate) {
	m.engineOn = msg.IsEngineRunning()
}

// ProcessHeading keeps the latest vessel heading, converted to degrees.
func (m *Monitor) ProcessHeading(msg message.VesselHeading) {
	deg := geo.Normalize0To360(msg.Heading * 180 / math.Pi)
	m.lastHeadingDeg = &deg
}

func (m *Monitor) isValidPosition(p geo.Position, now time.Time) bool {
	cutoff := now.Add(-positionValidationWindow)
	var recent []geo.Position
	for i := len(m.positions) - 1; i >= 0; i-- {
		if m.positions[i].at.Before(cutoff) {
			break
		}
		recent = append(recent, m.positions[i].position)
	}
	if len(recent) < minSamplesForValidation {
		return true // bootstrap phase: accept to build up the buffer
	}
	median := geo.MedianPosition(recent)
	distanceMeters := geo.DistanceNM(p, median) * metersPerNM
	return distanceMeters <= maxPositionDeviationMeter
}

// ShouldGenerateEvent reports whether eventInterval has elapsed since the
// last Status was generated.
func (m *Monitor) ShouldGenerateEvent() bool {
	return m.now().Sub(m.lastEventTime) >= eventInterval
}

// GenerateStatus produces a Status snapshot if it's time and there's at
// least one position sample, advancing the internal event clock as a
// side effect.
func (m *Monitor) GenerateStatus() (Status, bool) {
	if !m.ShouldGenerateEvent() || len(m.positions) == 0 {
		return Status{}, false
	}

	current := m.positions[len(m.positions)-1].position
	sampleCount, avgPosition := m.calculateAveragePosition()
	_, _, maxSpeedKn := m.calculateAverageAndMaxSpeed()
	isMoored := m.isVesselMoored()
	windSpeedKn, windSpeedVar, windAngleDeg, windAngleVar := m.calculateWindStatistics()

	timestamp := m.positions[len(m.positions)-1].at
	m.lastEventTime = m.now()

	return Status{
		CurrentPosition:   current,
		AveragePosition:   avgPosition,
		NumberOfSamples:   sampleCount,
		MaxSpeedKn:        maxSpeedKn,
		IsMoored:          isMoored,
		EngineOn:          m.engineOn,
		HeadingDeg:        m.lastHeadingDeg,
		Timestamp:         timestamp,
		WindSpeedKn:       windSpeedKn,
		WindSpeedVariance: windSpeedVar,
		WindAngleDeg:      windAngleDeg,
		WindAngleVariance: windAngleVar,
	}, true
}

// calculateAveragePosition averages the positions accumulated since the
// last emitted status.
func (m *Monitor) calculateAveragePosition() (int, *geo.Position) {
	recent := lo.Filter(m.positions, func(s positionSample, _ int) bool { return !s.at.Before(m.lastEventTime) })
	if len(recent) == 0 {
		return 0, nil
	}
	lat := lo.SumBy(recent, func(s positionSample) float64 { return s.position.Latitude })
	lon := lo.SumBy(recent, func(s positionSample) float64 { return s.position.Longitude })
	avg := geo.Position{Latitude: lat / float64(len(recent)), Longitude: lon / float64(len(recent))}
	return len(recent), &avg
}

func (m *Monitor) calculateAverageAndMaxSpeed() (int, float64, float64) {
	cutoff := m.now().Add(-eventInterval)
	recent := lo.Filter(m.speeds, func(s speedSample, _ int) bool { return !s.at.Before(cutoff) })
	if len(recent) == 0 {
		return 0, 0, 0
	}
	total := lo.SumBy(recent, func(s speedSample) float64 { return s.speedKn })
	fastest := lo.MaxBy(recent, func(a, b speedSample) bool { return a.speedKn > b.speedKn })
	return len(recent), total / float64(len(recent)), fastest.speedKn
}

func (m *Monitor) calculateWindStatistics() (speedKn, speedVar, angleDeg, angleVar *float64) {
	cutoff := m.now().Add(-eventInterval)
	relevant := lo.Filter(m.winds, func(w windSample, _ int) bool { return !w.at.Before(cutoff) })
	if len(relevant) == 0 {
		return nil, nil, nil, nil
	}

	count := float64(len(relevant))
	speedSum := lo.SumBy(relevant, func(w windSample) float64 { return w.speedKn })
	angles := lo.Map(relevant, func(w windSample, _ int) float64 { return w.angleDeg })
	meanSpeed := speedSum / count
	meanAngle := geo.AverageAngle(angles)

	varSpeed := lo.SumBy(relevant, func(w windSample) float64 {
		d := w.speedKn - meanSpeed
		return d * d
	})
	varAngle := lo.SumBy(relevant, func(w windSample) float64 {
		d := geo.AngleDiff(w.angleDeg, meanAngle)
		return d * d
	})
	varSpeed = math.Sqrt(varSpeed / count)
	varAngle = math.Sqrt(varAngle / count)

	return &meanSpeed, &varSpeed, &meanAngle, &varAngle
}

func (m *Monitor) isVesselMoored() bool {
	cutoff := m.now().Add(-mooringDetectionWindow)
	recent := lo.FilterMap(m.positions, func(s positionSample, _ int) (geo.Position, bool) {
		return s.position, !s.at.Before(cutoff)
	})
	// The 2-sample minimum applies to the detection window, not the whole
	// retained buffer: one windowed sample is trivially within 30m of its
	// own mean.
	if len(recent) < 2 {
		return false
	}

	lat := lo.SumBy(recent, func(p geo.Position) float64 { return p.Latitude })
	lon := lo.SumBy(recent, func(p geo.Position) float64 { return p.Longitude })
	avg := geo.Position{Latitude: lat / float64(len(recent)), Longitude: lon / float64(len(recent))}

	within := lo.CountBy(recent, func(p geo.Position) bool {
		return geo.DistanceNM(p, avg)*metersPerNM <= mooringThresholdMeters
	})
	// The threshold count truncates: 90% of a count that doesn't divide
	// evenly rounds down.
	return within >= int(float64(len(recent))*mooringAccuracy)
}
