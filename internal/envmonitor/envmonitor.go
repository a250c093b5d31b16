// Package envmonitor maintains unbounded-by-time, cadence-flushed sample
// buffers for seven environmental metrics.
package envmonitor

import (
	"math"
	"time"

	"github.com/oceanrelay/marinetelemetryd/internal/message"
	"github.com/samber/lo"
)

// MetricID identifies one of the seven environmental metrics tracked.
type MetricID int

const (
	Pressure MetricID = iota
	CabinTemp
	WaterTemp
	Humidity
	WindSpeed
	WindDir
	Roll

	metricCount
)

// AllMetrics is every MetricID, in a stable order.
var AllMetrics = []MetricID{Pressure, CabinTemp, WaterTemp, Humidity, WindSpeed, WindDir, Roll}

func (m MetricID) Unit() string {
	switch m {
	case Pressure:
		return "Pa"
	case CabinTemp, WaterTemp:
		return "C"
	case Humidity:
		return "%"
	case WindSpeed:
		return "m/s"
	case WindDir, Roll:
		return "deg"
	default:
		return ""
	}
}

func (m MetricID) String() string {
	switch m {
	case Pressure:
		return "pressure"
	case CabinTemp:
		return "cabin_temp"
	case WaterTemp:
		return "water_temp"
	case Humidity:
		return "humidity"
	case WindSpeed:
		return "wind_speed"
	case WindDir:
		return "wind_dir"
	case Roll:
		return "roll"
	default:
		return "unknown"
	}
}

// Data summarizes a metric's sample buffer: mean, min, max and sample
// count. Calculate reports an empty buffer with ok == false.
type Data struct {
	Avg   float64
	Max   float64
	Min   float64
	Count int
}

type sample struct {
	value float64
	at    time.Time
}

// Monitor holds one unbounded sample buffer per metric. Buffers grow
// between persistence flushes and are cleared by Cleanup after a flush —
// there is no age-based eviction here, unlike VesselMonitor's windows,
// because each metric's own cadence is what bounds buffer lifetime.
type Monitor struct {
	samples [metricCount][]sample
	now     func() time.Time
}

func New() *Monitor {
	return &Monitor{now: time.Now}
}

// ProcessTemperature routes a Temperature message (PGN 130312) to cabin or
// water temperature based on the PGN-internal instance/source fields —
// (instance=0, source=4) is "Inside Ambient" (cabin); (instance=0,
// source=0) is sea water. Every other combination is dropped: this daemon
// only tracks these two temperature channels.
func (m *Monitor) ProcessTemperature(msg message.Temperature) {
	if msg.Instance != 0 {
		return
	}
	celsius := msg.Temperature - 273.15
	now := m.now()
	switch {
	case msg.TempSource == 4:
		m.push(CabinTemp, celsius, now)
	case msg.TempSource == 0:
		m.push(WaterTemp, celsius, now)
	}
}

// ProcessWind stores both wind speed and wind direction samples from a
// Wind Data message (PGN 130306).
func (m *Monitor) ProcessWind(msg message.WindData) {
	now := m.now()
	m.push(WindSpeed, msg.Speed, now)
	m.push(WindDir, msg.Angle*180/math.Pi, now)
}

// ProcessHumidity stores a standalone humidity sensor reading (PGN 130313).
func (m *Monitor) ProcessHumidity(msg message.Humidity) {
	m.push(Humidity, msg.ActualHumidity, m.now())
}

// ProcessActualPressure stores the primary atmospheric pressure sensor's
// reading (PGN 130314) — instance 0, PGN-internal source 0 only.
func (m *Monitor) ProcessActualPressure(msg message.ActualPressure) {
	if msg.Instance == 0 && msg.PressureSrc == 0 {
		m.push(Pressure, msg.Pressure, m.now())
	}
}

// ProcessAttitude extracts the roll axis (PGN 127257), if reported.
func (m *Monitor) ProcessAttitude(msg message.Attitude) {
	if roll := msg.RollDegrees(); roll != nil {
		m.push(Roll, *roll, m.now())
	}
}

func (m *Monitor) push(id MetricID, value float64, at time.Time) {
	m.samples[id] = append(m.samples[id], sample{value: value, at: at})
}

// HasSamples reports whether a metric's buffer is non-empty.
func (m *Monitor) HasSamples(id MetricID) bool {
	return len(m.samples[id]) > 0
}

// Cleanup discards every sample for a metric, called after a successful
// flush to the store.
func (m *Monitor) Cleanup(id MetricID) {
	m.samples[id] = nil
}

// Calculate computes mean/min/max/count for a metric's buffer, or returns
// (Data{}, false) if it is empty.
func (m *Monitor) Calculate(id MetricID) (Data, bool) {
	samples := m.samples[id]
	if len(samples) == 0 {
		return Data{}, false
	}
	total := lo.SumBy(samples, func(s sample) float64 { return s.value })
	max := lo.MaxBy(samples, func(a, b sample) bool { return a.value > b.value })
	min := lo.MinBy(samples, func(a, b sample) bool { return a.value < b.value })
	return Data{
		Avg:   total / float64(len(samples)),
		Max:   max.value,
		Min:   min.value,
		Count: len(samples),
	}, true
}
