package vesselmonitor

import (
	"testing"
	"time"

	"github.com/oceanrelay/marinetelemetryd/internal/geo"
	"github.com/oceanrelay/marinetelemetryd/internal/message"
	"github.com/stretchr/testify/assert"
)

func geoPos(lat, lon float64) geo.Position {
	return geo.Position{Latitude: lat, Longitude: lon}
}

func TestProcessCOGSOGRejectsUnrealisticSOG(t *testing.T) {
	m := New()
	// 30kn of SOG is above maxValidSOGKn and must be dropped as noise.
	m.ProcessCOGSOG(message.COGSOGRapidUpdate{SOG: 30 / 1.943844})
	assert.Empty(t, m.speeds)
}

func TestProcessCOGSOGAcceptsRealisticSOG(t *testing.T) {
	m := New()
	m.ProcessCOGSOG(message.COGSOGRapidUpdate{SOG: 5 / 1.943844})
	assert.Len(t, m.speeds, 1)
	assert.InDelta(t, 5.0, m.speeds[0].speedKn, 1e-6)
}

func TestProcessHeadingTracksLatestHeading(t *testing.T) {
	m := New()
	m.ProcessHeading(message.VesselHeading{Heading: 3.14159265})
	if assert.NotNil(t, m.lastHeadingDeg) {
		assert.InDelta(t, 180.0, *m.lastHeadingDeg, 1e-3)
	}

	m.ProcessHeading(message.VesselHeading{Heading: 0})
	assert.InDelta(t, 0.0, *m.lastHeadingDeg, 1e-9)
}

func TestProcessEngineTracksRunningState(t *testing.T) {
	m := New()
	running := 1200.0
	m.ProcessEngine(message.EngineRapidUpdate{EngineSpeed: &running})
	assert.True(t, m.engineOn)

	m.ProcessEngine(message.EngineRapidUpdate{})
	assert.False(t, m.engineOn)
}

func TestIsValidPositionBootstrapAcceptsUnconditionally(t *testing.T) {
	m := New()
	frozen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return frozen }

	// Fewer than minSamplesForValidation buffered: even a wildly distant
	// position must be accepted so the buffer can fill up.
	far := message.PositionRapidUpdate{Latitude: 89.0, Longitude: 179.0}
	m.ProcessPosition(far)
	assert.Len(t, m.positions, 1)
}

func TestIsValidPositionRejectsOutlierOnceBootstrapped(t *testing.T) {
	m := New()
	frozen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return frozen }

	base := 37.0
	for i := 0; i < minSamplesForValidation; i++ {
		m.ProcessPosition(message.PositionRapidUpdate{Latitude: base, Longitude: -122.0})
	}
	assert.Len(t, m.positions, minSamplesForValidation)

	// ~11km away — far outside the 100m noise-filter radius.
	m.ProcessPosition(message.PositionRapidUpdate{Latitude: base + 0.1, Longitude: -122.0})
	assert.Len(t, m.positions, minSamplesForValidation)
}

func TestProcessWindRequiresRecentSpeedSample(t *testing.T) {
	m := New()
	frozen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return frozen }

	m.ProcessWind(message.WindData{Speed: 5.0, Angle: 0})
	assert.Empty(t, m.winds)
}

func TestProcessWindResolvesTrueWindWithRecentSpeed(t *testing.T) {
	m := New()
	frozen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return frozen }
	m.ProcessCOGSOG(message.COGSOGRapidUpdate{SOG: 5 / 1.943844})

	m.now = func() time.Time { return frozen.Add(time.Second) }
	m.ProcessWind(message.WindData{Speed: 5.0, Angle: 0})

	assert.Len(t, m.winds, 1)
}

func TestProcessWindDroppedWhenSpeedSampleStale(t *testing.T) {
	m := New()
	frozen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return frozen }
	m.ProcessCOGSOG(message.COGSOGRapidUpdate{SOG: 5 / 1.943844})

	m.now = func() time.Time { return frozen.Add(6 * time.Second) }
	m.ProcessWind(message.WindData{Speed: 5.0, Angle: 0})

	assert.Empty(t, m.winds)
}

func TestGenerateStatusRequiresElapsedInterval(t *testing.T) {
	m := New()
	frozen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return frozen }
	m.lastEventTime = frozen

	m.ProcessPosition(message.PositionRapidUpdate{Latitude: 1, Longitude: 1})
	_, ok := m.GenerateStatus()
	assert.False(t, ok)
}

func TestGenerateStatusAfterIntervalProducesStatus(t *testing.T) {
	m := New()
	frozen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return frozen }
	m.lastEventTime = frozen.Add(-eventInterval)

	m.ProcessPosition(message.PositionRapidUpdate{Latitude: 1, Longitude: 1})
	status, ok := m.GenerateStatus()
	assert.True(t, ok)
	assert.True(t, status.IsValid())
	assert.Equal(t, 1, status.NumberOfSamples)
}

func TestIsVesselMooredWhenStationary(t *testing.T) {
	m := New()
	frozen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return frozen }

	// All samples at (near-)identical coordinates: within the 30m radius.
	for i := 0; i < 20; i++ {
		m.positions = append(m.positions, positionSample{
			position: geoPos(37.0, -122.0),
			at:       frozen,
		})
	}
	assert.True(t, m.isVesselMoored())
}

func TestIsVesselMooredFalseWithOneSampleInWindow(t *testing.T) {
	m := New()
	frozen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return frozen }

	// One sample older than the detection window, one inside it: the buffer
	// holds two, but the window holds one, which must not read as moored.
	m.positions = append(m.positions,
		positionSample{position: geoPos(37.0, -122.0), at: frozen.Add(-mooringDetectionWindow - 10*time.Second)},
		positionSample{position: geoPos(37.0, -122.0), at: frozen.Add(-5 * time.Second)},
	)
	assert.False(t, m.isVesselMoored())
}

func TestIsVesselMooredFalseWhenUnderway(t *testing.T) {
	m := New()
	frozen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return frozen }

	// Spread samples far enough apart that fewer than 90% sit within 30m.
	for i := 0; i < 20; i++ {
		m.positions = append(m.positions, positionSample{
			position: geoPos(37.0+float64(i)*0.01, -122.0),
			at:       frozen,
		})
	}
	assert.False(t, m.isVesselMoored())
}

func TestEffectivePositionUsesAverageWhenMoored(t *testing.T) {
	avg := geoPos(1, 2)
	s := Status{IsMoored: true, AveragePosition: &avg, CurrentPosition: geoPos(9, 9)}
	assert.Equal(t, avg, s.EffectivePosition())
}

func TestEffectivePositionUsesCurrentWhenUnderway(t *testing.T) {
	current := geoPos(9, 9)
	s := Status{IsMoored: false, CurrentPosition: current}
	assert.Equal(t, current, s.EffectivePosition())
}
