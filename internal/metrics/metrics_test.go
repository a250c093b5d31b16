package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRegistersAllMetrics(t *testing.T) {
	m := New("marinetelemetry")
	m.CANFrames.Inc()
	assert.InDelta(t, 1.0, counterValue(m.CANFrames), 1e-9)
}

func TestSummaryLoggerRespectsInterval(t *testing.T) {
	m := New("marinetelemetry")
	s := NewSummaryLogger(m, nil, time.Minute)
	frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	s.CheckAndLog()
	assert.Equal(t, frozen, s.lastLoggedAt)

	s.now = func() time.Time { return frozen.Add(10 * time.Second) }
	s.CheckAndLog()
	assert.Equal(t, frozen, s.lastLoggedAt) // unchanged: interval not elapsed

	s.now = func() time.Time { return frozen.Add(90 * time.Second) }
	s.CheckAndLog()
	assert.Equal(t, frozen.Add(90*time.Second), s.lastLoggedAt)
}
