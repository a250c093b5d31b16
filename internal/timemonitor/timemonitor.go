// Package timemonitor tracks skew between the GNSS-sourced wall clock
// carried in NMEA2000 System Time messages and the local clock, gating
// whether it's safe to timestamp persisted rows.
package timemonitor

import (
	"time"

	"github.com/oceanrelay/marinetelemetryd/internal/message"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const defaultWarningCooldown = 10 * time.Second

// Monitor compares each System Time (PGN 126992) message's encoded UTC
// instant against the local wall clock.
type Monitor struct {
	log *zap.Logger

	thresholdMs     int64
	setSystemTime   bool
	warningCooldown time.Duration
	lastWarningAt   time.Time
	hasWarned       bool
	hasSkew         bool
	lastSkewMs      int64
	initialized     bool

	now      func() time.Time
	setClock func(time.Time) error
}

// New builds a Monitor with the given skew threshold in milliseconds. A
// zero threshold is invalid config input and the caller should have
// validated it already; New does not second-guess it. When setSystemTime
// is on, a skewed reading makes the monitor try to step the system clock
// to the GNSS time (best-effort, needs CAP_SYS_TIME).
func New(thresholdMs int64, setSystemTime bool, log *zap.Logger) *Monitor {
	return &Monitor{
		log:             log,
		thresholdMs:     thresholdMs,
		setSystemTime:   setSystemTime,
		warningCooldown: defaultWarningCooldown,
		now:             time.Now,
		setClock:        setWallClock,
	}
}

// IsInitialized reports whether a System Time message has ever been seen.
func (m *Monitor) IsInitialized() bool { return m.initialized }

// LastMeasuredSkewMs returns the most recently computed skew, positive
// when NMEA2000 time is behind the local wall clock, negative when ahead.
// This value updates on every message regardless of the warning cooldown.
func (m *Monitor) LastMeasuredSkewMs() int64 { return m.lastSkewMs }

// IsTimeSynchronized reports whether the most recent skew was within
// threshold.
func (m *Monitor) IsTimeSynchronized() bool { return !m.hasSkew }

// IsValidAndSynced is the gate the daemon checks before feeding the vessel
// and environmental monitors and running their status handlers.
func (m *Monitor) IsValidAndSynced() bool {
	return m.IsInitialized() && m.IsTimeSynchronized()
}

// ProcessSystemTime folds a decoded System Time message into the skew
// estimate. The skew value always updates; only the warning is gated by
// the cooldown. A wall clock that reads before the epoch aborts the
// update entirely rather than flipping the synchronization state.
func (m *Monitor) ProcessSystemTime(sysTime message.SystemTime) {
	now := m.now()
	if now.Unix() < 0 {
		return
	}
	nmeaInstant := time.Unix(sysTime.UnixSeconds(), int64(sysTime.Milliseconds())*int64(time.Millisecond))

	skewMs := now.Sub(nmeaInstant).Milliseconds()
	absSkew := skewMs
	if absSkew < 0 {
		absSkew = -absSkew
	}

	if absSkew > m.thresholdMs {
		m.hasSkew = true
		if m.shouldWarn(now) {
			m.warn(skewMs, now, nmeaInstant)
			m.lastWarningAt = now
			m.hasWarned = true
		}
		m.maybeSetClock(nmeaInstant)
	} else {
		m.hasSkew = false
	}

	m.initialized = true
	m.lastSkewMs = skewMs
}

// maybeSetClock steps the system clock to GNSS time when configured to.
// Failure (typically a missing CAP_SYS_TIME) is logged and otherwise
// ignored; the skew warning path already covers the operator-visible side.
func (m *Monitor) maybeSetClock(nmeaInstant time.Time) {
	if !m.setSystemTime || m.setClock == nil {
		return
	}
	if err := m.setClock(nmeaInstant); err != nil {
		if m.log != nil {
			m.log.Warn("failed to set system time from GNSS", zap.Error(err), zap.Time("nmea_time", nmeaInstant))
		}
		return
	}
	if m.log != nil {
		m.log.Info("system time set from GNSS", zap.Time("nmea_time", nmeaInstant))
	}
}

func setWallClock(t time.Time) error {
	tv := unix.NsecToTimeval(t.UnixNano())
	return unix.Settimeofday(&tv)
}

func (m *Monitor) shouldWarn(now time.Time) bool {
	if !m.hasWarned {
		return true
	}
	return now.Sub(m.lastWarningAt) >= m.warningCooldown
}

func (m *Monitor) warn(skewMs int64, system, nmea time.Time) {
	if m.log == nil {
		return
	}
	direction := "behind"
	abs := skewMs
	if skewMs < 0 {
		direction = "ahead of"
		abs = -skewMs
	}
	m.log.Warn("NMEA2000 time skew exceeds threshold; database writes disabled until time sync",
		zap.Int64("skew_ms", abs),
		zap.String("direction", direction),
		zap.Time("system_time", system),
		zap.Time("nmea_time", nmea),
		zap.Int64("threshold_ms", m.thresholdMs),
	)
}
