package message

import "encoding/binary"

// SystemTime is PGN 126992: the GNSS-derived wall clock used by TimeMonitor
// to detect skew against the local monotonic clock.
type SystemTime struct {
	Source uint8
	SID    uint8
	Date   uint16 // days since 1970-01-01
	Time   uint32 // 0.0001s units since midnight
}

func (SystemTime) PGN() uint32 { return PGNSystemTime }

// UnixSeconds converts Date/Time to a Unix timestamp, truncating the
// sub-second remainder the way the source format does.
func (s SystemTime) UnixSeconds() int64 {
	return int64(s.Date)*86400 + int64(float64(s.Time)*0.0001)
}

// Milliseconds returns the sub-second component of Time.
func (s SystemTime) Milliseconds() uint32 {
	return uint32(float64(s.Time)*0.0001*1000) % 1000
}

func DecodeSystemTime(data []byte) (SystemTime, bool) {
	if !fits(data, 0, 8) {
		return SystemTime{}, false
	}
	sid := data[0]
	source := data[1]
	date := binary.LittleEndian.Uint16(data[2:4])
	t := binary.LittleEndian.Uint32(data[4:8])
	return SystemTime{SID: sid, Source: source, Date: date, Time: t}, true
}

// TimeDate is PGN 129033: local date and time-of-day, typically sourced
// from the same GNSS receiver as SystemTime.
type TimeDate struct {
	Source uint8
	Date   uint16  // days since 1970-01-01
	Time   float64 // seconds since midnight
}

func (TimeDate) PGN() uint32 { return PGNTimeDate }

func DecodeTimeDate(data []byte) (TimeDate, bool) {
	if !fits(data, 0, 6) {
		return TimeDate{}, false
	}
	date := binary.LittleEndian.Uint16(data[0:2])
	raw := binary.LittleEndian.Uint32(data[2:6])
	return TimeDate{Date: date, Time: float64(raw) * 0.0001}, true
}
