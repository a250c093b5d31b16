package message

import "encoding/binary"

// EngineRapidUpdate is PGN 127488.
type EngineRapidUpdate struct {
	Source           uint8
	EngineInstance   uint8
	EngineSpeed      *float64 // RPM
	EngineBoostPress *float64 // Pa
	EngineTiltTrim   *int8    // percent
}

func (EngineRapidUpdate) PGN() uint32 { return PGNEngineRapidUpdate }

// IsEngineRunning reports the engine running if RPM is reported and > 0.
func (m EngineRapidUpdate) IsEngineRunning() bool {
	return m.EngineSpeed != nil && *m.EngineSpeed > 0.0
}

func DecodeEngineRapidUpdate(data []byte) (EngineRapidUpdate, bool) {
	if !fits(data, 0, 6) {
		return EngineRapidUpdate{}, false
	}
	m := EngineRapidUpdate{EngineInstance: data[0]}
	if speedRaw := binary.LittleEndian.Uint16(data[1:3]); speedRaw != sentinelU16 {
		v := float64(speedRaw) * 0.25
		m.EngineSpeed = &v
	}
	if boostRaw := binary.LittleEndian.Uint16(data[3:5]); boostRaw != sentinelU16 {
		v := float64(boostRaw) * 100.0
		m.EngineBoostPress = &v
	}
	tilt := int8(data[5])
	if tilt != -128 {
		m.EngineTiltTrim = &tilt
	}
	return m, true
}
