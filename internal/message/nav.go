package message

import (
	"encoding/binary"
	"math"
)

// VesselHeading is PGN 127250.
type VesselHeading struct {
	Source    uint8
	SID       uint8
	Heading   float64 // radians
	Deviation *float64
	Variation *float64
	Reference uint8 // 0=true, 1=magnetic
}

func (VesselHeading) PGN() uint32 { return PGNVesselHeading }

func DecodeVesselHeading(data []byte) (VesselHeading, bool) {
	if !fits(data, 0, 5) {
		return VesselHeading{}, false
	}
	sid := data[0]
	headingRaw, ok := readU16(data, 1)
	if !ok {
		return VesselHeading{}, false
	}
	m := VesselHeading{SID: sid, Heading: float64(headingRaw) * rad}
	if dev, ok := readI16(data, 3); ok {
		v := float64(dev) * rad
		m.Deviation = &v
	}
	if fits(data, 5, 2) {
		if va, ok := readI16(data, 5); ok {
			v := float64(va) * rad
			m.Variation = &v
		}
	}
	if fits(data, 7, 1) {
		m.Reference = data[7] & 0x3
	}
	return m, true
}

// RateOfTurn is PGN 127251.
type RateOfTurn struct {
	Source uint8
	SID    uint8
	Rate   float64 // radians/sec
}

func (RateOfTurn) PGN() uint32 { return PGNRateOfTurn }

func DecodeRateOfTurn(data []byte) (RateOfTurn, bool) {
	if !fits(data, 0, 5) {
		return RateOfTurn{}, false
	}
	raw := int32(binary.LittleEndian.Uint32(data[1:5]))
	return RateOfTurn{SID: data[0], Rate: float64(raw) * 1e-6}, true
}

// Attitude is PGN 127257. Yaw, pitch and roll are each optional: the
// sentinel codepoint 0x7FFF means the sensor did not report that axis.
type Attitude struct {
	Source uint8
	SID    uint8
	Yaw    *float64 // radians
	Pitch  *float64 // radians
	Roll   *float64 // radians
}

func (Attitude) PGN() uint32 { return PGNAttitude }

func DecodeAttitude(data []byte) (Attitude, bool) {
	if !fits(data, 0, 7) {
		return Attitude{}, false
	}
	m := Attitude{SID: data[0]}
	if yaw, ok := readI16(data, 1); ok {
		v := float64(yaw) * rad
		m.Yaw = &v
	}
	if pitch, ok := readI16(data, 3); ok {
		v := float64(pitch) * rad
		m.Pitch = &v
	}
	if roll, ok := readI16(data, 5); ok {
		v := float64(roll) * rad
		m.Roll = &v
	}
	return m, true
}

// RollDegrees returns Roll converted to degrees, if present.
func (a Attitude) RollDegrees() *float64 {
	if a.Roll == nil {
		return nil
	}
	v := *a.Roll * 180 / math.Pi
	return &v
}

// PositionRapidUpdate is PGN 129025.
type PositionRapidUpdate struct {
	Source    uint8
	Latitude  float64 // degrees
	Longitude float64 // degrees
}

func (PositionRapidUpdate) PGN() uint32 { return PGNPositionRapidUpdate }

func DecodePositionRapidUpdate(data []byte) (PositionRapidUpdate, bool) {
	if !fits(data, 0, 8) {
		return PositionRapidUpdate{}, false
	}
	lat := int32(binary.LittleEndian.Uint32(data[0:4]))
	lon := int32(binary.LittleEndian.Uint32(data[4:8]))
	return PositionRapidUpdate{
		Latitude:  float64(lat) * degLSB32,
		Longitude: float64(lon) * degLSB32,
	}, true
}

// COGSOGRapidUpdate is PGN 129026.
type COGSOGRapidUpdate struct {
	Source       uint8
	SID          uint8
	COGReference uint8
	COG          float64 // radians
	SOG          float64 // m/s
}

func (COGSOGRapidUpdate) PGN() uint32 { return PGNCOGSOGRapidUpdate }

// SOGKnots converts SOG from m/s to knots.
func (m COGSOGRapidUpdate) SOGKnots() float64 { return m.SOG * 1.943844 }

func DecodeCOGSOGRapidUpdate(data []byte) (COGSOGRapidUpdate, bool) {
	if !fits(data, 0, 6) {
		return COGSOGRapidUpdate{}, false
	}
	cog := binary.LittleEndian.Uint16(data[2:4])
	sog := binary.LittleEndian.Uint16(data[4:6])
	return COGSOGRapidUpdate{
		SID:          data[0],
		COGReference: data[1] & 0x3,
		COG:          float64(cog) * rad,
		SOG:          float64(sog) * mpsLSB,
	}, true
}

// GNSSPosition is PGN 129029: a fast-packet message, always assembled by
// the reassembler before reaching this decoder. A full record is 43 bytes;
// anything shorter is rejected outright rather than partially decoded.
type GNSSPosition struct {
	Source      uint8
	SID         uint8
	Date        uint16
	Time        uint32
	Latitude    float64 // degrees
	Longitude   float64 // degrees
	Altitude    float64 // meters
	GNSSType    uint8
	Method      uint8
	NumberOfSVs uint8
	HDOP        *float64
	PDOP        *float64
}

func (GNSSPosition) PGN() uint32 { return PGNGNSSPosition }

func DecodeGNSSPosition(data []byte) (GNSSPosition, bool) {
	if !fits(data, 0, 43) {
		return GNSSPosition{}, false
	}
	date := binary.LittleEndian.Uint16(data[1:3])
	t := binary.LittleEndian.Uint32(data[3:7])
	lat := int64(binary.LittleEndian.Uint64(data[7:15]))
	lon := int64(binary.LittleEndian.Uint64(data[15:23]))
	alt := int64(binary.LittleEndian.Uint64(data[23:31]))
	m := GNSSPosition{
		SID:         data[0],
		Date:        date,
		Time:        t,
		Latitude:    float64(lat) * degLSB64,
		Longitude:   float64(lon) * degLSB64,
		Altitude:    float64(alt) * 1e-6,
		GNSSType:    data[31] & 0x0f,
		Method:      data[31] >> 4,
		NumberOfSVs: data[33],
	}
	if hdop, ok := readI16(data, 34); ok {
		v := float64(hdop) * 0.01
		m.HDOP = &v
	}
	if pdop, ok := readI16(data, 36); ok {
		v := float64(pdop) * 0.01
		m.PDOP = &v
	}
	return m, true
}

// Speed is PGN 128259: speed through water, from a paddlewheel or similar log.
type Speed struct {
	Source      uint8
	SID         uint8
	SpeedWater  float64 // m/s
	SpeedGround *float64
}

func (Speed) PGN() uint32 { return PGNSpeed }

func DecodeSpeed(data []byte) (Speed, bool) {
	if !fits(data, 0, 3) {
		return Speed{}, false
	}
	sw, ok := readU16(data, 1)
	if !ok {
		return Speed{}, false
	}
	m := Speed{SID: data[0], SpeedWater: float64(sw) * mpsLSB}
	if sg, ok := readU16(data, 3); ok {
		v := float64(sg) * mpsLSB
		m.SpeedGround = &v
	}
	return m, true
}

// WaterDepth is PGN 128267.
type WaterDepth struct {
	Source uint8
	SID    uint8
	Depth  float64 // meters
	Offset float64 // meters
}

func (WaterDepth) PGN() uint32 { return PGNWaterDepth }

func DecodeWaterDepth(data []byte) (WaterDepth, bool) {
	if !fits(data, 0, 7) {
		return WaterDepth{}, false
	}
	depth := binary.LittleEndian.Uint32(data[1:5])
	offset := int16(binary.LittleEndian.Uint16(data[5:7]))
	return WaterDepth{
		SID:    data[0],
		Depth:  float64(depth) * 0.01,
		Offset: float64(offset) * 0.001,
	}, true
}
