package message

import "encoding/binary"

// WindData is PGN 130306.
type WindData struct {
	Source    uint8
	SID       uint8
	Speed     float64 // m/s
	Angle     float64 // radians
	Reference uint8
}

func (WindData) PGN() uint32 { return PGNWindData }

// SpeedKnots converts Speed from m/s to knots.
func (m WindData) SpeedKnots() float64 { return m.Speed * 1.943844 }

func DecodeWindData(data []byte) (WindData, bool) {
	if !fits(data, 0, 5) {
		return WindData{}, false
	}
	speed := binary.LittleEndian.Uint16(data[1:3])
	angle := binary.LittleEndian.Uint16(data[3:5])
	m := WindData{SID: data[0], Speed: float64(speed) * mpsLSB, Angle: float64(angle) * rad}
	if fits(data, 5, 1) {
		m.Reference = data[5]
	}
	return m, true
}

// Temperature is PGN 130312. TempSource and Instance are fields carried inside
// the PGN payload (not the CAN bus source address) — they are how the
// sensor network distinguishes e.g. cabin air from sea water.
type Temperature struct {
	Source         uint8   // CAN bus source address, set by the caller
	SID            uint8
	Instance       uint8
	TempSource     uint8   // PGN-internal source enum (0=sea, 4=inside ambient, ...)
	Temperature    float64 // Kelvin
	SetTemperature *float64
}

func (Temperature) PGN() uint32 { return PGNTemperature }

func DecodeTemperature(data []byte) (Temperature, bool) {
	if !fits(data, 0, 6) {
		return Temperature{}, false
	}
	m := Temperature{
		SID:         data[0],
		Instance:    data[1],
		TempSource:  data[2],
		Temperature: float64(binary.LittleEndian.Uint16(data[3:5])) * 0.01,
	}
	if fits(data, 6, 2) {
		v := float64(binary.LittleEndian.Uint16(data[6:8])) * 0.01
		m.SetTemperature = &v
	}
	return m, true
}

// Humidity is PGN 130313.
type Humidity struct {
	Source         uint8
	SID            uint8
	Instance       uint8
	HumiditySrc    uint8
	ActualHumidity float64 // percent
	SetHumidity    *float64
}

func (Humidity) PGN() uint32 { return PGNHumidity }

func DecodeHumidity(data []byte) (Humidity, bool) {
	if !fits(data, 0, 6) {
		return Humidity{}, false
	}
	m := Humidity{
		Source:         0,
		SID:            data[0],
		Instance:       data[1],
		HumiditySrc:    data[2],
		ActualHumidity: float64(binary.LittleEndian.Uint16(data[3:5])) * 0.004,
	}
	if fits(data, 5, 2) {
		raw := binary.LittleEndian.Uint16(data[5:7])
		if raw != sentinelU16 {
			v := float64(raw) * 0.004
			m.SetHumidity = &v
		}
	}
	return m, true
}

// ActualPressure is PGN 130314.
type ActualPressure struct {
	Source      uint8
	SID         uint8
	Instance    uint8
	PressureSrc uint8
	Pressure    float64 // Pa
}

func (ActualPressure) PGN() uint32 { return PGNActualPressure }

func DecodeActualPressure(data []byte) (ActualPressure, bool) {
	if !fits(data, 0, 7) {
		return ActualPressure{}, false
	}
	return ActualPressure{
		SID:         data[0],
		Instance:    data[1],
		PressureSrc: data[2],
		Pressure:    float64(binary.LittleEndian.Uint32(data[3:7])),
	}, true
}
