package message

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeSystemTime(t *testing.T) {
	data := []byte{
		0x01,             // SID
		0x02,             // Source
		0x0A, 0x00,       // Date = 10 days
		0x80, 0x51, 0x01, 0x00, // Time = 86400 (0.0001s units)
	}
	m, ok := DecodeSystemTime(data)
	assert.True(t, ok)
	assert.Equal(t, uint8(1), m.SID)
	assert.Equal(t, uint8(2), m.Source)
	assert.Equal(t, uint16(10), m.Date)
	assert.Equal(t, uint32(86400), m.Time)
}

func TestDecodeSystemTimeShort(t *testing.T) {
	_, ok := DecodeSystemTime([]byte{0x01, 0x02, 0x03})
	assert.False(t, ok)
}

func TestDecodeRateOfTurn(t *testing.T) {
	data := []byte{0x01, 0x00, 0x00, 0x00, 0x00}
	m, ok := DecodeRateOfTurn(data)
	assert.True(t, ok)
	assert.Equal(t, 0.0, m.Rate)
}

func TestDecodeAttitude(t *testing.T) {
	data := []byte{
		0x01,       // SID
		0xE8, 0x03, // Yaw = 1000 * 0.0001 = 0.1 rad
		0xD0, 0x07, // Pitch = 2000 * 0.0001 = 0.2 rad
		0xB8, 0x0B, // Roll = 3000 * 0.0001 = 0.3 rad
	}
	m, ok := DecodeAttitude(data)
	assert.True(t, ok)
	assert.InDelta(t, 0.1, *m.Yaw, 1e-9)
	assert.InDelta(t, 0.2, *m.Pitch, 1e-9)
	assert.InDelta(t, 0.3, *m.Roll, 1e-9)
}

func TestDecodeAttitudeSentinel(t *testing.T) {
	data := []byte{0x01, 0xFF, 0x7F, 0xFF, 0x7F, 0xFF, 0x7F}
	m, ok := DecodeAttitude(data)
	assert.True(t, ok)
	assert.Nil(t, m.Yaw)
	assert.Nil(t, m.Pitch)
	assert.Nil(t, m.Roll)
}

func TestDecodeEngineRapidUpdate(t *testing.T) {
	data := []byte{0x00, 0x70, 0x17, 0xDC, 0x05, 0x0A, 0xFF, 0xFF}
	m, ok := DecodeEngineRapidUpdate(data)
	assert.True(t, ok)
	assert.Equal(t, uint8(0), m.EngineInstance)
	assert.InDelta(t, 1500.0, *m.EngineSpeed, 1e-9)
	assert.InDelta(t, 150000.0, *m.EngineBoostPress, 1e-9)
	assert.Equal(t, int8(10), *m.EngineTiltTrim)
	assert.True(t, m.IsEngineRunning())
}

func TestDecodeEngineRapidUpdateInvalid(t *testing.T) {
	data := []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0x80, 0xFF, 0xFF}
	m, ok := DecodeEngineRapidUpdate(data)
	assert.True(t, ok)
	assert.Nil(t, m.EngineSpeed)
	assert.Nil(t, m.EngineBoostPress)
	assert.Nil(t, m.EngineTiltTrim)
	assert.False(t, m.IsEngineRunning())
}

func TestDecodeWaterDepth(t *testing.T) {
	data := []byte{0x01, 0x64, 0x00, 0x00, 0x00, 0x0A, 0x00}
	m, ok := DecodeWaterDepth(data)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, m.Depth, 1e-9)
	assert.InDelta(t, 0.01, m.Offset, 1e-9)
}

func TestDecodeCOGSOGRapidUpdate(t *testing.T) {
	data := []byte{0x01, 0x00, 0xB8, 0x22, 0xF4, 0x01, 0x00, 0x00}
	m, ok := DecodeCOGSOGRapidUpdate(data)
	assert.True(t, ok)
	assert.InDelta(t, 5.0, m.SOG, 1e-9)
}

func TestDecodeTemperatureCabin(t *testing.T) {
	data := []byte{0x01, 0x00, 0x04, 0x25, 0x72, 0x00}
	m, ok := DecodeTemperature(data)
	assert.True(t, ok)
	assert.Equal(t, uint8(0), m.Instance)
	assert.Equal(t, uint8(4), m.TempSource)
}

func TestDecodeHumidity(t *testing.T) {
	data := []byte{0x01, 0x00, 0x00, 0x22, 0x40, 0x00, 0x00}
	m, ok := DecodeHumidity(data)
	assert.True(t, ok)
	assert.InDelta(t, 65.672, m.ActualHumidity, 0.01)
}

func TestDecodeActualPressure(t *testing.T) {
	data := []byte{0x01, 0x00, 0x00, 0xCD, 0x8B, 0x01, 0x00}
	m, ok := DecodeActualPressure(data)
	assert.True(t, ok)
	assert.InDelta(t, 101325.0, m.Pressure, 1e-9)
}

func TestDecodeActualPressureShortBuffer(t *testing.T) {
	// 6 bytes cannot carry the 4-byte pressure field at offset 3.
	_, ok := DecodeActualPressure([]byte{0x01, 0x00, 0x00, 0x0D, 0x8B, 0x01})
	assert.False(t, ok)
}

func TestDecodeWindData(t *testing.T) {
	data := []byte{0x01, 0x26, 0x02, 0x54, 0x7B, 0x02}
	m, ok := DecodeWindData(data)
	assert.True(t, ok)
	assert.InDelta(t, 5.5, m.Speed, 1e-9)
	assert.Equal(t, uint8(2), m.Reference)
}

func gnssPositionBytes() []byte {
	data := make([]byte, 43)
	data[0] = 7 // SID
	binary.LittleEndian.PutUint16(data[1:3], 20000)
	binary.LittleEndian.PutUint32(data[3:7], 432000000) // 43200s since midnight
	binary.LittleEndian.PutUint64(data[7:15], uint64(int64(45.0*1e16)))
	lon := int64(-122.0 * 1e16)
	binary.LittleEndian.PutUint64(data[15:23], uint64(lon))
	binary.LittleEndian.PutUint64(data[23:31], uint64(int64(12_000_000))) // 12m altitude
	data[31] = 0x10 | 0x00                                               // GNSS type 0, method 1
	data[33] = 9                                                         // satellites in view
	binary.LittleEndian.PutUint16(data[34:36], 120)                      // HDOP 1.2
	binary.LittleEndian.PutUint16(data[36:38], 210)                      // PDOP 2.1
	return data
}

func TestDecodeGNSSPosition(t *testing.T) {
	m, ok := DecodeGNSSPosition(gnssPositionBytes())
	assert.True(t, ok)
	assert.Equal(t, uint8(7), m.SID)
	assert.Equal(t, uint16(20000), m.Date)
	assert.InDelta(t, 45.0, m.Latitude, 1e-9)
	assert.InDelta(t, -122.0, m.Longitude, 1e-9)
	assert.InDelta(t, 12.0, m.Altitude, 1e-6)
	assert.Equal(t, uint8(1), m.Method)
	assert.Equal(t, uint8(9), m.NumberOfSVs)
	assert.InDelta(t, 1.2, *m.HDOP, 1e-9)
	assert.InDelta(t, 2.1, *m.PDOP, 1e-9)
}

func TestDecodeGNSSPositionShortBuffer(t *testing.T) {
	_, ok := DecodeGNSSPosition(gnssPositionBytes()[:42])
	assert.False(t, ok)
}

func TestDecodeDispatchUnknown(t *testing.T) {
	m := Decode(999999, 1, []byte{0x01})
	u, ok := m.(Unknown)
	assert.True(t, ok)
	assert.Equal(t, uint32(999999), u.PGN())
}

func TestDecodeDispatchSetsSource(t *testing.T) {
	data := []byte{0x01, 0x02, 0x0A, 0x00, 0x80, 0x51, 0x01, 0x00}
	m := Decode(PGNSystemTime, 42, data)
	st, ok := m.(SystemTime)
	assert.True(t, ok)
	assert.Equal(t, uint8(42), st.Source)
}
