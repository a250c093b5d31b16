package envmonitor

import (
	"testing"

	"github.com/oceanrelay/marinetelemetryd/internal/message"
	"github.com/stretchr/testify/assert"
)

func TestProcessActualPressure(t *testing.T) {
	m := New()
	m.ProcessActualPressure(message.ActualPressure{Instance: 0, PressureSrc: 0, Pressure: 101325})
	assert.True(t, m.HasSamples(Pressure))
	data, ok := m.Calculate(Pressure)
	assert.True(t, ok)
	assert.Equal(t, 1, data.Count)
	assert.InDelta(t, 101325.0, data.Avg, 1e-9)
}

func TestProcessTemperatureCabin(t *testing.T) {
	m := New()
	m.ProcessTemperature(message.Temperature{Instance: 0, TempSource: 4, Temperature: 292.85})
	assert.True(t, m.HasSamples(CabinTemp))
	assert.False(t, m.HasSamples(WaterTemp))
}

func TestProcessTemperatureWater(t *testing.T) {
	m := New()
	m.ProcessTemperature(message.Temperature{Instance: 0, TempSource: 0, Temperature: 288.89})
	assert.True(t, m.HasSamples(WaterTemp))
	assert.False(t, m.HasSamples(CabinTemp))
}

func TestProcessTemperatureIgnoresOtherInstance(t *testing.T) {
	m := New()
	m.ProcessTemperature(message.Temperature{Instance: 1, TempSource: 0, Temperature: 288.89})
	assert.False(t, m.HasSamples(WaterTemp))
}

func TestProcessWind(t *testing.T) {
	m := New()
	m.ProcessWind(message.WindData{Speed: 5.5, Angle: 3.14})
	assert.True(t, m.HasSamples(WindSpeed))
	assert.True(t, m.HasSamples(WindDir))
}

func TestProcessHumidity(t *testing.T) {
	m := New()
	m.ProcessHumidity(message.Humidity{ActualHumidity: 65.0})
	assert.True(t, m.HasSamples(Humidity))
}

func TestProcessAttitudeRoll(t *testing.T) {
	m := New()
	roll := 0.1
	m.ProcessAttitude(message.Attitude{Roll: &roll})
	assert.True(t, m.HasSamples(Roll))
}

func TestProcessAttitudeNoRoll(t *testing.T) {
	m := New()
	m.ProcessAttitude(message.Attitude{})
	assert.False(t, m.HasSamples(Roll))
}

func TestCalculateEmptyReturnsFalse(t *testing.T) {
	m := New()
	_, ok := m.Calculate(Pressure)
	assert.False(t, ok)
}

func TestCleanupClearsBuffer(t *testing.T) {
	m := New()
	m.ProcessHumidity(message.Humidity{ActualHumidity: 10})
	m.Cleanup(Humidity)
	assert.False(t, m.HasSamples(Humidity))
}

func TestCalculateMinMaxAvg(t *testing.T) {
	m := New()
	m.ProcessHumidity(message.Humidity{ActualHumidity: 10})
	m.ProcessHumidity(message.Humidity{ActualHumidity: 30})
	m.ProcessHumidity(message.Humidity{ActualHumidity: 20})
	data, ok := m.Calculate(Humidity)
	assert.True(t, ok)
	assert.Equal(t, 3, data.Count)
	assert.InDelta(t, 20.0, data.Avg, 1e-9)
	assert.InDelta(t, 10.0, data.Min, 1e-9)
	assert.InDelta(t, 30.0, data.Max, 1e-9)
}
