package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAngleDiff(t *testing.T) {
	cases := []struct {
		a, b, expect float64
	}{
		{0, 0, 0},
		{10, 20, -10},
		{350, 340, 10},
		{10, 350, 20},
		{350, 10, -20},
		{90, 270, 180},
		{271, 90, -179},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.expect, AngleDiff(tc.a, tc.b), 1e-9)
	}
}

func TestNormalize0To360(t *testing.T) {
	assert.InDelta(t, 10.0, Normalize0To360(370.0), 1e-9)
	assert.InDelta(t, 350.0, Normalize0To360(-10.0), 1e-9)
	assert.InDelta(t, 0.0, Normalize0To360(720.0), 1e-9)
}

func TestAverageAngle(t *testing.T) {
	assert.InDelta(t, 135.0, AverageAngle([]float64{90, 180}), 1e-9)
	assert.InDelta(t, 0.1, AverageAngle([]float64{5.1, 355.1, 10.1, 350.1}), 1e-9)
}

func TestTrueWindZeroBoatSpeed(t *testing.T) {
	speed, angle := TrueWind(10.0, 45.0, 0.0)
	assert.InDelta(t, 10.0, speed, 1e-6)
	assert.InDelta(t, 45.0, angle, 1e-6)
}

func TestTrueWindHeadwind(t *testing.T) {
	speed, angle := TrueWind(15.0, 0.0, 5.0)
	assert.InDelta(t, 10.0, speed, 1e-6)
	assert.InDelta(t, 0.0, angle, 1e-6)
}

func TestTrueWindBeamReach(t *testing.T) {
	speed, angle := TrueWind(12.0, 90.0, 6.0)
	assert.Greater(t, speed, 12.0)
	assert.Greater(t, angle, 90.0)
}

func TestDistanceNMZero(t *testing.T) {
	p := Position{Latitude: 58.0, Longitude: 22.0}
	assert.InDelta(t, 0.0, DistanceNM(p, p), 1e-9)
}

func TestMedianPositionOdd(t *testing.T) {
	positions := []Position{
		{Latitude: 1, Longitude: 1},
		{Latitude: 3, Longitude: 3},
		{Latitude: 2, Longitude: 2},
	}
	m := MedianPosition(positions)
	assert.InDelta(t, 2.0, m.Latitude, 1e-9)
	assert.InDelta(t, 2.0, m.Longitude, 1e-9)
}
