package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	assert.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, `{"can_interface":"can0","time":{"skew_threshold_ms":1000},"database":{"connection":{"host":"db"},"vessel_status":{"interval_moored_seconds":1800,"interval_underway_seconds":30},"environmental":{"wind_speed_seconds":30,"wind_direction_seconds":30,"roll_seconds":30,"pressure_seconds":120,"cabin_temp_seconds":300,"water_temp_seconds":300,"humidity_seconds":300}}}`)
	cfg, err := Load([]string{path}, nil)
	assert.NoError(t, err)
	assert.Equal(t, "can0", cfg.CANInterface)
	assert.EqualValues(t, 1000, cfg.Time.SkewThresholdMs)
}

func TestLoadEmptyCANInterfaceIsFatal(t *testing.T) {
	path := writeTempConfig(t, `{"can_interface":""}`)
	_, err := Load([]string{path}, nil)
	assert.ErrorIs(t, err, ErrEmptyCANInterface)
}

func TestLoadInvalidCANInterfaceIsFatal(t *testing.T) {
	path := writeTempConfig(t, `{"can_interface":"can 0!"}`)
	_, err := Load([]string{path}, nil)
	assert.ErrorIs(t, err, ErrInvalidCANInterface)
}

func TestLoadOutOfRangeSkewRevertsToDefault(t *testing.T) {
	path := writeTempConfig(t, `{"can_interface":"can0","time":{"skew_threshold_ms":10}}`)
	cfg, err := Load([]string{path}, nil)
	assert.NoError(t, err)
	assert.EqualValues(t, 500, cfg.Time.SkewThresholdMs)
}

func TestLoadOutOfRangeUnderwayIntervalReverts(t *testing.T) {
	path := writeTempConfig(t, `{"can_interface":"can0","database":{"vessel_status":{"interval_underway_seconds":5}}}`)
	cfg, err := Load([]string{path}, nil)
	assert.NoError(t, err)
	assert.EqualValues(t, 30, cfg.Database.VesselStatus.IntervalUnderwaySeconds)
}

func TestLoadMooredIntervalAllowsWidenedRange(t *testing.T) {
	path := writeTempConfig(t, `{"can_interface":"can0","database":{"vessel_status":{"interval_moored_seconds":3600}}}`)
	cfg, err := Load([]string{path}, nil)
	assert.NoError(t, err)
	assert.EqualValues(t, 3600, cfg.Database.VesselStatus.IntervalMooredSeconds)
}

func TestLoadDropsInvalidSourceFilterEntries(t *testing.T) {
	path := writeTempConfig(t, `{"can_interface":"can0","source_filter":{"pgn_source_map":{"126992":5,"1":7,"130312":255}}}`)
	cfg, err := Load([]string{path}, nil)
	assert.NoError(t, err)
	assert.Len(t, cfg.SourceFilterMap(), 1)
	assert.Equal(t, uint8(5), cfg.SourceFilterMap()[126992])
}

func TestLoadFallsBackToSecondPath(t *testing.T) {
	path := writeTempConfig(t, `{"can_interface":"can0"}`)
	cfg, err := Load([]string{"/nonexistent/config.json", path}, nil)
	assert.NoError(t, err)
	assert.Equal(t, "can0", cfg.CANInterface)
}

func TestLooseBoolCoercions(t *testing.T) {
	var cases = []struct {
		json string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`"yes"`, true},
		{`"NO"`, false},
		{`1`, true},
		{`0`, false},
		{`"garbage"`, false},
		{`null`, false},
	}
	for _, c := range cases {
		var b looseBool
		assert.NoError(t, json.Unmarshal([]byte(c.json), &b))
		assert.Equal(t, c.want, bool(b), c.json)
	}
}
