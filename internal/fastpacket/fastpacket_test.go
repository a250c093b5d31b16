package fastpacket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Real-world fast-packet capture (5 frames, 30 bytes of payload: 6,7,7,7,7).
func gnssPositionFrames() [][]byte {
	return [][]byte{
		{0x60, 0x1E, 0xF0, 0x30, 0x4B, 0x08, 0xAC, 0x02},
		{0x61, 0x12, 0x8B, 0x01, 0xB3, 0x22, 0x34, 0x38},
		{0x62, 0x59, 0x0D, 0xA4, 0x00, 0xF5, 0xC7, 0xFA},
		{0x63, 0xFF, 0xFF, 0xF0, 0x03, 0x95, 0x6F, 0x02},
		{0x64, 0x01, 0x02, 0x01, 0xFF, 0xFF, 0xFF, 0xFF},
	}
}

func TestReassemblerCompletesSequence(t *testing.T) {
	r := New()
	frames := gnssPositionFrames()
	var out []byte
	var complete bool
	for _, f := range frames {
		out, complete = r.Append(129029, 35, f)
	}
	assert.True(t, complete)
	assert.Len(t, out, 0x1E)
	assert.Equal(t, byte(0xF0), out[0])
}

func TestReassemblerIncompleteReturnsNotComplete(t *testing.T) {
	r := New()
	frames := gnssPositionFrames()
	_, complete := r.Append(129029, 35, frames[0])
	assert.False(t, complete)
	assert.Equal(t, 1, r.Len())
}

func TestReassemblerNewFirstFrameDiscardsInFlight(t *testing.T) {
	r := New()
	frames := gnssPositionFrames()
	r.Append(129029, 35, frames[0])
	r.Append(129029, 35, frames[1])

	// A fresh first frame for the same key should discard the partial sequence.
	_, complete := r.Append(129029, 35, frames[0])
	assert.False(t, complete)
	assert.Equal(t, 1, r.Len())
}

func TestReassemblerStaleSequenceResets(t *testing.T) {
	r := New()
	frozen := time.Now()
	r.now = func() time.Time { return frozen }

	frames := gnssPositionFrames()
	r.Append(129029, 35, frames[0])

	r.now = func() time.Time { return frozen.Add(time.Second) }
	_, complete := r.Append(129029, 35, frames[1])
	// frames[1] alone, after the sequence staled, can never complete.
	assert.False(t, complete)
}

func TestReassemblerDistinctKeysDoNotInterfere(t *testing.T) {
	r := New()
	frames := gnssPositionFrames()
	r.Append(129029, 35, frames[0])
	r.Append(129029, 40, frames[0])
	assert.Equal(t, 2, r.Len())
}

func TestReassemblerEvictsOldestOverCap(t *testing.T) {
	r := New()
	for i := 0; i < maxBuffers+5; i++ {
		r.Append(129029, uint8(i), []byte{0x00, 0x20})
	}
	assert.LessOrEqual(t, r.Len(), maxBuffers)
}

func TestIsFirstFrame(t *testing.T) {
	assert.True(t, IsFirstFrame([]byte{0xC0, 0x2B}))
	assert.False(t, IsFirstFrame([]byte{0xC1, 0x00}))
	assert.False(t, IsFirstFrame(nil))
}
