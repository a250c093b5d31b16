// Package fastpacket reassembles NMEA2000 fast-packet frame sequences,
// PGNs whose payload exceeds the 8-byte single-frame limit, into a single
// logical byte buffer keyed by (PGN, source).
package fastpacket

import (
	"sync"
	"time"
)

// MaxSize is the largest payload a fast-packet sequence can carry: 6 bytes
// in the first frame plus 7 bytes in each of up to 31 further frames.
const MaxSize = 6 + 31*7

// staleness is how long a partially-received sequence is kept before a
// stale buffer is discarded rather than appended to.
const staleness = 750 * time.Millisecond

// maxBuffers bounds the number of concurrently in-flight sequences. A
// misbehaving or noisy bus should not grow this without limit; the oldest
// buffer is evicted to make room for a new key past this cap.
const maxBuffers = 64

// fastPacketPGNs is the closed list of PGNs that use the fast-packet
// protocol, per NMEA2000 convention.
var fastPacketPGNs = map[uint32]struct{}{
	126996: {}, 127233: {}, 127237: {}, 127489: {}, 127493: {}, 127505: {},
	128275: {}, 129029: {}, 129038: {}, 129039: {}, 129540: {}, 129794: {},
	129809: {}, 129810: {},
}

// IsFastPacketPGN reports whether pgn uses the fast-packet protocol. A
// frame only belongs to reassembly if its PGN is in this set AND its raw
// data length is exactly 8 bytes; the latter check is the caller's job,
// since it depends on the frame, not just the PGN.
func IsFastPacketPGN(pgn uint32) bool {
	_, ok := fastPacketPGNs[pgn]
	return ok
}

type key struct {
	pgn    uint32
	source uint8
}

type sequence struct {
	key                 key
	counter             uint8
	length              uint8
	completeFramesMask  uint32
	receivedFramesMask  uint32
	lastReceivedAt      time.Time
	data                [MaxSize]byte
}

func (s *sequence) reset() {
	s.counter = 0
	s.length = 0
	s.completeFramesMask = 0
	s.receivedFramesMask = 0
	s.lastReceivedAt = time.Time{}
}

// append folds one fast-packet frame's payload into the sequence. data is
// the CAN frame payload (up to 8 bytes), unaltered by the caller. Returns
// true once the sequence has received every frame it expects.
func (s *sequence) append(data []byte, now time.Time) bool {
	if len(data) < 2 {
		return false
	}
	counter := data[0] >> 5
	frameNr := data[0] & 0x1f
	frameMask := uint32(1) << frameNr

	if s.receivedFramesMask&frameMask != 0 {
		return s.completeFramesMask != 0 && s.completeFramesMask == s.receivedFramesMask
	}
	if s.receivedFramesMask == 0 {
		s.counter = counter
	}
	s.receivedFramesMask |= frameMask
	s.lastReceivedAt = now

	if frameNr == 0 {
		s.length = data[1]
		frameCount := uint8(1)
		if s.length > 6 {
			frameCount += (s.length - 6 + 6) / 7
		}
		s.completeFramesMask = ^(uint32(0xFFFFFFFF) << frameCount)
		copy(s.data[:6], data[2:])
	} else {
		start := 6 + int(frameNr-1)*7
		end := start + len(data) - 1
		if end > len(s.data) {
			end = len(s.data)
		}
		copy(s.data[start:end], data[1:])
	}

	return s.completeFramesMask != 0 && s.completeFramesMask == s.receivedFramesMask
}

func (s *sequence) bytes() []byte {
	out := make([]byte, s.length)
	copy(out, s.data[:s.length])
	return out
}

// Reassembler buffers in-flight fast-packet sequences keyed by (PGN,
// source) and emits the reassembled payload once a sequence completes.
// At most one sequence is live per key: a new first frame for a key that
// already has a live sequence discards the old one, per the NMEA2000
// assumption that a source never interleaves two sends of the same PGN.
type Reassembler struct {
	mu      sync.Mutex
	live    map[key]*sequence
	order   []key // insertion order, oldest first, for eviction
	pool    sync.Pool
	now     func() time.Time
}

func New() *Reassembler {
	return &Reassembler{
		live: make(map[key]*sequence),
		pool: sync.Pool{New: func() any { return &sequence{} }},
		now:  time.Now,
	}
}

// IsFirstFrame reports whether a fast-packet frame payload is the start of
// a new sequence (5-bit frame counter == 0).
func IsFirstFrame(data []byte) bool {
	return len(data) >= 1 && data[0]&0x1f == 0
}

// Append folds a fast-packet frame into the sequence for (pgn, source). On
// completion it returns the reassembled payload and true; otherwise nil
// and false. A too-short frame payload is silently dropped.
func (r *Reassembler) Append(pgn uint32, source uint8, data []byte) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{pgn: pgn, source: source}
	now := r.now()

	seq, exists := r.live[k]
	if exists && (now.Sub(seq.lastReceivedAt) > staleness || IsFirstFrame(data)) {
		// Stale in-flight sequence, or a fresh first frame for a key that
		// already has one in flight: discard whatever was buffered.
		seq.reset()
	}
	if !exists {
		seq = r.pool.Get().(*sequence)
		seq.reset()
		seq.key = k
		r.live[k] = seq
		r.order = append(r.order, k)
		r.evictIfOverCap()
	}

	complete := seq.append(data, now)
	if !complete {
		return nil, false
	}

	out := seq.bytes()
	delete(r.live, k)
	r.removeFromOrder(k)
	r.pool.Put(seq)
	return out, true
}

func (r *Reassembler) evictIfOverCap() {
	for len(r.order) > maxBuffers {
		oldest := r.order[0]
		r.order = r.order[1:]
		if seq, ok := r.live[oldest]; ok {
			delete(r.live, oldest)
			r.pool.Put(seq)
		}
	}
}

func (r *Reassembler) removeFromOrder(k key) {
	for i, ok := range r.order {
		if ok == k {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// Len reports the number of currently in-flight sequences. Exposed for
// tests and for the Prometheus gauge the main loop maintains.
func (r *Reassembler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}
