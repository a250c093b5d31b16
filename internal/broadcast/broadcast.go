// Package broadcast rebroadcasts decoded NMEA2000 messages as JSON over
// UDP, best-effort: a dropped datagram costs nothing but that datagram.
package broadcast

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/oceanrelay/marinetelemetryd/internal/message"
	"github.com/rs/xid"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// setBroadcast enables SO_BROADCAST on the UDP socket's file descriptor so
// writes to a subnet broadcast address (x.x.x.255) are permitted.
func setBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("syscall conn: %w", err)
	}
	var setErr error
	err = raw.Control(func(fd uintptr) {
		setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return setErr
}

// maxLoggedErrors caps how many send errors get logged before the
// broadcaster goes quiet about them; an unreachable destination would
// otherwise flood the log at bus rate.
const maxLoggedErrors = 10

// envelope is the wire shape of one broadcast message.
type envelope struct {
	MessageType string      `json:"message_type"`
	PGN         uint32      `json:"pgn"`
	Source      uint8       `json:"source"`
	Priority    uint8       `json:"priority"`
	Data        interface{} `json:"data"`
}

// Broadcaster sends a JSON envelope for each decoded message to a
// configured UDP destination. Sends never block the caller and never
// return an error the main loop must act on — failures are counted and
// logged with a correlation id, then the loop continues.
type Broadcaster struct {
	mu          sync.Mutex
	conn        *net.UDPConn
	destination string
	enabled     bool
	errorCount  int
	msgCount    int
	log         *zap.Logger
}

// New dials the destination eagerly; dial failure disables broadcasting
// rather than failing daemon startup — UDP telemetry rebroadcast is an
// optional feature.
func New(destination string, enabled bool, log *zap.Logger) *Broadcaster {
	b := &Broadcaster{destination: destination, enabled: enabled, log: log}
	if !enabled {
		return b
	}
	if err := b.dial(); err != nil {
		if log != nil {
			log.Warn("broadcast: initial dial failed, disabling", zap.Error(err), zap.String("destination", destination))
		}
		b.enabled = false
	}
	return b
}

func (b *Broadcaster) dial() error {
	addr, err := net.ResolveUDPAddr("udp", b.destination)
	if err != nil {
		return fmt.Errorf("broadcast: resolve %q: %w", b.destination, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("broadcast: dial %q: %w", b.destination, err)
	}
	// A destination ending in .255 is a subnet broadcast address; the
	// kernel requires SO_BROADCAST before it will accept such a write.
	if strings.Contains(b.destination, ".255") {
		if err := setBroadcast(conn); err != nil {
			conn.Close()
			return fmt.Errorf("broadcast: enable broadcast mode: %w", err)
		}
	}
	b.conn = conn
	return nil
}

// Send encodes msg and fires it at the configured destination. Errors are
// swallowed past the logging cap — this is deliberately not part of the
// main loop's error path.
func (b *Broadcaster) Send(pgn uint32, source, priority uint8, msg message.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.enabled || b.conn == nil {
		return
	}

	payload, err := json.Marshal(envelope{
		MessageType: fmt.Sprintf("%T", msg),
		PGN:         pgn,
		Source:      source,
		Priority:    priority,
		Data:        msg,
	})
	if err != nil {
		b.recordError("marshal", err)
		return
	}

	if _, err := b.conn.Write(payload); err != nil {
		b.recordError("write", err)
		return
	}
	b.msgCount++
}

func (b *Broadcaster) recordError(stage string, err error) {
	b.errorCount++
	if b.log != nil && b.errorCount <= maxLoggedErrors {
		b.log.Warn("broadcast: send failed",
			zap.String("stage", stage), zap.Error(err),
			zap.String("correlation_id", xid.New().String()),
			zap.Int("error_count", b.errorCount),
		)
	}
}

// Close releases the underlying socket, if any.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}

// Stats returns the running send/error counters, for the health endpoint.
func (b *Broadcaster) Stats() (messages, errors int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.msgCount, b.errorCount
}
