// Package can wraps a Linux SocketCAN raw socket for NMEA2000 ingress:
// 29-bit extended identifiers, 8-byte classic CAN frames, a bounded
// receive timeout so the main loop's housekeeping can run under bus
// silence.
package can

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const (
	canRaw = 1

	idEFFFlag = uint32(1 << 31) // extended 29-bit identifier
	idRTRFlag = uint32(1 << 30) // remote transmission request
	idERRFlag = uint32(1 << 29) // error frame
	idMask    = uint32(1<<29) - 1
)

// ErrReadTimeout is returned by ReadFrame when the bounded poll elapses
// with no frame available — this is normal and not a connectivity fault.
var ErrReadTimeout = errors.New("can: read timeout")

// Frame is one received classic CAN frame: a 29-bit extended identifier
// plus up to 8 bytes of payload.
type Frame struct {
	ID     uint32 // 29-bit extended identifier, EFF/RTR/ERR bits already stripped
	Length uint8
	Data   [8]byte
	At     time.Time
}

// Conn is an open SocketCAN raw socket bound to one network interface.
type Conn struct {
	fd  int
	now func() time.Time
}

// Open binds a raw CAN socket to the named interface (e.g. "can0").
func Open(interfaceName string) (*Conn, error) {
	ifi, err := net.InterfaceByName(interfaceName)
	if err != nil {
		return nil, fmt.Errorf("can: interface %q: %w", interfaceName, err)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, canRaw)
	if err != nil {
		return nil, fmt.Errorf("can: socket: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: ifi.Index}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("can: bind %q: %w", interfaceName, err)
	}

	return &Conn{fd: fd, now: time.Now}, nil
}

// SetReadTimeout bounds how long ReadFrame blocks with no data, via
// SO_RCVTIMEO — this is the main loop's 500ms housekeeping tick.
func (c *Conn) SetReadTimeout(timeout time.Duration) error {
	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(c.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return fmt.Errorf("can: set read timeout: %w", err)
	}
	return nil
}

// ReadFrame blocks for up to the configured read timeout for one frame.
// ErrReadTimeout on expiry is the expected "no frame" outcome; any other
// error should trigger a reconnect.
func (c *Conn) ReadFrame() (Frame, error) {
	raw := make([]byte, 16)
	_, err := unix.Read(c.fd, raw)
	if err != nil {
		if isContinuable(err) {
			return Frame{}, ErrReadTimeout
		}
		return Frame{}, fmt.Errorf("can: read: %w", err)
	}

	canID := binary.LittleEndian.Uint32(raw[0:4])
	if canID&idRTRFlag != 0 {
		return Frame{}, fmt.Errorf("can: received RTR frame")
	}
	if canID&idERRFlag != 0 {
		return Frame{}, fmt.Errorf("can: received error frame")
	}

	f := Frame{ID: canID & idMask, Length: raw[4], At: c.now()}
	copy(f.Data[:], raw[8:8+int(f.Length)])
	return f, nil
}

func isContinuable(err error) bool {
	return err == syscall.EWOULDBLOCK || err == syscall.EINTR
}

// Close releases the socket.
func (c *Conn) Close() error {
	return unix.Close(c.fd)
}
