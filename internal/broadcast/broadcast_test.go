package broadcast

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/oceanrelay/marinetelemetryd/internal/message"
	"github.com/stretchr/testify/assert"
)

func TestSendDeliversEnvelope(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	assert.NoError(t, err)
	defer listener.Close()

	b := New(listener.LocalAddr().String(), true, nil)
	defer b.Close()

	b.Send(126992, 5, 3, message.SystemTime{SID: 1})

	buf := make([]byte, 1024)
	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := listener.ReadFromUDP(buf)
	assert.NoError(t, err)

	var got envelope
	assert.NoError(t, json.Unmarshal(buf[:n], &got))
	assert.EqualValues(t, 126992, got.PGN)
	assert.EqualValues(t, 5, got.Source)
	assert.EqualValues(t, 3, got.Priority)
}

func TestSendNoopWhenDisabled(t *testing.T) {
	b := New("127.0.0.1:0", false, nil)
	b.Send(1, 1, 1, message.SystemTime{})
	msgs, errs := b.Stats()
	assert.Zero(t, msgs)
	assert.Zero(t, errs)
}

func TestDialFailureDisablesBroadcasting(t *testing.T) {
	b := New("not a valid address", true, nil)
	assert.False(t, b.enabled)
}
