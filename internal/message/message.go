// Package message decodes NMEA2000 Parameter Group Number payloads into
// typed Go values. Each supported PGN has its own decode function; decoding
// never panics on short input and never fails loudly on out-of-range sentinel
// values — those become an absent optional field instead.
package message

import "fmt"

// PGN numbers this package knows how to decode. Anything else surfaces as
// Unknown so the caller can still see that a frame arrived.
const (
	PGNSystemTime           uint32 = 126992
	PGNVesselHeading        uint32 = 127250
	PGNRateOfTurn           uint32 = 127251
	PGNAttitude             uint32 = 127257
	PGNEngineRapidUpdate    uint32 = 127488
	PGNSpeed                uint32 = 128259
	PGNWaterDepth           uint32 = 128267
	PGNPositionRapidUpdate  uint32 = 129025
	PGNCOGSOGRapidUpdate    uint32 = 129026
	PGNGNSSPosition         uint32 = 129029
	PGNTimeDate             uint32 = 129033
	PGNWindData             uint32 = 130306
	PGNTemperature          uint32 = 130312
	PGNHumidity             uint32 = 130313
	PGNActualPressure       uint32 = 130314
)

// Message is implemented by every decoded PGN variant, plus Unknown.
type Message interface {
	// PGN returns the Parameter Group Number this message was decoded from.
	PGN() uint32
}

// Unknown is emitted for frames whose PGN is not in the supported set, or
// whose decoder rejected the buffer as too short. It is not an error: the
// reassembler and monitors treat it as "nothing to do here", never a fault.
type Unknown struct {
	RawPGN uint32
	Data   []byte
}

func (m Unknown) PGN() uint32 { return m.RawPGN }

// Envelope carries the identifier fields alongside the decoded variant, the
// shape the daemon hands to its OnMessage hook (--dump mode).
type Envelope struct {
	PGN      uint32
	Source   uint8
	Priority uint8
	Message  Message
}

// Decode dispatches on pgn to the matching decoder. An unsupported PGN and
// a too-short buffer for a supported one both come back as Unknown — the
// raw bytes ride along either way so the caller can still log them.
func Decode(pgn uint32, source uint8, data []byte) Message {
	switch pgn {
	case PGNSystemTime:
		if m, ok := DecodeSystemTime(data); ok {
			m.Source = source
			return m
		}
	case PGNVesselHeading:
		if m, ok := DecodeVesselHeading(data); ok {
			m.Source = source
			return m
		}
	case PGNRateOfTurn:
		if m, ok := DecodeRateOfTurn(data); ok {
			m.Source = source
			return m
		}
	case PGNAttitude:
		if m, ok := DecodeAttitude(data); ok {
			m.Source = source
			return m
		}
	case PGNEngineRapidUpdate:
		if m, ok := DecodeEngineRapidUpdate(data); ok {
			m.Source = source
			return m
		}
	case PGNSpeed:
		if m, ok := DecodeSpeed(data); ok {
			m.Source = source
			return m
		}
	case PGNWaterDepth:
		if m, ok := DecodeWaterDepth(data); ok {
			m.Source = source
			return m
		}
	case PGNPositionRapidUpdate:
		if m, ok := DecodePositionRapidUpdate(data); ok {
			m.Source = source
			return m
		}
	case PGNCOGSOGRapidUpdate:
		if m, ok := DecodeCOGSOGRapidUpdate(data); ok {
			m.Source = source
			return m
		}
	case PGNGNSSPosition:
		if m, ok := DecodeGNSSPosition(data); ok {
			m.Source = source
			return m
		}
	case PGNTimeDate:
		if m, ok := DecodeTimeDate(data); ok {
			m.Source = source
			return m
		}
	case PGNWindData:
		if m, ok := DecodeWindData(data); ok {
			m.Source = source
			return m
		}
	case PGNTemperature:
		if m, ok := DecodeTemperature(data); ok {
			m.Source = source
			return m
		}
	case PGNHumidity:
		if m, ok := DecodeHumidity(data); ok {
			m.Source = source
			return m
		}
	case PGNActualPressure:
		if m, ok := DecodeActualPressure(data); ok {
			m.Source = source
			return m
		}
	}
	return Unknown{RawPGN: pgn, Data: data}
}

func (e Envelope) String() string {
	return fmt.Sprintf("pgn=%d source=%d priority=%d msg=%T", e.PGN, e.Source, e.Priority, e.Message)
}
