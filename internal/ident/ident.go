// Package ident decodes the 29-bit extended CAN identifier used by NMEA2000
// into its priority, PGN and source address components.
package ident

// AddressGlobal is the broadcast destination address (0xff).
const AddressGlobal uint8 = 0xff

// Identifier is the decomposed form of a 29-bit extended CAN identifier,
// per the ISO 11783 PDU1/PDU2 layout.
type Identifier struct {
	Priority uint8
	PGN      uint32
	Source   uint8
}

// Decode decomposes a 29-bit extended CAN identifier into an Identifier.
// Bits above 29 are expected to already be masked off by the caller (the
// socketCAN EFF/RTR/ERR flag bits live there); Decode does not validate this
// and a caller passing a wider value is a programming error, not a runtime one.
func Decode(canID uint32) Identifier {
	priority := uint8((canID >> 26) & 0x7) // bits 26-28
	source := uint8(canID)                 // bits 0-7

	ps := uint8(canID >> 8)         // bits 8-15, PDU-specific
	pduFormat := uint8(canID >> 16) // bits 16-23
	dataPage := uint8(canID>>24) & 0x3

	pgn := uint32(dataPage)<<16 | uint32(pduFormat)<<8
	if pduFormat >= 240 {
		// PDU2: broadcast, PDU-specific extends the PGN.
		pgn |= uint32(ps)
	}
	// PDU1 (pduFormat < 240): ps is a destination address, not part of the PGN.

	return Identifier{
		Priority: priority,
		PGN:      pgn,
		Source:   source,
	}
}
