package message

import "encoding/binary"

// The sentinel values NMEA2000 reserves to mean "no data available", per
// https://www.nmea.org/Assets/2000-explained-white-paper.pdf page 14. For an
// unsigned field the top codepoint is the sentinel; for a signed field it is
// the most positive value.
const (
	sentinelU8  = 0xff
	sentinelI8  = 0x7f
	sentinelU16 = 0xffff
	sentinelI16 = 0x7fff
	sentinelU32 = 0xffffffff
	sentinelI32 = 0x7fffffff
)

// fits reports whether data has at least n bytes starting at offset.
func fits(data []byte, offset, n int) bool {
	return len(data) >= offset+n
}

func readU8(data []byte, offset int) (uint8, bool) {
	if !fits(data, offset, 1) {
		return 0, false
	}
	v := data[offset]
	if v == sentinelU8 {
		return 0, false
	}
	return v, true
}

func readI8(data []byte, offset int) (int8, bool) {
	if !fits(data, offset, 1) {
		return 0, false
	}
	v := int8(data[offset])
	if v == sentinelI8 {
		return 0, false
	}
	return v, true
}

func readU16(data []byte, offset int) (uint16, bool) {
	if !fits(data, offset, 2) {
		return 0, false
	}
	v := binary.LittleEndian.Uint16(data[offset : offset+2])
	if v == sentinelU16 {
		return 0, false
	}
	return v, true
}

func readI16(data []byte, offset int) (int16, bool) {
	if !fits(data, offset, 2) {
		return 0, false
	}
	v := int16(binary.LittleEndian.Uint16(data[offset : offset+2]))
	if v == sentinelI16 {
		return 0, false
	}
	return v, true
}

func readU32(data []byte, offset int) (uint32, bool) {
	if !fits(data, offset, 4) {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(data[offset : offset+4])
	if v == sentinelU32 {
		return 0, false
	}
	return v, true
}

func readI32(data []byte, offset int) (int32, bool) {
	if !fits(data, offset, 4) {
		return 0, false
	}
	v := int32(binary.LittleEndian.Uint32(data[offset : offset+4]))
	if v == sentinelI32 {
		return 0, false
	}
	return v, true
}

func readI64(data []byte, offset int) (int64, bool) {
	if !fits(data, offset, 8) {
		return 0, false
	}
	v := int64(binary.LittleEndian.Uint64(data[offset : offset+8]))
	if v == 0x7fffffffffffffff {
		return 0, false
	}
	return v, true
}

func readU32Dur01ms(data []byte, offset int) (uint32, bool) {
	// time-since-midnight fields are encoded in units of 0.0001s (0.1ms)
	return readU32(data, offset)
}

// f64ptr and u8ptr build an optional pointer from a (value, ok) pair: nil
// when ok is false, otherwise a pointer to value, unscaled.
func f64ptr(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

func u8ptr(v uint8, ok bool) *uint8 {
	if !ok {
		return nil
	}
	return &v
}

const (
	rad      = 1e-4 // heading/angle LSB, radians
	mpsLSB   = 1e-2
	degLSB32 = 1e-7
	degLSB64 = 1e-16
)
