// Package filter drops CAN frames and decoded messages that configuration
// says this daemon should ignore. Filtering happens in two stages: a
// cheap identifier check before fast-packet reassembly, and a post-decode
// check for content-based rules.
package filter

import (
	"fmt"

	"github.com/oceanrelay/marinetelemetryd/internal/ident"
	"github.com/oceanrelay/marinetelemetryd/internal/message"
	"go.uber.org/zap"
)

const (
	minFilterablePGN = 50000
	maxFilterablePGN = 200000
	minSource        = 1
	maxSource        = 254
)

// SourceFilter holds the pgn -> allowed source map. A PGN present in the
// map accepts only its listed source; a PGN absent accepts every source.
type SourceFilter struct {
	pgnSource map[uint32]uint8
}

// New builds a SourceFilter from a raw PGN->source map, dropping any entry
// outside the valid PGN/source ranges with a logged warning rather than
// failing config load outright.
func New(raw map[uint32]uint8, log *zap.Logger) *SourceFilter {
	f := &SourceFilter{pgnSource: make(map[uint32]uint8, len(raw))}
	for pgn, source := range raw {
		if pgn < minFilterablePGN || pgn > maxFilterablePGN {
			if log != nil {
				log.Warn("dropping source filter entry: pgn out of range", zap.Uint32("pgn", pgn))
			}
			continue
		}
		if source < minSource || source > maxSource {
			if log != nil {
				log.Warn("dropping source filter entry: source out of range", zap.Uint32("pgn", pgn), zap.Uint8("source", source))
			}
			continue
		}
		f.pgnSource[pgn] = source
	}
	return f
}

// ShouldAccept reports whether a message with this PGN and source should
// be accepted, i.e. there's no filter for the PGN, or the source matches.
func (f *SourceFilter) ShouldAccept(pgn uint32, source uint8) bool {
	allowed, ok := f.pgnSource[pgn]
	if !ok {
		return true
	}
	return allowed == source
}

// ShouldProcessByID is applied immediately after identifier decode, before
// fast-packet reassembly, to drop uninteresting traffic cheaply.
func ShouldProcessByID(f *SourceFilter, id ident.Identifier) bool {
	return f.ShouldAccept(id.PGN, id.Source)
}

// ShouldProcessMessage is applied after full decode. It is currently a
// pass-through, reserved for content-based filtering (per-instance or
// per-field rules the identifier alone can't express).
func ShouldProcessMessage(f *SourceFilter, msg message.Message) bool {
	_ = f
	_ = msg
	return true
}

func (f *SourceFilter) String() string {
	return fmt.Sprintf("SourceFilter{%d entries}", len(f.pgnSource))
}
