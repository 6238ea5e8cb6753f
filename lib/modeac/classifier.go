// Package modeac disambiguates legacy 2-byte Mode A (squawk) and Mode C
// (altitude) replies, which share an identical wire representation.
package modeac

import "time"

const (
	minCount       = 3
	commitInterval = 10 * time.Second
)

// Classification is the classifier's verdict for one observed 2-byte reply.
type Classification int

const (
	ModeA Classification = iota
	ModeC
	Ambiguous
)

type counter struct {
	committed  int
	inProgress int
}

// Classifier holds the per-ReaderState statistical state used to tell Mode A
// squawks apart from Mode C altitude codes. It is not safe for concurrent
// use; one instance belongs to exactly one reader.
type Classifier struct {
	modeACounts map[uint16]*counter
	ambigCounts map[uint16]*counter
	lastCommit  time.Time
}

// NewClassifier returns a ready-to-use classifier. now seeds the first
// commit window; callers should pass the same clock they pass to Classify.
func NewClassifier(now time.Time) *Classifier {
	return &Classifier{
		modeACounts: make(map[uint16]*counter),
		ambigCounts: make(map[uint16]*counter),
		lastCommit:  now,
	}
}

// Classify reinterprets the raw 2-byte Mode A/C reply into its canonical
// Gillham-field form and returns a verdict. now drives the periodic 10s
// commit of in-progress counts into committed counts.
func (c *Classifier) Classify(raw uint16, now time.Time) Classification {
	if now.Sub(c.lastCommit) >= commitInterval {
		c.commit()
		c.lastCommit = now
	}

	canonical := canonicalize(raw)

	if isEmergencyCode(raw) {
		return ModeA
	}

	cGroup := cGroupOf(canonical)
	dGroup := dGroupOf(canonical)

	if cGroup == 0 || cGroup == 5 || cGroup == 7 || isDGroupModeA(dGroup) {
		cnt := c.bump(c.modeACounts, canonical)
		if cnt.committed == 0 || cnt.committed > minCount {
			return ModeA
		}
		return Ambiguous
	}

	ambig := c.bump(c.ambigCounts, canonical)
	if ambig.committed > minCount {
		if alt, ok := ModeAToModeC(canonical); ok && alt >= 16700 && alt <= 48900 {
			return ModeC
		}
		return ModeA
	}
	return Ambiguous
}

func (c *Classifier) bump(m map[uint16]*counter, key uint16) *counter {
	cnt, ok := m[key]
	if !ok {
		cnt = &counter{}
		m[key] = cnt
	}
	cnt.inProgress++
	return cnt
}

func (c *Classifier) commit() {
	for _, cnt := range c.modeACounts {
		cnt.committed = cnt.inProgress
		cnt.inProgress = 0
	}
	for _, cnt := range c.ambigCounts {
		cnt.committed = cnt.inProgress
		cnt.inProgress = 0
	}
}

func isEmergencyCode(raw uint16) bool {
	switch raw & 0x1FFF {
	case 0x7500, 0x7600, 0x7700:
		return true
	}
	return false
}

// Gillham field bit layout shared with modes.DecodeAC13: C1/A1/C2/A2/C4/A4
// occupy the top six of thirteen bits, B1/D1/B2/D2/B4/D4 the bottom six.
const (
	bitC1 = 0x1000
	bitA1 = 0x0800
	bitC2 = 0x0400
	bitA2 = 0x0200
	bitC4 = 0x0100
	bitA4 = 0x0080
	bitB1 = 0x0020
	bitD1 = 0x0010
	bitB2 = 0x0008
	bitD2 = 0x0004
	bitB4 = 0x0002
	bitD4 = 0x0001
)

// CanonicalForm repositions a raw on-wire Mode A/C reply into the 13-bit
// Gillham field layout accepted by ModeAToModeC, without running it through
// the statistical A-vs-C classifier.
func CanonicalForm(raw uint16) uint16 { return canonicalize(raw) }

// canonicalize repositions the on-wire Mode A/C reply bits (transmitted as
// C1 A1 C2 A2 C4 A4 X B1 D1 B2 D2 B4 D4, MSB first) into the 13-bit Gillham
// field layout used throughout this module and in modes.DecodeAC13.
func canonicalize(raw uint16) uint16 {
	var v uint16
	set := func(wireBit uint, canonBit uint16) {
		if raw&(1<<wireBit) != 0 {
			v |= canonBit
		}
	}
	set(12, bitC1)
	set(11, bitA1)
	set(10, bitC2)
	set(9, bitA2)
	set(8, bitC4)
	set(7, bitA4)
	set(5, bitB1)
	set(4, bitD1)
	set(3, bitB2)
	set(2, bitD2)
	set(1, bitB4)
	set(0, bitD4)
	return v
}

// cGroupOf extracts the 3-bit C1/C2/C4 group from the canonical encoding.
func cGroupOf(canonical uint16) uint8 {
	var v uint8
	if canonical&bitC1 != 0 {
		v |= 4
	}
	if canonical&bitC2 != 0 {
		v |= 2
	}
	if canonical&bitC4 != 0 {
		v |= 1
	}
	return v
}

// dGroupOf extracts the 3-bit D1/D2/D4 group from the canonical encoding.
func dGroupOf(canonical uint16) uint8 {
	var v uint8
	if canonical&bitD1 != 0 {
		v |= 4
	}
	if canonical&bitD2 != 0 {
		v |= 2
	}
	if canonical&bitD4 != 0 {
		v |= 1
	}
	return v
}

func isDGroupModeA(d uint8) bool {
	switch d {
	case 1, 2, 3, 5, 6, 7:
		return true
	}
	return false
}

// ModeAToModeC attempts the classic Mode-A bit-pattern to Mode-C altitude
// conversion used when a reply is statistically more likely an altitude
// report than a squawk, given a canonical Gillham-layout field.
func ModeAToModeC(canonical uint16) (int32, bool) {
	a := uint32(canonical)
	if (a&0xFFFF8889) != 0 || (a&0x000000F0) == 0 {
		return 0, false
	}

	h := xorGroup(
		[]bool{a&bitC1 != 0, a&bitC2 != 0, a&bitC4 != 0},
		[]uint32{7, 3, 1},
	)
	if h&5 == 5 {
		h ^= 2
	}
	if h > 5 {
		return 0, false
	}

	f := xorGroup(
		[]bool{a&bitD1 != 0, a&bitD2 != 0, a&bitD4 != 0, a&bitA1 != 0, a&bitA2 != 0, a&bitA4 != 0, a&bitB1 != 0, a&bitB2 != 0, a&bitB4 != 0},
		[]uint32{0x1FF, 0xFF, 0x7F, 0x3F, 0x1F, 0xF, 0x7, 0x3, 0x1},
	)
	if f&1 != 0 {
		h = 6 - h
	}

	alt := int32(f)*500 + int32(h)*100 - 1300
	return alt, true
}

func xorGroup(bits []bool, masks []uint32) uint32 {
	var v uint32
	for i, set := range bits {
		if set {
			v ^= masks[i]
		}
	}
	return v
}
