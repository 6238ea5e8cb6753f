package modes

// DecodeAC13 extracts a barometric altitude in feet from a 13-bit AC field
// (Q-bit / Gillham encoded), returning ok=false when the field carries no
// usable altitude.
func DecodeAC13(field uint32) (alt int32, ok bool) {
	if field == 0 || field&0x0040 != 0 { // M-bit set: metric, unsupported
		return 0, false
	}

	if field&0x0010 != 0 { // Q-bit: 25ft quanta
		n := ((field & 0x1F80) >> 2) | ((field & 0x0020) >> 1) | (field & 0x000F)
		return int32(n)*25 - 1000, true
	}

	// Gillham code path.
	if field&0x1500 == 0 {
		return 0, false // illegal gillham pattern
	}

	c1 := field & 0x1000 != 0
	a1 := field & 0x0800 != 0
	c2 := field & 0x0400 != 0
	a2 := field & 0x0200 != 0
	c4 := field & 0x0100 != 0
	a4 := field & 0x0080 != 0
	b1 := field & 0x0020 != 0
	d1 := field & 0x0010 != 0
	b2 := field & 0x0008 != 0
	d2 := field & 0x0004 != 0
	b4 := field & 0x0002 != 0
	d4 := field & 0x0001 != 0

	h := xorDecode(
		[]bool{c1, c2, c4},
		[]uint32{7, 3, 1},
	)
	if h&5 == 5 {
		h ^= 2
	}
	if h > 5 {
		return 0, false
	}

	f := xorDecode(
		[]bool{d1, d2, d4, a1, a2, a4, b1, b2, b4},
		[]uint32{0x1FF, 0xFF, 0x7F, 0x3F, 0x1F, 0xF, 0x7, 0x3, 0x1},
	)
	if f&1 != 0 {
		h = 6 - h
	}

	altitude := int32(f)*500 + int32(h)*100 - 1300
	if altitude < -1200 {
		return 0, false
	}
	return altitude, true
}

// DecodeAC12 extracts altitude from the 12-bit AC field used in DF17/18
// extended squitter airborne-position messages by widening to 13 bits and
// running the AC13 path.
func DecodeAC12(field uint32) (int32, bool) {
	widened := ((field & 0x0FC0) << 1) | (field & 0x003F)
	return DecodeAC13(widened)
}

// xorDecode implements the standard Gillham-code inversion: the binary
// value is the XOR of a fixed mask for every bit position that is set.
func xorDecode(bits []bool, masks []uint32) uint32 {
	var v uint32
	for i, set := range bits {
		if !set {
			continue
		}
		v ^= masks[i]
	}
	return v
}
