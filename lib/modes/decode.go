package modes

// Decode parses a raw (timestamp, signal, body) tuple into a Message. body
// must be 2 (Mode A/C), 7 (Mode S short) or 14 (Mode S long) bytes; any
// other length yields Valid=false with no further fields populated.
func Decode(timestamp uint64, signal uint8, body []byte) *Message {
	m := newMessage()
	m.Timestamp = timestamp
	m.Signal = signal
	m.Data = append(m.Data[:0], body...)

	if len(body) == 2 {
		m.DF = MODEAC
		m.Address = uint32(body[0])<<8 | uint32(body[1])
		m.HasAddress = true
		m.Valid = true
		return m
	}

	df := int((body[0] >> 3) & 31)
	m.DF = df

	lengthOK := (df < 16 && len(body) == 7) || (df >= 16 && len(body) == 14)
	if !lengthOK {
		m.Valid = false
		return m
	}

	crc := Residual(body)
	m.CRCResidual = crc
	m.HasCRC = true

	switch {
	case df == 0 || df == 4 || df == 16 || df == 20:
		m.Valid = true
		m.Address = crc
		m.HasAddress = true
		decodeAltitude13(m, body)

	case df == 5 || df == 21 || df == 24:
		m.Valid = true
		m.Address = crc
		m.HasAddress = true

	case df == 11:
		m.Valid = crc&^uint32(0x7F) == 0
		if m.Valid {
			m.Address = addressFromBody(body)
			m.HasAddress = true
		}

	case df == 17 || df == 18:
		m.Valid = crc == 0
		if m.Valid {
			m.Address = addressFromBody(body)
			m.HasAddress = true
			decodeExtendedSquitter(m, body)
		}

	default:
		m.Valid = false
	}

	return m
}

func addressFromBody(body []byte) uint32 {
	return uint32(body[1])<<16 | uint32(body[2])<<8 | uint32(body[3])
}

func decodeAltitude13(m *Message, body []byte) {
	field := uint32(body[2])<<8 | uint32(body[3])
	field &= 0x1FFF
	if alt, ok := DecodeAC13(field); ok {
		m.Altitude = alt
		m.HasAltitude = true
	}
}

// decodeExtendedSquitter handles DF17/18 airborne-position extended
// squitters: metype 9..18 and 20..21 carry a 12-bit AC field plus CPR
// parity; NUCp is derived from metype.
func decodeExtendedSquitter(m *Message, body []byte) {
	metype := int(body[4] >> 3)
	isAirbornePosition := (metype >= 9 && metype <= 18) || metype == 20 || metype == 21
	if !isAirbornePosition {
		return
	}

	if metype <= 18 {
		m.NUC = 18 - metype
	} else {
		m.NUC = 29 - metype
	}

	if body[6]&0x04 != 0 {
		m.OddCPR = true
	} else {
		m.EvenCPR = true
	}

	latZero := body[7] == 0 && body[8]&0x7F == 0
	lonZero := body[9] == 0 && body[10] == 0
	if latZero || lonZero {
		m.Valid = false
		return
	}

	acField := (uint32(body[5])<<4 | uint32(body[6])>>4) & 0x0FFF
	if alt, ok := DecodeAC12(acField); ok {
		m.Altitude = alt
		m.HasAltitude = true
	}
}
