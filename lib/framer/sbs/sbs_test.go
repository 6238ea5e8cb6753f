package sbs

import "testing"

func TestWiden_MidnightRollover(t *testing.T) {
	f := &Framer{lastTimestamp: 0x0000000000FFFFF0}
	got := f.widen(0x000010)
	want := uint64(0x0000000001000010)
	if got != want {
		t.Errorf("widen() = %#x, want %#x", got, want)
	}
}

func TestWiden_Monotonic(t *testing.T) {
	f := New()
	a := f.widen(100)
	b := f.widen(200)
	if b <= a {
		t.Errorf("expected widened timestamp to increase: %d -> %d", a, b)
	}
}

func TestFeed_ModeSShort(t *testing.T) {
	// A Mode S short fixture borrowed from the Beast corpus, repackaged as
	// an SBS short (7-byte) record: subtype=0x07, reserved=0x00, ts=0, body.
	// The trailing 2-byte CRC trailer is arbitrary: recoverCRC rewrites
	// body's own last 3 bytes regardless, and DF dispatch only reads body[0].
	body := []byte{0x20, 0x00, 0x17, 0x30, 0xE3, 0x07, 0x9D}
	payload := []byte{subtypeShort, 0x00, 0x00, 0x00, 0x00}
	payload = append(payload, body...)
	crcTrailer := []byte{0x00, 0x00}

	raw := []byte{dle, stx}
	raw = append(raw, escapeBytes(payload)...)
	raw = append(raw, dle, etx)
	raw = append(raw, escapeBytes(crcTrailer)...)

	f := New()
	res, err := f.Feed(raw, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(res.Messages))
	}
	if res.Messages[0].DF != 4 {
		t.Errorf("DF = %d, want 4", res.Messages[0].DF)
	}
}

func TestFeed_UnknownSubtypeSkipped(t *testing.T) {
	payload := []byte{0xFE, 0x00, 0x00, 0x00, 0x00}
	raw := []byte{dle, stx}
	raw = append(raw, payload...)
	raw = append(raw, dle, etx, 0x00, 0x00)

	f := New()
	res, err := f.Feed(raw, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Messages) != 0 {
		t.Errorf("expected unknown subtype to be silently skipped, got %d messages", len(res.Messages))
	}
	if res.Consumed != len(raw) {
		t.Errorf("consumed = %d, want %d", res.Consumed, len(raw))
	}
}

func escapeBytes(in []byte) []byte {
	out := make([]byte, 0, len(in))
	for _, b := range in {
		if b == dle {
			out = append(out, dle, dle)
			continue
		}
		out = append(out, b)
	}
	return out
}
