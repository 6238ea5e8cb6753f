package reader

import (
	"errors"
	"testing"
	"time"

	"modescore/lib/modes"
)

func fakeClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time { return now }
}

// beastShortDF4 builds a type-'2' Beast frame carrying a DF4 body with the
// given 6-byte timestamp and a fixed address (0x781D23, carried in the AP
// field as CRC(20 00 00 00) XOR address). Beast mode subtracts 768 cycles
// from a short frame's timestamp, so callers pass ts > 768 to get a
// non-zero timestamp.
func beastShortDF4(ts uint64) []byte {
	frame := []byte{0x1A, 0x32}
	for shift := 40; shift >= 0; shift -= 8 {
		frame = append(frame, byte(ts>>uint(shift)))
	}
	frame = append(frame, 0x00) // signal
	frame = append(frame, 0x20, 0x00, 0x00, 0x00, 0xF8, 0x7B, 0x7C)
	return frame
}

func TestFeed_NoFilterAdmitsValidFrame(t *testing.T) {
	r := New(Config{Mode: ModeBeast})
	res, err := r.Feed(beastShortDF4(1_000_768), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(res.Messages))
	}
	m := res.Messages[0]
	if m.DF != 4 || m.Address != 0x781D23 {
		t.Errorf("got DF=%d address=%#x, want DF=4 address=0x781d23", m.DF, m.Address)
	}
}

func TestFeed_SpecificFilterRejectsUnlistedAddress(t *testing.T) {
	cfg := Config{Mode: ModeBeast}
	cfg.SpecificFilter[4] = map[uint32]struct{}{0x000001: {}}
	r := New(cfg)
	res, err := r.Feed(beastShortDF4(1_000_768), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Messages) != 0 {
		t.Fatalf("got %d messages, want 0 (address not in specific filter)", len(res.Messages))
	}
	if r.Stats().SuppressedMessages != 1 {
		t.Errorf("suppressed = %d, want 1", r.Stats().SuppressedMessages)
	}
}

func TestFeed_DefaultFilterAdmitsListedDF(t *testing.T) {
	cfg := Config{Mode: ModeBeast}
	cfg.DefaultFilter[4] = true
	r := New(cfg)
	res, err := r.Feed(beastShortDF4(1_000_768), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(res.Messages))
	}
}

func TestFeed_TrackSeenRecordsDF17Address(t *testing.T) {
	// A well-known CRC-valid DF17 identification squitter (address 0x4840D6).
	cfg := Config{Mode: ModeBeast, TrackSeen: true}
	r := New(cfg)
	in := []byte{
		0x1A, 0x33,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // timestamp
		0x00, // signal
		0x8D, 0x48, 0x40, 0xD6, 0x20, 0x2C, 0xC3, 0x71, 0xC3, 0x2C, 0xE0, 0x57, 0x60, 0x98,
	}
	if _, err := r.Feed(in, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Seen(0x4840D6) {
		t.Error("expected address 0x4840d6 to be recorded in the seen set")
	}
	if r.Seen(0x000001) {
		t.Error("unrelated address should not be seen")
	}
}

func TestFeed_ModeACFilterRestrictsBySquawk(t *testing.T) {
	cfg := Config{Mode: ModeBeast}
	cfg.ModeACFilter = map[uint16]struct{}{0x1234: {}}
	r := New(cfg)

	in := []byte{0x1A, 0x31, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x56, 0x78}
	res, err := r.Feed(in, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Messages) != 0 {
		t.Fatalf("got %d messages, want 0 (squawk not in modeac filter)", len(res.Messages))
	}
}

func TestFeed_ModeChangeOnRadarcapeStatus(t *testing.T) {
	cfg := Config{Mode: ModeBeast, AllowModeChange: true, WantEvents: true}
	r := New(cfg)

	body := []byte{0x10, 0x05, 0x00}
	body = append(body, make([]byte, 11)...)
	in := []byte{0x1A, 0x34, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	in = append(in, body...)

	res, err := r.Feed(in, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Messages) != 2 {
		t.Fatalf("got %d messages, want 2 (mode-change then status)", len(res.Messages))
	}
	if res.Messages[0].DF != modes.EventModeChange {
		t.Errorf("first message DF = %d, want EventModeChange", res.Messages[0].DF)
	}
	if res.Messages[1].DF != modes.EventRadarcapeStatus {
		t.Errorf("second message DF = %d, want EventRadarcapeStatus", res.Messages[1].DF)
	}
	if got := r.Stats().Frequency; got != 1_000_000_000 {
		t.Errorf("frequency = %d, want 1e9 after switching to RADARCAPE", got)
	}
}

func TestFeed_ClockResetSurfacesAsError(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := New(Config{Mode: ModeBeast}, WithClock(fakeClock(start)))

	res, err := r.Feed(beastShortDF4(1_000_000), 0)
	if err != nil {
		t.Fatalf("unexpected error on first frame: %v", err)
	}
	if len(res.Messages) != 1 {
		t.Fatalf("got %d messages on first frame, want 1", len(res.Messages))
	}

	_, err = r.Feed(beastShortDF4(2_000_000_000), 0)
	if err == nil {
		t.Fatal("expected a clock-reset error on a huge timestamp excursion")
	}
	if !errors.Is(err, ErrClockReset) {
		t.Errorf("error = %v, want it to wrap ErrClockReset", err)
	}
}
