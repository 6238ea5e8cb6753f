package reader

import (
	"math"
	"testing"

	"modescore/lib/modes"
)

func TestRadarcapeSettingsToList_AllBitsClear(t *testing.T) {
	got := radarcapeSettingsToList(0x00)
	want := []string{"avr", "all_frames", "check_crc", "legacy_timestamps", "no_rtscts", "fec", "no_modeac"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRadarcapeSettingsToList_AllBitsSet(t *testing.T) {
	got := radarcapeSettingsToList(0xFF)
	want := []string{"beast", "filtered_frames", "no_crc", "gps_timestamps", "rtscts", "no_fec", "modeac"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRadarcapeSettingsToList_AVRMLATBit(t *testing.T) {
	got := radarcapeSettingsToList(0x04)
	if got[0] != "avrmlat" {
		t.Errorf("bit 0x04 alone: got mode %q, want avrmlat", got[0])
	}
}

func TestRadarcapeGPSStatusToDict_NoGPSInfo(t *testing.T) {
	got := radarcapeGPSStatusToDict(0x00)
	if got["utc_bugfix"] != false || got["timestamp_ok"] != true {
		t.Errorf("got %v, want utc_bugfix=false timestamp_ok=true", got)
	}
	if len(got) != 2 {
		t.Errorf("got %d keys, want 2 for the no-GPS-info branch", len(got))
	}
}

func TestRadarcapeGPSStatusToDict_FullStatus(t *testing.T) {
	// high bit set plus every subsystem bit set except timestamp_ok's bit
	got := radarcapeGPSStatusToDict(0x9F)
	want := map[string]interface{}{
		"utc_bugfix":    true,
		"timestamp_ok":  true, // bit 0x20 clear
		"sync_ok":       true,
		"utc_offset_ok": true,
		"sats_ok":       true,
		"tracking_ok":   true,
		"antenna_ok":    true,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d keys, want %d: %v", len(got), len(want), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("key %q = %v, want %v", k, got[k], v)
		}
	}
}

func TestRadarcapeModeFromStatus(t *testing.T) {
	cases := []struct {
		name string
		b0   byte
		b2   byte
		want Mode
	}{
		{"legacy timestamps stays BEAST", 0x00, 0x00, ModeBeast},
		{"gps timestamps, real radarcape", 0x10, 0x00, ModeRadarcape},
		{"gps timestamps, emulated", 0x10, 0x20, ModeRadarcapeEmulated},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			data := []byte{c.b0, 0, c.b2}
			if got := radarcapeModeFromStatus(data); got != c.want {
				t.Errorf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestDecorateRadarcapePosition_BigEndianFloats(t *testing.T) {
	lat := float32(51.5)
	lon := float32(-0.12)
	alt := float32(125.0)

	data := make([]byte, 16)
	putBEFloat32(data[4:8], lat)
	putBEFloat32(data[8:12], lon)
	putBEFloat32(data[12:16], alt)

	msg := modes.NewEvent(modes.EventRadarcapePosition, 0, data)
	decorateRadarcapePosition(msg)

	if got := msg.EventData["lat"].(float32); got != lat {
		t.Errorf("lat = %v, want %v", got, lat)
	}
	if got := msg.EventData["lon"].(float32); got != lon {
		t.Errorf("lon = %v, want %v", got, lon)
	}
	if got := msg.EventData["alt"].(float32); got != alt {
		t.Errorf("alt = %v, want %v", got, alt)
	}
}

func TestDecorateRadarcapePosition_ShortPayloadIsNoOp(t *testing.T) {
	msg := modes.NewEvent(modes.EventRadarcapePosition, 0, []byte{1, 2, 3})
	out := decorateRadarcapePosition(msg)
	if out.EventData != nil {
		t.Errorf("expected no EventData for a too-short payload, got %v", out.EventData)
	}
}

func putBEFloat32(dst []byte, f float32) {
	bits := math.Float32bits(f)
	dst[0] = byte(bits >> 24)
	dst[1] = byte(bits >> 16)
	dst[2] = byte(bits >> 8)
	dst[3] = byte(bits)
}
