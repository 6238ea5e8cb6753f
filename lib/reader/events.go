package reader

import (
	"math"

	"modescore/lib/modes"
)

// handleRadarcapeStatus turns a raw EVENT_RADARCAPE_STATUS sentinel (as
// produced by the Beast framer for a type-4 frame) into the event messages
// the caller actually sees: an optional EVENT_MODE_CHANGE followed by the
// decorated EVENT_RADARCAPE_STATUS itself. It also updates the UTC-bugfix
// flag that Radarcape GPS timestamp widening depends on.
func (r *Reader) handleRadarcapeStatus(msg *modes.Message) []*modes.Message {
	data := msg.Data
	if len(data) < 3 {
		return nil
	}

	r.utcBugfix = data[2]&0x80 == 0x80

	var out []*modes.Message

	if r.cfg.AllowModeChange {
		newMode := radarcapeModeFromStatus(data)
		if newMode != r.mode {
			r.log.Debug().Str("from", r.mode.String()).Str("to", newMode.String()).Msg("decoder mode change")
			r.SetMode(newMode)
			if r.cfg.WantEvents {
				out = append(out, r.modeChangeEvent())
			}
		}
	}

	if !r.cfg.WantEvents {
		return out
	}

	ev := modes.NewEvent(modes.EventRadarcapeStatus, msg.Timestamp, nil)
	ev.EventData = map[string]interface{}{
		"settings":            radarcapeSettingsToList(data[0]),
		"timestamp_pps_delta": int8(data[1]),
		"gps_status":          radarcapeGPSStatusToDict(data[2]),
	}
	return append(out, ev)
}

// radarcapeModeFromStatus reads the DIP-switch bits embedded in a type-4
// status frame to decide which of the three Beast-family modes is active:
// bit 4 of byte 0 selects GPS vs 12MHz timestamps, bit 5 of byte 2
// distinguishes a real Radarcape from an emulated one.
func radarcapeModeFromStatus(data []byte) Mode {
	if data[0]&0x10 == 0 {
		return ModeBeast
	}
	if data[2]&0x20 == 0x20 {
		return ModeRadarcapeEmulated
	}
	return ModeRadarcape
}

func (r *Reader) modeChangeEvent() *modes.Message {
	ev := modes.NewEvent(modes.EventModeChange, 0, nil)
	var epoch interface{}
	if e := r.mode.epoch(); e != "" {
		epoch = e
	}
	ev.EventData = map[string]interface{}{
		"mode":      r.mode.String(),
		"frequency": r.mode.frequency(),
		"epoch":     epoch,
	}
	return ev
}

// radarcapeSettingsToList decodes the type-4 status frame's first byte into
// the seven human-readable DIP-switch settings, in wire-bit order.
func radarcapeSettingsToList(b byte) []string {
	out := make([]string, 0, 7)

	switch {
	case b&0x01 != 0:
		out = append(out, "beast")
	case b&0x04 != 0:
		out = append(out, "avrmlat")
	default:
		out = append(out, "avr")
	}

	if b&0x02 != 0 {
		out = append(out, "filtered_frames")
	} else {
		out = append(out, "all_frames")
	}

	if b&0x08 != 0 {
		out = append(out, "no_crc")
	} else {
		out = append(out, "check_crc")
	}

	if b&0x10 != 0 {
		out = append(out, "gps_timestamps")
	} else {
		out = append(out, "legacy_timestamps")
	}

	if b&0x20 != 0 {
		out = append(out, "rtscts")
	} else {
		out = append(out, "no_rtscts")
	}

	if b&0x40 != 0 {
		out = append(out, "no_fec")
	} else {
		out = append(out, "fec")
	}

	if b&0x80 != 0 {
		out = append(out, "modeac")
	} else {
		out = append(out, "no_modeac")
	}

	return out
}

// radarcapeGPSStatusToDict decodes the type-4 status frame's third byte.
// When its high bit is clear there is no GPS lock information at all, and
// timestamps are trusted implicitly; otherwise every bit names a specific
// subsystem's health.
func radarcapeGPSStatusToDict(b byte) map[string]interface{} {
	if b&0x80 == 0 {
		return map[string]interface{}{
			"utc_bugfix":   false,
			"timestamp_ok": true,
		}
	}
	return map[string]interface{}{
		"utc_bugfix":    true,
		"timestamp_ok":  b&0x20 == 0,
		"sync_ok":       b&0x10 != 0,
		"utc_offset_ok": b&0x08 != 0,
		"sats_ok":       b&0x04 != 0,
		"tracking_ok":   b&0x02 != 0,
		"antenna_ok":    b&0x01 != 0,
	}
}

// decorateRadarcapePosition fills in lat/lon/alt on an EVENT_RADARCAPE_POSITION
// sentinel by unpacking three big-endian IEEE-754 floats from the raw type-5
// payload carried in msg.Data.
func decorateRadarcapePosition(msg *modes.Message) *modes.Message {
	data := msg.Data
	if len(data) < 16 {
		return msg
	}
	msg.EventData = map[string]interface{}{
		"lat": beFloat32(data[4:8]),
		"lon": beFloat32(data[8:12]),
		"alt": beFloat32(data[12:16]),
	}
	return msg
}

func beFloat32(b []byte) float32 {
	bits := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return math.Float32frombits(bits)
}
