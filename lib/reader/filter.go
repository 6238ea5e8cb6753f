package reader

import "modescore/lib/modes"

// admit applies the ordered admission pipeline to one decoded, discipline-
// processed frame. It has the side effect of recording DF11/17/18 addresses
// into the seen set unconditionally, even for a frame it goes on to reject.
func (r *Reader) admit(msg *modes.Message) bool {
	if isMLATSentinel(msg.Timestamp) && !r.cfg.WantMLATMessages {
		return false
	}

	if r.ts.outliers > 0 {
		return false
	}

	if msg.Timestamp < r.ts.lastTimestamp {
		return false
	}

	r.cfgMu.RLock()
	defer r.cfgMu.RUnlock()

	if msg.DF == modes.MODEAC {
		if r.cfg.ModeACFilter == nil {
			return true
		}
		_, ok := r.cfg.ModeACFilter[uint16(msg.Address&0x1FFF)]
		return ok
	}

	if !msg.Valid {
		return r.cfg.WantInvalidMessages
	}

	if r.seen != nil && (msg.DF == 11 || msg.DF == 17 || msg.DF == 18) {
		r.seen.ReplaceOrInsert(msg.Address)
	}

	if msg.Timestamp == 0 && !r.cfg.WantZeroTimestamps {
		return false
	}

	if !r.hasAnyFilterLocked() {
		return true
	}

	if msg.DF < 0 || msg.DF >= len(r.cfg.DefaultFilter) {
		return false
	}
	if r.cfg.DefaultFilter[msg.DF] {
		return true
	}
	if set := r.cfg.SpecificFilter[msg.DF]; set != nil {
		_, ok := set[msg.Address]
		return ok
	}
	return false
}

// hasAnyFilterLocked assumes the caller already holds cfgMu.
func (r *Reader) hasAnyFilterLocked() bool {
	for _, admitAll := range r.cfg.DefaultFilter {
		if admitAll {
			return true
		}
	}
	for _, set := range r.cfg.SpecificFilter {
		if set != nil {
			return true
		}
	}
	return false
}

// Seen reports whether address has been observed in an admitted-or-not
// DF11/17/18 frame. Always false when Config.TrackSeen is false.
func (r *Reader) Seen(address uint32) bool {
	if r.seen == nil {
		return false
	}
	return r.seen.Has(address)
}
