package modes

import (
	"fmt"
	"sync"
)

// Downlink format values. 0..24 are real Mode S frames; values at and above
// MODEAC are reserved sentinels for legacy replies and synthetic events.
const (
	MODEAC                  = 32
	EventTimestampJump       = 33
	EventModeChange          = 34
	EventEpochRollover       = 35
	EventRadarcapeStatus     = 36
	EventRadarcapePosition   = 37
)

// Message is the canonical decoded frame. Instances are value objects: once
// constructed, every field is immutable except Timestamp, which downstream
// re-anchoring logic may rewrite.
type Message struct {
	Timestamp   uint64
	Signal      uint8
	DF          int
	NUC         int
	EvenCPR     bool
	OddCPR      bool
	Valid       bool
	CRCResidual uint32
	HasCRC      bool
	Address     uint32
	HasAddress  bool
	Altitude    int32
	HasAltitude bool
	Data        []byte
	EventData   map[string]interface{}

	pooled bool
}

// UsePoolAllocator toggles sync.Pool-backed reuse of Message values. Disabled
// by default; enabling it is purely a performance knob and never changes
// decoded semantics. Release is a no-op while disabled.
var UsePoolAllocator bool

var messagePool = sync.Pool{New: func() interface{} { return &Message{} }}

func newMessage() *Message {
	if UsePoolAllocator {
		m := messagePool.Get().(*Message)
		*m = Message{pooled: true}
		return m
	}
	return &Message{}
}

// Release returns m to the pool allocator. No-op when pooling is disabled or
// m was not obtained from the pool.
func Release(m *Message) {
	if m == nil || !UsePoolAllocator || !m.pooled {
		return
	}
	messagePool.Put(m)
}

// NewEvent constructs a synthetic event Message (df >= MODEAC). data, when
// non-nil, is copied so the Message never aliases the caller's buffer.
func NewEvent(df int, timestamp uint64, data []byte) *Message {
	m := newMessage()
	m.DF = df
	m.Timestamp = timestamp
	m.Valid = true
	if data != nil {
		m.Data = append(m.Data[:0], data...)
	}
	return m
}

// Hash is the Jenkins one-at-a-time hash over the first four body bytes,
// sufficient to distinguish ICAO addresses carried in DF11/17/18.
func (m *Message) Hash() uint32 {
	var h uint32
	n := len(m.Data)
	if n > 4 {
		n = 4
	}
	for i := 0; i < n; i++ {
		h += uint32(m.Data[i])
		h += h << 10
		h ^= h >> 6
	}
	h += h << 3
	h ^= h >> 11
	h += h << 15
	return h
}

// Equal compares raw Data bytes lexicographically.
func (m *Message) Equal(other *Message) bool {
	return m.Compare(other) == 0
}

// Compare orders two messages by lexicographic comparison of Data.
func (m *Message) Compare(other *Message) int {
	a, b := m.Data, other.Data
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func (m *Message) String() string {
	if m.DF >= MODEAC {
		return fmt.Sprintf("DF%d@%d:%v", m.DF, m.Timestamp, m.EventData)
	}
	return fmt.Sprintf("DF%d@%d:%x", m.DF, m.Timestamp, m.Data)
}

func (m *Message) GoString() string {
	return fmt.Sprintf("modes.Message{DF:%d, Valid:%v, Address:%#x, Data:%#x}",
		m.DF, m.Valid, m.Address, m.Data)
}
