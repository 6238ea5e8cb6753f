// Package reader assembles a byte framer, the CRC/Gillham decoder, timestamp
// discipline, the Mode A/C classifier, and the admission filter into a
// single stateful pipeline: Feed in raw bytes from one receiver, get back
// decoded and admitted modes.Message values.
package reader

import (
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"modescore/lib/framer"
	"modescore/lib/framer/avr"
	"modescore/lib/framer/beast"
	"modescore/lib/framer/sbs"
	"modescore/lib/modeac"
	"modescore/lib/modes"
)

// Mode selects which wire format and timestamp epoch a Reader interprets.
type Mode int

const (
	ModeNone Mode = iota
	ModeBeast
	ModeRadarcape
	ModeRadarcapeEmulated
	ModeAVR
	ModeAVRMLAT
	ModeSBS
)

func (m Mode) String() string {
	switch m {
	case ModeBeast:
		return "BEAST"
	case ModeRadarcape:
		return "RADARCAPE"
	case ModeRadarcapeEmulated:
		return "RADARCAPE_EMULATED"
	case ModeAVR:
		return "AVR"
	case ModeAVRMLAT:
		return "AVRMLAT"
	case ModeSBS:
		return "SBS"
	default:
		return "NONE"
	}
}

// frequency is the tick rate of this mode's raw timestamp counter, in Hz.
func (m Mode) frequency() uint64 {
	switch m {
	case ModeBeast, ModeAVRMLAT:
		return 12_000_000
	case ModeRadarcape, ModeRadarcapeEmulated:
		return 1_000_000_000
	case ModeSBS:
		return 20_000_000
	default:
		return 0
	}
}

// epoch names the reference point of this mode's timestamp, empty when the
// counter is free-running with no wall-clock meaning.
func (m Mode) epoch() string {
	if m == ModeRadarcape {
		return "utc_midnight"
	}
	return ""
}

func (m Mode) isRadarcape() bool {
	return m == ModeRadarcape || m == ModeRadarcapeEmulated
}

func (m Mode) newFramer() framer.Framer {
	switch m {
	case ModeBeast, ModeRadarcape, ModeRadarcapeEmulated:
		return beast.New()
	case ModeAVR, ModeAVRMLAT:
		return avr.New()
	case ModeSBS:
		return sbs.New()
	default:
		return nil
	}
}

// ErrClockReset is returned from Feed when timestamp discipline concludes
// the device clock itself was reset, rather than merely having produced an
// outlying sample. Callers typically respond by dropping all downstream
// synchronization state.
var ErrClockReset = errors.New("reader: device clock reset detected")

// Config holds the fixed and mutable configuration of a Reader. It is
// copied into the Reader at construction; later changes to a Config value
// held by the caller do not affect an already-built Reader.
type Config struct {
	Mode                Mode
	AllowModeChange     bool
	WantZeroTimestamps  bool
	WantMLATMessages    bool
	WantInvalidMessages bool
	WantEvents          bool
	TrackSeen           bool

	// DefaultFilter[df] admits every valid frame of that DF when true.
	DefaultFilter [32]bool
	// SpecificFilter[df], when non-nil, admits a frame of that DF only if
	// its address is present in the set.
	SpecificFilter [32]map[uint32]struct{}
	// ModeACFilter, when non-nil, restricts which squawks/Mode-C addresses
	// are admitted; nil admits all.
	ModeACFilter map[uint16]struct{}
}

// Stats is the observable state of a Reader, safe to copy.
type Stats struct {
	Frequency          uint64
	Epoch              string
	LastTimestamp      uint64
	ReceivedMessages   uint64
	SuppressedMessages uint64
	MLATMessages       uint64
}

// Result is the outcome of one Feed call, mirroring framer.Result.
type Result struct {
	Consumed   int
	Messages   []*modes.Message
	ErrPending bool
}

// Option customizes a Reader at construction time.
type Option func(*Reader)

// WithClock overrides the wall-clock source used for timestamp discipline
// and the Mode A/C classifier's periodic commit. Tests inject a fake clock
// here instead of sleeping.
func WithClock(now func() time.Time) Option {
	return func(r *Reader) { r.now = now }
}

// WithLogger attaches a zerolog.Logger for structured diagnostics. The
// default is a disabled logger, so a Reader is silent unless one is given.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Reader) { r.log = log }
}

// WithTracer attaches an OpenTelemetry tracer; FeedContext then wraps each
// call in a span. A Reader built without one behaves exactly as if tracing
// did not exist: FeedContext falls back to Feed with no span.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Reader) { r.tracer = tracer }
}

// Reader is a single-threaded, cooperative decode pipeline for one input
// stream. It is not safe for concurrent use; run one per goroutine per
// receiver.
type Reader struct {
	cfg   Config
	cfgMu sync.RWMutex // guards the filter fields of cfg only; Feed itself is single-threaded
	id    uuid.UUID
	log   zerolog.Logger
	now   func() time.Time

	tracer trace.Tracer

	framer framer.Framer
	mode   Mode

	ts         timestampState
	utcBugfix  bool
	classifier *modeac.Classifier

	// seen tracks ICAO addresses observed on a valid DF11/17/18 frame. A
	// btree rather than a bare map gives deterministic in-order iteration,
	// useful for a stats export that walks addresses in ascending order.
	seen *btree.BTreeG[uint32]

	stats Stats
}

func addressLess(a, b uint32) bool { return a < b }

// New builds a ready-to-use Reader for cfg.Mode.
func New(cfg Config, opts ...Option) *Reader {
	r := &Reader{
		cfg:       cfg,
		id:        uuid.New(),
		now:       time.Now,
		utcBugfix: true, // source assumes the bug is present until a type-4 status frame says otherwise
	}
	for _, opt := range opts {
		opt(r)
	}
	r.classifier = modeac.NewClassifier(r.now())
	if cfg.TrackSeen {
		r.seen = btree.NewG[uint32](32, addressLess)
	}
	r.SetMode(cfg.Mode)
	return r
}

// SetMode switches the active wire format, resetting the framer and the
// frequency/epoch pair reported via Stats. Timestamp and filter state carry
// over; callers that need a clean clock-reset should build a new Reader.
func (r *Reader) SetMode(m Mode) {
	r.mode = m
	r.framer = m.newFramer()
	r.stats.Frequency = m.frequency()
	r.stats.Epoch = m.epoch()
}

// SetFilters replaces the admission-filter configuration (DefaultFilter,
// SpecificFilter, ModeACFilter) without otherwise disturbing the Reader:
// framer state, timestamp discipline, and the Mode A/C classifier all carry
// over untouched. Safe to call concurrently with Feed from a config-reload
// goroutine; every other Reader method must still be called from a single
// owning goroutine.
func (r *Reader) SetFilters(defaultFilter [32]bool, specificFilter [32]map[uint32]struct{}, modeacFilter map[uint16]struct{}) {
	r.cfgMu.Lock()
	defer r.cfgMu.Unlock()
	r.cfg.DefaultFilter = defaultFilter
	r.cfg.SpecificFilter = specificFilter
	r.cfg.ModeACFilter = modeacFilter
}

// Stats returns a snapshot of the Reader's observable state.
func (r *Reader) Stats() Stats {
	s := r.stats
	s.LastTimestamp = r.ts.lastTimestamp
	return s
}

// ID is a stable per-Reader identifier, useful for correlating log lines
// from multiple concurrently-running Readers.
func (r *Reader) ID() uuid.UUID { return r.id }

// Feed parses as much of buf as forms complete frames and runs each decoded
// message through timestamp discipline, the Mode A/C classifier, and the
// admission filter. It never blocks.
func (r *Reader) Feed(buf []byte, maxMessages int) (Result, error) {
	if r.framer == nil {
		return Result{}, errors.New("reader: no mode selected")
	}

	fres, err := r.framer.Feed(buf, maxMessages)
	if err != nil {
		return Result{}, errors.Wrap(err, "reader: framing")
	}

	var out Result
	out.Consumed = fres.Consumed
	out.ErrPending = fres.ErrPending

	for _, msg := range fres.Messages {
		admitted, err := r.process(msg)
		if err != nil {
			return Result{Consumed: out.Consumed, Messages: out.Messages}, err
		}
		out.Messages = append(out.Messages, admitted...)
	}

	return out, nil
}

// process runs one decoded frame through discipline, classification, and
// filtering, returning the events and/or the frame itself that should be
// delivered to the caller, in detection order.
func (r *Reader) process(msg *modes.Message) ([]*modes.Message, error) {
	r.adjustTimestamp(msg)

	if msg.DF == modes.EventRadarcapeStatus {
		return r.handleRadarcapeStatus(msg), nil
	}
	if msg.DF == modes.EventRadarcapePosition {
		return []*modes.Message{decorateRadarcapePosition(msg)}, nil
	}

	r.stats.ReceivedMessages++
	if isMLATSentinel(msg.Timestamp) {
		r.stats.MLATMessages++
	}
	observeReceived(msg)

	var out []*modes.Message

	priorAnchor := r.ts.lastTimestamp
	jump, rollover, clockReset := r.disciplineTimestamp(msg)
	if clockReset {
		r.log.Error().Uint64("timestamp", msg.Timestamp).Uint64("last-timestamp", r.ts.lastTimestamp).Msg("device clock reset detected")
		return out, errors.Wrap(ErrClockReset, "timestamp discipline")
	}
	if rollover && r.cfg.WantEvents {
		ev := modes.NewEvent(modes.EventEpochRollover, msg.Timestamp, nil)
		out = append(out, ev)
		observeEvent(ev.DF)
	}
	if jump && r.cfg.WantEvents {
		ev := r.timestampJumpEvent(msg.Timestamp, priorAnchor)
		out = append(out, ev)
		observeEvent(ev.DF)
	}

	if msg.DF == modes.MODEAC {
		r.classifyModeAC(msg)
	}

	admitted := r.admit(msg)
	observeAdmission(admitted)
	if admitted {
		out = append(out, msg)
	} else {
		r.stats.SuppressedMessages++
	}

	return out, nil
}

// timestampJumpEvent reports lastTimestamp as it stood before this frame's
// discipline update ran, matching the source's event-then-update ordering:
// the event names the anchor the new sample jumped away from, not the one
// discipline may have just re-seated it to.
func (r *Reader) timestampJumpEvent(timestamp, priorAnchor uint64) *modes.Message {
	ev := modes.NewEvent(modes.EventTimestampJump, timestamp, nil)
	ev.EventData = map[string]interface{}{"last-timestamp": priorAnchor}
	return ev
}

// classifyModeAC reinterprets msg.Address (the raw 16-bit reply) through the
// statistical A/C classifier and, when it resolves to an altitude, fills in
// msg.Altitude with the converted Mode C value.
func (r *Reader) classifyModeAC(msg *modes.Message) {
	raw := uint16(msg.Address)
	switch r.classifier.Classify(raw, r.now()) {
	case modeac.ModeC:
		canonical := modeac.CanonicalForm(raw)
		if alt, ok := modeac.ModeAToModeC(canonical); ok {
			msg.Altitude = alt
			msg.HasAltitude = true
		}
	case modeac.ModeA, modeac.Ambiguous:
		// squawk identity: Address already holds the raw code.
	}
}

func isMLATSentinel(ts uint64) bool {
	const magic = 0xFF004D4C4154
	return ts >= magic && ts <= magic+10
}
