// Command modes-decode reads one or more Mode S/ADS-B sources (Beast, AVR,
// or SBS, each optionally gzip-compressed when read from a file) and writes
// the decoded frames to stdout as JSON Lines.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"modescore/lib/geo"
	"modescore/lib/logging"
	"modescore/lib/modes"
	"modescore/lib/reader"
	"modescore/lib/setup"
)

const (
	flagConfig      = "config"
	flagMaxMessages = "max-messages"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	app := &cli.App{
		Name:  "modes-decode",
		Usage: "decode Mode S/ADS-B frames from Beast/AVR/SBS sources to JSON Lines",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Usage:   "path to a YAML/JSON filter configuration; hot-reloaded while running",
				EnvVars: []string{"MODESCORE_CONFIG"},
			},
			&cli.IntFlag{
				Name:  flagMaxMessages,
				Usage: "maximum messages decoded per Feed call (0 = unlimited)",
			},
		},
		Action: run,
	}
	logging.IncludeVerbosityFlags(app)
	setup.IncludeSourceFlags(app)

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("modes-decode failed")
	}
}

func run(c *cli.Context) error {
	logging.ConfigureForCli()
	if err := logging.SetLoggingLevel(c); err != nil {
		return errors.Wrap(err, "configuring logging")
	}

	v := viper.New()
	if path := c.String(flagConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrap(err, "reading filter configuration")
		}
	}
	v.SetEnvPrefix("MODESCORE")
	v.AutomaticEnv()

	sources, err := setup.HandleSourceFlags(c)
	if err != nil {
		return errors.Wrap(err, "resolving sources")
	}
	if len(sources) == 0 {
		return cli.Exit("no --fetch/--listen/--file source given", 1)
	}

	tracer := otel.Tracer("modescore/cmd/modes-decode")
	maxMessages := c.Int(flagMaxMessages)

	var (
		wg      conc.WaitGroup
		outMu   sync.Mutex
		readers []*reader.Reader
		readMu  sync.Mutex
		errs    error
		errMu   sync.Mutex
	)

	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Str("event", e.String()).Msg("filter configuration changed, reloading")
		cfg := loadFilterConfig(v)
		readMu.Lock()
		for _, r := range readers {
			r.SetFilters(cfg.DefaultFilter, cfg.SpecificFilter, cfg.ModeACFilter)
		}
		readMu.Unlock()
	})
	v.WatchConfig()

	for _, src := range sources {
		src := src
		r := buildReader(v, src, tracer)

		readMu.Lock()
		readers = append(readers, r)
		readMu.Unlock()

		wg.Go(func() {
			if err := processSource(c.Context, src, r, maxMessages, &outMu); err != nil {
				errMu.Lock()
				errs = multierr.Append(errs, errors.Wrapf(err, "source %s", src.Tag))
				errMu.Unlock()
			}
		})
	}

	wg.Wait()
	return errs
}

func buildReader(v *viper.Viper, src setup.Source, tracer trace.Tracer) *reader.Reader {
	cfg := loadFilterConfig(v)
	cfg.Mode = src.Mode
	sublog := log.With().Str("tag", src.Tag).Str("mode", src.Mode.String()).Logger()
	return reader.New(cfg, reader.WithLogger(sublog), reader.WithTracer(tracer))
}

// filterConfig is the shape of the hot-reloadable part of reader.Config,
// as loaded from YAML/JSON/env via viper.
type filterConfig struct {
	AllowModeChange     bool                `mapstructure:"allow_mode_change"`
	WantZeroTimestamps  bool                `mapstructure:"want_zero_timestamps"`
	WantMLATMessages    bool                `mapstructure:"want_mlat_messages"`
	WantInvalidMessages bool                `mapstructure:"want_invalid_messages"`
	WantEvents          bool                `mapstructure:"want_events"`
	TrackSeen           bool                `mapstructure:"track_seen"`
	DefaultFilterDFs    []int               `mapstructure:"default_filter_dfs"`
	SpecificFilter      map[int][]string    `mapstructure:"specific_filter"`
	ModeACFilter        []string            `mapstructure:"modeac_filter"`
}

func loadFilterConfig(v *viper.Viper) reader.Config {
	var fc filterConfig
	fc.WantEvents = true
	_ = v.Unmarshal(&fc)

	cfg := reader.Config{
		AllowModeChange:     fc.AllowModeChange,
		WantZeroTimestamps:  fc.WantZeroTimestamps,
		WantMLATMessages:    fc.WantMLATMessages,
		WantInvalidMessages: fc.WantInvalidMessages,
		WantEvents:          fc.WantEvents,
		TrackSeen:           fc.TrackSeen,
	}
	for _, df := range fc.DefaultFilterDFs {
		if df >= 0 && df < len(cfg.DefaultFilter) {
			cfg.DefaultFilter[df] = true
		}
	}
	for df, hexAddrs := range fc.SpecificFilter {
		if df < 0 || df >= len(cfg.SpecificFilter) {
			continue
		}
		set := make(map[uint32]struct{}, len(hexAddrs))
		for _, h := range hexAddrs {
			if addr, ok := parseHexAddress(h); ok {
				set[addr] = struct{}{}
			}
		}
		cfg.SpecificFilter[df] = set
	}
	if len(fc.ModeACFilter) > 0 {
		cfg.ModeACFilter = make(map[uint16]struct{}, len(fc.ModeACFilter))
		for _, h := range fc.ModeACFilter {
			if addr, ok := parseHexAddress(h); ok {
				cfg.ModeACFilter[uint16(addr)] = struct{}{}
			}
		}
	}
	return cfg
}

func parseHexAddress(s string) (uint32, bool) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) == 0 || len(b) > 4 {
		return 0, false
	}
	var v uint32
	for _, x := range b {
		v = v<<8 | uint32(x)
	}
	return v, true
}

// processSource opens src (transparently gunzipping a .gz file source) and
// runs it through r, writing each admitted frame as a JSON Lines object to
// stdout under outMu.
func processSource(ctx context.Context, src setup.Source, r *reader.Reader, maxMessages int, outMu *sync.Mutex) error {
	rc, err := openSource(src)
	if err != nil {
		return err
	}
	defer rc.Close()

	counter := setup.FrameCounter(src.Mode)

	buf := make([]byte, 0, 64*1024)
	chunk := make([]byte, 16*1024)
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for {
		n, readErr := rc.Read(chunk)
		buf = append(buf, chunk[:n]...)

		for len(buf) > 0 {
			res, err := r.FeedContext(ctx, buf, maxMessages)
			if err != nil {
				if errors.Is(err, reader.ErrClockReset) {
					log.Warn().Str("tag", src.Tag).Msg("device clock reset; synchronization state dropped downstream")
					buf = buf[res.Consumed:]
					break
				}
				// A stream sync error: skip the offending byte at offset 0
				// of what's left and try again, per the framer's "raise at
				// offset 0 of the remaining buffer" contract.
				log.Warn().Str("tag", src.Tag).Err(err).Msg("stream sync lost, resynchronizing")
				if len(buf) > 0 {
					buf = buf[1:]
				}
				continue
			}

			outMu.Lock()
			for _, m := range res.Messages {
				if counter != nil && m.DF < modes.MODEAC {
					counter.Inc()
				}
				writeMessage(out, m)
			}
			outMu.Unlock()

			buf = buf[res.Consumed:]
			if res.Consumed == 0 {
				break // incomplete trailing frame: wait for more bytes
			}
		}

		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return errors.Wrap(readErr, "reading source")
		}
	}
}

func writeMessage(w io.Writer, m *modes.Message) {
	type wire struct {
		Timestamp uint64                 `json:"timestamp"`
		Signal    uint8                  `json:"signal"`
		DF        int                    `json:"df"`
		Valid     bool                   `json:"valid"`
		Address   *string                `json:"address,omitempty"`
		Altitude  *int32                 `json:"altitude,omitempty"`
		Data      string                 `json:"data,omitempty"`
		EventData map[string]interface{} `json:"eventdata,omitempty"`
		Geo       map[string]float64     `json:"geo,omitempty"`
	}

	out := wire{
		Timestamp: m.Timestamp,
		Signal:    m.Signal,
		DF:        m.DF,
		Valid:     m.Valid,
		EventData: m.EventData,
	}
	if m.HasAddress {
		s := fmt.Sprintf("%06X", m.Address)
		out.Address = &s
	}
	if m.HasAltitude {
		alt := m.Altitude
		out.Altitude = &alt
	}
	if len(m.Data) > 0 {
		out.Data = hex.EncodeToString(m.Data)
	}
	if pt, ok := geo.Point(m); ok {
		out.Geo = map[string]float64{"lon": pt.Lon(), "lat": pt.Lat()}
	}

	b, err := json.Marshal(out)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal decoded message")
		return
	}
	w.Write(b)
	w.Write([]byte{'\n'})
}

func openSource(src setup.Source) (io.ReadCloser, error) {
	if src.Path == "" {
		return nil, errors.Errorf("source %s: only file sources are supported by this build", src.Tag)
	}
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", src.Path)
	}
	if !isGzip(src.Path) {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "opening gzip %s", src.Path)
	}
	return &gzipReadCloser{gz: gz, f: f}, nil
}

func isGzip(path string) bool {
	n := len(path)
	return n > 3 && path[n-3:] == ".gz"
}

type gzipReadCloser struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }
func (g *gzipReadCloser) Close() error {
	_ = g.gz.Close()
	return g.f.Close()
}
