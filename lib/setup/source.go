// Package setup wires CLI flags and environment variables into the list of
// message sources a modes-decode/modes-monitor process should read from.
package setup

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"modescore/lib/reader"
)

const (
	Fetch  = "fetch"
	Listen = "listen"
	File   = "file"
	RefLat = "ref-lat"
	RefLon = "ref-lon"
	Tag    = "tag"
)

var (
	prometheusInputBeastFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modescore_input_beast_total",
		Help: "The total number of Beast-framed messages read from a source.",
	})
	prometheusInputAvrFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modescore_input_avr_total",
		Help: "The total number of AVR-framed messages read from a source.",
	})
	prometheusInputSbsFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modescore_input_sbs_total",
		Help: "The total number of SBS-framed messages read from a source.",
	})
)

// FrameCounter returns the input counter for the given reader mode, or nil
// when that mode has no dedicated counter (ModeNone). AVR and AVRMLAT share
// the AVR counter; SBS has its own.
func FrameCounter(mode reader.Mode) prometheus.Counter {
	switch mode {
	case reader.ModeBeast, reader.ModeRadarcape, reader.ModeRadarcapeEmulated:
		return prometheusInputBeastFrames
	case reader.ModeAVR, reader.ModeAVRMLAT:
		return prometheusInputAvrFrames
	case reader.ModeSBS:
		return prometheusInputSbsFrames
	default:
		return nil
	}
}

// Source describes one place to read Mode S traffic from, resolved from a
// single --fetch/--listen/--file URL.
type Source struct {
	Mode   reader.Mode
	Tag    string
	Host   string
	Port   string
	Path   string
	Listen bool
	RefLat float64
	RefLon float64
}

func IncludeSourceFlags(app *cli.App) {
	sourceFlags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:    Fetch,
			Usage:   "A source to connect out to, in URL form. [avr|beast|sbs1]://host:port?tag=MYTAG&refLat=-31.0&refLon=115.0",
			EnvVars: []string{"SOURCE"},
		},
		&cli.StringSliceFlag{
			Name:    Listen,
			Usage:   "A source to accept inbound connections from, in URL form. [avr|beast|sbs1]://host:port?tag=MYTAG",
			EnvVars: []string{"LISTEN"},
		},
		&cli.StringSliceFlag{
			Name:    File,
			Usage:   "A recorded stream to replay, in URL form. [avr|beast|sbs1]:///path/to/file?tag=MYTAG",
			EnvVars: []string{"FILE"},
		},
		&cli.Float64Flag{
			Name:    RefLat,
			Usage:   "Default reference latitude for sources that don't set their own refLat query parameter.",
			EnvVars: []string{"REF_LAT", "LAT"},
		},
		&cli.Float64Flag{
			Name:    RefLon,
			Usage:   "Default reference longitude for sources that don't set their own refLon query parameter.",
			EnvVars: []string{"REF_LON", "LONG"},
		},
		&cli.StringFlag{
			Name:    Tag,
			Usage:   "A default tag attached to messages from sources that don't set their own tag query parameter.",
			EnvVars: []string{"TAG"},
		},
	}
	app.Flags = append(app.Flags, sourceFlags...)
}

// HandleSourceFlags resolves every --fetch/--listen/--file URL on c into a
// Source. It returns an error on the first URL it cannot parse or whose
// scheme it doesn't recognize, matching the fail-fast posture of the
// original ingest setup.
func HandleSourceFlags(c *cli.Context) ([]Source, error) {
	refLat := c.Float64(RefLat)
	refLon := c.Float64(RefLon)
	defaultTag := c.String(Tag)

	var out []Source

	for _, u := range c.StringSlice(Fetch) {
		log.Debug().Str("fetch-url", u).Msg("with fetch source")
		s, err := parseSource(u, defaultTag, refLat, refLon, false)
		if err != nil {
			log.Error().Err(err).Str("url", u).Msg("failed to parse fetch source")
			return nil, err
		}
		out = append(out, s)
	}
	for _, u := range c.StringSlice(Listen) {
		log.Debug().Str("listen-url", u).Msg("with listen source")
		s, err := parseSource(u, defaultTag, refLat, refLon, true)
		if err != nil {
			log.Error().Err(err).Str("url", u).Msg("failed to parse listen source")
			return nil, err
		}
		out = append(out, s)
	}
	for _, u := range c.StringSlice(File) {
		log.Debug().Str("file-url", u).Msg("with file source")
		s, err := parseSource(u, defaultTag, refLat, refLon, false)
		if err != nil {
			log.Error().Err(err).Str("url", u).Msg("failed to parse file source")
			return nil, err
		}
		out = append(out, s)
	}

	return out, nil
}

func parseSource(rawURL, defaultTag string, defaultRefLat, defaultRefLon float64, listen bool) (Source, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Source{}, err
	}

	var mode reader.Mode
	switch strings.ToLower(parsed.Scheme) {
	case "avr":
		mode = reader.ModeAVR
	case "beast":
		mode = reader.ModeBeast
	case "sbs1", "sbs":
		mode = reader.ModeSBS
	default:
		return Source{}, fmt.Errorf("unknown scheme %q, expected one of [avr|beast|sbs1]", parsed.Scheme)
	}

	s := Source{
		Mode:   mode,
		Tag:    queryOr(parsed, "tag", defaultTag),
		Host:   parsed.Hostname(),
		Port:   parsed.Port(),
		Path:   parsed.Path,
		Listen: listen,
		RefLat: getRef(parsed, "refLat", defaultRefLat),
		RefLon: getRef(parsed, "refLon", defaultRefLon),
	}
	if s.RefLat == 0 || s.RefLon == 0 {
		log.Debug().Str("source", rawURL).Msg("no reference lat/lon set, surface position frames will not resolve")
	}
	return s, nil
}

func queryOr(u *url.URL, key, fallback string) string {
	if v := u.Query().Get(key); v != "" {
		return v
	}
	return fallback
}

func getRef(u *url.URL, key string, fallback float64) float64 {
	if !u.Query().Has(key) {
		return fallback
	}
	f, err := strconv.ParseFloat(u.Query().Get(key), 64)
	if err != nil {
		log.Error().Err(err).Str("query_param", key).Msg("could not parse reference value")
		return fallback
	}
	return f
}
