// Command modes-monitor is a live terminal dashboard over a single Mode S
// source, refreshing a stats table once a second while frames are decoded
// in the background.
package main

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/klauspost/compress/gzip"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"modescore/lib/logging"
	"modescore/lib/reader"
	"modescore/lib/setup"
)

func main() {
	app := &cli.App{
		Name:   "modes-monitor",
		Usage:  "live stats dashboard over a single Mode S/ADS-B source",
		Action: run,
	}
	logging.IncludeVerbosityFlags(app)
	setup.IncludeSourceFlags(app)

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("modes-monitor failed")
	}
}

func run(c *cli.Context) error {
	if err := logging.SetLoggingLevel(c); err != nil {
		return errors.Wrap(err, "configuring logging")
	}

	sources, err := setup.HandleSourceFlags(c)
	if err != nil {
		return errors.Wrap(err, "resolving sources")
	}
	if len(sources) != 1 {
		return cli.Exit("modes-monitor watches exactly one source; pass a single --file/--fetch/--listen", 1)
	}
	src := sources[0]

	r := reader.New(reader.Config{Mode: src.Mode, WantEvents: true, TrackSeen: true})

	rc, err := openSource(src)
	if err != nil {
		return err
	}
	defer rc.Close()

	m := newModel(src.Tag, r)
	go m.pump(rc)

	p := tea.NewProgram(m)
	_, err = p.Run()
	return err
}

type tickMsg time.Time

type statsMsg struct {
	stats     reader.Stats
	rateHz    decimal.Decimal
	lastError string
}

type model struct {
	tag      string
	r        *reader.Reader
	spin     spinner.Model
	stats    reader.Stats
	rateHz   decimal.Decimal
	lastErr  string
	quitting bool

	prevReceived uint64
	prevTick     time.Time
}

func newModel(tag string, r *reader.Reader) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return &model{tag: tag, r: r, spin: s, prevTick: time.Now()}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, tickEvery())
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		stats := m.r.Stats()
		now := time.Now()
		elapsed := now.Sub(m.prevTick).Seconds()
		var rate decimal.Decimal
		if elapsed > 0 {
			delta := decimal.NewFromInt(int64(stats.ReceivedMessages - m.prevReceived))
			rate = delta.Div(decimal.NewFromFloat(elapsed)).Round(2)
		}
		m.prevReceived = stats.ReceivedMessages
		m.prevTick = now
		m.stats = stats
		m.rateHz = rate
		return m, tickEvery()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	default:
		return m, nil
	}
}

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))

func (m *model) View() string {
	if m.quitting {
		return "bye\n"
	}

	var buf bytes.Buffer
	buf.WriteString(headerStyle.Render(m.spin.View()+" modes-monitor — "+m.tag) + "\n\n")

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"field", "value"})
	table.Append([]string{"frequency_hz", humanUint(m.stats.Frequency)})
	table.Append([]string{"epoch", blankIfEmpty(m.stats.Epoch)})
	table.Append([]string{"last_timestamp", humanUint(m.stats.LastTimestamp)})
	table.Append([]string{"received", humanUint(m.stats.ReceivedMessages)})
	table.Append([]string{"suppressed", humanUint(m.stats.SuppressedMessages)})
	table.Append([]string{"mlat", humanUint(m.stats.MLATMessages)})
	table.Append([]string{"rate_msg_s", m.rateHz.StringFixed(2)})
	table.Render()

	buf.WriteString("\npress q to quit\n")
	return buf.String()
}

func humanUint(v uint64) string {
	return decimal.NewFromInt(int64(v)).String()
}

func blankIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// pump feeds rc through r continuously until EOF or a fatal read error,
// discarding decoded frames: the dashboard only cares about r.Stats().
func (m *model) pump(rc io.ReadCloser) {
	buf := make([]byte, 0, 64*1024)
	chunk := make([]byte, 16*1024)

	for {
		n, readErr := rc.Read(chunk)
		buf = append(buf, chunk[:n]...)

		for len(buf) > 0 {
			res, err := m.r.Feed(buf, 0)
			if err != nil {
				if errors.Is(err, reader.ErrClockReset) {
					buf = buf[res.Consumed:]
					break
				}
				if len(buf) > 0 {
					buf = buf[1:]
				}
				continue
			}
			buf = buf[res.Consumed:]
			if res.Consumed == 0 {
				break
			}
		}

		if readErr == io.EOF || readErr != nil {
			return
		}
	}
}

func openSource(src setup.Source) (io.ReadCloser, error) {
	if src.Path == "" {
		return nil, errors.Errorf("source %s: modes-monitor only supports file sources", src.Tag)
	}
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", src.Path)
	}
	if len(src.Path) < 3 || src.Path[len(src.Path)-3:] != ".gz" {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "opening gzip %s", src.Path)
	}
	return &gzipReadCloser{gz: gz, f: f}, nil
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
