// Package monitor implements the live energy meter TUI using BubbleTea with
// severity-colored parameter cards and per-field sparklines.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/luki/meterwatch/internal/chart"
	"github.com/luki/meterwatch/internal/history"
	"github.com/luki/meterwatch/internal/meter"
	"github.com/luki/meterwatch/internal/poller"
	"github.com/luki/meterwatch/internal/threshold"
)

const clockInterval = 1 * time.Second

// ── Messages ─────────────────────────────────────────────────────────

type clockMsg time.Time

type updateMsg struct{}

// ── Model ────────────────────────────────────────────────────────────

// Options configures the monitor display.
type Options struct {
	Endpoint   string
	StaleAfter time.Duration
	History    int // samples kept per field
}

// Model is the BubbleTea model for the live monitor.
type Model struct {
	ctx      context.Context
	ctrl     *poller.Controller
	opts     Options
	history  *history.Store
	state    poller.State
	recorded time.Time // LastSuccess of the newest reading pushed to history
	now      time.Time
	width    int
	height   int
	scroll   int
	paused   bool
}

// New creates the monitor model. The controller is read, never written,
// except for pause, resume and manual refresh.
func New(ctx context.Context, ctrl *poller.Controller, opts Options) Model {
	return Model{
		ctx:     ctx,
		ctrl:    ctrl,
		opts:    opts,
		history: history.NewStore(opts.History),
		state:   ctrl.State(),
		now:     time.Now(),
	}
}

// Run starts the controller and the TUI, and stops the controller when the
// TUI exits for any reason.
func Run(ctx context.Context, ctrl *poller.Controller, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrl.Start(ctx)
	defer ctrl.Stop()

	p := tea.NewProgram(
		New(ctx, ctrl, opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}

// ── Commands ─────────────────────────────────────────────────────────

func clockCmd() tea.Cmd {
	return tea.Tick(clockInterval, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}

// waitForUpdate blocks until the controller signals or ctx ends. It returns
// nil on teardown so the goroutine running it exits.
func waitForUpdate(ctx context.Context, ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ch:
			return updateMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

// ── Init / Update ────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.ctx, m.ctrl.Updates()), clockCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.scroll > 0 {
				m.scroll--
			}
		case "down", "j":
			m.scroll++
		case "home":
			m.scroll = 0
		case "r":
			if !m.paused {
				m.ctrl.Refresh()
			}
		case " ", "p":
			m.paused = !m.paused
			if m.paused {
				m.ctrl.Stop()
			} else {
				m.ctrl.Start(m.ctx)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case clockMsg:
		m.now = time.Time(msg)
		return m, clockCmd()

	case updateMsg:
		m.state = m.ctrl.State()
		m.record()
		return m, waitForUpdate(m.ctx, m.ctrl.Updates())
	}

	return m, nil
}

// record pushes a new successful reading into the trend buffers.
func (m *Model) record() {
	s := m.state
	if !s.HasReading || !s.LastSuccess.After(m.recorded) {
		return
	}
	for _, spec := range meter.Fields() {
		if spec.Quantity == meter.Identifier {
			continue
		}
		if v := s.Reading.Value(spec.Name); v.Valid {
			m.history.Record(spec.Name, v.Float, s.LastSuccess)
		}
	}
	m.recorded = s.LastSuccess
}

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg  = lipgloss.Color("17")
	colorTitleFg  = lipgloss.Color("51")
	colorBorder   = lipgloss.Color("62")
	colorSection  = lipgloss.Color("147")
	colorLabel    = lipgloss.Color("252")
	colorDim      = lipgloss.Color("240")
	colorFooterBg = lipgloss.Color("235")
	colorPaused   = lipgloss.Color("196")
)

// ── View ─────────────────────────────────────────────────────────────

func (m Model) View() string {
	if m.width == 0 {
		return "  Initializing..."
	}

	contentWidth := m.width - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	var sections []string
	sections = append(sections, m.renderTitleBar(contentWidth))

	switch {
	case m.state.Phase == poller.Loading:
		sections = append(sections, renderNotice(contentWidth, colorDim,
			"Loading energy meter data..."))
	case !m.state.HasReading:
		sections = append(sections, renderNotice(contentWidth, chart.ColorCritical,
			"No Data Available", "Unable to fetch energy meter data"))
	default:
		fields := m.state.Fields()
		sections = append(sections, m.renderHeader(contentWidth, fields))
		sections = append(sections, m.renderGroups(contentWidth, fields)...)
		sections = append(sections, renderStats(contentWidth, m.state.Reading.Summarize()))
	}

	sections = append(sections, m.renderFooter(contentWidth))

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	lines := strings.Split(content, "\n")
	visibleLines := m.height
	if visibleLines < 5 {
		visibleLines = 5
	}
	maxScroll := len(lines) - visibleLines
	if maxScroll < 0 {
		maxScroll = 0
	}
	if m.scroll > maxScroll {
		m.scroll = maxScroll
	}

	start := m.scroll
	end := start + visibleLines
	if end > len(lines) {
		end = len(lines)
	}

	return strings.Join(lines[start:end], "\n")
}

func renderNotice(width int, color lipgloss.Color, title string, detail ...string) string {
	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(color).Render(title)}
	for _, d := range detail {
		lines = append(lines, lipgloss.NewStyle().Foreground(colorDim).Render(d))
	}
	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Padding(2, 0).
		Render(lipgloss.JoinVertical(lipgloss.Center, lines...))
}

func (m Model) renderTitleBar(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("ENERGY METER MONITOR")

	var statusParts []string

	if m.opts.Endpoint != "" {
		statusParts = append(statusParts, lipgloss.NewStyle().
			Foreground(colorDim).
			Render(m.opts.Endpoint))
	}

	statusParts = append(statusParts, lipgloss.NewStyle().
		Foreground(colorDim).
		Render(fmt.Sprintf("every %s", m.ctrl.Interval())))

	if m.paused {
		statusParts = append(statusParts, lipgloss.NewStyle().
			Foreground(colorPaused).
			Bold(true).
			Render("PAUSED"))
	}

	sep := lipgloss.NewStyle().Foreground(colorDim).Render(" │ ")
	right := strings.Join(statusParts, sep)

	gap := width - lipgloss.Width(logo) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + right)
}

func (m Model) renderHeader(width int, fields []threshold.Field) string {
	s := m.state
	dimS := lipgloss.NewStyle().Foreground(colorDim)

	slave := lipgloss.NewStyle().Bold(true).Foreground(colorLabel).
		Render(fmt.Sprintf("Slave ID: %d", s.Reading.Slave))

	dot := lipgloss.NewStyle().Foreground(chart.StatusColor(s.Reading.Status)).Render("●")
	status := dot + " " + lipgloss.NewStyle().Foreground(colorLabel).Render(string(s.Reading.Status))

	worst := threshold.Worst(fields)
	badge := chart.SeverityStyle(worst).Render(strings.ToUpper(worst.String()))

	updated := dimS.Render("Last updated ") +
		lipgloss.NewStyle().Foreground(colorLabel).Render(s.LastSuccess.Format("15:04:05")) +
		dimS.Render(" ("+humanize.RelTime(s.LastSuccess, m.now, "ago", "from now")+")")
	if s.Stale(m.now, m.opts.StaleAfter) {
		updated += " " + lipgloss.NewStyle().Foreground(chart.ColorCaution).Bold(true).Render("STALE")
	}

	sep := dimS.Render("  │  ")
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(width).
		Render(slave + sep + status + sep + badge + sep + updated)
}

func (m Model) renderGroups(totalWidth int, fields []threshold.Field) []string {
	innerWidth := totalWidth - 4
	labelW := 6
	valueW := 14
	statsW := 39 // three stats plus the trend marker

	// label, value, two frame runes, stats and the separating spaces
	chartWidth := innerWidth - labelW - valueW - statsW - 4
	if chartWidth < 10 {
		chartWidth = 10
	}
	if chartWidth > history.DefaultCapacity {
		chartWidth = history.DefaultCapacity
	}

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	valS := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	frameL := lipgloss.NewStyle().Foreground(colorBorder).Render("▕")
	frameR := lipgloss.NewStyle().Foreground(colorBorder).Render("▏")

	var panels []string

	for _, group := range meter.Groups {
		rows := []string{lipgloss.NewStyle().Bold(true).Foreground(colorSection).Render(group.Title())}

		for _, f := range fields {
			if f.Group != group {
				continue
			}

			label := lipgloss.NewStyle().
				Foreground(colorLabel).
				Width(labelW).
				Render(f.Name)

			value := lipgloss.NewStyle().
				Width(valueW).
				Align(lipgloss.Right).
				Render(renderFieldValue(f))

			row := label + " " + value

			if hist := m.history.Get(f.Name); hist != nil && f.Quantity != meter.Identifier {
				pad := (hist.Peak - hist.Min) * 0.1
				if pad < 1 {
					pad = 1
				}
				pts := hist.LastNPoints(chartWidth)
				spark := chart.RenderSparklinePoints(pts, chartWidth, hist.Min-pad, hist.Peak+pad)
				stats := dimS.Render(" avg") + valS.Render(fmt.Sprintf("%9.2f", hist.Avg())) +
					dimS.Render(" lo") + valS.Render(fmt.Sprintf("%9.2f", hist.Min)) +
					dimS.Render(" pk") + valS.Render(fmt.Sprintf("%9.2f", hist.Peak)) +
					chart.RenderTrendMarker(hist, f.Severity)
				row += " " + frameL + spark + frameR + stats
			}

			rows = append(rows, row)
		}

		panels = append(panels, lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1).
			Width(totalWidth).
			Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
	}

	return panels
}

func renderFieldValue(f threshold.Field) string {
	if f.Quantity == meter.Identifier {
		if !f.Value.Valid {
			return chart.SeverityStyle(f.Severity).Render("N/A")
		}
		return lipgloss.NewStyle().Foreground(colorLabel).Render(fmt.Sprintf("%d", int(f.Value.Float)))
	}
	return chart.RenderValue(f.Value, f.Unit, f.Severity)
}

func renderStats(totalWidth int, s meter.Summary) string {
	type stat struct {
		title string
		value meter.Value
		unit  string
		sev   threshold.Severity
	}
	stats := []stat{
		{"Avg Voltage", s.AvgVoltage, "V", threshold.Classify(meter.Voltage, s.AvgVoltage)},
		{"Avg Current", s.AvgCurrent, "A", threshold.Classify(meter.Current, s.AvgCurrent)},
		{"Total Power", s.TotalPower, "kW", threshold.Classify(meter.Power, s.TotalPower)},
		{"Frequency", s.Frequency, "Hz", threshold.Classify(meter.Frequency, s.Frequency)},
	}

	boxW := totalWidth/len(stats) - 2
	if boxW < 14 {
		boxW = 14
	}

	var boxes []string
	for _, st := range stats {
		title := lipgloss.NewStyle().Foreground(colorDim).Render(st.title)
		value := chart.RenderValue(st.value, st.unit, st.sev)
		boxes = append(boxes, lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Width(boxW).
			Padding(0, 1).
			Render(title+"\n"+value))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func (m Model) renderFooter(width int) string {
	swatch := func(c lipgloss.Color) string {
		return lipgloss.NewStyle().Foreground(c).Render("██")
	}
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	keyS := lipgloss.NewStyle().Foreground(colorLabel)

	legend := swatch(chart.ColorNormal) + dimS.Render(" normal ") +
		swatch(chart.ColorCaution) + dimS.Render(" caution ") +
		swatch(chart.ColorCritical) + dimS.Render(" critical ") +
		swatch(chart.ColorUnknown) + dimS.Render(" n/a")

	keys := dimS.Render("q") + keyS.Render(":quit") +
		dimS.Render("  r") + keyS.Render(":refresh") +
		dimS.Render("  p") + keyS.Render(":pause") +
		dimS.Render("  j/k") + keyS.Render(":scroll")

	gap := width - lipgloss.Width(legend) - lipgloss.Width(keys) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(legend + strings.Repeat(" ", gap) + keys)
}
