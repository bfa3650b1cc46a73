// Package chart renders meter values and trends with severity colors,
// minute tick marks and timeline labels.
package chart

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/luki/meterwatch/internal/history"
	"github.com/luki/meterwatch/internal/meter"
	"github.com/luki/meterwatch/internal/threshold"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

var (
	ColorNormal   = lipgloss.Color("78")  // soft green
	ColorCaution  = lipgloss.Color("220") // yellow
	ColorCritical = lipgloss.Color("196") // red
	ColorUnknown  = lipgloss.Color("240") // dim
)

// SeverityColor returns the color for a severity.
func SeverityColor(s threshold.Severity) lipgloss.Color {
	switch s {
	case threshold.Critical:
		return ColorCritical
	case threshold.Caution:
		return ColorCaution
	case threshold.Normal:
		return ColorNormal
	default:
		return ColorUnknown
	}
}

// SeverityStyle returns the text style for a severity. Critical is bold.
func SeverityStyle(s threshold.Severity) lipgloss.Style {
	style := lipgloss.NewStyle().Foreground(SeverityColor(s))
	if s == threshold.Critical {
		style = style.Bold(true)
	}
	return style
}

// StatusColor returns the color of the upstream status dot.
func StatusColor(s meter.Status) lipgloss.Color {
	switch s {
	case meter.StatusActive:
		return ColorNormal
	case meter.StatusWarning:
		return ColorCaution
	case meter.StatusError:
		return ColorCritical
	default:
		return ColorUnknown
	}
}

// FormatValue formats a value with two decimals, or N/A when missing.
func FormatValue(v meter.Value, unit string) string {
	if !v.Valid {
		return "N/A"
	}
	if unit == "" {
		return fmt.Sprintf("%.2f", v.Float)
	}
	return fmt.Sprintf("%.2f %s", v.Float, unit)
}

// RenderValue renders a value colored by severity.
func RenderValue(v meter.Value, unit string, s threshold.Severity) string {
	return SeverityStyle(s).Render(FormatValue(v, unit))
}

// RenderSparklinePoints renders a sparkline. Each block is colored by the
// severity recorded with its point and a pipe is drawn at each minute
// boundary.
func RenderSparklinePoints(points []history.Point, width int, rangeMin, rangeMax float64) string {
	if width <= 0 {
		return ""
	}

	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	if len(points) == 0 {
		return dim.Render(strings.Repeat("╌", width))
	}

	if len(points) > width {
		points = points[len(points)-width:]
	}

	padLen := width - len(points)
	span := rangeMax - rangeMin
	if span <= 0 {
		span = 1
	}

	var sb strings.Builder
	for i := 0; i < padLen; i++ {
		sb.WriteString(dim.Render("╌"))
	}

	tickStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))

	for i, p := range points {
		if isMinuteTick(points, i) {
			sb.WriteString(tickStyle.Render("│"))
			continue
		}

		norm := (p.Value - rangeMin) / span
		norm = math.Max(0, math.Min(1, norm))
		idx := int(norm * 7)
		if idx > 7 {
			idx = 7
		}

		sb.WriteString(SeverityStyle(p.Severity).Render(string(sparkBlocks[idx])))
	}

	return sb.String()
}

func isMinuteTick(points []history.Point, i int) bool {
	p := points[i]
	if p.Time.IsZero() || i == 0 {
		return false
	}
	prev := points[i-1].Time
	if prev.IsZero() {
		return false
	}
	return p.Time.Truncate(time.Minute) != prev.Truncate(time.Minute)
}

// RenderTrendMarker renders a marker when the retained window of b held a
// worse classification than current, and blanks otherwise. The result is
// always two cells wide.
func RenderTrendMarker(b *history.Buffer, current threshold.Severity) string {
	if b == nil {
		return "  "
	}
	worst := b.Worst()
	if worst <= current || worst <= threshold.Normal {
		return "  "
	}
	return " " + SeverityStyle(worst).Render("!")
}

// RenderTimeline renders HH:MM labels under the sparkline at each minute
// tick position.
func RenderTimeline(points []history.Point, width int) string {
	if len(points) == 0 || width <= 0 {
		return ""
	}

	if len(points) > width {
		points = points[len(points)-width:]
	}

	padLen := width - len(points)

	line := make([]rune, width)
	for i := range line {
		line[i] = ' '
	}

	lastEnd := -1
	for i, p := range points {
		if !isMinuteTick(points, i) {
			continue
		}
		label := p.Time.Format("15:04")
		start := padLen + i - 2
		if start < 0 {
			start = 0
		}
		end := start + len(label)
		if end > width || start <= lastEnd+1 {
			continue
		}
		for j, ch := range label {
			line[start+j] = ch
		}
		lastEnd = end
	}

	return lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Render(string(line))
}
