package cli

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the color scheme of the live view.
type Theme struct {
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Dim     lipgloss.Color
	Error   lipgloss.Color
}

var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Accent:  lipgloss.Color("#58a6ff"),
	Dim:     lipgloss.Color("#6e7681"),
	Error:   lipgloss.Color("#ff5f5f"),
}

type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Border lipgloss.Style
	Help   lipgloss.Style
	User   lipgloss.Style
	Agent  lipgloss.Style
	Error  lipgloss.Style
}

func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border: lipgloss.NewStyle().Foreground(t.Primary),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
		User:   lipgloss.NewStyle().Foreground(t.Accent),
		Agent:  lipgloss.NewStyle().Foreground(t.Primary),
		Error:  lipgloss.NewStyle().Bold(true).Foreground(t.Error),
	}
}

// Section is a labeled region of a Frame. Lines beyond the region height
// are cut from the top so the newest stay visible.
type Section struct {
	Label string
	Lines []string
}

// Frame is one full-screen render of the live view.
type Frame struct {
	Styles   Styles
	Title    string
	Status   string
	Sections []Section
	Help     string
}

// Render draws the frame into a width x height box.
func (f Frame) Render(width, height int) string {
	if width < 8 || height < 6 {
		return f.Title
	}
	b := f.Styles.Border
	inner := width - 4

	lines := []string{b.Render("╭" + strings.Repeat("─", width-2) + "╮")}
	title := f.Styles.Title.Render(f.Title)
	status := f.Styles.Help.Render("[" + f.Status + "]")
	gap := max(0, width-5-lipgloss.Width(title)-lipgloss.Width(status))
	lines = append(lines, b.Render("│")+" "+title+" "+status+strings.Repeat(" ", gap)+" "+b.Render("│"))

	n := max(len(f.Sections), 1)
	rows := max((height-4-n)/n, 1)
	for _, sec := range f.Sections {
		label := f.Styles.Label.Render(" " + sec.Label + " ")
		fill := max(0, width-3-lipgloss.Width(label))
		lines = append(lines, b.Render("├─")+label+b.Render(strings.Repeat("─", fill)+"┤"))

		body := sec.Lines
		if len(body) > rows {
			body = body[len(body)-rows:]
		}
		for i := range rows {
			var text string
			if i < len(body) {
				text = clip(body[i], inner)
			}
			pad := max(0, inner-lipgloss.Width(text))
			lines = append(lines, b.Render("│")+" "+text+strings.Repeat(" ", pad)+" "+b.Render("│"))
		}
	}
	lines = append(lines, b.Render("╰"+strings.Repeat("─", width-2)+"╯"))
	lines = append(lines, f.Styles.Help.Render(f.Help))
	return strings.Join(lines, "\n")
}

// clip shortens s to width cells, marking the cut with an ellipsis.
func clip(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	var sb strings.Builder
	used := 0
	for _, r := range s {
		w := lipgloss.Width(string(r))
		if used+w > width-1 {
			break
		}
		sb.WriteRune(r)
		used += w
	}
	return sb.String() + "…"
}

var levelGlyphs = []rune(" ▁▂▃▄▅▆▇█")

// Meter draws normalized visualizer bars as a single line of block glyphs.
func Meter(bars []float64) string {
	var sb strings.Builder
	for _, v := range bars {
		v = math.Max(0, math.Min(1, v))
		sb.WriteRune(levelGlyphs[int(math.Round(v*float64(len(levelGlyphs)-1)))])
	}
	return sb.String()
}
