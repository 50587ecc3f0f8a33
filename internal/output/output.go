// Package output renders CLI results: ranked retrievals with score
// breakdowns, arm statistics, and the status dashboard. Color is
// enabled only on interactive terminals and honors NO_COLOR.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/applyrag/applyrag/internal/bandit"
	"github.com/applyrag/applyrag/internal/search"
)

// Color palette, 256-color codes.
const (
	colorAccent  = "81"  // cyan for headers and scores
	colorGood    = "114" // green for strong signals
	colorGray    = "245" // secondary text
	colorDim     = "238" // separators, bars
	colorWarning = "220"
)

// Styles holds the render styles, either colored or plain.
type Styles struct {
	Header  lipgloss.Style
	Score   lipgloss.Style
	Good    lipgloss.Style
	Label   lipgloss.Style
	Dim     lipgloss.Style
	Warning lipgloss.Style
}

func coloredStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent)),
		Score:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent)),
		Good:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorGood)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorDim)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarning)),
	}
}

func plainStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Score:   lipgloss.NewStyle(),
		Good:    lipgloss.NewStyle(),
		Label:   lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
	}
}

// ColorEnabled reports whether w is an interactive terminal with color
// allowed (NO_COLOR unset).
func ColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Writer renders formatted output.
type Writer struct {
	out    io.Writer
	styles Styles
}

// New creates a Writer, auto-detecting color support.
func New(out io.Writer) *Writer {
	return NewWithColor(out, ColorEnabled(out))
}

// NewWithColor creates a Writer with an explicit color choice.
func NewWithColor(out io.Writer, color bool) *Writer {
	styles := plainStyles()
	if color {
		styles = coloredStyles()
	}
	return &Writer{out: out, styles: styles}
}

func (w *Writer) printf(format string, args ...any) {
	// console writes, errors deliberately ignored
	_, _ = fmt.Fprintf(w.out, format, args...)
}

// Warningf prints a warning line.
func (w *Writer) Warningf(format string, args ...any) {
	w.printf("%s\n", w.styles.Warning.Render(fmt.Sprintf(format, args...)))
}

// Successf prints a positive status line.
func (w *Writer) Successf(format string, args ...any) {
	w.printf("%s\n", w.styles.Good.Render(fmt.Sprintf(format, args...)))
}

// Results renders a ranked retrieval with per-signal breakdowns.
func (w *Writer) Results(query string, results []search.ScoredResult) {
	w.printf("%s\n\n", w.styles.Header.Render(fmt.Sprintf("Results for %q", query)))
	if len(results) == 0 {
		w.printf("%s\n", w.styles.Label.Render("no matches"))
		return
	}

	for i, r := range results {
		rec := r.Record
		title := fmt.Sprintf("%d. %s — %s", i+1, rec.Company, rec.Role)
		w.printf("%s  %s\n",
			w.styles.Header.Render(title),
			w.styles.Score.Render(fmt.Sprintf("%.3f", r.FinalScore)))

		meta := fmt.Sprintf("   %s | %s | %s", rec.Status, rec.Method, strings.Join(rec.Tags, ", "))
		w.printf("%s\n", w.styles.Label.Render(meta))

		breakdown := fmt.Sprintf("   base %.2f · overlap %.2f · bandit %.2f · recency %.2f · priority %.2f",
			r.Base, r.Overlap, r.BanditPrior, r.MemoryShort, r.MemoryLong)
		w.printf("%s\n", w.styles.Dim.Render(breakdown))
	}
}

// Arms renders bandit arm statistics with mean-reward bars.
func (w *Writer) Arms(title string, stats []bandit.ArmStat) {
	w.printf("%s\n\n", w.styles.Header.Render(title))
	if len(stats) == 0 {
		w.printf("%s\n", w.styles.Label.Render("no arms yet, run build or record feedback"))
		return
	}

	nameWidth := 0
	for _, a := range stats {
		if len(a.Name) > nameWidth {
			nameWidth = len(a.Name)
		}
	}
	for _, a := range stats {
		bar := Bar(a.MeanReward, 20)
		w.printf("  %-*s  %s %s  %s\n",
			nameWidth, a.Name,
			w.styles.Good.Render(bar),
			w.styles.Score.Render(fmt.Sprintf("%.3f", a.MeanReward)),
			w.styles.Label.Render(fmt.Sprintf("(%d pulls)", a.Pulls)))
	}
}

// StatusDashboard renders the system status summary.
func (w *Writer) StatusDashboard(st search.Status) {
	w.printf("%s\n\n", w.styles.Header.Render("applyrag status"))
	rows := []struct {
		label string
		value int
	}{
		{"indexed records", st.Records},
		{"bandit arms", st.Arms},
		{"episodic events", st.EpisodicEvents},
		{"semantic facts", st.SemanticFacts},
	}
	for _, r := range rows {
		w.printf("  %s %d\n", w.styles.Label.Render(fmt.Sprintf("%-16s", r.label)), r.value)
	}
}

// Bar renders a unit-interval value as a fixed-width block bar.
func Bar(value float64, width int) string {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	filled := int(value*float64(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
