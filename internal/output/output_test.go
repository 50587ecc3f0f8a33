package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/applyrag/applyrag/internal/bandit"
	"github.com/applyrag/applyrag/internal/record"
	"github.com/applyrag/applyrag/internal/search"
)

func TestBar(t *testing.T) {
	tests := []struct {
		value  float64
		width  int
		filled int
	}{
		{0, 10, 0},
		{0.5, 10, 5},
		{1.0, 10, 10},
		{-1, 10, 0},
		{2, 10, 10},
	}
	for _, tt := range tests {
		bar := Bar(tt.value, tt.width)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("Bar(%g, %d) filled %d cells, want %d", tt.value, tt.width, got, tt.filled)
		}
		if n := len([]rune(bar)); n != tt.width {
			t.Errorf("Bar(%g, %d) width = %d", tt.value, tt.width, n)
		}
	}
}

func TestResults_RendersBreakdown(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithColor(&buf, false)

	w.Results("ml engineer", []search.ScoredResult{
		{
			Record: &record.Record{
				Company: "Acme",
				Role:    "ML Engineer",
				Status:  record.StatusApplied,
				Method:  "ashby",
				Tags:    []string{"ai"},
			},
			FinalScore:  0.82,
			Base:        0.9,
			Overlap:     1.0,
			BanditPrior: 0.5,
		},
	})

	out := buf.String()
	for _, want := range []string{"Acme", "ML Engineer", "0.820", "overlap 1.00", "ashby"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestResults_EmptyList(t *testing.T) {
	var buf bytes.Buffer
	NewWithColor(&buf, false).Results("query", nil)
	if !strings.Contains(buf.String(), "no matches") {
		t.Errorf("empty results should say so:\n%s", buf.String())
	}
}

func TestArms_RendersBarsAndPulls(t *testing.T) {
	var buf bytes.Buffer
	NewWithColor(&buf, false).Arms("arms", []bandit.ArmStat{
		{Name: "cat:ai", MeanReward: 0.75, Pulls: 12},
		{Name: "method:lever", MeanReward: 0.25, Pulls: 3},
	})

	out := buf.String()
	if !strings.Contains(out, "cat:ai") || !strings.Contains(out, "(12 pulls)") {
		t.Errorf("arm row missing:\n%s", out)
	}
	if !strings.Contains(out, "█") {
		t.Errorf("expected bar glyphs:\n%s", out)
	}
}

func TestColorEnabled_NoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	if ColorEnabled(&buf) {
		t.Error("NO_COLOR should disable color")
	}
}

func TestColorEnabled_NonFileWriter(t *testing.T) {
	var buf bytes.Buffer
	if ColorEnabled(&buf) {
		t.Error("buffer writer should not enable color")
	}
}
