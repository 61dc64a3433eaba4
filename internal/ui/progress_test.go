package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestProgress_NonInteractive(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, "building")
	for _, pct := range []int{0, 4, 12, 19, 55, 100, 100} {
		p.Update(pct)
	}
	p.Done()

	want := []string{"building   0%", "building  10%", "building  50%", "building 100%"}
	got := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(got) != len(want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestProgress_Clamps(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, "x")
	p.Update(250)
	p.Update(-3)
	if got := strings.TrimSpace(buf.String()); got != "x 100%" {
		t.Errorf("output = %q, want a single 100%% line", got)
	}
}

func TestProgress_Render(t *testing.T) {
	noColor = true
	t.Cleanup(func() { noColor = false })

	p := &Progress{label: "run", width: 10}
	if got := p.render(40); got != "run [####------]  40%" {
		t.Errorf("render(40) = %q", got)
	}
	if got := p.render(100); got != "run [##########] 100%" {
		t.Errorf("render(100) = %q", got)
	}
}

func TestWidth_NotATerminal(t *testing.T) {
	if w := Width(&bytes.Buffer{}, 72); w != 72 {
		t.Errorf("Width() = %d, want fallback 72", w)
	}
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("buffer reported as a terminal")
	}
}

func TestRenderTag_NoColor(t *testing.T) {
	noColor = true
	t.Cleanup(func() { noColor = false })

	if got := RenderTag("infected", "3"); got != "3" {
		t.Errorf("RenderTag() = %q", got)
	}
}
