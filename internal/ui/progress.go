package ui

import (
	"fmt"
	"io"
	"strings"
)

// Progress draws a construction progress bar. On a terminal the bar is
// redrawn in place; elsewhere one line is printed per ten percent.
type Progress struct {
	w           io.Writer
	label       string
	interactive bool
	width       int
	last        int
}

// NewProgress returns a bar labelled label writing to w.
func NewProgress(w io.Writer, label string) *Progress {
	p := &Progress{w: w, label: label, interactive: IsTerminal(w), last: -1}
	// Leave room for the label, brackets and percentage.
	p.width = min(max(Width(w, 80)-len(label)-10, 10), 50)
	return p
}

// Update moves the bar to percent, clamped to [0,100]. Updates that do not
// change what would be drawn are skipped.
func (p *Progress) Update(percent int) {
	percent = min(max(percent, 0), 100)
	if p.interactive {
		if percent == p.last {
			return
		}
		p.last = percent
		fmt.Fprintf(p.w, "\r%s", p.render(percent))
		return
	}
	if step := percent / 10 * 10; step > p.last {
		p.last = step
		fmt.Fprintf(p.w, "%s %3d%%\n", p.label, step)
	}
}

// Done ends the bar's line.
func (p *Progress) Done() {
	if p.interactive && p.last >= 0 {
		fmt.Fprintln(p.w)
	}
}

func (p *Progress) render(percent int) string {
	filled := p.width * percent / 100
	bar := strings.Repeat("#", filled) + strings.Repeat("-", p.width-filled)
	return fmt.Sprintf("%s [%s] %3d%%", p.label, RenderAccent(bar), percent)
}
