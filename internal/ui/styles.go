// Package ui renders dyngraph's terminal output: colored labels and the
// construction progress bar.
package ui

import "fmt"

// ANSI256 color codes.
const (
	colorAccent    = 74  // blue
	colorCmd       = 250 // light gray
	colorMuted     = 245 // medium gray
	colorInfected  = 167 // red
	colorPrincipal = 179 // amber
	colorOK        = 108 // green
)

var noColor bool

func paint(color int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", color, s)
}

// RenderAccent returns s in the accent color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCommand returns s styled as a command name.
func RenderCommand(s string) string { return paint(colorCmd, s) }

// RenderOK returns s in the success color.
func RenderOK(s string) string { return paint(colorOK, s) }

// RenderTag returns s in the color of tag: "infected" or "principal".
// Unknown tags are muted.
func RenderTag(tag, s string) string {
	switch tag {
	case "infected":
		return paint(colorInfected, s)
	case "principal":
		return paint(colorPrincipal, s)
	}
	return RenderMuted(s)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
