package main

import (
	"fmt"
	"os"
)

// ANSI escapes for terminal feedback. The --no-color flag and a non-empty
// NO_COLOR environment variable both disable them.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorsEnabled() bool {
	return !noColor && os.Getenv("NO_COLOR") == ""
}

func colorize(color, text string) string {
	if !colorsEnabled() {
		return text
	}
	return color + text + colorReset
}

// say writes one marked feedback line to stderr, keeping stdout free for
// command output that may be piped.
func say(color, mark, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { say(colorGreen, "✓", format, args...) }

func printError(format string, args ...any) { say(colorRed, "✗", format, args...) }

func printWarning(format string, args ...any) { say(colorYellow, "⚠", format, args...) }

func printStep(format string, args ...any) { say(colorCyan, "→", format, args...) }

// printStatus renders a "label: value" line for the status and stats
// commands.
func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}
