package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Banner is printed by the root command before subcommands run
const Banner = `
  ┌─────────────────────────────────────────────┐
  │  tiktokgraph · follower graph crawler       │
  │  Research API · daily quota guard (UTC)     │
  └─────────────────────────────────────────────┘
`

var (
	mu        sync.Mutex
	out       io.Writer = os.Stdout
	quiet     bool
	colorless = !term.IsTerminal(int(os.Stdout.Fd()))
)

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		mu.Lock()
		plain := colorless
		mu.Unlock()
		if plain {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// SetOutput redirects all printing to w
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetQuietMode suppresses everything except errors
func SetQuietMode(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// SetNoColor disables ANSI colors
func SetNoColor(disabled bool) {
	mu.Lock()
	defer mu.Unlock()
	colorless = disabled
}

// Output returns the writer the print helpers use, for tables and reports
func Output() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return out
}

func emit(always bool, format string, args ...interface{}) {
	mu.Lock()
	w, q := out, quiet
	mu.Unlock()
	if q && !always {
		return
	}
	fmt.Fprintf(w, format, args...)
}

// PrintBanner prints the banner
func PrintBanner() {
	emit(false, "%s", Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		emit(true, "%s\n", Red(msg+": "+fmt.Sprintf("%v", args[0])))
		return
	}
	emit(true, "%s\n", Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	emit(false, "%s\n", Green(msg))
}

// PrintInfo prints a labelled value
func PrintInfo(label string, value string) {
	emit(false, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		emit(false, "%s\n", Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
		return
	}
	emit(false, "%s\n", Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	emit(false, "%s\n", Magenta(msg))
}
