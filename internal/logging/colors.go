package logging

import "github.com/fatih/color"

var (
	ansiRed    = []byte("\033[31m")
	ansiGreen  = []byte("\033[32m")
	ansiYellow = []byte("\033[33m")
	ansiWhite  = []byte("\033[37m")

	ansiBoldRed = []byte("\033[1;31m")

	ansiReset = []byte("\033[0m")
)

// Whether log lines carry ANSI escapes. Follows fatih/color's terminal
// detection, so NO_COLOR and redirected output disable it.
var colorEnabled = !color.NoColor

// SetColor overrides terminal detection.
func SetColor(on bool) {
	colorEnabled = on
}

func colorize(b []byte) []byte {
	if !colorEnabled {
		return nil
	}
	return b
}
