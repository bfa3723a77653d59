package terminal

import (
	"os"
	"strings"

	"github.com/fatih/color"
)

// IsTerminal reports whether file is connected to a terminal.
func IsTerminal(file *os.File) bool {
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// ColorEnabled reports whether coloured output should be written to out.
func ColorEnabled(out *os.File, disabled bool) bool {
	if disabled || os.Getenv("NO_COLOR") != "" {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	if term == "" || term == "dumb" {
		return false
	}
	return IsTerminal(out)
}

// ConfigureColor turns fatih/color output on or off for the process.
func ConfigureColor(out *os.File, disabled bool) {
	color.NoColor = !ColorEnabled(out, disabled)
}
