package platform

import (
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var colorsEnabled = sync.OnceValue(func() bool {
	return colorsFromEnv(os.LookupEnv, func() bool {
		return term.IsTerminal(int(os.Stderr.Fd()))
	})
})

// ColorsEnabled reports whether diagnostic output may carry ANSI colors.
// It is evaluated once per process.
func ColorsEnabled() bool {
	return colorsEnabled()
}

// colorsFromEnv applies the NO_COLOR, FORCE_COLOR, CLICOLOR and
// CLICOLOR_FORCE conventions in that order. The first variable that is set
// decides; with none set, colors follow whether stderr is a terminal.
func colorsFromEnv(lookup func(string) (string, bool), isTerminal func() bool) bool {
	if v, ok := lookup("NO_COLOR"); ok {
		return v == ""
	}
	if v, ok := lookup("FORCE_COLOR"); ok {
		return v != "0"
	}
	if v, ok := lookup("CLICOLOR"); ok {
		return v != "0"
	}
	if v, ok := lookup("CLICOLOR_FORCE"); ok {
		return v != "0"
	}
	return isTerminal()
}

var renderer = sync.OnceValue(func() *lipgloss.Renderer {
	r := lipgloss.NewRenderer(os.Stderr)
	if ColorsEnabled() {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return r
})

// Blue renders s in blue when colors are enabled.
func Blue(s string) string {
	return renderer().NewStyle().Foreground(lipgloss.Color("4")).Render(s)
}

// Red renders s in red when colors are enabled.
func Red(s string) string {
	return renderer().NewStyle().Foreground(lipgloss.Color("1")).Render(s)
}
