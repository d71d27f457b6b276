// Package logging builds the zerolog logger shared by httpget and httpserve.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// New returns a console logger writing to w. Colors are used only when w is
// a terminal. verbose lowers the level from info to debug.
func New(w io.Writer, verbose bool) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: true}
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		console.Out = colorable.NewColorable(f)
		console.NoColor = false
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}
