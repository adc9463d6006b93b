// Package logging prefixes log lines with a level, coloured when stderr is a
// terminal.
package logging

import (
	"io"
	"log"
	"os"

	"github.com/gookit/color"
	"github.com/mattn/go-isatty"
)

var (
	info = color.Info
	warn = color.Warn
	fail = color.Error
)

// Setup configures the standard logger to write "LEVEL: message" lines to w.
func Setup(w io.Writer) {
	log.SetFlags(0)
	log.SetOutput(w)
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		color.Enable = true
	} else {
		color.Enable = false
	}
}

// Infof logs an informational message.
func Infof(format string, v ...interface{}) {
	log.Printf(info.Sprint("INFO")+": "+format, v...)
}

// Warnf logs a warning.
func Warnf(format string, v ...interface{}) {
	log.Printf(warn.Sprint("WARNING")+": "+format, v...)
}

// Errorf logs an error.
func Errorf(format string, v ...interface{}) {
	log.Printf(fail.Sprint("ERROR")+": "+format, v...)
}
