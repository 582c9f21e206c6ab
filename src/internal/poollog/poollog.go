// Package poollog wraps the standard logger so tests can silence it
// without the rest of the package caring what sink is in use.
package poollog

import (
	"io"
	"log"
	"os"
)

type Logger struct {
	*log.Logger
}

func Default() *Logger {
	return &Logger{log.New(os.Stderr, "bufferpool: ", log.LstdFlags)}
}

func Discard() *Logger {
	return &Logger{log.New(io.Discard, "", 0)}
}
