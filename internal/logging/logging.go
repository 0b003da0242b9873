package logging

import (
	"io"
	"log"
	"os"
)

// Logger is the subset of *log.Logger the grader components write to.
type Logger interface {
	Printf(format string, args ...any)
}

func NewStdLogger(prefix string) *log.Logger {
	return log.New(os.Stdout, prefix, log.LstdFlags|log.LUTC)
}

// Discard returns a logger that drops everything (tests, quiet CLI runs).
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard()
	}
	return l
}
