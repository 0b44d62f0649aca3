// Package obslog is the engine's ambient logging and tracing facade: it
// supplies the logr.Logger backends that internal/loader and internal/rule
// log through, and the tracing/metrics that internal/engine wraps around
// Load and Apply. Callers opt in to a real logger; the default discards
// everything.
package obslog

import (
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// Discard returns a logger that drops everything, the default when a
// caller does not supply one.
func Discard() logr.Logger {
	return logr.Discard()
}

// NewStdLogger returns a logr.Logger backed by the standard library log
// package.
func NewStdLogger(name string) logr.Logger {
	std := log.New(os.Stderr, "", log.LstdFlags)
	return stdr.New(std).WithName(name)
}
