// Package xlog is turbocrdt's structured logger, adapted from the teacher's
// internal log package: the same key-value calling convention
// (log.Info("msg", "key", val, ...)), backed by log15's handler model
// instead of being re-implemented on top of the standard library.
package xlog

import (
	"os"

	"github.com/inconshreveable/log15"
)

var root = log15.New()

func init() {
	root.SetHandler(log15.StreamHandler(os.Stderr, log15.TerminalFormat()))
}

// New returns a logger with the given context baked in, mirroring log.New
// in the teacher's package (e.g. log.New("database", "in-memory")).
func New(ctx ...interface{}) log15.Logger {
	return root.New(ctx...)
}

func SetHandler(h log15.Handler) { root.SetHandler(h) }

func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { root.Crit(msg, ctx...) }
