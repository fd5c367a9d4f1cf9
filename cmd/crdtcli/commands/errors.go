package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ledgerwatch/turbocrdt/change"
	"github.com/ledgerwatch/turbocrdt/document"
)

// Exit codes per spec.md §6 "Exit surface for a CLI".
const (
	exitOK           = 0
	exitGenericError = 1
	exitUsage        = 2
	exitFormatError  = 3
	exitMissingDeps  = 4
)

// usageError marks a RunE failure as a CLI usage mistake (bad args/flags)
// rather than an operational one, so Execute can map it to exit code 2
// instead of the generic 1.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...interface{}) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// isFormatError reports whether err's message indicates a checksum/magic
// or truncation failure surfaced while decoding a document file — the
// column/container decoders in columnar and change return plain
// fmt.Errorf-wrapped strings rather than a typed sentinel, so this keys
// off the vocabulary they consistently use ("checksum", "magic",
// "truncated").
func isFormatError(err error) bool {
	msg := err.Error()
	for _, kw := range []string{"checksum", "magic", "truncated", "corrupt"} {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	var ue *usageError
	if errors.As(err, &ue) {
		return exitUsage
	}
	var missing *document.MissingDepsError
	if errors.As(err, &missing) {
		return exitMissingDeps
	}
	var present *missingDepsPresent
	if errors.As(err, &present) {
		return exitMissingDeps
	}
	var unknownActor *change.UnknownActorError
	if errors.As(err, &unknownActor) {
		return exitFormatError
	}
	var outOfOrder *change.OutOfOrderCountersError
	if errors.As(err, &outOfOrder) {
		return exitFormatError
	}
	if isFormatError(err) {
		return exitFormatError
	}
	return exitGenericError
}
