package crdt

import (
	"log/slog"
	"sync/atomic"
)

// pkgLogger is the package-wide diagnostic logger. It defaults to
// slog.Default() and can be overridden with SetLogger, mirroring the
// directly-imported log/slog usage in the sibling collaborative-editing
// transport this library's op model was generalized from. The core never
// lets logging affect control flow: every call site here is a diagnostic
// side-channel, not a decision point.
var pkgLogger atomic.Pointer[slog.Logger]

// SetLogger overrides the logger used for the package's diagnostic output
// (duplicate or stale ops discarded, bundles dropped for atomicity, site ids
// assigned, Json merge type mismatches). Passing nil restores slog.Default().
func SetLogger(l *slog.Logger) {
	pkgLogger.Store(l)
}

func logger() *slog.Logger {
	if l := pkgLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}
