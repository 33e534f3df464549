package imageproc

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record; Enabled reports false so callers skip
// formatting altogether.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger sets the logger used by imageproc. By default nothing is
// logged; pass nil to restore that. Safe for concurrent use.
//
// Render diagnostics (glyph counts, strip sizes, filter passes) are logged
// at [slog.LevelDebug].
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current imageproc logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
