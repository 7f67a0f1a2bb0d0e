// Package logging wraps log/slog the way the teacher's util/logger
// does: a mutex-guarded handler writing timestamped, level-tagged
// lines, with debug-level records gated by a single runtime trace
// flag (see SetTrace).
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Handler is a slog.Handler writing "time level: message attr attr"
// lines to out, and additionally echoing warnings and above to
// stderr so a flush or a guest exception is never silently lost in a
// log file the operator isn't tailing.
type Handler struct {
	out   io.Writer
	h     slog.Handler
	mu    *sync.Mutex
	trace bool
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	if level == slog.LevelDebug {
		return h.trace
	}
	return h.h.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithAttrs(attrs), mu: h.mu, trace: h.trace}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithGroup(name), mu: h.mu, trace: h.trace}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	strs := []string{r.Time.Format("2006/01/02 15:04:05"), r.Level.String() + ":", r.Message}
	r.Attrs(func(a slog.Attr) bool {
		strs = append(strs, a.Key+"="+a.Value.String())
		return true
	})
	line := []byte(strings.Join(strs, " ") + "\n")

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.out != nil {
		_, err = h.out.Write(line)
	}
	if r.Level >= slog.LevelWarn {
		_, _ = os.Stderr.Write(line)
	}
	return err
}

// SetTrace toggles per-block debug-level tracing at runtime, the
// dynarec-core analogue of the teacher's per-subsystem debug flags
// (util/debug), collapsed to one flag since this core has a single
// translation pipeline rather than many device subsystems.
func (h *Handler) SetTrace(on bool) { h.trace = on }

// New builds a Handler writing to out, optionally starting with
// tracing enabled.
func New(out io.Writer, trace bool) *Handler {
	return &Handler{
		out:   out,
		h:     slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}),
		mu:    &sync.Mutex{},
		trace: trace,
	}
}
