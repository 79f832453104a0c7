package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a retained line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the number of warnings retained.
	MaxBufferedLines = 100
)

// RecentHandler wraps a handler and keeps the most recent warning and
// error records in a circular buffer. While the dashboard owns the
// terminal the wrapped handler discards everything, so this buffer is how
// problems reach the user after the run.
type RecentHandler struct {
	next  slog.Handler
	buf   *recentBuffer
	attrs []slog.Attr
	group string
}

type recentBuffer struct {
	mu     sync.Mutex
	lines  []string
	idx    int
	counts map[string]int
}

// NewRecentHandler wraps next.
func NewRecentHandler(next slog.Handler) *RecentHandler {
	return &RecentHandler{
		next: next,
		buf: &recentBuffer{
			lines:  make([]string, MaxBufferedLines),
			counts: make(map[string]int),
		},
	}
}

// Enabled reports true for warnings regardless of the wrapped level.
func (h *RecentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn || h.next.Enabled(ctx, level)
}

// Handle retains warnings and forwards what the wrapped handler accepts.
func (h *RecentHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		h.buf.add(r.Message, h.format(r))
	}
	if h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

// WithAttrs returns a handler sharing the same buffer.
func (h *RecentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RecentHandler{
		next:  h.next.WithAttrs(attrs),
		buf:   h.buf,
		attrs: append(append([]slog.Attr(nil), h.attrs...), h.qualify(attrs)...),
		group: h.group,
	}
}

// WithGroup returns a handler sharing the same buffer.
func (h *RecentHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &RecentHandler{
		next:  h.next.WithGroup(name),
		buf:   h.buf,
		attrs: h.attrs,
		group: group,
	}
}

func (h *RecentHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if h.group == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: h.group + "." + a.Key, Value: a.Value}
	}
	return out
}

func (h *RecentHandler) format(r slog.Record) string {
	var b strings.Builder
	b.WriteString(r.Level.String())
	b.WriteByte(' ')
	b.WriteString(r.Message)

	write := func(a slog.Attr) {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Resolve())
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		write(a)
		return true
	})

	line := b.String()
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}
	return line
}

func (b *recentBuffer) add(msg, line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines[b.idx] = line
	b.idx = (b.idx + 1) % MaxBufferedLines
	b.counts[msg]++
}

// RecentLines returns up to n of the most recent retained lines, oldest
// first.
func (h *RecentHandler) RecentLines(n int) []string {
	b := h.buf
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (b.idx - n + i + MaxBufferedLines) % MaxBufferedLines
		if b.lines[idx] != "" {
			lines = append(lines, b.lines[idx])
		}
	}
	return lines
}

// Counts returns how often each warning message was seen, including
// those that have left the buffer.
func (h *RecentHandler) Counts() map[string]int {
	b := h.buf
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]int, len(b.counts))
	for k, v := range b.counts {
		out[k] = v
	}
	return out
}
