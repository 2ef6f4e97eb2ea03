package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ANSI escape codes used by the pretty console handler.
const (
	ansiReset   = "\x1b[0m"
	ansiDim     = "\x1b[2m"
	ansiBright  = "\x1b[1m"
	ansiRed     = "\x1b[31m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

const (
	prettyDefaultWidth = 100
	prettyMinWidth     = 40
	prettyContPrefix   = "        "
)

// prettyHandler renders log records as aligned, optionally colorized
// console lines. Dev-only; production runs the JSON handler.
type prettyHandler struct {
	w      io.Writer
	opts   slog.HandlerOptions
	attrs  []slog.Attr
	groups []string
	color  bool
	mu     *sync.Mutex
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	h := &prettyHandler{
		w:     w,
		color: color,
		mu:    &sync.Mutex{},
	}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	segments := []string{
		applyDim(r.Time.Format("15:04:05.000"), h.color),
		levelTag(r.Level, h.color),
		applyBold(r.Message, h.color),
	}

	for _, a := range h.attrs {
		segments = h.appendAttr(segments, a, strings.Join(h.groups, "."))
	}
	r.Attrs(func(a slog.Attr) bool {
		segments = h.appendAttr(segments, a, strings.Join(h.groups, "."))
		return true
	})

	if h.opts.AddSource && r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		if f.File != "" {
			src := fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
			if h.color {
				src = ansiCyan + src + ansiReset
			}
			segments = append(segments, applyDim(src, h.color))
		}
	}

	lines := wrapSegments(segments, "  ", h.terminalWidth(), prettyContPrefix)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.w, strings.Join(lines, "\n"))
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &c
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.groups = append(append([]string{}, h.groups...), name)
	return &c
}

func (h *prettyHandler) appendAttr(segments []string, a slog.Attr, parent string) []string {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return segments
	}

	key := a.Key
	if parent != "" {
		key = parent + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			segments = h.appendAttr(segments, ga, key)
		}
		return segments
	}

	val := quoteIfNeeded(valueToString(a.Value))
	if key == "err" || key == "error" {
		if h.color {
			val = ansiRed + val + ansiReset
		}
	}
	return append(segments, applyDim(key+"=", h.color)+val)
}

func valueToString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	default:
		return v.String()
	}
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\"") {
		return strconv.Quote(s)
	}
	return s
}

func levelTag(level slog.Level, color bool) string {
	switch {
	case level >= slog.LevelError:
		if color {
			return ansiRed + "[ERROR]" + ansiReset
		}
		return "[ERROR]"
	case level >= slog.LevelWarn:
		if color {
			return ansiYellow + "[WARN]" + ansiReset
		}
		return "[WARN]"
	case level < slog.LevelInfo:
		if color {
			return ansiMagenta + "[DEBUG]" + ansiReset
		}
		return "[DEBUG]"
	default:
		if color {
			return ansiBlue + "[INFO]" + ansiReset
		}
		return "[INFO]"
	}
}

func applyDim(s string, color bool) string {
	if !color {
		return s
	}
	return ansiDim + s + ansiReset
}

func applyBold(s string, color bool) string {
	if !color {
		return s
	}
	return ansiBright + s + ansiReset
}

// terminalWidth resolves the render width: explicit override first, then
// the COLUMNS convention, then a fixed default. Widths under the minimum
// are ignored rather than producing unreadable one-word lines.
func (h *prettyHandler) terminalWidth() int {
	if w, err := strconv.Atoi(strings.TrimSpace(os.Getenv("VOBEE_LOG_WIDTH"))); err == nil && w >= prettyMinWidth {
		return w
	}
	if w, err := strconv.Atoi(strings.TrimSpace(os.Getenv("COLUMNS"))); err == nil && w >= prettyMinWidth {
		return w
	}
	return prettyDefaultWidth
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripANSI removes color escape sequences so width math sees only
// printable characters.
func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func visualLen(s string) int {
	return len([]rune(stripANSI(s)))
}

// wrapSegments packs segments into lines no wider than width (measured
// without ANSI codes). Continuation lines get contPrefix; a segment that
// cannot fit on its own line is truncated with an ellipsis.
func wrapSegments(segments []string, sep string, width int, contPrefix string) []string {
	var lines []string
	cur := ""

	flush := func() {
		if cur != "" {
			lines = append(lines, cur)
			cur = ""
		}
	}

	for _, s := range segments {
		if s == "" {
			continue
		}

		if cur == "" {
			if len(lines) > 0 {
				s = contPrefix + s
			}
			cur = truncateVisual(s, width)
			continue
		}

		if visualLen(cur)+visualLen(sep)+visualLen(s) > width {
			flush()
			cur = truncateVisual(contPrefix+s, width)
			continue
		}
		cur += sep + s
	}
	flush()

	return lines
}

func truncateVisual(s string, width int) string {
	if visualLen(s) <= width {
		return s
	}
	runes := []rune(s)
	if width < 2 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}
