package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Printf adapts a slog.Logger to the printf-style callbacks expected by
// libraries such as chromedp. Messages are tagged with component.
func Printf(base *slog.Logger, component string, level slog.Level) func(string, ...any) {
	if base == nil {
		base = slog.Default()
	}
	l := base.With("component", component)
	return func(format string, args ...any) {
		msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
		l.Log(context.Background(), level, msg)
	}
}
