// Package logging builds the process-wide slog.Logger for an msock binary
// and derives the scoped, per-Connection and per-Channel loggers that the
// msock package attaches to its own components, so a shared log stream
// stays attributable down to the channel that emitted a given line even
// though many channels and connections interleave on one process.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds a slog.Logger configured with the given level, format,
// and output, tagged with component (the binary or subsystem name, e.g.
// "msock-server"). Supported formats are "json" (default) and "text";
// supported levels are "debug", "info" (default), "warn", and "error". If
// filePath is non-empty, log lines go to both stdout and the file. The
// returned Closer must be called on shutdown to flush and close the file;
// if filePath is empty, the Closer is a no-op.
func NewLogger(level, format, filePath, component string) (*slog.Logger, io.Closer) {
	lvl := parseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}

	var w io.Writer = os.Stdout
	var closer io.Closer = io.NopCloser(strings.NewReader(""))

	if filePath != "" {
		f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "WARNING: could not open log file %q: %v (logging to stdout only)\n", filePath, err)
		} else {
			w = io.MultiWriter(os.Stdout, f)
			closer = f
		}
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler)
	if component != "" {
		logger = logger.With("component", component)
	}
	return logger, closer
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ForConnection derives a logger scoped to one msock.Connection, tagging
// every record it emits with the peer's remote address. A process that
// accepts or dials many connections needs this to tell their interleaved
// receive-loop and send-mutex log lines apart in a shared stream.
func ForConnection(base *slog.Logger, remoteAddr string) *slog.Logger {
	return base.With("remote_addr", remoteAddr)
}

// ForChannel derives a logger scoped to one Channel of a Connection,
// tagging every record with the channel's id and type. Each channel runs
// its own send-worker goroutine, so without this tag a busy connection's
// per-channel log lines would be indistinguishable from one another.
func ForChannel(base *slog.Logger, id uint32, channelType string) *slog.Logger {
	return base.With("channel", id, "channel_type", channelType)
}
