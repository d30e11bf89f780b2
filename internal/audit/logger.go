// Package audit provides structured JSON event logging for the lookup
// service.
package audit

import (
	"io"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
)

// sanitizeString strips control characters and ANSI escape sequences from a
// string before logging. Prevents terminal escape injection via crafted
// query strings (e.g., \x1b[2J to clear screen when tailing logs).
func sanitizeString(s string) string {
	// Fast path: most strings have no control characters.
	clean := true
	for _, r := range s {
		if r != '\t' && r != '\n' && (unicode.IsControl(r) || r == '\x1b') {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	inEscape := false
	for _, r := range s {
		if inEscape {
			// ANSI escape sequences end with a letter (A-Z, a-z).
			if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
				inEscape = false
			}
			continue
		}
		if r == '\x1b' {
			inEscape = true
			continue
		}
		if r != '\t' && r != '\n' && unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EventType describes the kind of logged event.
type EventType string

// Event type constants for structured log entries.
const (
	EventSearch       EventType = "search"
	EventEmptyQuery   EventType = "empty_query"
	EventRateLimited  EventType = "rate_limited"
	EventDatasetLoad  EventType = "dataset_load"
	EventDatasetFetch EventType = "dataset_fetch"
	EventConfigReload EventType = "config_reload"
	EventPanic        EventType = "panic"
)

// Logger handles structured event logging using zerolog.
type Logger struct {
	zl             zerolog.Logger
	includeQueries bool
	fileHandle     *os.File // non-nil if logging to file
}

// New creates a logger. The caller should call Close when done.
func New(format, output, filePath string, includeQueries bool) (*Logger, error) {
	var writers []io.Writer

	if output == "stdout" || output == "both" {
		if format == "text" {
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
		} else {
			writers = append(writers, os.Stdout)
		}
	}

	var fileHandle *os.File
	if output == "file" || output == "both" {
		f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) //nolint:gosec // G304: path validated by config layer
		if err != nil {
			return nil, err
		}
		writers = append(writers, f)
		fileHandle = f
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	var w io.Writer
	if len(writers) == 1 {
		w = writers[0]
	} else {
		w = zerolog.MultiLevelWriter(writers...)
	}

	zl := zerolog.New(w).With().
		Timestamp().
		Str("component", "d3tect").
		Logger()

	return &Logger{
		zl:             zl,
		includeQueries: includeQueries,
		fileHandle:     fileHandle,
	}, nil
}

// NewNop returns a no-op logger that discards all events.
func NewNop() *Logger {
	return &Logger{
		zl: zerolog.Nop(),
	}
}

// LogSearch logs a resolved query: kind is "id" or "text", matches is the
// number of techniques returned, total the retained countermeasure count.
// The raw query is included only when configured.
func (l *Logger) LogSearch(queryText, kind, clientIP, requestID string, matches, total int, duration time.Duration) {
	ev := l.zl.Info().
		Str("event", string(EventSearch)).
		Str("kind", kind).
		Str("client_ip", clientIP).
		Str("request_id", requestID).
		Int("matches", matches).
		Int("total_d3fend", total).
		Dur("duration_ms", duration)
	if l.includeQueries {
		ev = ev.Str("query", sanitizeString(queryText))
	}
	ev.Msg("query resolved")
}

// LogEmptyQuery logs a rejected blank query. Validation noise, not a fault.
func (l *Logger) LogEmptyQuery(clientIP, requestID string) {
	l.zl.Debug().
		Str("event", string(EventEmptyQuery)).
		Str("client_ip", clientIP).
		Str("request_id", requestID).
		Msg("empty query rejected")
}

// LogRateLimited logs a request rejected by the per-client rate limiter.
func (l *Logger) LogRateLimited(clientIP, path, requestID string) {
	l.zl.Warn().
		Str("event", string(EventRateLimited)).
		Str("client_ip", clientIP).
		Str("path", sanitizeString(path)).
		Str("request_id", requestID).
		Msg("rate limit exceeded")
}

// LogDatasetLoad logs the startup dataset load with index statistics.
func (l *Logger) LogDatasetLoad(path string, techniques, countermeasures, skipped, duplicates int) {
	l.zl.Info().
		Str("event", string(EventDatasetLoad)).
		Str("path", path).
		Int("techniques", techniques).
		Int("countermeasures", countermeasures).
		Int("skipped_rows", skipped).
		Int("duplicate_ids", duplicates).
		Msg("dataset indexed")
}

// LogDatasetFetch logs a completed upstream mappings download.
func (l *Logger) LogDatasetFetch(url, dest string, sizeBytes int64, duration time.Duration) {
	l.zl.Info().
		Str("event", string(EventDatasetFetch)).
		Str("url", sanitizeString(url)).
		Str("dest", dest).
		Int64("size_bytes", sizeBytes).
		Dur("duration_ms", duration).
		Msg("mappings downloaded")
}

// LogConfigReload logs a configuration reload event. Status is "applied",
// "warning", or "error"; errors mean the old config stayed active.
func (l *Logger) LogConfigReload(status, detail string) {
	ev := l.zl.Info()
	if status == "error" {
		ev = l.zl.Error()
	}
	ev.
		Str("event", string(EventConfigReload)).
		Str("status", status).
		Str("detail", detail).
		Msg("config reload")
}

// LogPanic logs a recovered handler panic.
func (l *Logger) LogPanic(path, requestID string, val any) {
	l.zl.Error().
		Str("event", string(EventPanic)).
		Str("path", sanitizeString(path)).
		Str("request_id", requestID).
		Interface("panic", val).
		Msg("handler panic recovered")
}

// LogStartup logs that the service has started.
func (l *Logger) LogStartup(listenAddr, datasetPath string) {
	l.zl.Info().
		Str("event", "startup").
		Str("listen", listenAddr).
		Str("dataset", datasetPath).
		Msg("d3tect started")
}

// LogShutdown logs that the service is shutting down.
func (l *Logger) LogShutdown(reason string) {
	l.zl.Info().
		Str("event", "shutdown").
		Str("reason", reason).
		Msg("d3tect stopping")
}

// Close cleans up the logger, flushing and closing any open file handles.
// Close is idempotent and safe to call multiple times.
func (l *Logger) Close() {
	if l.fileHandle != nil {
		_ = l.fileHandle.Sync()
		_ = l.fileHandle.Close()
		l.fileHandle = nil
	}
}
