// Package audit emits one structured log record per Valet request, using
// log/slog the way github.com/nextlevelbuilder/goclaw's cmd/gateway.go
// configures its default logger (slog.NewTextHandler writing to stdout,
// level selectable, key/value pairs on every call site). Valet's records
// are narrower in scope than the teacher's ad hoc Info/Warn/Error calls:
// spec.md §5 requires a single fixed shape per request, with no file
// contents, command arguments, or secret material ever logged.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Record is the fixed shape of one audit entry (spec.md §5).
type Record struct {
	RequestID     string
	Method        string // tools/list, tools/call
	Tool          string // empty unless tools/call
	TokenHash     string // HashToken of the bearer token (first 16 hex chars of its sha256), never the token itself
	ArrivedAt     time.Time
	DurationMS    int64
	InboundBytes  int64
	OutboundBytes int64
	Outcome       string // "ok", a valeterr.Kind string, or for streamed calls "stream_error" / "aborted"
	ResolvedCmd   string // resolved program path, exec tool only
}

// Logger writes Records via slog. A zero-value Logger uses slog.Default().
type Logger struct {
	handler *slog.Logger
}

// New wraps the given slog.Logger. Pass nil to use slog.Default().
func New(base *slog.Logger) *Logger {
	if base == nil {
		base = slog.Default()
	}
	return &Logger{handler: base}
}

// HashToken reduces a bearer token to a stable, non-reversible identity
// for correlating requests in the audit log without ever persisting the
// secret itself.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:16]
}

// Emit writes one record. Called exactly once per request, after the
// response has completed or the connection has aborted.
func (l *Logger) Emit(ctx context.Context, r Record) {
	handler := l.handler
	if handler == nil {
		handler = slog.Default()
	}
	handler.LogAttrs(ctx, slog.LevelInfo, "request",
		slog.String("request_id", r.RequestID),
		slog.String("method", r.Method),
		slog.String("tool", r.Tool),
		slog.String("token_hash", r.TokenHash),
		slog.Time("arrived_at", r.ArrivedAt),
		slog.Int64("duration_ms", r.DurationMS),
		slog.Int64("inbound_bytes", r.InboundBytes),
		slog.Int64("outbound_bytes", r.OutboundBytes),
		slog.String("outcome", r.Outcome),
		slog.String("resolved_cmd", r.ResolvedCmd),
	)
}
