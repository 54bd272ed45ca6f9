// Package gateway is Valet's request gate and HTTP server: Origin check,
// token extraction, body-size cap, rate limiting, then dispatch to the
// JSON-RPC envelope (spec.md §4.G). Grounded on
// github.com/nextlevelbuilder/goclaw's internal/gateway/server.go — same
// *http.Server plus context-cancelled Shutdown goroutine, same
// checkOrigin shape — adapted from the teacher's permissive "no
// allow-list configured = allow all" CORS policy to spec.md's mandatory
// check (Valet's config validation refuses to start without a non-empty
// allowed_origins list, so an empty list here never arises in practice).
package gateway

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/valet/internal/audit"
	"github.com/nextlevelbuilder/valet/internal/config"
	"github.com/nextlevelbuilder/valet/internal/ratelimit"
	"github.com/nextlevelbuilder/valet/internal/rpc"
	"github.com/nextlevelbuilder/valet/internal/stream"
	"github.com/nextlevelbuilder/valet/internal/valeterr"
)

// streamer is implemented by tools that support spec.md §4.E's NDJSON
// event streaming. The exec tool is the only one that does.
type streamer interface {
	Stream(ctx context.Context, requestID string, args map[string]interface{}, enc *stream.Encoder) error
}

// resolvedCmdTool is implemented by tools that can report the absolute
// program path a call actually resolved to. The exec tool is the only one
// that does; the audit record's ResolvedCmd field (spec.md §4.J) stays ""
// for every other tool.
type resolvedCmdTool interface {
	ResolvedCmd(args map[string]interface{}) string
}

// requestDeadlineMargin pads the configured exec timeout when bounding a
// request's whole lifetime, so a handler stuck draining a child's pipes
// after the child should already be reaped can't hold the connection open
// forever (spec.md §5).
const requestDeadlineMargin = 5 * time.Second

// Server is Valet's single HTTP listener.
type Server struct {
	cfg        *config.Config
	dispatcher *rpc.Dispatcher
	limiter    *ratelimit.Limiter
	auditLog   *audit.Logger

	httpServer *http.Server
}

// New builds a Server wired against the given dispatcher, rate limiter,
// and audit logger. The caller supplies these rather than Server
// constructing them, since each has its own configuration-derived
// lifecycle (registry built once at startup, limiter sized from
// cfg.Limits).
func New(cfg *config.Config, dispatcher *rpc.Dispatcher, limiter *ratelimit.Limiter, auditLog *audit.Logger) *Server {
	return &Server{cfg: cfg, dispatcher: dispatcher, limiter: limiter, auditLog: auditLog}
}

// Start listens until ctx is cancelled, then shuts down gracefully.
// Grounded on the teacher's Server.Start: a goroutine blocks on
// ctx.Done() and calls httpServer.Shutdown with a bounded grace period.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST "+s.cfg.Server.BasePath+"/{token}", s.handleCall)

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.BindAddr, s.cfg.Server.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	names := make([]string, 0)
	for _, d := range s.dispatcher.Registry().List() {
		names = append(names, d.Name)
	}
	readyLine := fmt.Sprintf("valet ready addr=%s base_path=%s tools=%v", addr, s.cfg.Server.BasePath, names)
	if s.cfg.Tunnel.Hostname != "" {
		readyLine += fmt.Sprintf(" tunnel_hostname=%s", s.cfg.Tunnel.Hostname)
	}
	slog.Info(readyLine)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.checkOrigin(r) {
		writeError(w, valeterr.OriginDenied, "origin not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCall implements spec.md §4.G's ordered gate, then hands off to
// the JSON-RPC dispatcher (or a streaming tool).
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()

	// Whole-request deadline, independent of execsec.Run's own per-exec
	// timeout: catches a handler stuck in pipe drainage after a child
	// should already have been reaped (spec.md §5).
	maxExecTimeout := time.Duration(s.cfg.Exec.TimeoutS) * time.Second
	ctx, cancel := context.WithTimeout(r.Context(), maxExecTimeout+requestDeadlineMargin)
	defer cancel()
	r = r.WithContext(ctx)

	// 1. Origin check.
	if !s.checkOrigin(r) {
		writeError(w, valeterr.OriginDenied, "origin not allowed")
		s.emitAudit(r.Context(), requestID, "", "", "", start, 0, 0, valeterr.OriginDenied, "")
		return
	}

	// 2. Token extraction, constant-time comparison.
	token := r.PathValue("token")
	if token == "" || !constantTimeEqual(token, s.cfg.Auth.BearerToken) {
		writeError(w, valeterr.Unauthorized, "missing or invalid token")
		s.emitAudit(r.Context(), requestID, "", "", "", start, 0, 0, valeterr.Unauthorized, "")
		return
	}
	tokenHash := audit.HashToken(token)

	// 3. Body size cap, without buffering past it.
	maxBytes := int64(s.cfg.Limits.MaxRequestKB) * 1024
	body, truncErr := readCapped(r.Body, maxBytes)
	if truncErr != nil {
		writeError(w, valeterr.RequestTooLarge, "request body exceeds max_request_kb")
		s.emitAudit(r.Context(), requestID, tokenHash, "", "", start, 0, 0, valeterr.RequestTooLarge, "")
		return
	}

	// 4. Rate limit.
	if !s.limiter.Allow(tokenHash) {
		writeError(w, valeterr.RateLimited, "rate limit exceeded")
		s.emitAudit(r.Context(), requestID, tokenHash, "", "", start, int64(len(body)), 0, valeterr.RateLimited, "")
		return
	}

	// 5. Parse and dispatch.
	req, err := rpc.ParseRequest(body)
	if err != nil {
		writeJSON(w, http.StatusOK, rpc.ParseErrorResponse(err.Error()))
		s.emitAudit(r.Context(), requestID, tokenHash, "", "", start, int64(len(body)), 0, valeterr.Parse, "")
		return
	}

	if req.Method == "tools/call" && wantsStream(req) {
		s.handleStream(w, r, req, requestID, tokenHash, start, int64(len(body)))
		return
	}

	resp := s.dispatcher.Dispatch(r.Context(), req)
	outcome := "ok"
	tool := ""
	resolvedCmd := ""
	if resp.Error != nil {
		if kind, ok := resp.Error.Data.(map[string]string)["kind"]; ok {
			outcome = kind
		}
	}
	if req.Method == "tools/call" {
		if t, args, parseResp := s.dispatcher.ResolveCall(req); parseResp == nil && t != nil {
			tool = t.Name()
			if rc, ok := t.(resolvedCmdTool); ok {
				resolvedCmd = rc.ResolvedCmd(args)
			}
		}
	}
	encoded, _ := json.Marshal(resp)
	writeJSON(w, http.StatusOK, resp)
	s.emitAudit(r.Context(), requestID, tokenHash, req.Method, tool, start, int64(len(body)), int64(len(encoded)), valeterr.Kind(outcome), resolvedCmd)
}

// wantsStream inspects a tools/call request's params for stream:true
// without fully resolving the tool, so non-streaming calls skip the
// NDJSON code path entirely.
func wantsStream(req *rpc.Request) bool {
	var params struct {
		Arguments map[string]interface{} `json:"arguments"`
	}
	if len(req.Params) == 0 {
		return false
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return false
	}
	v, _ := params.Arguments["stream"].(bool)
	return v
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, req *rpc.Request, requestID, tokenHash string, start time.Time, inboundBytes int64) {
	tool, args, errResp := s.dispatcher.ResolveCall(req)
	if errResp != nil {
		writeJSON(w, http.StatusOK, errResp)
		s.emitAudit(r.Context(), requestID, tokenHash, req.Method, "", start, inboundBytes, 0, valeterr.ToolNotFound, "")
		return
	}
	st, ok := tool.(streamer)
	if !ok {
		writeError(w, valeterr.InvalidParams, "tool does not support streaming")
		s.emitAudit(r.Context(), requestID, tokenHash, req.Method, tool.Name(), start, inboundBytes, 0, valeterr.InvalidParams, "")
		return
	}
	resolvedCmd := ""
	if rc, ok := tool.(resolvedCmdTool); ok {
		resolvedCmd = rc.ResolvedCmd(args)
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	enc := stream.NewEncoder(w)

	ctx := r.Context()
	err := st.Stream(ctx, requestID, args, enc)
	outcome := "ok"
	if err != nil {
		outcome = "stream_error"
		// The abort case (client disconnect) is surfaced by ctx.Err();
		// no partial JSON line is emitted beyond what Stream already
		// flushed, per spec.md §4.E.
		if ctx.Err() != nil {
			outcome = "aborted"
		}
	}
	s.emitAudit(ctx, requestID, tokenHash, req.Method, tool.Name(), start, inboundBytes, 0, valeterr.Kind(outcome), resolvedCmd)
}

// checkOrigin requires an exact match against allowed_origins. Unlike
// the teacher's permissive fallback, spec.md §4.G makes this mandatory:
// a missing Origin header is a denial, not a pass-through.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	for _, allowed := range s.cfg.Auth.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func constantTimeEqual(a, b string) bool {
	ah := sha256.Sum256([]byte(a))
	bh := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ah[:], bh[:]) == 1
}

// readCapped reads at most max+1 bytes: if that succeeds, the body
// exceeded the cap and the remainder is never read into memory.
func readCapped(r io.Reader, max int64) ([]byte, error) {
	limited := io.LimitReader(r, max+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > max {
		return nil, fmt.Errorf("body exceeds cap")
	}
	return body, nil
}

func (s *Server) emitAudit(ctx context.Context, requestID, tokenHash, method, tool string, start time.Time, inbound, outbound int64, outcome valeterr.Kind, resolvedCmd string) {
	s.auditLog.Emit(ctx, audit.Record{
		RequestID:     requestID,
		Method:        method,
		Tool:          tool,
		TokenHash:     tokenHash,
		ArrivedAt:     start,
		DurationMS:    time.Since(start).Milliseconds(),
		InboundBytes:  inbound,
		OutboundBytes: outbound,
		Outcome:       string(outcome),
		ResolvedCmd:   resolvedCmd,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, kind valeterr.Kind, message string) {
	writeJSON(w, kind.HTTPStatus(), map[string]interface{}{
		"error": map[string]string{"code": string(kind), "message": message},
	})
}
