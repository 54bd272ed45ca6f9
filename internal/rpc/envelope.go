// Package rpc implements the JSON-RPC 2.0 envelope Valet speaks over
// HTTP: tools/list and tools/call (spec.md §4.I). The teacher's
// internal/http package exposes its own HTTP surface as small
// REST-ish handlers rather than a JSON-RPC dispatcher (its actual
// JSON-RPC traffic is MCP client traffic it originates via
// github.com/mark3labs/mcp-go, not a server role it plays itself), so
// this package generalizes that package's writeJSON/decode idiom into
// a true method-routed JSON-RPC 2.0 responder.
package rpc

import (
	"context"
	"encoding/json"

	"github.com/nextlevelbuilder/valet/internal/tools"
	"github.com/nextlevelbuilder/valet/internal/valeterr"
)

// Request is a decoded JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is an encoded JSON-RPC 2.0 response envelope. Exactly one of
// Result or Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is a JSON-RPC error, carrying Valet's taxonomy Kind in
// Data for callers that want machine-readable detail beyond the
// standard JSON-RPC code.
type ErrorObject struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Standard JSON-RPC 2.0 error codes (spec.md §4.I).
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

type callParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Dispatcher routes decoded requests to the tool registry.
type Dispatcher struct {
	registry *tools.Registry
}

func NewDispatcher(registry *tools.Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Registry exposes the underlying tool registry, e.g. for the gateway's
// readiness line.
func (d *Dispatcher) Registry() *tools.Registry {
	return d.registry
}

// ParseRequest decodes a single JSON-RPC request from raw bytes. A parse
// failure is reported as codeParseError by the caller, per spec.md §4.I.
func ParseRequest(body []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, valeterr.New(valeterr.Parse, "invalid JSON")
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return nil, valeterr.New(valeterr.Parse, "invalid JSON-RPC envelope")
	}
	return &req, nil
}

// Dispatch routes a validated request to tools/list or tools/call and
// returns a fully-formed response envelope. Streaming calls (stream:true)
// do not come through here: the gateway resolves them with ResolveCall and
// hands them to the tool's Stream method itself.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "tools/list":
		return d.dispatchList(req)
	case "tools/call":
		return d.dispatchCall(ctx, req)
	default:
		return errorResponse(req.ID, codeMethodNotFound, "unknown method", valeterr.ToolNotFound)
	}
}

func (d *Dispatcher) dispatchList(req *Request) *Response {
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{
		"tools": d.registry.List(),
	}}
}

func (d *Dispatcher) dispatchCall(ctx context.Context, req *Request) *Response {
	var params callParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, codeInvalidParams, "invalid params", valeterr.InvalidParams)
		}
	}
	if params.Name == "" {
		return errorResponse(req.ID, codeInvalidParams, "missing tool name", valeterr.InvalidParams)
	}

	tool, ok := d.registry.Get(params.Name)
	if !ok {
		return errorResponse(req.ID, codeMethodNotFound, "unknown tool", valeterr.ToolNotFound)
	}

	result, err := tool.Execute(ctx, params.Arguments)
	if err != nil {
		return errorResponseFromErr(req.ID, err)
	}
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

// ResolveCall is used by the gateway's streaming path: it validates and
// resolves the tool without executing it, so the caller can decide
// whether to hand off to a streaming tool.
func (d *Dispatcher) ResolveCall(req *Request) (tools.Tool, map[string]interface{}, *Response) {
	var params callParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, nil, errorResponse(req.ID, codeInvalidParams, "invalid params", valeterr.InvalidParams)
		}
	}
	if params.Name == "" {
		return nil, nil, errorResponse(req.ID, codeInvalidParams, "missing tool name", valeterr.InvalidParams)
	}
	tool, ok := d.registry.Get(params.Name)
	if !ok {
		return nil, nil, errorResponse(req.ID, codeMethodNotFound, "unknown tool", valeterr.ToolNotFound)
	}
	return tool, params.Arguments, nil
}

func errorResponseFromErr(id json.RawMessage, err error) *Response {
	if ve, ok := valeterr.As(err); ok {
		return errorResponse(id, codeInvalidParams, ve.Message, ve.Kind)
	}
	return errorResponse(id, codeInvalidParams, err.Error(), valeterr.Io)
}

// ParseErrorResponse builds the envelope returned when the request body
// isn't valid JSON at all, so no id could be recovered.
func ParseErrorResponse(message string) *Response {
	return errorResponse(json.RawMessage("null"), codeParseError, message, valeterr.Parse)
}

func errorResponse(id json.RawMessage, code int, message string, kind valeterr.Kind) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &ErrorObject{
			Code:    code,
			Message: message,
			Data:    map[string]string{"kind": string(kind)},
		},
	}
}
