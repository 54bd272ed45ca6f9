// Package stream encodes Valet's streaming exec events as newline-delimited
// JSON (spec.md §4.E). Grounded on
// _examples/nayrosk-claude-cowork-service/pipe/protocol.go's discipline of
// never emitting a partial frame: a frame is only ever written whole, as one
// json.Marshal followed by a single "\n" and an explicit flush. Valet's wire
// format is simpler than that module's length-prefixed binary framing — one
// self-delimiting JSON value per line is enough for an HTTP chunked body —
// so only the "never partial, always flushed" idea is carried over.
package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Encoder writes NDJSON events to an underlying ResponseWriter, flushing
// after each one so the client observes progress as it happens.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
}

// NewEncoder wraps w. If w also implements http.Flusher (true for any
// standard net/http ResponseWriter), each event is flushed immediately
// after being written.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w}
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	return e
}

type startEvent struct {
	Event string `json:"event"`
	ID    string `json:"id"`
	Tool  string `json:"tool"`
}

type chunkEvent struct {
	Event    string `json:"event"`
	ChunkB64 string `json:"chunk_b64"`
}

type endEvent struct {
	Event  string      `json:"event"`
	Result interface{} `json:"result"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEvent struct {
	Event string       `json:"event"`
	Error errorPayload `json:"error"`
}

// Start emits the stream's opening event. Must be the first call.
func (e *Encoder) Start(id, tool string) error {
	return e.writeLine(startEvent{Event: "start", ID: id, Tool: tool})
}

// Chunk emits a stdout or stderr chunk. streamName must be "stdout" or
// "stderr"; b64 must already be base64-encoded and is written as is.
func (e *Encoder) Chunk(streamName string, b64 string) error {
	return e.writeLine(chunkEvent{Event: streamName, ChunkB64: b64})
}

// End emits the terminal success event carrying the exec result (with
// stdout/stderr bodies already stripped by the caller, per spec.md §4.E).
func (e *Encoder) End(result interface{}) error {
	return e.writeLine(endEvent{Event: "end", Result: result})
}

// Error emits the terminal failure event. No partial end event precedes
// it: a stream ends in exactly one of End or Error.
func (e *Encoder) Error(code, message string) error {
	return e.writeLine(errorEvent{Event: "error", Error: errorPayload{Code: code, Message: message}})
}

// writeLine marshals v fully in memory before touching the writer, so a
// marshal failure never produces a partial line on the wire.
func (e *Encoder) writeLine(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal ndjson event: %w", err)
	}
	b = append(b, '\n')
	if _, err := e.w.Write(b); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}
