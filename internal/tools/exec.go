package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/valet/internal/execsec"
	"github.com/nextlevelbuilder/valet/internal/stream"
	"github.com/nextlevelbuilder/valet/internal/valeterr"
)

// ExecTool implements exec (spec.md §4.H), wiring execsec.AllowList and
// execsec.Run. When args["stream"] is true, the gateway calls Stream
// instead of Execute so output reaches the caller as NDJSON events
// (spec.md §4.E) rather than a single buffered JSON-RPC result.
type ExecTool struct {
	allowList      *execsec.AllowList
	workDir        string
	env            []string
	defaultTimeout time.Duration
	maxTimeout     time.Duration
	maxBytes       int64
}

func NewExecTool(allowList *execsec.AllowList, workDir string, env []string, defaultTimeout, maxTimeout time.Duration, maxBytes int64) *ExecTool {
	return &ExecTool{
		allowList:      allowList,
		workDir:        workDir,
		env:            env,
		defaultTimeout: defaultTimeout,
		maxTimeout:     maxTimeout,
		maxBytes:       maxBytes,
	}
}

func (t *ExecTool) Name() string        { return "exec" }
func (t *ExecTool) Description() string { return "Run an allow-listed command with capped, timed-out output capture" }

func (t *ExecTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"cmd":       map[string]interface{}{"type": "string"},
			"args":      map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"timeout_s": map[string]interface{}{"type": "number"},
			"stream":    map[string]interface{}{"type": "boolean"},
		},
		"required": []string{"cmd", "args"},
	}
}

// parsedArgs validates and extracts common fields shared by Execute and
// Stream.
func (t *ExecTool) parsedArgs(args map[string]interface{}) (program string, argv []string, timeout time.Duration, err error) {
	if err := checkFields(args, []string{"cmd", "args"}, []string{"cmd", "args", "timeout_s", "stream"}); err != nil {
		return "", nil, 0, err
	}
	cmd, err := stringField(args, "cmd")
	if err != nil {
		return "", nil, 0, err
	}
	if cmd == "" {
		return "", nil, 0, valeterr.New(valeterr.InvalidParams, "cmd must not be empty")
	}

	rawArgs, ok := args["args"]
	if !ok {
		return "", nil, 0, valeterr.New(valeterr.InvalidParams, "missing required field \"args\"")
	}
	items, ok := rawArgs.([]interface{})
	if !ok {
		return "", nil, 0, valeterr.New(valeterr.InvalidParams, "args must be an array of strings")
	}
	argv = make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return "", nil, 0, valeterr.New(valeterr.InvalidParams, "args must be an array of strings")
		}
		argv = append(argv, s)
	}

	timeout = t.defaultTimeout
	if raw, ok := args["timeout_s"]; ok {
		n, ok := raw.(float64)
		if !ok || n <= 0 {
			return "", nil, 0, valeterr.New(valeterr.InvalidParams, "timeout_s must be a positive number")
		}
		requested := time.Duration(n * float64(time.Second))
		// Open Question (spec.md §9): effective timeout is the minimum of
		// the caller's request and the configured ceiling.
		if requested < t.maxTimeout {
			timeout = requested
		} else {
			timeout = t.maxTimeout
		}
	}

	program, err = t.allowList.Lookup(cmd)
	if err != nil {
		return "", nil, 0, err
	}
	return program, argv, timeout, nil
}

// Execute runs the command to completion and returns the full result
// with output bodies base64-encoded.
func (t *ExecTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	program, argv, timeout, err := t.parsedArgs(args)
	if err != nil {
		return nil, err
	}

	result, runErr := execsec.Run(ctx, program, argv, execsec.Options{
		WorkDir:  t.workDir,
		Env:      t.env,
		Timeout:  timeout,
		MaxBytes: t.maxBytes,
	})
	if runErr != nil {
		if ve, ok := valeterr.As(runErr); ok && ve.Kind == valeterr.ExecTimeout {
			return nil, runErr
		}
		return nil, valeterr.New(valeterr.Io, fmt.Sprintf("exec failed: %v", runErr))
	}

	return map[string]interface{}{
		"exit_code":   result.ExitCode,
		"stdout_b64":  base64.StdEncoding.EncodeToString(result.Stdout),
		"stderr_b64":  base64.StdEncoding.EncodeToString(result.Stderr),
		"duration_ms": result.DurationMS,
		"truncated":   result.Truncated,
		"timed_out":   result.TimedOut,
	}, nil
}

// ResolvedCmd returns the absolute program path args["cmd"] resolves to via
// the allow list, or "" if args is malformed or cmd isn't allow-listed. The
// gateway calls this after dispatching a tools/call (whatever its outcome)
// and before starting a stream, so the audit record can carry the resolved
// path (spec.md §4.J). It repeats the allow-list lookup parsedArgs makes.
func (t *ExecTool) ResolvedCmd(args map[string]interface{}) string {
	cmd, ok := args["cmd"].(string)
	if !ok || cmd == "" {
		return ""
	}
	program, err := t.allowList.Lookup(cmd)
	if err != nil {
		return ""
	}
	return program
}

// Stream runs the command, emitting start/stdout/stderr/end (or error)
// NDJSON events as output arrives (spec.md §4.E).
func (t *ExecTool) Stream(ctx context.Context, requestID string, args map[string]interface{}, enc *stream.Encoder) error {
	program, argv, timeout, err := t.parsedArgs(args)
	if err != nil {
		if ve, ok := valeterr.As(err); ok {
			_ = enc.Error(string(ve.Kind), ve.Message)
		}
		return err
	}

	if err := enc.Start(requestID, t.Name()); err != nil {
		return err
	}

	onChunk := func(streamName string, chunk []byte) {
		_ = enc.Chunk(streamName, base64.StdEncoding.EncodeToString(chunk))
	}

	result, runErr := execsec.Run(ctx, program, argv, execsec.Options{
		WorkDir:  t.workDir,
		Env:      t.env,
		Timeout:  timeout,
		MaxBytes: t.maxBytes,
		OnChunk:  onChunk,
	})
	if runErr != nil {
		if ve, ok := valeterr.As(runErr); ok {
			return enc.Error(string(ve.Kind), ve.Message)
		}
		return enc.Error(string(valeterr.Io), runErr.Error())
	}

	return enc.End(map[string]interface{}{
		"exit_code":   result.ExitCode,
		"duration_ms": result.DurationMS,
		"truncated":   result.Truncated,
		"timed_out":   result.TimedOut,
	})
}
