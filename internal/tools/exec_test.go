package tools

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/nextlevelbuilder/valet/internal/execsec"
	"github.com/nextlevelbuilder/valet/internal/stream"
	"github.com/nextlevelbuilder/valet/internal/valeterr"
)

func newTestExecTool(t *testing.T) *ExecTool {
	t.Helper()
	al, err := execsec.ResolveAllowList([]string{"echo"})
	if err != nil {
		t.Skipf("echo not available: %v", err)
	}
	return NewExecTool(al, t.TempDir(), nil, 2*time.Second, 5*time.Second, 4096)
}

func TestExecTool_RunsAllowedCommand(t *testing.T) {
	tool := newTestExecTool(t)
	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"cmd":  "echo",
		"args": []interface{}{"hi"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["exit_code"] != 0 {
		t.Fatalf("expected exit 0, got %v", result["exit_code"])
	}
}

func TestExecTool_DeniesCommandNotOnAllowList(t *testing.T) {
	tool := newTestExecTool(t)
	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"cmd":  "rm",
		"args": []interface{}{"-rf", "/"},
	})
	ve, ok := valeterr.As(err)
	if !ok || ve.Kind != valeterr.ExecDenied {
		t.Fatalf("expected ExecDenied, got %v", err)
	}
}

func TestExecTool_ResolvedCmd_ReturnsAbsolutePath(t *testing.T) {
	tool := newTestExecTool(t)
	got := tool.ResolvedCmd(map[string]interface{}{
		"cmd":  "echo",
		"args": []interface{}{"hi"},
	})
	if got == "" || got == "echo" {
		t.Fatalf("expected resolved absolute path, got %q", got)
	}
	want, err := tool.allowList.Lookup("echo")
	if err != nil {
		t.Fatalf("unexpected lookup error: %v", err)
	}
	if got != want {
		t.Fatalf("ResolvedCmd = %q, want %q", got, want)
	}
}

func TestExecTool_ResolvedCmd_EmptyForDeniedCommand(t *testing.T) {
	tool := newTestExecTool(t)
	got := tool.ResolvedCmd(map[string]interface{}{
		"cmd":  "rm",
		"args": []interface{}{"-rf", "/"},
	})
	if got != "" {
		t.Fatalf("expected empty resolved path for denied command, got %q", got)
	}
}

func TestExecTool_Stream_EmitsStartAndEnd(t *testing.T) {
	tool := newTestExecTool(t)
	var buf bytes.Buffer
	enc := stream.NewEncoder(&buf)
	err := tool.Stream(context.Background(), "req-1", map[string]interface{}{
		"cmd":  "echo",
		"args": []interface{}{"hi"},
	}, enc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !bytes.Contains([]byte(out), []byte(`"event":"start"`)) {
		t.Fatalf("expected start event, got: %s", out)
	}
	if !bytes.Contains([]byte(out), []byte(`"event":"end"`)) {
		t.Fatalf("expected end event, got: %s", out)
	}
}
