package rpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nextlevelbuilder/valet/internal/tools"
)

type stubTool struct{}

func (stubTool) Name() string        { return "stub" }
func (stubTool) Description() string { return "a stub tool" }
func (stubTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
func (stubTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{"ok": true}, nil
}

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(tools.NewRegistry(stubTool{}))
}

func TestDispatch_ToolsList(t *testing.T) {
	d := newTestDispatcher()
	req, err := ParseRequest([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	resp := d.Dispatch(context.Background(), req)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result type: %T", resp.Result)
	}
	descriptors, ok := result["tools"].([]tools.Descriptor)
	if !ok || len(descriptors) != 1 {
		t.Fatalf("expected one tool descriptor, got %v", result["tools"])
	}
}

func TestDispatch_ToolsCallSuccess(t *testing.T) {
	d := newTestDispatcher()
	req, err := ParseRequest([]byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"stub","arguments":{}}}`))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	resp := d.Dispatch(context.Background(), req)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}

func TestDispatch_UnknownToolFailsToolNotFound(t *testing.T) {
	d := newTestDispatcher()
	req, _ := ParseRequest([]byte(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"nope","arguments":{}}}`))
	resp := d.Dispatch(context.Background(), req)
	if resp.Error == nil {
		t.Fatal("expected error for unknown tool")
	}
	if resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found code, got %d", resp.Error.Code)
	}
	if kind := resp.Error.Data.(map[string]string)["kind"]; kind != "ToolNotFound" {
		t.Fatalf("expected kind ToolNotFound, got %q", kind)
	}
}

func TestDispatch_UnknownMethodFails(t *testing.T) {
	d := newTestDispatcher()
	req, _ := ParseRequest([]byte(`{"jsonrpc":"2.0","id":4,"method":"bogus"}`))
	resp := d.Dispatch(context.Background(), req)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found error, got %+v", resp.Error)
	}
}

func TestParseRequest_RejectsMalformedJSON(t *testing.T) {
	_, err := ParseRequest([]byte(`{not json`))
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParseRequest_RejectsMissingMethod(t *testing.T) {
	_, err := ParseRequest([]byte(`{"jsonrpc":"2.0","id":1}`))
	if err == nil {
		t.Fatal("expected error for missing method")
	}
}

func TestResponse_MarshalsCleanly(t *testing.T) {
	d := newTestDispatcher()
	req, _ := ParseRequest([]byte(`{"jsonrpc":"2.0","id":5,"method":"tools/list"}`))
	resp := d.Dispatch(context.Background(), req)
	if _, err := json.Marshal(resp); err != nil {
		t.Fatalf("response failed to marshal: %v", err)
	}
}
