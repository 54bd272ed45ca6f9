package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/nextlevelbuilder/valet/internal/pathsec"
	"github.com/nextlevelbuilder/valet/internal/valeterr"
)

// ReadFileTool implements fs_read (spec.md §4.H): resolve path through
// pathsec, read the full contents up to a byte cap, return base64.
type ReadFileTool struct {
	root        string
	maxReadBytes int64
}

func NewReadFileTool(root string, maxReadBytes int64) *ReadFileTool {
	return &ReadFileTool{root: root, maxReadBytes: maxReadBytes}
}

func (t *ReadFileTool) Name() string        { return "fs_read" }
func (t *ReadFileTool) Description() string { return "Read the contents of a file under the configured root" }

func (t *ReadFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to read, relative to root or absolute within it",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	if err := checkFields(args, []string{"path"}, []string{"path"}); err != nil {
		return nil, err
	}
	path, err := stringField(args, "path")
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, valeterr.New(valeterr.InvalidParams, "path must not be empty")
	}

	resolved, err := pathsec.Resolve(path, t.root, pathsec.ModeRead)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, valeterr.New(valeterr.Io, fmt.Sprintf("stat: %v", err))
	}
	if info.Size() > t.maxReadBytes {
		return nil, valeterr.New(valeterr.ResponseTooLarge, "file exceeds max_stdout_kb")
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return nil, valeterr.New(valeterr.Io, fmt.Sprintf("read: %v", err))
	}

	return map[string]interface{}{
		"content_b64": base64.StdEncoding.EncodeToString(content),
		"encoding":    "base64",
	}, nil
}
