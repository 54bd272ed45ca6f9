package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nextlevelbuilder/valet/internal/pathsec"
	"github.com/nextlevelbuilder/valet/internal/valeterr"
)

// WriteFileTool implements fs_write (spec.md §4.H). The write itself is
// grounded on github.com/nextlevelbuilder/goclaw's
// internal/sessions/manager.go Save method: write to a temp file in the
// destination directory, fsync, close, then os.Rename over the final
// path, so a reader never observes a partially-written file.
type WriteFileTool struct {
	root string
}

func NewWriteFileTool(root string) *WriteFileTool {
	return &WriteFileTool{root: root}
}

func (t *WriteFileTool) Name() string { return "fs_write" }
func (t *WriteFileTool) Description() string {
	return "Write content to a file under the configured root, replacing it atomically"
}

func (t *WriteFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path":        map[string]interface{}{"type": "string"},
			"content_b64": map[string]interface{}{"type": "string"},
			"mode":        map[string]interface{}{"type": "string", "description": "optional octal file mode, e.g. 0644"},
		},
		"required": []string{"path", "content_b64"},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	if err := checkFields(args, []string{"path", "content_b64"}, []string{"path", "content_b64", "mode"}); err != nil {
		return nil, err
	}
	path, err := stringField(args, "path")
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, valeterr.New(valeterr.InvalidParams, "path must not be empty")
	}
	contentB64, err := stringField(args, "content_b64")
	if err != nil {
		return nil, err
	}
	modeStr, err := stringField(args, "mode")
	if err != nil {
		return nil, err
	}

	content, err := base64.StdEncoding.DecodeString(contentB64)
	if err != nil {
		return nil, valeterr.New(valeterr.InvalidParams, "content_b64 is not valid base64")
	}

	var fileMode os.FileMode = 0644
	if modeStr != "" {
		parsed, err := strconv.ParseUint(modeStr, 8, 32)
		if err != nil {
			return nil, valeterr.New(valeterr.InvalidParams, "mode must be an octal string")
		}
		fileMode = os.FileMode(parsed)
	}

	resolved, err := pathsec.Resolve(path, t.root, pathsec.ModeWrite)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(resolved)
	tmp, err := os.CreateTemp(dir, "valet-write-*.tmp")
	if err != nil {
		return nil, valeterr.New(valeterr.Io, fmt.Sprintf("create temp file: %v", err))
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return nil, valeterr.New(valeterr.Io, fmt.Sprintf("write temp file: %v", err))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, valeterr.New(valeterr.Io, fmt.Sprintf("sync temp file: %v", err))
	}
	if err := tmp.Close(); err != nil {
		return nil, valeterr.New(valeterr.Io, fmt.Sprintf("close temp file: %v", err))
	}
	if err := os.Chmod(tmpPath, fileMode); err != nil {
		return nil, valeterr.New(valeterr.Io, fmt.Sprintf("chmod: %v", err))
	}
	if err := os.Rename(tmpPath, resolved); err != nil {
		return nil, valeterr.New(valeterr.Io, fmt.Sprintf("rename into place: %v", err))
	}
	cleanup = false

	return map[string]interface{}{
		"bytes_written": len(content),
	}, nil
}
