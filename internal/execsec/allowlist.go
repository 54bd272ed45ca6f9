// Package execsec resolves Valet's command allow-list at startup and runs
// allow-listed children with strict resource caps. Grounded on
// github.com/nextlevelbuilder/goclaw's internal/tools/shell.go for the
// general shape of "deny-by-default external command execution", adapted
// from the teacher's runtime regex blocklist (which still shells out via
// `sh -c`) to spec.md §4.C's stronger contract: an allow-list resolved once
// at startup, argv passed verbatim, and the shell never invoked.
package execsec

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/nextlevelbuilder/valet/internal/valeterr"
)

// AllowList is the resolved, immutable set of commands Valet may spawn for
// the life of the process (spec.md §4.C).
type AllowList struct {
	byAbsPath  map[string]string // resolved absolute path -> resolved absolute path
	byBaseName map[string]string // base name -> resolved absolute path
}

// ResolveAllowList canonicalizes every configured entry to an absolute path
// at startup: absolute entries are stat-verified, bare names are resolved
// via exec.LookPath against PATH. Any entry that doesn't resolve aborts
// startup, per spec.md §3 ("unresolved names abort startup").
func ResolveAllowList(entries []string) (*AllowList, error) {
	al := &AllowList{
		byAbsPath:  make(map[string]string),
		byBaseName: make(map[string]string),
	}
	for _, entry := range entries {
		if entry == "" {
			return nil, fmt.Errorf("allowed_cmds entry must not be empty")
		}
		var resolved string
		if filepath.IsAbs(entry) {
			info, err := os.Stat(entry)
			if err != nil {
				return nil, fmt.Errorf("allowed command %q: %w", entry, err)
			}
			if info.IsDir() {
				return nil, fmt.Errorf("allowed command %q is a directory", entry)
			}
			resolved = entry
		} else {
			found, err := exec.LookPath(entry)
			if err != nil {
				return nil, fmt.Errorf("allowed command %q: not found on PATH: %w", entry, err)
			}
			resolved = found
		}
		al.byAbsPath[resolved] = resolved
		al.byBaseName[filepath.Base(resolved)] = resolved
	}
	return al, nil
}

// Lookup resolves a caller-supplied command name against the allow-list,
// matching by exact absolute path or exact base name (spec.md §9's open
// question: both forms are preserved, as the source appears to accept
// either). A miss is ExecDenied.
func (al *AllowList) Lookup(cmd string) (string, error) {
	if cmd == "" {
		return "", valeterr.New(valeterr.InvalidParams, "cmd must not be empty")
	}
	if filepath.IsAbs(cmd) {
		if resolved, ok := al.byAbsPath[filepath.Clean(cmd)]; ok {
			return resolved, nil
		}
		return "", valeterr.New(valeterr.ExecDenied, "command not allow-listed")
	}
	if resolved, ok := al.byBaseName[cmd]; ok {
		return resolved, nil
	}
	return "", valeterr.New(valeterr.ExecDenied, "command not allow-listed")
}
