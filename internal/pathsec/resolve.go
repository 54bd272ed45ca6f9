// Package pathsec canonicalizes caller-supplied paths and proves the final
// target lies inside a configured root, even in the presence of symbolic
// links and non-existent tails. Grounded on
// github.com/nextlevelbuilder/goclaw's internal/tools/filesystem.go
// (resolvePath, isPathInside, resolveThroughExistingAncestors,
// hasMutableSymlinkParent, checkHardlink), adapted from a single-mode
// "workspace read" resolver to spec.md §4.B's two-mode (Read/Write)
// contract and its PathOutsideRoot/NotFound/Io error taxonomy.
package pathsec

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/nextlevelbuilder/valet/internal/valeterr"
)

// Mode selects which of spec.md §4.B's two resolution contracts applies.
type Mode int

const (
	// ModeRead requires the full resolved path to exist.
	ModeRead Mode = iota
	// ModeWrite requires only the parent directory to exist and resolve
	// inside root; the final component need not exist.
	ModeWrite
)

// Resolve canonicalizes path relative to root and proves the result lies
// inside root. It returns a *valeterr.Error of kind PathOutsideRoot,
// NotFound, or Io on failure, or InvalidParams for an empty path.
func Resolve(path, root string, mode Mode) (string, error) {
	if path == "" {
		return "", valeterr.New(valeterr.InvalidParams, "path must not be empty")
	}

	var joined string
	if filepath.IsAbs(path) {
		joined = filepath.Clean(path)
	} else {
		joined = filepath.Clean(filepath.Join(root, path))
	}

	// Lexical ascent check before any I/O (spec.md §4.B step 2): a relative
	// "../" chain that would climb above root fails immediately even if the
	// filesystem can't yet tell us whether the target exists.
	if !isPathInside(joined, root) {
		return "", valeterr.New(valeterr.PathOutsideRoot, "path escapes root")
	}

	switch mode {
	case ModeWrite:
		return resolveForWrite(joined, root)
	default:
		return resolveForRead(joined, root)
	}
}

// resolveForRead requires the full path to exist and canonicalizes through
// every symlink on the way.
func resolveForRead(joined, root string) (string, error) {
	real, err := canonicalize(joined)
	if err != nil {
		if os.IsNotExist(err) {
			return "", valeterr.New(valeterr.NotFound, "file does not exist")
		}
		return "", valeterr.New(valeterr.Io, "cannot resolve path")
	}
	return finish(real, root)
}

// resolveForWrite requires only the parent directory to exist; the final
// component is appended without needing to exist itself.
func resolveForWrite(joined, root string) (string, error) {
	if real, err := canonicalize(joined); err == nil {
		return finish(real, root)
	} else if !os.IsNotExist(err) {
		return "", valeterr.New(valeterr.Io, "cannot resolve path")
	}

	parent := filepath.Dir(joined)
	realParent, err := canonicalize(parent)
	if err != nil {
		if os.IsNotExist(err) {
			return "", valeterr.New(valeterr.NotFound, "parent directory does not exist")
		}
		return "", valeterr.New(valeterr.Io, "cannot resolve parent directory")
	}
	real := filepath.Join(realParent, filepath.Base(joined))
	return finish(real, root)
}

// canonicalize resolves every existing ancestor of p through symlinks,
// including the broken-symlink case, grounded on the teacher's
// resolveThroughExistingAncestors.
func canonicalize(p string) (string, error) {
	real, err := filepath.EvalSymlinks(p)
	if err == nil {
		return real, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	// p doesn't exist outright — it may be a broken symlink, or a truly
	// non-existent path. Lstat distinguishes the two without following links.
	if linfo, lerr := os.Lstat(p); lerr == nil && linfo.Mode()&os.ModeSymlink != 0 {
		target, rerr := os.Readlink(p)
		if rerr != nil {
			return "", os.ErrNotExist
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(p), target)
		}
		target = filepath.Clean(target)
		return resolveThroughExistingAncestors(target)
	}
	return "", os.ErrNotExist
}

// resolveThroughExistingAncestors walks up from target to the deepest
// existing ancestor, canonicalizes that ancestor, and rebuilds the
// remaining path components on top of it. This catches chained symlinks
// (link1 -> link2 -> /outside) where an intermediate target escapes root.
func resolveThroughExistingAncestors(target string) (string, error) {
	if real, err := filepath.EvalSymlinks(target); err == nil {
		return real, nil
	}

	current := target
	var tail []string
	for {
		parent := filepath.Dir(current)
		if parent == current {
			return "", os.ErrNotExist
		}
		tail = append([]string{filepath.Base(current)}, tail...)
		current = parent

		if realParent, err := filepath.EvalSymlinks(current); err == nil {
			result := realParent
			for _, component := range tail {
				result = filepath.Join(result, component)
			}
			return result, nil
		}
	}
}

// finish applies the final prefix check (spec.md §4.B steps 4-5) and the
// path-level hardening the teacher carries for the same class of
// caller-controlled paths.
func finish(real, root string) (string, error) {
	if !isPathInside(real, root) {
		return "", valeterr.New(valeterr.PathOutsideRoot, "resolved path escapes root")
	}
	if hasMutableSymlinkParent(real) {
		return "", valeterr.New(valeterr.PathOutsideRoot, "path contains a mutable symlink component")
	}
	if err := checkHardlink(real); err != nil {
		return "", err
	}
	return real, nil
}

// isPathInside reports whether child is root or lies under it, with a
// path-separator boundary so "/rootdir/x" is never mistaken for a child of
// "/root".
func isPathInside(child, root string) bool {
	if child == root {
		return true
	}
	return strings.HasPrefix(child, root+string(filepath.Separator))
}

// hasMutableSymlinkParent rejects paths where a symlink component's parent
// directory is writable by this process — such a symlink could be rebound
// between resolution and actual use (TOCTOU).
func hasMutableSymlinkParent(path string) bool {
	clean := filepath.Clean(path)
	components := strings.Split(clean, string(filepath.Separator))
	current := string(filepath.Separator)
	for _, comp := range components {
		if comp == "" {
			continue
		}
		current = filepath.Join(current, comp)
		info, err := os.Lstat(current)
		if err != nil {
			break
		}
		if info.Mode()&os.ModeSymlink != 0 {
			parentDir := filepath.Dir(current)
			if syscall.Access(parentDir, 0x2 /* W_OK */) == nil {
				return true
			}
		}
	}
	return false
}

// checkHardlink rejects regular files with more than one hard link, to
// close off hardlink-based root escapes. Directories are exempt (they
// naturally carry nlink > 1 for "." entries in subdirectories).
func checkHardlink(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return nil // non-existent: caller's read/write will report it
	}
	if info.IsDir() {
		return nil
	}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		if stat.Nlink > 1 {
			return valeterr.New(valeterr.PathOutsideRoot, "hardlinked file not allowed")
		}
	}
	return nil
}
