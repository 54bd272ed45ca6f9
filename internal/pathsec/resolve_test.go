package pathsec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nextlevelbuilder/valet/internal/valeterr"
)

func mustKind(t *testing.T, err error, want valeterr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error of kind %s, got nil", want)
	}
	ve, ok := valeterr.As(err)
	if !ok {
		t.Fatalf("expected *valeterr.Error, got %T: %v", err, err)
	}
	if ve.Kind != want {
		t.Fatalf("expected kind %s, got %s (%s)", want, ve.Kind, ve.Message)
	}
}

func TestResolve_LexicalEscapeRejectedBeforeIO(t *testing.T) {
	root := t.TempDir()
	_, err := Resolve("../etc/passwd", root, ModeRead)
	mustKind(t, err, valeterr.PathOutsideRoot)
}

func TestResolve_SimpleReadWithinRoot(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "sub", "file.txt")
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}

	resolved, err := Resolve("sub/file.txt", root, ModeRead)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != target {
		t.Fatalf("expected %s, got %s", target, resolved)
	}
}

func TestResolve_ReadMissingFails(t *testing.T) {
	root := t.TempDir()
	_, err := Resolve("missing.txt", root, ModeRead)
	mustKind(t, err, valeterr.NotFound)
}

func TestResolve_WriteAllowsMissingFinalComponent(t *testing.T) {
	root := t.TempDir()
	resolved, err := Resolve("new-file.txt", root, ModeWrite)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != filepath.Join(root, "new-file.txt") {
		t.Fatalf("unexpected resolution: %s", resolved)
	}
}

func TestResolve_WriteMissingParentFails(t *testing.T) {
	root := t.TempDir()
	_, err := Resolve("nosuchdir/new-file.txt", root, ModeWrite)
	mustKind(t, err, valeterr.NotFound)
}

func TestResolve_SymlinkEscapeRejectedAfterResolution(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(root, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Fatal(err)
	}

	_, err := Resolve("link/secret.txt", root, ModeRead)
	mustKind(t, err, valeterr.PathOutsideRoot)
}

func TestResolve_SymlinkWithinRootAllowed(t *testing.T) {
	root := t.TempDir()
	realDir := filepath.Join(root, "real")
	if err := os.Mkdir(realDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(realDir, "f.txt"), []byte("ok"), 0644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(root, "link")
	if err := os.Symlink(realDir, link); err != nil {
		t.Fatal(err)
	}

	resolved, err := Resolve("link/f.txt", root, ModeRead)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != filepath.Join(realDir, "f.txt") {
		t.Fatalf("unexpected resolution: %s", resolved)
	}
}

func TestResolve_AbsolutePathOutsideRootRejected(t *testing.T) {
	root := t.TempDir()
	_, err := Resolve("/etc/passwd", root, ModeRead)
	mustKind(t, err, valeterr.PathOutsideRoot)
}
