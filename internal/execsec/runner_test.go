package execsec

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/nextlevelbuilder/valet/internal/valeterr"
)

func TestRun_EchoSucceeds(t *testing.T) {
	path, err := lookPathOrSkip(t, "echo")
	if err != nil {
		return
	}
	result, err := Run(context.Background(), path, []string{"hi"}, Options{
		WorkDir:  t.TempDir(),
		Timeout:  2 * time.Second,
		MaxBytes: 1024,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d", result.ExitCode)
	}
	if string(result.Stdout) != "hi\n" {
		t.Fatalf("unexpected stdout: %q", result.Stdout)
	}
	if result.Truncated || result.TimedOut {
		t.Fatalf("unexpected flags: truncated=%v timed_out=%v", result.Truncated, result.TimedOut)
	}
}

func TestRun_TimeoutKillsAndReaps(t *testing.T) {
	path, err := lookPathOrSkip(t, "sleep")
	if err != nil {
		return
	}
	start := time.Now()
	result, err := Run(context.Background(), path, []string{"60"}, Options{
		WorkDir:  t.TempDir(),
		Timeout:  300 * time.Millisecond,
		MaxBytes: 1024,
	})
	elapsed := time.Since(start)

	ve, ok := valeterr.As(err)
	if !ok || ve.Kind != valeterr.ExecTimeout {
		t.Fatalf("expected ExecTimeout, got %v", err)
	}
	if !result.TimedOut {
		t.Fatalf("expected TimedOut=true")
	}
	if elapsed >= 2*time.Second {
		t.Fatalf("expected kill well before 2s, took %v", elapsed)
	}
}

func TestRun_OutputTruncatedAtCap(t *testing.T) {
	path, err := lookPathOrSkip(t, "yes")
	if err != nil {
		return
	}
	result, _ := Run(context.Background(), path, nil, Options{
		WorkDir:  t.TempDir(),
		Timeout:  1 * time.Second,
		MaxBytes: 1024,
	})
	if !result.Truncated {
		t.Fatalf("expected truncated=true")
	}
	if len(result.Stdout) > 1024 {
		t.Fatalf("stdout exceeds cap: %d bytes", len(result.Stdout))
	}
}

func lookPathOrSkip(t *testing.T, name string) (string, error) {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path, err
}
