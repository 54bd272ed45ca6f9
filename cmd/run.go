package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nextlevelbuilder/valet/internal/audit"
	"github.com/nextlevelbuilder/valet/internal/config"
	"github.com/nextlevelbuilder/valet/internal/execsec"
	"github.com/nextlevelbuilder/valet/internal/gateway"
	"github.com/nextlevelbuilder/valet/internal/ratelimit"
	"github.com/nextlevelbuilder/valet/internal/rpc"
	"github.com/nextlevelbuilder/valet/internal/tools"
)

// runServe is the default action: load config, build every component,
// and serve until SIGINT/SIGTERM. Grounded on the teacher's runGateway
// (cmd/gateway.go) for the overall shape — structured logging setup,
// config load with a hard exit on failure, then signal-driven shutdown
// — trimmed to the components Valet actually has.
func runServe() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}

	allowList, err := execsec.ResolveAllowList(cfg.Exec.AllowedCmds)
	if err != nil {
		slog.Error("failed to resolve exec allow-list", "error", err)
		os.Exit(1)
	}

	maxStdoutBytes := int64(cfg.Limits.MaxStdoutKB) * 1024
	timeout := time.Duration(cfg.Exec.TimeoutS) * time.Second

	registry := tools.NewRegistry(
		tools.NewReadFileTool(cfg.Root.Dir, maxStdoutBytes),
		tools.NewWriteFileTool(cfg.Root.Dir),
		tools.NewExecTool(allowList, cfg.Root.Dir, passEnv(cfg.Exec.PassEnv), timeout, timeout, maxStdoutBytes),
	)

	dispatcher := rpc.NewDispatcher(registry)
	limiter := ratelimit.New(
		float64(cfg.Limits.RateCapacity), float64(cfg.Limits.RateRefillPS),
		float64(cfg.Limits.GlobalCap), float64(cfg.Limits.GlobalRefillS),
	)
	auditLog := audit.New(slog.Default())

	server := gateway.New(cfg, dispatcher, limiter, auditLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// passEnv builds the child environment from the configured allow-list,
// forwarding only the named variables from this process's own
// environment (spec.md §4.D: children never inherit the full parent
// environment by default).
func passEnv(names []string) []string {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []string
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 && want[parts[0]] {
			out = append(out, kv)
		}
	}
	return out
}
