// Package cmd wires Valet's CLI. Grounded on
// github.com/nextlevelbuilder/goclaw's cmd/root.go: the same
// cobra.Command tree shape (a default Run action plus a version
// subcommand) and a persistent --config flag. Valet drops the teacher's
// many channel/agent/onboarding subcommands — there's nothing here for
// them to manage. Unlike the teacher, --config is required (spec.md §6)
// and Execute distinguishes cobra usage errors (exit 2) from the
// post-parse startup/validation failures runServe exits 1 on.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X github.com/nextlevelbuilder/valet/cmd.Version=v1.0.0".
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "valet",
	Short: "Valet — a local fs/exec adapter for a remote agent",
	Long:  "Valet runs an HTTP JSON-RPC server bound to loopback, letting a remote agent read and write files and run allow-listed commands on this machine through an external tunnel.",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (required)")
	rootCmd.MarkPersistentFlagRequired("config")
	rootCmd.AddCommand(versionCmd())
}

func resolveConfigPath() string {
	return cfgFile
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("valet %s\n", Version)
		},
	}
}

// Execute runs the root command. rootCmd.Execute() itself only ever
// returns an error for cobra-level usage mistakes (an unknown flag, or the
// now-required --config missing) — runServe's own startup and validation
// failures call os.Exit(1) directly and never return control here. spec.md
// §6 reserves exit code 2 for the former and 1 for the latter.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
}
