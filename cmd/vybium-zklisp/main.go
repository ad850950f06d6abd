package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vybium-zklisp",
	Short: "Provable symbolic-expression language toolchain",
	Long: `vybium-zklisp evaluates symbolic expressions on a deterministic
step machine and produces folded proofs that an evaluation happened
exactly as claimed. Verification needs only the proof and the claimed
state digests, never the program.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.Version = version

	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(proveCmd)
	rootCmd.AddCommand(verifyCmd)

	rootCmd.PersistentFlags().String("config", "", "path to zklisp.toml (default: search upward from the working directory)")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

const version = "0.1.0"
