package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	vybiumzklisp "github.com/vybium/vybium-zklisp/pkg/vybium-zklisp"
)

var proveCmd = &cobra.Command{
	Use:   "prove [flags] file.zl",
	Short: "Evaluate an expression and produce a proof",
	Long: `Prove runs an expression to termination and folds the whole
evaluation trace into one proof. The proof embeds the public claim:
the initial and final state digests and the step count.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProve,
}

func init() {
	proveCmd.Flags().StringP("expr", "e", "", "prove this expression instead of a file")
	proveCmd.Flags().StringP("out", "o", "proof.bin", "write the proof to this file")
}

func runProve(cmd *cobra.Command, args []string) error {
	if err := configureColor(cmd); err != nil {
		return err
	}
	logger, closeLogs, err := setupLogger(cmd)
	if err != nil {
		return err
	}
	defer closeLogs()

	source, err := readSource(cmd, args)
	if err != nil {
		return err
	}
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	session, err := vybiumzklisp.NewSession(cfg, logger)
	if err != nil {
		return err
	}
	expr, err := session.Load(source)
	if err != nil {
		return err
	}
	res, proof, err := session.Prove(cmd.Context(), expr)
	if err != nil {
		return err
	}

	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to get out flag: %w", err)
	}
	data, err := proof.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to serialize proof: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write proof file: %w", err)
	}

	if res.Sentinel != "" {
		fmt.Fprintln(os.Stdout, sentinelColor.Sprintf("<error: %s>", res.Sentinel))
	} else {
		fmt.Fprintln(os.Stdout, res.Rendered)
	}
	fmt.Fprintln(os.Stderr, dimColor.Sprintf("claim: initial=%d final=%d steps=%d",
		res.InitialDigest.Value(), res.FinalDigest.Value(), res.Steps))
	fmt.Fprintln(os.Stderr, okColor.Sprintf("proof written to %s (%d bytes)", outPath, len(data)))
	return nil
}
