package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	vybiumzklisp "github.com/vybium/vybium-zklisp/pkg/vybium-zklisp"
)

var evalCmd = &cobra.Command{
	Use:   "eval [flags] file.zl",
	Short: "Evaluate a symbolic expression",
	Long: `Eval reads one expression from a source file (or from --expr)
and runs it to termination, printing the final value. An evaluation
that reaches an error sentinel still completes; the sentinel prints
as the result.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringP("expr", "e", "", "evaluate this expression instead of a file")
	evalCmd.Flags().Bool("stats", false, "print step count and emitted values")
}

func runEval(cmd *cobra.Command, args []string) error {
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
	res, err := session.Evaluate(cmd.Context(), expr)
	if err != nil {
		return err
	}

	if res.Sentinel != "" {
		fmt.Fprintln(os.Stdout, sentinelColor.Sprintf("<error: %s>", res.Sentinel))
	} else {
		fmt.Fprintln(os.Stdout, res.Rendered)
	}

	stats, _ := cmd.Flags().GetBool("stats")
	if stats {
		printStats(session, res)
	}
	return nil
}

func printStats(session *vybiumzklisp.Session, res *vybiumzklisp.Result) {
	fmt.Fprintln(os.Stderr, dimColor.Sprintf("steps: %d", res.Steps))
	for i, p := range res.Emitted {
		text, err := session.Render(p)
		if err != nil {
			text = fmt.Sprintf("<unrenderable: %v>", err)
		}
		fmt.Fprintln(os.Stderr, dimColor.Sprintf("emit[%d]: %s", i, text))
	}
}

// readSource resolves the expression text from --expr or a file path.
func readSource(cmd *cobra.Command, args []string) (string, error) {
	expr, err := cmd.Flags().GetString("expr")
	if err != nil {
		return "", fmt.Errorf("failed to get expr flag: %w", err)
	}
	if expr != "" {
		if len(args) > 0 {
			return "", fmt.Errorf("cannot give both --expr and a source file")
		}
		return expr, nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("no expression: give a source file or --expr")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read source file: %w", err)
	}
	return string(data), nil
}
