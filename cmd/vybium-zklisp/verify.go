package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	vybiumzklisp "github.com/vybium/vybium-zklisp/pkg/vybium-zklisp"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [flags] proof.bin",
	Short: "Verify a proof against its claim",
	Long: `Verify checks a proof file without re-running the evaluation.
By default the claim embedded in the proof is checked; pass --initial,
--final and --steps to assert an externally supplied claim instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().String("initial", "", "expected initial state digest (decimal)")
	verifyCmd.Flags().String("final", "", "expected final state digest (decimal)")
	verifyCmd.Flags().Int("steps", 0, "expected step count")
}

func runVerify(cmd *cobra.Command, args []string) error {
	if err := configureColor(cmd); err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read proof file: %w", err)
	}
	var proof vybiumzklisp.Proof
	if err := proof.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("failed to decode proof: %w", err)
	}

	claim := proof.Claim
	initial, final, steps := claim.InitialDigest, claim.FinalDigest, claim.Steps
	if initial, err = digestFlag(cmd, "initial", initial); err != nil {
		return err
	}
	if final, err = digestFlag(cmd, "final", final); err != nil {
		return err
	}
	if cmd.Flags().Changed("steps") {
		if steps, err = cmd.Flags().GetInt("steps"); err != nil {
			return fmt.Errorf("failed to get steps flag: %w", err)
		}
	}

	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, dimColor.Sprintf("claim: initial=%d final=%d steps=%d",
		initial.Value(), final.Value(), steps))
	if err := vybiumzklisp.VerifyWithReason(cfg, initial, final, steps, &proof); err != nil {
		fmt.Fprintln(os.Stdout, errColor.Sprint("proof rejected"))
		return err
	}
	fmt.Fprintln(os.Stdout, okColor.Sprint("proof verified"))
	return nil
}

func digestFlag(cmd *cobra.Command, name string, fallback field.Element) (field.Element, error) {
	text, err := cmd.Flags().GetString(name)
	if err != nil {
		return field.Zero, fmt.Errorf("failed to get %s flag: %w", name, err)
	}
	if text == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return field.Zero, fmt.Errorf("invalid %s digest: %w", name, err)
	}
	return field.New(v), nil
}
