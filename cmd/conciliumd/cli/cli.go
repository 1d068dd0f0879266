// Package cli assembles conciliumd's cobra command tree: a root command
// built from already-constructed dependencies, with leaf commands added
// via AddCommand rather than a subcommand-per-file framework.
package cli

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/concilium/ledgercore/internal/app"
	"github.com/concilium/ledgercore/internal/crypto"
)

// NewRootCommand builds conciliumd's root command, wiring the already
// constructed Application into its subcommands.
func NewRootCommand(a *app.Application, log *zap.SugaredLogger) *cobra.Command {
	root := &cobra.Command{
		Use:   "conciliumd",
		Short: "conciliumd runs the ledger's transaction-processing core against a staged block file.",
	}

	root.AddCommand(newApplyBlockCommand(a, log))
	root.AddCommand(newKeygenCommand())
	return root
}

func newApplyBlockCommand(a *app.Application, log *zap.SugaredLogger) *cobra.Command {
	var gasBudget uint64

	cmd := &cobra.Command{
		Use:   "apply-block [file]",
		Short: "Read a JSON block and UTXO snapshot from a file and run it through the processor.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			block, err := loadBlock(args[0])
			if err != nil {
				return err
			}

			reports, _, err := runBlock(a, block, gasBudget)
			for _, r := range reports {
				line, encErr := json.Marshal(r)
				if encErr != nil {
					log.Errorw("failed to encode receipt report", "error", encErr)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(line))
			}
			if err != nil {
				log.Warnw("one or more transactions failed", "error", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&gasBudget, "gas-budget", 1_000_000, "gas budget given to each contract deploy or invoke in this block")
	return cmd
}

func newKeygenCommand() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a secp256k1 key pair and print its derived address.",
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, err := crypto.NewWalletKey()
			if err != nil {
				return fmt.Errorf("generate key pair: %w", err)
			}

			if outFile != "" {
				if err := wallet.Save(outFile); err != nil {
					return fmt.Errorf("save key pair: %w", err)
				}
			}

			encoded, err := crypto.EncodeAddress(wallet.Address())
			if err != nil {
				return fmt.Errorf("encode address: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "address: %s\n", encoded)
			fmt.Fprintf(cmd.OutOrStdout(), "address (hex): %s\n", hex.EncodeToString(wallet.Address().Bytes()))
			if outFile != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "private key saved to: %s\n", outFile)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outFile, "out", "", "file to save the hex-encoded private key to (optional)")
	return cmd
}
