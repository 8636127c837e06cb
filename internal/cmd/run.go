package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/Iron-Ham/cadencehost/internal/config"
	"github.com/Iron-Ham/cadencehost/internal/errors"
	"github.com/Iron-Ham/cadencehost/internal/network"
	"github.com/Iron-Ham/cadencehost/internal/sdk"
	"github.com/Iron-Ham/cadencehost/internal/tui/styles"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Execute a Cadence script against the selected network",
	Long: `Execute a script on the network's access node and print the returned
JSON-Cadence value. Arguments are given as Type:value.

Transactions need a signed-in wallet, which the command line does not
provide; they are reported as unauthenticated.

Examples:
  cadencehost run scripts/get_balance.cdc --arg Address:0x01
  cadencehost run --network mainnet scripts/total_supply.cdc`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var runArgs []string

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringArrayVarP(&runArgs, "arg", "a", nil, "template argument as Type:value (repeatable)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	code, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	values, err := sdk.ParseArgs(runArgs)
	if err != nil {
		return err
	}

	info := sdk.Classify(string(code))
	if sdk.Disabled(info, true) {
		return fmt.Errorf("%w: %s", errors.ErrUnsupportedTemplate, sdk.ButtonLabel(info.Type, info.Signers))
	}
	if len(values) != len(info.Args) {
		return fmt.Errorf("%s declares %d %s, got %d", args[0], len(info.Args), plural(len(info.Args), "argument"), len(values))
	}

	client, err := newSDKClient(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.SDK.Timeout())
	defer cancel()

	result, err := client.Execute(ctx, string(code), sdk.TransactionOptions{
		Args:         values,
		ComputeLimit: uint64(cfg.SDK.ComputeLimit),
	})
	if errors.Is(err, errors.ErrNotAuthenticated) {
		return fmt.Errorf("%s needs a signed-in wallet: %w", sdk.ButtonLabel(info.Type, info.Signers), err)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), styles.SuccessMsg.Render(result.String()))
	return nil
}

// newSDKClient creates an access node client for the configured network.
func newSDKClient(cfg *config.Config) (*sdk.Client, error) {
	n, err := network.Parse(cfg.Network)
	if err != nil {
		return nil, err
	}
	base := cfg.SDK.AccessNode
	if base == "" {
		base = n.AccessNode()
	}
	return sdk.NewClient(base, sdk.WithHTTPClient(&http.Client{Timeout: cfg.SDK.Timeout()})), nil
}
