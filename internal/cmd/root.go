package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/Iron-Ham/cadencehost/internal/config"
	"github.com/Iron-Ham/cadencehost/internal/errors"
	"github.com/Iron-Ham/cadencehost/internal/tui/styles"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "cadencehost",
	Short: "Cadence language service host",
	Long: `cadencehost runs the Cadence language server, connects a language
client to it, and keeps the pair alive across restarts and network switches.

Contract imports are resolved from a local registry so documents can be
checked against testnet, mainnet or the emulator without network access.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		writeError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

// writeError prints err labelled by its severity, with a retry hint for
// transient host failures.
func writeError(w io.Writer, err error) {
	label, style := "Error:", styles.ErrorMsg
	if errors.GetSeverity(err) < errors.SeverityError {
		label, style = "Warning:", styles.Warning
	}
	fmt.Fprintln(w, style.Render(label), err)
	if errors.IsUserFacing(err) && errors.IsRetryable(err) {
		fmt.Fprintln(w, styles.Muted.Render("This may be transient; run the command again."))
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/cadencehost/config.yaml)")
	rootCmd.PersistentFlags().String("network", "", "network to resolve and execute against (testnet, mainnet, emulator)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("network", rootCmd.PersistentFlags().Lookup("network"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/cadencehost")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CADENCEHOST")
	// e.g., CADENCEHOST_LIFECYCLE_POLL_INTERVAL_MS for lifecycle.poll_interval_ms
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
