package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/Iron-Ham/cadencehost/internal/sdk"
	"github.com/Iron-Ham/cadencehost/internal/tui/styles"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <file>...",
	Short: "Show the template type and arguments of Cadence files",
	Long: `Classify each file as a script, transaction or contract and show the
action available for it, its signer count and its declared arguments.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	for i, path := range args {
		code, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if i > 0 {
			fmt.Fprintln(w)
		}
		writeTemplateInfo(w, path, sdk.Classify(string(code)))
	}
	return nil
}

func writeTemplateInfo(w io.Writer, path string, info sdk.TemplateInfo) {
	fmt.Fprintln(w, styles.Title.Render(path))
	fmt.Fprintf(w, "%s%s\n", styles.Label.Render("Type"), info.Type)

	action := styles.Primary.Render(sdk.ButtonLabel(info.Type, info.Signers))
	if sdk.Disabled(info, true) {
		action = styles.Muted.Render(sdk.ButtonLabel(info.Type, info.Signers) + " (disabled)")
	}
	fmt.Fprintf(w, "%s%s\n", styles.Label.Render("Action"), action)

	if info.Type == sdk.TypeTransaction {
		fmt.Fprintf(w, "%s%d\n", styles.Label.Render("Signers"), info.Signers)
		wallet := "no"
		if sdk.SignableWithWallet(info) {
			wallet = "yes"
		}
		fmt.Fprintf(w, "%s%s\n", styles.Label.Render("Wallet"), wallet)
	}

	if len(info.Args) == 0 {
		return
	}
	fmt.Fprintln(w, styles.Label.Render("Arguments"))
	for _, a := range info.Args {
		fmt.Fprintf(w, "  %s: %s\n", a.Name, styles.Secondary.Render(a.Type))
	}
}
