package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/Iron-Ham/cadencehost/internal/config"
	"github.com/Iron-Ham/cadencehost/internal/protocol"
	"github.com/Iron-Ham/cadencehost/internal/registry"
	"github.com/Iron-Ham/cadencehost/internal/service"
	"github.com/Iron-Ham/cadencehost/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <file-or-dir>...",
	Short: "Check Cadence files with the language server",
	Long: `Start the language server, open every given Cadence file and print the
diagnostics it reports. Directories are searched for .cdc files.

Imports are resolved from the local contract registry for the selected
network. The command fails when any file has errors.

Examples:
  cadencehost check contracts/
  cadencehost check --network mainnet scripts/get_balance.cdc`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

var checkTimeout time.Duration

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 30*time.Second, "how long to wait for diagnostics of each file")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no %s files found", registry.SourceExt)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	problems, err := checkFiles(ctx, cmd.OutOrStdout(), cfg, files, nil, checkTimeout)
	if err != nil {
		return err
	}
	if problems > 0 {
		return fmt.Errorf("%d %s found", problems, plural(problems, "error"))
	}
	return nil
}

// collectFiles expands directories into the .cdc files beneath them.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot check %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(path) == registry.SourceExt {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", arg, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// checkFiles runs one language host over files, writes their diagnostics
// to w and returns the number of errors reported. A nil factory spawns
// the configured language server.
func checkFiles(ctx context.Context, w io.Writer, cfg *config.Config, files []string, factory service.Factory, timeout time.Duration) (int, error) {
	h, err := newHost(cfg, hostOptions{editorBuffer: len(files) + 1, factory: factory})
	if err != nil {
		return 0, err
	}
	defer h.close()

	readyCtx, cancel := context.WithTimeout(ctx, cfg.Lifecycle.ReadyTimeout()+cfg.Lifecycle.AdapterStartTimeout())
	defer cancel()
	if err := h.start(readyCtx); err != nil {
		return 0, err
	}
	if err := h.manager.WaitReady(readyCtx); err != nil {
		return 0, fmt.Errorf("language host did not become ready: %w", err)
	}

	adapter := h.manager.Adapter()
	if adapter == nil {
		return 0, fmt.Errorf("language client is not available")
	}
	syncCtx, stopSync := context.WithCancel(ctx)
	defer stopSync()
	go func() { _ = adapter.Sync(syncCtx, h.editor) }()

	uris := make([]string, len(files))
	for i, path := range files {
		text, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("failed to read %s: %w", path, err)
		}
		uris[i] = fileURI(path)
		if err := h.editor.SetText(ctx, uris[i], string(text)); err != nil {
			return 0, err
		}
	}

	problems := 0
	for i, uri := range uris {
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		diags, err := h.editor.WaitDiagnostics(waitCtx, uri)
		cancel()
		if err != nil {
			return problems, fmt.Errorf("no diagnostics for %s: %w", files[i], err)
		}
		problems += writeDiagnostics(w, files[i], diags)
	}
	return problems, nil
}

// writeDiagnostics prints the diagnostics of one file and returns how many
// are errors.
func writeDiagnostics(w io.Writer, path string, diags []protocol.Diagnostic) int {
	if len(diags) == 0 {
		fmt.Fprintf(w, "%s %s\n", styles.SuccessMsg.Render("✓"), path)
		return 0
	}

	sorted := append([]protocol.Diagnostic(nil), diags...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Range.Start, sorted[j].Range.Start
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Character < b.Character
	})

	errs := 0
	fmt.Fprintln(w, styles.Text.Bold(true).Render(path))
	for _, d := range sorted {
		if d.Severity == protocol.SeverityError {
			errs++
		}
		sev := lipgloss.NewStyle().Foreground(styles.SeverityColor(int(d.Severity))).Render(d.Severity.String())
		pos := fmt.Sprintf("%d:%d", d.Range.Start.Line+1, d.Range.Start.Character+1)
		fmt.Fprintf(w, "  %s %s %s\n", styles.Muted.Render(pos), sev, d.Message)
	}
	return errs
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
