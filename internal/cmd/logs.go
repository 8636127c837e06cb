package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Iron-Ham/cadencehost/internal/config"
	"github.com/Iron-Ham/cadencehost/internal/logging"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View host logs",
	Long: `View and filter the language host log.

By default, shows the last 50 entries. Use flags to filter and format
the output.

Examples:
  # Show everything logged by generation 3
  cadencehost logs -g 3 -n 0

  # Follow logs in real-time
  cadencehost logs -f

  # Filter by log level
  cadencehost logs --level warn

  # Show lifecycle logs from the last hour
  cadencehost logs --component lifecycle --since 1h

  # Search for specific patterns
  cadencehost logs --grep "exited|failed"`,
	RunE: runLogs,
}

var (
	logsDir        string
	logsTail       int
	logsFollow     bool
	logsLevel      string
	logsSince      string
	logsGrep       string
	logsGeneration uint64
	logsComponent  string
	logsNetwork    string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVar(&logsDir, "dir", "", "Log directory (default: logging.dir)")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter messages matching pattern (regex)")
	logsCmd.Flags().Uint64VarP(&logsGeneration, "generation", "g", 0, "Only show one lifecycle generation")
	logsCmd.Flags().StringVar(&logsComponent, "component", "", "Only show one component (lifecycle, service, client, ...)")
	logsCmd.Flags().StringVar(&logsNetwork, "network-filter", "", "Only show entries logged for one network")
}

// logQuery is a parsed set of logs flags.
type logQuery struct {
	filter logging.LogFilter
	grep   *regexp.Regexp
	tail   int
}

func parseLogQuery(now time.Time) (logQuery, error) {
	q := logQuery{
		tail: logsTail,
		filter: logging.LogFilter{
			Generation: logsGeneration,
			Component:  logsComponent,
			Network:    logsNetwork,
		},
	}
	if logsLevel != "" {
		q.filter.Level = logging.ParseLevel(logsLevel)
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return q, fmt.Errorf("invalid duration format: %w", err)
		}
		q.filter.Since = now.Add(-d)
	}
	if logsGrep != "" {
		re, err := regexp.Compile(logsGrep)
		if err != nil {
			return q, fmt.Errorf("invalid grep pattern: %w", err)
		}
		q.grep = re
	}
	return q, nil
}

// apply filters entries and keeps the last tail of them.
func (q logQuery) apply(entries []logging.LogEntry) []logging.LogEntry {
	entries = logging.FilterLogs(entries, q.filter)
	if q.grep != nil {
		var matched []logging.LogEntry
		for _, e := range entries {
			if q.grep.MatchString(e.Message) {
				matched = append(matched, e)
			}
		}
		entries = matched
	}
	if q.tail > 0 && len(entries) > q.tail {
		entries = entries[len(entries)-q.tail:]
	}
	return entries
}

func runLogs(cmd *cobra.Command, args []string) error {
	dir := logsDir
	if dir == "" {
		dir = config.Get().Logging.LogDir()
	}
	q, err := parseLogQuery(time.Now())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	logPath := filepath.Join(dir, logging.LogFileName)
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Fprintln(w, "No logs found.")
		fmt.Fprintln(w, "Logs are stored at:", logPath)
		return nil
	}

	if logsFollow {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return followLogs(ctx, w, logPath, q)
	}

	entries, err := logging.ReadLogs(dir)
	if err != nil {
		return err
	}
	entries = q.apply(entries)
	if len(entries) == 0 {
		fmt.Fprintln(w, "No matching log entries found.")
		return nil
	}
	return logging.WriteText(w, entries)
}

// followLogs implements tail -f behavior for the log file
func followLogs(ctx context.Context, w io.Writer, logPath string, q logQuery) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Seek to end of file
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	fmt.Fprintf(w, "Following logs... (Ctrl+C to stop)\n\n")

	q.tail = 0
	reader := bufio.NewReader(file)
	var partial string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				return fmt.Errorf("error reading log file: %w", err)
			}
			// No complete line yet, wait briefly and try again
			partial += line
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		line = partial + line
		partial = ""

		entries, _ := logging.ParseLogs(strings.NewReader(line))
		if err := logging.WriteText(w, q.apply(entries)); err != nil {
			return err
		}
	}
}
