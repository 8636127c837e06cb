package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LogEntry is one parsed line of host.log.
type LogEntry struct {
	Timestamp  time.Time      `json:"time"`
	Level      string         `json:"level"`
	Message    string         `json:"msg"`
	Generation uint64         `json:"generation,omitempty"`
	Component  string         `json:"component,omitempty"`
	Network    string         `json:"network,omitempty"`
	Attrs      map[string]any `json:"attrs,omitempty"`
}

// LogFilter selects entries. Zero fields do not filter; criteria are ANDed.
type LogFilter struct {
	// Level is the minimum level (DEBUG < INFO < WARN < ERROR).
	Level string
	// Generation restricts to a single lifecycle generation when non-zero.
	Generation uint64
	Component  string
	Network    string
	Since      time.Time
	// MessageContains is a substring match on the message.
	MessageContains string
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ReadLogs parses {dir}/host.log, skipping malformed lines, and returns
// the entries sorted by time.
func ReadLogs(dir string) ([]LogEntry, error) {
	f, err := os.Open(filepath.Join(dir, LogFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no log file in %s: %w", dir, err)
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseLogs(f)
}

// ParseLogs parses JSON log lines from r.
func ParseLogs(r io.Reader) ([]LogEntry, error) {
	var entries []LogEntry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseLogEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

func parseLogEntry(line string) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	entry := LogEntry{Attrs: make(map[string]any)}
	for k, v := range raw {
		switch k {
		case "time":
			if s, ok := v.(string); ok {
				entry.Timestamp, _ = time.Parse(time.RFC3339Nano, s)
			}
		case "level":
			entry.Level, _ = v.(string)
		case "msg":
			entry.Message, _ = v.(string)
		case "generation":
			if n, ok := v.(float64); ok && n >= 0 {
				entry.Generation = uint64(n)
			}
		case "component":
			entry.Component, _ = v.(string)
		case "network":
			entry.Network, _ = v.(string)
		default:
			entry.Attrs[k] = v
		}
	}
	return entry, nil
}

// FilterLogs returns the entries matching filter.
func FilterLogs(entries []LogEntry, filter LogFilter) []LogEntry {
	if filter == (LogFilter{}) {
		return entries
	}
	var out []LogEntry
	for _, e := range entries {
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

func (f LogFilter) matches(e LogEntry) bool {
	if f.Level != "" {
		min, okMin := levelOrder[strings.ToUpper(f.Level)]
		lvl, okLvl := levelOrder[e.Level]
		if okMin && okLvl && lvl < min {
			return false
		}
	}
	if f.Generation != 0 && e.Generation != f.Generation {
		return false
	}
	if f.Component != "" && e.Component != f.Component {
		return false
	}
	if f.Network != "" && e.Network != f.Network {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if f.MessageContains != "" && !strings.Contains(e.Message, f.MessageContains) {
		return false
	}
	return true
}

// WriteText renders entries one per line:
//
//	[15:04:05.000] INFO - msg (gen=2, component=lifecycle) {"k":"v"}
func WriteText(w io.Writer, entries []LogEntry) error {
	for _, e := range entries {
		parts := []string{
			fmt.Sprintf("[%s]", e.Timestamp.Format("15:04:05.000")),
			e.Level, "-", e.Message,
		}

		var ctx []string
		if e.Generation != 0 {
			ctx = append(ctx, fmt.Sprintf("gen=%d", e.Generation))
		}
		if e.Component != "" {
			ctx = append(ctx, "component="+e.Component)
		}
		if e.Network != "" {
			ctx = append(ctx, "network="+e.Network)
		}
		if len(ctx) > 0 {
			parts = append(parts, "("+strings.Join(ctx, ", ")+")")
		}
		if len(e.Attrs) > 0 {
			if b, err := json.Marshal(e.Attrs); err == nil {
				parts = append(parts, string(b))
			}
		}

		if _, err := fmt.Fprintln(w, strings.Join(parts, " ")); err != nil {
			return fmt.Errorf("failed to write log entry: %w", err)
		}
	}
	return nil
}
