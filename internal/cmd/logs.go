package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kirbytools/buildwatch/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View buildwatch logs",
	Long: `View and filter the buildwatch log file.

Logs are only written to a file when logging.dir is set (or --log-dir is
passed); otherwise they go to stderr.

Examples:
  # Show the last 50 lines
  buildwatch logs

  # Show everything for one build
  buildwatch logs -b 6f1c2a9e -n 0

  # Follow logs in real-time
  buildwatch logs -f

  # Filter by log level
  buildwatch logs --level warn

  # Show logs from the last hour
  buildwatch logs --since 1h

  # Search for specific patterns
  buildwatch logs --grep "phase|spawn"`,
	RunE: runLogs,
}

var (
	logsBuildID string
	logsTail    int
	logsFollow  bool
	logsLevel   string
	logsSince   string
	logsGrep    string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVarP(&logsBuildID, "build", "b", "", "Only show entries for this build ID (prefix match)")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of lines to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter logs matching pattern (regex)")
}

// logEntry is one JSON line written by the logging package. Attributes
// other than the well-known ones land in Extra.
type logEntry struct {
	Time      time.Time
	Level     string
	Msg       string
	BuildID   string
	Tool      string
	Component string
	Extra     map[string]any
}

func (e *logEntry) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	take := func(key string) string {
		v, _ := fields[key].(string)
		delete(fields, key)
		return v
	}
	if ts := take("time"); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return fmt.Errorf("bad time %q: %w", ts, err)
		}
		e.Time = t
	}
	e.Level = take("level")
	e.Msg = take("msg")
	e.BuildID = take("build_id")
	e.Tool = take("tool")
	e.Component = take("component")
	if len(fields) > 0 {
		e.Extra = fields
	}
	return nil
}

// logFilter selects which entries are shown
type logFilter struct {
	minLevel int
	since    time.Time
	buildID  string
	grep     *regexp.Regexp
}

var levelStyles = map[string]lipgloss.Style{
	logging.LevelDebug: lipgloss.NewStyle().Foreground(mutedColor),
	logging.LevelInfo:  lipgloss.NewStyle().Foreground(watchingColor),
	logging.LevelWarn:  lipgloss.NewStyle().Foreground(buildingColor),
	logging.LevelError: lipgloss.NewStyle().Foreground(errorColor),
}

// levelPriority ranks a level name; unknown names rank -1.
func levelPriority(level string) int {
	return slices.Index(logging.ValidLevels(), strings.ToUpper(level))
}

// formatLogEntry formats a log entry for terminal output
func formatLogEntry(paint painter, entry *logEntry) string {
	var sb strings.Builder

	sb.WriteString(paint.muted("[" + entry.Time.Format("15:04:05.000") + "]"))

	level := strings.ToUpper(entry.Level)
	sb.WriteString(" ")
	if style, ok := levelStyles[level]; ok && paint.color {
		sb.WriteString(style.Render("[" + level + "]"))
	} else {
		sb.WriteString("[" + level + "]")
	}

	sb.WriteString(" ")
	sb.WriteString(entry.Msg)

	for _, kv := range [][2]string{
		{"build_id", entry.BuildID},
		{"tool", entry.Tool},
		{"component", entry.Component},
	} {
		if kv[1] != "" {
			sb.WriteString(" ")
			sb.WriteString(paint.muted(kv[0] + "="))
			sb.WriteString(kv[1])
		}
	}

	// Extra fields, sorted so output is stable
	keys := make([]string, 0, len(entry.Extra))
	for k := range entry.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(" ")
		sb.WriteString(paint.muted(k + "="))
		sb.WriteString(fmt.Sprintf("%v", entry.Extra[k]))
	}

	return sb.String()
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()

	if cfg.Logging.Dir == "" {
		_, _ = fmt.Fprintln(w, "File logging is disabled; set logging.dir to keep logs.")
		return nil
	}
	logPath := filepath.Join(cfg.Logging.Dir, logging.LogFileName)
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		_, _ = fmt.Fprintln(w, "No logs found.")
		_, _ = fmt.Fprintln(w, "Logs are stored at:", logPath)
		return nil
	}

	filter, err := newLogFilter(logsLevel, logsSince, logsBuildID, logsGrep, time.Now())
	if err != nil {
		return err
	}

	if logsFollow {
		return followLogs(cmd.Context(), w, logPath, filter)
	}
	return displayLogs(w, logPath, logsTail, filter)
}

func newLogFilter(level, since, buildID, grep string, now time.Time) (logFilter, error) {
	f := logFilter{minLevel: -1, buildID: buildID}
	if level != "" {
		f.minLevel = levelPriority(level)
		if f.minLevel < 0 {
			return f, fmt.Errorf("invalid level %q: expected debug, info, warn or error", level)
		}
	}
	if since != "" {
		d, err := time.ParseDuration(since)
		if err != nil {
			return f, fmt.Errorf("invalid duration format: %w", err)
		}
		f.since = now.Add(-d)
	}
	if grep != "" {
		re, err := regexp.Compile(grep)
		if err != nil {
			return f, fmt.Errorf("invalid grep pattern: %w", err)
		}
		f.grep = re
	}
	return f, nil
}

// displayLogs reads the log file and displays filtered entries
func displayLogs(w io.Writer, logPath string, tail int, filter logFilter) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	entries, err := collectLogs(file, newPainter(w), filter)
	if err != nil {
		return err
	}

	if tail > 0 && len(entries) > tail {
		entries = entries[len(entries)-tail:]
	}
	for _, entry := range entries {
		_, _ = fmt.Fprintln(w, entry)
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "No matching log entries found.")
	}
	return nil
}

// collectLogs formats every entry in r that passes filter. Lines that are
// not JSON are kept as-is.
func collectLogs(r io.Reader, paint painter, filter logFilter) ([]string, error) {
	var entries []string
	scanner := bufio.NewScanner(r)

	// Increase buffer size for potentially long log lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var entry logEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			entries = append(entries, line)
			continue
		}
		if !filter.passes(&entry) {
			continue
		}
		entries = append(entries, formatLogEntry(paint, &entry))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}
	return entries, nil
}

// followLogs implements tail -f behavior for the log file
func followLogs(ctx context.Context, w io.Writer, logPath string, filter logFilter) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	_, _ = fmt.Fprintf(w, "Following logs... (Ctrl+C to stop)\n\n")

	paint := newPainter(w)
	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// No new data, wait briefly and try again
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(100 * time.Millisecond):
				}
				continue
			}
			return fmt.Errorf("error reading log file: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var entry logEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			_, _ = fmt.Fprintln(w, line)
			continue
		}
		if !filter.passes(&entry) {
			continue
		}
		_, _ = fmt.Fprintln(w, formatLogEntry(paint, &entry))
	}
}

// passes checks if a log entry passes all filter criteria
func (f logFilter) passes(entry *logEntry) bool {
	if f.minLevel >= 0 && levelPriority(entry.Level) < f.minLevel {
		return false
	}
	if !f.since.IsZero() && entry.Time.Before(f.since) {
		return false
	}
	if f.buildID != "" && !strings.HasPrefix(entry.BuildID, f.buildID) {
		return false
	}

	// Grep filter - search in message and extra fields
	if f.grep != nil {
		searchText := entry.Msg
		for _, v := range entry.Extra {
			searchText += " " + fmt.Sprintf("%v", v)
		}
		if !f.grep.MatchString(searchText) {
			return false
		}
	}

	return true
}
