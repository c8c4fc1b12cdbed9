package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirbytools/buildwatch/internal/parser"
	"github.com/kirbytools/buildwatch/internal/profile"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file|-]",
	Short: "Classify captured build output",
	Long: `Feed captured build output through the classifier and print the lifecycle
events it produces. Input is read line by line, as a running build would
emit it. With no file, or "-", standard input is read.

Examples:
  npx vite build 2>&1 | buildwatch parse
  buildwatch parse --json webpack.log`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

var parseJSON bool

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "Print one JSON object per event")
}

// parsedEvent is the --json form of a lifecycle event.
type parsedEvent struct {
	Line       int    `json:"line"`
	Event      string `json:"event"`
	Tool       string `json:"tool"`
	DurationMs *int64 `json:"duration_ms,omitempty"`
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	custom, _ := newProfileSource(cfg, workingDir(), logger).load()
	p := parser.New(
		parser.WithProfiles(profile.NewSet(custom)),
		parser.WithBufferSize(cfg.Build.BufferSize),
		parser.WithLogger(logger),
	)

	return classify(p, in, cmd.OutOrStdout(), parseJSON)
}

// classify feeds r to p line by line and writes the resulting events.
func classify(p *parser.Parser, r io.Reader, w io.Writer, asJSON bool) error {
	reader := bufio.NewReader(r)
	enc := json.NewEncoder(w)
	paint := newPainter(w)

	line := 0
	for {
		chunk, err := reader.ReadString('\n')
		if chunk != "" {
			line++
			for _, ev := range p.Parse(chunk) {
				if asJSON {
					out := parsedEvent{Line: line, Event: ev.Kind.String(), Tool: ev.Tool}
					if ev.HasDuration {
						ms := ev.Duration.Milliseconds()
						out.DurationMs = &ms
					}
					if err := enc.Encode(out); err != nil {
						return err
					}
					continue
				}
				_, _ = fmt.Fprintln(w, formatParsed(paint, line, ev))
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("error reading input: %w", err)
		}
	}

	if asJSON {
		return nil
	}
	if tool, ok := p.DetectedTool(); ok {
		_, _ = fmt.Fprintf(w, "detected tool: %s\n", tool)
	} else {
		_, _ = fmt.Fprintln(w, "no known build tool detected")
	}
	return nil
}

func formatParsed(paint painter, line int, ev parser.Event) string {
	s := fmt.Sprintf("%s %-13s %s", paint.muted(fmt.Sprintf("%5d", line)), ev.Kind.String(), ev.Tool)
	if ev.HasDuration {
		s += " " + paint.muted(ev.Duration.Round(time.Millisecond).String())
	}
	return s
}
