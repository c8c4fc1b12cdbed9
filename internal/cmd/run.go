package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/kirbytools/buildwatch/internal/event"
	"github.com/kirbytools/buildwatch/internal/profile"
	"github.com/kirbytools/buildwatch/internal/supervisor"
	"github.com/kirbytools/buildwatch/internal/transport"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command> [args...]",
	Short: "Run a build command and report its phase",
	Long: `Run a build or watch command, stream its output and report phase changes
on stderr.

The command runs through the shell in a pseudo-terminal when one is
available so the tool keeps its interactive output. When no terminal can be
allocated the command falls back to plain pipes and phases are driven only
by the fallback timer and process exit.

Send SIGHUP to restart the build. Ctrl+C stops it.

Examples:
  buildwatch run -- npm run dev
  buildwatch run --label assets --dir ./site -- npx vite
  buildwatch run --no-parse -- make assets`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var (
	runDir     string
	runLabel   string
	runNoParse bool
	runMode    string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runDir, "dir", "d", "", "Working directory for the build (default: current directory)")
	runCmd.Flags().StringVarP(&runLabel, "label", "l", "Build", "Label shown next to phase changes")
	runCmd.Flags().BoolVar(&runNoParse, "no-parse", false, "Disable output classification")
	runCmd.Flags().StringVar(&runMode, "transport", "", "Transport: auto, pty or pipe (default: build.transport)")
}

// outcome is how a run ended.
type outcome struct {
	code    int
	hasCode bool
	failed  bool
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	dir := runDir
	if dir == "" {
		dir = workingDir()
	}

	mode := cfg.Build.Transport
	if runMode != "" {
		mode = runMode
	}
	preferred, fallback, err := transport.Resolve(mode, transport.Options{
		TerminateTimeout: cfg.Build.TerminateTimeout,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	src := newProfileSource(cfg, workingDir(), logger)
	custom, _ := src.load()

	opts := supervisor.OptionsFromConfig(cfg.Build)
	if runNoParse {
		opts.ParseOutput = false
	}
	opts.Preferred = preferred
	opts.Fallback = fallback
	opts.Profiles = custom
	opts.Presenter = supervisor.WriterPresenter{W: cmd.OutOrStdout()}
	opts.Logger = logger

	sup, err := supervisor.Shared(opts)
	if err != nil {
		return err
	}
	defer func() { _ = sup.Dispose() }()

	errOut := cmd.ErrOrStderr()
	paint := newPainter(errOut)
	finished := watchBuild(sup, errOut, paint, runLabel)

	if path := src.path; path != "" {
		w, err := profile.NewWatcher(path, func(profiles []*profile.Profile, errs []error) {
			sup.SetProfiles(src.combine(profiles))
			sup.Bus().Publish(event.NewProfilesReloadedEvent(len(profiles), len(errs)))
			_, _ = fmt.Fprintln(errOut, paint.muted(fmt.Sprintf("reloaded %d custom tool profile(s) from %s", len(profiles), path)))
		}, profile.WithLogger(logger))
		if err != nil {
			logger.Warn("profiles file will not be reloaded", "path", path, "error", err.Error())
		} else {
			defer func() { _ = w.Close() }()
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)

	req := supervisor.Request{
		Command: strings.Join(args, " "),
		Dir:     dir,
		Label:   runLabel,
	}
	if w, h, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 && h > 0 {
		req.Cols, req.Rows = w, h
	}

	if err := sup.Start(ctx, req); err != nil {
		return err
	}
	if !sup.IsRunning() && sup.State() == supervisor.PhaseError {
		return fmt.Errorf("failed to start %q", req.Command)
	}

	for {
		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(errOut, paint.muted("stopping build"))
			return sup.Stop()
		case <-hangup:
			if err := sup.Restart(ctx, supervisor.Request{}); err != nil && ctx.Err() == nil {
				return err
			}
		case out := <-finished:
			switch {
			case out.failed:
				return fmt.Errorf("build failed")
			case out.hasCode && out.code != 0:
				return fmt.Errorf("build exited with code %d", out.code)
			}
			return nil
		}
	}
}

// watchBuild prints phase changes and reports when the build process ends.
func watchBuild(sup *supervisor.Supervisor, w io.Writer, paint painter, name string) <-chan outcome {
	finished := make(chan outcome, 1)

	var (
		mu   sync.Mutex
		last supervisor.Phase
	)
	_, _ = sup.OnStateChange(func(c supervisor.StateChange) {
		mu.Lock()
		last = c.New
		mu.Unlock()
		_, _ = fmt.Fprintln(w, describeChange(sup, paint, name, c))
	})

	sup.Bus().Subscribe(event.TypeProcessExited, func(e event.Event) {
		exited, ok := e.(event.ProcessExitedEvent)
		if !ok {
			return
		}
		mu.Lock()
		before := last
		mu.Unlock()
		out := outcome{
			code:    exited.ExitCode,
			hasCode: exited.HasCode,
			failed:  before == supervisor.PhaseError || before == supervisor.PhaseBuilding || before == supervisor.PhaseRebuilding,
		}
		select {
		case finished <- out:
		default:
		}
	})
	return finished
}

func describeChange(sup *supervisor.Supervisor, paint painter, name string, c supervisor.StateChange) string {
	var sb strings.Builder
	sb.WriteString(paint.label(name))
	sb.WriteString(" ")
	sb.WriteString(paint.phase(c.New))

	var details []string
	if tool, ok := sup.DetectedTool(); ok {
		details = append(details, tool)
	}
	m := sup.Metrics()
	if c.New == supervisor.PhaseReady || c.New == supervisor.PhaseWatchActive {
		if m.HasLastBuildDuration {
			details = append(details, m.LastBuildDuration.String())
		}
		if m.RebuildCount > 0 {
			details = append(details, fmt.Sprintf("rebuild #%d", m.RebuildCount))
		}
	}
	if len(details) > 0 {
		sb.WriteString(" ")
		sb.WriteString(paint.muted(strings.Join(details, " · ")))
	}
	return sb.String()
}
