package cmd

import (
	"fmt"
	"io"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/kirbytools/buildwatch/internal/profile"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the build tools buildwatch recognizes",
	Long: `List tool profiles in detection order. Custom profiles from the
configuration and the profiles file are tried before the built-in ones.`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

var toolsVerbose bool

func init() {
	rootCmd.AddCommand(toolsCmd)

	toolsCmd.Flags().BoolVarP(&toolsVerbose, "verbose", "v", false, "Show each profile's patterns")
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	custom, errs := newProfileSource(cfg, workingDir(), logger).load()
	w := cmd.OutOrStdout()
	printProfiles(w, newPainter(w), profile.NewSet(custom).Profiles(), toolsVerbose)

	for _, err := range errs {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %v\n", err)
	}
	return nil
}

func printProfiles(w io.Writer, paint painter, profiles []*profile.Profile, verbose bool) {
	for i, p := range profiles {
		kind := "built-in"
		if p.Custom {
			kind = "custom"
		}
		_, _ = fmt.Fprintf(w, "%2d. %s %s\n", i+1, paint.label(p.Name), paint.muted("("+kind+")"))
		if !verbose {
			continue
		}
		_, _ = fmt.Fprintf(w, "    detect:      %s\n", p.Detect)
		printPatterns(w, "start", p.Start)
		printPatterns(w, "success", p.Success)
		printPatterns(w, "error", p.Error)
		printPatterns(w, "watch_ready", p.WatchReady)
		if p.Duration != nil {
			_, _ = fmt.Fprintf(w, "    duration:    %s\n", p.Duration)
		}
	}
}

func printPatterns(w io.Writer, name string, patterns []*regexp.Regexp) {
	for _, re := range patterns {
		_, _ = fmt.Fprintf(w, "    %-12s %s\n", name+":", re)
	}
}
