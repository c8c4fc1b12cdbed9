package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/kirbytools/buildwatch/internal/config"
	"github.com/kirbytools/buildwatch/internal/logging"
	"github.com/kirbytools/buildwatch/internal/profile"
)

// loadConfig reads and validates the active configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the logger described by cfg.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level, cfg.Logging.Rotation())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// profileSource compiles custom profiles from the config file and the
// optional profiles file. A profiles file entry replaces an inline entry
// with the same name.
type profileSource struct {
	fs     afero.Fs
	path   string
	inline []*profile.Profile
	errs   []error
	logger *logging.Logger
}

func newProfileSource(cfg *config.Config, baseDir string, logger *logging.Logger) *profileSource {
	defs, errs := profile.DecodeDefinitions(cfg.Build.CustomTools)
	for _, err := range errs {
		logger.Warn("skipping custom tool profile", "error", err.Error())
	}
	inline, compileErrs := profile.CompileAll(defs, logger)
	return &profileSource{
		fs:     afero.NewOsFs(),
		path:   cfg.Build.ResolveProfilesFile(baseDir),
		inline: inline,
		errs:   append(errs, compileErrs...),
		logger: logger,
	}
}

// load returns the compiled custom profiles and every entry that was skipped.
func (s *profileSource) load() ([]*profile.Profile, []error) {
	errs := append([]error(nil), s.errs...)
	if s.path == "" {
		return s.inline, errs
	}

	defs, decodeErrs, err := profile.LoadFile(s.fs, s.path)
	if err != nil {
		s.logger.Warn("failed to read profiles file", "path", s.path, "error", err.Error())
		return s.inline, append(errs, err)
	}
	for _, e := range decodeErrs {
		s.logger.Warn("skipping custom tool profile", "path", s.path, "error", e.Error())
	}
	fromFile, compileErrs := profile.CompileAll(defs, s.logger)
	errs = append(errs, decodeErrs...)
	return s.combine(fromFile), append(errs, compileErrs...)
}

// combine puts file profiles ahead of the inline ones they do not replace.
func (s *profileSource) combine(fromFile []*profile.Profile) []*profile.Profile {
	seen := make(map[string]bool, len(fromFile))
	out := make([]*profile.Profile, 0, len(fromFile)+len(s.inline))
	for _, p := range fromFile {
		seen[p.Name] = true
		out = append(out, p)
	}
	for _, p := range s.inline {
		if !seen[p.Name] {
			out = append(out, p)
		}
	}
	return out
}

func workingDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
