// Package profile describes the textual signatures of build tools.
//
// A [Profile] pairs a detect pattern, used once to identify which tool is
// producing output, with four ordered pattern lists (start, success, error,
// watch-ready) and an optional duration pattern. Built-in profiles are
// compiled once at startup; custom profiles are compiled from user supplied
// [Definition] values with per-entry isolation, so one bad entry never
// prevents the others from loading.
package profile

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/kirbytools/buildwatch/internal/errors"
	"github.com/kirbytools/buildwatch/internal/logging"
)

// Profile is an immutable, compiled build tool signature.
type Profile struct {
	// Name is the display identifier (e.g. "Webpack").
	Name string

	// Detect is matched against accumulated output to identify the tool.
	Detect *regexp.Regexp

	// Start, Success, Error and WatchReady are tried in order; the first
	// pattern of a list that matches a chunk wins for that list.
	Start      []*regexp.Regexp
	Success    []*regexp.Regexp
	Error      []*regexp.Regexp
	WatchReady []*regexp.Regexp

	// Duration extracts a number from a success chunk. Optional.
	Duration *regexp.Regexp

	// Custom is true for profiles compiled from user configuration.
	Custom bool
}

// Definition is the uncompiled, configuration form of a profile.
type Definition struct {
	// Name overrides the map key as display name. Config keys are
	// lower-cased by viper, so this is the only way to keep casing.
	Name       string   `mapstructure:"name" yaml:"name"`
	Detect     string   `mapstructure:"detect" yaml:"detect"`
	Start      []string `mapstructure:"start" yaml:"start"`
	Success    []string `mapstructure:"success" yaml:"success"`
	Error      []string `mapstructure:"error" yaml:"error"`
	WatchReady []string `mapstructure:"watch_ready" yaml:"watch_ready"`
	Duration   string   `mapstructure:"duration" yaml:"duration"`
}

// Compile validates and compiles a definition. key is the configuration key
// the definition was found under; it names the profile when def.Name is empty.
//
// A definition needs a detect pattern and at least one event pattern. Every
// pattern must compile; the first failure is returned as a *errors.ProfileError.
func Compile(key string, def Definition) (*Profile, error) {
	name := def.Name
	if name == "" {
		name = key
	}
	if name == "" {
		return nil, errors.NewProfileError(key, "name", fmt.Errorf("missing name"))
	}
	if def.Detect == "" {
		return nil, errors.NewProfileError(name, "detect", fmt.Errorf("missing detect pattern"))
	}
	if len(def.Start)+len(def.Success)+len(def.Error)+len(def.WatchReady) == 0 {
		return nil, errors.NewProfileError(name, "patterns", fmt.Errorf("no event patterns"))
	}

	p := &Profile{Name: name, Custom: true}

	var err error
	if p.Detect, err = compileOne(name, "detect", def.Detect); err != nil {
		return nil, err
	}
	if p.Start, err = compileList(name, "start", def.Start); err != nil {
		return nil, err
	}
	if p.Success, err = compileList(name, "success", def.Success); err != nil {
		return nil, err
	}
	if p.Error, err = compileList(name, "error", def.Error); err != nil {
		return nil, err
	}
	if p.WatchReady, err = compileList(name, "watch_ready", def.WatchReady); err != nil {
		return nil, err
	}
	if def.Duration != "" {
		if p.Duration, err = compileOne(name, "duration", def.Duration); err != nil {
			return nil, err
		}
		if p.Duration.NumSubexp() < 1 {
			return nil, errors.NewProfileError(name, "duration", fmt.Errorf("pattern needs a capture group"))
		}
	}
	return p, nil
}

func compileOne(name, field, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, errors.NewProfileError(name, field, fmt.Errorf("empty pattern"))
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.NewProfileError(name, field, err)
	}
	return re, nil
}

func compileList(name, field string, patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for i, pattern := range patterns {
		re, err := compileOne(name, fmt.Sprintf("%s[%d]", field, i), pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// CompileAll compiles every definition, skipping invalid entries. Profiles
// are returned sorted by key so detection order is stable across runs.
// Each skipped entry is logged as a warning and reported in the error slice.
func CompileAll(defs map[string]Definition, logger *logging.Logger) ([]*Profile, []error) {
	logger = logging.OrNop(logger)

	keys := make([]string, 0, len(defs))
	for k := range defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		profiles []*Profile
		errs     []error
	)
	for _, key := range keys {
		p, err := Compile(key, defs[key])
		if err != nil {
			logger.Warn("skipping custom tool profile",
				"key", key,
				"error", err.Error())
			errs = append(errs, err)
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, errs
}
