package profile

import "regexp"

// builtinDefinitions is ordered: detection tries profiles in this order and
// the first detect match wins.
var builtinDefinitions = []Definition{
	{
		Name:   "Webpack",
		Detect: `(?i)\bwebpack\s+v?\d+\.\d+\.\d+|\[webpack-cli\]|Laravel Mix v\d`,
		Start: []string{
			`(?i)\[webpack-cli\] Compiler (?:is )?starting`,
			`(?i)\bcompiling\.\.\.`,
		},
		Success: []string{
			`(?i)compiled successfully`,
			`(?i)compiled with \d+ warnings?\b`,
		},
		Error: []string{
			`(?i)compiled with \d+ errors?\b`,
			`(?m)^ERROR in `,
		},
		WatchReady: []string{
			`(?i)compiler is watching files for updates`,
			`(?i)webpack is watching the files`,
		},
		Duration: `(?i)compiled (?:successfully|with \d+ warnings?) in (\d+(?:\.\d+)?)\s*m?s`,
	},
	{
		Name:   "Vite",
		Detect: `(?i)\bvite\s+v\d+\.\d+`,
		Start: []string{
			`(?i)build started\.\.\.`,
			`(?i)building for (?:production|development)`,
		},
		Success: []string{
			`(?i)\bbuilt in \d+(?:\.\d+)?\s*m?s`,
			`(?i)\bready in \d+(?:\.\d+)?\s*m?s`,
		},
		Error: []string{
			`(?i)error during build`,
			`(?i)\[vite\] internal server error`,
			`(?i)build failed`,
		},
		WatchReady: []string{
			`(?i)Local:\s+https?://`,
			`(?i)watching for file changes`,
		},
		Duration: `(?i)(?:built|ready) in (\d+(?:\.\d+)?)\s*m?s`,
	},
	{
		Name:   "Tailwind",
		Detect: `(?i)\btailwindcss\b`,
		Start: []string{
			`(?im)^\s*rebuilding\.\.\.`,
		},
		Success: []string{
			`(?i)\bdone in \d+(?:\.\d+)?\s*m?s`,
		},
		Error: []string{
			`CssSyntaxError`,
			`(?im)^\s*error:\s`,
		},
		WatchReady: []string{
			`(?i)watching for file changes`,
		},
		Duration: `(?i)done in (\d+(?:\.\d+)?)\s*m?s`,
	},
	{
		Name:   "esbuild",
		Detect: `(?i)\besbuild\b|\[watch\] build (?:started|finished)`,
		Start: []string{
			`\[watch\] build started`,
		},
		Success: []string{
			`\[watch\] build finished`,
			`(?i)build finished in \d+(?:\.\d+)?\s*m?s`,
			`(?i)⚡\s*done in \d+(?:\.\d+)?\s*m?s`,
		},
		Error: []string{
			`✘ \[ERROR\]`,
			`(?i)build failed with \d+ errors?`,
		},
		WatchReady: []string{
			`(?i)watching for changes`,
		},
		Duration: `(?i)(?:finished|done) in (\d+(?:\.\d+)?)\s*m?s`,
	},
	{
		Name:   "Parcel",
		Detect: `(?i)\bparcel\b|✨\s*Built in|Server running at https?://`,
		Start: []string{
			`(?im)^\s*(?:building|bundling)\.\.\.`,
		},
		Success: []string{
			`(?i)\bbuilt in \d+(?:\.\d+)?\s*m?s`,
		},
		Error: []string{
			`🚨`,
			`(?i)build failed\.`,
		},
		WatchReady: []string{
			`(?i)server running at https?://`,
			`(?i)watching for changes`,
		},
		Duration: `(?i)built in (\d+(?:\.\d+)?)\s*m?s`,
	},
	{
		Name:   "Rollup",
		Detect: `(?i)\brollup v\d+\.\d+`,
		Start: []string{
			`(?im)^\s*bundles .+ →`,
		},
		Success: []string{
			`(?i)\bcreated .+ in \d+(?:\.\d+)?\s*m?s`,
		},
		Error: []string{
			`(?m)^\[!\] `,
		},
		WatchReady: []string{
			`(?i)waiting for changes`,
		},
		Duration: `(?i)created .+ in (\d+(?:\.\d+)?)\s*m?s`,
	},
}

// builtins is compiled once at package init. A bad built-in pattern is a
// programming error and panics here rather than at first use.
var builtins = mustCompileBuiltins()

func mustCompileBuiltins() []*Profile {
	profiles := make([]*Profile, 0, len(builtinDefinitions))
	for _, def := range builtinDefinitions {
		p, err := Compile(def.Name, def)
		if err != nil {
			panic(err)
		}
		p.Custom = false
		profiles = append(profiles, p)
	}
	return profiles
}

// Builtins returns the built-in profiles in detection order. The returned
// slice is a copy; the profiles themselves are shared and must not be mutated.
func Builtins() []*Profile {
	out := make([]*Profile, len(builtins))
	copy(out, builtins)
	return out
}

// Set is an ordered collection of profiles used for detection. Custom
// profiles are consulted before built-ins.
type Set struct {
	profiles []*Profile
}

// NewSet builds a detection set from custom profiles followed by the
// built-ins.
func NewSet(custom []*Profile) *Set {
	all := make([]*Profile, 0, len(custom)+len(builtins))
	all = append(all, custom...)
	all = append(all, builtins...)
	return &Set{profiles: all}
}

// Detect returns the first profile whose detect pattern matches text, or nil.
func (s *Set) Detect(text string) *Profile {
	if s == nil {
		return nil
	}
	for _, p := range s.profiles {
		if p.Detect.MatchString(text) {
			return p
		}
	}
	return nil
}

// Profiles returns the set's profiles in detection order.
func (s *Set) Profiles() []*Profile {
	if s == nil {
		return nil
	}
	out := make([]*Profile, len(s.profiles))
	copy(out, s.profiles)
	return out
}

// firstMatch returns the first pattern that matches text, or nil.
func firstMatch(patterns []*regexp.Regexp, text string) *regexp.Regexp {
	for _, re := range patterns {
		if re.MatchString(text) {
			return re
		}
	}
	return nil
}

// MatchStart reports whether any start pattern matches text.
func (p *Profile) MatchStart(text string) bool { return firstMatch(p.Start, text) != nil }

// MatchSuccess reports whether any success pattern matches text.
func (p *Profile) MatchSuccess(text string) bool { return firstMatch(p.Success, text) != nil }

// MatchError reports whether any error pattern matches text.
func (p *Profile) MatchError(text string) bool { return firstMatch(p.Error, text) != nil }

// MatchWatchReady reports whether any watch-ready pattern matches text.
func (p *Profile) MatchWatchReady(text string) bool { return firstMatch(p.WatchReady, text) != nil }
