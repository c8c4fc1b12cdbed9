package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/kirbytools/buildwatch/internal/config"
	"github.com/kirbytools/buildwatch/internal/logging"
	"github.com/kirbytools/buildwatch/internal/parser"
	"github.com/kirbytools/buildwatch/internal/profile"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "buildwatch" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "buildwatch")
	}

	expectedCmds := []string{"run", "parse", "tools", "config", "logs"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestParseCommand(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	logFile := filepath.Join(t.TempDir(), "build.log")
	content := "webpack 5.89.0 compiled successfully in 234 ms\n" +
		"webpack is watching the files…\n"
	if err := os.WriteFile(logFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	output, err := executeCommand(rootCmd, "parse", logFile)
	if err != nil {
		t.Fatalf("parse failed: %v\nOutput: %s", err, output)
	}
	for _, want := range []string{"build-success", "234ms", "watch-ready", "detected tool: Webpack"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestClassify(t *testing.T) {
	input := strings.Join([]string{
		"  VITE v5.0.0  ready in 1.25 s",
		"",
		"  ➜  Local:   http://localhost:5173/",
		"  ➜  Network: use --host to expose",
		"",
	}, "\n")

	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		if err := classify(parser.New(), strings.NewReader(input), &out, false); err != nil {
			t.Fatalf("classify: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		if len(lines) != 3 {
			t.Fatalf("got %d lines, want 3:\n%s", len(lines), out.String())
		}
		if !strings.Contains(lines[0], "build-success") || !strings.Contains(lines[0], "1.25s") {
			t.Errorf("line 0 = %q", lines[0])
		}
		if !strings.Contains(lines[1], "watch-ready") || !strings.Contains(lines[1], "Vite") {
			t.Errorf("line 1 = %q", lines[1])
		}
		if lines[2] != "detected tool: Vite" {
			t.Errorf("line 2 = %q", lines[2])
		}
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		if err := classify(parser.New(), strings.NewReader(input), &out, true); err != nil {
			t.Fatalf("classify: %v", err)
		}
		dec := json.NewDecoder(&out)
		var got []parsedEvent
		for dec.More() {
			var ev parsedEvent
			if err := dec.Decode(&ev); err != nil {
				t.Fatalf("decode: %v", err)
			}
			got = append(got, ev)
		}
		if len(got) != 2 {
			t.Fatalf("got %d events, want 2: %+v", len(got), got)
		}
		if got[0].Event != "build-success" || got[0].Line != 1 || got[0].DurationMs == nil || *got[0].DurationMs != 1250 {
			t.Errorf("event 0 = %+v", got[0])
		}
		if got[1].Event != "watch-ready" || got[1].Line != 3 || got[1].DurationMs != nil {
			t.Errorf("event 1 = %+v", got[1])
		}
	})

	t.Run("unknown tool", func(t *testing.T) {
		var out bytes.Buffer
		if err := classify(parser.New(), strings.NewReader("make: Nothing to be done\n"), &out, false); err != nil {
			t.Fatalf("classify: %v", err)
		}
		if strings.TrimSpace(out.String()) != "no known build tool detected" {
			t.Errorf("output = %q", out.String())
		}
	})
}

func TestPrintProfiles(t *testing.T) {
	custom, err := profile.Compile("kirbyup", profile.Definition{
		Detect:  `kirbyup v\d`,
		Success: []string{`build done`},
	})
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	printProfiles(&out, painter{}, profile.NewSet([]*profile.Profile{custom}).Profiles(), false)
	want := []string{
		" 1. kirbyup (custom)",
		" 2. Webpack (built-in)",
		" 3. Vite (built-in)",
		" 4. Tailwind (built-in)",
		" 5. esbuild (built-in)",
		" 6. Parcel (built-in)",
		" 7. Rollup (built-in)",
	}
	got := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("printProfiles =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}

	out.Reset()
	printProfiles(&out, painter{}, []*profile.Profile{custom}, true)
	if !strings.Contains(out.String(), "detect:      kirbyup v\\d") || !strings.Contains(out.String(), "success:     build done") {
		t.Errorf("verbose output missing patterns:\n%s", out.String())
	}
}

func TestParseConfigValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		want    any
		wantErr bool
	}{
		{"build.parse_output", "false", false, false},
		{"build.parse_output", "no", nil, true},
		{"build.fallback_delay", "10s", "10s", false},
		{"build.fallback_delay", "soon", nil, true},
		{"build.fallback_delay", "-1s", nil, true},
		{"build.buffer_size", "4096", 4096, false},
		{"build.buffer_size", "-1", nil, true},
		{"build.transport", "pipe", "pipe", false},
		{"build.transport", "ssh", nil, true},
		{"logging.level", "DEBUG", "debug", false},
		{"logging.level", "trace", nil, true},
		{"logging.dir", "/var/log/buildwatch", "/var/log/buildwatch", false},
		{"build.unknown", "1", nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			got, err := parseConfigValue(tc.key, tc.value)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && got != tc.want {
				t.Errorf("got %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestLogFilter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := &logEntry{
		Time:    now.Add(-10 * time.Minute),
		Level:   "WARN",
		Msg:     "build process closed unexpectedly",
		BuildID: "6f1c2a9e-0000",
		Extra:   map[string]any{"phase": "building"},
	}

	tests := []struct {
		name    string
		level   string
		since   string
		build   string
		grep    string
		want    bool
		wantErr bool
	}{
		{name: "no filters", want: true},
		{name: "level below", level: "error", want: false},
		{name: "level at", level: "warn", want: true},
		{name: "since inside", since: "1h", want: true},
		{name: "since outside", since: "5m", want: false},
		{name: "build prefix", build: "6f1c", want: true},
		{name: "other build", build: "aaaa", want: false},
		{name: "grep extra field", grep: "build(ing)?$", want: true},
		{name: "grep miss", grep: "spawn", want: false},
		{name: "bad level", level: "loud", wantErr: true},
		{name: "bad since", since: "yesterday", wantErr: true},
		{name: "bad grep", grep: "(", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := newLogFilter(tc.level, tc.since, tc.build, tc.grep, now)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if got := f.passes(entry); got != tc.want {
				t.Errorf("passes = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCollectLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWriterLogger(&buf, logging.LevelDebug, nil)
	logger.WithBuild("b-1").WithTool("Vite").Info("build phase changed", "old_phase", "building", "new_phase", "ready")
	logger.WithBuild("b-2").Debug("fallback timer resolved build")
	buf.WriteString("not json\n")

	filter, err := newLogFilter("", "", "b-1", "", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	entries, err := collectLogs(&buf, painter{}, filter)
	if err != nil {
		t.Fatalf("collectLogs: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %q", len(entries), entries)
	}
	first := entries[0]
	for _, want := range []string{"[INFO]", "build phase changed", "build_id=b-1", "tool=Vite", "new_phase=ready", "old_phase=building"} {
		if !strings.Contains(first, want) {
			t.Errorf("entry %q missing %q", first, want)
		}
	}
	if strings.Index(first, "new_phase") > strings.Index(first, "old_phase") {
		t.Errorf("extra fields should be sorted: %q", first)
	}
	if entries[1] != "not json" {
		t.Errorf("raw line = %q", entries[1])
	}
}

func TestProfileSource(t *testing.T) {
	cfg := config.Default()
	cfg.Build.CustomTools = map[string]any{
		"kirbyup": map[string]any{"detect": `kirbyup v\d`, "success": "build done"},
		"mix":     map[string]any{"detect": `laravel-mix`, "success": "compiled"},
		"broken":  map[string]any{"detect": "("},
	}
	cfg.Build.ProfilesFile = "tools.yaml"

	src := newProfileSource(cfg, "/project", logging.NopLogger())
	if len(src.inline) != 2 || len(src.errs) != 1 {
		t.Fatalf("inline = %d profiles, %d errors; want 2, 1", len(src.inline), len(src.errs))
	}
	if src.path != filepath.Join("/project", "tools.yaml") {
		t.Errorf("path = %q", src.path)
	}

	fs := afero.NewMemMapFs()
	src.fs = fs

	// Missing file: inline profiles only, with the read error reported.
	profiles, errs := src.load()
	if len(profiles) != 2 || len(errs) != 2 {
		t.Fatalf("missing file: %d profiles, %d errors", len(profiles), len(errs))
	}

	doc := "tools:\n" +
		"  mix:\n" +
		"    detect: 'Laravel Mix v\\d'\n" +
		"    success: 'Mix done'\n" +
		"  parcel2:\n" +
		"    detect: 'parcel 2'\n" +
		"    watch_ready: 'watching'\n"
	if err := afero.WriteFile(fs, src.path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	profiles, errs = src.load()
	if len(errs) != 1 {
		t.Errorf("errors = %v, want only the broken inline entry", errs)
	}
	var names []string
	for _, p := range profiles {
		names = append(names, p.Name)
	}
	if got := strings.Join(names, ","); got != "mix,parcel2,kirbyup" {
		t.Errorf("profile order = %s, want mix,parcel2,kirbyup", got)
	}
	if !profiles[0].Detect.MatchString("Laravel Mix v6") {
		t.Error("the profiles file should replace the inline mix entry")
	}
}
