package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

func TestNewRotatingWriter_CreatesDirectories(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "dir", LogFileName)

	rw, err := NewRotatingWriter(logPath, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer func() { _ = rw.Close() }()

	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("log file was not created at %s: %v", logPath, err)
	}
}

func TestRotatingWriter_AppendsToExisting(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/logs/buildwatch.log", []byte("initial\n"), 0644); err != nil {
		t.Fatal(err)
	}

	rw, err := NewRotatingWriterFs(fs, "/logs/buildwatch.log", DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriterFs failed: %v", err)
	}
	if rw.CurrentSize() != int64(len("initial\n")) {
		t.Errorf("CurrentSize = %d, want %d", rw.CurrentSize(), len("initial\n"))
	}
	if _, err := rw.Write([]byte("more\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	_ = rw.Close()

	content, _ := afero.ReadFile(fs, "/logs/buildwatch.log")
	if string(content) != "initial\nmore\n" {
		t.Errorf("content = %q", content)
	}
}

func TestRotatingWriter_Rotation(t *testing.T) {
	chunk := bytes.Repeat([]byte("x"), 700*1024)

	tests := []struct {
		name    string
		backups int
		writes  int
		present []string
		absent  []string
	}{
		{
			name:    "keeps backups newest first",
			backups: 2,
			writes:  3,
			present: []string{"b.log", "b.log.1", "b.log.2"},
		},
		{
			name:    "drops the oldest backup",
			backups: 1,
			writes:  4,
			present: []string{"b.log", "b.log.1"},
			absent:  []string{"b.log.2"},
		},
		{
			name:    "no backups truncates in place",
			backups: 0,
			writes:  3,
			present: []string{"b.log"},
			absent:  []string{"b.log.1"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			rw, err := NewRotatingWriterFs(fs, "/logs/b.log", RotationConfig{MaxSizeMB: 1, MaxBackups: tc.backups})
			if err != nil {
				t.Fatalf("NewRotatingWriterFs failed: %v", err)
			}
			defer func() { _ = rw.Close() }()

			for i := 0; i < tc.writes; i++ {
				if _, err := rw.Write(chunk); err != nil {
					t.Fatalf("Write %d failed: %v", i, err)
				}
			}

			for _, name := range tc.present {
				if ok, _ := afero.Exists(fs, "/logs/"+name); !ok {
					t.Errorf("expected %s to exist", name)
				}
			}
			for _, name := range tc.absent {
				if ok, _ := afero.Exists(fs, "/logs/"+name); ok {
					t.Errorf("expected %s to be gone", name)
				}
			}
			if rw.CurrentSize() != int64(len(chunk)) {
				t.Errorf("CurrentSize after rotation = %d, want %d", rw.CurrentSize(), len(chunk))
			}
		})
	}
}

func TestRotatingWriter_UnlimitedSize(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw, err := NewRotatingWriterFs(fs, "/b.log", RotationConfig{MaxSizeMB: 0, MaxBackups: 3})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = rw.Close() }()

	chunk := bytes.Repeat([]byte("x"), 700*1024)
	for i := 0; i < 3; i++ {
		_, _ = rw.Write(chunk)
	}
	if ok, _ := afero.Exists(fs, "/b.log.1"); ok {
		t.Error("MaxSizeMB 0 should disable rotation")
	}
	if rw.CurrentSize() != 3*int64(len(chunk)) {
		t.Errorf("CurrentSize = %d", rw.CurrentSize())
	}
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	rw, err := NewRotatingWriterFs(afero.NewMemMapFs(), "/b.log", DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriterFs failed: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	if _, err := rw.Write([]byte("late")); err == nil {
		t.Error("Write after Close should fail")
	}
}
