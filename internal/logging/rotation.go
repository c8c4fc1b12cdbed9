package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// RotationConfig holds configuration for log rotation.
type RotationConfig struct {
	// MaxSizeMB is the maximum size of a log file in megabytes before rotation.
	// A value of 0 disables rotation.
	MaxSizeMB int
	// MaxBackups is the number of old log files to keep.
	MaxBackups int
}

// DefaultRotationConfig returns a RotationConfig with sensible defaults.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSizeMB:  10,
		MaxBackups: 3,
	}
}

func (c RotationConfig) limit() int64 {
	return int64(c.MaxSizeMB) << 20
}

// RotatingWriter appends to a log file and, once a write would push it past
// the size limit, moves it aside as path.1 (path.2 and so on for older
// copies). It is safe for concurrent use.
type RotatingWriter struct {
	fs     afero.Fs
	path   string
	config RotationConfig

	mu   sync.Mutex
	file afero.File
	size int64
}

// NewRotatingWriter opens (or creates) path on the OS filesystem.
func NewRotatingWriter(path string, config RotationConfig) (*RotatingWriter, error) {
	return NewRotatingWriterFs(afero.NewOsFs(), path, config)
}

// NewRotatingWriterFs opens (or creates) path on fs.
func NewRotatingWriterFs(fs afero.Fs, path string, config RotationConfig) (*RotatingWriter, error) {
	rw := &RotatingWriter{fs: fs, path: path, config: config}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

// open attaches to the current log file. Caller must hold mu.
func (rw *RotatingWriter) open() error {
	if err := rw.fs.MkdirAll(filepath.Dir(rw.path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := rw.fs.OpenFile(rw.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	rw.file, rw.size = f, info.Size()
	return nil
}

// Write implements io.Writer. A failed rotation keeps writing to the
// current file so no log line is lost.
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return 0, os.ErrClosed
	}
	if limit := rw.config.limit(); limit > 0 && rw.size > 0 && rw.size+int64(len(p)) > limit {
		if err := rw.rotate(); err != nil && rw.file == nil {
			return 0, err
		}
	}

	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

// rotate shifts path.N-1 to path.N down to path to path.1, dropping the
// oldest, and reopens an empty file. Caller must hold mu.
func (rw *RotatingWriter) rotate() error {
	if err := rw.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	rw.file = nil

	keep := rw.config.MaxBackups
	if keep <= 0 {
		_ = rw.fs.Remove(rw.path)
		return rw.open()
	}

	_ = rw.fs.Remove(rw.backup(keep))
	for n := keep - 1; n >= 1; n-- {
		if exists, _ := afero.Exists(rw.fs, rw.backup(n)); exists {
			_ = rw.fs.Rename(rw.backup(n), rw.backup(n+1))
		}
	}

	renameErr := rw.fs.Rename(rw.path, rw.backup(1))
	if err := rw.open(); err != nil {
		return err
	}
	if renameErr != nil {
		return fmt.Errorf("failed to rotate log file: %w", renameErr)
	}
	return nil
}

func (rw *RotatingWriter) backup(n int) string {
	return fmt.Sprintf("%s.%d", rw.path, n)
}

// Close syncs and closes the file. Later calls are no-ops.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return nil
	}
	syncErr := rw.file.Sync()
	closeErr := rw.file.Close()
	rw.file = nil
	if syncErr != nil {
		return fmt.Errorf("failed to sync log file: %w", syncErr)
	}
	return closeErr
}

// CurrentSize returns the current size of the log file in bytes.
func (rw *RotatingWriter) CurrentSize() int64 {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.size
}
