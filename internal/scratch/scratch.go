// Package scratch manages request-owned temporary files: exclusive creation,
// streaming writes and best-effort removal that tolerates transient locks.
package scratch

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// namePrefix marks files owned by this package so the sweeper never touches
// anything else in a shared temp directory.
const namePrefix = "interview-scratch-"

// Config controls where scratch files live and how hard release tries.
type Config struct {
	Dir             string
	ReleaseAttempts int
	ReleaseDelay    time.Duration
}

// Dir creates and releases scratch files in one directory.
type Dir struct {
	path     string
	attempts int
	delay    time.Duration
	logger   *zap.Logger

	// remove is os.Remove outside of tests
	remove func(name string) error
}

// NewDir prepares the scratch directory, creating it if needed.
func NewDir(cfg Config, logger *zap.Logger) (*Dir, error) {
	if cfg.Dir == "" {
		cfg.Dir = os.TempDir()
	}
	if cfg.ReleaseAttempts < 1 {
		cfg.ReleaseAttempts = 5
	}
	if cfg.ReleaseDelay <= 0 {
		cfg.ReleaseDelay = 400 * time.Millisecond
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}

	return &Dir{
		path:     cfg.Dir,
		attempts: cfg.ReleaseAttempts,
		delay:    cfg.ReleaseDelay,
		logger:   logger,
		remove:   os.Remove,
	}, nil
}

// Path returns the directory holding scratch files.
func (d *Dir) Path() string {
	return d.path
}

// Create makes a new empty scratch file with the given extension (".wav").
// The name is unique per call and the file is opened with O_EXCL, so no two
// callers can ever share a path.
func (d *Dir) Create(ext string) (*File, error) {
	f, err := d.open(ext)
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		sf := d.wrap(f.Name())
		sf.Release()
		return nil, fmt.Errorf("failed to close scratch file: %w", err)
	}
	return d.wrap(f.Name()), nil
}

// Write streams r into a new scratch file. The data is never held in memory
// as a whole. On failure nothing is left behind.
func (d *Dir) Write(ext string, r io.Reader) (*File, error) {
	f, err := d.open(ext)
	if err != nil {
		return nil, err
	}
	sf := d.wrap(f.Name())

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		sf.Release()
		return nil, fmt.Errorf("failed to write scratch file: %w", err)
	}

	sf.size = n
	d.logger.Debug("Scratch file written",
		zap.String("path", sf.path),
		zap.Int64("bytes", n))

	return sf, nil
}

func (d *Dir) open(ext string) (*os.File, error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name := filepath.Join(d.path, namePrefix+uuid.New().String()+ext)
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch file: %w", err)
	}
	return f, nil
}

func (d *Dir) wrap(path string) *File {
	return &File{path: path, dir: d}
}

// File is a scratch file owned by exactly one request.
type File struct {
	path string
	size int64
	dir  *Dir

	once sync.Once
	err  error
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Size returns the number of bytes written by Dir.Write.
func (f *File) Size() int64 {
	return f.size
}

// Release deletes the file. Removal is retried while the file is locked by
// someone else; other errors stop immediately. A file that is already gone
// counts as released. The final error is logged and returned, callers are
// free to ignore it. Release is safe to call more than once.
func (f *File) Release() error {
	f.once.Do(func() {
		f.err = f.dir.release(f.path)
	})
	return f.err
}

func (d *Dir) release(path string) error {
	attempt := 0
	op := func() error {
		attempt++
		err := d.remove(path)
		switch {
		case err == nil, errors.Is(err, fs.ErrNotExist):
			return nil
		case isLockError(err):
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(d.delay), uint64(d.attempts-1))
	notify := func(err error, wait time.Duration) {
		d.logger.Debug("Scratch file locked, retrying removal",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		d.logger.Error("Failed to remove scratch file",
			zap.String("path", path),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return fmt.Errorf("failed to remove scratch file %s: %w", path, err)
	}

	return nil
}

// isLockError reports errors caused by another process holding the file.
func isLockError(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETXTBSY)
}
