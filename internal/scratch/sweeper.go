package scratch

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper periodically deletes scratch files whose release gave up.
type Sweeper struct {
	dir    *Dir
	maxAge time.Duration
	cron   *cron.Cron
	logger *zap.Logger
	now    func() time.Time
}

// NewSweeper schedules Sweep on spec (standard cron syntax or "@every 10m").
func NewSweeper(dir *Dir, spec string, maxAge time.Duration, logger *zap.Logger) (*Sweeper, error) {
	s := &Sweeper{
		dir:    dir,
		maxAge: maxAge,
		cron:   cron.New(),
		logger: logger,
		now:    time.Now,
	}

	if _, err := s.cron.AddFunc(spec, func() { s.Sweep() }); err != nil {
		return nil, err
	}

	logger.Info("Scratch sweeper scheduled",
		zap.String("spec", spec),
		zap.Duration("max_age", maxAge))

	return s, nil
}

// Start runs the schedule in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep removes scratch files older than maxAge and returns how many were deleted.
func (s *Sweeper) Sweep() int {
	entries, err := os.ReadDir(s.dir.Path())
	if err != nil {
		s.logger.Error("Failed to list scratch dir", zap.Error(err))
		return 0
	}

	cutoff := s.now().Add(-s.maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), namePrefix) {
			continue
		}

		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.dir.Path(), e.Name())
		if err := s.dir.remove(path); err != nil {
			s.logger.Warn("Stale scratch file still locked",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("Removed stale scratch files", zap.Int("count", removed))
	}
	return removed
}
