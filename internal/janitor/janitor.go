// Package janitor periodically sweeps the ephemeral workspace root. The
// pipeline removes its own clone directory and archive on both terminal
// paths, but a crash or kill between acquire and cleanup leaves orphans; the
// sweep removes anything older than a TTL.
package janitor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/apkbuilder/internal/logfields"
)

// Janitor owns the scheduled sweep job.
type Janitor struct {
	scheduler gocron.Scheduler
	tempDir   string

	mu  sync.RWMutex
	ttl time.Duration
}

// New creates a janitor sweeping tempDir on the given interval.
func New(tempDir string, interval, ttl time.Duration) (*Janitor, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	j := &Janitor{scheduler: s, tempDir: tempDir, ttl: ttl}
	if _, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(j.Sweep),
		gocron.WithName("workspace-sweep"),
	); err != nil {
		return nil, fmt.Errorf("failed to schedule sweep job: %w", err)
	}
	return j, nil
}

// Start begins the periodic sweep.
func (j *Janitor) Start() {
	slog.Info("Starting workspace janitor", logfields.Path(j.tempDir), slog.Duration("ttl", j.TTL()))
	j.scheduler.Start()
}

// Stop shuts the scheduler down.
func (j *Janitor) Stop() error { return j.scheduler.Shutdown() }

// TTL returns the current minimum age for removal.
func (j *Janitor) TTL() time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.ttl
}

// SetTTL changes the minimum age at runtime.
func (j *Janitor) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	j.mu.Lock()
	j.ttl = ttl
	j.mu.Unlock()
}

// Sweep removes workspace entries older than the TTL. Only entries created
// by the pipeline (repo_ prefix) are considered; anything else in the temp
// root is left alone.
func (j *Janitor) Sweep() {
	entries, err := os.ReadDir(j.tempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Janitor sweep failed to read temp root", logfields.Path(j.tempDir), logfields.Error(err))
		}
		return
	}

	cutoff := time.Now().Add(-j.TTL())
	removed := 0
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "repo_") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.tempDir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("Janitor failed to remove orphan", logfields.Path(path), logfields.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("Janitor removed orphaned workspaces", slog.Int("count", removed))
	}
}
