// Package ledger persists build records as a bounded, newest-first JSON file.
//
// The ledger is the only state shared across concurrent build pipelines, so
// every load-mutate-store cycle runs under a single mutex. Persistence is
// best-effort: an unreadable or corrupt file is reinitialized to an empty
// ledger instead of failing the caller.
package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/apkbuilder/internal/logfields"
)

// fileFormat is the on-disk shape: total count plus newest-first records.
type fileFormat struct {
	TotalBuilds int      `json:"total_builds"`
	Builds      []Record `json:"builds"`
}

// Ledger is a mutex-serialized, file-backed store of build records.
type Ledger struct {
	mu         sync.Mutex
	path       string
	maxRecords int
	builds     []Record // newest first
	loaded     bool
}

// New creates a ledger backed by the given file. The file is loaded lazily on
// first use.
func New(path string, maxRecords int) *Ledger {
	if maxRecords <= 0 {
		maxRecords = 100
	}
	return &Ledger{path: path, maxRecords: maxRecords}
}

// Append adds a record at the head of the ledger. The caller supplies the id;
// the ledger assigns no identity. If appending pushes the count past the cap,
// the oldest records are evicted.
func (l *Ledger) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded()

	l.builds = append([]Record{rec}, l.builds...)
	if len(l.builds) > l.maxRecords {
		l.builds = l.builds[:l.maxRecords]
	}
	return l.saveLocked()
}

// Update applies fn to the record with the given id and persists the result.
// An unknown id is a silent no-op: a background pipeline may race a ledger
// reset and must not crash.
func (l *Ledger) Update(id string, fn func(*Record)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded()

	for i := range l.builds {
		if l.builds[i].ID == id {
			fn(&l.builds[i])
			return l.saveLocked()
		}
	}
	return nil
}

// Get returns the record with the given id.
func (l *Ledger) Get(id string) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded()

	for _, rec := range l.builds {
		if rec.ID == id {
			return rec, true
		}
	}
	return Record{}, false
}

// List returns the total record count and the newest-first page bounded by
// limit.
func (l *Ledger) List(limit int) (int, []Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded()

	total := len(l.builds)
	if limit <= 0 || limit > total {
		limit = total
	}
	page := make([]Record, limit)
	copy(page, l.builds[:limit])
	return total, page
}

// SetMaxRecords changes the retention cap at runtime, evicting oldest records
// if the new cap is smaller.
func (l *Ledger) SetMaxRecords(n int) {
	if n <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded()

	l.maxRecords = n
	if len(l.builds) > n {
		l.builds = l.builds[:n]
		if err := l.saveLocked(); err != nil {
			slog.Warn("Failed to persist ledger after cap change", logfields.Error(err))
		}
	}
}

// ensureLoaded lazily reads the backing file. Callers must hold l.mu.
func (l *Ledger) ensureLoaded() {
	if l.loaded {
		return
	}
	l.loaded = true

	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Ledger file unreadable, starting empty", logfields.Path(l.path), logfields.Error(err))
		}
		return
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		slog.Warn("Ledger file corrupt, reinitializing", logfields.Path(l.path), logfields.Error(err))
		return
	}

	l.builds = ff.Builds
	if len(l.builds) > l.maxRecords {
		l.builds = l.builds[:l.maxRecords]
	}
}

// saveLocked writes the ledger atomically via a temp file and rename.
// Callers must hold l.mu.
func (l *Ledger) saveLocked() error {
	ff := fileFormat{TotalBuilds: len(l.builds), Builds: l.builds}
	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	tempPath := l.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary ledger file: %w", err)
	}
	if err := os.Rename(tempPath, l.path); err != nil {
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}
