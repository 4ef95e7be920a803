package git

import (
	"fmt"
	"strings"
)

// SnapshotError reports that downloading a source snapshot failed for every
// candidate default branch.
type SnapshotError struct {
	URL      string
	Branches []string
	Err      error // last underlying cause
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("failed to download snapshot of %s (branches tried: %s): %v",
		e.URL, strings.Join(e.Branches, ", "), e.Err)
}

func (e *SnapshotError) Unwrap() error { return e.Err }

// AcquisitionError aggregates the failures of every acquisition strategy.
type AcquisitionError struct {
	URL         string
	CloneErr    error
	SnapshotErr error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("failed to acquire repository %s: clone: %v; snapshot: %v",
		e.URL, e.CloneErr, e.SnapshotErr)
}

func (e *AcquisitionError) Unwrap() error { return e.SnapshotErr }
