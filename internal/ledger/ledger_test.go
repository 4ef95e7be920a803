package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(id string) Record {
	return Record{
		ID:        id,
		URL:       "https://github.com/acme/site",
		Name:      "Demo",
		Version:   "1.0.0",
		Status:    StatusProcessing,
		Message:   "Starting build process",
		Timestamp: time.Now().UTC().Format(TimestampFormat),
	}
}

func TestAppendAndGet(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "builds.json"), 10)

	require.NoError(t, l.Append(testRecord("a")))

	rec, ok := l.Get("a")
	require.True(t, ok)
	assert.Equal(t, StatusProcessing, rec.Status)
	assert.Equal(t, "Demo", rec.Name)

	_, ok = l.Get("missing")
	assert.False(t, ok)
}

func TestListNewestFirst(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "builds.json"), 10)

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Append(testRecord(fmt.Sprintf("b%d", i))))
	}

	total, page := l.List(2)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "b4", page[0].ID)
	assert.Equal(t, "b3", page[1].ID)

	total, page = l.List(0)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 5)
}

func TestBoundEvictsOldest(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "builds.json"), 3)

	for i := 0; i < 7; i++ {
		require.NoError(t, l.Append(testRecord(fmt.Sprintf("c%d", i))))
		total, _ := l.List(0)
		assert.LessOrEqual(t, total, 3)
	}

	_, page := l.List(0)
	require.Len(t, page, 3)
	assert.Equal(t, "c6", page[0].ID)
	assert.Equal(t, "c4", page[2].ID)

	_, ok := l.Get("c0")
	assert.False(t, ok, "oldest record should have been evicted")
}

func TestUpdateUnknownIDIsNoOp(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "builds.json"), 10)
	require.NoError(t, l.Append(testRecord("d")))

	require.NoError(t, l.Update("ghost", func(r *Record) {
		r.Status = StatusFailed
	}))

	total, _ := l.List(0)
	assert.Equal(t, 1, total)
}

func TestUpdateMutatesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "builds.json")
	l := New(path, 10)
	require.NoError(t, l.Append(testRecord("e")))

	require.NoError(t, l.Update("e", func(r *Record) {
		r.Status = StatusSucceeded
		r.DownloadURL = "http://host/download/e/Demo_v1.0.0.apk"
		r.APKSize = 1234
	}))

	// A fresh ledger instance must see the persisted update.
	reopened := New(path, 10)
	rec, ok := reopened.Get("e")
	require.True(t, ok)
	assert.Equal(t, StatusSucceeded, rec.Status)
	assert.Equal(t, int64(1234), rec.APKSize)
}

func TestCorruptFileReinitializes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "builds.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	l := New(path, 10)
	total, _ := l.List(0)
	assert.Equal(t, 0, total)

	// The store must stay usable after reinitialization.
	require.NoError(t, l.Append(testRecord("f")))
	_, ok := l.Get("f")
	assert.True(t, ok)
}

func TestConcurrentUpdatesToDistinctIDs(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "builds.json"), 100)

	const n = 16
	for i := 0; i < n; i++ {
		require.NoError(t, l.Append(testRecord(fmt.Sprintf("g%d", i))))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = l.Update(id, func(r *Record) { r.Status = StatusSucceeded })
		}(fmt.Sprintf("g%d", i))
	}
	wg.Wait()

	// No update may be lost to a stale read-modify-write.
	for i := 0; i < n; i++ {
		rec, ok := l.Get(fmt.Sprintf("g%d", i))
		require.True(t, ok)
		assert.Equal(t, StatusSucceeded, rec.Status)
	}
}

func TestSetMaxRecordsTruncates(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "builds.json"), 10)
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Append(testRecord(fmt.Sprintf("h%d", i))))
	}

	l.SetMaxRecords(4)
	total, page := l.List(0)
	assert.Equal(t, 4, total)
	assert.Equal(t, "h9", page[0].ID)
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusSucceeded.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.False(t, StatusBuilding.Terminal())
}
