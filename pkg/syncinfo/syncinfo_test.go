package syncinfo

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSyncManagerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syncinfo.dat")

	sm, err := NewSyncManager(path)
	if err != nil {
		t.Fatal(err)
	}

	info := SyncInfo{
		LastSync:  time.Now().UTC().Truncate(time.Second),
		Succeeded: 4,
		Failed:    1,
	}
	if err := sm.Record(info); err != nil {
		t.Fatalf("Failed to record sync info: %v", err)
	}

	// A fresh manager must see the persisted state.
	sm2, err := NewSyncManager(path)
	if err != nil {
		t.Fatal(err)
	}
	loaded := sm2.Get()
	if !loaded.LastSync.Equal(info.LastSync) || loaded.Succeeded != 4 || loaded.Failed != 1 {
		t.Errorf("Loaded sync info does not match. Expected: %+v, Got: %+v", info, loaded)
	}
}

func TestSyncManagerEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syncinfo.dat")

	sm, err := NewSyncManager(path)
	if err != nil {
		t.Fatal(err)
	}

	if got := sm.Get(); !got.LastSync.IsZero() {
		t.Errorf("Expected zero state for a fresh file, got %+v", got)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("state file was not created: %v", err)
	}
}
