// Package syncinfo records when the sync queue last drained and how it
// went, so the terminal can show sync status across restarts.
package syncinfo

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// SyncInfo is the outcome of the most recent queue drain.
type SyncInfo struct {
	LastSync  time.Time `json:"last_sync"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
}

// SyncManager serializes access to the state file.
type SyncManager struct {
	mu       sync.RWMutex
	current  SyncInfo
	filename string
}

// NewSyncManager creates the manager and makes sure the state file
// exists.
func NewSyncManager(fileName string) (*SyncManager, error) {
	file, err := os.OpenFile(fileName, os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	file.Close()

	sm := &SyncManager{filename: fileName}
	if info, err := sm.load(); err == nil {
		sm.current = info
	}
	return sm, nil
}

// Get returns the current synchronization state.
func (sm *SyncManager) Get() SyncInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Record updates the state and persists it.
func (sm *SyncManager) Record(info SyncInfo) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.current = info
	payload, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return os.WriteFile(sm.filename, payload, 0644)
}

func (sm *SyncManager) load() (SyncInfo, error) {
	content, err := os.ReadFile(sm.filename)
	if err != nil {
		return SyncInfo{}, err
	}

	var info SyncInfo
	if err := json.Unmarshal(content, &info); err != nil {
		return SyncInfo{}, err
	}
	return info, nil
}
