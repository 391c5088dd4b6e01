// Package attach tracks which remote destinations this process has already
// sent an AttachTo envelope to (spec.md §4.7, C7). The source approximates
// this with a single global int (g_attached); spec.md §9 calls for a proper
// set guarded if producers are multi-threaded — application send-RPC
// helpers may be called from arbitrary goroutines, so this is always
// mutex-guarded.
package attach

import "sync"

// Manager records attached destinations. The zero value is not usable; use
// NewManager.
type Manager struct {
	mu       sync.Mutex
	attached map[string]struct{}
}

// NewManager returns an empty attach manager.
func NewManager() *Manager {
	return &Manager{attached: make(map[string]struct{})}
}

// EnsureAttached records dest as attached and reports whether this call is
// the first for dest — i.e. whether the caller must now send an AttachTo
// envelope before the RPC it is framing. An empty dest (self) never needs
// attaching.
func (m *Manager) EnsureAttached(dest string) (needsAttach bool) {
	if dest == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attached[dest]; ok {
		return false
	}
	m.attached[dest] = struct{}{}
	return true
}
