// Package presence owns the mutable realtime state of the core: which users
// have live connections, who is blocked from calling whom, and which users
// are in an active call. Each store serializes access with its own lock and
// hands out snapshots, never internal maps.
package presence

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry maps user ids to their live connection handles. A user appears as
// a key only while at least one handle is registered.
type Registry struct {
	mu     sync.RWMutex
	users  map[string]map[string]struct{}
	owners map[string]string // handle -> user
}

func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[string]map[string]struct{}),
		owners: make(map[string]string),
	}
}

// Register adds a handle to a user's set and returns the online snapshot
// taken under the same lock, so broadcasts never observe a half-applied
// mutation. Registering the same handle twice is a no-op.
func (r *Registry) Register(userID, handleID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.owners[handleID]; ok && prev != userID {
		r.removeLocked(prev, handleID)
	}

	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]struct{})
		r.users[userID] = set
	}
	set[handleID] = struct{}{}
	r.owners[handleID] = userID

	return r.snapshotLocked()
}

// Unregister removes a handle from whichever user owns it. It reports the
// owning user, whether that user went offline, and the online snapshot.
func (r *Registry) Unregister(handleID string) (userID string, wentOffline bool, online []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[handleID]
	if !ok {
		return "", false, r.snapshotLocked()
	}

	wentOffline = r.removeLocked(userID, handleID)
	return userID, wentOffline, r.snapshotLocked()
}

func (r *Registry) removeLocked(userID, handleID string) (wentOffline bool) {
	delete(r.owners, handleID)

	set, ok := r.users[userID]
	if !ok {
		return false
	}

	delete(set, handleID)
	if len(set) == 0 {
		delete(r.users, userID)
		return true
	}
	return false
}

// IsOnline reports whether the user has at least one live handle.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users[userID]) > 0
}

// HandlesOf returns a copy of the user's handle set.
func (r *Registry) HandlesOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := lo.Keys(r.users[userID])
	sort.Strings(handles)
	return handles
}

// DeviceCount returns how many live handles the user owns.
func (r *Registry) DeviceCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users[userID])
}

// OnlineUsers returns the sorted list of online user ids.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshotLocked()
}

// Owner returns the user id a handle is registered to, if any.
func (r *Registry) Owner(handleID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.owners[handleID]
	return userID, ok
}

func (r *Registry) snapshotLocked() []string {
	users := lo.Keys(r.users)
	sort.Strings(users)
	return users
}
