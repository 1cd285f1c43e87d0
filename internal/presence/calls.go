package presence

import "sync"

// CallTracker records which users are in an active call and who their peer
// is. Both parties enter together on mutual acceptance and leave together on
// hang-up.
type CallTracker struct {
	mu    sync.RWMutex
	peers map[string]string
}

func NewCallTracker() *CallTracker {
	return &CallTracker{
		peers: make(map[string]string),
	}
}

// Join marks both users as in a call with each other.
func (t *CallTracker) Join(a, b string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.peers[a] = b
	t.peers[b] = a
}

// InCall reports whether the user is in an active call.
func (t *CallTracker) InCall(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.peers[userID]
	return ok
}

// PeerOf returns the user's current call peer, if any.
func (t *CallTracker) PeerOf(userID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	peer, ok := t.peers[userID]
	return peer, ok
}

// Leave ends the call between a and b. It is a no-op unless at least one of
// the two is currently tracked, and reports whether anything was removed.
func (t *CallTracker) Leave(a, b string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, okA := t.peers[a]
	_, okB := t.peers[b]
	if !okA && !okB {
		return false
	}

	delete(t.peers, a)
	delete(t.peers, b)
	return true
}

// Remove drops a single user unconditionally, used by the manual reset. The
// peer entry, if one points back, is dropped with it.
func (t *CallTracker) Remove(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if peer, ok := t.peers[userID]; ok {
		if t.peers[peer] == userID {
			delete(t.peers, peer)
		}
	}
	delete(t.peers, userID)
}

// Size returns how many users are currently in calls.
func (t *CallTracker) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.peers)
}
