package presence

import "sync"

// BlockList maps a user to the set of users barred from calling them.
// Entries are created when a callee answers an invitation with "block" and
// only ever removed by an explicit clear; they survive disconnects.
type BlockList struct {
	mu      sync.RWMutex
	blocked map[string]map[string]struct{} // blocker -> callers
}

func NewBlockList() *BlockList {
	return &BlockList{
		blocked: make(map[string]map[string]struct{}),
	}
}

// Block bars caller from calling blocker.
func (b *BlockList) Block(blocker, caller string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.blocked[blocker]
	if !ok {
		set = make(map[string]struct{})
		b.blocked[blocker] = set
	}
	set[caller] = struct{}{}
}

// IsBlocked reports whether caller is barred from calling blocker.
func (b *BlockList) IsBlocked(blocker, caller string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.blocked[blocker][caller]
	return ok
}

// Clear drops every entry owned by the user.
func (b *BlockList) Clear(blocker string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.blocked, blocker)
}
