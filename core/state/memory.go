package state

import "sync"

type entry[D any] struct {
	mu   sync.Mutex
	sess Session[D]
}

type memoryStore[D any] struct {
	mu      sync.RWMutex
	entries map[int64]*entry[D]

	// countMu guards counts only. It may be taken while an entry lock is held,
	// never the other way round.
	countMu sync.Mutex
	counts  map[State]int
}

// NewMemoryStore constructs an in-memory Store. Sessions do not survive a process restart.
func NewMemoryStore[D any]() Store[D] {
	return &memoryStore[D]{
		entries: make(map[int64]*entry[D]),
		counts:  make(map[State]int),
	}
}

// lookup returns the user's entry, creating an idle one if needed.
// Entries are never removed, so a pointer obtained here stays valid.
func (m *memoryStore[D]) lookup(userID int64) *entry[D] {
	m.mu.RLock()
	e, ok := m.entries[userID]
	m.mu.RUnlock()
	if ok {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok = m.entries[userID]; ok {
		return e
	}
	e = &entry[D]{sess: Session[D]{State: StateIdle}}
	m.entries[userID] = e
	m.move("", StateIdle)
	return e
}

// move shifts one session from one state count to another.
func (m *memoryStore[D]) move(from, to State) {
	if from == to {
		return
	}
	m.countMu.Lock()
	defer m.countMu.Unlock()
	if from != "" {
		if m.counts[from]--; m.counts[from] <= 0 {
			delete(m.counts, from)
		}
	}
	m.counts[to]++
}

// Get returns the session for a user, creating an idle session on first access.
func (m *memoryStore[D]) Get(userID int64) Session[D] {
	e := m.lookup(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess
}

// Set overwrites the session for a user.
func (m *memoryStore[D]) Set(userID int64, s Session[D]) {
	if s.State == "" {
		s.State = StateIdle
	}
	e := m.lookup(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	m.move(e.sess.State, s.State)
	e.sess = s
}

// Clear resets the user's session to idle.
func (m *memoryStore[D]) Clear(userID int64) {
	e := m.lookup(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	m.move(e.sess.State, StateIdle)
	e.sess.Reset()
}

// Update applies fn atomically with respect to other operations on the same user.
func (m *memoryStore[D]) Update(userID int64, fn func(*Session[D]) error) error {
	e := m.lookup(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	work := e.sess
	if err := fn(&work); err != nil {
		return err
	}
	if work.State == "" {
		work.State = StateIdle
	}
	m.move(e.sess.State, work.State)
	e.sess = work
	return nil
}

// Snapshot returns the number of sessions per state. It reads committed
// counters and never waits for a handler running under Update.
func (m *memoryStore[D]) Snapshot() map[State]int {
	m.countMu.Lock()
	defer m.countMu.Unlock()
	counts := make(map[State]int, len(m.counts))
	for st, n := range m.counts {
		counts[st] = n
	}
	return counts
}
