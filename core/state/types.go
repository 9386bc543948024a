package state

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores conversation state and partially collected data for a user.
// D should be a value type; sessions are copied on every read.
type Session[D any] struct {
	State State
	Data  D
}

// Reset returns the session to idle and discards collected data.
func (s *Session[D]) Reset() {
	var zero D
	s.State = StateIdle
	s.Data = zero
}

// Store owns all user sessions. Operations on one user never block another user.
type Store[D any] interface {
	// Get returns a copy of the user's session, creating an idle one on first access.
	Get(userID int64) Session[D]
	// Set replaces the user's session.
	Set(userID int64, s Session[D])
	// Clear resets the user's session to idle and discards its data.
	Clear(userID int64)
	// Update runs fn on a working copy of the session while holding the user's lock.
	// The copy is committed only when fn returns nil.
	Update(userID int64, fn func(*Session[D]) error) error
	// Snapshot counts known sessions per state.
	Snapshot() map[State]int
}
