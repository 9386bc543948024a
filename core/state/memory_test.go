package state

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type form struct {
	Name  string
	Count int
}

const stateAsking State = "asking"

func TestGetCreatesIdleSession(t *testing.T) {
	store := NewMemoryStore[form]()

	sess := store.Get(1)
	assert.Equal(t, StateIdle, sess.State)
	assert.Equal(t, form{}, sess.Data)
	assert.Equal(t, map[State]int{StateIdle: 1}, store.Snapshot())
}

func TestGetReturnsCopy(t *testing.T) {
	store := NewMemoryStore[form]()
	store.Set(1, Session[form]{State: stateAsking, Data: form{Name: "a"}})

	sess := store.Get(1)
	sess.Data.Name = "mutated"
	sess.State = StateIdle

	again := store.Get(1)
	assert.Equal(t, stateAsking, again.State)
	assert.Equal(t, "a", again.Data.Name)
}

func TestSetDefaultsEmptyStateToIdle(t *testing.T) {
	store := NewMemoryStore[form]()
	store.Set(5, Session[form]{Data: form{Count: 2}})
	assert.Equal(t, StateIdle, store.Get(5).State)
}

func TestClearDiscardsData(t *testing.T) {
	store := NewMemoryStore[form]()
	store.Set(1, Session[form]{State: stateAsking, Data: form{Name: "x", Count: 3}})

	store.Clear(1)

	assert.Equal(t, Session[form]{State: StateIdle}, store.Get(1))
}

func TestUpdateCommitsOnlyOnSuccess(t *testing.T) {
	store := NewMemoryStore[form]()
	store.Set(1, Session[form]{State: stateAsking, Data: form{Name: "kept"}})

	boom := errors.New("boom")
	err := store.Update(1, func(s *Session[form]) error {
		s.Data.Name = "discarded"
		s.State = StateIdle
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Session[form]{State: stateAsking, Data: form{Name: "kept"}}, store.Get(1))

	require.NoError(t, store.Update(1, func(s *Session[form]) error {
		s.Data.Count++
		return nil
	}))
	assert.Equal(t, 1, store.Get(1).Data.Count)
}

func TestUpdateIsAtomicPerUser(t *testing.T) {
	store := NewMemoryStore[form]()
	const workers, rounds = 8, 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				_ = store.Update(42, func(s *Session[form]) error {
					s.Data.Count++
					return nil
				})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*rounds, store.Get(42).Data.Count)
}

func TestUpdateDoesNotBlockOtherUsers(t *testing.T) {
	store := NewMemoryStore[form]()
	entered := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = store.Update(1, func(s *Session[form]) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered
	defer close(release)

	done := make(chan struct{})
	go func() {
		_ = store.Update(2, func(s *Session[form]) error {
			s.State = stateAsking
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("update for user 2 blocked behind user 1")
	}
	assert.Equal(t, stateAsking, store.Get(2).State)
}

func TestSnapshotCountsStates(t *testing.T) {
	store := NewMemoryStore[form]()
	store.Set(1, Session[form]{State: stateAsking})
	store.Set(2, Session[form]{State: stateAsking})
	store.Get(3)

	assert.Equal(t, map[State]int{stateAsking: 2, StateIdle: 1}, store.Snapshot())
}

func TestSnapshotDoesNotWaitForUpdate(t *testing.T) {
	store := NewMemoryStore[form]()
	store.Set(2, Session[form]{State: stateAsking})

	var inside map[State]int
	require.NoError(t, store.Update(1, func(s *Session[form]) error {
		inside = store.Snapshot()
		s.State = stateAsking
		return nil
	}))
	assert.Equal(t, map[State]int{stateAsking: 1, StateIdle: 1}, inside)

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.Update(3, func(s *Session[form]) error {
			close(entered)
			<-release
			s.State = stateAsking
			return nil
		})
	}()
	<-entered
	defer close(release)

	done := make(chan map[State]int, 1)
	go func() { done <- store.Snapshot() }()
	select {
	case got := <-done:
		assert.Equal(t, map[State]int{stateAsking: 2, StateIdle: 1}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot blocked behind a running update")
	}
}

func TestSnapshotTracksRollbackAndClear(t *testing.T) {
	store := NewMemoryStore[form]()
	store.Set(1, Session[form]{State: stateAsking})

	_ = store.Update(1, func(s *Session[form]) error {
		s.State = StateIdle
		return errors.New("rolled back")
	})
	assert.Equal(t, map[State]int{stateAsking: 1}, store.Snapshot())

	store.Clear(1)
	assert.Equal(t, map[State]int{StateIdle: 1}, store.Snapshot())
}
