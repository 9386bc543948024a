package survey

import (
	"context"
	"sort"
	"sync"
)

type fakeRepo struct {
	mu        sync.Mutex
	users     map[int64]User
	answers   []Answer
	upsertErr error
	appendErr error
	stats     Stats
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[int64]User{}}
}

func (f *fakeRepo) UpsertUser(_ context.Context, u User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeRepo) AppendAnswer(_ context.Context, a Answer) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return 0, f.appendErr
	}
	f.answers = append(f.answers, a)
	return int64(len(f.answers)), nil
}

func (f *fakeRepo) AnswerStats(context.Context, int) (Stats, error) {
	return f.stats, nil
}

func (f *fakeRepo) answersFor(userID int64) []Answer {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Answer
	for _, a := range f.answers {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

func (f *fakeRepo) sortedAnswers() []Answer {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]Answer(nil), f.answers...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

type fakeEmitter struct {
	mu      sync.Mutex
	replies map[int64][]Reply
	err     error
}

func newFakeEmitter() *fakeEmitter {
	return &fakeEmitter{replies: map[int64][]Reply{}}
}

func (f *fakeEmitter) Send(_ context.Context, userID int64, r Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[userID] = append(f.replies[userID], r)
	return f.err
}

func (f *fakeEmitter) last(userID int64) Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	rs := f.replies[userID]
	if len(rs) == 0 {
		return Reply{}
	}
	return rs[len(rs)-1]
}

func (f *fakeEmitter) count(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replies[userID])
}
