package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/dndsurvey/bot/survey"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	schema, err := os.ReadFile("../../migrations/sqlite/000001_init.up.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)
	return New(db)
}

func TestUpsertUserLastWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertUser(ctx, survey.User{ID: 42, DisplayName: "A", Handle: "a"}))
	require.NoError(t, s.UpsertUser(ctx, survey.User{ID: 42, DisplayName: "B", Handle: "b"}))

	u, err := s.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, UserRow{ID: 42, FullName: "B", Username: "b"}, u)

	var n int
	require.NoError(t, s.db.Get(&n, `SELECT COUNT(*) FROM users`))
	assert.Equal(t, 1, n)
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetUser(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAppendAnswerIsAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertUser(ctx, survey.User{ID: 42, DisplayName: "Tav"}))

	a := survey.Answer{UserID: 42, WantPlay: true, FavClass: "Mage", Style: "Mixed"}
	id1, err := s.AppendAnswer(ctx, a)
	require.NoError(t, err)
	id2, err := s.AppendAnswer(ctx, a)
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	rows, err := s.ListAnswers(ctx, 42)
	require.NoError(t, err)
	want := []AnswerRow{
		{ID: id1, UserID: 42, WantPlay: true, FavClass: "Mage", Style: "Mixed"},
		{ID: id2, UserID: 42, WantPlay: true, FavClass: "Mage", Style: "Mixed"},
	}
	if diff := cmp.Diff(want, rows, cmpopts.IgnoreFields(AnswerRow{}, "CreatedAt")); diff != "" {
		t.Fatalf("answers mismatch (-want +got):\n%s", diff)
	}
	for _, r := range rows {
		assert.False(t, r.CreatedAt.IsZero())
	}
}

func TestAppendAnswerRequiresUser(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AppendAnswer(context.Background(), survey.Answer{UserID: 7, FavClass: "Bard", Style: "x"})
	assert.Error(t, err)
}

func TestAnswerStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.AnswerStats(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, survey.Stats{TopClasses: []survey.ClassCount{}}, empty)

	for id := int64(1); id <= 3; id++ {
		require.NoError(t, s.UpsertUser(ctx, survey.User{ID: id}))
	}
	for _, a := range []survey.Answer{
		{UserID: 1, WantPlay: true, FavClass: "Mage", Style: "Mixed"},
		{UserID: 2, WantPlay: true, FavClass: "mage", Style: "Fighting"},
		{UserID: 3, WantPlay: false, FavClass: "Bard", Style: "Dialogue"},
		{UserID: 3, WantPlay: true, FavClass: "Rogue", Style: "Mixed"},
	} {
		_, err := s.AppendAnswer(ctx, a)
		require.NoError(t, err)
	}

	st, err := s.AnswerStats(ctx, 2)
	require.NoError(t, err)
	want := survey.Stats{
		Total:       4,
		WantPlay:    3,
		NotWantPlay: 1,
		TopClasses:  []survey.ClassCount{{Class: "mage", Count: 2}, {Class: "bard", Count: 1}},
	}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
}
