package router

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/dndsurvey/core/state"
)

type counter struct{ N int }

const (
	stWaiting state.State = "waiting"
)

func record(name string, seen *[]string) Handler[counter] {
	return func(_ context.Context, _ Event, sess *state.Session[counter]) error {
		*seen = append(*seen, name)
		sess.Data.N++
		return nil
	}
}

func TestNewRequiresSingleTrailingCatchAll(t *testing.T) {
	store := state.NewMemoryStore[counter]()
	var seen []string

	_, err := New[counter](store)
	assert.ErrorIs(t, err, ErrNoCatchAll)

	_, err = New(store, On("a", Text[counter](), record("a", &seen)))
	assert.ErrorIs(t, err, ErrNoCatchAll)

	_, err = New(store,
		Fallback("early", record("early", &seen)),
		On("a", Text[counter](), record("a", &seen)),
	)
	assert.ErrorIs(t, err, ErrNoCatchAll)

	_, err = New(store,
		Fallback("one", record("one", &seen)),
		Fallback("two", record("two", &seen)),
	)
	assert.ErrorIs(t, err, ErrNoCatchAll)

	_, err = New(store, On[counter]("nil", nil, record("x", &seen)), Fallback("f", record("f", &seen)))
	assert.Error(t, err)

	d, err := New(store, On("a", Text[counter](), record("a", &seen)), Fallback("f", record("f", &seen)))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "f"}, d.Rules())
}

func TestDispatchFirstMatchWins(t *testing.T) {
	store := state.NewMemoryStore[counter]()
	var seen []string
	d, err := New(store,
		On("start", Command[counter]("start"), func(_ context.Context, _ Event, sess *state.Session[counter]) error {
			seen = append(seen, "start")
			sess.State = stWaiting
			return nil
		}),
		On("digits", TextMatches[counter](regexp.MustCompile(`^\d+$`)), record("digits", &seen)),
		On("yes", All(InState[counter](stWaiting), TextEquals[counter]("yes")), record("yes", &seen)),
		On("waiting", All(InState[counter](stWaiting), Text[counter]()), record("waiting", &seen)),
		Fallback("fallback", record("fallback", &seen)),
	)
	require.NoError(t, err)
	ctx := context.Background()

	for _, text := range []string{"hello", "/start", " YES ", "maybe", "/unknown", "123"} {
		require.NoError(t, d.Dispatch(ctx, NewEvent(7, text)))
	}

	assert.Equal(t, []string{"fallback", "start", "yes", "waiting", "fallback", "digits"}, seen)
	assert.Equal(t, stWaiting, store.Get(7).State)
}

func TestDispatchDiscardsSessionChangesOnError(t *testing.T) {
	store := state.NewMemoryStore[counter]()
	store.Set(1, state.Session[counter]{State: stWaiting, Data: counter{N: 5}})
	boom := errors.New("storage down")

	d, err := New(store,
		On("fail", InState[counter](stWaiting), func(_ context.Context, _ Event, sess *state.Session[counter]) error {
			sess.Reset()
			return boom
		}),
		Fallback("fallback", func(context.Context, Event, *state.Session[counter]) error { return nil }),
	)
	require.NoError(t, err)

	err = d.Dispatch(context.Background(), NewEvent(1, "anything"))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, state.Session[counter]{State: stWaiting, Data: counter{N: 5}}, store.Get(1))
}

func TestAdminOnly(t *testing.T) {
	var seen []string
	guard := AdminOnly(AdminOptions[counter]{AdminID: 99, OnReject: record("rejected", &seen)})
	h := guard(record("allowed", &seen))

	sess := &state.Session[counter]{}
	require.NoError(t, h(context.Background(), Event{SenderID: 1}, sess))
	require.NoError(t, h(context.Background(), Event{SenderID: 99}, sess))
	assert.Equal(t, []string{"rejected", "allowed"}, seen)

	unset := AdminOnly(AdminOptions[counter]{})(record("never", &seen))
	require.NoError(t, unset(context.Background(), Event{SenderID: 0}, sess))
	assert.NotContains(t, seen, "never")
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in      string
		cmd     string
		args    string
		command bool
	}{
		{"/start", "start", "", true},
		{"  /Start@SurveyBot  again ", "start", "again", true},
		{"/", "", "", false},
		{"/@bot", "", "", false},
		{"start", "", "", false},
		{"", "", "", false},
	}
	for _, tc := range cases {
		cmd, args, ok := ParseCommand(tc.in)
		assert.Equal(t, tc.command, ok, tc.in)
		assert.Equal(t, tc.cmd, cmd, tc.in)
		assert.Equal(t, tc.args, args, tc.in)
	}

	ev := NewEvent(3, "/help")
	assert.True(t, ev.IsCommand)
	assert.Equal(t, "help", ev.Command)
	assert.NotEmpty(t, ev.ID)
}
