package survey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceWantPlay(t *testing.T) {
	cases := []struct {
		in       string
		accepted bool
		want     bool
	}{
		{"yes", true, true},
		{"  YES ", true, true},
		{"No", true, false},
		{"\tno\n", true, false},
		{"y", false, false},
		{"yes please", false, false},
		{"", false, false},
		{"да", false, false},
	}
	for _, tc := range cases {
		sess := Session{State: StateAwaitWantPlay, Data: Answers{FavClass: "kept"}}
		before := sess

		tr, err := Advance(&sess, tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.accepted, tr.Accepted, tc.in)
		if !tc.accepted {
			assert.Equal(t, before, sess, "rejected %q must not change the session", tc.in)
			assert.Equal(t, msgRepromptWantPlay, tr.Reply.Text)
			assert.Equal(t, choicesWantPlay, tr.Reply.Choices)
			continue
		}
		assert.Equal(t, StateAwaitFavClass, sess.State, tc.in)
		assert.Equal(t, tc.want, sess.Data.WantPlay, tc.in)
		assert.Contains(t, tr.Reply.Text, msgAskFavClass)
		assert.False(t, tr.Commit)
	}
}

func TestAdvanceFreeTextRejectsBlank(t *testing.T) {
	for _, st := range []State{StateAwaitFavClass, StateAwaitStyle} {
		sess := Session{State: st, Data: Answers{WantPlay: true}}
		tr, err := Advance(&sess, "   \n")
		require.NoError(t, err)
		assert.False(t, tr.Accepted)
		assert.Equal(t, st, sess.State)
		assert.Equal(t, Answers{WantPlay: true}, sess.Data)
	}
}

func TestAdvanceStoresTrimmedText(t *testing.T) {
	sess := Session{State: StateAwaitFavClass}
	_, err := Advance(&sess, "  Mage ")
	require.NoError(t, err)
	assert.Equal(t, "Mage", sess.Data.FavClass)
	assert.Equal(t, StateAwaitStyle, sess.State)

	tr, err := Advance(&sess, "Mixed")
	require.NoError(t, err)
	assert.True(t, tr.Commit)
	assert.Equal(t, StateIdle, tr.To)
	assert.Equal(t, StateAwaitStyle, tr.From)
	assert.Equal(t, Answers{FavClass: "Mage", Style: "Mixed"}, sess.Data)
	assert.Empty(t, tr.Reply.Text)
}

func TestAdvanceOutsideSurvey(t *testing.T) {
	sess := Session{State: StateIdle}
	_, err := Advance(&sess, "yes")
	assert.ErrorIs(t, err, ErrNotInSurvey)
}

func TestTableCoversQuestionStates(t *testing.T) {
	valid := map[State]bool{}
	for _, s := range States() {
		valid[s] = true
	}
	for _, s := range QuestionStates() {
		step, ok := StepFor(s)
		require.True(t, ok, s)
		assert.True(t, valid[step.Next], "step %s leads to unknown state %s", s, step.Next)
		assert.NotEmpty(t, step.Prompt.Text)
		assert.NotEmpty(t, step.Reprompt)
	}
	_, ok := StepFor(StateIdle)
	assert.False(t, ok)
}
