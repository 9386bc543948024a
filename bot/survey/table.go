package survey

import (
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/dndsurvey/core/state"
)

// ErrNotInSurvey is returned by Advance when the session is not waiting for an answer.
var ErrNotInSurvey = errors.New("survey: session is not answering a question")

// Step describes how a question state handles a text answer.
type Step struct {
	// Prompt is the question asked while the session is in this state.
	Prompt Reply
	// Reprompt replaces the prompt text when the answer is rejected.
	Reprompt string
	// Ack prefixes the next question after an accepted answer.
	Ack string
	// Accept validates text and records it. A rejected answer leaves a untouched.
	Accept func(a *Answers, text string) bool
	// Next is entered after an accepted answer.
	Next state.State
	// Commit marks the last question: an accepted answer completes the survey.
	Commit bool
}

var table = map[state.State]Step{
	StateAwaitWantPlay: {
		Prompt:   Reply{Text: msgAskWantPlay, Choices: choicesWantPlay},
		Reprompt: msgRepromptWantPlay,
		Ack:      msgAckWantPlay,
		Accept:   acceptWantPlay,
		Next:     StateAwaitFavClass,
	},
	StateAwaitFavClass: {
		Prompt:   Reply{Text: msgAskFavClass, Choices: choicesFavClass},
		Reprompt: msgRepromptFavClass,
		Ack:      msgAckFavClass,
		Accept:   acceptFavClass,
		Next:     StateAwaitStyle,
	},
	StateAwaitStyle: {
		Prompt:   Reply{Text: msgAskStyle, Choices: choicesStyle},
		Reprompt: msgRepromptStyle,
		Accept:   acceptStyle,
		Next:     StateIdle,
		Commit:   true,
	},
}

// StepFor returns the step for a question state.
func StepFor(s state.State) (Step, bool) {
	step, ok := table[s]
	return step, ok
}

// Transition is the outcome of feeding one answer to a session.
type Transition struct {
	From     state.State
	To       state.State
	Accepted bool
	// Commit is set when the answers are complete and must be persisted.
	Commit bool
	// Reply is the next question or the re-prompt. Empty on commit.
	Reply Reply
}

// Advance applies text to the session according to the transition table.
// Rejected input leaves the session unchanged.
func Advance(sess *Session, text string) (Transition, error) {
	step, ok := table[sess.State]
	if !ok {
		return Transition{}, fmt.Errorf("%w: %q", ErrNotInSurvey, sess.State)
	}
	tr := Transition{From: sess.State, To: sess.State}

	data := sess.Data
	if !step.Accept(&data, text) {
		tr.Reply = Reply{Text: step.Reprompt, Choices: step.Prompt.Choices}
		return tr, nil
	}

	sess.Data = data
	sess.State = step.Next
	tr.To = step.Next
	tr.Accepted = true
	tr.Commit = step.Commit
	if next, ok := table[step.Next]; ok {
		tr.Reply = Reply{Text: step.Ack + next.Prompt.Text, Choices: next.Prompt.Choices}
	}
	return tr, nil
}

func acceptWantPlay(a *Answers, text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes":
		a.WantPlay = true
	case "no":
		a.WantPlay = false
	default:
		return false
	}
	return true
}

func acceptFavClass(a *Answers, text string) bool {
	v := strings.TrimSpace(text)
	if v == "" {
		return false
	}
	a.FavClass = v
	return true
}

func acceptStyle(a *Answers, text string) bool {
	v := strings.TrimSpace(text)
	if v == "" {
		return false
	}
	a.Style = v
	return true
}
