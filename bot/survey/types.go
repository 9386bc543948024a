package survey

import (
	"context"

	"github.com/m3rciful/dndsurvey/core/state"
)

// State is a survey conversation state.
type State = state.State

// Survey states. StateIdle is both the initial and the terminal state.
const (
	StateIdle          State = state.StateIdle
	StateAwaitWantPlay State = "await_want_play"
	StateAwaitFavClass State = "await_fav_class"
	StateAwaitStyle    State = "await_style"
)

// States lists every state a survey session can be in.
func States() []State {
	return []State{StateIdle, StateAwaitWantPlay, StateAwaitFavClass, StateAwaitStyle}
}

// QuestionStates lists the states in which the user is answering a question.
func QuestionStates() []State {
	return []State{StateAwaitWantPlay, StateAwaitFavClass, StateAwaitStyle}
}

// Answers holds the fields collected so far in a session.
type Answers struct {
	WantPlay bool
	FavClass string
	Style    string
}

// Session is a survey session as kept by the session store.
type Session = state.Session[Answers]

// User identifies a respondent.
type User struct {
	ID          int64
	DisplayName string
	Handle      string
}

// Answer is one completed survey.
type Answer struct {
	UserID   int64
	WantPlay bool
	FavClass string
	Style    string
}

// ClassCount is the number of answers naming a class.
type ClassCount struct {
	Class string `db:"fav_class" json:"class"`
	Count int    `db:"count" json:"count"`
}

// Stats aggregates stored answers.
type Stats struct {
	Total       int          `json:"total"`
	WantPlay    int          `json:"want_play"`
	NotWantPlay int          `json:"not_want_play"`
	TopClasses  []ClassCount `json:"top_classes"`
}

// Reply is an outbound message. Choices are suggested replies, one slice per row.
type Reply struct {
	Text    string
	Choices [][]string
}

// Repository persists respondents and completed surveys.
type Repository interface {
	// UpsertUser inserts the user or overwrites name and handle of an existing one.
	UpsertUser(ctx context.Context, u User) error
	// AppendAnswer stores a completed survey and returns its id.
	AppendAnswer(ctx context.Context, a Answer) (int64, error)
}

// StatsReader reports aggregates over stored answers.
type StatsReader interface {
	AnswerStats(ctx context.Context, top int) (Stats, error)
}

// Emitter delivers replies to users.
type Emitter interface {
	Send(ctx context.Context, userID int64, r Reply) error
}

// SessionCounter reports in-flight sessions per state.
type SessionCounter interface {
	Snapshot() map[state.State]int
}
