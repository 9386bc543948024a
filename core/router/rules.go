package router

import (
	"regexp"
	"strings"

	"github.com/m3rciful/dndsurvey/core/state"
)

// Predicate decides whether a rule applies to an event given the sender's session.
type Predicate[D any] func(ev Event, sess state.Session[D]) bool

// Rule pairs a predicate with the handler it selects.
type Rule[D any] struct {
	Name   string
	Match  Predicate[D]
	Handle Handler[D]

	catchAll bool
}

// On declares a rule that fires when match holds.
func On[D any](name string, match Predicate[D], h Handler[D]) Rule[D] {
	return Rule[D]{Name: name, Match: match, Handle: h}
}

// Fallback declares the universal catch-all rule. It must be registered last.
func Fallback[D any](name string, h Handler[D]) Rule[D] {
	return Rule[D]{
		Name:     name,
		Match:    func(Event, state.Session[D]) bool { return true },
		Handle:   h,
		catchAll: true,
	}
}

// Command matches events carrying one of the given command names.
func Command[D any](names ...string) Predicate[D] {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(n), "/"))] = struct{}{}
	}
	return func(ev Event, _ state.Session[D]) bool {
		if !ev.IsCommand {
			return false
		}
		_, ok := set[ev.Command]
		return ok
	}
}

// InState matches when the sender's session is in one of the given states.
func InState[D any](states ...state.State) Predicate[D] {
	set := make(map[state.State]struct{}, len(states))
	for _, s := range states {
		set[s] = struct{}{}
	}
	return func(_ Event, sess state.Session[D]) bool {
		_, ok := set[sess.State]
		return ok
	}
}

// Text matches events that are plain text rather than commands.
func Text[D any]() Predicate[D] {
	return func(ev Event, _ state.Session[D]) bool {
		return !ev.IsCommand
	}
}

// TextEquals matches text equal to one of values, ignoring case and surrounding space.
func TextEquals[D any](values ...string) Predicate[D] {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return func(ev Event, _ state.Session[D]) bool {
		_, ok := set[ev.NormalizedText()]
		return ok
	}
}

// TextMatches matches text against a regular expression.
func TextMatches[D any](re *regexp.Regexp) Predicate[D] {
	return func(ev Event, _ state.Session[D]) bool {
		return re.MatchString(ev.Text)
	}
}

// All matches when every predicate matches.
func All[D any](preds ...Predicate[D]) Predicate[D] {
	return func(ev Event, sess state.Session[D]) bool {
		for _, p := range preds {
			if !p(ev, sess) {
				return false
			}
		}
		return true
	}
}
