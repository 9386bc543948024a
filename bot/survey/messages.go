package survey

import (
	"fmt"
	"sort"
	"strings"

	"github.com/m3rciful/dndsurvey/core/state"
)

const (
	msgGreeting = "Hi! 👋\nLet's run a short D&D survey.\n\n"

	msgAskWantPlay      = "Do you want to play D&D?"
	msgRepromptWantPlay = "Please choose an option: \"Yes\" or \"No\" 🙂"
	msgAckWantPlay      = "Got it 👍\n\n"

	msgAskFavClass      = "Question 2:\nWhat is your favourite D&D class? (e.g. mage, bard, barbarian)"
	msgRepromptFavClass = "Please type the name of a class 🙂"
	msgAckFavClass      = "Cool! 🎲\n\n"

	msgAskStyle = "Last question:\nWhat do you enjoy most in D&D:\n" +
		"- fighting and rolling dice\n- dialogue and role-play\n- or a mix of both?"
	msgRepromptStyle = "Please write a few words about your play style 🙂"

	msgGuidance = "I run a D&D survey 😊\nSend /start to take it or /help for a hint."

	msgSlowDown = "Easy there, that message came in too fast and was skipped. Please send it again."

	msgStatsDenied   = "This command is only available to the bot admin."
	msgStatsDisabled = "Answers are not being stored, so there is nothing to report."
)

var (
	choicesWantPlay = [][]string{{"Yes", "No"}}
	choicesFavClass = [][]string{{"Mage", "Warrior"}, {"Bard", "Rogue"}}
	choicesStyle    = [][]string{{"Fighting", "Dialogue"}, {"Mixed"}}
)

// Command describes a slash command for help text and client menus.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Admin       bool
}

// names returns the command name followed by its aliases.
func (c Command) names() []string {
	return append([]string{c.Name}, c.Aliases...)
}

// Commands lists the commands the survey understands.
func Commands() []Command {
	return []Command{
		{Name: "start", Aliases: []string{"restart"}, Description: "Start the survey over"},
		{Name: "help", Description: "Show what this bot does"},
		{Name: "stats", Description: "Show survey statistics", Admin: true},
	}
}

func helpText(isAdmin bool) string {
	var b strings.Builder
	b.WriteString("I'm a D&D survey bot.\nCommands:\n")
	for _, c := range Commands() {
		if c.Admin && !isAdmin {
			continue
		}
		fmt.Fprintf(&b, "/%s - %s\n", strings.Join(c.names(), ", /"), c.Description)
	}
	b.WriteString("\nSend /start and I'll ask you three short questions.")
	return b.String()
}

func summaryText(ev displayIdentity, a Answers) string {
	want := "no"
	if a.WantPlay {
		want = "yes"
	}
	return fmt.Sprintf("Thanks, all recorded! ✅\n\nYou: %s (id: %d)\nWant to play: %s\nFavourite class: %s\nPlay style: %s\n\nTo take the survey again, send /start.",
		ev.name(), ev.id, want, a.FavClass, a.Style)
}

type displayIdentity struct {
	id          int64
	displayName string
	handle      string
}

func (d displayIdentity) name() string {
	switch {
	case strings.TrimSpace(d.displayName) != "":
		return strings.TrimSpace(d.displayName)
	case d.handle != "":
		return "@" + d.handle
	default:
		return "anonymous"
	}
}

// statsText renders aggregates. A nil st means answers are not stored.
func statsText(st *Stats, sessions map[state.State]int) string {
	var b strings.Builder
	b.WriteString("📊 Survey stats\n")
	if st == nil {
		b.WriteString(msgStatsDisabled + "\n")
	} else {
		fmt.Fprintf(&b, "Answers: %d (want to play: %d, not: %d)\n", st.Total, st.WantPlay, st.NotWantPlay)
	}
	if st != nil && len(st.TopClasses) > 0 {
		parts := make([]string, 0, len(st.TopClasses))
		for _, c := range st.TopClasses {
			parts = append(parts, fmt.Sprintf("%s (%d)", c.Class, c.Count))
		}
		fmt.Fprintf(&b, "Top classes: %s\n", strings.Join(parts, ", "))
	}
	if len(sessions) > 0 {
		keys := make([]string, 0, len(sessions))
		for s := range sessions {
			keys = append(keys, string(s))
		}
		sort.Strings(keys)
		b.WriteString("Sessions:")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%d", k, sessions[state.State(k)])
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// SlowDown is the reply to a message dropped by the rate limiter. The keyboard
// of the current question, if any, stays in place.
func SlowDown(st State) Reply {
	r := Reply{Text: msgSlowDown}
	if step, ok := table[st]; ok {
		r.Choices = step.Prompt.Choices
	}
	return r
}
