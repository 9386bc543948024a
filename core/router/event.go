package router

import (
	"strings"

	"github.com/google/uuid"
)

// Event is one normalized inbound text or command from a user.
type Event struct {
	// ID correlates log lines for the event. Transports set their own; NewEvent falls back to a UUID.
	ID       string
	SenderID int64
	Text     string
	// IsCommand is set when Text starts with a slash command token.
	IsCommand bool
	// Command is the lowercased command name without the slash or @bot suffix.
	Command string
	// Args holds the text after the command token.
	Args string

	DisplayName string
	Handle      string
}

// NewEvent builds an event from raw text and detects a leading command.
func NewEvent(senderID int64, text string) Event {
	ev := Event{
		ID:       uuid.NewString(),
		SenderID: senderID,
		Text:     text,
	}
	ev.Command, ev.Args, ev.IsCommand = ParseCommand(text)
	return ev
}

// ParseCommand splits "/start@SurveyBot args" into ("start", "args", true).
func ParseCommand(text string) (string, string, bool) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || text[0] != '/' {
		return "", "", false
	}
	token, args, _ := strings.Cut(text[1:], " ")
	token, _, _ = strings.Cut(token, "@")
	if token == "" {
		return "", "", false
	}
	return strings.ToLower(token), strings.TrimSpace(args), true
}

// NormalizedText returns the text trimmed and lowercased for comparisons.
func (e Event) NormalizedText() string {
	return strings.ToLower(strings.TrimSpace(e.Text))
}
