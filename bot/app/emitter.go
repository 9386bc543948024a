package app

import (
	"context"

	"github.com/m3rciful/dndsurvey/bot/survey"
)

type textSender interface {
	SendText(ctx context.Context, chatID int64, text string, rows [][]string) error
}

// Emitter delivers survey replies through Telegram. Replies without choices
// remove the reply keyboard.
type Emitter struct {
	Sender textSender
}

var _ survey.Emitter = Emitter{}

// Send implements survey.Emitter.
func (e Emitter) Send(ctx context.Context, userID int64, r survey.Reply) error {
	return e.Sender.SendText(ctx, userID, r.Text, r.Choices)
}
