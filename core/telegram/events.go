package telegram

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/dndsurvey/core/logger"
	"github.com/m3rciful/dndsurvey/core/router"
)

// EventFrom normalizes a private text message into a router event. It reports
// false for updates without a sender or text and for non-private chats.
func EventFrom(c tele.Context) (router.Event, bool) {
	msg := c.Message()
	user := c.Sender()
	if msg == nil || user == nil || user.IsBot {
		return router.Event{}, false
	}
	if chat := c.Chat(); chat == nil || chat.Type != tele.ChatPrivate {
		return router.Event{}, false
	}

	ev := router.NewEvent(user.ID, msg.Text)
	ev.ID = logger.BuildRID(c.Update().ID, c.Chat().ID, user.ID)
	ev.DisplayName = strings.TrimSpace(user.FirstName + " " + user.LastName)
	ev.Handle = user.Username
	return ev, true
}
