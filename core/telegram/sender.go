package telegram

import (
	"context"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/dndsurvey/core/logger"
	"github.com/m3rciful/dndsurvey/core/telegram/keyboard"
)

type messageAPI interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Sender delivers text with an optional reply keyboard to a chat.
type Sender struct {
	api messageAPI
}

// NewSender wraps a bot.
func NewSender(api messageAPI) *Sender {
	return &Sender{api: api}
}

// SendText sends text to chatID. Non-empty rows become reply buttons; otherwise
// any previous reply keyboard is removed.
func (s *Sender) SendText(ctx context.Context, chatID int64, text string, rows [][]string) error {
	start := time.Now()
	_, err := s.api.Send(tele.ChatID(chatID), text, keyboard.Markup(rows))
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.Int64("chat_id", chatID),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "send.text",
			append(attrs, logger.Err(err))...)
		return err
	}
	if logger.ShouldSampleDebug() {
		logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "send.text", attrs...)
	}
	return nil
}
