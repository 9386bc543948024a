package telegram

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/dndsurvey/core/logger"
	"github.com/m3rciful/dndsurvey/core/router"
	tghelpers "github.com/m3rciful/dndsurvey/core/telegram/helpers"
)

// Submitter queues keyed jobs; worker.Pool implements it.
type Submitter interface {
	Submit(ctx context.Context, key int64, name string, run func(context.Context) error) error
}

// DispatchFunc handles one normalized event.
type DispatchFunc func(ctx context.Context, ev router.Event) error

// QueueRoute returns a handler that normalizes text updates and queues them on
// the sender's lane, so each user's events run one at a time in arrival order.
func QueueRoute(pool Submitter, dispatch DispatchFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		ev, ok := EventFrom(c)
		if !ok {
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.skip",
				slog.String("status", "skip"),
			)
			return nil
		}
		err := pool.Submit(ctx, ev.SenderID, "dispatch", func(jobCtx context.Context) error {
			return dispatch(jobCtx, ev)
		})
		if err != nil {
			logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "update.enqueue",
				slog.String("status", "fail"),
				logger.Err(err),
			)
			return err
		}
		return nil
	}
}
