// Package telegram runs a telebot bot: it builds the poller and HTTP client,
// applies the shared middleware chain, and turns text updates into router events.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/dndsurvey/core/config"
	"github.com/m3rciful/dndsurvey/core/logger"
)

// Route binds a handler to a telebot endpoint such as tele.OnText.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// Options controls New.
type Options struct {
	Config   *coreconfig.Config
	Registry *Registry

	DisableWebhookCleanup bool
}

// Runtime owns a configured bot until Run returns.
type Runtime struct {
	Bot      *tele.Bot
	Registry *Registry
}

// New builds the bot. Updates are processed synchronously in the poller
// goroutine; handlers hand them to the worker pool to keep per-user order.
func New(opts Options) (*Runtime, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("telegram: nil config provided")
	}
	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	poller := BuildPoller(cfg)
	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:       cfg.Telegram.Token,
		Poller:      poller,
		Client:      BuildHTTPClient(),
		Synchronous: true,
		OnError:     onError,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	took := time.Since(start)

	switch p := poller.(type) {
	case *tele.Webhook:
		logger.TG.LogAttrs(context.Background(), slog.LevelInfo, "webhook mode",
			slog.String("event", "mode"),
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", logger.RoundMS(took)),
		)
	default:
		logger.TG.Info("polling mode",
			slog.String("event", "mode"),
			slog.String("mode", "polling"),
			slog.Int("timeout_seconds", int(longPollTimeout(cfg).Seconds())),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		if !opts.DisableWebhookCleanup {
			if err := bot.RemoveWebhook(false); err != nil {
				logger.TG.Warn("failed to delete webhook",
					slog.String("event", "delete_webhook"),
					logger.Err(err),
				)
			}
		}
	}

	return &Runtime{Bot: bot, Registry: reg}, nil
}

// Use installs global middlewares in order.
func (rt *Runtime) Use(mws ...Middleware) {
	for _, mw := range mws {
		if mw.Use == nil {
			continue
		}
		rt.Bot.Use(mw.Use)
	}
}

// Handle binds routes.
func (rt *Runtime) Handle(routes ...Route) {
	for _, route := range routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		rt.Bot.Handle(route.Endpoint, route.Handler)
	}
}

// Run publishes the command menu and polls until ctx is done.
func (rt *Runtime) Run(ctx context.Context) error {
	InitBotCommands(rt.Bot, rt.Registry)

	runDone := make(chan struct{})
	go func() {
		rt.Bot.Start()
		close(runDone)
	}()

	select {
	case <-ctx.Done():
		rt.Bot.Stop()
		<-runDone
		if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case <-runDone:
		return errors.New("telegram: poller stopped")
	}
}

func onError(err error, c tele.Context) {
	ctx := context.Background()
	if c != nil {
		ctx = logger.WithRID(ctx, logger.BuildRID(c.Update().ID, chatID(c), senderID(c)))
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelError, "tg.error",
		slog.String("status", "fail"),
		logger.Err(err),
	)
}

func chatID(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	return 0
}

func senderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}
