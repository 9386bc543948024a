// Package app assembles the survey bot: sessions, routing, persistence, the
// per-user worker pool, the Telegram runtime and the optional ops services.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/dndsurvey/bot/httpapi"
	"github.com/m3rciful/dndsurvey/bot/storage"
	"github.com/m3rciful/dndsurvey/bot/survey"
	coreconfig "github.com/m3rciful/dndsurvey/core/config"
	"github.com/m3rciful/dndsurvey/core/logger"
	"github.com/m3rciful/dndsurvey/core/router"
	"github.com/m3rciful/dndsurvey/core/state"
	"github.com/m3rciful/dndsurvey/core/telegram"
	"github.com/m3rciful/dndsurvey/core/telegram/commands"
	tghelpers "github.com/m3rciful/dndsurvey/core/telegram/helpers"
	"github.com/m3rciful/dndsurvey/core/worker"
)

// Survey is the transport-independent part of the bot.
type Survey struct {
	Sessions   state.Store[survey.Answers]
	Dispatcher *router.Dispatcher[survey.Answers]
	Pool       *worker.Pool
	Store      *storage.Store

	emitter survey.Emitter
}

// NewSurvey wires sessions, the controller and the worker pool. db may be nil,
// in which case completed surveys are only logged.
func NewSurvey(cfg *coreconfig.Config, db *sqlx.DB, emitter survey.Emitter) (*Survey, error) {
	s := &Survey{Sessions: state.NewMemoryStore[survey.Answers](), emitter: emitter}

	opts := survey.Options{
		Repository: survey.NopRepository{},
		Emitter:    emitter,
		Sessions:   s.Sessions,
		AdminID:    cfg.Telegram.AdminID,
	}
	if db != nil {
		s.Store = storage.New(db)
		opts.Repository = s.Store
		opts.Stats = s.Store
	}
	controller, err := survey.NewController(opts)
	if err != nil {
		return nil, err
	}
	s.Dispatcher, err = survey.NewDispatcher(s.Sessions, controller)
	if err != nil {
		return nil, fmt.Errorf("app: routing rules: %w", err)
	}

	s.Pool = worker.New(worker.Options{
		Shards:      cfg.Worker.Shards,
		QueueSize:   cfg.Worker.QueueSize,
		MaxDuration: time.Duration(cfg.Worker.TimeoutSeconds) * time.Second,
	})
	logger.Survey.Info("survey ready",
		slog.String("event", "survey.ready"),
		slog.Bool("persist", db != nil),
		slog.Any("rules", s.Dispatcher.Rules()),
	)
	return s, nil
}

// RateLimited tells a user whose message was dropped by the rate limiter to
// resend it. The notice is queued on the user's lane behind earlier events.
func (s *Survey) RateLimited() tele.HandlerFunc {
	return func(c tele.Context) error {
		ev, ok := telegram.EventFrom(c)
		if !ok {
			return nil
		}
		return s.Pool.Submit(tghelpers.BuildContext(c), ev.SenderID, "survey.rate_limited", func(ctx context.Context) error {
			st := s.Sessions.Get(ev.SenderID).State
			if err := s.emitter.Send(ctx, ev.SenderID, survey.SlowDown(st)); err != nil {
				logger.Warn(ctx, "survey", "reply.fail", slog.String("status", "fail"), logger.Err(err))
			}
			return nil
		})
	}
}

// App is the running bot process.
type App struct {
	cfg    *coreconfig.Config
	db     *sqlx.DB
	survey *Survey
	bot    *telegram.Runtime
	ops    *httpapi.Server
	report *cron.Cron
}

// New builds the Telegram runtime and everything it feeds. db may be nil.
func New(cfg *coreconfig.Config, db *sqlx.DB) (*App, error) {
	reg := telegram.NewRegistry()
	for _, c := range survey.Commands() {
		reg.RegisterCommand("/"+c.Name, commands.Command{Description: c.Description, AdminOnly: c.Admin})
	}
	rt, err := telegram.New(telegram.Options{Config: cfg, Registry: reg})
	if err != nil {
		return nil, err
	}

	sv, err := NewSurvey(cfg, db, Emitter{Sender: telegram.NewSender(rt.Bot)})
	if err != nil {
		return nil, err
	}
	rt.Use(telegram.DefaultMiddlewares(cfg, sv.RateLimited())...)
	rt.Handle(telegram.Route{
		Endpoint: tele.OnText,
		Handler:  telegram.QueueRoute(sv.Pool, sv.Dispatcher.Dispatch),
	})

	a := &App{cfg: cfg, db: db, survey: sv, bot: rt}
	if cfg.HTTP.Listen != "" {
		a.ops = httpapi.New(cfg.HTTP.Listen, a.opsDeps())
	}
	if cfg.Survey.ReportSpec != "" {
		a.report, err = newReporter(cfg.Survey.ReportSpec, sv.Sessions, sv.Pool)
		if err != nil {
			sv.Pool.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *App) opsDeps() httpapi.Deps {
	deps := httpapi.Deps{
		Sessions: a.survey.Sessions,
		Queue:    a.survey.Pool,
		Log:      logger.Stats,
		Token:    a.cfg.HTTP.Token,
	}
	if a.db != nil {
		deps.DB = a.db
		deps.Stats = a.survey.Store
		deps.Answers = a.survey.Store
	}
	return deps
}

// Run serves until ctx is done or a component fails. Queued events are drained
// before Run returns.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.bot.Run(gctx) })
	if a.ops != nil {
		g.Go(func() error { return a.ops.Run(gctx) })
	}
	if a.report != nil {
		a.report.Start()
		g.Go(func() error {
			<-gctx.Done()
			<-a.report.Stop().Done()
			return nil
		})
	}

	err := g.Wait()
	a.survey.Pool.Close()
	logger.Worker.Info("worker pool drained",
		slog.String("event", "pool.closed"),
		slog.Uint64("count", a.survey.Pool.ErrorCount()),
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close is a no-op; the database is owned by bootstrap.
func (a *App) Close() error { return nil }
