package survey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/dndsurvey/core/logger"
	"github.com/m3rciful/dndsurvey/core/router"
	"github.com/m3rciful/dndsurvey/core/state"
)

// topClasses is how many classes the stats reply lists.
const topClasses = 5

// Options configures a Controller.
type Options struct {
	Repository Repository
	Emitter    Emitter
	// Stats is optional. Without it /stats reports that answers are not stored.
	Stats StatsReader
	// Sessions is optional and adds in-flight session counts to /stats.
	Sessions SessionCounter
	// AdminID may use /stats. Zero disables the command for everyone.
	AdminID int64
}

// Controller applies inbound events to survey sessions. Its handlers run inside
// the session store's Update, so a returned error discards every session change.
type Controller struct {
	repo     Repository
	emitter  Emitter
	stats    StatsReader
	sessions SessionCounter
	adminID  int64
}

// NewController validates opts and returns a controller.
func NewController(opts Options) (*Controller, error) {
	if opts.Repository == nil {
		return nil, errors.New("survey: repository is required")
	}
	if opts.Emitter == nil {
		return nil, errors.New("survey: emitter is required")
	}
	return &Controller{
		repo:     opts.Repository,
		emitter:  opts.Emitter,
		stats:    opts.Stats,
		sessions: opts.Sessions,
		adminID:  opts.AdminID,
	}, nil
}

// Restart records the sender and starts the survey from the first question,
// discarding any progress.
func (c *Controller) Restart(ctx context.Context, ev router.Event, sess *Session) error {
	u := User{ID: ev.SenderID, DisplayName: ev.DisplayName, Handle: ev.Handle}
	if err := c.repo.UpsertUser(ctx, u); err != nil {
		return fmt.Errorf("survey: upsert user %d: %w", ev.SenderID, err)
	}
	sess.Reset()
	sess.State = StateAwaitWantPlay

	step := table[StateAwaitWantPlay]
	c.emit(ctx, ev.SenderID, Reply{Text: msgGreeting + step.Prompt.Text, Choices: step.Prompt.Choices})
	return nil
}

// Answer feeds a text answer to the current question. The last accepted answer
// commits the survey and returns the session to idle.
func (c *Controller) Answer(ctx context.Context, ev router.Event, sess *Session) error {
	tr, err := Advance(sess, ev.Text)
	if err != nil {
		return err
	}
	if !tr.Accepted {
		logger.Debug(ctx, "survey", "answer.rejected", slog.String("text", ev.Text))
		c.emit(ctx, ev.SenderID, tr.Reply)
		return nil
	}
	if !tr.Commit {
		c.emit(ctx, ev.SenderID, tr.Reply)
		return nil
	}

	answers := sess.Data
	id, err := c.repo.AppendAnswer(ctx, Answer{
		UserID:   ev.SenderID,
		WantPlay: answers.WantPlay,
		FavClass: answers.FavClass,
		Style:    answers.Style,
	})
	if err != nil {
		return fmt.Errorf("survey: append answer for user %d: %w", ev.SenderID, err)
	}
	sess.Reset()
	logger.Info(ctx, "survey", "survey.completed",
		slog.Int64("answer_id", id),
		slog.Bool("want_play", answers.WantPlay),
	)

	who := displayIdentity{id: ev.SenderID, displayName: ev.DisplayName, handle: ev.Handle}
	c.emit(ctx, ev.SenderID, Reply{Text: summaryText(who, answers)})
	return nil
}

// Guide handles everything no other rule claimed. During a survey it repeats the
// current question; otherwise it explains how to start.
func (c *Controller) Guide(ctx context.Context, ev router.Event, sess *Session) error {
	if step, ok := table[sess.State]; ok {
		c.emit(ctx, ev.SenderID, step.Prompt)
		return nil
	}
	c.emit(ctx, ev.SenderID, Reply{Text: msgGuidance})
	return nil
}

// Help lists the available commands. Session state is left as is.
func (c *Controller) Help(ctx context.Context, ev router.Event, sess *Session) error {
	text := helpText(c.adminID != 0 && ev.SenderID == c.adminID)
	if step, ok := table[sess.State]; ok {
		text += "\n\n" + step.Prompt.Text
		c.emit(ctx, ev.SenderID, Reply{Text: text, Choices: step.Prompt.Choices})
		return nil
	}
	c.emit(ctx, ev.SenderID, Reply{Text: text})
	return nil
}

// Stats reports stored answers and in-flight sessions. Callers restrict it to the admin.
func (c *Controller) Stats(ctx context.Context, ev router.Event, _ *Session) error {
	var st *Stats
	if c.stats != nil {
		got, err := c.stats.AnswerStats(ctx, topClasses)
		if err != nil {
			return fmt.Errorf("survey: answer stats: %w", err)
		}
		st = &got
	}
	var sessions map[state.State]int
	if c.sessions != nil {
		sessions = c.sessions.Snapshot()
	}
	c.emit(ctx, ev.SenderID, Reply{Text: statsText(st, sessions)})
	return nil
}

func (c *Controller) denyStats(ctx context.Context, ev router.Event, _ *Session) error {
	logger.Warn(ctx, "survey", "stats.denied")
	c.emit(ctx, ev.SenderID, Reply{Text: msgStatsDenied})
	return nil
}

// emit delivers a reply. Delivery failures are logged and do not undo the
// session change that produced the reply.
func (c *Controller) emit(ctx context.Context, userID int64, r Reply) {
	if err := c.emitter.Send(ctx, userID, r); err != nil {
		logger.Warn(ctx, "survey", "reply.fail",
			slog.String("status", "fail"),
			logger.Err(err),
		)
	}
}
