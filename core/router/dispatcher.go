package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m3rciful/dndsurvey/core/logger"
	"github.com/m3rciful/dndsurvey/core/state"
)

var (
	// ErrNoRoute is returned when no rule matched. A dispatcher built by New never returns it.
	ErrNoRoute = errors.New("router: no rule matched")
	// ErrNoCatchAll reports a rule list without exactly one trailing catch-all.
	ErrNoCatchAll = errors.New("router: the last rule must be the only catch-all")
)

// Handler processes an event. sess is the sender's session; changes are kept only when
// the handler returns nil.
type Handler[D any] func(ctx context.Context, ev Event, sess *state.Session[D]) error

// Dispatcher routes events through an ordered rule list. The first matching rule wins.
type Dispatcher[D any] struct {
	store state.Store[D]
	rules []Rule[D]
}

// New validates the rule list and returns a dispatcher bound to store.
func New[D any](store state.Store[D], rules ...Rule[D]) (*Dispatcher[D], error) {
	if store == nil {
		return nil, fmt.Errorf("router: nil session store")
	}
	if len(rules) == 0 {
		return nil, ErrNoCatchAll
	}
	for i, r := range rules {
		if r.Handle == nil || r.Match == nil {
			return nil, fmt.Errorf("router: rule %d (%q) is incomplete", i, r.Name)
		}
		last := i == len(rules)-1
		if r.catchAll != last {
			return nil, fmt.Errorf("%w: rule %d (%q)", ErrNoCatchAll, i, r.Name)
		}
	}
	return &Dispatcher[D]{
		store: store,
		rules: append([]Rule[D](nil), rules...),
	}, nil
}

// Rules returns the rule names in evaluation order.
func (d *Dispatcher[D]) Rules() []string {
	names := make([]string, len(d.rules))
	for i, r := range d.rules {
		names[i] = r.Name
	}
	return names
}

// Dispatch selects the rule for ev and runs its handler under the sender's session lock.
func (d *Dispatcher[D]) Dispatch(ctx context.Context, ev Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	if logger.RIDFrom(ctx) == "" && ev.ID != "" {
		ctx = logger.WithRID(ctx, ev.ID)
	}
	if logger.UserIDFrom(ctx) == 0 {
		ctx = logger.WithUserID(ctx, ev.SenderID)
	}

	var (
		rule     = "none"
		from, to state.State
	)
	err := d.store.Update(ev.SenderID, func(sess *state.Session[D]) error {
		from = sess.State
		r, ok := d.match(ev, *sess)
		if !ok {
			return ErrNoRoute
		}
		rule = r.Name
		err := r.Handle(logger.WithState(logger.WithHandler(ctx, rule), string(from)), ev, sess)
		to = sess.State
		return err
	})
	if err != nil {
		to = from
	}
	logSummary(logger.WithHandler(ctx, rule), rule, from, to, start, err)
	return err
}

func (d *Dispatcher[D]) match(ev Event, sess state.Session[D]) (Rule[D], bool) {
	for _, r := range d.rules {
		if r.Match(ev, sess) {
			return r, true
		}
	}
	return Rule[D]{}, false
}
