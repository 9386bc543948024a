package router

import (
	"context"

	"github.com/m3rciful/dndsurvey/core/state"
)

// AdminOptions defines how admin-only checks should behave.
type AdminOptions[D any] struct {
	AdminID  int64
	OnReject Handler[D]
}

// AdminOnly ensures that only the admin user can invoke the wrapped handler.
// With AdminID unset every sender is rejected.
func AdminOnly[D any](opts AdminOptions[D]) func(Handler[D]) Handler[D] {
	return func(next Handler[D]) Handler[D] {
		return func(ctx context.Context, ev Event, sess *state.Session[D]) error {
			if opts.AdminID == 0 || ev.SenderID != opts.AdminID {
				if opts.OnReject != nil {
					return opts.OnReject(ctx, ev, sess)
				}
				return nil
			}
			return next(ctx, ev, sess)
		}
	}
}
