package survey

import (
	"context"
	"log/slog"

	"github.com/m3rciful/dndsurvey/core/logger"
)

// NopRepository is used when persistence is disabled. Completed surveys are only logged.
type NopRepository struct{}

// UpsertUser implements Repository.
func (NopRepository) UpsertUser(context.Context, User) error { return nil }

// AppendAnswer implements Repository.
func (NopRepository) AppendAnswer(ctx context.Context, a Answer) (int64, error) {
	logger.Info(ctx, "survey", "answer.discarded",
		slog.Int64("user_id", a.UserID),
		slog.Bool("want_play", a.WantPlay),
		slog.String("fav_class", logger.SanitizeLimit(a.FavClass, 64)),
		slog.String("style", logger.SanitizeLimit(a.Style, 64)),
	)
	return 0, nil
}
