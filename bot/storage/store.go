// Package storage persists survey respondents and answers through sqlx. The same
// queries run on PostgreSQL and SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/dndsurvey/bot/survey"
	"github.com/m3rciful/dndsurvey/core/logger"
)

// ErrUserNotFound is returned by GetUser for unknown ids.
var ErrUserNotFound = errors.New("storage: user not found")

// UserRow mirrors the users table.
type UserRow struct {
	ID       int64  `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
	Username string `db:"username" json:"username"`
}

// AnswerRow mirrors the answers table.
type AnswerRow struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	WantPlay  bool      `db:"want_play" json:"want_play"`
	FavClass  string    `db:"fav_class" json:"fav_class"`
	Style     string    `db:"style" json:"style"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Store implements survey.Repository and survey.StatsReader.
type Store struct {
	db *sqlx.DB
}

var (
	_ survey.Repository  = (*Store)(nil)
	_ survey.StatsReader = (*Store)(nil)
)

// New wraps an open connection.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const upsertUserSQL = `
INSERT INTO users (id, full_name, username)
VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET full_name = EXCLUDED.full_name, username = EXCLUDED.username`

// UpsertUser inserts u or overwrites the name and handle stored for its id.
func (s *Store) UpsertUser(ctx context.Context, u survey.User) (err error) {
	defer observe(ctx, "user.upsert", time.Now(), &err)
	_, err = s.db.ExecContext(ctx, s.db.Rebind(upsertUserSQL), u.ID, u.DisplayName, u.Handle)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", u.ID, err)
	}
	return nil
}

const appendAnswerSQL = `
INSERT INTO answers (user_id, want_play, fav_class, style)
VALUES (?, ?, ?, ?)
RETURNING id`

// AppendAnswer inserts a completed survey. Repeated submissions are stored as new rows.
func (s *Store) AppendAnswer(ctx context.Context, a survey.Answer) (id int64, err error) {
	defer observe(ctx, "answer.append", time.Now(), &err, slog.Int64("user_id", a.UserID))
	err = s.db.QueryRowxContext(ctx, s.db.Rebind(appendAnswerSQL), a.UserID, a.WantPlay, a.FavClass, a.Style).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append answer for user %d: %w", a.UserID, err)
	}
	return id, nil
}

// GetUser loads one user.
func (s *Store) GetUser(ctx context.Context, id int64) (UserRow, error) {
	var u UserRow
	err := s.db.GetContext(ctx, &u, s.db.Rebind(`SELECT id, full_name, username FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRow{}, ErrUserNotFound
	}
	if err != nil {
		return UserRow{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// ListAnswers returns a user's answers, oldest first.
func (s *Store) ListAnswers(ctx context.Context, userID int64) ([]AnswerRow, error) {
	rows := []AnswerRow{}
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
SELECT id, user_id, want_play, fav_class, style, created_at
FROM answers
WHERE user_id = ?
ORDER BY id`), userID)
	if err != nil {
		return nil, fmt.Errorf("list answers for user %d: %w", userID, err)
	}
	return rows, nil
}

// AnswerStats counts answers and returns the top most named classes,
// compared case-insensitively.
func (s *Store) AnswerStats(ctx context.Context, top int) (st survey.Stats, err error) {
	defer observe(ctx, "answer.stats", time.Now(), &err)

	var totals struct {
		Total    int `db:"total"`
		WantPlay int `db:"want_play"`
	}
	err = s.db.GetContext(ctx, &totals, `
SELECT COUNT(*) AS total,
       COALESCE(SUM(CASE WHEN want_play THEN 1 ELSE 0 END), 0) AS want_play
FROM answers`)
	if err != nil {
		return survey.Stats{}, fmt.Errorf("count answers: %w", err)
	}
	st = survey.Stats{
		Total:       totals.Total,
		WantPlay:    totals.WantPlay,
		NotWantPlay: totals.Total - totals.WantPlay,
		TopClasses:  []survey.ClassCount{},
	}
	if top <= 0 {
		return st, nil
	}
	err = s.db.SelectContext(ctx, &st.TopClasses, s.db.Rebind(`
SELECT LOWER(fav_class) AS fav_class, COUNT(*) AS count
FROM answers
GROUP BY LOWER(fav_class)
ORDER BY count DESC, fav_class
LIMIT ?`), top)
	if err != nil {
		return survey.Stats{}, fmt.Errorf("top classes: %w", err)
	}
	return st, nil
}

func observe(ctx context.Context, op string, start time.Time, errp *error, attrs ...slog.Attr) {
	attrs = append(attrs, slog.Duration("duration", logger.RoundMS(time.Since(start))))
	if err := *errp; err != nil {
		attrs = append(attrs,
			slog.String("status", "fail"),
			logger.Err(err),
		)
		logger.LogEvent(ctx, logger.DB, slog.LevelError, op, attrs...)
		return
	}
	if !logger.ShouldSampleDebug() {
		return
	}
	attrs = append(attrs, slog.String("status", "ok"))
	logger.LogEvent(ctx, logger.DB, slog.LevelDebug, op, attrs...)
}
