package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/dndsurvey/bot/survey"
	coreconfig "github.com/m3rciful/dndsurvey/core/config"
	"github.com/m3rciful/dndsurvey/core/database"
	"github.com/m3rciful/dndsurvey/core/router"
	"github.com/m3rciful/dndsurvey/core/state"
)

type captureSender struct {
	mu   sync.Mutex
	sent map[int64][]string
	rows [][]string
}

func (c *captureSender) SendText(_ context.Context, chatID int64, text string, rows [][]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sent == nil {
		c.sent = map[int64][]string{}
	}
	c.sent[chatID] = append(c.sent[chatID], text)
	c.rows = rows
	return nil
}

func sqliteConfig(t *testing.T) *coreconfig.Config {
	t.Helper()
	migrations, err := filepath.Abs("../../migrations")
	require.NoError(t, err)
	cfg := &coreconfig.Config{
		Database: coreconfig.DatabaseConfig{
			Driver:         coreconfig.DriverSQLite,
			URL:            filepath.Join(t.TempDir(), "survey.db"),
			MaxConnections: 1,
			MigrationsDir:  migrations,
		},
		Worker: coreconfig.WorkerConfig{Shards: 2, QueueSize: 4, TimeoutSeconds: 5},
	}
	cfg.Telegram.AdminID = 1
	return cfg
}

func TestSurveyPersistsThroughWorkerPool(t *testing.T) {
	cfg := sqliteConfig(t)
	require.NoError(t, database.RunMigrations(cfg.Database))
	db, err := database.Connect(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sender := &captureSender{}
	sv, err := NewSurvey(cfg, db, Emitter{Sender: sender})
	require.NoError(t, err)

	for _, text := range []string{"/start", "Yes", "Mage", "Mixed"} {
		ev := router.NewEvent(42, text)
		ev.DisplayName = "Tav"
		require.NoError(t, sv.Pool.Submit(context.Background(), ev.SenderID, "dispatch", func(ctx context.Context) error {
			return sv.Dispatcher.Dispatch(ctx, ev)
		}))
	}
	sv.Pool.Close()
	require.Zero(t, sv.Pool.ErrorCount())

	rows, err := sv.Store.ListAnswers(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].WantPlay)
	assert.Equal(t, "Mage", rows[0].FavClass)
	assert.Equal(t, "Mixed", rows[0].Style)

	user, err := sv.Store.GetUser(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Tav", user.FullName)

	assert.Equal(t, state.Session[survey.Answers]{State: survey.StateIdle}, sv.Sessions.Get(42))
	assert.Len(t, sender.sent[42], 4)
	assert.Nil(t, sender.rows, "summary removes the keyboard")
}

func TestSurveyWithoutDatabase(t *testing.T) {
	cfg := sqliteConfig(t)
	sender := &captureSender{}
	sv, err := NewSurvey(cfg, nil, Emitter{Sender: sender})
	require.NoError(t, err)
	defer sv.Pool.Close()

	assert.Nil(t, sv.Store)
	for _, text := range []string{"/start", "no", "Bard", "Dialogue"} {
		require.NoError(t, sv.Dispatcher.Dispatch(context.Background(), router.NewEvent(7, text)))
	}
	assert.Equal(t, survey.StateIdle, sv.Sessions.Get(7).State)
	assert.Contains(t, sender.sent[7][3], "Play style: Dialogue")
}

func TestRateLimitedNoticeKeepsKeyboard(t *testing.T) {
	cfg := sqliteConfig(t)
	sender := &captureSender{}
	sv, err := NewSurvey(cfg, nil, Emitter{Sender: sender})
	require.NoError(t, err)

	require.NoError(t, sv.Dispatcher.Dispatch(context.Background(), router.NewEvent(9, "/start")))
	c := tele.NewContext(nil, tele.Update{
		ID: 5,
		Message: &tele.Message{
			Sender: &tele.User{ID: 9},
			Chat:   &tele.Chat{ID: 9, Type: tele.ChatPrivate},
			Text:   "yes",
		},
	})
	require.NoError(t, sv.RateLimited()(c))
	sv.Pool.Close()

	want := survey.SlowDown(survey.StateAwaitWantPlay)
	require.Len(t, sender.sent[9], 2)
	assert.Equal(t, want.Text, sender.sent[9][1])
	assert.Equal(t, want.Choices, sender.rows)
	assert.Equal(t, survey.StateAwaitWantPlay, sv.Sessions.Get(9).State)
}

func TestReporter(t *testing.T) {
	sessions := state.NewMemoryStore[survey.Answers]()
	sessions.Set(1, state.Session[survey.Answers]{State: survey.StateAwaitStyle})

	_, err := newReporter("not a spec", sessions, fakeQueue{})
	assert.Error(t, err)

	c, err := newReporter("@every 1m", sessions, fakeQueue{})
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
	assert.NotPanics(t, func() { logSnapshot(sessions.Snapshot(), fakeQueue{}) })
}

type fakeQueue struct{}

func (fakeQueue) Pending() int64     { return 0 }
func (fakeQueue) ErrorCount() uint64 { return 0 }
