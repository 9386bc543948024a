package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/dndsurvey/bot/storage"
	"github.com/m3rciful/dndsurvey/bot/survey"
	"github.com/m3rciful/dndsurvey/core/logger"
	"github.com/m3rciful/dndsurvey/core/state"
)

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

type fakeStats struct {
	st  survey.Stats
	err error
	top int
}

func (f *fakeStats) AnswerStats(_ context.Context, top int) (survey.Stats, error) {
	f.top = top
	return f.st, f.err
}

type fakeSessions map[state.State]int

func (f fakeSessions) Snapshot() map[state.State]int { return f }

type fakeQueue struct{}

func (fakeQueue) Pending() int64     { return 3 }
func (fakeQueue) ErrorCount() uint64 { return 1 }

type fakeAnswers struct{}

func (fakeAnswers) ListAnswers(_ context.Context, userID int64) ([]storage.AnswerRow, error) {
	return []storage.AnswerRow{{ID: 1, UserID: userID, WantPlay: true, FavClass: "Mage", Style: "Mixed"}}, nil
}

func do(t *testing.T, h http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := New(":0", Deps{DB: fakePinger{}}).Routes()
	rec := do(t, h, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"database":"ok"}}`, rec.Body.String())

	h = New(":0", Deps{DB: fakePinger{err: errors.New("down")}}).Routes()
	rec = do(t, h, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unreachable")

	rec = do(t, New(":0", Deps{}).Routes(), "/healthz", "")
	assert.Contains(t, rec.Body.String(), `"disabled"`)
}

func TestStats(t *testing.T) {
	stats := &fakeStats{st: survey.Stats{Total: 2, WantPlay: 1, NotWantPlay: 1, TopClasses: []survey.ClassCount{{Class: "mage", Count: 2}}}}
	h := New(":0", Deps{
		Stats:    stats,
		Sessions: fakeSessions{survey.StateAwaitStyle: 1},
		Queue:    fakeQueue{},
		Log:      func() logger.WriterStats { return logger.WriterStats{Lines: 10, Dropped: 2} },
	}).Routes()

	rec := do(t, h, "/stats?top=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, stats.top)

	var body struct {
		Answers  survey.Stats       `json:"answers"`
		Sessions map[string]int     `json:"sessions"`
		Queue    queueStats         `json:"queue"`
		Log      logger.WriterStats `json:"log"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, stats.st, body.Answers)
	assert.Equal(t, map[string]int{"await_style": 1}, body.Sessions)
	assert.Equal(t, queueStats{Pending: 3, Errors: 1}, body.Queue)
	assert.Equal(t, logger.WriterStats{Lines: 10, Dropped: 2}, body.Log)

	assert.Equal(t, http.StatusBadRequest, do(t, h, "/stats?top=-1", "").Code)

	stats.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, do(t, h, "/stats", "").Code)
}

func TestStatsWithoutStorage(t *testing.T) {
	rec := do(t, New(":0", Deps{}).Routes(), "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"answers":null,"sessions":null}`, rec.Body.String())
}

func TestTokenProtectsEverythingButHealth(t *testing.T) {
	h := New(":0", Deps{Answers: fakeAnswers{}, Token: "s3cret"}).Routes()

	assert.Equal(t, http.StatusOK, do(t, h, "/healthz", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, "/stats", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, "/stats", "wrong").Code)
	assert.Equal(t, http.StatusOK, do(t, h, "/stats", "s3cret").Code)

	rec := do(t, h, "/users/42/answers", "s3cret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":42`)
	assert.Contains(t, rec.Body.String(), `"fav_class":"Mage"`)

	assert.Equal(t, http.StatusBadRequest, do(t, h, "/users/abc/answers", "s3cret").Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New("127.0.0.1:0", Deps{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
