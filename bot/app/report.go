package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/m3rciful/dndsurvey/core/logger"
	"github.com/m3rciful/dndsurvey/core/state"
)

type queueStats interface {
	Pending() int64
	ErrorCount() uint64
}

// newReporter schedules a periodic log line with session counts per state.
func newReporter(spec string, sessions interface{ Snapshot() map[state.State]int }, queue queueStats) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(spec, func() { logSnapshot(sessions.Snapshot(), queue) }); err != nil {
		return nil, fmt.Errorf("app: invalid report spec %q: %w", spec, err)
	}
	return c, nil
}

func logSnapshot(snapshot map[state.State]int, queue queueStats) {
	states := make([]string, 0, len(snapshot))
	total := 0
	for s, n := range snapshot {
		states = append(states, fmt.Sprintf("%s=%d", s, n))
		total += n
	}
	sort.Strings(states)
	logger.LogEvent(context.Background(), logger.Survey, slog.LevelInfo, "sessions.snapshot",
		slog.Int("sessions", total),
		slog.Any("payload", states),
		slog.Int64("queue", queue.Pending()),
		slog.Uint64("count", queue.ErrorCount()),
	)
}
