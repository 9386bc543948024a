package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/dndsurvey/core/logger"
)

var (
	// ErrPoolClosed is returned when Submit is attempted after Close.
	ErrPoolClosed = errors.New("worker: pool closed")
	// ErrNilJob is returned for a nil job function.
	ErrNilJob = errors.New("worker: nil job")
)

// Options controls the pool layout.
type Options struct {
	// Shards is the number of serial lanes. Keys are spread across lanes by value.
	Shards int
	// QueueSize bounds each lane's backlog; Submit blocks when the lane is full.
	QueueSize int
	// MaxDuration bounds a single job through its context.
	MaxDuration time.Duration
}

type job struct {
	ctx      context.Context
	key      int64
	name     string
	enqueued time.Time
	run      func(context.Context) error
}

// Pool runs jobs so that jobs sharing a key execute one at a time in submission order,
// while jobs for keys on different lanes run in parallel.
type Pool struct {
	opts   Options
	lanes  []chan job
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	pending atomic.Int64
	errs    atomic.Uint64
}

// New starts a pool with defaults for zeroed options.
func New(opts Options) *Pool {
	if opts.Shards <= 0 {
		opts.Shards = 8
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 30 * time.Second
	}

	p := &Pool{
		opts:  opts,
		lanes: make([]chan job, opts.Shards),
	}
	p.wg.Add(opts.Shards)
	for i := range p.lanes {
		p.lanes[i] = make(chan job, opts.QueueSize)
		go p.worker(i, p.lanes[i])
	}
	return p
}

// Submit schedules run on the lane owning key. It blocks while the lane is full,
// until ctx is done or the pool is closed.
func (p *Pool) Submit(ctx context.Context, key int64, name string, run func(context.Context) error) error {
	if run == nil {
		return ErrNilJob
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	j := job{ctx: ctx, key: key, name: name, enqueued: time.Now(), run: run}
	p.pending.Add(1)
	select {
	case p.lanes[p.lane(key)] <- j:
		return nil
	case <-ctx.Done():
		p.pending.Add(-1)
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued jobs to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, lane := range p.lanes {
		close(lane)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// ErrorCount returns the number of failed jobs.
func (p *Pool) ErrorCount() uint64 {
	return p.errs.Load()
}

// Pending returns the number of submitted jobs that have not finished.
func (p *Pool) Pending() int64 {
	return p.pending.Load()
}

func (p *Pool) lane(key int64) int {
	return int(uint64(key) % uint64(len(p.lanes)))
}

func (p *Pool) worker(idx int, lane <-chan job) {
	defer p.wg.Done()
	for j := range lane {
		p.handleJob(idx, j)
		p.pending.Add(-1)
	}
}

func (p *Pool) handleJob(idx int, j job) {
	ctx, cancel := context.WithTimeout(j.ctx, p.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attrs := []slog.Attr{
		slog.String("handler", j.name),
		slog.Int("shard", idx),
		slog.Duration("queue_wait", start.Sub(j.enqueued)),
	}
	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, "worker", "job.start", attrs...)
	}

	err := runSafely(ctx, j.run)
	if err == nil {
		return
	}
	p.errs.Add(1)
	logger.Error(ctx, "worker", "job.fail", append(attrs,
		slog.String("status", "fail"),
		slog.Duration("duration", time.Since(start)),
		logger.Err(err),
	)...)
}

func runSafely(ctx context.Context, run func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker: panic: %v\n%s", r, debug.Stack())
		}
	}()
	return run(ctx)
}
