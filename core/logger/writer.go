package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

const (
	defaultSinkBuffer = 64 * 1024
	defaultQueueLines = 1024
)

type writerOptions struct {
	// bufSize is the per-sink bufio size.
	bufSize int
	// queueLines bounds lines waiting for the background goroutine.
	queueLines int
	// lossy drops lines instead of blocking the caller when the queue is full.
	lossy bool
}

// WriterStats reports what the log writer has done since startup.
type WriterStats struct {
	Lines   uint64 `json:"lines"`
	Dropped uint64 `json:"dropped"`
}

// lineWriter fans formatted log lines out to its sinks on a single goroutine.
type lineWriter struct {
	lines    chan []byte
	flushReq chan chan error
	stopped  chan struct{}
	stopOnce sync.Once
	lossy    bool

	mu    sync.Mutex
	sinks []*bufio.Writer
	err   error

	written atomic.Uint64
	dropped atomic.Uint64
}

func newLineWriter(writers []io.Writer, opts writerOptions) *lineWriter {
	if opts.bufSize <= 0 {
		opts.bufSize = defaultSinkBuffer
	}
	if opts.queueLines <= 0 {
		opts.queueLines = defaultQueueLines
	}
	w := &lineWriter{
		lines:    make(chan []byte, opts.queueLines),
		flushReq: make(chan chan error),
		stopped:  make(chan struct{}),
		lossy:    opts.lossy,
	}
	for _, out := range writers {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, opts.bufSize))
		}
	}
	go w.run()
	return w
}

func (w *lineWriter) run() {
	defer close(w.stopped)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.recordErr(w.flushSinks())
				return
			}
			w.recordErr(w.writeLine(line))
		case ack := <-w.flushReq:
			ack <- w.flushSinks()
		}
	}
}

// Write queues a copy of line. In lossy mode a full queue drops the line.
func (w *lineWriter) Write(line []byte) error {
	if err := w.firstErr(); err != nil {
		return err
	}
	if len(line) == 0 {
		return nil
	}
	buf := append([]byte(nil), line...)
	if w.lossy {
		select {
		case w.lines <- buf:
		default:
			w.dropped.Add(1)
		}
		return nil
	}
	w.lines <- buf
	return nil
}

// Flush blocks until everything queued so far has reached the sinks.
func (w *lineWriter) Flush() error {
	if err := w.firstErr(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	select {
	case w.flushReq <- ack:
		return <-ack
	case <-w.stopped:
		return w.firstErr()
	}
}

// Close drains the queue and returns the first write error, if any.
func (w *lineWriter) Close() error {
	w.stopOnce.Do(func() { close(w.lines) })
	<-w.stopped
	return w.firstErr()
}

// Stats returns line counters.
func (w *lineWriter) Stats() WriterStats {
	return WriterStats{Lines: w.written.Load(), Dropped: w.dropped.Load()}
}

func (w *lineWriter) writeLine(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, sink := range w.sinks {
		if _, err := sink.Write(line); err != nil {
			return err
		}
		if err := sink.Flush(); err != nil {
			return err
		}
	}
	w.written.Add(1)
	return nil
}

func (w *lineWriter) flushSinks() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, sink := range w.sinks {
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *lineWriter) firstErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *lineWriter) recordErr(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}
