package logger

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

type failingSink struct{}

func (failingSink) Write([]byte) (int, error) { return 0, errors.New("disk full") }

type gateSink struct {
	gate chan struct{}
	buf  bytes.Buffer
}

func (g *gateSink) Write(p []byte) (int, error) {
	<-g.gate
	return g.buf.Write(p)
}

func TestLineWriterFansOutInOrder(t *testing.T) {
	a, b := &bytes.Buffer{}, &bytes.Buffer{}
	w := newLineWriter([]io.Writer{a, nil, b}, writerOptions{})
	for _, line := range []string{"one\n", "two\n", "", "three\n"} {
		if err := w.Write([]byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, buf := range []*bytes.Buffer{a, b} {
		if got := buf.String(); got != "one\ntwo\nthree\n" {
			t.Fatalf("sink got %q", got)
		}
	}
	if st := w.Stats(); st.Lines != 3 || st.Dropped != 0 {
		t.Fatalf("stats = %+v", st)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush after close: %v", err)
	}
}

func TestLineWriterReportsFirstError(t *testing.T) {
	w := newLineWriter([]io.Writer{failingSink{}}, writerOptions{bufSize: 1})
	_ = w.Write([]byte("x\n"))
	err := w.Close()
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("Close error = %v", err)
	}
	if err := w.Write([]byte("y\n")); err == nil {
		t.Fatal("write after failure must report the error")
	}
}

func TestLineWriterLossyDropsWhenFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	w := newLineWriter([]io.Writer{sink}, writerOptions{queueLines: 1, lossy: true})

	for i := 0; i < 10; i++ {
		if err := w.Write([]byte("line\n")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	close(sink.gate)
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st := w.Stats()
	if st.Dropped == 0 {
		t.Fatalf("expected drops with a blocked sink, got %+v", st)
	}
	if st.Lines+st.Dropped != 10 {
		t.Fatalf("lines %d + dropped %d != 10", st.Lines, st.Dropped)
	}
}

func TestSamplerSpreadsEvenly(t *testing.T) {
	s := newSampler(defaultDebugSample)
	passed := 0
	for i := 0; i < 500; i++ {
		if s.allow() {
			passed++
		}
	}
	if passed != 10 {
		t.Fatalf("passed %d of 500 at 1/50", passed)
	}

	s.set(0)
	for i := 0; i < 5; i++ {
		if !s.allow() {
			t.Fatal("zero rate must let everything through")
		}
	}
}

func TestParseSampleSpec(t *testing.T) {
	cases := []struct {
		spec string
		rate int
		ok   bool
	}{
		{"1/50", 20, true},
		{"50", 20, true},
		{"2%", 20, true},
		{"3/2", samplePerMille, true},
		{"1/100000", 1, true},
		{"0", 0, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1/0", 0, false},
		{"-5%", 0, false},
	}
	for _, tc := range cases {
		rate, ok := parseSampleSpec(tc.spec)
		if rate != tc.rate || ok != tc.ok {
			t.Fatalf("parseSampleSpec(%q) = %d, %v; want %d, %v", tc.spec, rate, ok, tc.rate, tc.ok)
		}
	}
}
