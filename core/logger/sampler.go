package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// Sampling rates are expressed in events per thousand.
const (
	samplePerMille     = 1000
	defaultDebugSample = 20
)

// sampler lets through a fixed share of calls, spread evenly over the sequence.
// A rate of zero or a full rate lets everything through.
type sampler struct {
	rate  atomic.Int64
	count atomic.Uint64
}

func newSampler(perMille int) *sampler {
	s := &sampler{}
	s.set(perMille)
	return s
}

func (s *sampler) set(perMille int) {
	if perMille < 0 {
		perMille = 0
	}
	s.rate.Store(int64(perMille))
	s.count.Store(0)
}

func (s *sampler) allow() bool {
	rate := uint64(s.rate.Load())
	if rate == 0 || rate >= samplePerMille {
		return true
	}
	n := s.count.Add(1)
	return n*rate/samplePerMille != (n-1)*rate/samplePerMille
}

// parseSampleSpec understands "1/50", "50" (one in fifty) and "2%".
// A zero value disables sampling.
func parseSampleSpec(spec string) (int, bool) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == "":
		return 0, false
	case strings.HasSuffix(spec, "%"):
		pct, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(spec, "%")), 64)
		if err != nil || pct < 0 {
			return 0, false
		}
		return clampRate(int(pct * samplePerMille / 100)), true
	case strings.Contains(spec, "/"):
		a, b, _ := strings.Cut(spec, "/")
		num, err1 := strconv.Atoi(strings.TrimSpace(a))
		den, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil || num < 0 || den <= 0 {
			return 0, false
		}
		return clampRate(num * samplePerMille / den), true
	}
	every, err := strconv.Atoi(spec)
	if err != nil || every < 0 {
		return 0, false
	}
	if every == 0 {
		return 0, true
	}
	return clampRate(samplePerMille / every), true
}

func clampRate(r int) int {
	if r > samplePerMille {
		return samplePerMille
	}
	if r < 1 {
		return 1
	}
	return r
}
