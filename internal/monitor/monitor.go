// Package monitor records per-episode training statistics.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Episode is one finished shot as seen by the trainer.
type Episode struct {
	Index   int
	Session string
	Reward  float64
	Ticks   int
	Scored  bool
	StartX  float64
	Elapsed time.Duration
}

// Sink persists episodes.
type Sink interface {
	Record(ctx context.Context, ep Episode) error
	Close() error
}

// Stats summarises the most recent episodes.
type Stats struct {
	Episodes    int     `json:"episodes"`
	Window      int     `json:"window"`
	MeanReward  float64 `json:"meanReward"`
	SuccessRate float64 `json:"successRate"`
	MeanTicks   float64 `json:"meanTicks"`
}

// Monitor is shared by every trainer session of a run.
type Monitor struct {
	mu       sync.Mutex
	runID    string
	start    time.Time
	sinks    []Sink
	log      *zap.Logger
	recent   []Episode
	next     int
	count    int
	logEvery int
}

func New(runID string, window, logEvery int, log *zap.Logger, sinks ...Sink) *Monitor {
	if window < 1 {
		window = 1
	}
	return &Monitor{
		runID:    runID,
		start:    time.Now(),
		sinks:    sinks,
		log:      log.With(zap.String("run", runID)),
		recent:   make([]Episode, 0, window),
		logEvery: logEvery,
	}
}

func (m *Monitor) RunID() string { return m.runID }

// Record stores an episode in the rolling window and every sink. Sink errors
// are returned joined; the episode is still counted.
func (m *Monitor) Record(ctx context.Context, session string, reward float64, ticks int, scored bool, startX float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.count++
	ep := Episode{
		Index:   m.count,
		Session: session,
		Reward:  reward,
		Ticks:   ticks,
		Scored:  scored,
		StartX:  startX,
		Elapsed: time.Since(m.start),
	}
	if len(m.recent) < cap(m.recent) {
		m.recent = append(m.recent, ep)
	} else {
		m.recent[m.next] = ep
		m.next = (m.next + 1) % len(m.recent)
	}

	var errs []error
	for _, s := range m.sinks {
		if err := s.Record(ctx, ep); err != nil {
			errs = append(errs, err)
		}
	}

	if m.logEvery > 0 && m.count%m.logEvery == 0 {
		st := m.statsLocked()
		m.log.Info("training progress",
			zap.Int("episodes", st.Episodes),
			zap.Float64("meanReward", st.MeanReward),
			zap.Float64("successRate", st.SuccessRate),
			zap.Float64("meanTicks", st.MeanTicks),
		)
	}
	return errors.Join(errs...)
}

func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsLocked()
}

func (m *Monitor) statsLocked() Stats {
	st := Stats{Episodes: m.count, Window: len(m.recent)}
	if len(m.recent) == 0 {
		return st
	}
	var reward, ticks, scored float64
	for _, ep := range m.recent {
		reward += ep.Reward
		ticks += float64(ep.Ticks)
		if ep.Scored {
			scored++
		}
	}
	n := float64(len(m.recent))
	st.MeanReward = reward / n
	st.MeanTicks = ticks / n
	st.SuccessRate = scored / n
	return st
}

// Close closes every sink.
func (m *Monitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.sinks = nil
	return errors.Join(errs...)
}
