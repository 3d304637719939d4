package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/unrepo/devportal/internal/logging"
)

// Counter reports the cumulative number of API calls
type Counter interface {
	TotalCalls() int64
}

// CounterFunc adapts a function to Counter
type CounterFunc func() int64

func (f CounterFunc) TotalCalls() int64 { return f() }

// Sampler feeds a Graph from a Counter on a fixed interval
type Sampler struct {
	graph    *Graph
	source   Counter
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewSampler creates a sampler; interval <= 0 falls back to the graph interval
func NewSampler(graph *Graph, source Counter, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = graph.interval
	}
	return &Sampler{
		graph:    graph,
		source:   source,
		interval: interval,
		now:      time.Now,
		logger:   logging.NewLogger("activity"),
		stopCh:   make(chan struct{}),
	}
}

// Graph returns the sampled graph
func (s *Sampler) Graph() *Graph {
	return s.graph
}

// Start begins sampling until ctx is done or Stop is called
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sampler already running")
	}
	s.running = true
	s.mu.Unlock()

	// baseline so the first tick shows calls made after start
	s.graph.Record(s.now(), s.source.TotalCalls())

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Debug().Dur("interval", s.interval).Msg("Activity sampler started")
	return nil
}

// Stop halts sampling and waits for the loop to exit
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Debug().Msg("Activity sampler stopped")
}

// IsRunning returns whether the sampler is running
func (s *Sampler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Tick takes one sample immediately
func (s *Sampler) Tick() {
	s.graph.Record(s.now(), s.source.TotalCalls())
}

func (s *Sampler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}
