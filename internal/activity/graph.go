package activity

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultPoints   = 20
	DefaultInterval = 2 * time.Second
	labelLayout     = "15:04:05"
)

// Point is one sample of the chart
type Point struct {
	Time  time.Time `json:"-"`
	Label string    `json:"time"`
	Calls int64     `json:"calls"`
}

// Chart is a read-only snapshot of the graph
type Chart struct {
	Points  []Point `json:"points"`
	Current int64   `json:"current"`
	Average int64   `json:"average"`
	Peak    int64   `json:"peak"`
}

// Graph is a fixed-size rolling window of call counts
type Graph struct {
	mu        sync.RWMutex
	points    []Point
	interval  time.Duration
	lastTotal int64
	primed    bool
}

// NewGraph creates a zero-filled window of size points ending at now
func NewGraph(size int, interval time.Duration, now time.Time) *Graph {
	if size <= 0 {
		size = DefaultPoints
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	points := make([]Point, size)
	for i := range points {
		t := now.Add(-time.Duration(size-1-i) * interval)
		points[i] = Point{Time: t, Label: t.Format(labelLayout)}
	}
	return &Graph{points: points, interval: interval}
}

// Record appends the calls observed since the previous sample and drops the
// oldest point. The first sample only establishes the baseline.
func (g *Graph) Record(now time.Time, total int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var delta int64
	if g.primed && total > g.lastTotal {
		delta = total - g.lastTotal
	}
	g.lastTotal = total
	g.primed = true

	copy(g.points, g.points[1:])
	g.points[len(g.points)-1] = Point{Time: now, Label: now.Format(labelLayout), Calls: delta}
}

// Current returns the most recent sample
func (g *Graph) Current() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.points[len(g.points)-1].Calls
}

// Average returns the mean of the window rounded to the nearest integer
func (g *Graph) Average() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return average(g.points)
}

// Snapshot copies the window
func (g *Graph) Snapshot() Chart {
	g.mu.RLock()
	defer g.mu.RUnlock()

	points := make([]Point, len(g.points))
	copy(points, g.points)

	var peak int64
	for _, p := range points {
		if p.Calls > peak {
			peak = p.Calls
		}
	}
	return Chart{
		Points:  points,
		Current: points[len(points)-1].Calls,
		Average: average(points),
		Peak:    peak,
	}
}

func average(points []Point) int64 {
	sum := decimal.Zero
	for _, p := range points {
		sum = sum.Add(decimal.NewFromInt(p.Calls))
	}
	return sum.Div(decimal.NewFromInt(int64(len(points)))).Round(0).IntPart()
}
