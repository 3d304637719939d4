package activity

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"pgregory.net/rapid"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestNewGraph_ZeroFilledWindow(t *testing.T) {
	g := NewGraph(20, 2*time.Second, epoch)
	chart := g.Snapshot()

	if len(chart.Points) != 20 {
		t.Fatalf("len = %d, want 20", len(chart.Points))
	}
	for i, p := range chart.Points {
		if p.Calls != 0 {
			t.Errorf("point %d calls = %d, want 0", i, p.Calls)
		}
		want := epoch.Add(-time.Duration(19-i) * 2 * time.Second)
		if !p.Time.Equal(want) {
			t.Errorf("point %d time = %v, want %v", i, p.Time, want)
		}
	}
	if chart.Points[19].Label != "12:00:00" || chart.Points[0].Label != "11:59:22" {
		t.Errorf("labels = %q .. %q", chart.Points[0].Label, chart.Points[19].Label)
	}
	if chart.Current != 0 || chart.Average != 0 {
		t.Errorf("current=%d average=%d, want zeros", chart.Current, chart.Average)
	}
}

func TestGraph_RecordAppendsDeltas(t *testing.T) {
	g := NewGraph(4, time.Second, epoch)

	g.Record(epoch.Add(1*time.Second), 10) // baseline
	g.Record(epoch.Add(2*time.Second), 13)
	g.Record(epoch.Add(3*time.Second), 13)
	g.Record(epoch.Add(4*time.Second), 20)

	chart := g.Snapshot()
	want := []int64{0, 3, 0, 7}
	for i, p := range chart.Points {
		if p.Calls != want[i] {
			t.Errorf("point %d = %d, want %d", i, p.Calls, want[i])
		}
	}
	if chart.Current != 7 || chart.Peak != 7 {
		t.Errorf("current=%d peak=%d", chart.Current, chart.Peak)
	}
	// (0+3+0+7)/4 = 2.5 rounds half up
	if chart.Average != 3 {
		t.Errorf("average = %d, want 3", chart.Average)
	}
}

func TestGraph_DecreasingTotalRecordsZero(t *testing.T) {
	g := NewGraph(3, time.Second, epoch)
	g.Record(epoch, 50)
	g.Record(epoch.Add(time.Second), 20) // a key was deleted
	if g.Current() != 0 {
		t.Errorf("current = %d, want 0", g.Current())
	}
	g.Record(epoch.Add(2*time.Second), 25)
	if g.Current() != 5 {
		t.Errorf("current = %d, want 5", g.Current())
	}
}

// TestProperty_WindowSizeIsStable checks that recording never changes the window length
// and that the average stays within the sample range.
func TestProperty_WindowSizeIsStable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		size := rapid.IntRange(1, 40).Draw(rt, "size")
		g := NewGraph(size, time.Second, epoch)

		increments := rapid.SliceOfN(rapid.Int64Range(0, 1000), 0, 100).Draw(rt, "increments")
		var total int64
		for i, inc := range increments {
			total += inc
			g.Record(epoch.Add(time.Duration(i+1)*time.Second), total)
		}

		chart := g.Snapshot()
		if len(chart.Points) != size {
			rt.Fatalf("len = %d, want %d", len(chart.Points), size)
		}
		if chart.Average < 0 || chart.Average > chart.Peak {
			rt.Fatalf("average %d outside [0, %d]", chart.Average, chart.Peak)
		}
		for i := 1; i < len(chart.Points); i++ {
			if chart.Points[i].Time.Before(chart.Points[i-1].Time) {
				rt.Fatalf("points out of order at %d", i)
			}
		}
	})
}

func TestSampler_TicksFromCounter(t *testing.T) {
	var total atomic.Int64
	g := NewGraph(5, time.Hour, epoch)
	s := NewSampler(g, CounterFunc(total.Load), time.Hour)
	s.now = func() time.Time { return epoch }

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}

	total.Store(4)
	s.Tick()
	if g.Current() != 4 {
		t.Errorf("current = %d, want 4", g.Current())
	}
}

func TestSampler_StopsOnContextCancel(t *testing.T) {
	g := NewGraph(5, time.Millisecond, epoch)
	s := NewSampler(g, CounterFunc(func() int64 { return 0 }), time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after context cancel")
	}
	if s.IsRunning() {
		t.Error("sampler still running")
	}
}
