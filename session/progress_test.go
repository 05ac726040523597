package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNextPercent(t *testing.T) {
	t.Run("small pacing slows down and caps", func(t *testing.T) {
		tests := []struct {
			cur, want float64
		}{
			{0, 1},
			{49, 50},
			{50, 50.5},
			{79.5, 80},
			{80, 80.1},
			{94.95, SmallCap},
			{SmallCap, SmallCap},
		}
		for _, tt := range tests {
			got := nextPercent(PacingSmall, tt.cur)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("nextPercent(small, %v) = %v, want %v", tt.cur, got, tt.want)
			}
		}
	})

	t.Run("large pacing is linear to 100", func(t *testing.T) {
		if got := nextPercent(PacingLarge, 60); got != 61 {
			t.Errorf("got %v, want 61", got)
		}
		if got := nextPercent(PacingLarge, 100); got != 100 {
			t.Errorf("got %v, want 100", got)
		}
	})

	t.Run("never decreases", func(t *testing.T) {
		for _, p := range []Pacing{PacingSmall, PacingLarge} {
			cur := 0.0
			for i := 0; i < 2000; i++ {
				next := nextPercent(p, cur)
				if next < cur {
					t.Fatalf("pacing %v went from %v to %v", p, cur, next)
				}
				cur = next
			}
		}
	})
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		pacing  Pacing
		percent float64
		want    string
	}{
		{PacingSmall, 0, "Removing silence..."},
		{PacingSmall, 29.9, "Removing silence..."},
		{PacingSmall, 30, "Processing audio..."},
		{PacingSmall, 59, "Processing audio..."},
		{PacingSmall, 60, "Transcribing..."},
		{PacingSmall, 95, "Transcribing..."},
		{PacingLarge, 40, "Uploading file..."},
	}
	for _, tt := range tests {
		if got := StatusText(tt.pacing, tt.percent); got != tt.want {
			t.Errorf("StatusText(%v, %v) = %q, want %q", tt.pacing, tt.percent, got, tt.want)
		}
	}
}

func TestProgressSimulator(t *testing.T) {
	t.Run("monotonic and stops at cap", func(t *testing.T) {
		var mu sync.Mutex
		var seen []float64
		p := NewProgressSimulator(time.Millisecond, func(percent float64, _ string) {
			mu.Lock()
			seen = append(seen, percent)
			mu.Unlock()
		})

		p.Start(context.Background(), PacingLarge)
		eventually(t, func() bool { return p.Percent() == 100 }, "large progress reaches 100")
		p.Stop()

		mu.Lock()
		defer mu.Unlock()
		if seen[0] != 0 {
			t.Errorf("first update should be 0, got %v", seen[0])
		}
		for i := 1; i < len(seen); i++ {
			if seen[i] < seen[i-1] {
				t.Fatalf("progress decreased at %d: %v -> %v", i, seen[i-1], seen[i])
			}
		}
	})

	t.Run("no updates after stop", func(t *testing.T) {
		var count atomic.Int64
		p := NewProgressSimulator(time.Millisecond, func(float64, string) {
			count.Add(1)
		})

		p.Start(context.Background(), PacingSmall)
		eventually(t, func() bool { return count.Load() > 3 }, "some progress reported")
		p.Stop()

		after := count.Load()
		time.Sleep(20 * time.Millisecond)
		if got := count.Load(); got != after {
			t.Errorf("received %d updates after Stop", got-after)
		}
		if p.Percent() >= SmallCap {
			t.Errorf("small progress should not have reached the cap yet, got %v", p.Percent())
		}
	})

	t.Run("complete jumps to 100", func(t *testing.T) {
		var last float64
		var mu sync.Mutex
		p := NewProgressSimulator(time.Hour, func(percent float64, _ string) {
			mu.Lock()
			last = percent
			mu.Unlock()
		})
		p.Start(context.Background(), PacingSmall)
		p.Complete("done")

		mu.Lock()
		defer mu.Unlock()
		if last != 100 {
			t.Errorf("last update = %v, want 100", last)
		}
	})
}

func TestEvery(t *testing.T) {
	t.Run("runs immediately", func(t *testing.T) {
		ran := make(chan struct{}, 1)
		task := Every(context.Background(), time.Hour, func(context.Context) bool {
			ran <- struct{}{}
			return false
		})
		select {
		case <-ran:
		case <-time.After(time.Second):
			t.Fatal("first run did not happen immediately")
		}
		<-task.Done()
	})

	t.Run("stops when fn returns false", func(t *testing.T) {
		var n atomic.Int64
		task := Every(context.Background(), time.Millisecond, func(context.Context) bool {
			return n.Add(1) < 3
		})
		<-task.Done()
		if n.Load() != 3 {
			t.Errorf("fn ran %d times, want 3", n.Load())
		}
	})

	t.Run("wait returns after context ends", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		task := Every(ctx, time.Millisecond, func(context.Context) bool { return true })
		cancel()

		waited := make(chan struct{})
		go func() {
			task.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-time.After(time.Second):
			t.Fatal("Wait did not return after the context ended")
		}
	})

	t.Run("stop cancels fn context", func(t *testing.T) {
		started := make(chan struct{})
		var sawCancel atomic.Bool
		task := Every(context.Background(), time.Hour, func(ctx context.Context) bool {
			close(started)
			<-ctx.Done()
			sawCancel.Store(true)
			return false
		})
		<-started
		task.Stop()
		if !sawCancel.Load() {
			t.Error("Stop returned before fn observed cancellation")
		}
	})
}
