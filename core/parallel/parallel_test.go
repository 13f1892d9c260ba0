package parallel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestParallelizeCoversEveryIndexOnce(t *testing.T) {
	for _, items := range []int{0, 1, 7, 1000} {
		t.Run(fmt.Sprintf("items=%d", items), func(t *testing.T) {
			seen := make([]int32, items)
			Parallelize(items, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&seen[i], 1)
				}
			})
			for i, c := range seen {
				if c != 1 {
					t.Fatalf("index %d visited %d times", i, c)
				}
			}
		})
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		if start != 0 || end != 10 {
			t.Errorf("range = [%d, %d), want [0, 10)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestForEachRespectsLimit(t *testing.T) {
	var (
		mu      sync.Mutex
		running int
		peak    int
		total   int32
	)
	err := ForEach(context.Background(), 50, 3, func(ctx context.Context, i int) error {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()

		atomic.AddInt32(&total, 1)

		mu.Lock()
		running--
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 50 {
		t.Errorf("total = %d, want 50", total)
	}
	if peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
}

func TestForEachReturnsFirstError(t *testing.T) {
	wantErr := fmt.Errorf("configuration bug")
	err := ForEach(context.Background(), 10, 1, func(ctx context.Context, i int) error {
		if i == 2 {
			return wantErr
		}
		return nil
	})
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}
