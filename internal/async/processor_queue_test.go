package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/receipts-redactor/internal/common"
)

func TestProcessorQueue_ProcessesAllJobs(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[string]string{}
	)
	proc := ProcessorFunc(func(ctx context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		seen[job.Path] = common.RunIDFromContext(ctx)
		return nil
	})

	q := NewProcessorQueue(proc, nil, WithWorkers(3), WithQueueSize(2))
	for _, p := range []string{"a", "b", "c", "d", "e", "f"} {
		if err := q.Enqueue(context.Background(), Job{Path: p, RunID: "run-1"}); err != nil {
			t.Fatalf("Enqueue(%s): %v", p, err)
		}
	}
	q.Shutdown(context.Background())

	if len(seen) != 6 {
		t.Fatalf("processed %d jobs, want 6", len(seen))
	}
	for p, run := range seen {
		if run != "run-1" {
			t.Errorf("job %s ran without run id", p)
		}
	}
}

func TestProcessorQueue_WorkerLimit(t *testing.T) {
	var active, peak int32
	proc := ProcessorFunc(func(ctx context.Context, job Job) error {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return nil
	})

	q := NewProcessorQueue(proc, nil, WithWorkers(2))
	for i := 0; i < 8; i++ {
		_ = q.Enqueue(context.Background(), Job{Path: string(rune('a' + i))})
	}
	q.Shutdown(context.Background())

	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestProcessorQueue_TimeoutAndClose(t *testing.T) {
	gotDeadline := make(chan bool, 1)
	proc := ProcessorFunc(func(ctx context.Context, job Job) error {
		<-ctx.Done()
		gotDeadline <- errors.Is(ctx.Err(), context.DeadlineExceeded)
		return ctx.Err()
	})

	q := NewProcessorQueue(proc, nil, WithProcessTimeout(10*time.Millisecond))
	if err := q.Enqueue(context.Background(), Job{Path: "slow"}); err != nil {
		t.Fatal(err)
	}
	q.Shutdown(context.Background())

	if !<-gotDeadline {
		t.Error("job context should end with a deadline")
	}
	if err := q.Enqueue(context.Background(), Job{Path: "late"}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Enqueue after shutdown err = %v", err)
	}
}
