package memory

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/avask/harvester/internal/harvest"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan harvest.Task, 1)
	errCh := make(chan error, 1)

	go func() {
		task, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- task
	}()

	time.Sleep(10 * time.Millisecond) // allow goroutine to start
	if err := q.Enqueue(context.Background(), harvest.NewTask("AAA")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		if got.ID != "AAA" || got.Sentinel {
			t.Fatalf("expected task AAA, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return task")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	qDequeue := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := qDequeue.Dequeue(ctx); err == nil ||
		err.Error() != "dequeue canceled: context canceled" {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}

	qEnqueue := NewQueue(1)
	if err := qEnqueue.Enqueue(context.Background(), harvest.NewTask("primed")); err != nil {
		t.Fatalf("failed to prime enqueue queue: %v", err)
	}
	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	if err := qEnqueue.Enqueue(ctx, harvest.Task{}); err == nil ||
		err.Error() != "enqueue canceled: context canceled" {
		t.Fatalf("expected enqueue cancel error, got %v", err)
	}
}

func TestQueueJoinWaitsForAcks(t *testing.T) {
	t.Parallel()

	q := NewQueue(4)
	ctx := context.Background()
	for _, id := range []string{"1", "2", "3"} {
		if err := q.Enqueue(ctx, harvest.NewTask(id)); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	joined := make(chan error, 1)
	go func() {
		joined <- q.Join(ctx)
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-joined:
			t.Fatal("Join returned before all tasks were acknowledged")
		default:
		}
		if _, err := q.Dequeue(ctx); err != nil {
			t.Fatalf("Dequeue() error = %v", err)
		}
		q.Done()
	}

	select {
	case err := <-joined:
		if err != nil {
			t.Fatalf("Join() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Join did not return after final acknowledgment")
	}

	// An already-settled queue joins immediately.
	if err := q.Join(ctx); err != nil {
		t.Fatalf("Join() on settled queue error = %v", err)
	}
}

func TestQueueJoinAfterDirectHandoff(t *testing.T) {
	t.Parallel()

	// An unbuffered queue hands each task straight to a consumer already
	// blocked in Dequeue, so the consumer's Done can land before the
	// matching Enqueue returns. Join must still settle at zero.
	const (
		tasks      = 4
		iterations = 200
	)
	for i := 0; i < iterations; i++ {
		q := NewQueue(0)
		ctx := context.Background()

		var wg sync.WaitGroup
		for c := 0; c < tasks; c++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := q.Dequeue(ctx); err != nil {
					t.Errorf("Dequeue() error = %v", err)
					return
				}
				q.Done()
			}()
		}
		for n := 0; n < tasks; n++ {
			if err := q.Enqueue(ctx, harvest.NewTask(strconv.Itoa(n))); err != nil {
				t.Fatalf("Enqueue() error = %v", err)
			}
		}
		wg.Wait()

		joinCtx, cancel := context.WithTimeout(ctx, time.Second)
		err := q.Join(joinCtx)
		cancel()
		if err != nil {
			t.Fatalf("iteration %d: Join() error = %v", i, err)
		}
	}
}

func TestQueueDoneWithoutTaskPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unmatched Done")
		}
	}()
	NewQueue(1).Done()
}

func TestQueueJoinHonorsContext(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	if err := q.Enqueue(context.Background(), harvest.NewTask("stuck")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Join(ctx); err == nil {
		t.Fatal("expected Join to fail when tasks remain unacknowledged")
	}
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	q.Close()
	if _, err := q.Dequeue(context.Background()); err == nil || err.Error() != "queue closed" {
		t.Fatalf("expected queue closed error, got %v", err)
	}
	// Closing twice should be safe.
	q.Close()
}
