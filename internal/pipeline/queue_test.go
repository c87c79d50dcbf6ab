package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Adilonapsh/exif-watermark-app/pkg/logger"
)

type depthRecorder struct {
	mu      sync.Mutex
	batches map[string]int
}

func (d *depthRecorder) SetQueueDepth(int) {}

func (d *depthRecorder) IncBatches(source string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches[source]++
}

func TestQueueRunsBatchesOneAtATime(t *testing.T) {
	renderer := &fakeRenderer{delay: 5 * time.Millisecond}
	p := newTestPipeline(t, renderer, nil, nil)
	metrics := &depthRecorder{batches: map[string]int{}}
	q := NewQueue(p, QueueConfig{Metrics: metrics}, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	const batches = 4
	var wg sync.WaitGroup
	errs := make(chan error, batches)
	for b := 0; b < batches; b++ {
		wg.Add(1)
		go func(b int) {
			defer wg.Done()
			sources := []Source{
				mem(fmt.Sprintf("%d-a.jpg", b), "a"),
				mem(fmt.Sprintf("%d-b.jpg", b), "b"),
			}
			results, err := q.ProcessBatch(context.Background(), sources, DefaultOptions(), WithOrigin("queue"))
			if err != nil {
				errs <- err
				return
			}
			want := []string{fmt.Sprintf("%d-a.jpg", b), fmt.Sprintf("%d-b.jpg", b)}
			if got := names(results); !equal(got, want) {
				errs <- fmt.Errorf("batch %d results = %v", b, got)
			}
		}(b)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if m := renderer.maxSeen.Load(); m != 1 {
		t.Errorf("max concurrent renders = %d, want 1", m)
	}
	if processed, failed := q.Stats(); processed != 2*batches || failed != 0 {
		t.Errorf("stats = %d processed, %d failed", processed, failed)
	}
	if metrics.batches["queue"] != batches {
		t.Errorf("batches = %v", metrics.batches)
	}
}

func TestQueueCallerCancelDoesNotAbortBatch(t *testing.T) {
	renderer := &fakeRenderer{delay: 20 * time.Millisecond}
	p := newTestPipeline(t, renderer, nil, nil)
	q := NewQueue(p, QueueConfig{}, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	callerCtx, callerCancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer callerCancel()

	var seen []Step
	var mu sync.Mutex
	progress := WithProgress(func(pr Progress) {
		mu.Lock()
		defer mu.Unlock()
		if pr.Step == StepDone {
			seen = append(seen, pr.Step)
		}
	})

	_, err := q.ProcessBatch(callerCtx, []Source{mem("a.jpg", "a"), mem("b.jpg", "b")}, DefaultOptions(), progress)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	// A follow-up batch only runs after the abandoned one has finished.
	if _, err := q.ProcessBatch(context.Background(), []Source{mem("c.jpg", "c")}, DefaultOptions()); err != nil {
		t.Fatalf("follow-up batch failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Errorf("abandoned batch completed %d items, want 2", len(seen))
	}
}

func TestQueueStopped(t *testing.T) {
	p := newTestPipeline(t, &fakeRenderer{}, nil, nil)
	q := NewQueue(p, QueueConfig{}, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	cancel()

	select {
	case <-q.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}

	if _, err := q.ProcessBatch(context.Background(), []Source{mem("a.jpg", "a")}, DefaultOptions()); !errors.Is(err, ErrQueueStopped) {
		t.Errorf("err = %v, want ErrQueueStopped", err)
	}
}
