package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := New[int]()

	var mu sync.Mutex
	got := map[string][]int{}
	record := func(name string) Handler[int] {
		return func(_ context.Context, v int) {
			mu.Lock()
			got[name] = append(got[name], v)
			mu.Unlock()
		}
	}

	b.Subscribe(ctx, "first", 8, record("first"))
	b.Subscribe(ctx, "second", 8, record("second"))

	for i := 0; i < 3; i++ {
		b.Publish(ctx, i)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got["first"]) == 3 && len(got["second"]) == 3
	}, time.Second, 5*time.Millisecond)
}

func TestSlowSubscriberDropsWithoutBlocking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := New[int]()

	block := make(chan struct{})
	b.Subscribe(ctx, "slow", 1, func(_ context.Context, _ int) {
		<-block
	})

	// Buffer of 1 plus one in-flight handler; the rest must drop, not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(ctx, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	close(block)

	assert.Greater(t, b.Dropped("slow"), int64(0))
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := New[string]()
	delivered := make(chan string, 1)
	b.Subscribe(ctx, "sub", 1, func(_ context.Context, v string) {
		delivered <- v
	})

	b.Close()
	b.Publish(ctx, "late")

	select {
	case v := <-delivered:
		t.Fatalf("unexpected delivery after close: %q", v)
	case <-time.After(50 * time.Millisecond):
	}
}
