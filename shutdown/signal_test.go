package shutdown

import (
	"context"
	"sync"
	"testing"

	"go_superres/logging"
)

func TestSignalCounter(t *testing.T) {
	forced := 0
	c := NewSignalCounter(2, func() { forced++ })

	if got := c.Increment(); got != 1 || forced != 0 {
		t.Fatalf("first Increment() = %d, forced = %d", got, forced)
	}
	if got := c.Increment(); got != 2 || forced != 1 {
		t.Fatalf("second Increment() = %d, forced = %d", got, forced)
	}
	c.Increment()
	if forced != 2 || c.Count() != 3 {
		t.Errorf("after third: forced = %d, count = %d", forced, c.Count())
	}
}

func TestSignalCounter_Concurrent(t *testing.T) {
	c := NewSignalCounter(1000, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Increment()
		}()
	}
	wg.Wait()
	if c.Count() != 50 {
		t.Errorf("Count() = %d, want 50", c.Count())
	}
}

func TestNotifyContext_StopCancels(t *testing.T) {
	ctx, stop := NotifyContext(context.Background(), logging.NewNop(), nil)
	if ctx.Err() != nil {
		t.Fatal("context cancelled before any signal")
	}
	stop()
	stop()
	if ctx.Err() == nil {
		t.Error("context still live after stop")
	}
}
