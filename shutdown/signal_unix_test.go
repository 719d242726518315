//go:build unix

package shutdown

import (
	"context"
	"syscall"
	"testing"
	"time"

	"go_superres/logging"
)

func TestNotifyContext_SignalCancels(t *testing.T) {
	forced := make(chan struct{}, 1)
	ctx, stop := NotifyContext(context.Background(), logging.NewNop(), func() { forced <- struct{}{} })
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Skipf("cannot signal self: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not cancelled by SIGTERM")
	}

	select {
	case <-forced:
		t.Error("force callback ran after a single signal")
	default:
	}
}
