package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRunnerRunsImmediatelyThenOnTrigger(t *testing.T) {
	var calls int32
	r := NewRunner("test", time.Hour, zap.NewNop(), func(ctx context.Context) {
		atomic.AddInt32(&calls, 1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	r.Trigger()
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))

	cancel()
	<-done
}

func TestRunnerSurvivesPanic(t *testing.T) {
	var calls int32
	r := NewRunner("panics", 10*time.Millisecond, zap.NewNop(), func(ctx context.Context) {
		atomic.AddInt32(&calls, 1)
		panic("boom")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestRunnerCoalescesTriggers(t *testing.T) {
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	r := NewRunner("slow", time.Hour, zap.NewNop(), func(ctx context.Context) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			close(started)
			<-release
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	<-started
	r.Trigger()
	r.Trigger()
	r.Trigger()
	close(release)

	time.Sleep(30 * time.Millisecond)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}
