package workers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type scriptedWorker struct {
	runs  *atomic.Int32
	do    func(ctx context.Context) error
}

func (w scriptedWorker) Run(ctx context.Context) error {
	w.runs.Add(1)
	return w.do(ctx)
}

func TestSupervisor_Restarts_A_Crashing_Worker(t *testing.T) {
	req := require.New(t)
	sup := NewSupervisor(slog.Default(), time.Millisecond)

	runs := &atomic.Int32{}
	sup.Add(scriptedWorker{runs: runs, do: func(context.Context) error {
		return errors.New("boom")
	}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	req.Eventually(func() bool { return runs.Load() >= 3 },
		time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestSupervisor_Recovers_From_Panics(t *testing.T) {
	req := require.New(t)
	sup := NewSupervisor(slog.Default(), time.Millisecond)

	runs := &atomic.Int32{}
	sup.Add(scriptedWorker{runs: runs, do: func(context.Context) error {
		panic("worker exploded")
	}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	req.Eventually(func() bool { return runs.Load() >= 2 },
		time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestSupervisor_Never_Restarts_A_Finished_Worker(t *testing.T) {
	req := require.New(t)
	sup := NewSupervisor(slog.Default(), time.Millisecond)

	runs := &atomic.Int32{}
	sup.Add(scriptedWorker{runs: runs, do: func(context.Context) error {
		return nil
	}})

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	// Run returns once every worker has finished cleanly
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("supervisor did not drain")
	}
	req.Equal(int32(1), runs.Load())
}

func TestSupervisor_Stop_Cancels_Workers(t *testing.T) {
	req := require.New(t)
	sup := NewSupervisor(slog.Default(), time.Millisecond)

	started := make(chan struct{})
	var once atomic.Bool
	runs := &atomic.Int32{}
	sup.Add(scriptedWorker{runs: runs, do: func(ctx context.Context) error {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		<-ctx.Done()
		return ctx.Err()
	}})

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	<-started
	sup.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop")
	}
	req.Equal(int32(1), runs.Load())
}
