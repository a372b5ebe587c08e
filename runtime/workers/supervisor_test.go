package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type funcWorker struct {
	run func(ctx context.Context) error
}

func (w *funcWorker) Run(ctx context.Context) error {
	return w.run(ctx)
}

func TestSupervisor_Restart_On_Panic(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	var calls atomic.Int32
	worker := &funcWorker{run: func(ctx context.Context) error {
		calls.Add(1)
		panic("boom")
	}}

	sup := NewSupervisor(log, 50*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sup.Add(worker).Run(ctx)

	// Waiting for panics and restarts
	time.Sleep(500 * time.Millisecond)
	sup.Stop()

	req.GreaterOrEqual(calls.Load(), int32(2))
}

func TestSupervisor_Restart_On_Error(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	var calls atomic.Int32
	worker := &funcWorker{run: func(ctx context.Context) error {
		calls.Add(1)
		return fmt.Errorf("transient failure")
	}}

	sup := NewSupervisor(log, 50*time.Millisecond)
	sup.Add(worker).Run(context.Background())

	time.Sleep(500 * time.Millisecond)
	sup.Stop()

	req.GreaterOrEqual(calls.Load(), int32(2))
}

func TestSupervisor_No_Restart_On_Success(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	var calls atomic.Int32
	worker := &funcWorker{run: func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}}

	sup := NewSupervisor(log, 10*time.Millisecond)
	sup.Add(worker).Run(context.Background())

	// Waiting long enough that a wrongful restart would have happened
	time.Sleep(200 * time.Millisecond)
	sup.Stop()

	req.EqualValues(1, calls.Load())
}

func TestSupervisor_Stop_Cancels_Running_Workers(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	started := make(chan struct{})
	worker := &funcWorker{run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}

	sup := NewSupervisor(log, time.Minute)
	sup.Add(worker).Run(context.Background())
	<-started

	// When Stop is called, it must return: the worker saw the cancel and
	// the supervisor waited for it
	done := make(chan struct{})
	go func() {
		sup.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("Stop did not return after canceling workers")
	}
}

func TestSupervisor_Parent_Context_Cancel_Stops_Workers(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	stopped := make(chan struct{})
	worker := &funcWorker{run: func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	}}

	ctx, cancel := context.WithCancel(context.Background())
	sup := NewSupervisor(log, time.Minute)
	sup.Add(worker).Run(ctx)

	// When the parent context cancels
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		req.Fail("worker did not observe parent cancellation")
	}
	sup.Stop()
}
