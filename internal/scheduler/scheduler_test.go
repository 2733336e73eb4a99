package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStart_RunsImmediately(t *testing.T) {
	ran := make(chan struct{}, 1)
	s := New("@every 1h", func(context.Context) error {
		ran <- struct{}{}
		return nil
	}, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not run")
	}
}

func TestStart_FirstCyclePanicIsRecovered(t *testing.T) {
	var calls atomic.Int32
	again := make(chan struct{}, 1)
	s := New("@every 1s", func(context.Context) error {
		if calls.Add(1) == 1 {
			panic("scraper blew up")
		}
		select {
		case again <- struct{}{}:
		default:
		}
		return nil
	}, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	select {
	case <-again:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler did not survive a panicking first cycle")
	}
}

func TestStart_InvalidSpec(t *testing.T) {
	s := New("every now and then", func(context.Context) error { return nil }, zap.NewNop())
	assert.Error(t, s.Start(context.Background()))
}

func TestOverlappingTicksAreSkipped(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{}, 4)
	s := New("@every 1s", func(ctx context.Context) error {
		calls.Add(1)
		started <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	<-started
	time.Sleep(2500 * time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(1), calls.Load())
}

func TestStop_CancelsRunningCycle(t *testing.T) {
	done := make(chan error, 1)
	started := make(chan struct{})
	s := New("@every 1h", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		done <- ctx.Err()
		return errors.New("cancelled")
	}, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	<-started
	s.Stop()

	assert.ErrorIs(t, <-done, context.Canceled)
}
