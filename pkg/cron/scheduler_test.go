package cron

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/repository"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/service"
)

type fakeIngester struct {
	mu       sync.Mutex
	triggers []repository.Trigger
	deadline bool
	release  chan struct{}
	done     chan struct{}
}

func (f *fakeIngester) Ingest(ctx context.Context, trigger repository.Trigger) (*service.Result, error) {
	_, hasDeadline := ctx.Deadline()
	f.mu.Lock()
	f.triggers = append(f.triggers, trigger)
	f.deadline = hasDeadline
	f.mu.Unlock()

	if f.release != nil {
		<-f.release
	}
	if f.done != nil {
		f.done <- struct{}{}
	}
	return &service.Result{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_StartAndStop(t *testing.T) {
	s := NewScheduler(&fakeIngester{}, "@every 168h", time.Minute, discardLogger())
	assert.True(t, s.Next().IsZero())

	require.NoError(t, s.Start())
	next := s.Next()
	assert.WithinDuration(t, time.Now().Add(168*time.Hour), next, time.Minute)

	<-s.Stop().Done()
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := NewScheduler(&fakeIngester{}, "every tuesday", time.Minute, discardLogger())
	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ingest schedule")
}

func TestScheduler_RunNow(t *testing.T) {
	ing := &fakeIngester{done: make(chan struct{}, 1)}
	s := NewScheduler(ing, "@every 168h", time.Minute, discardLogger())

	require.NoError(t, s.RunNow())

	select {
	case <-ing.done:
	case <-time.After(5 * time.Second):
		t.Fatal("ingest did not run")
	}

	ing.mu.Lock()
	defer ing.mu.Unlock()
	assert.Equal(t, []repository.Trigger{repository.TriggerManual}, ing.triggers)
	assert.True(t, ing.deadline)
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	ing := &fakeIngester{release: make(chan struct{}), done: make(chan struct{}, 2)}
	s := NewScheduler(ing, "@every 168h", time.Minute, discardLogger())

	require.NoError(t, s.RunNow())
	require.Eventually(t, s.Running, 5*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, s.RunNow(), ErrAlreadyRunning)
	s.runIngest(repository.TriggerSchedule) // skipped, returns immediately

	close(ing.release)
	<-ing.done
	require.Eventually(t, func() bool { return !s.Running() }, 5*time.Second, 10*time.Millisecond)

	ing.mu.Lock()
	defer ing.mu.Unlock()
	assert.Len(t, ing.triggers, 1)
}
