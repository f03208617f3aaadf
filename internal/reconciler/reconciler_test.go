package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"tickify/internal/models"

	"github.com/stretchr/testify/assert"
)

type fakeSweeper struct {
	cancelled []string
	err       error
	calls     int
}

func (f *fakeSweeper) CancelExpiredOrders(ctx context.Context) ([]string, error) {
	f.calls++
	return f.cancelled, f.err
}

type fakeLocker struct {
	acquired bool
	acquires int
	releases int
}

func (f *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.acquires++
	return f.acquired, nil
}

func (f *fakeLocker) ReleaseLock(ctx context.Context, key string) error {
	f.releases++
	return nil
}

type fakePublisher struct {
	events []*models.OrderCancelledEvent
}

func (f *fakePublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	f.events = append(f.events, event)
	return nil
}

func TestTickCancelsExpiredOrders(t *testing.T) {
	sweeper := &fakeSweeper{cancelled: []string{"order-1", "order-2"}}
	locker := &fakeLocker{acquired: true}
	publisher := &fakePublisher{}

	r := New(sweeper, locker, publisher, time.Minute)
	r.Tick(context.Background())

	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, 1, locker.acquires)
	assert.Equal(t, 1, locker.releases)

	assert.Len(t, publisher.events, 2)
	assert.Equal(t, "order-1", publisher.events[0].OrderID)
	assert.Equal(t, models.EventTypeOrderExpired, publisher.events[0].EventType)
	assert.Equal(t, "reservation expired", publisher.events[0].Reason)
}

func TestTickSkipsWhenLockHeld(t *testing.T) {
	sweeper := &fakeSweeper{cancelled: []string{"order-1"}}
	locker := &fakeLocker{acquired: false}

	r := New(sweeper, locker, &fakePublisher{}, time.Minute)
	r.Tick(context.Background())

	assert.Equal(t, 0, sweeper.calls, "a held lock must skip the sweep")
	assert.Equal(t, 0, locker.releases)
}

func TestTickSweepErrorIsRetryable(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("db down")}
	locker := &fakeLocker{acquired: true}
	publisher := &fakePublisher{}

	r := New(sweeper, locker, publisher, time.Minute)
	r.Tick(context.Background())
	assert.Empty(t, publisher.events)
	assert.Equal(t, 1, locker.releases, "lock released even on failure")

	// next tick retries
	sweeper.err = nil
	sweeper.cancelled = []string{"order-9"}
	r.Tick(context.Background())
	assert.Equal(t, 2, sweeper.calls)
	assert.Len(t, publisher.events, 1)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	sweeper := &fakeSweeper{}
	r := New(sweeper, &fakeLocker{acquired: true}, &fakePublisher{}, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop on context cancel")
	}
	assert.Greater(t, sweeper.calls, 0)
}
