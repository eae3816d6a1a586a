package events

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aditus/internal/common"
	"github.com/ternarybob/aditus/internal/interfaces"
)

func newTestService() interfaces.EventService {
	return NewService(common.GetLogger())
}

func TestPublishSyncDeliversToAllSubscribers(t *testing.T) {
	svc := newTestService()

	var delivered int64
	handler := func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt64(&delivered, 1)
		return nil
	}

	require.NoError(t, svc.Subscribe(interfaces.EventSSOSuccess, handler))
	require.NoError(t, svc.Subscribe(interfaces.EventSSOSuccess, handler))

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventSSOSuccess})
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&delivered))
}

func TestPublishWithNoSubscribersIsNoop(t *testing.T) {
	svc := newTestService()

	err := svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventSessionStale})
	assert.NoError(t, err)
}

func TestPublishIsAsynchronous(t *testing.T) {
	svc := newTestService()

	got := make(chan interfaces.Event, 1)
	require.NoError(t, svc.Subscribe(interfaces.EventSessionCleared, func(ctx context.Context, event interfaces.Event) error {
		got <- event
		return nil
	}))

	err := svc.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventSessionCleared,
		Payload: map[string]string{"reason": "manual"},
	})
	require.NoError(t, err)

	select {
	case event := <-got:
		assert.Equal(t, interfaces.EventSessionCleared, event.Type)
	case <-time.After(time.Second):
		t.Fatal("handler was never invoked")
	}
}

func TestPublishSyncReportsHandlerErrors(t *testing.T) {
	svc := newTestService()

	require.NoError(t, svc.Subscribe(interfaces.EventSSOError, func(ctx context.Context, event interfaces.Event) error {
		return fmt.Errorf("socket gone")
	}))
	require.NoError(t, svc.Subscribe(interfaces.EventSSOError, func(ctx context.Context, event interfaces.Event) error {
		return nil
	}))

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventSSOError})
	assert.Error(t, err)
}

func TestSubscribeRejectsNilHandler(t *testing.T) {
	svc := newTestService()
	assert.Error(t, svc.Subscribe(interfaces.EventSSOSuccess, nil))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	svc := newTestService()

	var delivered int64
	handler := func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt64(&delivered, 1)
		return nil
	}

	require.NoError(t, svc.Subscribe(interfaces.EventSSOSuccess, handler))
	require.NoError(t, svc.Unsubscribe(interfaces.EventSSOSuccess, handler))

	require.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventSSOSuccess}))
	assert.Equal(t, int64(0), atomic.LoadInt64(&delivered))

	assert.Error(t, svc.Unsubscribe(interfaces.EventSSOSuccess, handler))
}

func TestCloseDropsSubscribers(t *testing.T) {
	svc := newTestService()

	var delivered int64
	require.NoError(t, svc.Subscribe(interfaces.EventSSOSuccess, func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt64(&delivered, 1)
		return nil
	}))

	require.NoError(t, svc.Close())

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventSSOSuccess})
	require.NoError(t, err)
	assert.Equal(t, int64(0), atomic.LoadInt64(&delivered))
}
