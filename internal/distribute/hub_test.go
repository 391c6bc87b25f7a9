package distribute

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funcdeck-hq/funcdeck/pkg/model"
)

func snapshot() *model.Snapshot {
	return &model.Snapshot{LastUpdated: time.Now().UTC()}
}

func TestHub_CurrentNilBeforeFirstPublish(t *testing.T) {
	h := NewHub()
	assert.Nil(t, h.Current())
}

func TestHub_SubscribeBeforeFirstPublish(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()

	// nothing is delivered until a snapshot exists
	select {
	case <-ch:
		t.Fatal("expected no initial delivery")
	default:
	}

	snap := snapshot()
	h.Publish(snap)
	assert.Same(t, snap, <-ch)
}

func TestHub_SubscribeAfterPublishGetsCurrentImmediately(t *testing.T) {
	h := NewHub()
	snap := snapshot()
	h.Publish(snap)

	ch := h.Subscribe()
	select {
	case got := <-ch:
		assert.Same(t, snap, got)
	default:
		t.Fatal("expected immediate delivery of current snapshot")
	}
}

func TestHub_PublishFansOut(t *testing.T) {
	h := NewHub()
	a := h.Subscribe()
	b := h.Subscribe()

	snap := snapshot()
	h.Publish(snap)

	assert.Same(t, snap, <-a)
	assert.Same(t, snap, <-b)
	assert.Same(t, snap, h.Current())
}

func TestHub_StalledSubscriberPruned(t *testing.T) {
	h := NewHub()
	stalled := h.Subscribe()
	healthy := h.Subscribe()

	// fill the stalled subscriber's buffer while keeping the healthy one
	// drained; the publish after the buffer fills prunes the straggler
	received := 0
	for i := 0; i < subscriberBuffer+1; i++ {
		h.Publish(snapshot())
		<-healthy
		received++
	}

	assert.Equal(t, 1, h.Subscribers())
	assert.Equal(t, subscriberBuffer+1, received)

	// the stalled channel was closed on prune with its buffer intact
	drained := 0
	for range stalled {
		drained++
	}
	assert.Equal(t, subscriberBuffer, drained)
}

func TestHub_UnsubscribeIdempotent(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()

	h.Unsubscribe(ch)
	require.NotPanics(t, func() { h.Unsubscribe(ch) })
	assert.Equal(t, 0, h.Subscribers())

	// publishing after unsubscribe does not panic on the closed channel
	require.NotPanics(t, func() { h.Publish(snapshot()) })
}
