package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	capturerepo "github.com/yungbote/mindtrail-backend/internal/data/repos/capture"
	types "github.com/yungbote/mindtrail-backend/internal/domain"
	"github.com/yungbote/mindtrail-backend/internal/realtime"
)

func nextSnapshot(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case s, ok := <-sub.Updates():
		require.True(t, ok, "updates closed early")
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
	}
	return Snapshot{}
}

func TestFeedDeliversInitialAndChangedSnapshots(t *testing.T) {
	repo := &fakeRepo{}
	hub := realtime.NewSSEHub(nil)
	feed := NewCaptureFeed(nil, repo, hub, nil)
	writer := NewCaptureWriter(nil, repo, &HubEmitter{Hub: hub}, nil, nil, 0)

	sub, err := feed.Subscribe(context.Background(), "u1", 10)
	require.NoError(t, err)
	defer sub.Cancel()

	first := nextSnapshot(t, sub)
	require.NoError(t, first.Err)
	assert.Empty(t, first.Items)

	_, err = writer.Append(context.Background(), capturerepo.CollectionRef{UserID: "u1"}, &types.Capture{TextRaw: "hello"}, RequestContext{})
	require.NoError(t, err)

	second := nextSnapshot(t, sub)
	require.NoError(t, second.Err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "hello", second.Items[0].TextRaw)
}

func TestFeedCancelIsSynchronousAndIdempotent(t *testing.T) {
	hub := realtime.NewSSEHub(nil)
	feed := NewCaptureFeed(nil, &fakeRepo{}, hub, nil)

	sub, err := feed.Subscribe(context.Background(), "u1", 10)
	require.NoError(t, err)
	nextSnapshot(t, sub)

	sub.Cancel()
	sub.Cancel()

	assert.Equal(t, 0, hub.Subscribers(realtime.CaptureChannel("u1")))
	_, ok := <-sub.Updates()
	assert.False(t, ok, "updates should be closed after Cancel")
}

func TestFeedListErrorEndsSubscription(t *testing.T) {
	hub := realtime.NewSSEHub(nil)
	feed := NewCaptureFeed(nil, &fakeRepo{err: errBoom}, hub, nil)

	sub, err := feed.Subscribe(context.Background(), "u1", 10)
	require.NoError(t, err)
	defer sub.Cancel()

	snap := nextSnapshot(t, sub)
	assert.ErrorIs(t, snap.Err, errBoom)

	select {
	case _, ok := <-sub.Updates():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatalf("subscription did not end after error")
	}
}
