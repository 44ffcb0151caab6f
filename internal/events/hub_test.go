package events

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub(t *testing.T) (*Hub, context.Context) {
	t.Helper()
	hub := NewHub(zap.NewNop().Sugar(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub, ctx
}

func TestPublishReachesSubscriber(t *testing.T) {
	hub, ctx := newTestHub(t)

	ch, cancel := hub.Subscribe(ctx)
	defer cancel()

	hub.Publish(ctx, TypeCommentCreated, map[string]string{"id": "comment_x"})

	select {
	case evt := <-ch:
		assert.Equal(t, TypeCommentCreated, evt.Type)
		assert.Equal(t, TopicComments, evt.Topic)

		var data map[string]string
		require.NoError(t, json.Unmarshal(evt.Data, &data))
		assert.Equal(t, "comment_x", data["id"])
		assert.NotZero(t, evt.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestTopicDerivation(t *testing.T) {
	assert.Equal(t, TopicPosts, topicOf(TypePostCreated))
	assert.Equal(t, TopicPosts, topicOf(TypePostDeleted))
	assert.Equal(t, TopicComments, topicOf(TypeCommentModerated))
	assert.Equal(t, TopicImages, topicOf(TypeImageUploaded))
}

func TestCancelledSubscriberStopsReceiving(t *testing.T) {
	hub, ctx := newTestHub(t)

	ch, cancel := hub.Subscribe(ctx)
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// publishing after cancel must not panic
	hub.Publish(ctx, TypePostCreated, map[string]string{"slug": "x"})
	cancel()
}

func TestSSEStreamsEvents(t *testing.T) {
	hub, ctx := newTestHub(t)
	handler := NewSSEHandler(hub)

	reqCtx, stop := context.WithCancel(ctx)
	r := httptest.NewRequest("GET", "/v1/admin/events?topics=posts", nil).WithContext(reqCtx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler.ServeHTTP(w, r)
		close(done)
	}()

	// give the handler time to subscribe before publishing
	time.Sleep(50 * time.Millisecond)
	hub.Publish(ctx, TypePostCreated, map[string]string{"slug": "hello"})
	hub.Publish(ctx, TypeCommentCreated, map[string]string{"id": "comment_y"})
	time.Sleep(50 * time.Millisecond)
	stop()
	<-done

	body := w.Body.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: "+TypePostCreated)
	assert.Contains(t, body, `"slug":"hello"`)
	// filtered out by the topics parameter
	assert.NotContains(t, body, TypeCommentCreated)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
}
