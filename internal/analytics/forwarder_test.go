package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"liveclass/internal/coordinator"
	"liveclass/pkg/types"
)

type memorySink struct {
	mu     sync.Mutex
	events []types.AnalyticsEvent
	err    error
	block  chan struct{}
}

func (s *memorySink) StoreAnalyticsEvent(ctx context.Context, event *types.AnalyticsEvent) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, *event)
	return nil
}

func (s *memorySink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, e := range s.events {
		ids = append(ids, e.ID)
	}
	return ids
}

func event(id string) types.AnalyticsEvent {
	return types.AnalyticsEvent{
		ID:        id,
		SessionID: "s1",
		Category:  types.CategoryEngagement,
		UserID:    "u1",
		Action:    "message",
		Timestamp: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestForwarderDeliversInOrder(t *testing.T) {
	sink := &memorySink{}
	f := NewForwarder(16, sink)
	var _ coordinator.Forwarder = f
	f.Start()

	for _, id := range []string{"a", "b", "c"} {
		f.Forward(event(id))
	}
	require.NoError(t, f.Stop(context.Background()))

	assert.Equal(t, []string{"a", "b", "c"}, sink.ids())
	assert.Equal(t, int64(3), f.Stats()["stored"])
}

func TestForwarderDropsWhenFull(t *testing.T) {
	sink := &memorySink{block: make(chan struct{})}
	f := NewForwarder(1, sink)
	f.Start()

	// the worker takes one event and blocks in the sink, one more fills the buffer
	f.Forward(event("a"))
	require.Eventually(t, func() bool { return f.Stats()["pending"] == 0 }, time.Second, 5*time.Millisecond)
	f.Forward(event("b"))

	done := make(chan struct{})
	go func() {
		f.Forward(event("c"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Forward blocked on a full buffer")
	}
	assert.Equal(t, int64(1), f.Stats()["dropped"])

	close(sink.block)
	require.NoError(t, f.Stop(context.Background()))
	assert.Equal(t, []string{"a", "b"}, sink.ids())
}

func TestForwarderSwallowsSinkErrors(t *testing.T) {
	failing := &memorySink{err: errors.New("disk full")}
	healthy := &memorySink{}
	f := NewForwarder(4, failing, healthy)
	f.Start()

	f.Forward(event("a"))
	require.NoError(t, f.Stop(context.Background()))

	assert.Empty(t, failing.ids())
	assert.Equal(t, []string{"a"}, healthy.ids())
}

func TestForwarderAfterStop(t *testing.T) {
	f := NewForwarder(4)
	f.Start()
	require.NoError(t, f.Stop(context.Background()))
	require.NoError(t, f.Stop(context.Background()))

	f.Forward(event("late"))
	assert.Equal(t, int64(1), f.Stats()["dropped"])
}

type fakeStream struct {
	args []*redis.XAddArgs
	err  error
}

func (s *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if s.err != nil {
		cmd.SetErr(s.err)
		return cmd
	}
	s.args = append(s.args, a)
	cmd.SetVal("1-0")
	return cmd
}

func TestRedisStreamSink(t *testing.T) {
	stream := &fakeStream{}
	sink := NewRedisStreamSink(stream, "")

	ev := event("01HQ")
	require.NoError(t, sink.StoreAnalyticsEvent(context.Background(), &ev))
	require.Len(t, stream.args, 1)

	args := stream.args[0]
	assert.Equal(t, DefaultStream, args.Stream)
	assert.True(t, args.Approx)
	values, ok := args.Values.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "01HQ", values["id"])
	assert.Equal(t, "engagement", values["category"])
	assert.Equal(t, ev.Timestamp.UnixMilli(), values["timestamp"])
}

func TestRedisStreamSinkError(t *testing.T) {
	sink := NewRedisStreamSink(&fakeStream{err: errors.New("connection refused")}, "custom")
	ev := event("x")
	err := sink.StoreAnalyticsEvent(context.Background(), &ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "custom")
}
