package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geekydillip/Market-Pulse-AI-sub000/types"
)

func drain(ch <-chan types.Progress) []types.Progress {
	var out []types.Progress
	for p := range ch {
		out = append(out, p)
	}
	return out
}

func TestPublishDropsRegression(t *testing.T) {
	h := New()
	ch, cancel := h.Subscribe("s1")
	defer cancel()

	assert.True(t, h.Publish(types.Progress{SessionId: "s1", Percent: 40}))
	assert.False(t, h.Publish(types.Progress{SessionId: "s1", Percent: 20}))
	assert.True(t, h.Publish(types.Progress{SessionId: "s1", Percent: 40}))
	assert.True(t, h.Publish(types.Progress{SessionId: "s1", Percent: 100}))
	h.Finish(types.Progress{SessionId: "s1", Percent: 100})

	got := drain(ch)
	require.Len(t, got, 4)
	last := -1
	for _, p := range got {
		assert.GreaterOrEqual(t, p.Percent, last)
		last = p.Percent
	}
	assert.True(t, got[len(got)-1].Done)
	assert.Equal(t, 100, got[len(got)-1].Percent)
}

func TestSessionsAreIsolated(t *testing.T) {
	h := New()
	a, cancelA := h.Subscribe("a")
	defer cancelA()
	b, cancelB := h.Subscribe("b")
	defer cancelB()

	h.Publish(types.Progress{SessionId: "a", Percent: 50})
	h.Finish(types.Progress{SessionId: "a", Percent: 100})

	assert.Len(t, drain(a), 2)
	select {
	case p := <-b:
		t.Fatalf("unexpected event on session b: %+v", p)
	default:
	}
}

func TestLateSubscriberGetsNoReplay(t *testing.T) {
	h := New()
	h.Publish(types.Progress{SessionId: "s", Percent: 30})

	ch, cancel := h.Subscribe("s")
	defer cancel()
	select {
	case p := <-ch:
		t.Fatalf("late subscriber received replayed event: %+v", p)
	default:
	}
}

func TestSlowSubscriberKeepsNewest(t *testing.T) {
	h := New()
	ch, cancel := h.Subscribe("s")
	for i := 0; i <= SubscriberBuffer*2; i++ {
		h.Publish(types.Progress{SessionId: "s", Percent: i})
	}
	cancel()

	got := drain(ch)
	require.Len(t, got, SubscriberBuffer)
	assert.Equal(t, SubscriberBuffer*2, got[len(got)-1].Percent)
}

func TestCancelUnsubscribes(t *testing.T) {
	h := New()
	_, cancel := h.Subscribe("s")
	assert.Equal(t, 1, h.Subscribers("s"))
	cancel()
	cancel()
	assert.Equal(t, 0, h.Subscribers("s"))
}
