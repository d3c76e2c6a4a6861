package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geekydillip/Market-Pulse-AI-sub000/session"
)

type fakeOllama struct {
	calls   atomic.Int32
	handler func(w http.ResponseWriter, body generateRequest)
}

func (f *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	if r.URL.Path != generatePath || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.handler(w, body)
}

func newTestGateway(t *testing.T, handler func(w http.ResponseWriter, body generateRequest)) (*Gateway, *fakeOllama) {
	t.Helper()
	fake := &fakeOllama{handler: handler}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	gw := NewGateway(Options{
		Endpoint: srv.URL,
		Client:   srv.Client(),
		Logger:   log.New(io.Discard),
	})
	return gw, fake
}

func startSession(t *testing.T, reg *session.Registry, id string) *session.Session {
	t.Helper()
	s, err := reg.Start(context.Background(), id)
	require.NoError(t, err)
	return s
}

func echoHandler(w http.ResponseWriter, body generateRequest) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"model":    body.Model,
		"response": "echo:" + body.Prompt,
		"done":     true,
	})
}

func TestCallExtractsResponseField(t *testing.T) {
	gw, fake := newTestGateway(t, echoHandler)

	got, err := gw.Call(context.Background(), "hello", "gemma3:4b", CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, "echo:hello", got)
	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestCallCachesIdenticalPrompt(t *testing.T) {
	gw, fake := newTestGateway(t, echoHandler)
	ctx := context.Background()

	first, err := gw.Call(ctx, "same prompt", "m1", CallOptions{})
	require.NoError(t, err)
	second, err := gw.Call(ctx, "same prompt", "m1", CallOptions{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), fake.calls.Load())
	assert.Equal(t, int64(1), gw.Stats().CacheHits)

	// a different model is a different cache key
	_, err = gw.Call(ctx, "same prompt", "m2", CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.calls.Load())
}

func TestConcurrentIdenticalCallsShareOneRequest(t *testing.T) {
	release := make(chan struct{})
	gw, fake := newTestGateway(t, func(w http.ResponseWriter, body generateRequest) {
		<-release
		echoHandler(w, body)
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := gw.Call(context.Background(), "p", "m", CallOptions{})
			assert.NoError(t, err)
			assert.Equal(t, "echo:p", v)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestCallReturnsWholeBodyWhenFieldMissing(t *testing.T) {
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, body generateRequest) {
		_, _ = w.Write([]byte(`{"output":[1,2]}`))
	})

	got, err := gw.Call(context.Background(), "p", "m", CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"output": []any{float64(1), float64(2)}}, got)
}

func TestCallErrors(t *testing.T) {
	cases := []struct {
		name    string
		handler func(w http.ResponseWriter, body generateRequest)
		target  error
	}{
		{
			name:    "empty body",
			handler: func(w http.ResponseWriter, body generateRequest) {},
			target:  ErrEmptyResponse,
		},
		{
			name: "unparseable body",
			handler: func(w http.ResponseWriter, body generateRequest) {
				_, _ = w.Write([]byte("not json"))
			},
			target: ErrBadResponse,
		},
		{
			name: "error status",
			handler: func(w http.ResponseWriter, body generateRequest) {
				http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
			},
			target: ErrStatus,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw, fake := newTestGateway(t, tc.handler)
			_, err := gw.Call(context.Background(), "p", "m", CallOptions{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.target)

			// failures are not cached and not retried
			_, err = gw.Call(context.Background(), "p", "m", CallOptions{})
			require.Error(t, err)
			assert.Equal(t, int32(2), fake.calls.Load())
			assert.Equal(t, int64(2), gw.Stats().Failures)
		})
	}
}

func TestCallTimeout(t *testing.T) {
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, body generateRequest) {
		time.Sleep(300 * time.Millisecond)
		echoHandler(w, body)
	})

	_, err := gw.Call(context.Background(), "slow", "m", CallOptions{Timeout: 20 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallOnCancelledSessionMakesNoRequest(t *testing.T) {
	gw, fake := newTestGateway(t, echoHandler)
	reg := session.NewRegistry(time.Minute, log.New(io.Discard))
	s := startSession(t, reg, "s1")
	s.Cancel()

	_, err := gw.Call(context.Background(), "p", "m", CallOptions{Session: s})
	assert.ErrorIs(t, err, session.ErrCancelled)
	assert.Equal(t, int32(0), fake.calls.Load())
}

func TestSessionCancelAbortsInFlightCall(t *testing.T) {
	started := make(chan struct{})
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, body generateRequest) {
		close(started)
		time.Sleep(2 * time.Second)
		echoHandler(w, body)
	})
	reg := session.NewRegistry(time.Minute, log.New(io.Discard))
	s := startSession(t, reg, "s2")

	errCh := make(chan error, 1)
	go func() {
		_, err := gw.Call(context.Background(), "p", "m", CallOptions{Session: s})
		errCh <- err
	}()

	<-started
	aborted, ok := reg.Cancel("s2")
	require.True(t, ok)
	assert.Equal(t, 1, aborted)

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.ErrorIs(t, err, session.ErrCancelled)
		assert.NotErrorIs(t, err, ErrNotSent)
	case <-time.After(time.Second):
		t.Fatal("in-flight call was not aborted")
	}
}

func TestCancelledBeforeSendIsMarkedNotSent(t *testing.T) {
	gw, _ := newTestGateway(t, echoHandler)
	reg := session.NewRegistry(time.Minute, log.New(io.Discard))
	s := startSession(t, reg, "s3")
	s.Cancel()

	_, err := gw.Call(context.Background(), "q", "m", CallOptions{Session: s})
	assert.ErrorIs(t, err, ErrNotSent)

	live := startSession(t, reg, "s4")
	_, err = gw.Call(context.Background(), "q", "m", CallOptions{Session: live})
	require.NoError(t, err)
}

func TestSessionsDoNotShareInFlightRequests(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan string, 4)
	gw, fake := newTestGateway(t, func(w http.ResponseWriter, body generateRequest) {
		arrived <- body.Prompt
		<-release
		echoHandler(w, body)
	})
	reg := session.NewRegistry(time.Minute, log.New(io.Discard))
	a := startSession(t, reg, "a")
	b := startSession(t, reg, "b")

	type outcome struct {
		val any
		err error
	}
	call := func(s *session.Session) <-chan outcome {
		ch := make(chan outcome, 1)
		go func() {
			v, err := gw.Call(context.Background(), "same", "m", CallOptions{Session: s})
			ch <- outcome{v, err}
		}()
		return ch
	}
	aDone := call(a)
	<-arrived
	bDone := call(b)
	<-arrived
	assert.Equal(t, int32(2), fake.calls.Load(), "each session sends its own request")

	aborted, ok := reg.Cancel("b")
	require.True(t, ok)
	assert.Equal(t, 1, aborted)

	select {
	case out := <-bDone:
		assert.ErrorIs(t, out.err, session.ErrCancelled)
		assert.NotErrorIs(t, out.err, ErrNotSent)
	case <-time.After(time.Second):
		t.Fatal("cancelled session kept waiting")
	}
	assert.False(t, a.Cancelled())
	assert.Equal(t, 1, a.InFlight())

	close(release)
	select {
	case out := <-aDone:
		require.NoError(t, out.err)
		assert.Equal(t, "echo:same", out.val)
	case <-time.After(time.Second):
		t.Fatal("untouched session did not finish")
	}
}

func TestSharedCallerLeavesOnOwnTimeout(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan struct{}, 1)
	gw, fake := newTestGateway(t, func(w http.ResponseWriter, body generateRequest) {
		arrived <- struct{}{}
		<-release
		echoHandler(w, body)
	})
	reg := session.NewRegistry(time.Minute, log.New(io.Discard))
	s := startSession(t, reg, "shared")

	leader := make(chan error, 1)
	go func() {
		_, err := gw.Call(context.Background(), "p", "m", CallOptions{Session: s})
		leader <- err
	}()
	<-arrived

	start := time.Now()
	_, err := gw.Call(context.Background(), "p", "m", CallOptions{Session: s, Timeout: 50 * time.Millisecond})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	close(release)
	require.NoError(t, <-leader)
	assert.Equal(t, int32(1), fake.calls.Load())
}
