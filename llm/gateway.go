// Package llm issues generate requests to the local Ollama server.
package llm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"github.com/bytedance/sonic"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/geekydillip/Market-Pulse-AI-sub000/session"
	"github.com/geekydillip/Market-Pulse-AI-sub000/tool"
)

const (
	DefaultEndpoint      = "http://localhost:11434"
	DefaultResponseField = "response"
	DefaultCacheTTL      = time.Hour
	generatePath         = "/api/generate"
)

var (
	ErrEmptyResponse = errors.New("empty response body")
	ErrBadResponse   = errors.New("unparseable response body")
	ErrStatus        = errors.New("unexpected status")
	// ErrNotSent marks a call that ended before any request reached the server.
	ErrNotSent = errors.New("request not sent")
)

// Options configures a Gateway. Zero values select the defaults.
type Options struct {
	Endpoint          string
	ResponseField     string
	CacheTTL          time.Duration
	RequestsPerSecond int
	Client            *http.Client
	Logger            *log.Logger
}

// CallOptions are the per-call settings. Timeout <= 0 waits indefinitely; Session may be nil.
type CallOptions struct {
	Timeout time.Duration
	Session *session.Session
}

// Stats is a snapshot of the gateway counters.
type Stats struct {
	Requests      int64   `json:"requests"`
	Failures      int64   `json:"failures"`
	CacheHits     int64   `json:"cacheHits"`
	MeanLatencyMs float64 `json:"meanLatencyMs"`
}

type cachedResponse struct {
	value any
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// Gateway sends one prompt per call to Ollama's generate endpoint. Responses are
// cached by (model, prompt) for the cache TTL, and concurrent identical misses share
// a single request.
type Gateway struct {
	endpoint      string
	responseField string
	client        *http.Client
	limiter       *rate.Limiter
	logger        *log.Logger

	cache  *ttlworker.Cache[string, *cachedResponse]
	flight singleflight.Group

	requests  atomic.Int64
	failures  atomic.Int64
	cacheHits atomic.Int64
	latencyNs atomic.Int64
}

// NewGateway creates a gateway for the Ollama server at opts.Endpoint.
func NewGateway(opts Options) *Gateway {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.ResponseField == "" {
		opts.ResponseField = DefaultResponseField
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Client == nil {
		opts.Client = tool.NewHTTPClient()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	g := &Gateway{
		endpoint:      strings.TrimRight(opts.Endpoint, "/"),
		responseField: opts.ResponseField,
		client:        opts.Client,
		logger:        opts.Logger,
		cache:         ttlworker.NewCache[string, *cachedResponse](opts.CacheTTL),
	}
	if opts.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.RequestsPerSecond)
	}
	return g
}

// Endpoint returns the Ollama base URL.
func (g *Gateway) Endpoint() string {
	return g.endpoint
}

func cacheKey(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

// Call returns the response for prompt on model. A cached response is returned without
// a network call. Concurrent identical misses share one request, but only within the
// same session: a session never waits on, or is aborted by, another session's request.
// When a session is given the call fails with session.ErrCancelled if the session is
// already cancelled, and is aborted if the session is cancelled mid-flight. Each caller
// leaves on its own ctx, timeout or session cancel. Errors are not retried.
func (g *Gateway) Call(ctx context.Context, prompt, model string, opts CallOptions) (any, error) {
	key := cacheKey(model, prompt)
	if hit := g.cache.Get(key); hit != nil {
		g.cacheHits.Add(1)
		return hit.value, nil
	}

	flightKey := key
	if opts.Session != nil {
		if opts.Session.Cancelled() {
			return nil, fmt.Errorf("%w: %w", ErrNotSent, session.ErrCancelled)
		}
		flightKey = opts.Session.ID + "\x00" + key
	}

	waitCtx, stopWait := boundContext(ctx, opts.Session)
	defer stopWait()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(waitCtx, opts.Timeout)
		defer cancel()
	}

	ch := g.flight.DoChan(flightKey, func() (any, error) {
		if hit := g.cache.Get(key); hit != nil {
			return hit.value, nil
		}
		// the shared request ends with its session or its timeout, not with whichever
		// caller happened to start it
		reqCtx, stopReq := boundContext(context.WithoutCancel(ctx), opts.Session)
		defer stopReq()
		value, err := g.generate(reqCtx, prompt, model, opts)
		if err != nil {
			return nil, err
		}
		g.cache.Set(key, &cachedResponse{value: value})
		return value, nil
	})

	select {
	case r := <-ch:
		if r.Shared {
			g.logger.Debugf("[LLM] Shared in-flight response for model %s", model)
		}
		return r.Val, r.Err
	case <-waitCtx.Done():
		if opts.Session != nil && opts.Session.Cancelled() {
			// the shared request runs under this session and is ending too; its result
			// tells whether anything reached the server
			r := <-ch
			return r.Val, r.Err
		}
		return nil, g.abortErr(waitCtx, waitCtx.Err())
	}
}

// boundContext derives a context from parent that is also cancelled, with the session's
// cause, when s is cancelled. s may be nil.
func boundContext(parent context.Context, s *session.Session) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)
	if s == nil {
		return ctx, func() { cancel(nil) }
	}
	sessCtx := s.Context()
	stop := context.AfterFunc(sessCtx, func() { cancel(context.Cause(sessCtx)) })
	return ctx, func() {
		stop()
		cancel(nil)
	}
}

func (g *Gateway) generate(ctx context.Context, prompt, model string, opts CallOptions) (any, error) {
	if opts.Session != nil {
		release, err := opts.Session.Begin()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotSent, err)
		}
		defer release()
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, g.abortErr(ctx, err)
		}
	}

	body, err := sonic.Marshal(&generateRequest{Model: model, Prompt: prompt, Stream: false})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+generatePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	g.requests.Add(1)
	value, err := g.do(req)
	g.latencyNs.Add(int64(time.Since(start)))
	if err != nil {
		g.failures.Add(1)
		err = g.abortErr(ctx, err)
		g.logger.Warnf("[LLM] Request to %s failed after %s: %v", model, time.Since(start).Round(time.Millisecond), err)
		return nil, err
	}
	g.logger.Debugf("[LLM] %s answered in %s", model, time.Since(start).Round(time.Millisecond))
	return value, nil
}

func (g *Gateway) do(req *http.Request) (any, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			g.logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg := strings.TrimSpace(string(data))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, fmt.Errorf("%w %d from ollama: %s", ErrStatus, resp.StatusCode, msg)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyResponse
	}
	return g.extract(data)
}

// extract returns the designated response field, or the whole parsed body when the
// field is absent.
func (g *Gateway) extract(data []byte) (any, error) {
	var parsed any
	if err := sonic.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if obj, ok := parsed.(map[string]any); ok {
		if v, ok := obj[g.responseField]; ok {
			return v, nil
		}
	}
	return parsed, nil
}

// abortErr names the reason when err was caused by the context ending.
func (g *Gateway) abortErr(ctx context.Context, err error) error {
	if ctx.Err() == nil {
		return err
	}
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, session.ErrCancelled):
		return fmt.Errorf("request aborted: %w", session.ErrCancelled)
	case errors.Is(cause, context.DeadlineExceeded):
		return fmt.Errorf("request timed out: %w", context.DeadlineExceeded)
	default:
		return fmt.Errorf("request aborted: %w", cause)
	}
}

// Stats returns the current counters.
func (g *Gateway) Stats() Stats {
	s := Stats{
		Requests:  g.requests.Load(),
		Failures:  g.failures.Load(),
		CacheHits: g.cacheHits.Load(),
	}
	if s.Requests > 0 {
		s.MeanLatencyMs = float64(g.latencyNs.Load()) / float64(s.Requests) / float64(time.Millisecond)
	}
	return s
}
