package retrieval

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geekydillip/Market-Pulse-AI-sub000/types"
)

type fakeService struct {
	status    int
	health    string
	results   string
	retrieves atomic.Int32
	lastQuery atomic.Value
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	switch r.URL.Path {
	case "/health":
		_, _ = w.Write([]byte(`{"status":"` + f.health + `","documents_count":2}`))
	case "/retrieve":
		f.retrieves.Add(1)
		var req retrieveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.lastQuery.Store(req)
		_, _ = w.Write([]byte(`{"success":true,"results":` + f.results + `}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, svc *fakeService) *Client {
	t.Helper()
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)
	return New(Options{URL: srv.URL + "/", K: 2, Client: srv.Client(), Logger: log.New(io.Discard)})
}

var chunkRows = []types.Row{
	{"Model No.": "SM-S921B", "Title": "Camera freezes", "Problem": ""},
	{"Title": "Battery drain"},
}

func TestEnhancePrependsRetrievedContext(t *testing.T) {
	svc := &fakeService{health: "healthy", results: `[
		{"score":0.9,"content":"Camera app hangs on launch","module":"Camera","sub_module":"General","issue_type":"Crash","sub_issue_type":"App Crash"},
		{"score":0.8,"document":"Phone drains overnight","metadata":{"module":"Battery","issue_type":"Battery"}},
		{"score":0.1,"content":"  "}
	]`}
	c := newTestClient(t, svc)

	got := c.Enhance(context.Background(), "classify these", chunkRows)

	want := "Contextual Information:\n" +
		"[Context 1]: Camera app hangs on launch | Module: Camera | Sub-Module: General | Issue Type: Crash | Sub-Issue Type: App Crash\n" +
		"[Context 2]: Phone drains overnight | Module: Battery | Sub-Module: N/A | Issue Type: Battery | Sub-Issue Type: N/A\n\n" +
		"Instructions:\nclassify these"
	assert.Equal(t, want, got)

	req, ok := svc.lastQuery.Load().(retrieveRequest)
	require.True(t, ok)
	assert.Equal(t, "SM-S921B Camera freezes Battery drain", req.Query)
	assert.Equal(t, 2, req.K)
}

func TestEnhanceFallsBackToPlainPrompt(t *testing.T) {
	cases := []struct {
		name          string
		svc           *fakeService
		wantRetrieves int32
	}{
		{"unhealthy status", &fakeService{health: "starting"}, 0},
		{"health endpoint down", &fakeService{status: http.StatusServiceUnavailable}, 0},
		{"no results", &fakeService{health: "healthy", results: `[]`}, 1},
		{"bad results", &fakeService{health: "healthy", results: `"oops"`}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, tc.svc)
			assert.Equal(t, "plain", c.Enhance(context.Background(), "plain", chunkRows))
			assert.Equal(t, tc.wantRetrieves, tc.svc.retrieves.Load())
		})
	}
}

func TestEnhanceWithUnreachableService(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Options{URL: url, Logger: log.New(io.Discard)})
	assert.Equal(t, "plain", c.Enhance(context.Background(), "plain", chunkRows))
}

func TestQuery(t *testing.T) {
	assert.Equal(t, DefaultQuery, Query(nil))
	assert.Equal(t, DefaultQuery, Query([]types.Row{{"Title": " "}}))

	long := strings.Repeat("é", maxQueryLen+10)
	assert.Equal(t, maxQueryLen, len([]rune(Query([]types.Row{{"Problem": long}}))))
}

func TestInjectWithoutPassages(t *testing.T) {
	assert.Equal(t, "p", Inject("p", Format(nil)))
}
