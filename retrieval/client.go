// Package retrieval prepends passages from a similar-issues search service to LLM prompts.
package retrieval

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/log"

	"github.com/geekydillip/Market-Pulse-AI-sub000/tool"
	"github.com/geekydillip/Market-Pulse-AI-sub000/types"
)

const (
	DefaultK           = 3
	DefaultQuery       = "general device issues"
	healthTimeout      = 5 * time.Second
	retrieveTimeout    = 30 * time.Second
	maxQueryLen        = 500
	healthyStatus      = "healthy"
	contextHeader      = "Contextual Information:"
	instructionsHeader = "Instructions:"
)

// queryColumns are read, in order, to describe a chunk to the search service.
var queryColumns = []string{"Model No.", "Title", "Problem", "Content"}

// Passage is one search hit. The service may return labels at the top level or
// under metadata; both are read.
type Passage struct {
	Score        float64        `json:"score"`
	Content      string         `json:"content"`
	Document     string         `json:"document"`
	Module       string         `json:"module"`
	SubModule    string         `json:"sub_module"`
	IssueType    string         `json:"issue_type"`
	SubIssueType string         `json:"sub_issue_type"`
	Metadata     map[string]any `json:"metadata"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type retrieveRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type retrieveResponse struct {
	Results []Passage `json:"results"`
}

type Options struct {
	URL    string
	K      int
	Client *http.Client
	Logger *log.Logger
}

// Client talks to the search service's /health and /retrieve routes.
type Client struct {
	baseURL string
	k       int
	client  *http.Client
	logger  *log.Logger
}

func New(opts Options) *Client {
	if opts.K <= 0 {
		opts.K = DefaultK
	}
	if opts.Client == nil {
		opts.Client = tool.NewHTTPClient()
	}
	if opts.Logger == nil {
		opts.Logger = tool.DefaultLogger
	}
	return &Client{
		baseURL: strings.TrimRight(opts.URL, "/"),
		k:       opts.K,
		client:  opts.Client,
		logger:  opts.Logger,
	}
}

// Healthy reports whether the service answers /health with status "healthy".
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	var health healthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		c.logger.Warnf("[Retrieval] Health check failed: %v", err)
		return false
	}
	return health.Status == healthyStatus
}

// Retrieve returns up to k passages similar to query.
func (c *Client) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	ctx, cancel := context.WithTimeout(ctx, retrieveTimeout)
	defer cancel()
	var resp retrieveResponse
	if err := c.do(ctx, http.MethodPost, "/retrieve", &retrieveRequest{Query: query, K: k}, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Enhance prepends retrieved passages to prompt. Any failure, an unhealthy service or
// an empty result leaves the prompt unchanged.
func (c *Client) Enhance(ctx context.Context, prompt string, rows []types.Row) string {
	if !c.Healthy(ctx) {
		c.logger.Warnf("[Retrieval] Service at %s is not healthy, using the plain prompt", c.baseURL)
		return prompt
	}
	passages, err := c.Retrieve(ctx, Query(rows), c.k)
	if err != nil {
		c.logger.Errorf("[Retrieval] Failed to retrieve context: %v", err)
		return prompt
	}
	return Inject(prompt, Format(passages))
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := sonic.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Errorf("Failed to close response body: %v", err)
		}
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// Query describes rows for the search service from their model and problem text.
func Query(rows []types.Row) string {
	var parts []string
	for _, row := range rows {
		for _, col := range queryColumns {
			if v, _ := row[col].(string); strings.TrimSpace(v) != "" {
				parts = append(parts, strings.TrimSpace(v))
			}
		}
	}
	q := strings.Join(parts, " ")
	if q == "" {
		return DefaultQuery
	}
	if r := []rune(q); len(r) > maxQueryLen {
		q = string(r[:maxQueryLen])
	}
	return q
}

// Format renders passages as numbered context lines with their classification labels.
func Format(passages []Passage) string {
	lines := make([]string, 0, len(passages))
	for _, p := range passages {
		content := strings.TrimSpace(p.Content)
		if content == "" {
			content = strings.TrimSpace(p.Document)
		}
		if content == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[Context %d]: %s | Module: %s | Sub-Module: %s | Issue Type: %s | Sub-Issue Type: %s",
			len(lines)+1, content,
			p.label(p.Module, "module"), p.label(p.SubModule, "sub_module"),
			p.label(p.IssueType, "issue_type"), p.label(p.SubIssueType, "sub_issue_type")))
	}
	return strings.Join(lines, "\n")
}

func (p Passage) label(top, key string) string {
	if top != "" {
		return top
	}
	if v, ok := p.Metadata[key].(string); ok && v != "" {
		return v
	}
	return "N/A"
}

// Inject puts the formatted passages ahead of prompt. Empty passages return prompt as is.
func Inject(prompt, passages string) string {
	if passages == "" {
		return prompt
	}
	return contextHeader + "\n" + passages + "\n\n" + instructionsHeader + "\n" + prompt
}
