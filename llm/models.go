package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/geekydillip/Market-Pulse-AI-sub000/types"
)

// Catalog answers questions about the Ollama server itself: installed models and
// reachability. Generation goes through Gateway.
type Catalog struct {
	client *api.Client
}

// NewCatalog creates a catalog for the Ollama server at endpoint.
func NewCatalog(endpoint string, httpClient *http.Client) (*Catalog, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	base, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", endpoint, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Catalog{client: api.NewClient(base, httpClient)}, nil
}

// Models lists the installed models sorted by name.
func (c *Catalog) Models(ctx context.Context) ([]types.ModelInfo, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	models := make([]types.ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		info := types.ModelInfo{
			Name:          m.Name,
			Size:          m.Size,
			Family:        m.Details.Family,
			ParameterSize: m.Details.ParameterSize,
		}
		if !m.ModifiedAt.IsZero() {
			info.ModifiedAt = m.ModifiedAt.Format(time.RFC3339)
		}
		models = append(models, info)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

// Reachable reports whether the Ollama server answers its heartbeat.
func (c *Catalog) Reachable(ctx context.Context) error {
	return c.client.Heartbeat(ctx)
}
