package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alvesfc/openbotx/internal/config"
)

// HTTPEmbedder calls a configured OpenAI-compatible embeddings endpoint and
// satisfies memoryindex.Embedder without this package importing memoryindex,
// keeping the dependency direction one-way.
type HTTPEmbedder struct {
	cfg    config.EmbeddingConfig
	model  string
	client *http.Client
}

// New builds an HTTPEmbedder from cfg and the configured embedding model
// name. A zero-value client.Timeout falls back to cfg.TimeoutSeconds per
// call via context, so the http.Client itself stays shareable across calls
// with different ctx deadlines.
func New(cfg config.EmbeddingConfig, model string) *HTTPEmbedder {
	return &HTTPEmbedder{cfg: cfg, model: model, client: &http.Client{}}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one embedding vector per text, in order.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedder: no base URL configured")
	}

	timeout := time.Duration(e.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, e.cfg.BaseURL+e.cfg.Path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedder: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case e.cfg.APIHeader == "Authorization" && e.cfg.APIKey != "":
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	case e.cfg.APIHeader != "" && e.cfg.APIKey != "":
		req.Header.Set(e.cfg.APIHeader, e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedder: read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("embedder: endpoint returned %s: %s", resp.Status, string(respBody))
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("embedder: parse response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedder: got %d embeddings, want %d", len(parsed.Data), len(texts))
	}

	out := make([][]float32, len(parsed.Data))
	for i := range parsed.Data {
		out[i] = parsed.Data[i].Embedding
	}
	return out, nil
}

// Dim reports the configured embedding dimensionality.
func (e *HTTPEmbedder) Dim() int {
	if e.cfg.Dimensions > 0 {
		return e.cfg.Dimensions
	}
	return 1536
}
