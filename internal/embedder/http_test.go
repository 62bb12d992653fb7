package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alvesfc/openbotx/internal/config"
)

func TestEmbed_ReturnsVectorsInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Authorization header = %q", r.Header.Get("Authorization"))
		}
		resp := embedResponse{}
		for range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
			}{Embedding: []float32{0.1, 0.2}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := New(config.EmbeddingConfig{
		BaseURL:   srv.URL,
		Path:      "/v1/embeddings",
		APIKey:    "secret",
		APIHeader: "Authorization",
	}, "test-model")

	out, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d vectors, want 2", len(out))
	}
}

func TestEmbed_EmptyInputReturnsNilWithoutRequest(t *testing.T) {
	e := New(config.EmbeddingConfig{BaseURL: "http://unused.invalid"}, "test-model")
	out, err := e.Embed(context.Background(), nil)
	if err != nil || out != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", out, err)
	}
}

func TestEmbed_NoBaseURLFailsClosed(t *testing.T) {
	e := New(config.EmbeddingConfig{}, "test-model")
	if _, err := e.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error with no base URL configured")
	}
}

func TestDim_FallsBackWhenUnconfigured(t *testing.T) {
	e := New(config.EmbeddingConfig{}, "test-model")
	if got := e.Dim(); got != 1536 {
		t.Errorf("Dim() = %d, want 1536", got)
	}
	e2 := New(config.EmbeddingConfig{Dimensions: 768}, "test-model")
	if got := e2.Dim(); got != 768 {
		t.Errorf("Dim() = %d, want 768", got)
	}
}
