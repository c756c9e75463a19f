package embedder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openaisdk "github.com/sashabaranov/go-openai"
)

// OpenAICompatEmbedder backs the "http-remote-openai-compatible" and
// "http-remote-vendor" embedding providers (spec.md §4.3). The two
// only differ in whether baseURL points at a third-party server or
// OpenAI's own endpoint; both speak the same embeddings wire format.
type OpenAICompatEmbedder struct {
	client    *openaisdk.Client
	model     string
	dimension int
}

// NewOpenAICompatEmbedder creates a provider-compatible HTTP embedder.
// baseURL may be empty to use OpenAI's default endpoint (the "vendor"
// variant); a non-empty baseURL selects the "compatible" variant
// (e.g. a self-hosted OpenAI-compatible embeddings server).
func NewOpenAICompatEmbedder(apiKey, baseURL, model string, timeout time.Duration, headers map[string]string, dimension int) (*OpenAICompatEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	cfg := openaisdk.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if len(headers) > 0 {
		cfg.HTTPClient = &http.Client{
			Transport: &headerInjectingTransport{base: http.DefaultTransport, headers: headers},
		}
	}
	if timeout > 0 {
		if cfg.HTTPClient == nil {
			cfg.HTTPClient = &http.Client{}
		}
		cfg.HTTPClient.Timeout = timeout
	}

	if dimension <= 0 {
		dimension = dimensionForOpenAIModel(model)
	}

	return &OpenAICompatEmbedder{
		client:    openaisdk.NewClientWithConfig(cfg),
		model:     model,
		dimension: dimension,
	}, nil
}

// EmbedDocuments embeds a batch of texts.
func (o *OpenAICompatEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := o.client.CreateEmbeddings(ctx, openaisdk.EmbeddingRequestStrings{
		Input: texts,
		Model: openaisdk.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed documents: %w", err)
	}

	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// EmbedQuery embeds a single query text.
func (o *OpenAICompatEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("openai embed query: empty response")
	}
	return vectors[0], nil
}

// Dimension returns the vector dimensionality.
func (o *OpenAICompatEmbedder) Dimension() int {
	return o.dimension
}

func dimensionForOpenAIModel(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small":
		return 1536
	case "text-embedding-ada-002":
		return 1536
	default:
		return 1536
	}
}

// headerInjectingTransport adds fixed headers to every outbound
// request, for providers that need a vendor-specific auth header
// alongside (or instead of) the bearer token.
type headerInjectingTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}
	return t.base.RoundTrip(clone)
}
