package embedder

import (
	"fmt"
	"time"
)

// Provider enumerates the recognized embedding provider kinds
// (spec.md §4.3).
type Provider string

const (
	ProviderLocalRuntime     Provider = "local-runtime"
	ProviderHTTPOpenAICompat Provider = "http-remote-openai-compatible"
	ProviderHTTPVendor       Provider = "http-remote-vendor"
	ProviderInMemoryStub     Provider = "in-memory-stub"
)

// Options mirrors the recognized configuration fields spec.md §4.3
// lists for embedding providers. It is a plain struct (not
// internal/config.Config) so this package stays dependency-free of
// the config layer, matching the teacher's factory.go decoupling.
type Options struct {
	Provider      Provider
	BaseURL       string
	APIKey        string
	TimeoutMs     int
	Concurrency   int
	MaxBatchSize  int
	Headers       map[string]string
	AutoPull      bool
	WarmupText    string
	CheckServer   bool
	PullTimeoutMs int
	Quantized     bool
	LocalPath     string
	Dimension     int
	Model         string
}

// NewGeneratorFromOptions builds a Generator wrapping the Embedder
// selected by opts.Provider.
func NewGeneratorFromOptions(opts Options) (*Generator, error) {
	e, err := newEmbedderFromOptions(opts)
	if err != nil {
		return nil, err
	}
	return NewGenerator(e, opts.MaxBatchSize, opts.Concurrency), nil
}

func newEmbedderFromOptions(opts Options) (Embedder, error) {
	switch opts.Provider {
	case ProviderLocalRuntime:
		url := opts.BaseURL
		if url == "" {
			url = "http://localhost:11434"
		}
		model := opts.Model
		if model == "" {
			return nil, fmt.Errorf("local-runtime provider requires a model name")
		}
		return NewOllamaEmbedder(url, model, opts.Dimension)

	case ProviderHTTPOpenAICompat:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("http-remote-openai-compatible provider requires an API key")
		}
		if opts.BaseURL == "" {
			return nil, fmt.Errorf("http-remote-openai-compatible provider requires a base URL")
		}
		timeout := time.Duration(opts.TimeoutMs) * time.Millisecond
		return NewOpenAICompatEmbedder(opts.APIKey, opts.BaseURL, opts.Model, timeout, opts.Headers, opts.Dimension)

	case ProviderHTTPVendor:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("http-remote-vendor provider requires an API key")
		}
		timeout := time.Duration(opts.TimeoutMs) * time.Millisecond
		return NewOpenAICompatEmbedder(opts.APIKey, opts.BaseURL, opts.Model, timeout, opts.Headers, opts.Dimension)

	case ProviderInMemoryStub:
		return NewStubEmbedder(opts.Dimension), nil

	default:
		return nil, fmt.Errorf("unrecognized embedding provider %q", opts.Provider)
	}
}
