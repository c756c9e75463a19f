package embedder

import "testing"

func TestNewGeneratorFromOptionsStub(t *testing.T) {
	gen, err := NewGeneratorFromOptions(Options{
		Provider:  ProviderInMemoryStub,
		Dimension: 64,
	})
	if err != nil {
		t.Fatalf("NewGeneratorFromOptions() error = %v", err)
	}
	if gen.Dimension() != 64 {
		t.Errorf("Dimension() = %d, want 64", gen.Dimension())
	}
}

func TestNewGeneratorFromOptionsUnrecognizedProvider(t *testing.T) {
	_, err := NewGeneratorFromOptions(Options{Provider: "not-a-provider"})
	if err == nil {
		t.Error("NewGeneratorFromOptions() error = nil, want error for unrecognized provider")
	}
}

func TestNewGeneratorFromOptionsLocalRuntimeRequiresModel(t *testing.T) {
	_, err := NewGeneratorFromOptions(Options{Provider: ProviderLocalRuntime})
	if err == nil {
		t.Error("NewGeneratorFromOptions() error = nil, want error when model is missing")
	}
}

func TestNewGeneratorFromOptionsHTTPCompatRequiresAPIKey(t *testing.T) {
	_, err := NewGeneratorFromOptions(Options{
		Provider: ProviderHTTPOpenAICompat,
		BaseURL:  "http://localhost:8080",
		Model:    "text-embedding-3-small",
	})
	if err == nil {
		t.Error("NewGeneratorFromOptions() error = nil, want error when API key is missing")
	}
}
