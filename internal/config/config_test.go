package config

import "testing"

func TestValidateRequiresKnownProvider(t *testing.T) {
	cfg := &Config{
		EmbeddingProvider: "not-a-real-provider",
		DatabasePath:      "./.code-graph-rag/vectors.db",
		Workspace:         ".",
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for unrecognized provider")
	}
}

func TestValidateRequiresDatabasePath(t *testing.T) {
	cfg := &Config{
		EmbeddingProvider: string(ProviderInMemoryStub),
		Workspace:         ".",
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for missing database path")
	}
}

func TestValidateRequiresWorkspace(t *testing.T) {
	cfg := &Config{
		EmbeddingProvider: string(ProviderInMemoryStub),
		DatabasePath:      "./.code-graph-rag/vectors.db",
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for missing workspace")
	}
}

func TestValidateAcceptsInMemoryStub(t *testing.T) {
	cfg := &Config{
		EmbeddingProvider: string(ProviderInMemoryStub),
		DatabasePath:      "./.code-graph-rag/vectors.db",
		Workspace:         ".",
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestResolvedDatabasePathDefaultsUnderWorkspace(t *testing.T) {
	cfg := &Config{Workspace: "/srv/myrepo"}
	want := "/srv/myrepo/.code-graph-rag/vectors.db"
	if got := cfg.ResolvedDatabasePath(); got != want {
		t.Errorf("ResolvedDatabasePath() = %q, want %q", got, want)
	}
}

func TestResolvedDatabasePathHonorsOverride(t *testing.T) {
	cfg := &Config{Workspace: "/srv/myrepo", DatabasePath: "/custom/vectors.db"}
	if got := cfg.ResolvedDatabasePath(); got != "/custom/vectors.db" {
		t.Errorf("ResolvedDatabasePath() = %q, want override preserved", got)
	}
}

func TestDefaultExcludeDirsIncludesStoreDir(t *testing.T) {
	found := false
	for _, d := range DefaultExcludeDirs() {
		if d == ".code-graph-rag" {
			found = true
		}
	}
	if !found {
		t.Error("DefaultExcludeDirs() does not exclude the store directory")
	}
}
