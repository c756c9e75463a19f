package parserengine

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScannerScanFindsSupportedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"), "package main\n")
	writeFile(t, filepath.Join(dir, "README.md"), "# notes\n")
	writeFile(t, filepath.Join(dir, "notes.unsupportedext"), "nothing")

	vendorDir := filepath.Join(dir, "vendor")
	if err := os.MkdirAll(vendorDir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	writeFile(t, filepath.Join(vendorDir, "dep.go"), "package dep\n")

	s := NewScanner(nil, 0)
	result, err := s.Scan(dir)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if result.TotalFiles != 2 {
		t.Fatalf("TotalFiles = %d, want 2 (main.go + README.md)", result.TotalFiles)
	}

	var sawMain bool
	for _, change := range result.Changes {
		if change.FilePath == "main.go" {
			sawMain = true
			if change.Kind != FileCreated {
				t.Fatalf("scanned file Kind = %v, want FileCreated", change.Kind)
			}
		}
		if change.FilePath == filepath.Join("vendor", "dep.go") {
			t.Fatal("Scan() should have excluded the vendor directory")
		}
	}
	if !sawMain {
		t.Fatal("Scan() did not find main.go")
	}
}

func TestScannerScanSkipsOversizedFiles(t *testing.T) {
	dir := t.TempDir()
	big := make([]byte, 128)
	writeFile(t, filepath.Join(dir, "big.go"), string(big))

	s := NewScanner(nil, 16)
	result, err := s.Scan(dir)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if result.TotalFiles != 0 {
		t.Fatalf("TotalFiles = %d, want 0 for an oversized file", result.TotalFiles)
	}
	if result.SkippedReason["too_large"] != 1 {
		t.Fatalf("SkippedReason[too_large] = %d, want 1", result.SkippedReason["too_large"])
	}
}

func TestScannerShouldExcludeHiddenDirectory(t *testing.T) {
	s := NewScanner(nil, 0)
	if !s.ShouldExclude("/repo/.git", ".git", true) {
		t.Fatal("ShouldExclude() should exclude .git")
	}
	if s.ShouldExclude("/repo/.github", ".github", true) {
		t.Fatal("ShouldExclude() should allow .github through")
	}
}

func TestScannerShouldExcludeWildcardPattern(t *testing.T) {
	s := NewScanner(nil, 0)
	if !s.ShouldExclude("/repo/app.min.js", "app.min.js", false) {
		t.Fatal("ShouldExclude() should match the *.min.js wildcard pattern")
	}
}

func TestScannerMergeExcludePatternsAvoidsDuplicates(t *testing.T) {
	s := NewScanner([]string{"vendor", "custom-ignore"}, 0)

	count := 0
	for _, p := range s.ExcludePatterns {
		if p == "vendor" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("vendor pattern appears %d times, want 1 (no duplicates)", count)
	}

	var sawCustom bool
	for _, p := range s.ExcludePatterns {
		if p == "custom-ignore" {
			sawCustom = true
		}
	}
	if !sawCustom {
		t.Fatal("custom exclude pattern was not merged in")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", path, err)
	}
}
