package parserengine

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/codegraphrag/codegraphrag-mcp/pkg/treesitter"
)

// Scanner discovers source files under a workspace root, applying the
// same exclude-pattern and size-budget rules the teacher's FileScanner
// uses, adapted to emit FileChange values the Engine can parse
// directly instead of a separate ScannedFile record.
type Scanner struct {
	// ExcludePatterns are directory/file name globs skipped during
	// scanning (see DefaultExcludePatterns).
	ExcludePatterns []string

	// MaxFileSize bounds how large a file may be before it is skipped.
	MaxFileSize int64
}

// NewScanner creates a Scanner with the exclude patterns configured
// in cfg (internal/config.DefaultExcludeDirs plus any user additions)
// merged with DefaultExcludePatterns.
func NewScanner(excludePatterns []string, maxFileSize int64) *Scanner {
	if maxFileSize <= 0 {
		maxFileSize = 2 * 1024 * 1024
	}
	s := &Scanner{
		ExcludePatterns: DefaultExcludePatterns(),
		MaxFileSize:     maxFileSize,
	}
	s.mergeExcludePatterns(excludePatterns)
	return s
}

// DefaultExcludePatterns mirrors the teacher's broad, multi-ecosystem
// exclusion list (VCS directories, dependency caches, build output,
// IDE metadata, lock files) so a first scan of an arbitrary repo
// doesn't choke on node_modules or vendor trees.
func DefaultExcludePatterns() []string {
	return []string{
		".git", ".svn", ".hg", ".bzr", "_darcs",
		"node_modules", "bower_components", "jspm_packages", ".pnpm",
		".next", ".nuxt", ".npm", ".yarn",
		"vendor",
		".venv", "venv", ".env", "env", "__pycache__", ".tox",
		".mypy_cache", ".pytest_cache", ".ruff_cache", "eggs", "*.egg-info", ".eggs",
		".bundle",
		".gradle", ".m2",
		"obj", "packages", ".nuget",
		"target",
		"Pods", "DerivedData", ".build", "*.xcworkspace",
		".dart_tool", ".pub-cache", ".pub",
		"dist", "build", "out", "bin",
		".idea", ".vscode", ".vs", ".fleet", ".eclipse", ".settings", ".project", ".classpath",
		"*.swp", "*.swo", "*~",
		".cache", ".tmp", "tmp", "temp", "coverage", ".nyc_output",
		"generated", "*.generated.*", "*.min.js", "*.min.css", "*.bundle.js",
		"__mocks__", "__fixtures__", "testdata",
		"site", "docs/_build", "_site",
		".terraform", ".vagrant",
		"*.lock", "package-lock.json", "yarn.lock", "pnpm-lock.yaml",
		"Cargo.lock", "go.sum", "Gemfile.lock", "composer.lock", "Podfile.lock", "Packages.resolved",
		".code-graph-rag",
	}
}

func (s *Scanner) mergeExcludePatterns(patterns []string) {
	existing := make(map[string]bool, len(s.ExcludePatterns))
	for _, p := range s.ExcludePatterns {
		existing[p] = true
	}
	for _, p := range patterns {
		if !existing[p] {
			s.ExcludePatterns = append(s.ExcludePatterns, p)
			existing[p] = true
		}
	}
}

// ScanResult is the outcome of a full workspace walk: one FileChange
// per discovered source file (all kind=created, for initial indexing)
// plus counters useful for progress reporting.
type ScanResult struct {
	RootPath      string
	Changes       []FileChange
	TotalFiles    int
	SkippedFiles  int
	SkippedReason map[string]int
	Errors        []error
}

// Scan walks rootPath and returns a FileChange for every supported,
// non-excluded, within-size-budget source file found.
func (s *Scanner) Scan(rootPath string) (*ScanResult, error) {
	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{
		RootPath:      absRoot,
		SkippedReason: make(map[string]int),
	}

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, err)
			return nil
		}

		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			relPath = path
		}

		if s.ShouldExclude(path, relPath, d.IsDir()) {
			result.SkippedReason["excluded"]++
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		if !treesitter.IsSupportedFile(path) {
			result.SkippedFiles++
			result.SkippedReason["unsupported_extension"]++
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			result.Errors = append(result.Errors, infoErr)
			return nil
		}
		if info.Size() > s.MaxFileSize {
			result.SkippedFiles++
			result.SkippedReason["too_large"]++
			return nil
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			result.Errors = append(result.Errors, readErr)
			return nil
		}

		result.Changes = append(result.Changes, FileChange{
			Kind:     FileCreated,
			FilePath: relPath,
			Content:  content,
		})
		result.TotalFiles++

		return nil
	})

	return result, walkErr
}

// ShouldExclude reports whether a path matches any configured exclude
// pattern, a hidden-directory convention, or a wildcard suffix glob.
func (s *Scanner) ShouldExclude(absPath, relPath string, isDir bool) bool {
	name := filepath.Base(absPath)

	for _, pattern := range s.ExcludePatterns {
		if strings.HasPrefix(pattern, "*") {
			suffix := strings.TrimPrefix(pattern, "*")
			if strings.HasSuffix(name, suffix) {
				return true
			}
			continue
		}
		if name == pattern {
			return true
		}
		for _, part := range strings.Split(relPath, string(filepath.Separator)) {
			if part == pattern {
				return true
			}
		}
	}

	if strings.HasPrefix(name, ".") && name != "." && name != ".." {
		allowedHidden := map[string]bool{".github": true, ".gitlab": true}
		if !allowedHidden[name] {
			return true
		}
	}

	return false
}

// HashFile computes the SHA-256 content hash of a file on disk,
// matching treesitter.HashContent's algorithm for an in-memory buffer.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
