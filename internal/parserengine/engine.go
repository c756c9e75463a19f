package parserengine

import (
	"context"
	"fmt"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codegraphrag/codegraphrag-mcp/pkg/treesitter"
)

// Engine is the Parser Engine (spec.md §4.1): language-aware parsing
// with a content-hash LRU cache and incremental FileChange handling,
// grounded on pkg/treesitter's Parser/ASTWalker/extractor chain.
type Engine struct {
	parser *treesitter.Parser
	walker *treesitter.ASTWalker
	cache  *resultCache
}

// NewEngine creates a Parser Engine with a cache bounded to
// cacheBytes (0 uses DefaultCacheBytes).
func NewEngine(cacheBytes int64) *Engine {
	return &Engine{
		parser: treesitter.NewParser(),
		walker: treesitter.NewASTWalker(treesitter.DefaultWalkerConfig()),
		cache:  newResultCache(cacheBytes),
	}
}

// Close releases the underlying tree-sitter parsers.
func (e *Engine) Close() {
	e.parser.Close()
}

// Parse parses sourceBytes for filePath, returning a ParseResult. A
// cache hit for (filePath, contentHash) short-circuits reparsing and
// sets FromCache=true (spec.md §4.1).
func (e *Engine) Parse(ctx context.Context, filePath string, sourceBytes []byte, contentHash string) (*ParseResult, error) {
	if contentHash == "" {
		contentHash = treesitter.HashContent(sourceBytes)
	}

	if cached, ok := e.cache.get(filePath, contentHash); ok {
		hit := *cached
		hit.FromCache = true
		return &hit, nil
	}

	start := time.Now()

	lang, ok := treesitter.DetectLanguage(filePath)
	if !ok {
		result := &ParseResult{
			FilePath:    filePath,
			Language:    "unknown",
			ContentHash: contentHash,
			ParseTimeMs: time.Since(start).Milliseconds(),
			Errors: []ParseError{
				{Message: fmt.Sprintf("unsupported file extension for %s", filePath)},
			},
		}
		return result, nil
	}

	tree, err := e.parser.Parse(ctx, sourceBytes, lang)
	if err != nil {
		result := &ParseResult{
			FilePath:    filePath,
			Language:    string(lang),
			ContentHash: contentHash,
			ParseTimeMs: time.Since(start).Milliseconds(),
			Errors:      []ParseError{{Message: err.Error()}},
		}
		return result, nil
	}
	defer tree.Close()

	symbols, extractErr := e.walker.ExtractSymbols(tree, sourceBytes, lang, filePath, "")
	var parseErrors []ParseError
	if extractErr != nil {
		parseErrors = append(parseErrors, ParseError{Message: extractErr.Error()})
	}

	entities, relationships := symbolsToGraph(symbols, filePath)
	relationships = append(relationships, extractCallRelationships(tree.RootNode(), sourceBytes, lang, entities)...)

	result := &ParseResult{
		FilePath:      filePath,
		Language:      string(lang),
		ContentHash:   contentHash,
		Entities:      entities,
		Relationships: relationships,
		ParseTimeMs:   time.Since(start).Milliseconds(),
		FromCache:     false,
		Errors:        parseErrors,
	}

	e.cache.put(filePath, contentHash, result, approxResultSize(result))
	return result, nil
}

// ApplyFileChange implements spec.md §4.1's incremental contract:
// created/modified files are parsed, deleted files synthesize an
// empty ParseResult so the Indexer Agent can purge their entities.
func (e *Engine) ApplyFileChange(ctx context.Context, change FileChange) (*ParseResult, error) {
	switch change.Kind {
	case FileDeleted:
		e.cache.invalidateFile(change.FilePath)
		return &ParseResult{
			FilePath:  change.FilePath,
			FromCache: false,
		}, nil
	case FileCreated, FileModified:
		return e.Parse(ctx, change.FilePath, change.Content, "")
	default:
		return nil, fmt.Errorf("unrecognized file change kind %q", change.Kind)
	}
}

// CacheHitRate exposes the cache's observed hit rate, used to verify
// spec.md §8's warm-restart invariant in tests and diagnostics.
func (e *Engine) CacheHitRate() float64 {
	return e.cache.hitRate()
}

// ClearCache discards every cached ParseResult, forcing the next
// Parse of each file to reparse from source. Used by the clean_index
// tool alongside a Graph/Vector Store reset.
func (e *Engine) ClearCache() {
	e.cache.clear()
}

// symbolsToGraph flattens the CodeSymbol forest pkg/treesitter returns
// into spec.md's flat Entity list plus the "contains" edges implied by
// ParentID nesting — the one relationship type every language
// extractor can produce without semantic analysis (spec.md §9's
// "best-effort with empty-relationship fallback") — and "imports"
// edges from the file symbol to each import symbol.
func symbolsToGraph(symbols []*treesitter.CodeSymbol, filePath string) ([]Entity, []Relationship) {
	var entities []Entity
	var relationships []Relationship

	var walk func(sym *treesitter.CodeSymbol)
	walk = func(sym *treesitter.CodeSymbol) {
		entities = append(entities, toEntity(sym))
		if sym.ParentID != nil {
			relationships = append(relationships, Relationship{
				ID:     fmt.Sprintf("%s->%s:contains", *sym.ParentID, sym.ID),
				FromID: *sym.ParentID,
				ToID:   sym.ID,
				Type:   RelContains,
				Metadata: RelationshipMetadata{
					Line:   sym.StartLine,
					Source: filePath,
				},
			})
			if sym.SymbolType == treesitter.SymbolTypeImport {
				relationships = append(relationships, Relationship{
					ID:     fmt.Sprintf("%s->%s:imports", *sym.ParentID, sym.ID),
					FromID: *sym.ParentID,
					ToID:   sym.ID,
					Type:   RelImports,
					Metadata: RelationshipMetadata{
						Line:   sym.StartLine,
						Source: filePath,
					},
				})
			}
		}
		for _, child := range sym.Children {
			walk(child)
		}
	}

	for _, sym := range symbols {
		walk(sym)
	}

	return entities, relationships
}

func toEntity(sym *treesitter.CodeSymbol) Entity {
	metadata := map[string]any{
		"language": string(sym.Language),
	}
	if sym.Signature != "" {
		metadata["signature"] = sym.Signature
	}
	if sym.DocString != "" {
		metadata["docString"] = sym.DocString
	}
	for k, v := range sym.Metadata {
		metadata[k] = v
	}

	return Entity{
		ID:   sym.ID,
		Name: sym.Name,
		Type: string(sym.SymbolType),
		FilePath: sym.FilePath,
		Location: Span{
			Start: Location{Line: sym.StartLine, Col: sym.StartCol, Index: sym.StartByte},
			End:   Location{Line: sym.EndLine, Col: sym.EndCol, Index: sym.EndByte},
		},
		ContentHash: sym.ContentHash,
		Metadata:    metadata,
	}
}

// EntitySource slices an entity's own source text out of the file
// content it was parsed from, using the byte offsets toEntity recorded
// on Location.Start/End.Index. Returns "" if the span doesn't fit
// content (e.g. content changed since e was parsed).
func EntitySource(content []byte, e Entity) string {
	start, end := e.Location.Start.Index, e.Location.End.Index
	if start < 0 || end > len(content) || start > end {
		return ""
	}
	return string(content[start:end])
}

// callNodeTypes maps tree-sitter call-expression node types, per
// language, to the identifier field that names the callee. This is
// the generic cross-language best-effort "calls" pass spec.md §9
// permits: same-file, name-based resolution only, no type inference.
var callNodeTypes = map[treesitter.Language]string{
	treesitter.LanguageGo:         "call_expression",
	treesitter.LanguageJavaScript: "call_expression",
	treesitter.LanguageTypeScript: "call_expression",
	treesitter.LanguagePython:     "call",
}

// extractCallRelationships walks the tree for call-expression nodes
// and emits a "calls" edge from the enclosing entity to any
// same-file entity whose name matches the callee text.
func extractCallRelationships(root *sitter.Node, source []byte, lang treesitter.Language, entities []Entity) []Relationship {
	nodeType, ok := callNodeTypes[lang]
	if !ok {
		return nil
	}

	byName := make(map[string][]Entity)
	for _, e := range entities {
		if e.Type == "function" || e.Type == "method" || e.Type == "constructor" {
			byName[e.Name] = append(byName[e.Name], e)
		}
	}
	if len(byName) == 0 {
		return nil
	}

	var relationships []Relationship
	iter := treesitter.NewNodeIterator(root)
	for node := iter.Next(); node != nil; node = iter.Next() {
		if node.Type() != nodeType {
			continue
		}
		callee := calleeName(node, source)
		if callee == "" {
			continue
		}
		targets, ok := byName[callee]
		if !ok {
			continue
		}
		enclosing := enclosingEntity(node, entities)
		if enclosing == "" {
			continue
		}
		line := int(node.StartPoint().Row) + 1
		for _, target := range targets {
			if target.ID == enclosing {
				continue
			}
			relationships = append(relationships, Relationship{
				ID:     fmt.Sprintf("%s->%s:calls:%d", enclosing, target.ID, line),
				FromID: enclosing,
				ToID:   target.ID,
				Type:   RelCalls,
				Metadata: RelationshipMetadata{
					Line: line,
				},
			})
		}
	}
	return relationships
}

func calleeName(node *sitter.Node, source []byte) string {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		fn = node.ChildByFieldName("name")
	}
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case "identifier", "field_identifier":
		return fn.Content(source)
	case "selector_expression", "attribute", "field_expression", "member_expression":
		field := fn.ChildByFieldName("field")
		if field == nil {
			field = fn.ChildByFieldName("property")
		}
		if field != nil {
			return field.Content(source)
		}
	}
	return fn.Content(source)
}

// enclosingEntity returns the id of the smallest entity whose span
// contains node's start byte — a best-effort "which function is this
// call inside" lookup using the flat Entity list rather than the
// original parent-pointer tree.
func enclosingEntity(node *sitter.Node, entities []Entity) string {
	startByte := int(node.StartByte())
	best := ""
	bestSize := -1
	for _, e := range entities {
		if e.Type != "function" && e.Type != "method" && e.Type != "constructor" {
			continue
		}
		if startByte < e.Location.Start.Index || startByte > e.Location.End.Index {
			continue
		}
		size := e.Location.End.Index - e.Location.Start.Index
		if bestSize == -1 || size < bestSize {
			best = e.ID
			bestSize = size
		}
	}
	return best
}
