// Package treesitter provides tree-sitter based parsing and AST extraction for code indexing.
package treesitter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SymbolType represents the type of a code symbol, corresponding to the
// Entity.Type values in the closed set the Graph Store accepts.
type SymbolType string

const (
	SymbolTypeFile        SymbolType = "file"
	SymbolTypeClass       SymbolType = "class"
	SymbolTypeStruct      SymbolType = "struct"
	SymbolTypeInterface   SymbolType = "interface"
	SymbolTypeTrait       SymbolType = "trait"
	SymbolTypeMethod      SymbolType = "method"
	SymbolTypeFunction    SymbolType = "function"
	SymbolTypeConstructor SymbolType = "constructor"
	SymbolTypeProperty    SymbolType = "property"
	SymbolTypeField       SymbolType = "field"
	SymbolTypeVariable    SymbolType = "variable"
	SymbolTypeConstant    SymbolType = "constant"
	SymbolTypeEnum        SymbolType = "enum"
	SymbolTypeEnumMember  SymbolType = "enum_member"
	SymbolTypeTypeAlias   SymbolType = "type_alias"
	SymbolTypeNamespace   SymbolType = "namespace"
	SymbolTypeModule      SymbolType = "module"
	SymbolTypePackage     SymbolType = "package"
	SymbolTypeImport      SymbolType = "import"
)

// Language represents a supported programming language.
type Language string

const (
	LanguageGo         Language = "go"
	LanguageTypeScript Language = "typescript"
	LanguageJavaScript Language = "javascript"
	LanguagePHP        Language = "php"
	LanguageRust       Language = "rust"
	LanguageJava       Language = "java"
	LanguageKotlin     Language = "kotlin"
	LanguageSwift      Language = "swift"
	LanguageObjectiveC Language = "objc"
	LanguageC          Language = "c"
	LanguageCPP        Language = "cpp"
	LanguagePython     Language = "python"
	LanguageRuby       Language = "ruby"
	LanguageCSharp     Language = "csharp"
	LanguageLua        Language = "lua"
	LanguageMarkdown   Language = "markdown"
	LanguageTOML       Language = "toml"
	LanguageSvelte     Language = "svelte"
	LanguageVue        Language = "vue"
	LanguageUnknown    Language = "unknown"
)

// CodeSymbol is a parsed code symbol, the Parser Engine's working
// representation of an Entity before it is handed to the graph store.
type CodeSymbol struct {
	ID         string     `json:"id"`
	FilePath   string     `json:"file_path"`
	Language   Language   `json:"language"`
	SymbolType SymbolType `json:"symbol_type"`
	Name       string     `json:"name"`
	NamePath   string      `json:"name_path"`

	StartLine, EndLine int
	StartCol, EndCol   int
	StartByte, EndByte int

	SourceCode string `json:"source_code,omitempty"`
	Signature  string `json:"signature,omitempty"`
	DocString  string `json:"doc_string,omitempty"`

	ContentHash string `json:"content_hash"`

	ParentID *string                `json:"parent_id,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Children []*CodeSymbol `json:"children,omitempty"`
}

// ParseError represents a non-fatal parsing error attached to a ParseResult.
type ParseError struct {
	Message string `json:"message"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
}

// EntityID computes the stable, content-free identifier spec.md mandates:
// "<file>:<kind>:<qualifiedName>". namePath already carries the leading
// slash from BuildNamePath, so it reads naturally as a qualified name.
func EntityID(filePath string, kind SymbolType, namePath string) string {
	return fmt.Sprintf("%s:%s:%s", filePath, kind, namePath)
}

// HashContent returns the hex-encoded SHA-256 of a byte range, used both
// for the per-file content hash and the per-entity ContentHash.
func HashContent(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
