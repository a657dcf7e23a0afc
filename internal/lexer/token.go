// Package lexer turns raw mdml text into a flat, ordered token sequence, one
// token per physical line. Lexing never fails: a line that matches no rule
// degrades to a free-text token instead of erroring.
package lexer

import "mdml/internal/ast"

// Kind classifies a token. The parser switches exhaustively on this set.
type Kind int

const (
	KindBlank Kind = iota
	KindFreeText
	KindNamespace
	KindModelDecl
	KindEnumDecl
	KindInterfaceDecl
	KindViewDecl
	KindAttributeDecl
	KindSectionHeader
	KindKindSection
	KindFieldLine
	KindNestedItem
	KindBlockquote
	KindHorizontalRule
)

var kindNames = map[Kind]string{
	KindBlank:          "blank",
	KindFreeText:       "free-text",
	KindNamespace:      "namespace",
	KindModelDecl:      "model-decl",
	KindEnumDecl:       "enum-decl",
	KindInterfaceDecl:  "interface-decl",
	KindViewDecl:       "view-decl",
	KindAttributeDecl:  "attribute-decl",
	KindSectionHeader:  "section-header",
	KindKindSection:    "kind-section",
	KindFieldLine:      "field-line",
	KindNestedItem:     "nested-item",
	KindBlockquote:     "blockquote",
	KindHorizontalRule: "horizontal-rule",
}

func (k Kind) String() string { return kindNames[k] }

// Token is one classified source line. Tokens are immutable once produced.
// Exactly one of Header/Field is set for the kinds that carry one; Text holds
// the payload of blockquote and free-text lines.
type Token struct {
	Kind   Kind
	Raw    string
	File   string
	Line   int // 1-based
	Indent int // nesting units (2 spaces or 1 tab each)

	Header *HeaderInfo
	Field  *FieldLine
	Text   string
}

// Loc returns the token's source location for diagnostics.
func (t Token) Loc() ast.Location {
	return ast.Location{File: t.File, Line: t.Line}
}

// HeaderInfo is the parsed content of a heading line.
type HeaderInfo struct {
	Depth    int
	Name     string
	Label    string
	Inherits []string
	KindWord string // set for kind-section tokens: "lookup", "rollup" or "computed"
}

// FieldLine is the positional sub-parse of a list-item line. ValueRaw keeps
// the unprocessed remainder after the first colon; section and detail
// contexts read it instead of the typed breakdown.
type FieldLine struct {
	Name              string
	Label             string
	Type              string
	TypeParams        []string
	Nullable          bool
	Array             bool
	ArrayItemNullable bool
	Default           string
	Attributes        []ast.Attribute
	Framework         []ast.FrameworkAttribute
	Description       string
	Comment           string
	ValueRaw          string
	Directive         bool // line began with @name rather than a field name
}
