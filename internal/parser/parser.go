// Package parser consumes one file's token sequence and produces the
// single-file document model, before any cross-file knowledge is applied.
// The parser raises no hard errors: malformed constructs degrade to a
// best-effort structural placement and the resolver/validator stages are the
// single diagnostic channel.
package parser

import (
	"strconv"
	"strings"

	"mdml/internal/ast"
	"mdml/internal/lexer"
)

// recognizedSections maps section-header names (lowercased) to their
// canonical routing key. Anything else goes to the extension bucket.
var recognizedSections = map[string]string{
	"indexes":   "indexes",
	"relations": "relations",
	"metadata":  "metadata",
	"behaviors": "behaviors",
	"source":    "source",
	"refresh":   "refresh",
}

// sourceKeys are the directive keys recognized inside a view's source section.
var sourceKeys = map[string]bool{
	"from":     true,
	"join":     true,
	"where":    true,
	"order_by": true,
	"group_by": true,
}

// Parse runs the single-pass state machine over one file's tokens.
func Parse(tokens []lexer.Token, fileID string) *ast.ParsedFile {
	s := &state{file: &ast.ParsedFile{FileID: fileID}}
	for i := range tokens {
		s.feed(&tokens[i])
	}
	s.closeDecl()
	return s.file
}

// nestLevel tracks a structural parent and the indent at which its children
// appear, so nested object fields re-enter field parsing recursively.
type nestLevel struct {
	field  *ast.FieldNode
	indent int
}

// state is the parser's explicit scan state: the open declaration, the
// current section, and the current field-kind context. It is threaded
// through feed so files can be parsed concurrently without interference.
type state struct {
	file *ast.ParsedFile

	model *ast.ModelNode
	enum  *ast.EnumNode
	reg   *ast.RegistryEntry

	section    string // canonical section key, or "" outside any section
	sectionExt string // literal name when section == "extension"
	kind       ast.FieldKind

	lastField  *ast.FieldNode
	lastRecord *ast.SectionRecord
	nest       []nestLevel
}

func (s *state) feed(tok *lexer.Token) {
	switch tok.Kind {
	case lexer.KindBlank, lexer.KindHorizontalRule, lexer.KindFreeText:
		// Structure-neutral lines. Kind context deliberately survives them.

	case lexer.KindNamespace:
		if s.file.Namespace == "" && tok.Header != nil {
			s.file.Namespace = tok.Header.Name
		}

	case lexer.KindModelDecl:
		s.openModel(tok, ast.NodeModel)
	case lexer.KindInterfaceDecl:
		s.openModel(tok, ast.NodeInterface)
	case lexer.KindViewDecl:
		s.openModel(tok, ast.NodeView)
	case lexer.KindEnumDecl:
		s.openEnum(tok)
	case lexer.KindAttributeDecl:
		s.openRegistry(tok)

	case lexer.KindSectionHeader:
		s.enterSection(tok)

	case lexer.KindKindSection:
		s.section, s.sectionExt = "", ""
		s.lastRecord = nil
		switch tok.Header.KindWord {
		case "lookup":
			s.kind = ast.KindLookup
		case "rollup":
			s.kind = ast.KindRollup
		case "computed":
			s.kind = ast.KindComputed
		}

	case lexer.KindFieldLine:
		s.fieldLine(tok)

	case lexer.KindNestedItem:
		s.nestedItem(tok)

	case lexer.KindBlockquote:
		s.blockquote(tok.Text)
	}
}

func (s *state) closeDecl() {
	switch {
	case s.model != nil:
		switch s.model.Type {
		case ast.NodeInterface:
			s.file.Interfaces = append(s.file.Interfaces, s.model)
		case ast.NodeView:
			s.file.Views = append(s.file.Views, s.model)
		default:
			s.file.Models = append(s.file.Models, s.model)
		}
	case s.enum != nil:
		s.file.Enums = append(s.file.Enums, s.enum)
	case s.reg != nil:
		s.file.Registry = append(s.file.Registry, s.reg)
	}
	s.model, s.enum, s.reg = nil, nil, nil
	s.section, s.sectionExt = "", ""
	s.kind = ast.KindStored
	s.lastField, s.lastRecord = nil, nil
	s.nest = nil
}

func (s *state) openModel(tok *lexer.Token, nt ast.NodeType) {
	s.closeDecl()
	h := tok.Header
	s.model = &ast.ModelNode{
		Name:     h.Name,
		Label:    h.Label,
		Type:     nt,
		Inherits: h.Inherits,
		Loc:      tok.Loc(),
	}
}

func (s *state) openEnum(tok *lexer.Token) {
	s.closeDecl()
	h := tok.Header
	e := &ast.EnumNode{Name: h.Name, Loc: tok.Loc()}
	if len(h.Inherits) > 0 {
		e.Inherits = h.Inherits[0]
	}
	s.enum = e
}

func (s *state) openRegistry(tok *lexer.Token) {
	s.closeDecl()
	s.reg = &ast.RegistryEntry{Name: tok.Header.Name, Loc: tok.Loc()}
}

func (s *state) enterSection(tok *lexer.Token) {
	name := tok.Header.Name
	s.lastRecord = nil
	s.nest = nil
	if canonical, ok := recognizedSections[strings.ToLower(name)]; ok {
		s.section, s.sectionExt = canonical, ""
		return
	}
	s.section, s.sectionExt = "extension", name
}

// fieldLine dispatches a top-level list item by the open declaration and
// section context.
func (s *state) fieldLine(tok *lexer.Token) {
	fl := tok.Field
	switch {
	case s.enum != nil:
		s.enum.Entries = append(s.enum.Entries, enumEntry(fl, tok.Loc()))

	case s.reg != nil:
		s.registryDetail(fl)

	case s.model == nil:
		// Free-floating list item outside any declaration; nothing owns it.

	case fl.Directive:
		s.directive(fl, tok.Loc())

	case s.section == "metadata":
		if s.model.Sections.Metadata == nil {
			s.model.Sections.Metadata = map[string]string{}
		}
		s.model.Sections.Metadata[fl.Name] = fl.ValueRaw

	case s.section == "source":
		if sourceKeys[fl.Name] {
			s.sourceDirective(fl)
			return
		}
		// Unrecognized keys in a source section are the view's projected
		// fields.
		s.appendField(tok)

	case s.section == "refresh":
		if fl.ValueRaw != "" {
			s.model.Sections.Refresh = fl.ValueRaw
		} else {
			s.model.Sections.Refresh = fl.Name
		}

	case s.section == "indexes" || s.section == "relations" || s.section == "behaviors":
		rec := ast.SectionRecord{Name: fl.Name, Loc: tok.Loc()}
		if fl.ValueRaw != "" {
			rec.Details = append(rec.Details, ast.KeyValue{Key: "value", Value: fl.ValueRaw})
		}
		s.appendRecord(s.section, rec)

	case s.section == "extension":
		rec := ast.SectionRecord{Name: fl.Name, Loc: tok.Loc()}
		if fl.ValueRaw != "" {
			rec.Details = append(rec.Details, ast.KeyValue{Key: "value", Value: fl.ValueRaw})
		}
		s.appendExtension(s.sectionExt, rec)

	default:
		s.appendField(tok)
	}
}

func (s *state) appendField(tok *lexer.Token) {
	f := buildField(tok.Field, tok.Loc(), s.kind)
	f.RawLen = len(tok.Raw)
	s.model.Fields = append(s.model.Fields, f)
	s.lastField = f
	s.nest = []nestLevel{{field: f, indent: tok.Indent + 1}}
}

func (s *state) appendRecord(section string, rec ast.SectionRecord) {
	var bucket *[]ast.SectionRecord
	switch section {
	case "indexes":
		bucket = &s.model.Sections.Indexes
	case "relations":
		bucket = &s.model.Sections.Relations
	case "behaviors":
		bucket = &s.model.Sections.Behaviors
	default:
		return
	}
	*bucket = append(*bucket, rec)
	s.lastRecord = &(*bucket)[len(*bucket)-1]
}

func (s *state) appendExtension(name string, rec ast.SectionRecord) {
	if s.model.Sections.Extensions == nil {
		s.model.Sections.Extensions = map[string][]ast.SectionRecord{}
	}
	s.model.Sections.Extensions[name] = append(s.model.Sections.Extensions[name], rec)
	recs := s.model.Sections.Extensions[name]
	s.lastRecord = &recs[len(recs)-1]
}

// directive routes a @name(...) line without a field name into the section
// bucket matching its name instead of the field list.
func (s *state) directive(fl *lexer.FieldLine, loc ast.Location) {
	if len(fl.Attributes) == 0 {
		return
	}
	attr := fl.Attributes[0]
	rec := ast.SectionRecord{Name: attr.Arg(0), Loc: loc}
	if len(attr.Args) > 0 {
		rec.Details = append(rec.Details, ast.KeyValue{Key: "fields", Value: strings.Join(attr.Args, ", ")})
	}
	switch attr.Name {
	case "index":
		s.appendRecord("indexes", rec)
	case "unique":
		rec.Unique = true
		s.appendRecord("indexes", rec)
	case "relation":
		s.appendRecord("relations", rec)
	case "behavior":
		s.appendRecord("behaviors", rec)
	default:
		s.appendExtension(attr.Name, rec)
	}
}

func (s *state) sourceDirective(fl *lexer.FieldLine) {
	if s.model.Sections.Source == nil {
		s.model.Sections.Source = &ast.SourceDef{}
	}
	src := s.model.Sections.Source
	switch fl.Name {
	case "from":
		src.From = fl.ValueRaw
	case "join":
		src.Joins = append(src.Joins, fl.ValueRaw)
	case "where":
		src.Where = fl.ValueRaw
	case "order_by":
		src.OrderBy = fl.ValueRaw
	case "group_by":
		src.GroupBy = fl.ValueRaw
	}
}

// nestedItem dispatches an indented list item based on what precedes it:
// inline enum value, structural sub-field, section detail, or an extended
// attribute merged into the prior field.
func (s *state) nestedItem(tok *lexer.Token) {
	fl := tok.Field

	if s.reg != nil {
		s.registryDetail(fl)
		return
	}
	if s.enum != nil {
		if n := len(s.enum.Entries); n > 0 && fl.Name == "description" {
			s.enum.Entries[n-1].Description = fl.ValueRaw
		}
		return
	}
	if s.model == nil {
		return
	}

	if s.section != "" && s.section != "source" {
		s.sectionDetail(fl)
		return
	}
	if s.section == "source" && sourceKeys[fl.Name] {
		s.sourceDirective(fl)
		return
	}

	// Pop structural levels deeper than this item.
	for len(s.nest) > 0 && tok.Indent < s.nest[len(s.nest)-1].indent {
		s.nest = s.nest[:len(s.nest)-1]
	}
	if len(s.nest) == 0 {
		return
	}
	parent := s.nest[len(s.nest)-1].field

	switch {
	case parent.Type == "enum":
		parent.Enum = append(parent.Enum, enumEntry(fl, tok.Loc()))

	case isStructural(parent):
		sub := buildField(fl, tok.Loc(), ast.KindStored)
		sub.RawLen = len(tok.Raw)
		parent.Fields = append(parent.Fields, sub)
		s.nest = append(s.nest, nestLevel{field: sub, indent: tok.Indent + 1})

	default:
		extendedAttribute(parent, fl)
	}
}

// sectionDetail attaches a nested key:value line to the most recent section
// record. In an indexes section a "unique: true" detail flips the record's
// uniqueness flag instead of being stored verbatim.
func (s *state) sectionDetail(fl *lexer.FieldLine) {
	if s.section == "metadata" {
		if s.model.Sections.Metadata == nil {
			s.model.Sections.Metadata = map[string]string{}
		}
		s.model.Sections.Metadata[fl.Name] = fl.ValueRaw
		return
	}
	if s.section == "refresh" {
		if fl.ValueRaw != "" {
			s.model.Sections.Refresh = fl.ValueRaw
		}
		return
	}
	if s.lastRecord == nil {
		return
	}
	if s.section == "indexes" && fl.Name == "unique" {
		s.lastRecord.Unique = fl.ValueRaw == "true"
		return
	}
	s.lastRecord.Details = append(s.lastRecord.Details, ast.KeyValue{Key: fl.Name, Value: fl.ValueRaw})
}

// extendedAttribute merges a standalone key line into the prior field:
// description and default set the field directly, everything else becomes an
// attribute carrying the value as its argument.
func extendedAttribute(f *ast.FieldNode, fl *lexer.FieldLine) {
	switch fl.Name {
	case "description":
		if f.Description != "" {
			f.Description += "\n" + fl.ValueRaw
		} else {
			f.Description = fl.ValueRaw
		}
	case "default":
		f.Default = fl.ValueRaw
	default:
		attr := ast.Attribute{Name: fl.Name}
		if fl.ValueRaw != "" {
			attr.Args = []string{fl.ValueRaw}
		}
		f.Attributes = append(f.Attributes, attr)
	}
}

func (s *state) registryDetail(fl *lexer.FieldLine) {
	r := s.reg
	switch fl.Name {
	case "targets":
		for _, t := range strings.Split(fl.ValueRaw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				r.Targets = append(r.Targets, t)
			}
		}
	case "type":
		r.ValueType = fl.ValueRaw
	case "range":
		if rng := parseRange(fl.ValueRaw); rng != nil {
			r.Range = rng
		}
	case "default":
		r.Default = fl.ValueRaw
	case "required":
		r.Required = fl.ValueRaw == "true"
	case "description":
		r.Description = fl.ValueRaw
	}
}

// parseRange parses "min..max" into a numeric range.
func parseRange(s string) *ast.NumericRange {
	lo, hi, ok := strings.Cut(s, "..")
	if !ok {
		return nil
	}
	min, err1 := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	max, err2 := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err1 != nil || err2 != nil {
		return nil
	}
	return &ast.NumericRange{Min: min, Max: max}
}

func (s *state) blockquote(text string) {
	switch {
	case s.model != nil:
		if s.lastField != nil {
			appendLine(&s.lastField.Description, text)
		} else {
			appendLine(&s.model.Description, text)
		}
	case s.enum != nil:
		if n := len(s.enum.Entries); n > 0 {
			appendLine(&s.enum.Entries[n-1].Description, text)
		}
	case s.reg != nil:
		appendLine(&s.reg.Description, text)
	}
}

func appendLine(dst *string, line string) {
	if *dst == "" {
		*dst = line
		return
	}
	*dst += "\n" + line
}

func isStructural(f *ast.FieldNode) bool {
	return f.Type == "object"
}

// buildField converts a lexed field line into a FieldNode, tagging the kind
// from the surrounding kind-section context and deriving lookup/rollup/
// computed definitions from their attributes. A field under a derived-kind
// context with no matching attribute keeps the kind tag and a nil
// definition; consumers tolerate that combination.
func buildField(fl *lexer.FieldLine, loc ast.Location, kind ast.FieldKind) *ast.FieldNode {
	f := &ast.FieldNode{
		Name:              fl.Name,
		Label:             fl.Label,
		Type:              fl.Type,
		TypeParams:        fl.TypeParams,
		Nullable:          fl.Nullable,
		Array:             fl.Array,
		ArrayItemNullable: fl.ArrayItemNullable,
		Kind:              kind,
		Default:           fl.Default,
		Attributes:        fl.Attributes,
		Framework:         fl.Framework,
		Description:       fl.Description,
		Comment:           fl.Comment,
		Loc:               loc,
	}
	for _, attr := range fl.Attributes {
		switch attr.Name {
		case "lookup":
			f.Kind = ast.KindLookup
			f.Lookup = &ast.LookupDef{Path: attr.Arg(0)}
		case "rollup":
			f.Kind = ast.KindRollup
			f.Rollup = &ast.RollupDef{
				Target:    attr.Arg(0),
				FK:        attr.Arg(1),
				Aggregate: attr.Arg(2),
				Field:     attr.Arg(3),
				Where:     attr.Arg(4),
			}
		case "computed", "computed_raw":
			f.Kind = ast.KindComputed
			f.Computed = &ast.ComputedDef{Expression: strings.Join(attr.Args, ", ")}
		}
	}
	return f
}

func enumEntry(fl *lexer.FieldLine, loc ast.Location) ast.EnumEntry {
	e := ast.EnumEntry{
		Name:        fl.Name,
		Description: fl.Description,
		Type:        fl.Type,
		Value:       fl.Default,
		Loc:         loc,
	}
	// "- name: 3" puts the value in the type slot; reclassify literals.
	if e.Value == "" && e.Type != "" {
		if _, err := strconv.ParseFloat(e.Type, 64); err == nil {
			e.Value, e.Type = e.Type, ""
		}
	}
	return e
}
