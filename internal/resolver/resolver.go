// Package resolver merges independently parsed files into one Document:
// concatenates declarations, resolves inheritance, reports structural
// problems, and tags attributes against the standard set and the attribute
// registry. Input order is the deterministic tie-break for every "first
// occurrence wins" decision, so callers sort their file list up front.
package resolver

import (
	"sort"
	"strings"

	"mdml/internal/ast"
)

// standardAttributes is the fixed set of language-native attribute names.
var standardAttributes = map[string]bool{
	"pk": true, "fk": true, "unique": true, "index": true,
	"default": true, "required": true, "reference": true, "on_delete": true,
	"min": true, "max": true, "label": true, "override": true,
	"lookup": true, "rollup": true, "computed": true, "computed_raw": true,
	"relation": true, "behavior": true,
}

// referenceAttributes satisfy the validator's foreign-key checks.
var referenceAttributes = map[string]bool{"fk": true, "reference": true}

// IsReferenceAttribute reports whether name is a reference-style attribute.
func IsReferenceAttribute(name string) bool { return referenceAttributes[name] }

// Resolve merges the ordered file set into a single Document. Structural
// errors are reported through the document's diagnostics; a Document is
// always produced. The input files are never mutated: the document is built
// from clones, so resolving the same file set again yields the same result.
func Resolve(files []*ast.ParsedFile, project *ast.ProjectInfo) *ast.Document {
	r := &resolver{
		doc: &ast.Document{
			ParserVersion: ast.ParserVersion,
			SchemaVersion: ast.SchemaVersion,
		},
		states: map[*ast.ModelNode]int{},
		fields: map[*ast.ModelNode][]*ast.FieldNode{},
	}
	r.concat(files)
	r.dedupe()
	r.index()
	r.inherit()
	r.inheritEnums()
	r.tagAttributes()
	r.assignProject(project, files)
	return r.doc
}

const (
	stateUnseen = iota
	stateVisiting
	stateDone
)

type resolver struct {
	doc *ast.Document

	// decls holds every model, interface and view clone in global
	// declaration order: file order first, line order within a file.
	decls []*ast.ModelNode

	// byName spans models, interfaces and views: they share one namespace
	// for inheritance. Enums resolve in their own namespace.
	byName  map[string]*ast.ModelNode
	enumsBy map[string]*ast.EnumNode

	states map[*ast.ModelNode]int
	fields map[*ast.ModelNode][]*ast.FieldNode
}

func (r *resolver) errf(code string, loc ast.Location, format string, args ...any) {
	r.doc.Errors = append(r.doc.Errors, ast.Errorf(code, loc, format, args...))
}

// concat gathers declaration clones across files and stamps each with its
// file's namespace. The parser buckets declarations per kind, so the global
// declaration order is recovered by sorting each file's clones by source
// line before appending to decls.
func (r *resolver) concat(files []*ast.ParsedFile) {
	for _, f := range files {
		r.doc.Sources = append(r.doc.Sources, f.FileID)

		var fileDecls []*ast.ModelNode
		add := func(nodes []*ast.ModelNode, bucket *[]*ast.ModelNode) {
			for _, n := range nodes {
				c := n.Clone()
				c.Namespace = f.Namespace
				*bucket = append(*bucket, c)
				fileDecls = append(fileDecls, c)
			}
		}
		add(f.Models, &r.doc.Models)
		add(f.Interfaces, &r.doc.Interfaces)
		add(f.Views, &r.doc.Views)
		sort.SliceStable(fileDecls, func(i, j int) bool {
			return fileDecls[i].Loc.Line < fileDecls[j].Loc.Line
		})
		r.decls = append(r.decls, fileDecls...)

		for _, e := range f.Enums {
			c := e.Clone()
			c.Namespace = f.Namespace
			r.doc.Enums = append(r.doc.Enums, c)
		}
		r.doc.Registry = append(r.doc.Registry, f.Registry...)
	}
}

// dedupe reports duplicate top-level names and keeps the first occurrence of
// each as canonical, where "first" means global declaration order across all
// three kinds: a view declared early beats a model declared later. Enums are
// checked against their own namespace.
func (r *resolver) dedupe() {
	keep := map[*ast.ModelNode]bool{}
	seen := map[string]bool{}
	reported := map[string]bool{}
	for _, n := range r.decls {
		if seen[n.Name] {
			if !reported[n.Name] {
				reported[n.Name] = true
				r.errf(ast.CodeDuplicateName, n.Loc, "duplicate declaration of %q; first occurrence wins", n.Name)
			}
			continue
		}
		seen[n.Name] = true
		keep[n] = true
	}
	filter := func(nodes []*ast.ModelNode) []*ast.ModelNode {
		kept := nodes[:0]
		for _, n := range nodes {
			if keep[n] {
				kept = append(kept, n)
			}
		}
		return kept
	}
	r.doc.Models = filter(r.doc.Models)
	r.doc.Interfaces = filter(r.doc.Interfaces)
	r.doc.Views = filter(r.doc.Views)

	seenEnum := map[string]bool{}
	reportedEnum := map[string]bool{}
	keptEnums := r.doc.Enums[:0]
	for _, e := range r.doc.Enums {
		if seenEnum[e.Name] {
			if !reportedEnum[e.Name] {
				reportedEnum[e.Name] = true
				r.errf(ast.CodeDuplicateName, e.Loc, "duplicate declaration of %q; first occurrence wins", e.Name)
			}
			continue
		}
		seenEnum[e.Name] = true
		keptEnums = append(keptEnums, e)
	}
	r.doc.Enums = keptEnums
}

func (r *resolver) index() {
	r.byName = map[string]*ast.ModelNode{}
	for _, list := range [][]*ast.ModelNode{r.doc.Models, r.doc.Interfaces, r.doc.Views} {
		for _, n := range list {
			r.byName[n.Name] = n
		}
	}
	r.enumsBy = map[string]*ast.EnumNode{}
	for _, e := range r.doc.Enums {
		r.enumsBy[e.Name] = e
	}
}

func (r *resolver) inherit() {
	for _, list := range [][]*ast.ModelNode{r.doc.Models, r.doc.Interfaces, r.doc.Views} {
		for _, n := range list {
			n.Fields = r.resolveFields(n)
		}
	}
}

// resolveFields returns the node's fully resolved field list: every parent's
// already-resolved fields (parent-declaration order) ahead of the node's own
// fields. Resolution is memoized per node; a visiting mark detects cycles,
// which are reported once and broken by treating the revisited node as
// contributing nothing.
func (r *resolver) resolveFields(n *ast.ModelNode) []*ast.FieldNode {
	switch r.states[n] {
	case stateDone:
		return r.fields[n]
	case stateVisiting:
		r.errf(ast.CodeInheritanceCycle, n.Loc, "inheritance cycle through %q", n.Name)
		return nil
	}
	r.states[n] = stateVisiting

	var inherited []*ast.FieldNode
	for _, parentName := range n.Inherits {
		parent, ok := r.byName[parentName]
		if !ok {
			r.errf(ast.CodeUnresolvedParent, n.Loc, "%q inherits unknown parent %q", n.Name, parentName)
			continue
		}
		for _, f := range r.resolveFields(parent) {
			inherited = append(inherited, f.Clone())
		}
	}

	resolved := inherited
	inheritedCount := len(inherited)
	for _, own := range n.Fields {
		idx := fieldIndex(resolved, own.Name)
		switch {
		case idx < 0:
			resolved = append(resolved, own)
		case idx < inheritedCount && own.Attr("override") != nil:
			resolved[idx] = own
		case idx < inheritedCount:
			r.errf(ast.CodeDuplicateField, own.Loc,
				"field %q in %q collides with an inherited field; use @override to replace it", own.Name, n.Name)
		default:
			r.errf(ast.CodeDuplicateField, own.Loc, "duplicate field %q in %q", own.Name, n.Name)
		}
	}

	r.states[n] = stateDone
	r.fields[n] = resolved
	return resolved
}

func (r *resolver) inheritEnums() {
	for _, e := range r.doc.Enums {
		if e.Inherits == "" {
			continue
		}
		parent, ok := r.enumsBy[e.Inherits]
		if !ok {
			r.errf(ast.CodeUnresolvedParent, e.Loc, "enum %q inherits unknown enum %q", e.Name, e.Inherits)
			continue
		}
		merged := make([]ast.EnumEntry, 0, len(parent.Entries)+len(e.Entries))
		merged = append(merged, parent.Entries...)
		for _, entry := range e.Entries {
			if enumHas(parent.Entries, entry.Name) {
				continue
			}
			merged = append(merged, entry)
		}
		e.Entries = merged
	}
}

func enumHas(entries []ast.EnumEntry, name string) bool {
	for _, e := range entries {
		if e.Name == name {
			return true
		}
	}
	return false
}

func fieldIndex(fields []*ast.FieldNode, name string) int {
	for i, f := range fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// tagAttributes marks every attribute instance as standard and/or registered.
// The two tags are independent: an attribute may be both or neither.
func (r *resolver) tagAttributes() {
	registered := map[string]bool{}
	for _, entry := range r.doc.Registry {
		registered[entry.Name] = true
	}
	tag := func(attrs []ast.Attribute) {
		for i := range attrs {
			attrs[i].IsStandard = standardAttributes[attrs[i].Name]
			attrs[i].IsRegistered = registered[attrs[i].Name]
		}
	}
	var tagFields func(fields []*ast.FieldNode)
	tagFields = func(fields []*ast.FieldNode) {
		for _, f := range fields {
			tag(f.Attributes)
			tagFields(f.Fields)
		}
	}
	for _, list := range [][]*ast.ModelNode{r.doc.Models, r.doc.Interfaces, r.doc.Views} {
		for _, n := range list {
			tag(n.Attributes)
			tagFields(n.Fields)
		}
	}
}

// assignProject fills project metadata from the explicit argument, else from
// the first encountered namespace declaration, else leaves it unset.
func (r *resolver) assignProject(project *ast.ProjectInfo, files []*ast.ParsedFile) {
	if project != nil {
		r.doc.Project = project
		return
	}
	for _, f := range files {
		if ns := strings.TrimSpace(f.Namespace); ns != "" {
			r.doc.Project = &ast.ProjectInfo{Name: ns}
			return
		}
	}
}
