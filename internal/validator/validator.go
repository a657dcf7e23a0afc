// Package validator checks semantic rules that need the whole-document view:
// foreign-key consistency for derived fields, view-source existence, and the
// strict-mode style warnings. It never mutates the document; resolver
// diagnostics are carried through untouched and the validator only appends.
package validator

import (
	"strings"

	"mdml/internal/ast"
	"mdml/internal/resolver"
)

// Strict-mode thresholds. Warnings never fire outside strict mode and never
// block a build.
const (
	maxFieldLineLen   = 120
	maxNestingDepth   = 3
	maxLookupPathHops = 3
)

// Options configures a validation run.
type Options struct {
	Strict bool
}

// Validate returns the errors and warnings to append to the document's
// diagnostics.
func Validate(doc *ast.Document, opts Options) ([]ast.Diagnostic, []ast.Diagnostic) {
	v := &validator{doc: doc, opts: opts}
	for _, m := range doc.Models {
		v.checkModel(m)
	}
	for _, i := range doc.Interfaces {
		v.checkModel(i)
	}
	for _, view := range doc.Views {
		v.checkModel(view)
		v.checkViewSource(view)
	}
	return v.errors, v.warnings
}

type validator struct {
	doc  *ast.Document
	opts Options

	errors   []ast.Diagnostic
	warnings []ast.Diagnostic
}

func (v *validator) errf(code string, loc ast.Location, format string, args ...any) {
	v.errors = append(v.errors, ast.Errorf(code, loc, format, args...))
}

func (v *validator) warnf(code string, loc ast.Location, format string, args ...any) {
	v.warnings = append(v.warnings, ast.Warnf(code, loc, format, args...))
}

func (v *validator) checkModel(m *ast.ModelNode) {
	v.checkDuplicateFields(m)
	for _, f := range m.Fields {
		switch f.Kind {
		case ast.KindLookup:
			v.checkLookup(m, f)
		case ast.KindRollup:
			v.checkRollup(m, f)
		}
		if v.opts.Strict {
			v.checkStyle(f)
		}
	}
}

// checkDuplicateFields is a defensive re-check after the inheritance merge.
func (v *validator) checkDuplicateFields(m *ast.ModelNode) {
	seen := map[string]bool{}
	for _, f := range m.Fields {
		if seen[f.Name] {
			v.errf(ast.CodeDuplicateField, f.Loc, "duplicate field %q in %q after resolution", f.Name, m.Name)
		}
		seen[f.Name] = true
	}
}

// checkLookup verifies that the first path segment names a field on the
// declaring model carrying a reference-style attribute.
func (v *validator) checkLookup(m *ast.ModelNode, f *ast.FieldNode) {
	if f.Lookup == nil || f.Lookup.Path == "" {
		v.errf(ast.CodeLookupNoReference, f.Loc, "lookup field %q in %q has no lookup path", f.Name, m.Name)
		return
	}
	first, _, _ := strings.Cut(f.Lookup.Path, ".")
	via := m.Field(first)
	if via == nil {
		v.errf(ast.CodeLookupNoReference, f.Loc,
			"lookup field %q in %q: path starts at unknown field %q", f.Name, m.Name, first)
		return
	}
	if !hasReferenceAttr(via) {
		v.errf(ast.CodeLookupNoReference, f.Loc,
			"lookup field %q in %q: field %q carries no reference attribute", f.Name, m.Name, first)
	}
}

// checkRollup verifies that the target model's foreign-key field exists and
// references back at the declaring model.
func (v *validator) checkRollup(m *ast.ModelNode, f *ast.FieldNode) {
	if f.Rollup == nil || f.Rollup.Target == "" {
		v.errf(ast.CodeRollupNoReference, f.Loc, "rollup field %q in %q has no rollup definition", f.Name, m.Name)
		return
	}
	target := v.doc.Model(f.Rollup.Target)
	if target == nil {
		v.errf(ast.CodeRollupNoReference, f.Loc,
			"rollup field %q in %q: target model %q not found", f.Name, m.Name, f.Rollup.Target)
		return
	}
	fk := target.Field(f.Rollup.FK)
	if fk == nil {
		v.errf(ast.CodeRollupNoReference, f.Loc,
			"rollup field %q in %q: target %q has no field %q", f.Name, m.Name, target.Name, f.Rollup.FK)
		return
	}
	if !referencesModel(fk, m.Name) {
		v.errf(ast.CodeRollupNoReference, f.Loc,
			"rollup field %q in %q: field %q.%q does not reference %q", f.Name, m.Name, target.Name, fk.Name, m.Name)
	}
}

func (v *validator) checkViewSource(view *ast.ModelNode) {
	src := view.Sections.Source
	if src == nil || src.From == "" {
		return
	}
	if v.doc.Model(src.From) == nil {
		v.errf(ast.CodeViewSourceMissing, view.Loc, "view %q: source %q not found", view.Name, src.From)
	}
}

func (v *validator) checkStyle(f *ast.FieldNode) {
	if f.RawLen > maxFieldLineLen {
		v.warnf(ast.CodeLineLength, f.Loc,
			"field %q line is %d characters (limit %d)", f.Name, f.RawLen, maxFieldLineLen)
	}
	if d := nestingDepth(f); d > maxNestingDepth {
		v.warnf(ast.CodeNestingDepth, f.Loc,
			"field %q nests %d levels deep (limit %d)", f.Name, d, maxNestingDepth)
	}
	if f.Lookup != nil {
		if hops := strings.Count(f.Lookup.Path, ".") + 1; hops > maxLookupPathHops {
			v.warnf(ast.CodeLookupChainHops, f.Loc,
				"lookup %q traverses %d hops (limit %d)", f.Name, hops, maxLookupPathHops)
		}
	}
}

func nestingDepth(f *ast.FieldNode) int {
	depth := 1
	for _, sub := range f.Fields {
		if d := 1 + nestingDepth(sub); d > depth {
			depth = d
		}
	}
	return depth
}

func hasReferenceAttr(f *ast.FieldNode) bool {
	for _, a := range f.Attributes {
		if resolver.IsReferenceAttribute(a.Name) {
			return true
		}
	}
	return false
}

// referencesModel reports whether the field carries a reference-style
// attribute whose first argument points at the given model, either bare
// ("Customer") or qualified ("Customer.id").
func referencesModel(f *ast.FieldNode, model string) bool {
	for _, a := range f.Attributes {
		if !resolver.IsReferenceAttribute(a.Name) {
			continue
		}
		arg := a.Arg(0)
		if arg == model || strings.HasPrefix(arg, model+".") {
			return true
		}
	}
	return false
}
