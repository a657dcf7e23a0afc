package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdml/internal/ast"
	"mdml/internal/lexer"
	"mdml/internal/parser"
	"mdml/internal/resolver"
)

func resolve(t *testing.T, content string) *ast.Document {
	t.Helper()
	f := parser.Parse(lexer.Lex(content, "test.mdm"), "test.mdm")
	return resolver.Resolve([]*ast.ParsedFile{f}, nil)
}

func errorCodes(diags []ast.Diagnostic) []string {
	out := make([]string, len(diags))
	for i, d := range diags {
		out[i] = d.Code
	}
	return out
}

func TestValidate_LookupReference(t *testing.T) {
	t.Run("Valid Lookup", func(t *testing.T) {
		doc := resolve(t, "## Customer\n- id: identifier\n- name: string\n"+
			"## Order\n- customer_id: identifier @fk(Customer.id)\n"+
			"### Lookup\n- customer_name: string @lookup(customer_id.name)\n")
		errs, _ := Validate(doc, Options{})
		assert.Empty(t, errs)
	})

	t.Run("Path Starts At Unknown Field", func(t *testing.T) {
		doc := resolve(t, "## Order\n- id: identifier\n"+
			"### Lookup\n- customer_name: string @lookup(ghost_id.name)\n")
		errs, _ := Validate(doc, Options{})
		require.Len(t, errs, 1)
		assert.Equal(t, ast.CodeLookupNoReference, errs[0].Code)
		assert.Contains(t, errs[0].Message, "ghost_id")
	})

	t.Run("Via Field Lacks Reference Attribute", func(t *testing.T) {
		doc := resolve(t, "## Order\n- customer_id: identifier\n"+
			"### Lookup\n- customer_name: string @lookup(customer_id.name)\n")
		errs, _ := Validate(doc, Options{})
		require.Len(t, errs, 1)
		assert.Equal(t, ast.CodeLookupNoReference, errs[0].Code)
		assert.Contains(t, errs[0].Message, "no reference attribute")
	})

	t.Run("Reference Via Extended Attribute", func(t *testing.T) {
		doc := resolve(t, "## Order\n- customer_id: identifier\n  - reference: Customer.id\n"+
			"### Lookup\n- customer_name: string @lookup(customer_id.name)\n")
		errs, _ := Validate(doc, Options{})
		assert.Empty(t, errs)
	})

	t.Run("Missing Path", func(t *testing.T) {
		doc := resolve(t, "## Order\n- id: identifier\n### Lookup\n- customer_name: string\n")
		errs, _ := Validate(doc, Options{})
		require.Len(t, errs, 1)
		assert.Equal(t, ast.CodeLookupNoReference, errs[0].Code)
	})
}

func TestValidate_RollupReference(t *testing.T) {
	t.Run("Valid Rollup", func(t *testing.T) {
		doc := resolve(t, "## Customer\n- id: identifier\n"+
			"### Rollup\n- order_count: int @rollup(Order, customer_id, count)\n"+
			"## Order\n- customer_id: identifier @fk(Customer.id)\n")
		errs, _ := Validate(doc, Options{})
		assert.Empty(t, errs)
	})

	t.Run("Target Model Missing", func(t *testing.T) {
		doc := resolve(t, "## Customer\n- id: identifier\n"+
			"### Rollup\n- order_count: int @rollup(Ghost, customer_id, count)\n")
		errs, _ := Validate(doc, Options{})
		require.Len(t, errs, 1)
		assert.Equal(t, ast.CodeRollupNoReference, errs[0].Code)
		assert.Contains(t, errs[0].Message, "Ghost")
	})

	t.Run("FK Field Missing On Target", func(t *testing.T) {
		doc := resolve(t, "## Customer\n- id: identifier\n"+
			"### Rollup\n- order_count: int @rollup(Order, ghost_id, count)\n"+
			"## Order\n- customer_id: identifier @fk(Customer.id)\n")
		errs, _ := Validate(doc, Options{})
		require.Len(t, errs, 1)
		assert.Equal(t, ast.CodeRollupNoReference, errs[0].Code)
	})

	t.Run("FK Does Not Point Back", func(t *testing.T) {
		doc := resolve(t, "## Customer\n- id: identifier\n"+
			"### Rollup\n- order_count: int @rollup(Order, customer_id, count)\n"+
			"## Order\n- customer_id: identifier @fk(Supplier.id)\n")
		errs, _ := Validate(doc, Options{})
		require.Len(t, errs, 1)
		assert.Equal(t, ast.CodeRollupNoReference, errs[0].Code)
		assert.Contains(t, errs[0].Message, "does not reference")
	})
}

func TestValidate_ViewSource(t *testing.T) {
	t.Run("Source Exists", func(t *testing.T) {
		doc := resolve(t, "## User\n- id: identifier\n"+
			"## ActiveUsers ::view\n### Source\n- from: User\n- id: identifier\n")
		errs, _ := Validate(doc, Options{})
		assert.Empty(t, errs)
	})

	t.Run("Source Missing", func(t *testing.T) {
		doc := resolve(t, "## ActiveUsers ::view\n### Source\n- from: Ghost\n- id: identifier\n")
		errs, _ := Validate(doc, Options{})
		require.Len(t, errs, 1)
		assert.Equal(t, ast.CodeViewSourceMissing, errs[0].Code)
	})

	t.Run("No Source Section", func(t *testing.T) {
		doc := resolve(t, "## ActiveUsers ::view\n- id: identifier\n")
		errs, _ := Validate(doc, Options{})
		assert.Empty(t, errs)
	})
}

func TestValidate_StrictWarnings(t *testing.T) {
	longLine := "- url: string"
	for len(longLine) < 130 {
		longLine += " "
	}
	longLine += `"padded"`

	content := "## Customer\n- id: identifier\n- name: string\n" +
		"## Profile\n" +
		"- customer_id: identifier @fk(Customer.id)\n" +
		longLine + "\n" +
		"- prefs: object\n" +
		"  - ui: object\n" +
		"    - theme: object\n" +
		"      - accent: string\n" +
		"### Lookup\n" +
		"- remote: string @lookup(customer_id.name.first.initial)\n"

	t.Run("Strict Mode Emits Warnings", func(t *testing.T) {
		doc := resolve(t, content)
		errs, warns := Validate(doc, Options{Strict: true})
		assert.Empty(t, errs)
		assert.ElementsMatch(t,
			[]string{ast.CodeLineLength, ast.CodeNestingDepth, ast.CodeLookupChainHops},
			errorCodes(warns))
	})

	t.Run("Default Mode Is Silent", func(t *testing.T) {
		doc := resolve(t, content)
		_, warns := Validate(doc, Options{})
		assert.Empty(t, warns)
	})
}

func TestValidate_DoesNotMutateDocument(t *testing.T) {
	doc := resolve(t, "## ActiveUsers ::view\n### Source\n- from: Ghost\n- id: identifier\n")
	before := len(doc.Errors)
	errs, _ := Validate(doc, Options{})
	assert.Len(t, doc.Errors, before, "validator returns diagnostics instead of appending")
	assert.NotEmpty(t, errs)
}
