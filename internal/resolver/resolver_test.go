package resolver

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdml/internal/ast"
	"mdml/internal/lexer"
	"mdml/internal/parser"
)

func parseFiles(t *testing.T, files map[string]string, order ...string) []*ast.ParsedFile {
	t.Helper()
	parsed := make([]*ast.ParsedFile, 0, len(order))
	for _, id := range order {
		content, ok := files[id]
		require.True(t, ok, "missing file %s", id)
		parsed = append(parsed, parser.Parse(lexer.Lex(content, id), id))
	}
	return parsed
}

func fieldNames(fields []*ast.FieldNode) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func codes(diags []ast.Diagnostic) []string {
	out := make([]string, len(diags))
	for i, d := range diags {
		out[i] = d.Code
	}
	return out
}

func TestResolve_UnresolvedParent(t *testing.T) {
	files := parseFiles(t, map[string]string{
		"a.mdm": "## User : Ghost\n- id: identifier\n",
	}, "a.mdm")

	doc := Resolve(files, nil)

	require.Len(t, doc.Errors, 1)
	assert.Equal(t, ast.CodeUnresolvedParent, doc.Errors[0].Code)
	assert.Contains(t, doc.Errors[0].Message, "Ghost")
	assert.Equal(t, "a.mdm", doc.Errors[0].File)

	require.Len(t, doc.Models, 1)
	assert.Equal(t, []string{"id"}, fieldNames(doc.Models[0].Fields))
}

func TestResolve_InheritanceOrder(t *testing.T) {
	files := parseFiles(t, map[string]string{
		"base.mdm": "## Identified ::interface\n- id: identifier\n## Audited ::interface\n- created_at: timestamp\n- updated_at: timestamp\n",
		"user.mdm": "## User : Identified, Audited\n- name: string\n- email: string\n",
	}, "base.mdm", "user.mdm")

	doc := Resolve(files, nil)
	assert.Empty(t, doc.Errors)

	require.Len(t, doc.Models, 1)
	// Parents' fields precede own fields, in parent-declaration order.
	assert.Equal(t, []string{"id", "created_at", "updated_at", "name", "email"},
		fieldNames(doc.Models[0].Fields))
}

func TestResolve_TransitiveInheritance(t *testing.T) {
	files := parseFiles(t, map[string]string{
		"a.mdm": "## A\n- a: int\n## B : A\n- b: int\n## C : B\n- c: int\n",
	}, "a.mdm")

	doc := Resolve(files, nil)
	assert.Empty(t, doc.Errors)

	var c *ast.ModelNode
	for _, m := range doc.Models {
		if m.Name == "C" {
			c = m
		}
	}
	require.NotNil(t, c)
	assert.Equal(t, []string{"a", "b", "c"}, fieldNames(c.Fields))
}

func TestResolve_DiamondInheritance(t *testing.T) {
	files := parseFiles(t, map[string]string{
		"a.mdm": "## Root ::interface\n- id: identifier\n## Left : Root\n- l: int\n## Right : Root\n- r: int\n",
	}, "a.mdm")

	doc := Resolve(files, nil)
	assert.Empty(t, doc.Errors)
	for _, m := range doc.Models {
		switch m.Name {
		case "Left":
			assert.Equal(t, []string{"id", "l"}, fieldNames(m.Fields))
		case "Right":
			assert.Equal(t, []string{"id", "r"}, fieldNames(m.Fields))
		}
	}
}

func TestResolve_Override(t *testing.T) {
	files := parseFiles(t, map[string]string{
		"a.mdm": "## Base ::interface\n- id: int\n- name: string\n## User : Base\n- id: uuid @override\n- email: string\n",
	}, "a.mdm")

	doc := Resolve(files, nil)
	assert.Empty(t, doc.Errors)

	u := doc.Models[0]
	require.Equal(t, "User", u.Name)
	// The override replaces the inherited field in place.
	assert.Equal(t, []string{"id", "name", "email"}, fieldNames(u.Fields))
	assert.Equal(t, "uuid", u.Fields[0].Type)
}

func TestResolve_DuplicateFieldWithoutOverride(t *testing.T) {
	files := parseFiles(t, map[string]string{
		"a.mdm": "## Base ::interface\n- id: int\n## User : Base\n- id: uuid\n",
	}, "a.mdm")

	doc := Resolve(files, nil)
	require.Len(t, doc.Errors, 1)
	assert.Equal(t, ast.CodeDuplicateField, doc.Errors[0].Code)

	u := doc.Models[0]
	assert.Equal(t, []string{"id"}, fieldNames(u.Fields))
	assert.Equal(t, "int", u.Fields[0].Type, "inherited field stays canonical")
}

func TestResolve_DuplicateName(t *testing.T) {
	files := parseFiles(t, map[string]string{
		"a.mdm": "## A\n- x: string\n## A\n- y: string\n",
	}, "a.mdm")

	doc := Resolve(files, nil)

	require.Equal(t, []string{ast.CodeDuplicateName}, codes(doc.Errors), "exactly one diagnostic per repeated name")
	require.Len(t, doc.Models, 1)
	assert.Equal(t, []string{"x"}, fieldNames(doc.Models[0].Fields), "first occurrence wins")
}

func TestResolve_DuplicateNameAcrossFiles(t *testing.T) {
	files := parseFiles(t, map[string]string{
		"a.mdm": "## Thing\n- x: string\n",
		"b.mdm": "## Thing\n- y: string\n",
	}, "a.mdm", "b.mdm")

	doc := Resolve(files, nil)
	require.Len(t, doc.Errors, 1)
	assert.Equal(t, "b.mdm", doc.Errors[0].File, "diagnostic points at the later occurrence")
	assert.Equal(t, []string{"x"}, fieldNames(doc.Models[0].Fields))
}

func TestResolve_DuplicateNameAcrossKinds(t *testing.T) {
	t.Run("Earlier View Beats Later Model", func(t *testing.T) {
		files := parseFiles(t, map[string]string{
			"a.mdm": "## A ::view\n- x: string\n",
			"b.mdm": "## A\n- y: string\n",
		}, "a.mdm", "b.mdm")

		doc := Resolve(files, nil)
		require.Len(t, doc.Errors, 1)
		assert.Equal(t, ast.CodeDuplicateName, doc.Errors[0].Code)
		assert.Equal(t, "b.mdm", doc.Errors[0].File)

		assert.Empty(t, doc.Models)
		require.Len(t, doc.Views, 1)
		assert.Equal(t, []string{"x"}, fieldNames(doc.Views[0].Fields))
	})

	t.Run("Declaration Order Within One File", func(t *testing.T) {
		files := parseFiles(t, map[string]string{
			"a.mdm": "## A ::view\n- x: string\n## A\n- y: string\n",
		}, "a.mdm")

		doc := Resolve(files, nil)
		require.Len(t, doc.Errors, 1)
		assert.Equal(t, ast.CodeDuplicateName, doc.Errors[0].Code)

		assert.Empty(t, doc.Models, "the later model loses to the earlier view")
		require.Len(t, doc.Views, 1)
		assert.Equal(t, []string{"x"}, fieldNames(doc.Views[0].Fields))
	})
}

func TestResolve_InheritanceCycle(t *testing.T) {
	files := parseFiles(t, map[string]string{
		"a.mdm": "## A : B\n- a: int\n## B : A\n- b: int\n",
	}, "a.mdm")

	doc := Resolve(files, nil)
	assert.Contains(t, codes(doc.Errors), ast.CodeInheritanceCycle)
}

func TestResolve_EnumInheritance(t *testing.T) {
	files := parseFiles(t, map[string]string{
		"a.mdm": "## BaseStatus ::enum\n- active\n- inactive\n## Status ::enum : BaseStatus\n- archived\n",
	}, "a.mdm")

	doc := Resolve(files, nil)
	assert.Empty(t, doc.Errors)

	var status *ast.EnumNode
	for _, e := range doc.Enums {
		if e.Name == "Status" {
			status = e
		}
	}
	require.NotNil(t, status)
	require.Len(t, status.Entries, 3)
	assert.Equal(t, "active", status.Entries[0].Name)
	assert.Equal(t, "archived", status.Entries[2].Name)
}

func TestResolve_AttributeTagging(t *testing.T) {
	files := parseFiles(t, map[string]string{
		"reg.mdm":   "## @priority ::attribute\n- type: int\n",
		"model.mdm": "## Task\n- id: identifier @pk\n- weight: int @priority(3)\n- extra: int @mystery\n",
	}, "model.mdm", "reg.mdm")

	doc := Resolve(files, nil)
	m := doc.Models[0]

	pk := m.Fields[0].Attr("pk")
	require.NotNil(t, pk)
	assert.True(t, pk.IsStandard)
	assert.False(t, pk.IsRegistered)

	priority := m.Fields[1].Attr("priority")
	require.NotNil(t, priority)
	assert.False(t, priority.IsStandard)
	assert.True(t, priority.IsRegistered)

	mystery := m.Fields[2].Attr("mystery")
	require.NotNil(t, mystery)
	assert.False(t, mystery.IsStandard)
	assert.False(t, mystery.IsRegistered)
}

func TestResolve_ProjectMetadata(t *testing.T) {
	t.Run("Explicit Argument Wins", func(t *testing.T) {
		files := parseFiles(t, map[string]string{"a.mdm": "# Shop\n## User\n- id: identifier\n"}, "a.mdm")
		doc := Resolve(files, &ast.ProjectInfo{Name: "explicit", Version: "2.0"})
		require.NotNil(t, doc.Project)
		assert.Equal(t, "explicit", doc.Project.Name)
	})

	t.Run("Falls Back To First Namespace", func(t *testing.T) {
		files := parseFiles(t, map[string]string{
			"a.mdm": "## User\n- id: identifier\n",
			"b.mdm": "# Shop\n## Order\n- id: identifier\n",
		}, "a.mdm", "b.mdm")
		doc := Resolve(files, nil)
		require.NotNil(t, doc.Project)
		assert.Equal(t, "Shop", doc.Project.Name)
	})

	t.Run("Unset Without Either", func(t *testing.T) {
		files := parseFiles(t, map[string]string{"a.mdm": "## User\n- id: identifier\n"}, "a.mdm")
		doc := Resolve(files, nil)
		assert.Nil(t, doc.Project)
	})
}

func TestResolve_Idempotent(t *testing.T) {
	files := parseFiles(t, map[string]string{
		"a.mdm": "## User : Ghost\n- id: identifier\n## A\n- x: int\n## A\n- y: int\n",
	}, "a.mdm")

	// Same slice both times: the second run must see pristine parser output.
	first := Resolve(files, nil)
	second := Resolve(files, nil)
	assert.True(t, reflect.DeepEqual(first.Errors, second.Errors))
	assert.Equal(t, fieldNames(first.Models[0].Fields), fieldNames(second.Models[0].Fields))
}

func TestResolve_DoesNotMutateParsedFiles(t *testing.T) {
	files := parseFiles(t, map[string]string{
		"a.mdm": "# Shop\n## Base ::interface\n- id: identifier\n## User : Base\n- name: string\n",
	}, "a.mdm")

	first := Resolve(files, nil)
	assert.Empty(t, first.Errors)
	assert.Equal(t, []string{"id", "name"}, fieldNames(first.Models[0].Fields))

	// Parser output keeps its own field lists and no stamped namespace.
	require.Len(t, files[0].Models, 1)
	assert.Equal(t, []string{"name"}, fieldNames(files[0].Models[0].Fields))
	assert.Empty(t, files[0].Models[0].Namespace)

	second := Resolve(files, nil)
	assert.Empty(t, second.Errors, "re-resolving must not report phantom collisions")
	assert.Equal(t, []string{"id", "name"}, fieldNames(second.Models[0].Fields))
}
