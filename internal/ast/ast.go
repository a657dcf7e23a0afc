// Package ast defines the document model produced by the mdml pipeline.
// Everything here is plain data: the lexer, parser and resolver build these
// structures, the validator and external consumers read them.
package ast

// ParserVersion identifies the implementation release; SchemaVersion
// identifies the shape of the serialized Document. Consumers compare the two
// independently to detect schema drift.
const (
	ParserVersion = "0.4.0"
	SchemaVersion = "1.0"
)

// NodeType discriminates the three declaration variants sharing ModelNode.
type NodeType string

const (
	NodeModel     NodeType = "model"
	NodeInterface NodeType = "interface"
	NodeView      NodeType = "view"
)

// FieldKind classifies how a field gets its value.
type FieldKind string

const (
	KindStored   FieldKind = "stored"
	KindComputed FieldKind = "computed"
	KindLookup   FieldKind = "lookup"
	KindRollup   FieldKind = "rollup"
)

// Location points at the declaring source line. Column is 0 when unknown.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

// Attribute is a single @name(args) annotation on a model or field.
// IsStandard and IsRegistered are assigned by the resolver and are
// independent of each other.
type Attribute struct {
	Name         string   `json:"name"`
	Args         []string `json:"args,omitempty"`
	IsStandard   bool     `json:"is_standard,omitempty"`
	IsRegistered bool     `json:"is_registered,omitempty"`
}

// Arg returns the i-th argument or "".
func (a Attribute) Arg(i int) string {
	if i < 0 || i >= len(a.Args) {
		return ""
	}
	return a.Args[i]
}

// FrameworkArg is one argument of a framework attribute with its coerced
// literal kind: "string", "number", "bool" or "raw" when coercion failed.
// Value always keeps the textual form so serialized output stays stable.
type FrameworkArg struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// FrameworkAttribute is an opaque backtick-wrapped bracket group attached to
// a field. Raw is always retained; Name and Args are set only when the
// content sub-parsed cleanly.
type FrameworkAttribute struct {
	Raw  string         `json:"raw"`
	Name string         `json:"name,omitempty"`
	Args []FrameworkArg `json:"args,omitempty"`
}

// LookupDef reads a value through a foreign-key path, e.g. "customer_id.name".
type LookupDef struct {
	Path string `json:"path"`
}

// RollupDef aggregates values across a one-to-many relationship.
type RollupDef struct {
	Target    string `json:"target"`
	FK        string `json:"fk"`
	Aggregate string `json:"aggregate"`
	Field     string `json:"field,omitempty"`
	Where     string `json:"where,omitempty"`
}

// ComputedDef carries an opaque expression string; mdml never evaluates it.
type ComputedDef struct {
	Expression string `json:"expression"`
}

// EnumEntry is one value of an enum declaration or of an inline enum field.
type EnumEntry struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Type        string   `json:"type,omitempty"`
	Value       string   `json:"value,omitempty"`
	Loc         Location `json:"loc"`
}

// FieldNode is a single field of a model, interface or view. Each FieldNode
// belongs to exactly one ModelNode; the resolver copies parent fields into
// children rather than sharing them.
type FieldNode struct {
	Name              string               `json:"name"`
	Label             string               `json:"label,omitempty"`
	Type              string               `json:"type,omitempty"`
	TypeParams        []string             `json:"type_params,omitempty"`
	Nullable          bool                 `json:"nullable,omitempty"`
	Array             bool                 `json:"array,omitempty"`
	ArrayItemNullable bool                 `json:"array_item_nullable,omitempty"`
	Kind              FieldKind            `json:"kind"`
	Default           string               `json:"default,omitempty"`
	Attributes        []Attribute          `json:"attributes,omitempty"`
	Framework         []FrameworkAttribute `json:"framework,omitempty"`
	Description       string               `json:"description,omitempty"`
	Comment           string               `json:"comment,omitempty"`
	Lookup            *LookupDef           `json:"lookup,omitempty"`
	Rollup            *RollupDef           `json:"rollup,omitempty"`
	Computed          *ComputedDef         `json:"computed,omitempty"`
	Enum              []EnumEntry          `json:"enum,omitempty"`
	Fields            []*FieldNode         `json:"fields,omitempty"`
	Loc               Location             `json:"loc"`

	// RawLen is the source line length, kept for strict-mode checks only.
	RawLen int `json:"-"`
}

// Attr returns the first attribute with the given name, or nil.
func (f *FieldNode) Attr(name string) *Attribute {
	for i := range f.Attributes {
		if f.Attributes[i].Name == name {
			return &f.Attributes[i]
		}
	}
	return nil
}

// Clone deep-copies the field. The resolver clones inherited fields so that
// every node owns its field list outright.
func (f *FieldNode) Clone() *FieldNode {
	c := *f
	c.TypeParams = append([]string(nil), f.TypeParams...)
	c.Attributes = append([]Attribute(nil), f.Attributes...)
	c.Framework = append([]FrameworkAttribute(nil), f.Framework...)
	c.Enum = append([]EnumEntry(nil), f.Enum...)
	if f.Lookup != nil {
		l := *f.Lookup
		c.Lookup = &l
	}
	if f.Rollup != nil {
		r := *f.Rollup
		c.Rollup = &r
	}
	if f.Computed != nil {
		e := *f.Computed
		c.Computed = &e
	}
	if len(f.Fields) > 0 {
		c.Fields = make([]*FieldNode, len(f.Fields))
		for i, sub := range f.Fields {
			c.Fields[i] = sub.Clone()
		}
	}
	return &c
}

// KeyValue is one detail line of a section record.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SectionRecord is one entry of an indexes/relations/behaviors section or of
// an extension section. Unique is meaningful for index records only.
type SectionRecord struct {
	Name    string     `json:"name,omitempty"`
	Unique  bool       `json:"unique,omitempty"`
	Details []KeyValue `json:"details,omitempty"`
	Loc     Location   `json:"loc"`
}

// SourceDef is the view-only source definition.
type SourceDef struct {
	From    string   `json:"from,omitempty"`
	Joins   []string `json:"joins,omitempty"`
	Where   string   `json:"where,omitempty"`
	OrderBy string   `json:"order_by,omitempty"`
	GroupBy string   `json:"group_by,omitempty"`
}

// Sections holds the well-known section buckets plus an extension map for
// unrecognized section names. Custom sections lose no information; they are
// just not interpreted.
type Sections struct {
	Indexes    []SectionRecord            `json:"indexes,omitempty"`
	Relations  []SectionRecord            `json:"relations,omitempty"`
	Behaviors  []SectionRecord            `json:"behaviors,omitempty"`
	Metadata   map[string]string          `json:"metadata,omitempty"`
	Extensions map[string][]SectionRecord `json:"extensions,omitempty"`
	Source     *SourceDef                 `json:"source,omitempty"`
	Refresh    string                     `json:"refresh,omitempty"`
}

// ModelNode is a model, interface or view declaration; Type discriminates.
// After resolution Fields starts with inherited fields in parent-declaration
// order, followed by the node's own fields.
type ModelNode struct {
	Name        string       `json:"name"`
	Label       string       `json:"label,omitempty"`
	Type        NodeType     `json:"node_type"`
	Namespace   string       `json:"namespace,omitempty"`
	Inherits    []string     `json:"inherits,omitempty"`
	Attributes  []Attribute  `json:"attributes,omitempty"`
	Description string       `json:"description,omitempty"`
	Fields      []*FieldNode `json:"fields,omitempty"`
	Sections    Sections     `json:"sections"`
	Loc         Location     `json:"loc"`
}

// Field returns the field with the given name, or nil.
func (m *ModelNode) Field(name string) *FieldNode {
	for _, f := range m.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Clone deep-copies the node. The resolver builds the Document from clones
// so that ParsedFile contents stay untouched.
func (m *ModelNode) Clone() *ModelNode {
	c := *m
	c.Inherits = append([]string(nil), m.Inherits...)
	c.Attributes = append([]Attribute(nil), m.Attributes...)
	if len(m.Fields) > 0 {
		c.Fields = make([]*FieldNode, len(m.Fields))
		for i, f := range m.Fields {
			c.Fields[i] = f.Clone()
		}
	}
	return &c
}

// EnumNode is a standalone enum declaration.
type EnumNode struct {
	Name      string      `json:"name"`
	Namespace string      `json:"namespace,omitempty"`
	Inherits  string      `json:"inherits,omitempty"`
	Entries   []EnumEntry `json:"entries,omitempty"`
	Loc       Location    `json:"loc"`
}

// Clone copies the enum; Entries get their own backing array.
func (e *EnumNode) Clone() *EnumNode {
	c := *e
	c.Entries = append([]EnumEntry(nil), e.Entries...)
	return &c
}

// NumericRange bounds a registered attribute's numeric value.
type NumericRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// RegistryEntry is a consumer-defined @-attribute declared through the
// attribute-registry form. The resolver uses the gathered registry to tag
// attribute instances as registered.
type RegistryEntry struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Targets     []string      `json:"targets,omitempty"`
	ValueType   string        `json:"value_type,omitempty"`
	Range       *NumericRange `json:"range,omitempty"`
	Default     string        `json:"default,omitempty"`
	Required    bool          `json:"required,omitempty"`
	Loc         Location      `json:"loc"`
}

// ProjectInfo is project metadata from the manifest or the first namespace.
type ProjectInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ParsedFile is the single-file result of the parser, before any cross-file
// knowledge is applied. Read-only once produced.
type ParsedFile struct {
	FileID     string           `json:"file_id"`
	Namespace  string           `json:"namespace,omitempty"`
	Models     []*ModelNode     `json:"models,omitempty"`
	Interfaces []*ModelNode     `json:"interfaces,omitempty"`
	Views      []*ModelNode     `json:"views,omitempty"`
	Enums      []*EnumNode      `json:"enums,omitempty"`
	Registry   []*RegistryEntry `json:"registry,omitempty"`
}

// Document is the merged, resolved AST — the sole artifact handed to
// external consumers.
type Document struct {
	ParserVersion string           `json:"parser_version"`
	SchemaVersion string           `json:"schema_version"`
	Project       *ProjectInfo     `json:"project,omitempty"`
	Sources       []string         `json:"sources,omitempty"`
	Models        []*ModelNode     `json:"models,omitempty"`
	Interfaces    []*ModelNode     `json:"interfaces,omitempty"`
	Views         []*ModelNode     `json:"views,omitempty"`
	Enums         []*EnumNode      `json:"enums,omitempty"`
	Registry      []*RegistryEntry `json:"registry,omitempty"`
	Errors        []Diagnostic     `json:"errors,omitempty"`
	Warnings      []Diagnostic     `json:"warnings,omitempty"`
}

// Model returns the model or view with the given name, or nil. Views are
// included because they can serve as a source for other views.
func (d *Document) Model(name string) *ModelNode {
	for _, m := range d.Models {
		if m.Name == name {
			return m
		}
	}
	for _, v := range d.Views {
		if v.Name == name {
			return v
		}
	}
	return nil
}
