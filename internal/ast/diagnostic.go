package ast

import "fmt"

// Severity of a diagnostic, serialized as a fixed string token.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Stable diagnostic codes. Codes are part of the output contract: tools key
// off them, so they never change meaning between releases.
const (
	CodeUnresolvedParent  = "E001"
	CodeDuplicateName     = "E002"
	CodeDuplicateField    = "E003"
	CodeRollupNoReference = "E004"
	CodeLookupNoReference = "E005"
	CodeViewSourceMissing = "E006"
	CodeInheritanceCycle  = "E007"

	CodeLineLength      = "W001"
	CodeNestingDepth    = "W002"
	CodeLookupChainHops = "W003"
)

// Diagnostic is a structured error or warning. Diagnostics are append-only;
// they always carry the original source file and line, even after merging.
type Diagnostic struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d %s %s: %s", d.File, d.Line, d.Column, d.Code, d.Severity, d.Message)
}

// Errorf builds an error diagnostic at the given location.
func Errorf(code string, loc Location, format string, args ...any) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: SeverityError,
		File:     loc.File,
		Line:     loc.Line,
		Column:   loc.Column,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Warnf builds a warning diagnostic at the given location.
func Warnf(code string, loc Location, format string, args ...any) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: SeverityWarning,
		File:     loc.File,
		Line:     loc.Line,
		Column:   loc.Column,
		Message:  fmt.Sprintf(format, args...),
	}
}
