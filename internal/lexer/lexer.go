package lexer

import "strings"

// kindWords are the exact heading texts recognized as kind-section markers.
// Lowercase and title case only; other casings stay ordinary headers.
var kindWords = map[string]string{
	"lookup":   "lookup",
	"Lookup":   "lookup",
	"rollup":   "rollup",
	"Rollup":   "rollup",
	"computed": "computed",
	"Computed": "computed",
}

// Lex tokenizes one file's content. It never fails; unrecognized line shapes
// become free-text tokens. fileID is used only for diagnostic locations.
func Lex(content, fileID string) []Token {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")
	// A trailing newline yields one empty trailing element, not a blank line.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	tokens := make([]Token, 0, len(lines))
	for i, raw := range lines {
		tokens = append(tokens, lexLine(raw, fileID, i+1))
	}
	return tokens
}

func lexLine(raw, fileID string, line int) Token {
	tok := Token{Raw: raw, File: fileID, Line: line}

	indent, rest := measureIndent(raw)
	tok.Indent = indent
	trimmed := strings.TrimRight(rest, " \t")

	switch {
	case trimmed == "":
		tok.Kind = KindBlank

	case strings.HasPrefix(trimmed, "#"):
		lexHeader(&tok, trimmed)

	case isHorizontalRule(trimmed):
		tok.Kind = KindHorizontalRule

	case trimmed == "-" || strings.HasPrefix(trimmed, "- "):
		body := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
		tok.Field = parseFieldLine(body)
		if indent > 0 {
			tok.Kind = KindNestedItem
		} else {
			tok.Kind = KindFieldLine
		}

	case strings.HasPrefix(trimmed, ">"):
		tok.Kind = KindBlockquote
		tok.Text = strings.TrimSpace(strings.TrimPrefix(trimmed, ">"))

	default:
		tok.Kind = KindFreeText
		tok.Text = trimmed
	}
	return tok
}

// measureIndent counts leading whitespace in nesting units: two spaces or one
// tab each. Odd space counts round down to the nearest unit.
func measureIndent(s string) (int, string) {
	spaces, tabs, i := 0, 0, 0
	for ; i < len(s); i++ {
		switch s[i] {
		case ' ':
			spaces++
		case '\t':
			tabs++
		default:
			return spaces/2 + tabs, s[i:]
		}
	}
	return spaces/2 + tabs, ""
}

func isHorizontalRule(s string) bool {
	if len(s) < 3 {
		return false
	}
	c := s[0]
	if c != '-' && c != '*' && c != '_' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] != c {
			return false
		}
	}
	return true
}

// lexHeader classifies a heading line. The ::kind suffix decides the token
// kind regardless of heading depth; without one, depth 1 is a namespace,
// depth 2 a model, deeper a section header. A heading whose entire text is a
// recognized kind word becomes a kind-section marker at any depth.
func lexHeader(tok *Token, s string) {
	depth := 0
	for depth < len(s) && s[depth] == '#' {
		depth++
	}
	text := strings.TrimSpace(s[depth:])

	if word, ok := kindWords[text]; ok {
		tok.Kind = KindKindSection
		tok.Header = &HeaderInfo{Depth: depth, Name: text, KindWord: word}
		return
	}

	h := &HeaderInfo{Depth: depth}
	text, suffix := splitTypeSuffix(text)

	// "Name : Parent1, Parent2" — the inheritance clause follows the first
	// colon outside a (label) group. "::" was already removed above.
	namePart := text
	if idx := inheritColon(text); idx >= 0 {
		namePart = strings.TrimSpace(text[:idx])
		for _, p := range strings.Split(text[idx+1:], ",") {
			if p = strings.TrimSpace(p); p != "" {
				h.Inherits = append(h.Inherits, p)
			}
		}
	}
	h.Name, h.Label = splitNameLabel(namePart)
	tok.Header = h

	switch suffix {
	case "enum":
		tok.Kind = KindEnumDecl
	case "interface":
		tok.Kind = KindInterfaceDecl
	case "view":
		tok.Kind = KindViewDecl
	case "attribute":
		tok.Kind = KindAttributeDecl
		h.Name = strings.TrimPrefix(h.Name, "@")
	case "":
		switch {
		case depth <= 1:
			tok.Kind = KindNamespace
		case depth == 2:
			tok.Kind = KindModelDecl
		default:
			tok.Kind = KindSectionHeader
		}
	default:
		// Unknown suffix degrades to a plain model declaration.
		tok.Kind = KindModelDecl
	}
}

// inheritColon returns the index of the first colon at paren depth zero, so
// a display label containing a colon never starts an inheritance clause.
func inheritColon(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTypeSuffix removes a trailing ::word indicator and returns the word.
func splitTypeSuffix(s string) (string, string) {
	idx := strings.Index(s, "::")
	if idx < 0 {
		return s, ""
	}
	rest := strings.TrimSpace(s[idx+2:])
	word := rest
	if sp := strings.IndexAny(rest, " \t"); sp >= 0 {
		word = rest[:sp]
		rest = strings.TrimSpace(rest[sp:])
	} else {
		rest = ""
	}
	left := strings.TrimSpace(s[:idx])
	if rest != "" {
		left = left + " " + rest
	}
	return left, word
}

// splitNameLabel splits "Name (Display Label)" into its two parts.
func splitNameLabel(s string) (string, string) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, ")") {
		return s, ""
	}
	open := strings.Index(s, "(")
	if open < 0 {
		return s, ""
	}
	name := strings.TrimSpace(s[:open])
	label := strings.TrimSpace(s[open+1 : len(s)-1])
	if name == "" {
		return s, ""
	}
	return name, label
}
