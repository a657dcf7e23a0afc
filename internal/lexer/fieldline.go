package lexer

import (
	"strconv"
	"strings"

	"mdml/internal/ast"
)

// parseFieldLine sub-parses the body of a list item (the text after "- ") in
// fixed left-to-right order: name(label) : type(params)modifiers = default
// @attr(...)* `[Framework(...)]`* "description" # comment. The scanner is
// best-effort; anything it cannot place is skipped rather than failing.
func parseFieldLine(body string) *FieldLine {
	fl := &FieldLine{}
	sc := &scanner{s: body}

	if sc.peek() == '@' {
		fl.Directive = true
	} else {
		fl.Name = sc.scanIdent()
		if sc.peek() == '(' {
			fl.Label = strings.TrimSpace(trimParens(sc.scanBalanced()))
		}
		sc.skipSpace()
		if sc.peek() == ':' {
			sc.next()
			fl.ValueRaw = strings.TrimSpace(sc.s[sc.i:])
			sc.skipSpace()
			fl.Type = sc.scanIdent()
			if sc.peek() == '(' {
				fl.TypeParams = splitTopArgs(trimParens(sc.scanBalanced()))
			}
			scanTypeModifiers(sc, fl)
		}
	}

	for {
		sc.skipSpace()
		switch sc.peek() {
		case 0:
			return fl
		case '=':
			sc.next()
			sc.skipSpace()
			fl.Default = sc.scanValue()
		case '@':
			sc.next()
			attr := ast.Attribute{Name: sc.scanIdent()}
			if sc.peek() == '(' {
				attr.Args = splitTopArgs(trimParens(sc.scanBalanced()))
			}
			fl.Attributes = append(fl.Attributes, attr)
		case '`':
			if fw, ok := sc.scanFramework(); ok {
				fl.Framework = append(fl.Framework, fw)
			}
		case '"':
			fl.Description = sc.scanQuoted()
		case '#':
			fl.Comment = strings.TrimSpace(sc.s[sc.i+1:])
			return fl
		default:
			// Stray text between positional elements; skip one rune and
			// keep scanning rather than aborting the line.
			sc.next()
		}
	}
}

// scanTypeModifiers consumes the ?/[] suffix runs after a type. A "?" before
// "[]" marks the array items nullable; a trailing "?" marks the field (or
// the array itself) nullable.
func scanTypeModifiers(sc *scanner, fl *FieldLine) {
	sawArray := false
	for {
		switch {
		case sc.peek() == '?':
			sc.next()
			if !sawArray && sc.peek() == '[' {
				fl.ArrayItemNullable = true
			} else {
				fl.Nullable = true
			}
		case sc.peek() == '[' && sc.peekAt(1) == ']':
			sc.next()
			sc.next()
			fl.Array = true
			sawArray = true
		default:
			return
		}
	}
}

type scanner struct {
	s string
	i int
}

func (sc *scanner) peek() byte {
	if sc.i >= len(sc.s) {
		return 0
	}
	return sc.s[sc.i]
}

func (sc *scanner) peekAt(off int) byte {
	if sc.i+off >= len(sc.s) {
		return 0
	}
	return sc.s[sc.i+off]
}

func (sc *scanner) next() byte {
	c := sc.peek()
	if c != 0 {
		sc.i++
	}
	return c
}

func (sc *scanner) skipSpace() {
	for sc.peek() == ' ' || sc.peek() == '\t' {
		sc.i++
	}
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '.' || c == '-' || c >= 0x80
}

func (sc *scanner) scanIdent() string {
	start := sc.i
	for isIdentByte(sc.peek()) {
		sc.i++
	}
	return sc.s[start:sc.i]
}

// scanBalanced consumes a parenthesized group, handling nested parens and
// quoted strings, and returns it including the outer parens. An unclosed
// group runs to end of line.
func (sc *scanner) scanBalanced() string {
	start := sc.i
	depth := 0
	for sc.i < len(sc.s) {
		switch sc.s[sc.i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				sc.i++
				return sc.s[start:sc.i]
			}
		case '"', '\'':
			sc.skipQuoted(sc.s[sc.i])
			continue
		}
		sc.i++
	}
	return sc.s[start:]
}

// skipQuoted advances past a quoted run starting at the current position.
func (sc *scanner) skipQuoted(quote byte) {
	sc.i++ // opening quote
	for sc.i < len(sc.s) {
		switch sc.s[sc.i] {
		case '\\':
			sc.i++
		case quote:
			sc.i++
			return
		}
		sc.i++
	}
}

// scanQuoted consumes a double-quoted string and returns the unescaped body.
func (sc *scanner) scanQuoted() string {
	sc.i++ // opening quote
	var b strings.Builder
	for sc.i < len(sc.s) {
		c := sc.s[sc.i]
		switch c {
		case '\\':
			sc.i++
			if sc.i < len(sc.s) {
				b.WriteByte(sc.s[sc.i])
				sc.i++
			}
		case '"':
			sc.i++
			return b.String()
		default:
			b.WriteByte(c)
			sc.i++
		}
	}
	return b.String()
}

// scanValue reads a default value: a quoted string, or bare text up to the
// next positional marker, with parens kept balanced so call-shaped defaults
// like now() survive intact.
func (sc *scanner) scanValue() string {
	if sc.peek() == '"' {
		return sc.scanQuoted()
	}
	start := sc.i
	depth := 0
	for sc.i < len(sc.s) {
		c := sc.s[sc.i]
		if depth == 0 && (c == '@' || c == '`' || c == '"' || c == '#') {
			break
		}
		switch c {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		}
		sc.i++
	}
	return strings.TrimSpace(sc.s[start:sc.i])
}

// scanFramework consumes a `[...]` group. The bracket content is always kept
// raw; name and arguments are filled in only when it sub-parses cleanly.
func (sc *scanner) scanFramework() (ast.FrameworkAttribute, bool) {
	sc.i++ // opening backtick
	start := sc.i
	for sc.i < len(sc.s) && sc.s[sc.i] != '`' {
		sc.i++
	}
	content := sc.s[start:sc.i]
	if sc.i < len(sc.s) {
		sc.i++ // closing backtick
	}

	inner := strings.TrimSpace(content)
	if !strings.HasPrefix(inner, "[") || !strings.HasSuffix(inner, "]") {
		if inner == "" {
			return ast.FrameworkAttribute{}, false
		}
		return ast.FrameworkAttribute{Raw: content}, true
	}
	fw := ast.FrameworkAttribute{Raw: inner}

	body := strings.TrimSpace(inner[1 : len(inner)-1])
	is := &scanner{s: body}
	name := is.scanIdent()
	if name == "" {
		return fw, true
	}
	is.skipSpace()
	var args []ast.FrameworkArg
	switch is.peek() {
	case 0:
	case '(':
		for _, raw := range splitArgsRaw(trimParens(is.scanBalanced())) {
			args = append(args, coerceFrameworkArg(raw))
		}
		is.skipSpace()
		if is.peek() != 0 {
			return fw, true // trailing junk, keep raw only
		}
	default:
		return fw, true
	}
	fw.Name = name
	fw.Args = args
	return fw, true
}

// coerceFrameworkArg classifies an argument as a bool, number or string
// literal, falling back to raw text.
func coerceFrameworkArg(raw string) ast.FrameworkArg {
	switch raw {
	case "true", "false":
		return ast.FrameworkArg{Kind: "bool", Value: raw}
	}
	if _, err := strconv.ParseFloat(raw, 64); err == nil {
		return ast.FrameworkArg{Kind: "number", Value: raw}
	}
	if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[len(raw)-1] == raw[0] {
		return ast.FrameworkArg{Kind: "string", Value: raw[1 : len(raw)-1]}
	}
	return ast.FrameworkArg{Kind: "raw", Value: raw}
}

// trimParens strips one layer of surrounding parens if present.
func trimParens(s string) string {
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		return s[1 : len(s)-1]
	}
	return s
}

// splitTopArgs splits a comma-separated argument list at depth zero,
// respecting nested parens and quotes. Quoted arguments are unquoted.
func splitTopArgs(s string) []string { return splitArgs(s, true) }

// splitArgsRaw keeps quotes intact so callers can coerce literals themselves.
func splitArgsRaw(s string) []string { return splitArgs(s, false) }

func splitArgs(s string, unquote bool) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var args []string
	depth, start := 0, 0
	flush := func(end int) {
		arg := strings.TrimSpace(s[start:end])
		if unquote && len(arg) >= 2 && (arg[0] == '"' || arg[0] == '\'') && arg[len(arg)-1] == arg[0] {
			arg = arg[1 : len(arg)-1]
		}
		args = append(args, arg)
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case '"', '\'':
			q := s[i]
			for i++; i < len(s); i++ {
				if s[i] == '\\' {
					i++
				} else if s[i] == q {
					break
				}
			}
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(s))
	return args
}
