// Package resolver infers which optional packages a Python source needs by
// reading its import statements, without executing it.
package resolver

import (
	"strings"
)

// Plan lists packages to install, per channel, in first-seen order.
type Plan struct {
	Native    []string `json:"native"`
	Secondary []string `json:"secondary"`
}

// Empty reports whether nothing needs installing.
func (p Plan) Empty() bool {
	return len(p.Native) == 0 && len(p.Secondary) == 0
}

// Resolve scans source for import statements and maps each imported
// top-level name through the static package tables. Names found in
// neither table are ignored.
func Resolve(source string) Plan {
	var plan Plan
	seenNative := make(map[string]bool)
	seenSecondary := make(map[string]bool)

	for _, name := range Imports(source) {
		if pkg, ok := nativePackages[name]; ok && !seenNative[pkg] {
			seenNative[pkg] = true
			plan.Native = append(plan.Native, pkg)
		}
		if pkg, ok := secondaryPackages[name]; ok && !seenSecondary[pkg] {
			seenSecondary[pkg] = true
			plan.Secondary = append(plan.Secondary, pkg)
		}
	}
	return plan
}

// Imports returns the top-level module name of every import statement in
// source, in order of appearance, without duplicates. Statements inside
// comments and triple-quoted strings are skipped; relative imports are
// ignored.
func Imports(source string) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, stmt := range statements(source) {
		switch {
		case hasKeyword(stmt, "import"):
			for _, part := range strings.Split(stmt[len("import"):], ",") {
				add(leadingIdent(part))
			}
		case hasKeyword(stmt, "from"):
			rest := strings.TrimLeft(stmt[len("from"):], " \t")
			if strings.HasPrefix(rest, ".") {
				continue
			}
			add(leadingIdent(rest))
		}
	}
	return names
}

// statements splits source into simple statements with leading whitespace
// removed. Comments and the bodies of triple-quoted strings are dropped;
// ';' separates statements on one line.
func statements(source string) []string {
	var out []string
	var cur strings.Builder
	var quote byte    // active single-line string delimiter
	var triple string // active triple-quote delimiter
	parens := 0
	atStart := true

	flush := func() {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			out = append(out, s)
		}
		cur.Reset()
		atStart = true
	}

	for i := 0; i < len(source); i++ {
		c := source[i]

		if triple != "" {
			if strings.HasPrefix(source[i:], triple) {
				i += len(triple) - 1
				triple = ""
			} else if c == '\\' {
				i++
			}
			continue
		}

		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			case '\n':
				quote = 0
				flush()
			}
			continue
		}

		switch c {
		case '#':
			for i+1 < len(source) && source[i+1] != '\n' {
				i++
			}
		case '\'', '"':
			if i+2 < len(source) && source[i+1] == c && source[i+2] == c {
				triple = source[i : i+3]
				i += 2
			} else {
				quote = c
			}
			// String contents never name a module; keep a placeholder so
			// the statement is not mistaken for an import.
			cur.WriteByte('_')
			atStart = false
		case '\\':
			if i+1 < len(source) && source[i+1] == '\n' {
				i++
				cur.WriteByte(' ')
			}
		case '(', '[', '{':
			parens++
			cur.WriteByte(c)
		case ')', ']', '}':
			if parens > 0 {
				parens--
			}
			cur.WriteByte(c)
		case '\n':
			if parens > 0 {
				cur.WriteByte(' ')
				continue
			}
			flush()
		case ';':
			if parens == 0 {
				flush()
				continue
			}
			cur.WriteByte(c)
		case ' ', '\t', '\r':
			if !atStart {
				cur.WriteByte(c)
			}
		default:
			atStart = false
			cur.WriteByte(c)
		}
	}
	flush()
	return out
}

func hasKeyword(stmt, kw string) bool {
	if !strings.HasPrefix(stmt, kw) || len(stmt) == len(kw) {
		return false
	}
	next := stmt[len(kw)]
	return next == ' ' || next == '\t' || next == '('
}

// leadingIdent returns the first identifier of a dotted module path.
func leadingIdent(s string) string {
	s = strings.TrimLeft(s, " \t(")
	end := 0
	for end < len(s) && isIdentByte(s[end], end == 0) {
		end++
	}
	return s[:end]
}

func isIdentByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}
