package wat

import (
	"fmt"
	"strings"
)

type exprKind int

const (
	atomExpr exprKind = iota
	strExpr
	listExpr
)

// sexpr is one node of the parsed source: an atom, a quoted string with
// its escapes resolved, or a parenthesized list.
type sexpr struct {
	kind exprKind
	atom string
	list []sexpr
	line int
}

type lexer struct {
	src  string
	pos  int
	line int
}

// parseSource reads every top-level expression in src.
func parseSource(src string) ([]sexpr, error) {
	l := &lexer{src: src, line: 1}
	var out []sexpr
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			return out, nil
		}
		e, err := l.next()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == ';' && l.pos+1 < len(l.src) && l.src[l.pos+1] == ';':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == '(' && l.pos+1 < len(l.src) && l.src[l.pos+1] == ';':
			depth := 1
			l.pos += 2
			for l.pos < len(l.src) && depth > 0 {
				switch {
				case l.src[l.pos] == '\n':
					l.line++
					l.pos++
				case l.src[l.pos] == '(' && l.pos+1 < len(l.src) && l.src[l.pos+1] == ';':
					depth++
					l.pos += 2
				case l.src[l.pos] == ';' && l.pos+1 < len(l.src) && l.src[l.pos+1] == ')':
					depth--
					l.pos += 2
				default:
					l.pos++
				}
			}
		default:
			return
		}
	}
}

func (l *lexer) next() (sexpr, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return sexpr{}, fmt.Errorf("line %d: unexpected end of source", l.line)
	}

	switch c := l.src[l.pos]; {
	case c == '(':
		line := l.line
		l.pos++
		var items []sexpr
		for {
			l.skipSpace()
			if l.pos >= len(l.src) {
				return sexpr{}, fmt.Errorf("line %d: unclosed list", line)
			}
			if l.src[l.pos] == ')' {
				l.pos++
				return sexpr{kind: listExpr, list: items, line: line}, nil
			}
			e, err := l.next()
			if err != nil {
				return sexpr{}, err
			}
			items = append(items, e)
		}
	case c == ')':
		return sexpr{}, fmt.Errorf("line %d: unexpected )", l.line)
	case c == '"':
		return l.str()
	default:
		return l.nextAtom(), nil
	}
}

func (l *lexer) nextAtom() sexpr {
	start := l.pos
	for l.pos < len(l.src) && !strings.ContainsRune(" \t\r\n();\"", rune(l.src[l.pos])) {
		l.pos++
	}
	return sexpr{kind: atomExpr, atom: l.src[start:l.pos], line: l.line}
}

func (l *lexer) str() (sexpr, error) {
	line := l.line
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		switch c := l.src[l.pos]; c {
		case '"':
			l.pos++
			return sexpr{kind: strExpr, atom: b.String(), line: line}, nil
		case '\n':
			return sexpr{}, fmt.Errorf("line %d: unterminated string", line)
		case '\\':
			if l.pos+1 >= len(l.src) {
				return sexpr{}, fmt.Errorf("line %d: unterminated escape", line)
			}
			switch esc := l.src[l.pos+1]; esc {
			case 'n':
				b.WriteByte('\n')
				l.pos += 2
			case 't':
				b.WriteByte('\t')
				l.pos += 2
			case 'r':
				b.WriteByte('\r')
				l.pos += 2
			case '\\', '"', '\'':
				b.WriteByte(esc)
				l.pos += 2
			default:
				if l.pos+2 >= len(l.src) {
					return sexpr{}, fmt.Errorf("line %d: unterminated escape", line)
				}
				hi, ok1 := hexVal(esc)
				lo, ok2 := hexVal(l.src[l.pos+2])
				if !ok1 || !ok2 {
					return sexpr{}, fmt.Errorf("line %d: bad escape \\%c", line, esc)
				}
				b.WriteByte(hi<<4 | lo)
				l.pos += 3
			}
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return sexpr{}, fmt.Errorf("line %d: unterminated string", line)
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
