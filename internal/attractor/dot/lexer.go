package dot

import (
	"fmt"
	"strings"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdent
	tokenString
	tokenSymbol
)

type token struct {
	typ tokenType
	lit string
	pos int
}

// lexer tokenizes a DOT source that has already had comments stripped.
// Identifiers cover Graphviz's unquoted-ID alphabet (letters, digits,
// underscore, leading dash for numerals); quoted strings follow C-style
// backslash escaping; everything else is a single-or-two-character symbol.
type lexer struct {
	s   string
	i   int
	len int
}

func newLexer(src []byte) *lexer {
	s := string(src)
	return &lexer{s: s, len: len(s)}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	if l.i >= l.len {
		return token{typ: tokenEOF, pos: l.i}, nil
	}
	start := l.i
	c := l.s[l.i]

	switch {
	case c == '"':
		return l.lexString()
	case c == '-' && l.i+1 < l.len && l.s[l.i+1] == '>':
		l.i += 2
		return token{typ: tokenSymbol, lit: "->", pos: start}, nil
	case isIdentStart(c):
		return l.lexIdent()
	case c == '-' || isDigit(c):
		return l.lexIdent()
	default:
		l.i++
		return token{typ: tokenSymbol, lit: string(c), pos: start}, nil
	}
}

func (l *lexer) lexString() (token, error) {
	start := l.i
	l.i++ // consume opening quote
	var b strings.Builder
	for {
		if l.i >= l.len {
			return token{}, fmt.Errorf("dot lex: unterminated string starting at %d", start)
		}
		ch := l.s[l.i]
		if ch == '"' {
			l.i++
			return token{typ: tokenString, lit: b.String(), pos: start}, nil
		}
		if ch == '\\' && l.i+1 < l.len {
			next := l.s[l.i+1]
			switch next {
			case '"', '\\':
				b.WriteByte(next)
				l.i += 2
				continue
			case 'n':
				b.WriteByte('\n')
				l.i += 2
				continue
			case '\n':
				l.i += 2
				continue
			}
		}
		b.WriteByte(ch)
		l.i++
	}
}

func (l *lexer) lexIdent() (token, error) {
	start := l.i
	l.i++
	for l.i < l.len && isIdentContinue(l.s[l.i]) {
		l.i++
	}
	return token{typ: tokenIdent, lit: l.s[start:l.i], pos: start}, nil
}

func (l *lexer) skipSpace() {
	for l.i < l.len {
		switch l.s[l.i] {
		case ' ', '\t', '\n', '\r':
			l.i++
		default:
			return
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentContinue(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.' || c == '-'
}

// stripComments removes `//` line comments and `/* */` block comments while
// leaving quoted-string contents untouched, then returns the cleaned source.
func stripComments(src []byte) ([]byte, error) {
	s := string(src)
	var b strings.Builder
	i, n := 0, len(s)
	for i < n {
		c := s[i]
		if c == '"' {
			b.WriteByte(c)
			i++
			for i < n {
				b.WriteByte(s[i])
				if s[i] == '\\' && i+1 < n {
					i++
					b.WriteByte(s[i])
					i++
					continue
				}
				if s[i] == '"' {
					i++
					break
				}
				i++
			}
			continue
		}
		if c == '/' && i+1 < n && s[i+1] == '/' {
			for i < n && s[i] != '\n' {
				i++
			}
			continue
		}
		if c == '/' && i+1 < n && s[i+1] == '*' {
			i += 2
			for i+1 < n && !(s[i] == '*' && s[i+1] == '/') {
				if s[i] == '\n' {
					b.WriteByte('\n')
				}
				i++
			}
			if i+1 >= n {
				return nil, fmt.Errorf("dot lex: unterminated block comment")
			}
			i += 2
			continue
		}
		b.WriteByte(c)
		i++
	}
	return []byte(b.String()), nil
}
