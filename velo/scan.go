package velo

import (
	"fmt"
	"strconv"
	"text/scanner"
	"unicode"
	"unicode/utf8"
)

// input is a cursor over template source with line and column tracking.
// Columns are 1-based and count runes. The template's structural characters
// are all ASCII, so lookahead uses byte peeks.
type input struct {
	name string
	src  string
	off  int
	line int
	col  int
}

func newInput(name, src string) *input {
	return &input{name: name, src: src, line: 1, col: 1}
}

func (in *input) eof() bool {
	return in.off >= len(in.src)
}

// peek returns the next byte without consuming it, or zero at end of input.
func (in *input) peek() byte {
	if in.eof() {
		return 0
	}
	return in.src[in.off]
}

func (in *input) peekRune() rune {
	if in.eof() {
		return -1
	}
	r, _ := utf8.DecodeRuneInString(in.src[in.off:])
	return r
}

func (in *input) next() rune {
	if in.eof() {
		panic("velo: read past end of template")
	}
	r, size := utf8.DecodeRuneInString(in.src[in.off:])
	in.off += size
	if r == '\n' {
		in.line++
		in.col = 1
	} else {
		in.col++
	}
	return r
}

func (in *input) pos() scanner.Position {
	return scanner.Position{Filename: in.name, Offset: in.off, Line: in.line, Column: in.col}
}

// atLineStart reports whether only spaces and tabs separate the given
// offset from the start of its line.
func (in *input) atLineStart(off int) bool {
	for k := off - 1; k >= 0; k-- {
		switch in.src[k] {
		case ' ', '\t':
		case '\n':
			return true
		default:
			return false
		}
	}
	return true
}

// restOfLineBlank reports whether only spaces and tabs separate the current
// position from the next newline or the end of input.
func (in *input) restOfLineBlank() bool {
	for k := in.off; k < len(in.src); k++ {
		switch in.src[k] {
		case ' ', '\t', '\r':
		case '\n':
			return true
		default:
			return false
		}
	}
	return true
}

// skipLineRemainder consumes up to and including the next newline. The
// caller has already established that the remainder of the line is blank.
func (in *input) skipLineRemainder() {
	for !in.eof() {
		if in.next() == '\n' {
			return
		}
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentRune(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

// ident consumes an identifier and returns it, or the empty string when the
// next rune cannot start one.
func (in *input) ident() string {
	if !isIdentStart(in.peekRune()) {
		return ""
	}
	start := in.off
	for !in.eof() && isIdentRune(in.peekRune()) {
		in.next()
	}
	return in.src[start:in.off]
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokInt
	tokFloat
	tokString
	tokOp
)

type token struct {
	kind tokKind
	text string
	ival int64
	fval float64
	sval string
	pos  scanner.Position
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of template"
	case tokString:
		return strconv.Quote(t.sval)
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

// scanToken reads the next expression token. Whitespace, including
// newlines, separates tokens inside directive arguments.
func (in *input) scanToken() (token, *Error) {
	for !in.eof() {
		c := in.peek()
		if c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			break
		}
		in.next()
	}
	pos := in.pos()
	if in.eof() {
		return token{kind: tokEOF, pos: pos}, nil
	}
	if c := in.peek(); c >= '0' && c <= '9' {
		return in.scanNumber(pos)
	} else if c == '"' || c == '\'' {
		return in.scanString(pos)
	}
	if isIdentStart(in.peekRune()) {
		return token{kind: tokIdent, text: in.ident(), pos: pos}, nil
	}
	r := in.next()
	if !in.eof() {
		two := string(r) + string(rune(in.peek()))
		switch two {
		case "==", "!=", "<=", ">=", "&&", "||", "..":
			in.next()
			return token{kind: tokOp, text: two, pos: pos}, nil
		}
	}
	switch r {
	case '(', ')', '[', ']', ',', '.', '$', '=', '<', '>', '!', '+', '-', '*', '/', '%':
		return token{kind: tokOp, text: string(r), pos: pos}, nil
	}
	return token{}, errf(pos, "unexpected character %q in expression", string(r))
}

func (in *input) scanNumber(pos scanner.Position) (token, *Error) {
	start := in.off
	for !in.eof() && in.peek() >= '0' && in.peek() <= '9' {
		in.next()
	}
	isFloat := false
	// a dot continues the number only when a digit follows, so ranges
	// like [1..3] scan as two ints
	if in.peek() == '.' && in.off+1 < len(in.src) && in.src[in.off+1] >= '0' && in.src[in.off+1] <= '9' {
		isFloat = true
		in.next()
		for !in.eof() && in.peek() >= '0' && in.peek() <= '9' {
			in.next()
		}
	}
	text := in.src[start:in.off]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token{}, errf(pos, "malformed number %q", text)
		}
		return token{kind: tokFloat, text: text, fval: f, pos: pos}, nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return token{}, errf(pos, "number %q overflows int64", text)
	}
	return token{kind: tokInt, text: text, ival: i, pos: pos}, nil
}

// scanString reads a quoted string. Double-quoted strings support the
// escapes \\, \", \', \n, and \t; single-quoted strings are taken verbatim.
func (in *input) scanString(pos scanner.Position) (token, *Error) {
	var sb []rune
	quote := in.next()
	for {
		if in.eof() || in.peek() == '\n' {
			return token{}, errf(pos, "unterminated string")
		}
		r := in.next()
		if r == quote {
			s := string(sb)
			return token{kind: tokString, text: s, sval: s, pos: pos}, nil
		}
		if r == '\\' && quote == '"' {
			if in.eof() {
				return token{}, errf(pos, "unterminated string")
			}
			switch e := in.next(); e {
			case '\\', '"', '\'':
				sb = append(sb, e)
			case 'n':
				sb = append(sb, '\n')
			case 't':
				sb = append(sb, '\t')
			default:
				return token{}, errf(pos, `unknown escape \%c in string`, e)
			}
			continue
		}
		sb = append(sb, r)
	}
}
