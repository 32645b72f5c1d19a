package parser

import (
	"errors"
	"fmt"
	"go/constant"
	"go/token"
	"io"
	"text/scanner"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenEOL
	tokenIdent
	tokenStringLit
	tokenRawStringLit
	tokenRuneLit
	tokenIntLit
	tokenFloatLit
	tokenImagLit

	tokenNil
	tokenTrue
	tokenFalse
	tokenReal
	tokenImag
	tokenComplex
	tokenNan
	tokenInf
	tokenMap
	tokenStruct
	tokenInterface

	tokenAt
	tokenDot
	tokenComma
	tokenColon
	tokenSemicolon
	tokenLeftParen
	tokenRightParen
	tokenLeftBrace
	tokenRightBrace
	tokenLeftBracket
	tokenRightBracket

	tokenPlus
	tokenMinus
	tokenStar
	tokenSlash
	tokenPercent
	tokenCaret
	tokenAmp
	tokenPipe
	tokenBang
	tokenLess
	tokenGreater
	tokenShiftLeft
	tokenShiftRight
	tokenAndNot
	tokenAndAnd
	tokenOrOr
	tokenEqEq
	tokenNotEq
	tokenLessEq
	tokenGreaterEq

	tokenIllegal
)

var tokenNames = map[tokenKind]string{
	tokenEOF:          "end of input",
	tokenEOL:          "end-of-line",
	tokenIdent:        "identifier",
	tokenStringLit:    "string literal",
	tokenRawStringLit: "raw string literal",
	tokenRuneLit:      "rune literal",
	tokenIntLit:       "int literal",
	tokenFloatLit:     "float literal",
	tokenImagLit:      "imaginary literal",
	tokenNil:          `"nil"`,
	tokenTrue:         `"true"`,
	tokenFalse:        `"false"`,
	tokenReal:         `"real"`,
	tokenImag:         `"imag"`,
	tokenComplex:      `"complex"`,
	tokenNan:          `"nan"`,
	tokenInf:          `"inf"`,
	tokenMap:          `"map"`,
	tokenStruct:       `"struct"`,
	tokenInterface:    `"interface"`,
	tokenAt:           "'@'",
	tokenDot:          "'.'",
	tokenComma:        "','",
	tokenColon:        "':'",
	tokenSemicolon:    "';'",
	tokenLeftParen:    "'('",
	tokenRightParen:   "')'",
	tokenLeftBrace:    "'{'",
	tokenRightBrace:   "'}'",
	tokenLeftBracket:  "'['",
	tokenRightBracket: "']'",
	tokenPlus:         "'+'",
	tokenMinus:        "'-'",
	tokenStar:         "'*'",
	tokenSlash:        "'/'",
	tokenPercent:      "'%'",
	tokenCaret:        "'^'",
	tokenAmp:          "'&'",
	tokenPipe:         "'|'",
	tokenBang:         "'!'",
	tokenLess:         "'<'",
	tokenGreater:      "'>'",
	tokenShiftLeft:    `"<<"`,
	tokenShiftRight:   `">>"`,
	tokenAndNot:       `"&^"`,
	tokenAndAnd:       `"&&"`,
	tokenOrOr:         `"||"`,
	tokenEqEq:         `"=="`,
	tokenNotEq:        `"!="`,
	tokenLessEq:       `"<="`,
	tokenGreaterEq:    `">="`,
}

func (k tokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(k))
}

var keywords = map[string]tokenKind{
	"complex":   tokenComplex,
	"real":      tokenReal,
	"imag":      tokenImag,
	"nan":       tokenNan,
	"inf":       tokenInf,
	"nil":       tokenNil,
	"true":      tokenTrue,
	"false":     tokenFalse,
	"map":       tokenMap,
	"struct":    tokenStruct,
	"interface": tokenInterface,
}

var singleRunes = map[rune]tokenKind{
	'@': tokenAt,
	'.': tokenDot,
	',': tokenComma,
	':': tokenColon,
	';': tokenSemicolon,
	'(': tokenLeftParen,
	')': tokenRightParen,
	'{': tokenLeftBrace,
	'}': tokenRightBrace,
	'[': tokenLeftBracket,
	']': tokenRightBracket,
	'+': tokenPlus,
	'-': tokenMinus,
	'*': tokenStar,
	'/': tokenSlash,
	'%': tokenPercent,
	'^': tokenCaret,
	'&': tokenAmp,
	'|': tokenPipe,
	'!': tokenBang,
	'<': tokenLess,
	'>': tokenGreater,
}

// trailingRunes are the runes that, when they end a line, suppress the
// end-of-line token so that an annotation may continue on the next line.
var trailingRunes = map[rune]struct{}{
	',': {},
	'.': {},
	'{': {},
	'(': {},
	'[': {},
	':': {},
	'+': {},
	'-': {},
	'*': {},
	'/': {},
	'%': {},
	'^': {},
	'&': {},
	'|': {},
	'!': {},
	'>': {},
	'<': {},
	'=': {},
}

// lexToken is a single lexed token. Literal tokens carry their constant
// value; identifiers carry their text.
type lexToken struct {
	kind tokenKind
	text string
	pos  scanner.Position
	val  constant.Value
}

type annoLexer struct {
	err    error
	errPos scanner.Position

	// one-token pushback used when peeking past a number for an
	// imaginary suffix
	nextRune rune
	nextTok  string
	nextPos  scanner.Position

	// the raw rune of the previously returned token, for deciding whether
	// a newline ends the annotation
	lastRune rune

	s scanner.Scanner
}

func newLexer(filename string, r io.Reader) *annoLexer {
	var l annoLexer
	l.s.Init(r)
	l.s.Filename = filename
	l.s.Mode = l.s.Mode &^ (scanner.ScanComments | scanner.SkipComments)
	l.s.Whitespace = 0
	l.s.Error = func(s *scanner.Scanner, msg string) {
		if l.err == nil {
			l.err = errors.New(msg)
			l.errPos = s.Pos()
		}
	}
	return &l
}

func (l *annoLexer) fail(pos scanner.Position, err error) lexToken {
	if l.err == nil {
		l.err = err
		l.errPos = pos
	}
	return lexToken{kind: tokenEOF, pos: pos}
}

// next returns the next token. After a lexing error it reports end of input;
// the error itself is left in l.err for the parser to surface.
func (l *annoLexer) next() lexToken {
	if l.err != nil {
		return lexToken{kind: tokenEOF, pos: l.errPos}
	}

	var r rune
	var tok string
	var pos scanner.Position

	for {
		if l.nextRune != 0 {
			r, tok, pos = l.nextRune, l.nextTok, l.nextPos
			l.nextRune = 0
			l.nextTok = ""
			l.nextPos = scanner.Position{}
		} else {
			pos = l.s.Pos()
			r = l.s.Scan()
			tok = l.s.TokenText()
			if l.err != nil {
				return lexToken{kind: tokenEOF, pos: l.errPos}
			}
		}

		if r == scanner.EOF {
			return lexToken{kind: tokenEOF, pos: pos}
		}

		// whitespace is scanned rune by rune so that every token position
		// is a start position rather than the end position the scanner
		// would otherwise report
		if r == ' ' || r == '\t' || r == '\r' {
			continue
		}

		if r == '\n' {
			if _, ok := trailingRunes[l.lastRune]; ok {
				continue
			}
			l.lastRune = r
			return lexToken{kind: tokenEOL, pos: pos}
		}

		l.lastRune = r

		switch r {
		case scanner.Ident:
			if kw, ok := keywords[tok]; ok {
				return lexToken{kind: kw, text: tok, pos: pos}
			}
			return lexToken{kind: tokenIdent, text: tok, pos: pos}

		case scanner.Int:
			return l.numberToken(tok, pos, token.INT, tokenIntLit)

		case scanner.Float:
			return l.numberToken(tok, pos, token.FLOAT, tokenFloatLit)

		case scanner.Char:
			v := constant.MakeFromLiteral(tok, token.CHAR, 0)
			if v.Kind() == constant.Unknown {
				return l.fail(pos, fmt.Errorf("invalid rune literal %s", tok))
			}
			return lexToken{kind: tokenRuneLit, text: tok, pos: pos, val: v}

		case scanner.String, scanner.RawString:
			v := constant.MakeFromLiteral(tok, token.STRING, 0)
			if v.Kind() == constant.Unknown {
				return l.fail(pos, fmt.Errorf("invalid string literal %s", tok))
			}
			kind := tokenStringLit
			if tok[0] == '`' {
				kind = tokenRawStringLit
			}
			return lexToken{kind: kind, text: tok, pos: pos, val: v}

		case '&':
			if l.s.Peek() == '^' {
				l.s.Next()
				return lexToken{kind: tokenAndNot, text: "&^", pos: pos}
			}
			if l.s.Peek() == '&' {
				l.s.Next()
				return lexToken{kind: tokenAndAnd, text: "&&", pos: pos}
			}

		case '|':
			if l.s.Peek() == '|' {
				l.s.Next()
				return lexToken{kind: tokenOrOr, text: "||", pos: pos}
			}

		case '=':
			if l.s.Peek() == '=' {
				l.s.Next()
				return lexToken{kind: tokenEqEq, text: "==", pos: pos}
			}

		case '!':
			if l.s.Peek() == '=' {
				l.s.Next()
				return lexToken{kind: tokenNotEq, text: "!=", pos: pos}
			}

		case '<':
			if l.s.Peek() == '<' {
				l.s.Next()
				return lexToken{kind: tokenShiftLeft, text: "<<", pos: pos}
			}
			if l.s.Peek() == '=' {
				l.s.Next()
				return lexToken{kind: tokenLessEq, text: "<=", pos: pos}
			}

		case '>':
			if l.s.Peek() == '>' {
				l.s.Next()
				return lexToken{kind: tokenShiftRight, text: ">>", pos: pos}
			}
			if l.s.Peek() == '=' {
				l.s.Next()
				return lexToken{kind: tokenGreaterEq, text: ">=", pos: pos}
			}
		}

		if kind, ok := singleRunes[r]; ok {
			return lexToken{kind: kind, text: string(r), pos: pos}
		}
		return lexToken{kind: tokenIllegal, text: tok, pos: pos}
	}
}

// numberToken lexes an int or float literal, folding a directly adjacent
// "i" suffix into an imaginary literal the way Go spells complex constants.
func (l *annoLexer) numberToken(tok string, pos scanner.Position, goKind token.Token, kind tokenKind) lexToken {
	if l.s.Peek() == 'i' {
		np := l.s.Pos()
		nr := l.s.Scan()
		nt := l.s.TokenText()
		if nr == scanner.Ident && nt == "i" {
			v := constant.MakeFromLiteral(tok+"i", token.IMAG, 0)
			return lexToken{kind: tokenImagLit, text: tok + "i", pos: pos, val: v}
		}
		// not a bare suffix; hand the token back for the next call
		l.nextRune = nr
		l.nextTok = nt
		l.nextPos = np
	}
	v := constant.MakeFromLiteral(tok, goKind, 0)
	if v.Kind() == constant.Unknown {
		return l.fail(pos, fmt.Errorf("invalid numeric literal %s", tok))
	}
	return lexToken{kind: kind, text: tok, pos: pos, val: v}
}
