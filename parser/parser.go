// Package parser lexes and parses annotations that appear in Go doc
// comments. An annotation starts with an at-sign and a possibly qualified
// name and may carry a value: either a parenthesized constant expression or
// a brace-enclosed aggregate. Annotations are separated by newlines or
// semicolons; a line ending in an operator, comma, or open bracket continues
// on the next line.
package parser

import (
	"errors"
	"fmt"
	"go/constant"
	"io"
	"math"
	"strings"
	"text/scanner"
)

// ParseError describes where in the input parsing failed and why.
type ParseError struct {
	err error
	pos scanner.Position
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.pos.Line, e.pos.Column, e.err)
}

func (e *ParseError) Underlying() error {
	return e.err
}

func (e *ParseError) Pos() scanner.Position {
	return e.pos
}

// ParseAnnotations parses all annotations in the given input. The filename
// is only used for positions. On success the returned slice holds the
// annotations in source order; on failure the error identifies the position
// of the first problem.
func ParseAnnotations(filename string, r io.Reader) ([]Annotation, *ParseError) {
	p := &annoParser{lex: newLexer(filename, r)}
	p.advance()
	return p.parseFile()
}

type annoParser struct {
	lex *annoLexer
	tok lexToken
}

func (p *annoParser) advance() {
	p.tok = p.lex.next()
}

// unexpected builds a syntax error for the current token, deferring to a
// pending lexer error when there is one.
func (p *annoParser) unexpected(expecting ...tokenKind) *ParseError {
	if p.lex.err != nil {
		return &ParseError{err: p.lex.err, pos: p.lex.errPos}
	}
	var got string
	if p.tok.kind == tokenIllegal {
		got = fmt.Sprintf("character %q", p.tok.text)
	} else {
		got = p.tok.kind.String()
	}
	msg := "syntax error: unexpected " + got
	if len(expecting) > 0 {
		names := make([]string, len(expecting))
		for i, k := range expecting {
			names[i] = k.String()
		}
		msg += ", expecting " + strings.Join(names, " or ")
	}
	return &ParseError{err: errors.New(msg), pos: p.tok.pos}
}

func (p *annoParser) errorAt(pos scanner.Position, format string, args ...interface{}) *ParseError {
	return &ParseError{err: fmt.Errorf(format, args...), pos: pos}
}

func (p *annoParser) expect(kind tokenKind) (lexToken, *ParseError) {
	if p.tok.kind != kind {
		return lexToken{}, p.unexpected(kind)
	}
	tok := p.tok
	p.advance()
	return tok, nil
}

func (p *annoParser) parseFile() ([]Annotation, *ParseError) {
	var annos []Annotation
	for {
		for p.tok.kind == tokenEOL || p.tok.kind == tokenSemicolon {
			p.advance()
		}
		if p.tok.kind == tokenEOF {
			if p.lex.err != nil {
				return nil, &ParseError{err: p.lex.err, pos: p.lex.errPos}
			}
			return annos, nil
		}
		anno, err := p.parseAnnotation()
		if err != nil {
			return nil, err
		}
		annos = append(annos, anno)
		switch p.tok.kind {
		case tokenEOL, tokenSemicolon, tokenEOF:
		default:
			return nil, p.unexpected(tokenEOL, tokenSemicolon)
		}
	}
}

func (p *annoParser) parseAnnotation() (Annotation, *ParseError) {
	at, err := p.expect(tokenAt)
	if err != nil {
		return Annotation{}, err
	}
	name, err := p.parseQualifiedName()
	if err != nil {
		return Annotation{}, err
	}
	anno := Annotation{Type: name, Pos: at.pos}
	switch p.tok.kind {
	case tokenLeftParen:
		p.advance()
		value, err := p.parseExpr()
		if err != nil {
			return Annotation{}, err
		}
		if _, err := p.expect(tokenRightParen); err != nil {
			return Annotation{}, err
		}
		anno.Value = value
	case tokenLeftBrace:
		agg, err := p.parseAggregate()
		if err != nil {
			return Annotation{}, err
		}
		anno.Value = agg
	}
	return anno, nil
}

func (p *annoParser) parseQualifiedName() (Identifier, *ParseError) {
	first, err := p.expect(tokenIdent)
	if err != nil {
		return Identifier{}, err
	}
	if p.tok.kind != tokenDot {
		return Identifier{Name: first.text, Pos: first.pos}, nil
	}
	p.advance()
	second, err := p.expect(tokenIdent)
	if err != nil {
		return Identifier{}, err
	}
	return Identifier{PackageAlias: first.text, Name: second.text, Pos: first.pos}, nil
}

func (p *annoParser) parseAggregate() (AggregateNode, *ParseError) {
	brace, err := p.expect(tokenLeftBrace)
	if err != nil {
		return AggregateNode{}, err
	}
	agg := AggregateNode{pos: brace.pos}
	if p.tok.kind == tokenRightBrace {
		p.advance()
		return agg, nil
	}
	for {
		el, err := p.parseElement()
		if err != nil {
			return AggregateNode{}, err
		}
		if len(agg.Contents) > 0 && agg.Contents[0].HasKey != el.HasKey {
			return AggregateNode{}, p.errorAt(el.Pos(),
				"element list cannot contain a mix of map and array style elements (e.g. with and without key)")
		}
		agg.Contents = append(agg.Contents, el)
		if p.tok.kind != tokenComma {
			break
		}
		p.advance()
		if p.tok.kind == tokenRightBrace {
			// trailing comma
			break
		}
	}
	if _, err := p.expect(tokenRightBrace); err != nil {
		return AggregateNode{}, err
	}
	return agg, nil
}

func (p *annoParser) parseElement() (Element, *ParseError) {
	first, err := p.parseValue()
	if err != nil {
		return Element{}, err
	}
	if p.tok.kind != tokenColon {
		return Element{Value: first}, nil
	}
	p.advance()
	value, err := p.parseValue()
	if err != nil {
		return Element{}, err
	}
	return Element{Key: first, HasKey: true, Value: value}, nil
}

// parseValue parses a single value inside an aggregate or annotation body.
// Unlike general expressions, a value may be a bare aggregate or a typed
// aggregate such as []string{...} or pkg.Type{...}.
func (p *annoParser) parseValue() (ExpressionNode, *ParseError) {
	switch p.tok.kind {
	case tokenLeftBrace:
		return p.parseAggregate()

	case tokenLeftBracket, tokenMap, tokenStruct, tokenInterface, tokenStar:
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		agg, err := p.parseAggregate()
		if err != nil {
			return nil, err
		}
		return TypedExpressionNode{Type: typ, Value: agg}, nil

	case tokenIdent:
		// a name here may open a typed aggregate; look past the qualified
		// name before committing to an expression
		name, err := p.parseQualifiedName()
		if err != nil {
			return nil, err
		}
		if p.tok.kind == tokenLeftBrace {
			agg, err := p.parseAggregate()
			if err != nil {
				return nil, err
			}
			return TypedExpressionNode{Type: newNamedType(name), Value: agg}, nil
		}
		left, err := p.finishNamePrimary(name)
		if err != nil {
			return nil, err
		}
		return p.parseBinary(left, 1)
	}
	return p.parseExpr()
}

func (p *annoParser) parseExpr() (ExpressionNode, *ParseError) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return p.parseBinary(left, 1)
}

// binaryPrec assigns Go's operator precedence; zero means the token is not
// a binary operator.
func binaryPrec(k tokenKind) int {
	switch k {
	case tokenOrOr:
		return 1
	case tokenAndAnd:
		return 2
	case tokenEqEq, tokenNotEq, tokenLess, tokenLessEq, tokenGreater, tokenGreaterEq:
		return 3
	case tokenPlus, tokenMinus, tokenPipe, tokenCaret:
		return 4
	case tokenStar, tokenSlash, tokenPercent, tokenShiftLeft, tokenShiftRight, tokenAmp, tokenAndNot:
		return 5
	}
	return 0
}

func (p *annoParser) parseBinary(left ExpressionNode, minPrec int) (ExpressionNode, *ParseError) {
	for {
		prec := binaryPrec(p.tok.kind)
		if prec < minPrec {
			return left, nil
		}
		op := p.tok
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		right, err = p.parseBinary(right, prec+1)
		if err != nil {
			return nil, err
		}
		left = BinaryOperatorNode{Left: left, Right: right, Operator: op.text, OperatorPos: op.pos}
	}
}

func (p *annoParser) parseUnary() (ExpressionNode, *ParseError) {
	switch p.tok.kind {
	case tokenMinus, tokenBang, tokenCaret:
		op := p.tok
		p.advance()
		value, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return PrefixOperatorNode{Operator: op.text, Value: value, pos: op.pos}, nil

	case tokenPlus:
		// an explicit positive sign is only allowed directly on a numeric
		// literal or inf
		op := p.tok
		p.advance()
		switch p.tok.kind {
		case tokenIntLit, tokenFloatLit, tokenImagLit:
			lit := p.tok
			p.advance()
			return LiteralNode{Val: lit.val, pos: op.pos}, nil
		case tokenInf:
			p.advance()
			return LiteralNode{Val: constant.MakeFloat64(math.Inf(1)), pos: op.pos}, nil
		}
		return nil, p.unexpected(tokenIntLit, tokenFloatLit, tokenImagLit, tokenInf)
	}
	return p.parsePrimary()
}

func (p *annoParser) parsePrimary() (ExpressionNode, *ParseError) {
	tok := p.tok
	switch tok.kind {
	case tokenIntLit, tokenFloatLit, tokenImagLit, tokenStringLit, tokenRawStringLit, tokenRuneLit:
		p.advance()
		return LiteralNode{Val: tok.val, pos: tok.pos}, nil

	case tokenNil:
		p.advance()
		return LiteralNode{pos: tok.pos}, nil

	case tokenTrue:
		p.advance()
		return LiteralNode{Val: constant.MakeBool(true), pos: tok.pos}, nil

	case tokenFalse:
		p.advance()
		return LiteralNode{Val: constant.MakeBool(false), pos: tok.pos}, nil

	case tokenNan:
		p.advance()
		return LiteralNode{Val: constant.MakeUnknown(), pos: tok.pos}, nil

	case tokenInf:
		p.advance()
		return LiteralNode{Val: constant.MakeFloat64(math.Inf(1)), pos: tok.pos}, nil

	case tokenLeftParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenRightParen); err != nil {
			return nil, err
		}
		return ParenthesizedExpressionNode{Contents: inner, pos: tok.pos}, nil

	case tokenReal, tokenImag:
		p.advance()
		if _, err := p.expect(tokenLeftParen); err != nil {
			return nil, err
		}
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenRightParen); err != nil {
			return nil, err
		}
		if tok.kind == tokenReal {
			return InvokeRealNode{Argument: arg, pos: tok.pos}, nil
		}
		return InvokeImagNode{Argument: arg, pos: tok.pos}, nil

	case tokenComplex:
		p.advance()
		if _, err := p.expect(tokenLeftParen); err != nil {
			return nil, err
		}
		realArg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenComma); err != nil {
			return nil, err
		}
		imagArg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenRightParen); err != nil {
			return nil, err
		}
		return InvokeComplexNode{RealArg: realArg, ImagArg: imagArg, pos: tok.pos}, nil

	case tokenIdent:
		name, err := p.parseQualifiedName()
		if err != nil {
			return nil, err
		}
		return p.finishNamePrimary(name)
	}
	return nil, p.unexpected()
}

// finishNamePrimary turns an already-consumed qualified name into either a
// reference or, when a parenthesized argument follows, a conversion.
func (p *annoParser) finishNamePrimary(name Identifier) (ExpressionNode, *ParseError) {
	if p.tok.kind != tokenLeftParen {
		return RefNode{Ident: name}, nil
	}
	p.advance()
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokenRightParen); err != nil {
		return nil, err
	}
	return TypedExpressionNode{Type: newNamedType(name), Value: value}, nil
}

func (p *annoParser) parseType() (Type, *ParseError) {
	tok := p.tok
	switch tok.kind {
	case tokenLeftBracket:
		p.advance()
		if p.tok.kind == tokenRightBracket {
			p.advance()
			elem, err := p.parseType()
			if err != nil {
				return nil, err
			}
			return sliceType{baseType: baseType{pos: tok.pos}, elem: elem}, nil
		}
		length, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenRightBracket); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return arrayType{baseType: baseType{pos: tok.pos}, length: length, elem: elem}, nil

	case tokenMap:
		p.advance()
		if _, err := p.expect(tokenLeftBracket); err != nil {
			return nil, err
		}
		key, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenRightBracket); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return mapType{baseType: baseType{pos: tok.pos}, key: key, elem: elem}, nil

	case tokenStar:
		p.advance()
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return pointerType{baseType: baseType{pos: tok.pos}, elem: elem}, nil

	case tokenStruct, tokenInterface:
		p.advance()
		if _, err := p.expect(tokenLeftBrace); err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenRightBrace); err != nil {
			return nil, err
		}
		return emptyType{baseType: baseType{pos: tok.pos}, isStruct: tok.kind == tokenStruct}, nil

	case tokenIdent:
		name, err := p.parseQualifiedName()
		if err != nil {
			return nil, err
		}
		return newNamedType(name), nil
	}
	return nil, p.unexpected()
}
