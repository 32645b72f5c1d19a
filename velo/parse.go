package velo

import (
	"text/scanner"
)

type parser struct {
	in *input
	t  *Template
}

// block accumulates the parsed nodes of one template region: the template
// itself, an #if arm, a #foreach body, or a macro body.
type block struct {
	nodes   []node
	text    []byte
	textPos scanner.Position
}

func (b *block) writeText(pos scanner.Position, s string) {
	if len(b.text) == 0 {
		b.textPos = pos
	}
	b.text = append(b.text, s...)
}

func (b *block) flush() {
	if len(b.text) > 0 {
		b.nodes = append(b.nodes, &textNode{text: string(b.text), p: b.textPos})
		b.text = b.text[:0]
	}
}

func (b *block) add(n node) {
	b.flush()
	b.nodes = append(b.nodes, n)
}

// trimIndent drops the pending text's trailing spaces and tabs, the
// indentation of a directive that sits alone on its line.
func (b *block) trimIndent() {
	i := len(b.text)
	for i > 0 && (b.text[i-1] == ' ' || b.text[i-1] == '\t') {
		i--
	}
	b.text = b.text[:i]
}

// terminator describes how a block ended: the directive that closed it and,
// for #elseif, its condition. The word is empty when input ran out.
type terminator struct {
	word string
	cond expr
	p    scanner.Position
}

// parseBlock parses template content until it reaches a directive in the
// stop set or the end of input. Callers that require a closing directive
// check the terminator's word themselves.
func (p *parser) parseBlock(stop map[string]bool) ([]node, terminator, *Error) {
	var b block
	for !p.in.eof() {
		pos := p.in.pos()
		switch p.in.peek() {
		case '\\':
			p.in.next()
			if c := p.in.peek(); c == '$' || c == '#' {
				b.writeText(pos, string(p.in.next()))
			} else {
				b.writeText(pos, `\`)
			}
		case '$':
			p.in.next()
			if !isIdentStart(p.in.peekRune()) && p.in.peek() != '{' {
				b.writeText(pos, "$")
				continue
			}
			ref, err := parseReference(p.in, pos)
			if err != nil {
				return nil, terminator{}, err
			}
			b.add(&refNode{ref: ref})
		case '#':
			term, done, err := p.parseHash(&b, stop)
			if err != nil {
				return nil, terminator{}, err
			}
			if done {
				b.flush()
				return b.nodes, term, nil
			}
		default:
			start := p.in.off
			for !p.in.eof() {
				if c := p.in.peek(); c == '$' || c == '#' || c == '\\' {
					break
				}
				p.in.next()
			}
			b.writeText(pos, p.in.src[start:p.in.off])
		}
	}
	b.flush()
	return b.nodes, terminator{}, nil
}

// parseHash handles a '#': comments, directives, macro invocations, or,
// when nothing matches, literal text. It returns done when it consumed a
// terminator from the stop set.
func (p *parser) parseHash(b *block, stop map[string]bool) (terminator, bool, *Error) {
	pos := p.in.pos()
	leading := p.in.atLineStart(p.in.off)
	p.in.next() // '#'
	switch p.in.peek() {
	case '#':
		// line comments consume their newline, so a trailing comment
		// joins lines
		for !p.in.eof() && p.in.next() != '\n' {
		}
		if leading {
			b.trimIndent()
		}
		return terminator{}, false, nil
	case '*':
		p.in.next()
		for {
			if p.in.eof() {
				return terminator{}, false, errf(pos, "unterminated #* comment")
			}
			if p.in.next() == '*' && p.in.peek() == '#' {
				p.in.next()
				break
			}
		}
		p.gobble(b, leading)
		return terminator{}, false, nil
	}
	word := p.in.ident()
	if word == "" {
		b.writeText(pos, "#")
		return terminator{}, false, nil
	}
	if stop[word] {
		term := terminator{word: word, p: pos}
		if word == "elseif" {
			cond, err := p.parseParenExpr()
			if err != nil {
				return terminator{}, false, err
			}
			term.cond = cond
		}
		p.gobble(b, leading)
		return term, true, nil
	}
	switch word {
	case "if":
		return terminator{}, false, p.parseIf(pos, b, leading)
	case "foreach":
		return terminator{}, false, p.parseForeach(pos, b, leading)
	case "set":
		return terminator{}, false, p.parseSet(pos, b, leading)
	case "macro":
		return terminator{}, false, p.parseMacro(pos, b, leading)
	case "elseif", "else", "end":
		return terminator{}, false, errf(pos, "unexpected #%s", word)
	}
	if p.in.peek() == '(' {
		args, err := parseArgs(p.in)
		if err != nil {
			return terminator{}, false, err
		}
		b.add(&callNode{name: word, args: args, p: pos})
		return terminator{}, false, nil
	}
	b.writeText(pos, "#"+word)
	return terminator{}, false, nil
}

// gobble removes a line-leading directive's trace from the output: when the
// rest of the source line is blank, the line's indentation and trailing
// newline are consumed.
func (p *parser) gobble(b *block, leading bool) {
	if !leading || !p.in.restOfLineBlank() {
		return
	}
	b.trimIndent()
	p.in.skipLineRemainder()
}

func (p *parser) parseIf(pos scanner.Position, b *block, leading bool) *Error {
	cond, err := p.parseParenExpr()
	if err != nil {
		return err
	}
	p.gobble(b, leading)
	n := &ifNode{p: pos}
	stop := map[string]bool{"elseif": true, "else": true, "end": true}
	for {
		body, term, err := p.parseBlock(stop)
		if err != nil {
			return err
		}
		n.arms = append(n.arms, ifArm{cond: cond, body: body})
		switch term.word {
		case "elseif":
			cond = term.cond
		case "else":
			elseBody, et, err := p.parseBlock(map[string]bool{"end": true})
			if err != nil {
				return err
			}
			if et.word == "" {
				return errf(pos, "#if is missing its #end")
			}
			n.elseBody = elseBody
			b.add(n)
			return nil
		case "end":
			b.add(n)
			return nil
		default:
			return errf(pos, "#if is missing its #end")
		}
	}
}

func (p *parser) parseForeach(pos scanner.Position, b *block, leading bool) *Error {
	x := newExprParser(p.in)
	if err := x.expectOp("("); err != nil {
		return err
	}
	if err := x.expectOp("$"); err != nil {
		return err
	}
	name := p.in.ident()
	if name == "" {
		return errf(p.in.pos(), "expected a variable name after $")
	}
	kw, err := x.next()
	if err != nil {
		return err
	}
	if kw.kind != tokIdent || kw.text != "in" {
		return errf(kw.pos, `expected "in", got %s`, kw)
	}
	seq, err := x.parseExpr()
	if err != nil {
		return err
	}
	if err := x.expectOp(")"); err != nil {
		return err
	}
	p.gobble(b, leading)
	body, term, err := p.parseBlock(map[string]bool{"end": true})
	if err != nil {
		return err
	}
	if term.word == "" {
		return errf(pos, "#foreach is missing its #end")
	}
	b.add(&foreachNode{name: name, seq: seq, body: body, p: pos})
	return nil
}

func (p *parser) parseSet(pos scanner.Position, b *block, leading bool) *Error {
	x := newExprParser(p.in)
	if err := x.expectOp("("); err != nil {
		return err
	}
	if err := x.expectOp("$"); err != nil {
		return err
	}
	name := p.in.ident()
	if name == "" {
		return errf(p.in.pos(), "expected a variable name after $")
	}
	if err := x.expectOp("="); err != nil {
		return err
	}
	val, err := x.parseExpr()
	if err != nil {
		return err
	}
	if err := x.expectOp(")"); err != nil {
		return err
	}
	p.gobble(b, leading)
	b.add(&setNode{name: name, val: val, p: pos})
	return nil
}

func (p *parser) parseMacro(pos scanner.Position, b *block, leading bool) *Error {
	x := newExprParser(p.in)
	if err := x.expectOp("("); err != nil {
		return err
	}
	nameTok, err := x.next()
	if err != nil {
		return err
	}
	if nameTok.kind != tokIdent {
		return errf(nameTok.pos, "macro name must be an identifier, got %s", nameTok)
	}
	var params []string
	for {
		t, err := x.next()
		if err != nil {
			return err
		}
		if t.kind == tokOp && t.text == ")" {
			break
		}
		if t.kind == tokOp && t.text == "," {
			continue
		}
		if t.kind != tokOp || t.text != "$" {
			return errf(t.pos, "macro parameters are written $name, got %s", t)
		}
		pname := p.in.ident()
		if pname == "" {
			return errf(p.in.pos(), "expected a parameter name after $")
		}
		params = append(params, pname)
	}
	p.gobble(b, leading)
	body, term, err := p.parseBlock(map[string]bool{"end": true})
	if err != nil {
		return err
	}
	if term.word == "" {
		return errf(pos, "#macro is missing its #end")
	}
	name := nameTok.text
	if _, ok := p.t.macros[name]; ok {
		return errf(pos, "macro %s is already defined", name)
	}
	n := &macroNode{name: name, params: params, body: body, p: pos}
	p.t.macros[name] = n
	b.add(n)
	return nil
}

func (p *parser) parseParenExpr() (expr, *Error) {
	x := newExprParser(p.in)
	if err := x.expectOp("("); err != nil {
		return nil, err
	}
	e, err := x.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := x.expectOp(")"); err != nil {
		return nil, err
	}
	return e, nil
}

// parseReference parses a reference whose dollar sign, at pos, has already
// been consumed. References are byte-precise: whitespace ends the chain, so
// surrounding prose keeps its spacing.
func parseReference(in *input, pos scanner.Position) (*reference, *Error) {
	formal := false
	if in.peek() == '{' {
		formal = true
		in.next()
	}
	name := in.ident()
	if name == "" {
		return nil, errf(pos, "expected a variable name after $")
	}
	ref := &reference{name: name, p: pos}
	if err := parseChain(in, ref); err != nil {
		return nil, err
	}
	if formal {
		if in.peek() != '}' {
			return nil, errf(in.pos(), "expected } to close ${ reference")
		}
		in.next()
	}
	ref.text = in.src[pos.Offset:in.off]
	return ref, nil
}

// parseChain reads member, call, and index steps. A dot only extends the
// chain when an identifier follows, so a reference at the end of a sentence
// keeps its period as literal text.
func parseChain(in *input, ref *reference) *Error {
	for {
		switch in.peek() {
		case '.':
			save := *in
			dotPos := in.pos()
			in.next()
			if !isIdentStart(in.peekRune()) {
				*in = save
				return nil
			}
			name := in.ident()
			if in.peek() == '(' {
				args, err := parseArgs(in)
				if err != nil {
					return err
				}
				ref.chain = append(ref.chain, step{kind: stepCall, name: name, args: args, p: dotPos})
			} else {
				ref.chain = append(ref.chain, step{kind: stepProp, name: name, p: dotPos})
			}
		case '[':
			brkPos := in.pos()
			in.next()
			x := newExprParser(in)
			idx, err := x.parseExpr()
			if err != nil {
				return err
			}
			if err := x.expectOp("]"); err != nil {
				return err
			}
			ref.chain = append(ref.chain, step{kind: stepIndex, args: []expr{idx}, p: brkPos})
		default:
			return nil
		}
	}
}

// parseArgs parses a parenthesized, comma-separated argument list, starting
// at the open paren.
func parseArgs(in *input) ([]expr, *Error) {
	in.next() // '('
	x := newExprParser(in)
	t, err := x.peek()
	if err != nil {
		return nil, err
	}
	if t.kind == tokOp && t.text == ")" {
		x.next()
		return nil, nil
	}
	var args []expr
	for {
		e, err := x.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
		t, err := x.next()
		if err != nil {
			return nil, err
		}
		if t.kind != tokOp || (t.text != "," && t.text != ")") {
			return nil, errf(t.pos, "expected , or ) in arguments, got %s", t)
		}
		if t.text == ")" {
			return args, nil
		}
	}
}

// exprParser reads expression tokens with one token of lookahead.
type exprParser struct {
	in  *input
	buf token
	has bool
}

func newExprParser(in *input) *exprParser {
	return &exprParser{in: in}
}

func (x *exprParser) next() (token, *Error) {
	if x.has {
		x.has = false
		return x.buf, nil
	}
	return x.in.scanToken()
}

func (x *exprParser) peek() (token, *Error) {
	if !x.has {
		t, err := x.in.scanToken()
		if err != nil {
			return token{}, err
		}
		x.buf, x.has = t, true
	}
	return x.buf, nil
}

func (x *exprParser) expectOp(op string) *Error {
	t, err := x.next()
	if err != nil {
		return err
	}
	if t.kind != tokOp || t.text != op {
		return errf(t.pos, "expected %q, got %s", op, t)
	}
	return nil
}

var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3,
	"<": 4, "<=": 4, ">": 4, ">=": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

func (x *exprParser) parseExpr() (expr, *Error) {
	return x.parseBinary(1)
}

// parseBinary climbs operator precedence: it keeps extending the left
// operand while the next operator binds at least as tightly as min.
func (x *exprParser) parseBinary(min int) (expr, *Error) {
	left, err := x.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t, err := x.peek()
		if err != nil {
			return nil, err
		}
		if t.kind != tokOp {
			return left, nil
		}
		prec, ok := binaryPrec[t.text]
		if !ok || prec < min {
			return left, nil
		}
		x.next()
		right, err := x.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: t.text, x: left, y: right, opPos: t.pos}
	}
}

func (x *exprParser) parseUnary() (expr, *Error) {
	t, err := x.peek()
	if err != nil {
		return nil, err
	}
	if t.kind == tokOp && (t.text == "!" || t.text == "-") {
		x.next()
		operand, err := x.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{op: t.text, x: operand, p: t.pos}, nil
	}
	return x.parsePrimary()
}

func (x *exprParser) parsePrimary() (expr, *Error) {
	t, err := x.next()
	if err != nil {
		return nil, err
	}
	switch t.kind {
	case tokInt:
		return &litExpr{val: t.ival, p: t.pos}, nil
	case tokFloat:
		return &litExpr{val: t.fval, p: t.pos}, nil
	case tokString:
		return &litExpr{val: t.sval, p: t.pos}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return &litExpr{val: true, p: t.pos}, nil
		case "false":
			return &litExpr{val: false, p: t.pos}, nil
		}
		return nil, errf(t.pos, "unexpected %s in expression; variable references start with $", t)
	case tokOp:
		switch t.text {
		case "$":
			return parseReference(x.in, t.pos)
		case "(":
			e, err := x.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := x.expectOp(")"); err != nil {
				return nil, err
			}
			return e, nil
		case "[":
			return x.parseListOrRange(t.pos)
		}
	}
	return nil, errf(t.pos, "unexpected %s in expression", t)
}

func (x *exprParser) parseListOrRange(pos scanner.Position) (expr, *Error) {
	t, err := x.peek()
	if err != nil {
		return nil, err
	}
	if t.kind == tokOp && t.text == "]" {
		x.next()
		return &listExpr{p: pos}, nil
	}
	first, err := x.parseExpr()
	if err != nil {
		return nil, err
	}
	t, err = x.next()
	if err != nil {
		return nil, err
	}
	if t.kind == tokOp && t.text == ".." {
		hi, err := x.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := x.expectOp("]"); err != nil {
			return nil, err
		}
		return &rangeExpr{lo: first, hi: hi, p: pos}, nil
	}
	l := &listExpr{elems: []expr{first}, p: pos}
	for {
		if t.kind == tokOp && t.text == "]" {
			return l, nil
		}
		if t.kind != tokOp || t.text != "," {
			return nil, errf(t.pos, "expected , or ] in list, got %s", t)
		}
		e, err := x.parseExpr()
		if err != nil {
			return nil, err
		}
		l.elems = append(l.elems, e)
		t, err = x.next()
		if err != nil {
			return nil, err
		}
	}
}
