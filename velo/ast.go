package velo

import "text/scanner"

// node is one element of a parsed template: a run of literal text, an
// interpolated reference, or a directive.
type node interface {
	pos() scanner.Position
}

type textNode struct {
	text string
	p    scanner.Position
}

func (n *textNode) pos() scanner.Position { return n.p }

// refNode interpolates the value of a reference into the output.
type refNode struct {
	ref *reference
}

func (n *refNode) pos() scanner.Position { return n.ref.p }

type ifNode struct {
	arms     []ifArm // the #if and each #elseif, in order
	elseBody []node
	p        scanner.Position
}

type ifArm struct {
	cond expr
	body []node
}

func (n *ifNode) pos() scanner.Position { return n.p }

type foreachNode struct {
	name string // the loop variable, without its dollar sign
	seq  expr
	body []node
	p    scanner.Position
}

func (n *foreachNode) pos() scanner.Position { return n.p }

type setNode struct {
	name string
	val  expr
	p    scanner.Position
}

func (n *setNode) pos() scanner.Position { return n.p }

// macroNode is a macro definition. Definitions are registered with the
// template when it is parsed, wherever they appear, and render to nothing.
type macroNode struct {
	name   string
	params []string
	body   []node
	p      scanner.Position
}

func (n *macroNode) pos() scanner.Position { return n.p }

// callNode is a macro invocation.
type callNode struct {
	name string
	args []expr
	p    scanner.Position
}

func (n *callNode) pos() scanner.Position { return n.p }

// expr is a node in the expression AST used by directive arguments and
// reference chains.
type expr interface {
	pos() scanner.Position
}

// litExpr is a literal: a string, an int64, a float64, or a bool.
type litExpr struct {
	val interface{}
	p   scanner.Position
}

func (e *litExpr) pos() scanner.Position { return e.p }

// reference is a variable access with an optional chain of member, call,
// and index steps. The text field holds the reference as written, for error
// messages.
type reference struct {
	name  string
	chain []step
	text  string
	p     scanner.Position
}

func (e *reference) pos() scanner.Position { return e.p }

type stepKind int

const (
	stepProp stepKind = iota
	stepCall
	stepIndex
)

type step struct {
	kind stepKind
	name string // member or method name; empty for index steps
	args []expr // call arguments, or the single index expression
	p    scanner.Position
}

type listExpr struct {
	elems []expr
	p     scanner.Position
}

func (e *listExpr) pos() scanner.Position { return e.p }

// rangeExpr is an integer range [lo..hi], inclusive on both ends and
// descending when lo exceeds hi.
type rangeExpr struct {
	lo, hi expr
	p      scanner.Position
}

func (e *rangeExpr) pos() scanner.Position { return e.p }

type unaryExpr struct {
	op string
	x  expr
	p  scanner.Position
}

func (e *unaryExpr) pos() scanner.Position { return e.p }

type binaryExpr struct {
	op    string
	x, y  expr
	opPos scanner.Position
}

func (e *binaryExpr) pos() scanner.Position { return e.x.pos() }
