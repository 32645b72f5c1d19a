package parser

import (
	"fmt"
	"go/constant"
	"text/scanner"
)

// Annotation is a single parsed annotation: the name of the annotation type
// and an optional value expression. When the value is absent it is later
// assumed to be "true" for annotation types whose underlying type is bool or
// an empty struct; other annotation types require an explicit value.
type Annotation struct {
	Type  Identifier
	Value ExpressionNode
	Pos   scanner.Position
}

// Identifier is a name, possibly qualified with a package name or alias.
type Identifier struct {
	PackageAlias string
	Name         string
	Pos          scanner.Position
}

func (id Identifier) String() string {
	if id.PackageAlias == "" {
		return id.Name
	}
	return fmt.Sprintf("%s.%s", id.PackageAlias, id.Name)
}

// ExpressionNode is a node in the AST for constant expressions, including
// arithmetic and logical operations, and for aggregate values such as maps,
// slices, arrays, and structs.
type ExpressionNode interface {
	Pos() scanner.Position
}

// LiteralNode represents a literal value: a number, rune, string, bool, or
// the nil, nan, and inf keywords. A nil Val means the literal nil; nan is
// carried as an unknown constant.
type LiteralNode struct {
	Val constant.Value
	pos scanner.Position
}

func (n LiteralNode) Pos() scanner.Position {
	return n.pos
}

// RefNode is a reference to an identifier, which is expected to resolve to a
// constant, a function, or a type name.
type RefNode struct {
	Ident Identifier
}

func (n RefNode) Pos() scanner.Position {
	return n.Ident.Pos
}

// BinaryOperatorNode is a binary operator and its two operands. Operators
// include arithmetic and bitwise operations, logical and comparison
// operations, and string concatenation.
type BinaryOperatorNode struct {
	Left, Right ExpressionNode
	Operator    string
	OperatorPos scanner.Position
}

func (n BinaryOperatorNode) Pos() scanner.Position {
	return n.Left.Pos()
}

// PrefixOperatorNode is a prefix operator applied to an expression: logical
// not (!), bitwise not (^), or unary minus (-).
type PrefixOperatorNode struct {
	Operator string
	Value    ExpressionNode
	pos      scanner.Position
}

func (n PrefixOperatorNode) Pos() scanner.Position {
	return n.pos
}

// ParenthesizedExpressionNode is an expression surrounded by parentheses.
type ParenthesizedExpressionNode struct {
	Contents ExpressionNode
	pos      scanner.Position
}

func (n ParenthesizedExpressionNode) Pos() scanner.Position {
	return n.pos
}

// TypedExpressionNode is a type conversion: a target type applied to a value
// expression or to an aggregate.
type TypedExpressionNode struct {
	Type  Type
	Value ExpressionNode
}

func (n TypedExpressionNode) Pos() scanner.Position {
	return n.Type.Pos()
}

// InvokeRealNode is an invocation of the built-in function real, which
// extracts the real portion of a complex number.
type InvokeRealNode struct {
	Argument ExpressionNode
	pos      scanner.Position
}

func (n InvokeRealNode) Pos() scanner.Position {
	return n.pos
}

// InvokeImagNode is an invocation of the built-in function imag, which
// extracts the imaginary portion of a complex number.
type InvokeImagNode struct {
	Argument ExpressionNode
	pos      scanner.Position
}

func (n InvokeImagNode) Pos() scanner.Position {
	return n.pos
}

// InvokeComplexNode is an invocation of the built-in function complex. The
// expression complex(X, Y) is the same as X + Yi when X and Y are numeric
// literals.
type InvokeComplexNode struct {
	RealArg, ImagArg ExpressionNode
	pos              scanner.Position
}

func (n InvokeComplexNode) Pos() scanner.Position {
	return n.pos
}

// AggregateNode is an aggregate value, which may later convert to a slice,
// array, map, or struct depending on the target type.
type AggregateNode struct {
	Contents []Element
	pos      scanner.Position
}

func (n AggregateNode) Pos() scanner.Position {
	return n.pos
}

// Element is one component of an aggregate. Aggregates representing arrays
// and slices have no keys, maps must have keys, and structs may go either
// way. A single aggregate never mixes keyed and unkeyed elements.
type Element struct {
	Key    ExpressionNode
	HasKey bool
	Value  ExpressionNode
}

func (e Element) Pos() scanner.Position {
	if e.HasKey {
		return e.Key.Pos()
	}
	return e.Value.Pos()
}

// Type is a type reference in an annotation. Type references are more
// limited than full Go syntax: channels, function types, and anonymous
// structs or interfaces other than the empty struct and empty interface
// cannot be written.
type Type interface {
	Name() Identifier
	Elem() Type
	Key() Type
	Len() ExpressionNode
	IsSlice() bool
	IsMap() bool
	IsArray() bool
	IsNamed() bool
	IsPointer() bool
	IsEmptyStruct() bool
	IsEmptyInterface() bool
	Pos() scanner.Position
}

// baseType supplies the "none of the above" answers so that each concrete
// type only overrides the queries that apply to it.
type baseType struct {
	pos scanner.Position
}

func (t baseType) Name() Identifier       { return Identifier{} }
func (t baseType) Elem() Type             { return nil }
func (t baseType) Key() Type              { return nil }
func (t baseType) Len() ExpressionNode    { return nil }
func (t baseType) IsSlice() bool          { return false }
func (t baseType) IsMap() bool            { return false }
func (t baseType) IsArray() bool          { return false }
func (t baseType) IsNamed() bool          { return false }
func (t baseType) IsPointer() bool        { return false }
func (t baseType) IsEmptyStruct() bool    { return false }
func (t baseType) IsEmptyInterface() bool { return false }
func (t baseType) Pos() scanner.Position  { return t.pos }

type namedType struct {
	baseType
	name Identifier
}

func newNamedType(name Identifier) namedType {
	return namedType{baseType: baseType{pos: name.Pos}, name: name}
}

func (t namedType) Name() Identifier { return t.name }
func (t namedType) IsNamed() bool    { return true }

type sliceType struct {
	baseType
	elem Type
}

func (t sliceType) Elem() Type    { return t.elem }
func (t sliceType) IsSlice() bool { return true }

type arrayType struct {
	baseType
	length ExpressionNode
	elem   Type
}

func (t arrayType) Elem() Type          { return t.elem }
func (t arrayType) Len() ExpressionNode { return t.length }
func (t arrayType) IsArray() bool       { return true }

type mapType struct {
	baseType
	key  Type
	elem Type
}

func (t mapType) Key() Type   { return t.key }
func (t mapType) Elem() Type  { return t.elem }
func (t mapType) IsMap() bool { return true }

type pointerType struct {
	baseType
	elem Type
}

func (t pointerType) Elem() Type      { return t.elem }
func (t pointerType) IsPointer() bool { return true }

// emptyType is either the empty struct or the empty interface, the only two
// anonymous composite types an annotation may spell out.
type emptyType struct {
	baseType
	isStruct bool
}

func (t emptyType) IsEmptyStruct() bool    { return t.isStruct }
func (t emptyType) IsEmptyInterface() bool { return !t.isStruct }
