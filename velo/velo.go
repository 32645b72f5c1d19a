// Package velo renders Velocity-style text templates. The value generator
// uses it to stamp generated source files out of a map of computed
// variables, but it has no knowledge of Go source and renders any text.
//
// A template interpolates references and directs control flow with
// directives:
//
//	$name, ${name}      value of a variable, with optional formal braces
//	$a.b, $a.B(x)       member access: map keys, exported struct fields,
//	                    and methods; lowercase names also try their
//	                    exported spelling
//	$a[0], $a["k"]      index access on slices, arrays, and maps
//	#if (cond) ... #elseif (cond) ... #else ... #end
//	#foreach ($x in $list) ... #end
//	#set ($x = expr)
//	#macro (name $p1 $p2) ... #end, invoked as #name(args)
//	## line comment, #* block comment *#
//
// Directive arguments are expressions: literals, references, arithmetic and
// comparison operators, && || !, list literals [a, b], and integer ranges
// [lo..hi]. \$ and \# produce the literal character.
//
// Evaluation is strict. A reference to a variable that is not bound, a chain
// step that cannot be resolved, or an interpolation that produces nil fails
// the render with the template position instead of substituting empty text.
// Execute buffers its output, so a failed render writes nothing. A bound nil
// is still a value: #if treats nil, false, the empty string, and empty
// slices, arrays, and maps as false, which is how templates guard optional
// parts.
//
// #foreach iterates slices, arrays, maps (by ascending key, so rendering is
// deterministic), and values implementing Sequence. A Sequence is consumed
// lazily and can be looped over any number of times; inside a loop,
// $foreach.index, $foreach.count, $foreach.first, $foreach.last, and
// $foreach.hasNext describe the current iteration.
//
// Directives and comments that stand alone on a line leave no trace in the
// output: the line's indentation and trailing newline are consumed with the
// directive. References and macro invocations always render in place.
package velo

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/scanner"
)

// Error describes where in a template parsing or rendering failed and why.
type Error struct {
	msg string
	pos scanner.Position
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.pos, e.msg)
}

// Pos is the position in the template source at which the error occurred.
func (e *Error) Pos() scanner.Position {
	return e.pos
}

func errf(pos scanner.Position, format string, args ...interface{}) *Error {
	return &Error{msg: fmt.Sprintf(format, args...), pos: pos}
}

// Sequence is implemented by values that #foreach can traverse without
// materializing them. Iterator is called once per loop, so a Sequence can be
// looped over any number of times.
type Sequence interface {
	Iterator() Iterator
}

// Iterator produces the elements of a Sequence one at a time. Next returns
// false when the sequence is exhausted.
type Iterator interface {
	Next() (interface{}, bool)
}

// Template is a parsed template. It is immutable and safe for concurrent
// use; each render gets its own variable scope.
type Template struct {
	name   string
	nodes  []node
	macros map[string]*macroNode
}

// Parse parses template source. The name is used only in the positions
// carried by parse and rendering errors.
func Parse(name, src string) (*Template, error) {
	t := &Template{name: name, macros: map[string]*macroNode{}}
	p := &parser{in: newInput(name, src), t: t}
	nodes, _, err := p.parseBlock(nil)
	if err != nil {
		return nil, err
	}
	t.nodes = nodes
	return t, nil
}

// Name returns the name the template was parsed under.
func (t *Template) Name() string {
	return t.name
}

// Execute renders the template with the given variables and writes the
// result to w. Output is buffered until the whole template has rendered, so
// a failed render writes nothing. The variables map is not modified; #set
// assignments live in a per-render scope.
func (t *Template) Execute(w io.Writer, vars map[string]interface{}) error {
	var buf bytes.Buffer
	r := newRenderer(t, &buf, vars)
	if err := r.renderNodes(t.nodes); err != nil {
		return err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing rendered template %s: %w", t.name, err)
	}
	return nil
}

// Render renders the template with the given variables and returns the
// result.
func (t *Template) Render(vars map[string]interface{}) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, vars); err != nil {
		return "", err
	}
	return sb.String(), nil
}
