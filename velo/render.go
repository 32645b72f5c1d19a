package velo

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// maxMacroDepth bounds macro recursion.
const maxMacroDepth = 64

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type renderer struct {
	t      *Template
	out    *bytes.Buffer
	scopes []map[string]interface{}
	depth  int
}

func newRenderer(t *Template, out *bytes.Buffer, vars map[string]interface{}) *renderer {
	root := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		root[k] = v
	}
	return &renderer{t: t, out: out, scopes: []map[string]interface{}{root}}
}

func (r *renderer) lookup(name string) (interface{}, bool) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if v, ok := r.scopes[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

// assign writes to the innermost scope that already binds the name, or to
// the root scope when the name is new. Loop variables and macro parameters
// shadow; everything else accumulates at the root, so a #set made inside a
// loop survives it.
func (r *renderer) assign(name string, v interface{}) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if _, ok := r.scopes[i][name]; ok {
			r.scopes[i][name] = v
			return
		}
	}
	r.scopes[0][name] = v
}

func (r *renderer) push(frame map[string]interface{}) {
	r.scopes = append(r.scopes, frame)
}

func (r *renderer) pop() {
	r.scopes = r.scopes[:len(r.scopes)-1]
}

func (r *renderer) renderNodes(nodes []node) *Error {
	for _, n := range nodes {
		if err := r.renderNode(n); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) renderNode(n node) *Error {
	switch n := n.(type) {
	case *textNode:
		r.out.WriteString(n.text)
	case *refNode:
		v, err := r.resolve(n.ref)
		if err != nil {
			return err
		}
		return r.writeValue(n.ref, v)
	case *ifNode:
		for _, arm := range n.arms {
			v, err := r.eval(arm.cond)
			if err != nil {
				return err
			}
			if truthy(v) {
				return r.renderNodes(arm.body)
			}
		}
		return r.renderNodes(n.elseBody)
	case *foreachNode:
		return r.renderForeach(n)
	case *setNode:
		v, err := r.eval(n.val)
		if err != nil {
			return err
		}
		r.assign(n.name, v)
	case *macroNode:
		// definitions render to nothing
	case *callNode:
		return r.renderCall(n)
	default:
		panic(fmt.Sprintf("velo: unknown node type %T", n))
	}
	return nil
}

func (r *renderer) renderCall(n *callNode) *Error {
	m, ok := r.t.macros[n.name]
	if !ok {
		return errf(n.p, "undefined macro #%s", n.name)
	}
	if len(n.args) != len(m.params) {
		return errf(n.p, "macro %s takes %d arguments, got %d", m.name, len(m.params), len(n.args))
	}
	if r.depth >= maxMacroDepth {
		return errf(n.p, "macro %s exceeds the recursion limit", n.name)
	}
	frame := make(map[string]interface{}, len(m.params))
	for i, a := range n.args {
		v, err := r.eval(a)
		if err != nil {
			return err
		}
		frame[m.params[i]] = v
	}
	r.depth++
	r.push(frame)
	err := r.renderNodes(m.body)
	r.pop()
	r.depth--
	return err
}

func (r *renderer) renderForeach(n *foreachNode) *Error {
	v, err := r.eval(n.seq)
	if err != nil {
		return err
	}
	it, err := r.iterator(n, v)
	if err != nil {
		return err
	}
	info := map[string]interface{}{}
	frame := map[string]interface{}{"foreach": info}
	r.push(frame)
	defer r.pop()
	// one element of lookahead keeps $foreach.hasNext honest for lazy
	// sequences
	next, ok := it.Next()
	for idx := 0; ok; idx++ {
		cur := next
		next, ok = it.Next()
		frame[n.name] = cur
		info["index"] = int64(idx)
		info["count"] = int64(idx + 1)
		info["first"] = idx == 0
		info["hasNext"] = ok
		info["last"] = !ok
		if err := r.renderNodes(n.body); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) iterator(n *foreachNode, v interface{}) (Iterator, *Error) {
	switch s := v.(type) {
	case nil:
		return nil, errf(n.p, "#foreach cannot loop over nil")
	case Sequence:
		return s.Iterator(), nil
	case Iterator:
		return s, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return &sliceIterator{v: rv}, nil
	case reflect.Map:
		keys := rv.MapKeys()
		sortKeys(keys)
		return &mapIterator{v: rv, keys: keys}, nil
	}
	return nil, errf(n.p, "#foreach cannot loop over %s", typeName(v))
}

type sliceIterator struct {
	v reflect.Value
	i int
}

func (it *sliceIterator) Next() (interface{}, bool) {
	if it.i >= it.v.Len() {
		return nil, false
	}
	e := it.v.Index(it.i).Interface()
	it.i++
	return e, true
}

// mapIterator yields map values ordered by their keys.
type mapIterator struct {
	v    reflect.Value
	keys []reflect.Value
	i    int
}

func (it *mapIterator) Next() (interface{}, bool) {
	if it.i >= len(it.keys) {
		return nil, false
	}
	e := it.v.MapIndex(it.keys[it.i]).Interface()
	it.i++
	return e, true
}

func sortKeys(keys []reflect.Value) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		switch a.Kind() {
		case reflect.String:
			return a.String() < b.String()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return a.Int() < b.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return a.Uint() < b.Uint()
		}
		return fmt.Sprint(a.Interface()) < fmt.Sprint(b.Interface())
	})
}

func (r *renderer) eval(e expr) (interface{}, *Error) {
	switch e := e.(type) {
	case *litExpr:
		return e.val, nil
	case *reference:
		return r.resolve(e)
	case *listExpr:
		elems := make([]interface{}, len(e.elems))
		for i, el := range e.elems {
			v, err := r.eval(el)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return elems, nil
	case *rangeExpr:
		return r.evalRange(e)
	case *unaryExpr:
		return r.evalUnary(e)
	case *binaryExpr:
		return r.evalBinary(e)
	}
	panic(fmt.Sprintf("velo: unknown expression type %T", e))
}

func (r *renderer) evalRange(e *rangeExpr) (interface{}, *Error) {
	lo, err := r.evalInt(e.lo)
	if err != nil {
		return nil, err
	}
	hi, err := r.evalInt(e.hi)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	if lo <= hi {
		for i := lo; i <= hi; i++ {
			out = append(out, i)
		}
	} else {
		for i := lo; i >= hi; i-- {
			out = append(out, i)
		}
	}
	return out, nil
}

func (r *renderer) evalInt(e expr) (int64, *Error) {
	v, err := r.eval(e)
	if err != nil {
		return 0, err
	}
	i, ok := asInt(v)
	if !ok {
		return 0, errf(e.pos(), "range bound must be an integer, got %s", typeName(v))
	}
	return i, nil
}

func (r *renderer) evalUnary(e *unaryExpr) (interface{}, *Error) {
	v, err := r.eval(e.x)
	if err != nil {
		return nil, err
	}
	switch e.op {
	case "!":
		return !truthy(v), nil
	case "-":
		n, ok := asNumber(v)
		if !ok {
			return nil, errf(e.p, "cannot negate %s", typeName(v))
		}
		if n.isInt {
			return -n.i, nil
		}
		return -n.f, nil
	}
	panic("velo: unknown unary operator " + e.op)
}

func (r *renderer) evalBinary(e *binaryExpr) (interface{}, *Error) {
	if e.op == "&&" || e.op == "||" {
		left, err := r.eval(e.x)
		if err != nil {
			return nil, err
		}
		if e.op == "&&" && !truthy(left) {
			return false, nil
		}
		if e.op == "||" && truthy(left) {
			return true, nil
		}
		right, err := r.eval(e.y)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	}
	left, err := r.eval(e.x)
	if err != nil {
		return nil, err
	}
	right, err := r.eval(e.y)
	if err != nil {
		return nil, err
	}
	switch e.op {
	case "==":
		return equal(left, right), nil
	case "!=":
		return !equal(left, right), nil
	case "<", "<=", ">", ">=":
		return r.compare(e, left, right)
	}
	return r.arith(e, left, right)
}

// equal compares numbers numerically regardless of width and everything
// else structurally.
func equal(a, b interface{}) bool {
	an, aok := asNumber(a)
	bn, bok := asNumber(b)
	if aok && bok {
		if an.isInt && bn.isInt {
			return an.i == bn.i
		}
		return an.float() == bn.float()
	}
	return reflect.DeepEqual(a, b)
}

func (r *renderer) compare(e *binaryExpr, a, b interface{}) (interface{}, *Error) {
	var c int
	as, asOK := a.(string)
	bs, bsOK := b.(string)
	if asOK && bsOK {
		c = strings.Compare(as, bs)
	} else {
		an, aok := asNumber(a)
		bn, bok := asNumber(b)
		if !aok || !bok {
			return nil, errf(e.opPos, "cannot compare %s and %s with %s", typeName(a), typeName(b), e.op)
		}
		switch {
		case an.isInt && bn.isInt && an.i < bn.i:
			c = -1
		case an.isInt && bn.isInt && an.i > bn.i:
			c = 1
		case an.isInt && bn.isInt:
			c = 0
		case an.float() < bn.float():
			c = -1
		case an.float() > bn.float():
			c = 1
		}
	}
	switch e.op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	}
	return c >= 0, nil
}

func (r *renderer) arith(e *binaryExpr, a, b interface{}) (interface{}, *Error) {
	if e.op == "+" {
		if as, ok := a.(string); ok {
			return as + stringify(b), nil
		}
		if bs, ok := b.(string); ok {
			return stringify(a) + bs, nil
		}
	}
	an, aok := asNumber(a)
	bn, bok := asNumber(b)
	if !aok || !bok {
		return nil, errf(e.opPos, "cannot apply %s to %s and %s", e.op, typeName(a), typeName(b))
	}
	if an.isInt && bn.isInt {
		switch e.op {
		case "+":
			return an.i + bn.i, nil
		case "-":
			return an.i - bn.i, nil
		case "*":
			return an.i * bn.i, nil
		case "/":
			if bn.i == 0 {
				return nil, errf(e.opPos, "division by zero")
			}
			return an.i / bn.i, nil
		case "%":
			if bn.i == 0 {
				return nil, errf(e.opPos, "division by zero")
			}
			return an.i % bn.i, nil
		}
	}
	if e.op == "%" {
		return nil, errf(e.opPos, "%% requires integer operands")
	}
	af, bf := an.float(), bn.float()
	switch e.op {
	case "+":
		return af + bf, nil
	case "-":
		return af - bf, nil
	case "*":
		return af * bf, nil
	case "/":
		return af / bf, nil
	}
	panic("velo: unknown binary operator " + e.op)
}

func (r *renderer) resolve(ref *reference) (interface{}, *Error) {
	v, ok := r.lookup(ref.name)
	if !ok {
		return nil, errf(ref.p, "undefined variable $%s", ref.name)
	}
	for i := range ref.chain {
		var err *Error
		v, err = r.resolveStep(&ref.chain[i], v)
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (r *renderer) resolveStep(st *step, v interface{}) (interface{}, *Error) {
	switch st.kind {
	case stepIndex:
		idx, err := r.eval(st.args[0])
		if err != nil {
			return nil, err
		}
		return indexValue(st, v, idx)
	case stepCall:
		args := make([]interface{}, len(st.args))
		for i, a := range st.args {
			av, err := r.eval(a)
			if err != nil {
				return nil, err
			}
			args[i] = av
		}
		return callMember(st, v, args)
	}
	return member(st, v)
}

// member resolves a plain access step: a map entry, an exported struct
// field, or a method called with no arguments, in that order.
func member(st *step, v interface{}) (interface{}, *Error) {
	if v == nil {
		return nil, errf(st.p, "cannot access .%s on a nil value", st.name)
	}
	mv, found, err := memberValue(st, v)
	if err != nil {
		return nil, err
	}
	if found {
		return mv, nil
	}
	if m, ok := methodByName(v, st.name); ok {
		return callMethod(st, m, nil)
	}
	return nil, errf(st.p, "%s has no member %q", typeName(v), st.name)
}

// callMember resolves a call step: a method, or a func-valued map entry or
// field.
func callMember(st *step, v interface{}, args []interface{}) (interface{}, *Error) {
	if v == nil {
		return nil, errf(st.p, "cannot call .%s on a nil value", st.name)
	}
	if m, ok := methodByName(v, st.name); ok {
		return callMethod(st, m, args)
	}
	mv, found, err := memberValue(st, v)
	if err != nil {
		return nil, err
	}
	if found && mv != nil {
		if fv := reflect.ValueOf(mv); fv.Kind() == reflect.Func {
			return callMethod(st, fv, args)
		}
	}
	return nil, errf(st.p, "%s has no method %q", typeName(v), st.name)
}

// memberValue looks for a map entry or an exported struct field named by
// the step, trying the exported spelling of lowercase names for fields.
func memberValue(st *step, v interface{}) (interface{}, bool, *Error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false, errf(st.p, "cannot access .%s on a nil value", st.name)
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false, nil
		}
		mv := rv.MapIndex(reflect.ValueOf(st.name).Convert(rv.Type().Key()))
		if mv.IsValid() {
			return mv.Interface(), true, nil
		}
	case reflect.Struct:
		for _, name := range memberNames(st.name) {
			sf, ok := rv.Type().FieldByName(name)
			if !ok || sf.PkgPath != "" {
				continue
			}
			return rv.FieldByIndex(sf.Index).Interface(), true, nil
		}
	}
	return nil, false, nil
}

func memberNames(name string) []string {
	if e := exported(name); e != name {
		return []string{name, e}
	}
	return []string{name}
}

// exported returns the name with its first rune upper-cased.
func exported(name string) string {
	r := []rune(name)
	if len(r) == 0 {
		return name
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// methodByName finds a method on v, trying the exported spelling of
// lowercase names, and a pointer copy so that pointer-receiver methods are
// reachable from values.
func methodByName(v interface{}, name string) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return reflect.Value{}, false
	}
	for _, n := range memberNames(name) {
		if m := rv.MethodByName(n); m.IsValid() {
			return m, true
		}
	}
	if rv.Kind() != reflect.Ptr {
		pv := reflect.New(rv.Type())
		pv.Elem().Set(rv)
		for _, n := range memberNames(name) {
			if m := pv.MethodByName(n); m.IsValid() {
				return m, true
			}
		}
	}
	return reflect.Value{}, false
}

// callMethod invokes m with the given arguments, recovering panics into
// rendering errors. Methods may return nothing, one value, or a value and
// an error.
func callMethod(st *step, m reflect.Value, args []interface{}) (res interface{}, rerr *Error) {
	mt := m.Type()
	fixed := mt.NumIn()
	if mt.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, errf(st.p, "%s takes at least %d arguments, got %d", st.name, fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, errf(st.p, "%s takes %d arguments, got %d", st.name, fixed, len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		var pt reflect.Type
		if i < fixed {
			pt = mt.In(i)
		} else {
			pt = mt.In(mt.NumIn() - 1).Elem()
		}
		av, err := convertArg(st, i, a, pt)
		if err != nil {
			return nil, err
		}
		in[i] = av
	}
	defer func() {
		if p := recover(); p != nil {
			res, rerr = nil, errf(st.p, "%s panicked: %v", st.name, p)
		}
	}()
	out := m.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	case 2:
		if mt.Out(1) == errorType {
			if ev := out[1].Interface(); ev != nil {
				return nil, errf(st.p, "%s failed: %v", st.name, ev.(error))
			}
			return out[0].Interface(), nil
		}
	}
	return nil, errf(st.p, "%s has an unsupported signature %s", st.name, mt)
}

func convertArg(st *step, i int, v interface{}, pt reflect.Type) (reflect.Value, *Error) {
	if v == nil {
		switch pt.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(pt), nil
		}
		return reflect.Value{}, errf(st.p, "argument %d of %s cannot be nil", i+1, st.name)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(pt) {
		return rv, nil
	}
	if isNumericKind(rv.Kind()) && isNumericKind(pt.Kind()) {
		return rv.Convert(pt), nil
	}
	return reflect.Value{}, errf(st.p, "argument %d of %s: cannot use %s as %s", i+1, st.name, typeName(v), pt)
}

func indexValue(st *step, v interface{}, idx interface{}) (interface{}, *Error) {
	if v == nil {
		return nil, errf(st.p, "cannot index a nil value")
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, errf(st.p, "cannot index a nil value")
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		i, ok := asInt(idx)
		if !ok {
			return nil, errf(st.p, "index must be an integer, got %s", typeName(idx))
		}
		if i < 0 || i >= int64(rv.Len()) {
			return nil, errf(st.p, "index %d out of range for length %d", i, rv.Len())
		}
		return rv.Index(int(i)).Interface(), nil
	case reflect.Map:
		kt := rv.Type().Key()
		var kv reflect.Value
		iv := reflect.ValueOf(idx)
		switch {
		case idx == nil:
			return nil, errf(st.p, "map key cannot be nil")
		case iv.Type().AssignableTo(kt):
			kv = iv
		case isNumericKind(iv.Kind()) && isNumericKind(kt.Kind()):
			kv = iv.Convert(kt)
		default:
			return nil, errf(st.p, "cannot use %s as a key of %s", typeName(idx), rv.Type())
		}
		mv := rv.MapIndex(kv)
		if !mv.IsValid() {
			return nil, errf(st.p, "map has no entry for key %v", idx)
		}
		return mv.Interface(), nil
	}
	return nil, errf(st.p, "cannot index %s", typeName(v))
}

func (r *renderer) writeValue(ref *reference, v interface{}) *Error {
	if v == nil || isNilValue(v) {
		return errf(ref.p, "reference %s resolved to nil", ref.text)
	}
	r.out.WriteString(stringify(v))
	return nil
}

// isNilValue reports whether v is a typed nil, which renders no better than
// an untyped one.
func isNilValue(v interface{}) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// truthy decides #if: nil, false, the empty string, and empty slices,
// arrays, and maps are false; every other value, including zero numbers, is
// true.
func truthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface, reflect.Func, reflect.Chan:
		return !rv.IsNil()
	}
	return true
}

// stringify renders a value the way interpolation does. The caller has
// already rejected nil.
func stringify(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}

func typeName(v interface{}) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}

// number is a numeric operand: integer kinds stay exact, float kinds carry
// a float64.
type number struct {
	i     int64
	f     float64
	isInt bool
}

func (n number) float() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

func asNumber(v interface{}) (number, bool) {
	if v == nil {
		return number{}, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return number{i: rv.Int(), isInt: true}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return number{i: int64(rv.Uint()), isInt: true}, true
	case reflect.Float32, reflect.Float64:
		return number{f: rv.Float()}, true
	}
	return number{}, false
}

func asInt(v interface{}) (int64, bool) {
	n, ok := asNumber(v)
	if !ok || !n.isInt {
		return 0, false
	}
	return n.i, true
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
