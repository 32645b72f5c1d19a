package value

import (
	"fmt"
	"go/token"
	"go/types"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/autogo-dev/autogo/processor"
	"github.com/autogo-dev/autogo/typeset"
	"github.com/autogo-dev/autogo/validate"
)

// classify runs the per-interface half of the pipeline: accessor collection,
// the naming convention, and nullability. Builder discovery and classification
// happen afterwards, across the whole package, in attachBuilders. A nil result
// means the element could not be classified at all; a non-nil result may still
// be marked broken by a later stage.
func classify(ctx *processor.Context, el *processor.AnnotatedElement, builderTypes map[*types.TypeName]bool) *Model {
	pos := ctx.Fset.Position(el.Obj.Pos())
	tn, ok := el.Obj.(*types.TypeName)
	if !ok {
		ctx.Reporter.Internalf(pos, "@autogo.Value accepted on non-type element %s", el.Obj.Name())
		return nil
	}
	if !validate.Object(tn) {
		ctx.Reporter.Errorf(pos, "type %s has compilation errors; skipping value generation", tn.Name())
		return nil
	}
	named, _ := tn.Type().(*types.Named)
	if named == nil {
		ctx.Reporter.Errorf(pos, "@autogo.Value applies to named interface types, not %s", tn.Name())
		return nil
	}
	iface, _ := named.Underlying().(*types.Interface)
	if iface == nil {
		ctx.Reporter.Internalf(pos, "@autogo.Value accepted on non-interface type %s", tn.Name())
		return nil
	}

	m := &Model{Obj: tn, Named: named, Iface: iface, element: el}
	if !m.collectAccessors(ctx, builderTypes) {
		m.broken = true
	}
	return m
}

// collectAccessors walks the interface's method set in declaration order,
// recognizing the generated-surface methods, the builder conversion method,
// and property accessors, and then applies the naming convention and the
// nullability annotation.
func (m *Model) collectAccessors(ctx *processor.Context, builderTypes map[*types.TypeName]bool) bool {
	methods := declarationOrder(typeset.ResolveMethods(m.Named).All())
	ok := true

	var accessors []typeset.Method
	for _, mm := range methods {
		sig := mm.Obj.Type().(*types.Signature)
		name := mm.Obj.Name()
		switch {
		case name == "String" && isNiladic(sig) && isBasicResult(sig, types.String):
			m.HasString = true
			continue
		case name == "Hash" && isNiladic(sig) && isBasicResult(sig, types.Uint64):
			m.HasHash = true
			continue
		case name == "Equal" && isEqualSignature(sig, m.Named):
			m.HasEqual = true
			continue
		}
		if sig.Params().Len() == 0 && sig.Results().Len() == 1 && !sig.Variadic() {
			if rtn := resultTypeName(sig); rtn != nil && builderTypes[rtn] {
				if m.ToBuilder != nil {
					ctx.Reporter.Errorf(methodPos(ctx, mm),
						"%s already converts to its builder through %s; %s cannot also return the builder",
						m.Obj.Name(), m.ToBuilder.Name(), name)
					ok = false
					continue
				}
				m.ToBuilder = mm.Obj
				continue
			}
			accessors = append(accessors, mm)
			continue
		}
		ctx.Reporter.Errorf(methodPos(ctx, mm),
			"method %s%s cannot be implemented by the generated value type: properties are declared by methods with no parameters and one result",
			name, viaClause(m, mm))
		ok = false
	}

	usePrefix := len(accessors) > 0
	for _, a := range accessors {
		if _, prefixed := accessorSuffix(a.Obj); !prefixed {
			usePrefix = false
			break
		}
	}

	seen := map[string]*types.Func{}
	for _, a := range accessors {
		base := a.Obj.Name()
		if usePrefix {
			base, _ = accessorSuffix(a.Obj)
		}
		prop := decapitalize(base)
		if prev, dup := seen[prop]; dup {
			ctx.Reporter.Errorf(methodPos(ctx, a),
				"methods %s and %s of %s both map to property %s", prev.Name(), a.Obj.Name(), m.Obj.Name(), prop)
			ok = false
			continue
		}
		seen[prop] = a.Obj
		m.Props = append(m.Props, &Property{
			Name:     prop,
			Accessor: a.Obj,
			Type:     a.Obj.Type().(*types.Signature).Results().At(0).Type(),
		})
	}

	// field names must not collide with the implementation's method set,
	// which an unexported accessor like name() would otherwise do
	used := map[string]bool{"String": true, "Equal": true, "Hash": true}
	for _, mm := range methods {
		used[mm.Obj.Name()] = true
	}
	for _, p := range m.Props {
		f := fieldName(p.Name)
		for used[f] {
			f += "_"
		}
		used[f] = true
		p.Field = f
	}

	for _, p := range m.Props {
		ae := ctx.AllElementsByObject[p.Accessor]
		if ae == nil {
			continue
		}
		annos := ae.FindAnnotations(autogoPkgPath, "Nullable")
		if len(annos) == 0 {
			continue
		}
		if !nilable(p.Type) {
			ctx.Reporter.Errorf(annos[0].Pos,
				"property %s has type %s, which cannot be nil", p.Name, typeWithin(p.Type, m))
			ok = false
			continue
		}
		p.Nullable = true
	}
	return ok
}

// declarationOrder sorts resolved methods the way they appear in source:
// methods declared directly on the interface first, in file position order,
// then methods contributed by embeds, again by position within each depth.
func declarationOrder(methods []typeset.Method) []typeset.Method {
	sorted := make([]typeset.Method, len(methods))
	copy(sorted, methods)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Depth != sorted[j].Depth {
			return sorted[i].Depth < sorted[j].Depth
		}
		return sorted[i].Obj.Pos() < sorted[j].Obj.Pos()
	})
	return sorted
}

func methodPos(ctx *processor.Context, m typeset.Method) token.Position {
	return ctx.Fset.Position(m.Obj.Pos())
}

// viaClause attributes a method contributed by an embedded interface to the
// embed that contributed it.
func viaClause(m *Model, mm typeset.Method) string {
	if len(mm.Via) == 0 {
		return ""
	}
	return fmt.Sprintf(" (embedded via %s)", typeWithin(mm.Via[0], m))
}

func typeWithin(t types.Type, m *Model) string {
	return types.TypeString(t, types.RelativeTo(m.Obj.Pkg()))
}

func isNiladic(sig *types.Signature) bool {
	return sig.Params().Len() == 0 && sig.Results().Len() == 1 && !sig.Variadic()
}

func isBasicResult(sig *types.Signature, kind types.BasicKind) bool {
	b, ok := sig.Results().At(0).Type().(*types.Basic)
	return ok && b.Kind() == kind
}

func isEqualSignature(sig *types.Signature, self *types.Named) bool {
	if sig.Params().Len() != 1 || sig.Results().Len() != 1 || sig.Variadic() {
		return false
	}
	if !isBasicResult(sig, types.Bool) {
		return false
	}
	return typeset.Equivalent(sig.Params().At(0).Type(), selfType(self))
}

func resultTypeName(sig *types.Signature) *types.TypeName {
	named, _ := sig.Results().At(0).Type().(*types.Named)
	if named == nil {
		return nil
	}
	return named.Obj()
}

// accessorSuffix returns the accessor's name with its convention prefix
// stripped: Get followed by an upper-case letter, or Is for bool results.
func accessorSuffix(f *types.Func) (string, bool) {
	name := f.Name()
	if rest, ok := strings.CutPrefix(name, "Get"); ok && startsUpper(rest) {
		return rest, true
	}
	if rest, ok := strings.CutPrefix(name, "Is"); ok && startsUpper(rest) {
		if b, isBasic := f.Type().(*types.Signature).Results().At(0).Type().(*types.Basic); isBasic && b.Kind() == types.Bool {
			return rest, true
		}
	}
	return name, false
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && unicode.IsUpper(r)
}

func decapitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// fieldName guards property names that happen to be Go keywords, which would
// be illegal as struct field or parameter names.
func fieldName(prop string) string {
	if token.IsKeyword(prop) {
		return prop + "_"
	}
	return prop
}

// nilable reports whether t can hold nil. Type parameters are never
// considered nilable, whatever their constraint allows.
func nilable(t types.Type) bool {
	if _, isParam := t.(*types.TypeParam); isParam {
		return false
	}
	switch t.Underlying().(type) {
	case *types.Pointer, *types.Slice, *types.Map, *types.Chan, *types.Signature, *types.Interface:
		return true
	}
	return false
}

// selfType instantiates a generic named type with its own type parameters, so
// that a method result written as the declaration's own name compares equal
// to it. Non-generic types are returned unchanged.
func selfType(n *types.Named) types.Type {
	tps := n.TypeParams()
	if tps.Len() == 0 {
		return n
	}
	args := make([]types.Type, tps.Len())
	for i := range args {
		args[i] = tps.At(i)
	}
	inst, err := types.Instantiate(nil, n.Origin(), args, false)
	if err != nil {
		return n
	}
	return inst
}
