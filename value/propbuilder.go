package value

import (
	"strings"

	"go/types"

	"github.com/autogo-dev/autogo/processor"
	"github.com/autogo-dev/autogo/typeset"
)

// PropBuilder is a classified XxxBuilder method: the builder exposes a
// secondary builder of type Type that assembles property Prop piecemeal.
type PropBuilder struct {
	// Method is the classifier method on the value's builder interface.
	Method *types.Func
	Prop   *Property
	// Type is the secondary builder type B.
	Type types.Type
	// Factory constructs an empty B. When Method takes a comparator the
	// factory does too.
	Factory *types.Func
	// Build is B's method producing the finished property value.
	Build *types.Func
	// ToBuilder, when non-nil, converts an existing property value into a B.
	ToBuilder *types.Func
	// CopyAll, when ToBuilder is nil, copies an existing property value into
	// a fresh B. Named AddAll or PutAll.
	CopyAll *types.Func
}

// HasArg reports whether the classifier method takes a comparator argument.
func (pb *PropBuilder) HasArg() bool {
	return pb.Method.Type().(*types.Signature).Params().Len() == 1
}

// classifyPropBuilder checks the property-builder protocol for one classifier
// method and resolves the functions the generated code will call. Diagnostics
// abort generation for the value type.
func classifyPropBuilder(ctx *processor.Context, m *Model, b *Builder, mm typeset.Method, p *Property) *PropBuilder {
	pos := methodPos(ctx, mm)
	if p.Nullable {
		ctx.Reporter.Errorf(pos, "nullable property %s cannot have a property builder", p.Name)
		return nil
	}

	sig := mm.Obj.Type().(*types.Signature)
	bt := sig.Results().At(0).Type()
	core, _ := builderCore(bt)
	if core == nil || !nilable(bt) {
		ctx.Reporter.Errorf(pos, "property builder %s returns %s: expected a named interface or pointer builder type",
			mm.Obj.Name(), typeWithin(bt, m))
		return nil
	}

	pb := &PropBuilder{Method: mm.Obj, Prop: p, Type: bt}

	build := lookupMethod(bt, "Build")
	if build == nil || build.Type().(*types.Signature).Params().Len() != 0 || build.Type().(*types.Signature).Results().Len() != 1 {
		ctx.Reporter.Errorf(pos, "builder type %s has no Build method returning %s",
			typeWithin(bt, m), typeWithin(p.Type, m))
		return nil
	}
	if !typeset.EquivalentUnder(p.Type, build.Type().(*types.Signature).Results().At(0).Type(), b.corr) {
		ctx.Reporter.Errorf(pos, "Build method of %s returns %s, but property %s has type %s",
			typeWithin(bt, m), typeWithin(build.Type().(*types.Signature).Results().At(0).Type(), m),
			p.Name, typeWithin(p.Type, m))
		return nil
	}
	pb.Build = build

	pb.Factory = findBuilderFactory(m, b, mm, p, bt, core)
	if pb.Factory == nil {
		pkgs := factoryPackages(p.Type, core)
		paths := make([]string, len(pkgs))
		for i, pkg := range pkgs {
			paths[i] = pkg.Path()
		}
		where := strings.Join(paths, " or ")
		if sig.Params().Len() == 1 {
			ctx.Reporter.Errorf(pos, "cannot construct %s for property %s: expected an exported function OrderedBy(%s) in %s",
				typeWithin(bt, m), p.Name, typeWithin(sig.Params().At(0).Type(), m), where)
		} else {
			ctx.Reporter.Errorf(pos, "cannot construct %s for property %s: expected an exported function New%s, NewBuilder, or NaturalOrder in %s",
				typeWithin(bt, m), p.Name, core.Obj().Name(), where)
		}
		return nil
	}

	pb.ToBuilder = convertMethod(p.Type, bt, b.corr)
	if pb.ToBuilder == nil {
		pb.CopyAll = copyAllMethod(bt, p.Type, b.corr)
	}
	if pb.ToBuilder == nil && pb.CopyAll == nil {
		ctx.Reporter.Errorf(pos, "property %s of %s cannot be rebuilt from an existing value: expected a ToBuilder method on %s or an AddAll or PutAll method on %s",
			p.Name, m.Obj.Name(), typeWithin(p.Type, m), typeWithin(bt, m))
		return nil
	}
	return pb
}

// builderCore reduces a builder type reference to its named core: the named
// type itself, or the pointee of a pointer type. A second result reports the
// pointer case.
func builderCore(t types.Type) (*types.Named, bool) {
	switch t := t.(type) {
	case *types.Named:
		return t, false
	case *types.Pointer:
		named, _ := t.Elem().(*types.Named)
		return named, true
	}
	return nil, false
}

// factoryPackages lists the packages searched for a builder factory function:
// the property type's package, then the builder type's.
func factoryPackages(prop types.Type, core *types.Named) []*types.Package {
	var pkgs []*types.Package
	if named, _ := prop.(*types.Named); named != nil && named.Obj().Pkg() != nil {
		pkgs = append(pkgs, named.Obj().Pkg())
	}
	if pkg := core.Obj().Pkg(); pkg != nil {
		seen := false
		for _, p := range pkgs {
			if p == pkg {
				seen = true
			}
		}
		if !seen {
			pkgs = append(pkgs, pkg)
		}
	}
	return pkgs
}

// findBuilderFactory locates the exported function that produces an empty
// builder. Zero-parameter classifiers accept New<B>, NewBuilder, or
// NaturalOrder; one-parameter classifiers require OrderedBy with an
// equivalent comparator type. Generic factories are matched by result origin
// only.
func findBuilderFactory(m *Model, b *Builder, mm typeset.Method, p *Property, bt types.Type, core *types.Named) *types.Func {
	sig := mm.Obj.Type().(*types.Signature)
	names := []string{"New" + core.Obj().Name(), "NewBuilder", "NaturalOrder"}
	if sig.Params().Len() == 1 {
		names = []string{"OrderedBy"}
	}
	_, wantPtr := builderCore(bt)

	for _, pkg := range factoryPackages(p.Type, core) {
		for _, name := range names {
			fn, _ := pkg.Scope().Lookup(name).(*types.Func)
			if fn == nil || !fn.Exported() {
				continue
			}
			fsig := fn.Type().(*types.Signature)
			if fsig.Params().Len() != sig.Params().Len() || fsig.Results().Len() != 1 || fsig.Variadic() {
				continue
			}
			rcore, rptr := builderCore(fsig.Results().At(0).Type())
			if rcore == nil || rcore.Origin() != core.Origin() || rptr != wantPtr {
				continue
			}
			if fsig.Params().Len() == 1 && fsig.TypeParams().Len() == 0 &&
				!typeset.EquivalentUnder(sig.Params().At(0).Type(), fsig.Params().At(0).Type(), b.corr) {
				continue
			}
			return fn
		}
	}
	return nil
}

// convertMethod finds a zero-parameter ToBuilder method on the property type
// whose result is the builder type.
func convertMethod(prop, bt types.Type, corr *typeset.ParamCorrespondence) *types.Func {
	fn := lookupMethod(prop, "ToBuilder")
	if fn == nil {
		return nil
	}
	sig := fn.Type().(*types.Signature)
	if sig.Params().Len() != 0 || sig.Results().Len() != 1 {
		return nil
	}
	if !typeset.EquivalentUnder(sig.Results().At(0).Type(), bt, corr) {
		return nil
	}
	return fn
}

// copyAllMethod finds an AddAll or PutAll method on the builder type taking
// the property type.
func copyAllMethod(bt, prop types.Type, corr *typeset.ParamCorrespondence) *types.Func {
	for _, name := range []string{"AddAll", "PutAll"} {
		fn := lookupMethod(bt, name)
		if fn == nil {
			continue
		}
		sig := fn.Type().(*types.Signature)
		if sig.Params().Len() != 1 || sig.Variadic() {
			continue
		}
		if !typeset.EquivalentUnder(prop, sig.Params().At(0).Type(), corr) {
			continue
		}
		return fn
	}
	return nil
}

// lookupMethod resolves a method by name on t, including pointer-receiver
// methods when t is an addressable named type.
func lookupMethod(t types.Type, name string) *types.Func {
	u := t
	if _, isPtr := u.(*types.Pointer); !isPtr {
		if _, isIface := u.Underlying().(*types.Interface); !isIface {
			if _, isNamed := u.(*types.Named); isNamed {
				u = types.NewPointer(u)
			}
		}
	}
	if mm, ok := typeset.ResolveMethods(u).Lookup(name); ok {
		return mm.Obj
	}
	return nil
}
