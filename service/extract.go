package service

import (
	"go/token"
	"go/types"
	"strings"

	"github.com/autogo-dev/autogo/processor"
	"github.com/autogo-dev/autogo/typeset"
	"github.com/autogo-dev/autogo/validate"
)

// extract decodes and validates one @autogo.Service declaration. A nil
// result means the declaration was rejected; the diagnostics are already on
// the reporter.
func extract(ctx *processor.Context, el *processor.AnnotatedElement) *Decl {
	pos := ctx.Fset.Position(el.Obj.Pos())
	tn, ok := el.Obj.(*types.TypeName)
	if !ok {
		ctx.Reporter.Internalf(pos, "@autogo.Service accepted on non-type element %s", el.Obj.Name())
		return nil
	}
	if !validate.Object(tn) {
		ctx.Reporter.Errorf(pos, "type %s has compilation errors; skipping service registration", tn.Name())
		return nil
	}
	if tn.IsAlias() {
		ctx.Reporter.Errorf(pos, "cannot register type alias %s as a service", tn.Name())
		return nil
	}
	named, ok := tn.Type().(*types.Named)
	if !ok || types.IsInterface(named) {
		ctx.Reporter.Internalf(pos, "@autogo.Service accepted on non-concrete type %s", tn.Name())
		return nil
	}
	if named.TypeParams().Len() > 0 {
		ctx.Reporter.Errorf(pos, "cannot register generic type %s as a service", tn.Name())
		return nil
	}
	if !tn.Exported() {
		ctx.Reporter.Errorf(pos, "service type %s must be exported", tn.Name())
		return nil
	}

	d := &Decl{Obj: tn, Named: named}

	mirrors := el.FindAnnotations(autogoPkgPath, "Service")
	if len(mirrors) == 0 {
		ctx.Reporter.Internalf(pos, "element %s has no @autogo.Service annotation", tn.Name())
		return nil
	}
	if !validate.Mirror(mirrors[0]) {
		ctx.Reporter.Internalf(pos, "malformed @autogo.Service annotation on %s", tn.Name())
		return nil
	}
	vals, err := mirrors[0].ValuesWithDefaults()
	if err != nil {
		ctx.Reporter.Report(err)
		return nil
	}

	valid := true
	for _, entry := range vals {
		switch entry.Field.Name() {
		case "Implements":
			valid = d.setImplements(ctx, entry) && valid
		}
	}
	if valid && len(d.Implements) == 0 {
		ctx.Reporter.Errorf(pos, "service type %s must list at least one interface in Implements", tn.Name())
		valid = false
	}
	if !valid {
		return nil
	}

	if !d.checkImplements(ctx) {
		return nil
	}
	if !d.checkConstructible(ctx, pos) {
		return nil
	}
	return d
}

func (d *Decl) setImplements(ctx *processor.Context, entry processor.AnnotationStructEntry) bool {
	if entry.Value.Kind != processor.KindSlice {
		return true
	}
	valid := true
	for _, v := range entry.Value.AsSlice() {
		if v.Kind == processor.KindNil {
			ctx.Reporter.Errorf(v.Pos, "Implements contains a nil entry")
			valid = false
			continue
		}
		tn := v.AsType()
		named, _ := tn.Type().(*types.Named)
		if named == nil || !types.IsInterface(named) {
			ctx.Reporter.Errorf(v.Pos, "type %s in Implements is not an interface", tn.Name())
			valid = false
			continue
		}
		if named.TypeParams().Len() > 0 {
			ctx.Reporter.Errorf(v.Pos, "cannot implement generic interface %s", tn.Name())
			valid = false
			continue
		}
		if !typeset.VisibleFrom(tn, ctx.Package.Types) {
			ctx.Reporter.Errorf(v.Pos, "interface %s is not visible from %s", tn.Name(), ctx.Package.Types.Path())
			valid = false
			continue
		}
		d.Implements = append(d.Implements, named)
		d.implPos = append(d.implPos, v.Pos)
	}
	return valid
}

// checkImplements verifies that the type satisfies every listed interface,
// counting the pointer type's method set, and records whether registrations
// must take the instance's address.
func (d *Decl) checkImplements(ctx *processor.Context) bool {
	ptr := types.NewPointer(d.Named)
	valid := true
	for i, ifaceT := range d.Implements {
		iface := ifaceT.Underlying().(*types.Interface)
		missing := typeset.MissingMethods(ptr, iface)
		if len(missing) > 0 {
			names := make([]string, len(missing))
			for j, m := range missing {
				names[j] = m.Name()
			}
			noun := "method"
			if len(names) > 1 {
				noun = "methods"
			}
			ctx.Reporter.Errorf(d.implPos[i], "%s does not implement %s: missing %s %s",
				d.Obj.Name(), typeIn(ctx, ifaceT), noun, strings.Join(names, ", "))
			valid = false
			continue
		}
		if len(typeset.MissingMethods(d.Named, iface)) > 0 {
			d.needPtr = true
		}
	}
	return valid
}

// checkConstructible determines how registrations build instances: the
// package's no-arg constructor when it declares exactly one, the zero value
// otherwise.
func (d *Decl) checkConstructible(ctx *processor.Context, pos token.Position) bool {
	ctors := typeset.NoArgConstructors(d.Named)
	switch {
	case len(ctors) > 1:
		names := make([]string, len(ctors))
		for i, c := range ctors {
			names[i] = c.Name()
		}
		ctx.Reporter.Errorf(pos, "service type %s has ambiguous no-arg constructors: %s",
			d.Obj.Name(), strings.Join(names, ", "))
		return false
	case len(ctors) == 1:
		_, ptr := ctors[0].Type().(*types.Signature).Results().At(0).Type().(*types.Pointer)
		d.Ctor = ctors[0]
		d.CtorPtr = ptr
	default:
		// no constructor: the zero value serves, but only when it is safe
		// to leave every field zero
		switch u := d.Named.Underlying().(type) {
		case *types.Struct:
			for i := 0; i < u.NumFields(); i++ {
				if !u.Field(i).Exported() {
					ctx.Reporter.Errorf(pos, "service type %s must have a no-arg constructor", d.Obj.Name())
					return false
				}
			}
		case *types.Basic:
		default:
			ctx.Reporter.Errorf(pos, "service type %s must have a no-arg constructor", d.Obj.Name())
			return false
		}
	}
	return true
}

func typeIn(ctx *processor.Context, t types.Type) string {
	return types.TypeString(t, types.RelativeTo(ctx.Package.Types))
}
