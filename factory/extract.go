package factory

import (
	"go/token"
	"go/types"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/autogo-dev/autogo/processor"
	"github.com/autogo-dev/autogo/typeset"
	"github.com/autogo-dev/autogo/validate"
)

// extract decodes and validates one @autogo.Factory declaration. A nil
// result means the declaration was rejected; the diagnostics are already on
// the reporter.
func extract(ctx *processor.Context, el *processor.AnnotatedElement) *Decl {
	pos := ctx.Fset.Position(el.Obj.Pos())
	fn, ok := el.Obj.(*types.Func)
	if !ok {
		ctx.Reporter.Internalf(pos, "@autogo.Factory accepted on non-function element %s", el.Obj.Name())
		return nil
	}
	if !validate.Object(fn) {
		ctx.Reporter.Errorf(pos, "function %s has compilation errors; skipping factory generation", fn.Name())
		return nil
	}
	sig := fn.Type().(*types.Signature)
	if sig.Recv() != nil {
		ctx.Reporter.Internalf(pos, "@autogo.Factory accepted on method %s", fn.Name())
		return nil
	}
	if sig.TypeParams().Len() > 0 {
		ctx.Reporter.Errorf(pos, "cannot generate a factory for generic function %s", fn.Name())
		return nil
	}

	d := &Decl{Fn: fn}
	if !d.checkResults(ctx, pos) {
		return nil
	}

	mirrors := el.FindAnnotations(autogoPkgPath, "Factory")
	if len(mirrors) == 0 {
		ctx.Reporter.Internalf(pos, "element %s has no @autogo.Factory annotation", fn.Name())
		return nil
	}
	if !validate.Mirror(mirrors[0]) {
		ctx.Reporter.Internalf(pos, "malformed @autogo.Factory annotation on %s", fn.Name())
		return nil
	}
	vals, err := mirrors[0].ValuesWithDefaults()
	if err != nil {
		ctx.Reporter.Report(err)
		return nil
	}

	valid := true
	var provided []processor.AnnotationValue
	for _, entry := range vals {
		switch entry.Field.Name() {
		case "Name":
			valid = d.setName(ctx, entry) && valid
		case "Provided":
			if entry.Value.Kind == processor.KindSlice {
				provided = entry.Value.AsSlice()
			}
		case "Embed":
			valid = d.setEmbed(ctx, entry) && valid
		case "Implements":
			valid = d.setImplements(ctx, entry) && valid
		}
	}
	valid = d.partition(ctx, pos, provided) && valid
	if !valid {
		return nil
	}

	d.assignProviderFields()
	if !d.checkImplements(ctx) {
		return nil
	}
	if !checkDeclarable(ctx, d, d.Name) || !checkDeclarable(ctx, d, "New"+d.Name) {
		return nil
	}
	return d
}

func (d *Decl) checkResults(ctx *processor.Context, pos token.Position) bool {
	results := d.Fn.Type().(*types.Signature).Results()
	switch {
	case results.Len() == 0:
		ctx.Reporter.Errorf(pos, "factory function %s returns nothing; it must return the constructed value", d.Fn.Name())
		return false
	case results.Len() == 1 && isError(results.At(0).Type()):
		ctx.Reporter.Errorf(pos, "factory function %s returns only an error", d.Fn.Name())
		return false
	case results.Len() == 2 && !isError(results.At(1).Type()):
		ctx.Reporter.Errorf(pos, "factory function %s must return an error as its second result, not %s",
			d.Fn.Name(), typeIn(ctx, results.At(1).Type()))
		return false
	case results.Len() > 2:
		ctx.Reporter.Errorf(pos, "factory function %s returns %d values; factories support one result and an optional error",
			d.Fn.Name(), results.Len())
		return false
	}
	d.Target = results.At(0).Type()
	d.ReturnsErr = results.Len() == 2
	return true
}

func (d *Decl) setName(ctx *processor.Context, entry processor.AnnotationStructEntry) bool {
	name := entry.Value.AsString()
	if name == "" {
		core := targetCore(d.Target)
		if core == nil {
			ctx.Reporter.Errorf(ctx.Fset.Position(d.Fn.Pos()),
				"cannot derive a factory name from %s; set Name on the annotation", typeIn(ctx, d.Target))
			return false
		}
		d.Name = core.Obj().Name() + "Factory"
		return true
	}
	if !token.IsIdentifier(name) {
		ctx.Reporter.Errorf(entry.Pos, "factory name %q is not a legal identifier", name)
		return false
	}
	if r, _ := utf8.DecodeRuneInString(name); !unicode.IsUpper(r) {
		ctx.Reporter.Errorf(entry.Pos, "factory name %q must be exported", name)
		return false
	}
	d.Name = name
	return true
}

func (d *Decl) setEmbed(ctx *processor.Context, entry processor.AnnotationStructEntry) bool {
	if entry.Value.Kind == processor.KindNil {
		return true
	}
	tn := entry.Value.AsType()
	named, _ := tn.Type().(*types.Named)
	var strct *types.Struct
	if named != nil {
		strct, _ = named.Underlying().(*types.Struct)
	}
	if strct == nil {
		ctx.Reporter.Errorf(entry.Pos, "embed type %s is not a struct type", tn.Name())
		return false
	}
	if named.TypeParams().Len() > 0 {
		ctx.Reporter.Errorf(entry.Pos, "cannot embed generic type %s", tn.Name())
		return false
	}
	if !typeset.VisibleFrom(tn, ctx.Package.Types) {
		ctx.Reporter.Errorf(entry.Pos, "embed type %s is not visible from %s", tn.Name(), ctx.Package.Types.Path())
		return false
	}

	ctors := typeset.NoArgConstructors(named)
	switch {
	case len(ctors) > 1:
		names := make([]string, len(ctors))
		for i, c := range ctors {
			names[i] = c.Name()
		}
		ctx.Reporter.Errorf(entry.Pos, "embed type %s has ambiguous no-arg constructors: %s",
			tn.Name(), strings.Join(names, ", "))
		return false
	case len(ctors) == 1:
		_, ptr := ctors[0].Type().(*types.Signature).Results().At(0).Type().(*types.Pointer)
		d.Embed = &Embed{Named: named, Ctor: ctors[0], CtorPtr: ptr}
	default:
		// no constructor: the zero value serves, but only when it is safe
		// to leave every field zero
		for i := 0; i < strct.NumFields(); i++ {
			if !strct.Field(i).Exported() {
				ctx.Reporter.Errorf(entry.Pos, "embed type %s must have a no-arg constructor", tn.Name())
				return false
			}
		}
		d.Embed = &Embed{Named: named}
	}
	return true
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

// partition splits the function's parameters into provided and passed,
// sharing one provider among provided parameters with the same qualifier and
// an equivalent type.
func (d *Decl) partition(ctx *processor.Context, pos token.Position, provided []processor.AnnotationValue) bool {
	sig := d.Fn.Type().(*types.Signature)
	params := sig.Params()

	byName := map[string]*types.Var{}
	for i := 0; i < params.Len(); i++ {
		p := params.At(i)
		if p.Name() == "" || p.Name() == "_" {
			ctx.Reporter.Errorf(pos, "the parameters of factory function %s must be named", d.Fn.Name())
			return false
		}
		byName[p.Name()] = p
	}

	valid := true
	quals := map[*types.Var]string{}
	chosen := map[*types.Var]bool{}
	for i := range provided {
		v := &provided[i]
		entry := v.AsString()
		name, qual, hasQual := strings.Cut(entry, ":")
		if name == "" {
			ctx.Reporter.Errorf(v.Pos, "Provided entry %q does not name a parameter", entry)
			valid = false
			continue
		}
		if hasQual && qual == "" {
			ctx.Reporter.Errorf(v.Pos, "Provided entry %q has an empty qualifier", entry)
			valid = false
			continue
		}
		p := byName[name]
		if p == nil {
			ctx.Reporter.Errorf(v.Pos, "function %s has no parameter %s", d.Fn.Name(), name)
			valid = false
			continue
		}
		if chosen[p] {
			ctx.Reporter.Errorf(v.Pos, "parameter %s appears in Provided more than once", name)
			valid = false
			continue
		}
		if sig.Variadic() && p == params.At(params.Len()-1) {
			ctx.Reporter.Errorf(v.Pos, "variadic parameter %s cannot be provided", name)
			valid = false
			continue
		}
		chosen[p] = true
		quals[p] = qual
	}
	if !valid {
		return false
	}

	perQual := map[string]*typeset.Map[*Provider]{}
	for i := 0; i < params.Len(); i++ {
		p := params.At(i)
		if !chosen[p] {
			d.Params = append(d.Params, Param{Var: p})
			continue
		}
		m := perQual[quals[p]]
		if m == nil {
			m = &typeset.Map[*Provider]{}
			perQual[quals[p]] = m
		}
		pv, found := m.At(p.Type())
		if !found {
			pv = &Provider{Qualifier: quals[p], Type: p.Type()}
			m.Set(p.Type(), pv)
			d.Providers = append(d.Providers, pv)
		}
		pv.Params = append(pv.Params, p)
		d.Params = append(d.Params, Param{Var: p, Provider: pv})
	}
	return true
}

// assignProviderFields derives the provider field names. Each provider takes
// the decapitalized name of its first parameter; when several providers
// share that base the names get numeric suffixes in provider order. The
// names are a function of the declaration alone, so regenerating cannot
// reshuffle them.
func (d *Decl) assignProviderFields() {
	reserved := map[string]bool{}
	if d.Embed != nil {
		reserved[d.Embed.Named.Obj().Name()] = true
	}
	counts := map[string]int{}
	for _, pv := range d.Providers {
		counts[decap(pv.Params[0].Name())]++
	}
	next := map[string]int{}
	for _, pv := range d.Providers {
		base := decap(pv.Params[0].Name())
		name := base
		if counts[base] > 1 {
			next[base]++
			name = base + strconv.Itoa(next[base])
		}
		for reserved[name] {
			name += "_"
		}
		reserved[name] = true
		pv.Field = name
	}
}

func (d *Decl) checkImplements(ctx *processor.Context) bool {
	if len(d.Implements) == 0 {
		return true
	}
	impl := d.synthetic(ctx.Package.Types)
	valid := true
	for i, ifaceT := range d.Implements {
		iface := ifaceT.Underlying().(*types.Interface)
		missing := typeset.MissingMethods(impl, iface)
		if len(missing) == 0 {
			continue
		}
		names := make([]string, len(missing))
		for j, m := range missing {
			names[j] = m.Name()
		}
		noun := "method"
		if len(names) > 1 {
			noun = "methods"
		}
		ctx.Reporter.Errorf(d.implPos[i], "%s would not implement %s: missing %s %s",
			d.Name, typeIn(ctx, ifaceT), noun, strings.Join(names, ", "))
		valid = false
	}
	return valid
}

// synthetic models the generated factory type for interface satisfaction
// checks: the embedded struct, the provider fields, and the Create method.
func (d *Decl) synthetic(pkg *types.Package) types.Type {
	var fields []*types.Var
	if d.Embed != nil {
		fields = append(fields, types.NewField(token.NoPos, pkg, d.Embed.Named.Obj().Name(), d.Embed.Named, true))
	}
	for _, pv := range d.Providers {
		ft := types.NewSignatureType(nil, nil, nil, nil,
			types.NewTuple(types.NewVar(token.NoPos, nil, "", pv.Type)), false)
		fields = append(fields, types.NewField(token.NoPos, pkg, pv.Field, ft, false))
	}
	tn := types.NewTypeName(token.NoPos, pkg, d.Name, nil)
	named := types.NewNamed(tn, types.NewStruct(fields, nil), nil)

	var params []*types.Var
	for _, p := range d.Params {
		if p.Provider == nil {
			params = append(params, p.Var)
		}
	}
	rs := []*types.Var{types.NewVar(token.NoPos, nil, "", d.Target)}
	if d.ReturnsErr {
		rs = append(rs, types.NewVar(token.NoPos, nil, "", types.Universe.Lookup("error").Type()))
	}
	recv := types.NewVar(token.NoPos, pkg, "f", types.NewPointer(named))
	named.AddMethod(types.NewFunc(token.NoPos, pkg, "Create",
		types.NewSignatureType(recv, nil, nil, types.NewTuple(params...), types.NewTuple(rs...), d.Fn.Type().(*types.Signature).Variadic())))
	return types.NewPointer(named)
}

func checkDeclarable(ctx *processor.Context, d *Decl, name string) bool {
	obj := ctx.Package.Types.Scope().Lookup(name)
	if obj == nil {
		return true
	}
	generated := ctx.Package.Types.Name() + ".autofactory.go"
	if strings.HasSuffix(ctx.Fset.Position(obj.Pos()).Filename, generated) {
		return true
	}
	ctx.Reporter.Errorf(ctx.Fset.Position(d.Fn.Pos()),
		"cannot generate %s for %s: the package already declares %s", name, d.Fn.Name(), name)
	return false
}

func targetCore(t types.Type) *types.Named {
	u := t
	if ptr, ok := u.(*types.Pointer); ok {
		u = ptr.Elem()
	}
	named, _ := u.(*types.Named)
	return named
}

func isError(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}

func typeIn(ctx *processor.Context, t types.Type) string {
	return types.TypeString(t, types.RelativeTo(ctx.Package.Types))
}

func decap(s string) string {
	r, sz := utf8.DecodeRuneInString(s)
	if !unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToLower(r)) + s[sz:]
}
