package value

import (
	"sort"
	"strings"

	"go/types"

	"github.com/autogo-dev/autogo/processor"
	"github.com/autogo-dev/autogo/typeset"
	"github.com/autogo-dev/autogo/validate"
)

// Builder is the classified form of one @autogo.ValueBuilder interface.
type Builder struct {
	// Obj is the builder interface's type name.
	Obj *types.TypeName
	// Named is the builder's named type, uninstantiated.
	Named *types.Named
	// Build is the builder's build method.
	Build *types.Func
	// Setters, Getters, and PropBuilders are the classified builder methods.
	Setters      []*Setter
	Getters      []*Getter
	PropBuilders []*PropBuilder

	corr   *typeset.ParamCorrespondence
	fields *builderFields
}

// Setter is a builder method that assigns one property.
type Setter struct {
	Method *types.Func
	Prop   *Property
}

// Getter is a builder method that reads back one property's current value.
type Getter struct {
	Method *types.Func
	Prop   *Property
}

// attachBuilders pairs every @autogo.ValueBuilder interface in the package
// with the value type its build method returns, then classifies each pairing.
// A value type with more than one builder is an error on the value type
// naming each builder.
func attachBuilders(ctx *processor.Context, models []*Model) {
	byOrigin := map[*types.Named]*Model{}
	for _, m := range models {
		byOrigin[m.Named.Origin()] = m
	}

	for _, el := range ctx.ElementsAnnotatedWith(autogoPkgPath, "ValueBuilder") {
		pos := ctx.Fset.Position(el.Obj.Pos())
		tn, ok := el.Obj.(*types.TypeName)
		if !ok {
			ctx.Reporter.Internalf(pos, "@autogo.ValueBuilder accepted on non-type element %s", el.Obj.Name())
			continue
		}
		if !validate.Object(tn) {
			ctx.Reporter.Errorf(pos, "type %s has compilation errors; skipping builder classification", tn.Name())
			continue
		}
		named, _ := tn.Type().(*types.Named)
		var iface *types.Interface
		if named != nil {
			iface, _ = named.Underlying().(*types.Interface)
		}
		if iface == nil {
			ctx.Reporter.Internalf(pos, "@autogo.ValueBuilder accepted on non-interface type %s", tn.Name())
			continue
		}

		target := buildTarget(named, byOrigin)
		if target == nil {
			ctx.Reporter.Errorf(pos,
				"builder %s has no build method: expected one method with no parameters returning a type annotated @autogo.Value in this package",
				tn.Name())
			continue
		}
		target.builderCandidates = append(target.builderCandidates, tn)
	}

	for _, m := range models {
		switch len(m.builderCandidates) {
		case 0:
		case 1:
			b := classifyBuilder(ctx, m, m.builderCandidates[0])
			if b == nil {
				m.broken = true
				continue
			}
			m.Builder = b
			if !checkToBuilder(ctx, m) {
				m.broken = true
			}
		default:
			names := make([]string, len(m.builderCandidates))
			for i, tn := range m.builderCandidates {
				names[i] = tn.Name()
			}
			sort.Strings(names)
			ctx.Reporter.Errorf(ctx.Fset.Position(m.Obj.Pos()),
				"%s has multiple builders: %s", m.Obj.Name(), strings.Join(names, ", "))
			m.broken = true
		}
	}

	// a conversion method with no builder to convert to
	for _, m := range models {
		if m.ToBuilder != nil && m.Builder == nil && !m.broken {
			ctx.Reporter.Errorf(ctx.Fset.Position(m.ToBuilder.Pos()),
				"method %s returns a builder, but no builder of %s exists", m.ToBuilder.Name(), m.Obj.Name())
			m.broken = true
		}
	}
}

// buildTarget finds the value model whose type the builder's build method
// returns, or nil if no zero-parameter method returns a known value type.
func buildTarget(builder *types.Named, byOrigin map[*types.Named]*Model) *Model {
	for _, mm := range typeset.ResolveMethods(builder).All() {
		sig := mm.Obj.Type().(*types.Signature)
		if sig.Params().Len() != 0 || sig.Results().Len() != 1 {
			continue
		}
		named, _ := sig.Results().At(0).Type().(*types.Named)
		if named == nil {
			continue
		}
		if m, ok := byOrigin[named.Origin()]; ok {
			return m
		}
	}
	return nil
}

// checkToBuilder verifies that the value's builder conversion method, when
// declared, returns this value's builder and not some other builder type.
func checkToBuilder(ctx *processor.Context, m *Model) bool {
	if m.ToBuilder == nil {
		return true
	}
	ret := m.ToBuilder.Type().(*types.Signature).Results().At(0).Type()
	if !typeset.EquivalentUnder(ret, selfType(m.Builder.Named), m.Builder.corr) {
		ctx.Reporter.Errorf(ctx.Fset.Position(m.ToBuilder.Pos()),
			"method %s returns %s, which is not the builder of %s",
			m.ToBuilder.Name(), typeWithin(ret, m), m.Obj.Name())
		return false
	}
	return true
}

// classifyBuilder runs the builder state machine: type-parameter parity, then
// one pass over the builder's methods sorting them into the build method,
// getters, property builders, and setters, then the matching and completeness
// checks. A nil result aborts generation for the value type; diagnostics have
// already been reported.
func classifyBuilder(ctx *processor.Context, m *Model, tn *types.TypeName) *Builder {
	named := tn.Type().(*types.Named)
	bpos := ctx.Fset.Position(tn.Pos())

	corr, errs := typeset.CorrespondAll(m.Named.TypeParams(), named.TypeParams())
	for _, err := range errs {
		ctx.Reporter.Errorf(bpos, "builder %s does not match the type parameters of %s: %v",
			tn.Name(), m.Obj.Name(), err)
	}
	if len(errs) > 0 {
		return nil
	}

	b := &Builder{Obj: tn, Named: named, corr: corr}
	propsByName := map[string]*Property{}
	propsByAccessor := map[string]*Property{}
	for _, p := range m.Props {
		propsByName[p.Name] = p
		propsByAccessor[p.Accessor.Name()] = p
	}

	valueSelf := selfType(m.Named)
	builderSelf := selfType(named)
	ok := true

	var buildMethods []*types.Func
	var rawSetters []typeset.Method
	for _, mm := range declarationOrder(typeset.ResolveMethods(named).All()) {
		sig := mm.Obj.Type().(*types.Signature)
		name := mm.Obj.Name()

		if sig.Params().Len() == 0 && sig.Results().Len() == 1 {
			ret := sig.Results().At(0).Type()
			if typeset.EquivalentUnder(valueSelf, ret, corr) {
				buildMethods = append(buildMethods, mm.Obj)
				continue
			}
			if p, isGetter := propsByAccessor[name]; isGetter && typeset.EquivalentUnder(p.Type, ret, corr) {
				b.Getters = append(b.Getters, &Getter{Method: mm.Obj, Prop: p})
				continue
			}
		}

		if p := propBuilderTarget(name, propsByName); p != nil && sig.Params().Len() <= 1 && sig.Results().Len() == 1 {
			pb := classifyPropBuilder(ctx, m, b, mm, p)
			if pb == nil {
				ok = false
				continue
			}
			b.PropBuilders = append(b.PropBuilders, pb)
			continue
		}

		if sig.Params().Len() == 1 && sig.Results().Len() == 1 && !sig.Variadic() &&
			typeset.EquivalentUnder(builderSelf, sig.Results().At(0).Type(), nil) {
			rawSetters = append(rawSetters, mm)
			continue
		}

		ctx.Reporter.Errorf(methodPos(ctx, mm),
			"method %s of builder %s does not correspond to a property of %s",
			name, tn.Name(), m.Obj.Name())
		ok = false
	}

	switch len(buildMethods) {
	case 0:
		ctx.Reporter.Errorf(bpos, "builder %s has no build method: expected one method with no parameters returning %s",
			tn.Name(), m.Obj.Name())
		ok = false
	case 1:
		b.Build = buildMethods[0]
	default:
		names := make([]string, len(buildMethods))
		for i, f := range buildMethods {
			names[i] = f.Name()
		}
		ctx.Reporter.Errorf(bpos, "builder %s has multiple build methods: %s",
			tn.Name(), strings.Join(names, ", "))
		ok = false
	}

	if !b.matchSetters(ctx, m, rawSetters, propsByName) {
		ok = false
	}
	if !b.checkComplete(ctx, m) {
		ok = false
	}
	if !ok {
		return nil
	}
	return b
}

// propBuilderTarget resolves a method named XxxBuilder to the property Xxx,
// or nil when the name does not follow the pattern or names no property.
func propBuilderTarget(name string, props map[string]*Property) *Property {
	base, found := strings.CutSuffix(name, "Builder")
	if !found || base == "" {
		return nil
	}
	return props[decapitalize(base)]
}

// matchSetters applies the naming convention and pairs each setter with its
// property. Prefixed (SetXxx) and unprefixed setters must not mix on the same
// builder.
func (b *Builder) matchSetters(ctx *processor.Context, m *Model, raw []typeset.Method, props map[string]*Property) bool {
	if len(raw) == 0 {
		return true
	}
	var prefixed, unprefixed []typeset.Method
	for _, mm := range raw {
		if rest, found := strings.CutPrefix(mm.Obj.Name(), "Set"); found && startsUpper(rest) {
			prefixed = append(prefixed, mm)
		} else {
			unprefixed = append(unprefixed, mm)
		}
	}
	if len(prefixed) > 0 && len(unprefixed) > 0 {
		ctx.Reporter.Errorf(ctx.Fset.Position(b.Obj.Pos()),
			"setters of builder %s must all use the Set prefix or none: %s uses it, %s does not",
			b.Obj.Name(), prefixed[0].Obj.Name(), unprefixed[0].Obj.Name())
		return false
	}

	ok := true
	for _, mm := range raw {
		name := mm.Obj.Name()
		if len(prefixed) > 0 {
			name, _ = strings.CutPrefix(name, "Set")
		}
		p := props[decapitalize(name)]
		if p == nil {
			ctx.Reporter.Errorf(methodPos(ctx, mm),
				"setter %s of builder %s does not match any property of %s",
				mm.Obj.Name(), b.Obj.Name(), m.Obj.Name())
			ok = false
			continue
		}
		param := mm.Obj.Type().(*types.Signature).Params().At(0).Type()
		if !typeset.EquivalentUnder(p.Type, param, b.corr) {
			ctx.Reporter.Errorf(methodPos(ctx, mm),
				"setter %s has parameter type %s, but property %s has type %s",
				mm.Obj.Name(), typeWithin(param, m), p.Name, typeWithin(p.Type, m))
			ok = false
			continue
		}
		b.Setters = append(b.Setters, &Setter{Method: mm.Obj, Prop: p})
	}
	return ok
}

// checkComplete verifies that every property can be assigned through the
// builder, naming the expected setter signature for any that cannot.
func (b *Builder) checkComplete(ctx *processor.Context, m *Model) bool {
	covered := map[*Property]bool{}
	for _, s := range b.Setters {
		covered[s.Prop] = true
	}
	for _, pb := range b.PropBuilders {
		covered[pb.Prop] = true
	}
	ok := true
	for _, p := range m.Props {
		if covered[p] {
			continue
		}
		name := capitalize(p.Name)
		if b.usesSetPrefix() {
			name = "Set" + name
		}
		ctx.Reporter.Errorf(ctx.Fset.Position(b.Obj.Pos()),
			"builder %s has no way to set property %s: expected a method %s(%s) %s",
			b.Obj.Name(), p.Name, name, typeWithin(p.Type, m), b.Obj.Name())
		ok = false
	}
	return ok
}

func (b *Builder) usesSetPrefix() bool {
	for _, s := range b.Setters {
		if rest, found := strings.CutPrefix(s.Method.Name(), "Set"); found && startsUpper(rest) {
			return true
		}
	}
	return false
}
