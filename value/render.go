package value

import (
	"fmt"
	"go/format"
	"go/types"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/autogo-dev/autogo/emit"
	"github.com/autogo-dev/autogo/processor"
	"github.com/autogo-dev/autogo/typeset"
	"github.com/autogo-dev/autogo/velo"
)

// valueTmpl stamps out one value type: the implementation struct, the
// constructor, the accessor and surface methods, and, when the type has a
// builder, the builder implementation. Everything that needs package
// qualification or joining is precomputed into the variable map; the template
// owns the layout.
var valueTmpl = mustParse("value", `// ${impl} is the generated implementation of ${name}.
type ${impl}${tparams} struct {
#foreach($p in $allProps)
	$p.field $p.type
#end
}

// ${ctor} returns an immutable ${name} built from the given properties.
func ${ctor}${tparams}(${ctorParams}) ${valueType} {
#foreach($c in $nilChecks)
	if $c.field == nil {
		panic("autogo: nil value for $c.prop (argument $c.index of $c.total)")
	}
#end
	return &${impl}${targs}{
#foreach($p in $allProps)
		$p.field: $p.field,
#end
	}
}
#foreach($p in $props)

func (v *${impl}${targs}) ${p.accessor}() $p.type {
	return v.$p.field
}
#end

func (v *${impl}${targs}) String() string {
#if($props)
	return ${fmtPkg}.Sprintf("${name}{${stringFormat}}", ${stringArgs})
#else
	return "${name}{}"
#end
}

func (v *${impl}${targs}) Equal(o ${valueType}) bool {
	if o == nil {
		return false
	}
#if($props)
	return ${equalExpr}
#else
	return true
#end
}

func (v *${impl}${targs}) Hash() uint64 {
	h := ${fnvPkg}.New64a()
#foreach($p in $props)
	${fmtPkg}.Fprintf(h, "%v\x00", v.$p.field)
#end
	return h.Sum64()
}
#if($toBuilder)

func (v *${impl}${targs}) ${toBuilder}() ${builder.type} {
	return &${builder.impl}${targs}{
#foreach($a in $toBuilderArgs)
		$a.field: $a.expr,
#end
	}
}
#end
#if($builder)

// ${builder.ctor} returns an empty builder of ${name} values.
func ${builder.ctor}${tparams}() ${builder.type} {
	return &${builder.impl}${targs}{}
}

// ${builder.impl} is the generated implementation of ${builder.name}.
type ${builder.impl}${tparams} struct {
#foreach($f in $builder.fields)
	$f.name $f.type
#end
}
#foreach($s in $builder.setters)

func (${br} *${builder.impl}${targs}) ${s.method}($s.field $s.type) ${builder.type} {
#if($s.holder)
	if ${br}.$s.holder != nil {
		panic("autogo: cannot set $s.prop after calling ${s.holderMethod}()")
	}
#end
#if($s.nilCheck)
	if $s.field == nil {
		panic("autogo: nil value for $s.prop")
	}
#end
	${br}.$s.field = $s.field
#if($s.setField)
	${br}.$s.setField = true
#end
	return ${br}
}
#end
#foreach($g in $builder.getters)

func (${br} *${builder.impl}${targs}) ${g.method}() $g.type {
#if($g.holder)
	if ${br}.$g.holder != nil {
		return ${br}.${g.holder}.${g.build}()
	}
#end
	return ${br}.$g.field
}
#end
#foreach($pb in $builder.pbs)

func (${br} *${builder.impl}${targs}) ${pb.method}(${pb.params}) $pb.type {
	if ${br}.$pb.holder == nil {
#if($pb.toBuilder)
		if ${br}.$pb.setField {
			${br}.$pb.holder = ${br}.${pb.field}.${pb.toBuilder}()
		} else {
			${br}.$pb.holder = ${pb.factory}
		}
#else
		if ${br}.$pb.setField {
			nb := ${pb.factory}
			nb.${pb.copyAll}(${br}.$pb.field)
			${br}.$pb.holder = nb
		} else {
			${br}.$pb.holder = ${pb.factory}
		}
#end
	}
	return ${br}.$pb.holder
}

func (${br} *${builder.impl}${targs}) ${pb.helper}() $pb.propType {
	if ${br}.$pb.holder != nil {
		return ${br}.${pb.holder}.${pb.build}()
	}
#if($pb.required)
	return ${br}.$pb.field
#else
	if ${br}.$pb.setField {
		return ${br}.$pb.field
	}
	return ${pb.emptyExpr}.${pb.build}()
#end
}
#end

func (${br} *${builder.impl}${targs}) ${builder.build}() ${valueType} {
#if($builder.missing)
	var missing []string
#foreach($c in $builder.missing)
	if $c.check {
		missing = append(missing, "$c.prop")
	}
#end
	if len(missing) > 0 {
		panic("autogo: missing required properties: " + ${stringsPkg}.Join(missing, ", "))
	}
#end
	return &${impl}${targs}{
#foreach($a in $builder.buildArgs)
		$a.field: $a.expr,
#end
	}
}
#end
`)

func mustParse(name, src string) *velo.Template {
	t, err := velo.Parse(name, src)
	if err != nil {
		panic(err)
	}
	return t
}

// render generates the package's value file from the classified models. A nil
// result with a nil error means every model was abandoned by an extension and
// no file should be written.
func (g *Generator) render(ctx *processor.Context, models []*Model) ([]byte, error) {
	fi := emit.NewImports(ctx.Package.Types.Path(), "fmt", "hash/fnv", "reflect", "strings")
	var bodies []string
	for _, m := range models {
		finalizeFields(m)
		mark := fi.Mark()
		consumed, snippets, keep := g.applyExtensions(ctx, fi, m)
		if !keep {
			fi.Rollback(mark)
			continue
		}
		body, err := renderModel(ctx, fi, m, consumed)
		if err != nil {
			return nil, err
		}
		if body == "" {
			fi.Rollback(mark)
			continue
		}
		bodies = append(bodies, body)
		bodies = append(bodies, snippets...)
	}
	if len(bodies) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString("// Code generated by autogo. DO NOT EDIT.\n\n")
	fmt.Fprintf(&sb, "package %s\n\n", ctx.Package.Types.Name())
	if block := fi.Block(); block != "" {
		sb.WriteString(block)
		sb.WriteString("\n")
	}
	sb.WriteString(strings.Join(bodies, "\n"))

	src, err := format.Source([]byte(sb.String()))
	if err != nil {
		return nil, errors.AssertionFailedf("generated value code for %s does not parse: %v",
			ctx.Package.PkgPath, err)
	}
	return src, nil
}

// renderModel renders one value type. An empty result means the model was
// abandoned with a diagnostic.
func renderModel(ctx *processor.Context, fi *emit.Imports, m *Model, consumed map[string]bool) (string, error) {
	vars, ok := modelVars(ctx, fi, m, consumed)
	if !ok {
		return "", nil
	}
	body, err := valueTmpl.Render(vars)
	if err != nil {
		return "", errors.AssertionFailedf("rendering value implementation of %s: %v", m.Obj.Name(), err)
	}
	return body, nil
}

func implName(m *Model) string {
	return "autoValue_" + m.Obj.Name()
}

// modelVars computes the template variable map for one model. Generation is
// abandoned with a diagnostic when a generated name would collide with an
// existing declaration in the package.
func modelVars(ctx *processor.Context, fi *emit.Imports, m *Model, consumed map[string]bool) (map[string]interface{}, bool) {
	name := m.Obj.Name()
	ctor := "New" + name
	if !checkDeclarable(ctx, m, ctor) {
		return nil, false
	}

	var direct []*Property
	for _, p := range m.Props {
		if !consumed[p.Name] {
			direct = append(direct, p)
		}
	}

	vars := map[string]interface{}{
		"name":       name,
		"impl":       implName(m),
		"ctor":       ctor,
		"tparams":    typeParamDecl(fi, m.Named.TypeParams()),
		"targs":      typeParamUse(m.Named.TypeParams()),
		"fnvPkg":     fi.Stdlib("hash/fnv"),
		"fmtPkg":     "",
		"stringsPkg": "",
		"toBuilder":  "",
	}
	vars["valueType"] = name + vars["targs"].(string)

	allProps := make([]map[string]interface{}, len(m.Props))
	for i, p := range m.Props {
		allProps[i] = propVars(fi, p)
	}
	vars["allProps"] = allProps
	props := make([]map[string]interface{}, len(direct))
	for i, p := range direct {
		props[i] = propVars(fi, p)
	}
	vars["props"] = props

	var params []string
	for _, p := range m.Props {
		params = append(params, p.Field+" "+fi.TypeString(p.Type))
	}
	vars["ctorParams"] = strings.Join(params, ", ")

	var checks []map[string]interface{}
	for i, p := range m.Props {
		if !p.Nullable && nilable(p.Type) {
			checks = append(checks, map[string]interface{}{
				"field": p.Field,
				"prop":  p.Name,
				"index": i + 1,
				"total": len(m.Props),
			})
		}
	}
	vars["nilChecks"] = checks

	if len(direct) > 0 {
		vars["fmtPkg"] = fi.Stdlib("fmt")
		var formats, args, equals []string
		for _, p := range direct {
			formats = append(formats, p.Name+": %v")
			args = append(args, "v."+p.Field)
			if comparesDirectly(p.Type) {
				equals = append(equals, fmt.Sprintf("v.%s == o.%s()", p.Field, p.Accessor.Name()))
			} else {
				equals = append(equals, fmt.Sprintf("%s.DeepEqual(v.%s, o.%s())",
					fi.Stdlib("reflect"), p.Field, p.Accessor.Name()))
			}
		}
		vars["stringFormat"] = strings.Join(formats, ", ")
		vars["stringArgs"] = strings.Join(args, ", ")
		vars["equalExpr"] = strings.Join(equals, " && ")
	}

	if m.Builder == nil {
		vars["builder"] = nil
		vars["toBuilderArgs"] = []map[string]interface{}{}
		return vars, true
	}

	bv, ok := builderVars(ctx, fi, m)
	if !ok {
		return nil, false
	}
	vars["builder"] = bv
	vars["br"] = bv["rcvr"]
	if len(bv["missing"].([]map[string]interface{})) > 0 {
		vars["stringsPkg"] = fi.Stdlib("strings")
	}

	if m.ToBuilder != nil {
		vars["toBuilder"] = m.ToBuilder.Name()
		var args []map[string]interface{}
		for _, p := range m.Props {
			args = append(args, map[string]interface{}{"field": p.Field, "expr": "v." + p.Field})
			if sf := setFieldOf(m, p); sf != "" {
				args = append(args, map[string]interface{}{"field": sf, "expr": "true"})
			}
		}
		vars["toBuilderArgs"] = args
	} else {
		vars["toBuilderArgs"] = []map[string]interface{}{}
	}
	return vars, true
}

func propVars(fi *emit.Imports, p *Property) map[string]interface{} {
	return map[string]interface{}{
		"name":     p.Name,
		"field":    p.Field,
		"accessor": p.Accessor.Name(),
		"type":     fi.TypeString(p.Type),
	}
}

// builderFields assigns the builder struct's field names: one field per
// property, a set-tracking bit for each non-nullable property, and a holder
// for each property builder. Suffixed names that happen to collide with
// another property, or with a method of the builder interface, are pushed
// out of the way with underscores.
type builderFields struct {
	used      map[string]bool
	setFields map[*Property]string
	holders   map[*Property]string
}

func newBuilderFields(m *Model, taken map[string]bool) *builderFields {
	bf := &builderFields{
		used:      map[string]bool{},
		setFields: map[*Property]string{},
		holders:   map[*Property]string{},
	}
	for name := range taken {
		bf.used[name] = true
	}
	for _, p := range m.Props {
		bf.used[p.Field] = true
	}
	byProp := map[*Property]*PropBuilder{}
	for _, pb := range m.Builder.PropBuilders {
		byProp[pb.Prop] = pb
	}
	for _, p := range m.Props {
		if !p.Nullable {
			bf.setFields[p] = bf.claim(p.Field + "Set")
		}
		if byProp[p] != nil {
			bf.holders[p] = bf.claim(p.Field + "Builder")
		}
	}
	return bf
}

func (bf *builderFields) claim(name string) string {
	for bf.used[name] {
		name += "_"
	}
	bf.used[name] = true
	return name
}

func setFieldOf(m *Model, p *Property) string {
	if m.Builder == nil || p.Nullable {
		return ""
	}
	return m.Builder.fields.setFields[p]
}

// finalizeFields reassigns the property field names of a model with a
// builder. The builder struct shares the fields, so they must also steer
// clear of the builder interface's method names.
func finalizeFields(m *Model) {
	if m.Builder == nil {
		return
	}
	used := map[string]bool{"String": true, "Equal": true, "Hash": true}
	for _, mm := range typeset.ResolveMethods(m.Named).All() {
		used[mm.Obj.Name()] = true
	}
	for _, mm := range typeset.ResolveMethods(m.Builder.Named).All() {
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
}

func builderVars(ctx *processor.Context, fi *emit.Imports, m *Model) (map[string]interface{}, bool) {
	b := m.Builder
	ctor := "New" + m.Obj.Name() + "Builder"
	if !checkDeclarable(ctx, m, ctor) {
		return nil, false
	}

	methodNames := map[string]bool{}
	for _, mm := range typeset.ResolveMethods(b.Named).All() {
		methodNames[mm.Obj.Name()] = true
	}
	b.fields = newBuilderFields(m, methodNames)

	pbByProp := map[*Property]*PropBuilder{}
	for _, pb := range b.PropBuilders {
		pbByProp[pb.Prop] = pb
	}

	rcvr := "b"
	for b.fields.used[rcvr] {
		rcvr += "b"
	}

	bv := map[string]interface{}{
		"name":  b.Obj.Name(),
		"impl":  implName(m) + "Builder",
		"ctor":  ctor,
		"type":  b.Obj.Name() + typeParamUse(m.Named.TypeParams()),
		"build": b.Build.Name(),
		"rcvr":  rcvr,
	}

	var fields []map[string]interface{}
	for _, p := range m.Props {
		fields = append(fields, map[string]interface{}{"name": p.Field, "type": fi.TypeString(p.Type)})
		if sf := b.fields.setFields[p]; sf != "" {
			fields = append(fields, map[string]interface{}{"name": sf, "type": "bool"})
		}
		if pb := pbByProp[p]; pb != nil {
			fields = append(fields, map[string]interface{}{"name": b.fields.holders[p], "type": fi.TypeString(pb.Type)})
		}
	}
	bv["fields"] = fields

	var setters []map[string]interface{}
	for _, s := range b.Setters {
		sv := map[string]interface{}{
			"method":       s.Method.Name(),
			"field":        s.Prop.Field,
			"type":         fi.TypeString(s.Prop.Type),
			"prop":         s.Prop.Name,
			"setField":     b.fields.setFields[s.Prop],
			"nilCheck":     !s.Prop.Nullable && nilable(s.Prop.Type),
			"holder":       "",
			"holderMethod": "",
		}
		if pb := pbByProp[s.Prop]; pb != nil {
			sv["holder"] = b.fields.holders[s.Prop]
			sv["holderMethod"] = pb.Method.Name()
		}
		setters = append(setters, sv)
	}
	bv["setters"] = setters

	var getters []map[string]interface{}
	for _, gt := range b.Getters {
		gv := map[string]interface{}{
			"method": gt.Method.Name(),
			"field":  gt.Prop.Field,
			"type":   fi.TypeString(gt.Prop.Type),
			"holder": "",
			"build":  "",
		}
		if pb := pbByProp[gt.Prop]; pb != nil {
			gv["holder"] = b.fields.holders[gt.Prop]
			gv["build"] = pb.Build.Name()
		}
		getters = append(getters, gv)
	}
	bv["getters"] = getters

	helpers := map[*Property]string{}
	var pbs []map[string]interface{}
	for _, pb := range b.PropBuilders {
		helper := "build" + capitalize(pb.Prop.Name)
		for methodNames[helper] || b.fields.used[helper] {
			helper += "_"
		}
		methodNames[helper] = true
		helpers[pb.Prop] = helper

		pv := map[string]interface{}{
			"method":    pb.Method.Name(),
			"params":    "",
			"type":      fi.TypeString(pb.Type),
			"propType":  fi.TypeString(pb.Prop.Type),
			"field":     pb.Prop.Field,
			"setField":  b.fields.setFields[pb.Prop],
			"holder":    b.fields.holders[pb.Prop],
			"helper":    helper,
			"build":     pb.Build.Name(),
			"copyAll":   "",
			"toBuilder": "",
			"required":  pb.HasArg(),
			"emptyExpr": "",
		}
		if pb.ToBuilder != nil {
			pv["toBuilder"] = pb.ToBuilder.Name()
		} else {
			pv["copyAll"] = pb.CopyAll.Name()
		}
		arg := ""
		if pb.HasArg() {
			argName := pb.Method.Type().(*types.Signature).Params().At(0).Name()
			if argName == "" || argName == "_" {
				argName = "cmp"
			}
			pv["params"] = argName + " " + fi.TypeString(pb.Method.Type().(*types.Signature).Params().At(0).Type())
			arg = argName
		} else {
			pv["emptyExpr"] = factoryCall(fi, pb, "")
		}
		pv["factory"] = factoryCall(fi, pb, arg)
		pbs = append(pbs, pv)
	}
	bv["pbs"] = pbs

	var missing []map[string]interface{}
	for _, p := range m.Props {
		if p.Nullable {
			continue
		}
		pb := pbByProp[p]
		switch {
		case pb == nil:
			missing = append(missing, map[string]interface{}{
				"check": fmt.Sprintf("!%s.%s", rcvr, b.fields.setFields[p]),
				"prop":  p.Name,
			})
		case pb.HasArg():
			missing = append(missing, map[string]interface{}{
				"check": fmt.Sprintf("!%s.%s && %s.%s == nil", rcvr, b.fields.setFields[p], rcvr, b.fields.holders[p]),
				"prop":  p.Name,
			})
		}
	}
	bv["missing"] = missing

	var buildArgs []map[string]interface{}
	for _, p := range m.Props {
		expr := rcvr + "." + p.Field
		if helper, ok := helpers[p]; ok {
			expr = rcvr + "." + helper + "()"
		}
		buildArgs = append(buildArgs, map[string]interface{}{"field": p.Field, "expr": expr})
	}
	bv["buildArgs"] = buildArgs
	return bv, true
}

// factoryCall renders the call that constructs an empty secondary builder,
// instantiating a generic factory with the builder type's own arguments.
func factoryCall(fi *emit.Imports, pb *PropBuilder, arg string) string {
	expr := fi.FuncRef(pb.Factory)
	if pb.Factory.Type().(*types.Signature).TypeParams().Len() > 0 {
		if core, _ := builderCore(pb.Type); core != nil && core.TypeArgs() != nil && core.TypeArgs().Len() > 0 {
			args := make([]string, core.TypeArgs().Len())
			for i := range args {
				args[i] = fi.TypeString(core.TypeArgs().At(i))
			}
			expr += "[" + strings.Join(args, ", ") + "]"
		}
	}
	return expr + "(" + arg + ")"
}

// checkDeclarable reports whether the package is free to gain a declaration
// with the given name. Declarations in a previously generated value file do
// not count, so regeneration is clean.
func checkDeclarable(ctx *processor.Context, m *Model, name string) bool {
	obj := ctx.Package.Types.Scope().Lookup(name)
	if obj == nil {
		return true
	}
	generated := ctx.Package.Types.Name() + ".autovalue.go"
	if strings.HasSuffix(ctx.Fset.Position(obj.Pos()).Filename, generated) {
		return true
	}
	ctx.Reporter.Errorf(ctx.Fset.Position(m.Obj.Pos()),
		"cannot generate %s for %s: the package already declares %s", name, m.Obj.Name(), name)
	return false
}

func typeParamDecl(fi *emit.Imports, tps *types.TypeParamList) string {
	if tps == nil || tps.Len() == 0 {
		return ""
	}
	parts := make([]string, tps.Len())
	for i := 0; i < tps.Len(); i++ {
		tp := tps.At(i)
		parts[i] = tp.Obj().Name() + " " + fi.TypeString(tp.Constraint())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func typeParamUse(tps *types.TypeParamList) string {
	if tps == nil || tps.Len() == 0 {
		return ""
	}
	parts := make([]string, tps.Len())
	for i := 0; i < tps.Len(); i++ {
		parts[i] = tps.At(i).Obj().Name()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// comparesDirectly reports whether the generated Equal can compare a property
// with ==. Interface-typed properties go through reflect.DeepEqual even
// though == compiles, because it panics at runtime when the dynamic types are
// not comparable.
func comparesDirectly(t types.Type) bool {
	if _, ok := t.(*types.TypeParam); ok {
		return types.Comparable(t)
	}
	if _, ok := t.Underlying().(*types.Interface); ok {
		return false
	}
	return types.Comparable(t)
}

