package factory

import (
	"fmt"
	"go/format"
	"go/types"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/autogo-dev/autogo/emit"
	"github.com/autogo-dev/autogo/processor"
	"github.com/autogo-dev/autogo/velo"
)

var factoryTmpl = mustParse("factory", `// ${name} is a generated factory for ${fn}.
type ${name} struct {
#if($embedType)
	${embedType}
#end
#foreach($p in $providers)
	$p.field func() $p.type
#end
}
#foreach($a in $asserts)

var _ $a = (*${name})(nil)
#end

// ${ctor} returns a new ${name}.
func ${ctor}(${ctorParams}) *${name} {
#foreach($c in $nilChecks)
	if $c.field == nil {
		panic("autogo: nil provider for $c.field (argument $c.index of $c.total)")
	}
#end
	return &${name}{
#if($embedInit)
		${embedField}: ${embedInit},
#end
#foreach($p in $providers)
		$p.field: $p.field,
#end
	}
}

#if($providers)
// Create calls ${fn}, inserting the factory's provided parameters.
#else
// Create calls ${fn}.
#end
func (${rcvr} *${name}) Create(${createParams}) ${results} {
	return ${fn}(${createArgs})
}
`)

func mustParse(name, src string) *velo.Template {
	t, err := velo.Parse(name, src)
	if err != nil {
		panic(err)
	}
	return t
}

// render generates the package's factory file from the extracted
// declarations.
func render(ctx *processor.Context, decls []*Decl) ([]byte, error) {
	fi := emit.NewImports(ctx.Package.Types.Path())
	var bodies []string
	for _, d := range decls {
		body, err := factoryTmpl.Render(declVars(fi, d))
		if err != nil {
			return nil, errors.AssertionFailedf("rendering factory %s: %v", d.Name, err)
		}
		bodies = append(bodies, body)
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
		return nil, errors.AssertionFailedf("generated factory code for %s does not parse: %v",
			ctx.Package.PkgPath, err)
	}
	return src, nil
}

func declVars(fi *emit.Imports, d *Decl) map[string]interface{} {
	sig := d.Fn.Type().(*types.Signature)

	rcvr := "f"
	taken := map[string]bool{}
	for _, p := range d.Params {
		if p.Provider == nil {
			taken[p.Var.Name()] = true
		}
	}
	for taken[rcvr] {
		rcvr += "f"
	}

	providers := make([]map[string]interface{}, len(d.Providers))
	ctorParams := make([]string, len(d.Providers))
	nilChecks := make([]map[string]interface{}, len(d.Providers))
	for i, pv := range d.Providers {
		t := fi.TypeString(pv.Type)
		providers[i] = map[string]interface{}{"field": pv.Field, "type": t}
		ctorParams[i] = pv.Field + " func() " + t
		nilChecks[i] = map[string]interface{}{
			"field": pv.Field,
			"index": i + 1,
			"total": len(d.Providers),
		}
	}

	var createParams, createArgs []string
	for i, p := range d.Params {
		switch {
		case p.Provider != nil:
			createArgs = append(createArgs, rcvr+"."+p.Provider.Field+"()")
		case sig.Variadic() && i == len(d.Params)-1:
			elem := p.Var.Type().(*types.Slice).Elem()
			createParams = append(createParams, p.Var.Name()+" ..."+fi.TypeString(elem))
			createArgs = append(createArgs, p.Var.Name()+"...")
		default:
			createParams = append(createParams, p.Var.Name()+" "+fi.TypeString(p.Var.Type()))
			createArgs = append(createArgs, p.Var.Name())
		}
	}

	results := fi.TypeString(d.Target)
	if d.ReturnsErr {
		results = "(" + results + ", error)"
	}

	asserts := make([]string, len(d.Implements))
	for i, t := range d.Implements {
		asserts[i] = fi.TypeString(t)
	}

	vars := map[string]interface{}{
		"name":         d.Name,
		"fn":           d.Fn.Name(),
		"ctor":         "New" + d.Name,
		"rcvr":         rcvr,
		"results":      results,
		"providers":    providers,
		"ctorParams":   strings.Join(ctorParams, ", "),
		"nilChecks":    nilChecks,
		"createParams": strings.Join(createParams, ", "),
		"createArgs":   strings.Join(createArgs, ", "),
		"embedType":    "",
		"embedField":   "",
		"embedInit":    "",
		"asserts":      asserts,
	}
	if d.Embed != nil {
		vars["embedType"] = fi.TypeString(d.Embed.Named)
		vars["embedField"] = d.Embed.Named.Obj().Name()
		if d.Embed.Ctor != nil {
			call := fi.FuncRef(d.Embed.Ctor) + "()"
			if d.Embed.CtorPtr {
				call = "*" + call
			}
			vars["embedInit"] = call
		}
	}
	return vars
}
