// Package factory generates factory types for constructor functions
// annotated with @autogo.Factory. The generated factory carries provider
// functions for the parameters the annotation designates as provided; its
// Create method accepts the remaining parameters and calls the annotated
// function with both.
package factory

import (
	"go/token"
	"go/types"

	"github.com/autogo-dev/autogo/processor"
)

const autogoPkgPath = "github.com/autogo-dev/autogo"

func init() {
	processor.RegisterProcessor("factory", Process)
}

// Process extracts every @autogo.Factory declaration in the context's
// package and writes the generated factories. Validation problems become
// diagnostics on the context's reporter; the returned error indicates only
// infrastructure failures, such as output that could not be written.
func Process(ctx *processor.Context, output processor.OutputFactory) error {
	elements := ctx.ElementsAnnotatedWith(autogoPkgPath, "Factory")
	if len(elements) == 0 {
		return nil
	}

	var decls []*Decl
	byName := map[string]*Decl{}
	for _, el := range elements {
		d := extract(ctx, el)
		if d == nil {
			continue
		}
		if prev := byName[d.Name]; prev != nil {
			ctx.Reporter.Errorf(ctx.Fset.Position(d.Fn.Pos()),
				"functions %s and %s both generate a factory named %s",
				prev.Fn.Name(), d.Fn.Name(), d.Name)
			continue
		}
		byName[d.Name] = d
		decls = append(decls, d)
	}
	if len(decls) == 0 {
		return nil
	}

	src, err := render(ctx, decls)
	if err != nil {
		return err
	}
	filename := ctx.Package.Types.Name() + ".autofactory.go"
	w, err := output(ctx.Package, filename)
	if err != nil {
		return err
	}
	if _, err := w.Write(src); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Decl is the extracted form of one @autogo.Factory declaration.
type Decl struct {
	// Fn is the annotated constructor function.
	Fn *types.Func
	// Name is the generated factory type's name.
	Name string
	// Target is the constructed type, the function's first result.
	Target types.Type
	// ReturnsErr reports whether the function also returns an error.
	ReturnsErr bool
	// Params are the function's parameters in declaration order.
	Params []Param
	// Providers are the factory's provider fields in first-appearance order.
	Providers []*Provider
	// Embed is the struct type the factory embeds, or nil.
	Embed *Embed
	// Implements are the interfaces the generated factory asserts it
	// satisfies.
	Implements []types.Type

	implPos []token.Position
}

// Param is one parameter of the annotated function.
type Param struct {
	// Var is the parameter.
	Var *types.Var
	// Provider supplies the parameter, or is nil when the caller of Create
	// passes it.
	Provider *Provider
}

// Provider is one provider field of the generated factory. Provided
// parameters that share a qualifier and an equivalent type share a provider.
type Provider struct {
	// Qualifier distinguishes providers of the same type.
	Qualifier string
	// Type is the parameter type the provider supplies.
	Type types.Type
	// Field is the generated field's name.
	Field string
	// Params are the parameters the provider feeds, in declaration order.
	Params []*types.Var
}

// Embed describes the struct type the generated factory embeds.
type Embed struct {
	// Named is the embedded struct type.
	Named *types.Named
	// Ctor is the no-arg constructor that initializes the embedded field, or
	// nil when the zero value serves.
	Ctor *types.Func
	// CtorPtr reports whether Ctor returns a pointer.
	CtorPtr bool
}
