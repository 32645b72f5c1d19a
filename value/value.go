// Package value generates immutable implementations of interfaces annotated
// with @autogo.Value, along with constructors and, when a matching
// @autogo.ValueBuilder interface is declared, builder implementations.
//
// The generator classifies each annotated interface's methods into property
// accessors and recognized surface methods, classifies the builder's methods
// into setters, getters, property builders, and the build method, and renders
// one <pkg>.autovalue.go file per processed package. Classification failures
// are reported as diagnostics attributed to the offending method or type;
// generation proceeds for the declarations that classified cleanly.
package value

import (
	"go/types"

	"github.com/autogo-dev/autogo/processor"
)

const autogoPkgPath = "github.com/autogo-dev/autogo"

func init() {
	processor.RegisterProcessor("value", Processor)
}

// Processor is the value generator entry point, with no extensions installed.
func Processor(ctx *processor.Context, output processor.OutputFactory) error {
	return NewGenerator().Process(ctx, output)
}

// Generator generates value implementations. Extensions, when present, are
// consulted for every classified type in the order given.
type Generator struct {
	exts []Extension
}

// NewGenerator returns a generator that applies the given extensions.
func NewGenerator(exts ...Extension) *Generator {
	return &Generator{exts: exts}
}

// Process classifies every @autogo.Value interface in the context's package
// and writes the generated implementations. Classification problems become
// diagnostics on the context's reporter; the returned error indicates only
// infrastructure failures, such as output that could not be written.
func (g *Generator) Process(ctx *processor.Context, output processor.OutputFactory) error {
	elements := ctx.ElementsAnnotatedWith(autogoPkgPath, "Value")
	if len(elements) == 0 {
		return nil
	}

	builderTypes := map[*types.TypeName]bool{}
	for _, el := range ctx.ElementsAnnotatedWith(autogoPkgPath, "ValueBuilder") {
		if tn, ok := el.Obj.(*types.TypeName); ok {
			builderTypes[tn] = true
		}
	}

	var models []*Model
	for _, el := range elements {
		if m := classify(ctx, el, builderTypes); m != nil {
			models = append(models, m)
		}
	}
	attachBuilders(ctx, models)

	var clean []*Model
	for _, m := range models {
		if !m.broken {
			clean = append(clean, m)
		}
	}
	if len(clean) == 0 {
		return nil
	}

	src, err := g.render(ctx, clean)
	if err != nil {
		return err
	}
	if len(src) == 0 {
		return nil
	}
	filename := ctx.Package.Types.Name() + ".autovalue.go"
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

// Model is the classified form of one @autogo.Value interface.
type Model struct {
	// Obj is the annotated interface's type name.
	Obj *types.TypeName
	// Named is the interface's named type, uninstantiated.
	Named *types.Named
	// Iface is the interface's underlying type.
	Iface *types.Interface
	// Props are the value's properties, in accessor declaration order.
	Props []*Property
	// HasString, HasEqual, and HasHash record which recognized surface
	// methods the interface declares.
	HasString, HasEqual, HasHash bool
	// ToBuilder is the accessor that converts the value back to its builder,
	// or nil when the interface declares none.
	ToBuilder *types.Func
	// Builder is the classified builder interface, or nil.
	Builder *Builder

	element           *processor.AnnotatedElement
	builderCandidates []*types.TypeName
	broken            bool
}

// Property is one value property: the accessor that declares it and the
// derived name used for the generated field and constructor parameter.
type Property struct {
	// Name is the property name: the accessor name, or its suffix under the
	// Get/Is convention, decapitalized.
	Name string
	// Field is the generated struct field's name: Name, with trailing
	// underscores when Name would collide with a Go keyword or with a
	// method of the generated implementation.
	Field string
	// Accessor is the interface method that declares the property.
	Accessor *types.Func
	// Type is the property's type, the accessor's single result.
	Type types.Type
	// Nullable reports whether the accessor carries @autogo.Nullable.
	Nullable bool
}
