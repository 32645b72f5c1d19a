package value

import (
	"go/types"

	"golang.org/x/tools/go/packages"

	"github.com/autogo-dev/autogo/emit"
	"github.com/autogo-dev/autogo/processor"
)

// TypeContext is the view of one classified value type that extensions
// receive. The model is shared with the generator and must not be modified.
type TypeContext struct {
	// Package is the package being processed.
	Package *packages.Package
	// Model is the classified value type.
	Model *Model
	// Reporter receives diagnostics the extension wants to attribute to the
	// processed source.
	Reporter *processor.Reporter

	imports *emit.Imports
}

// TypeString renders t the way the generated file refers to it, registering
// any imports the reference needs. Extension code that mentions types should
// be built from this rather than from types.TypeString, or the generated file
// may be missing imports.
func (tc *TypeContext) TypeString(t types.Type) string {
	return tc.imports.TypeString(t)
}

// ImplName returns the name of the generated implementation struct, which
// extension code may attach methods to.
func (tc *TypeContext) ImplName() string {
	return implName(tc.Model)
}

// Extension customizes the generated implementation of selected value types.
// Extensions are supplied to NewGenerator and consulted in that order for
// every classified type.
//
// A property consumed by an extension keeps its struct field, constructor
// parameter, and builder handling, but the generator emits neither its
// accessor method nor its participation in String, Equal, and Hash. The
// extension's generated code is responsible for the accessor; it is appended
// to the generated file after the implementation it extends.
type Extension interface {
	// Name identifies the extension in diagnostics.
	Name() string
	// Applicable reports whether the extension participates in generating the
	// given type.
	Applicable(ctx *TypeContext) bool
	// ConsumeProperties returns the names of the properties the extension
	// takes over. A name matching no property draws a warning and is
	// ignored.
	ConsumeProperties(ctx *TypeContext) []string
	// GenerateCode renders the extension's additional declarations. An error
	// abandons generation of the value type with a diagnostic; the other
	// value types in the package are unaffected.
	GenerateCode(ctx *TypeContext) (string, error)
}

// applyExtensions runs the extension protocol for one model: consulting each
// extension in order, collecting the consumed property set, and gathering the
// generated snippets. It reports whether generation of the model should
// proceed.
func (g *Generator) applyExtensions(ctx *processor.Context, fi *emit.Imports, m *Model) (map[string]bool, []string, bool) {
	if len(g.exts) == 0 {
		return nil, nil, true
	}
	tc := &TypeContext{Package: ctx.Package, Model: m, Reporter: ctx.Reporter, imports: fi}
	pos := ctx.Fset.Position(m.Obj.Pos())

	byName := map[string]bool{}
	for _, p := range m.Props {
		byName[p.Name] = true
	}

	consumed := map[string]bool{}
	var snippets []string
	for _, ext := range g.exts {
		if !ext.Applicable(tc) {
			continue
		}
		for _, name := range ext.ConsumeProperties(tc) {
			if !byName[name] {
				ctx.Reporter.Warningf(pos, "extension %s consumes property %s, which %s does not have",
					ext.Name(), name, m.Obj.Name())
				continue
			}
			consumed[name] = true
		}
		code, err := ext.GenerateCode(tc)
		if err != nil {
			ctx.Reporter.Errorf(pos, "extension %s failed for %s: %v", ext.Name(), m.Obj.Name(), err)
			return nil, nil, false
		}
		if code != "" {
			snippets = append(snippets, code)
		}
	}
	return consumed, snippets, true
}
