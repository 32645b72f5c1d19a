// Package service generates registration files for concrete types annotated
// with @autogo.Service. The generated file's init function registers the
// annotated type under every interface the annotation lists, so runtime
// callers can discover implementations through autogo.ServicesFor.
package service

import (
	"go/token"
	"go/types"
	"io"

	"github.com/jhump/gopoet"

	"github.com/autogo-dev/autogo/processor"
)

const autogoPkgPath = "github.com/autogo-dev/autogo"

var (
	autogoPkg     = gopoet.NewPackage(autogoPkgPath)
	reflectTypeOf = gopoet.NewPackage("reflect").Symbol("TypeOf")
)

func init() {
	processor.RegisterProcessor("service", Process)
}

// Process extracts every @autogo.Service declaration in the context's
// package and writes the registration file. Validation problems become
// diagnostics on the context's reporter; the returned error indicates only
// infrastructure failures, such as output that could not be written.
func Process(ctx *processor.Context, output processor.OutputFactory) error {
	elements := ctx.ElementsAnnotatedWith(autogoPkgPath, "Service")
	if len(elements) == 0 {
		return nil
	}

	var decls []*Decl
	for _, el := range elements {
		if d := extract(ctx, el); d != nil {
			decls = append(decls, d)
		}
	}
	if len(decls) == 0 {
		return nil
	}

	outputPkg := ctx.Package.Types
	file := gopoet.NewGoFile(outputPkg.Name()+".autoservice.go", outputPkg.Path(), outputPkg.Name())

	initFunc := gopoet.NewFunc("init")
	first := true
	for _, d := range decls {
		for _, iface := range d.Implements {
			if !first {
				initFunc.Println("")
			}
			first = false
			initFunc.Printlnf("%s(%s((*%s)(nil)).Elem(), func() interface{} {",
				autogoPkg.Symbol("RegisterService"), reflectTypeOf, iface)
			if d.Ctor != nil {
				initFunc.Printlnf("v := %s()", d.Ctor)
			} else {
				initFunc.Printlnf("var v %s", d.Named)
			}
			initFunc.Printlnf("var impl %s = %s", iface, d.instanceExpr())
			initFunc.Println("return impl")
			initFunc.Println("})")
		}
	}
	file.AddElement(initFunc)

	w, err := output(ctx.Package, file.Name)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, "// Code generated by autogo. DO NOT EDIT.\n\n"); err != nil {
		w.Close()
		return err
	}
	if err := gopoet.WriteGoFile(w, file); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Decl is the extracted form of one @autogo.Service declaration.
type Decl struct {
	// Obj is the annotated type's name.
	Obj *types.TypeName
	// Named is the annotated type.
	Named *types.Named
	// Implements are the interfaces the type is registered under, in
	// annotation order.
	Implements []*types.Named
	// Ctor is the no-arg constructor registrations call to build instances,
	// or nil when the zero value serves.
	Ctor *types.Func
	// CtorPtr reports whether Ctor returns a pointer.
	CtorPtr bool

	needPtr bool
	implPos []token.Position
}

// instanceExpr is the expression a registration closure assigns to the
// interface, given that the closure built v via the constructor or as the
// zero value. The address is taken when some listed interface is satisfied
// only by the pointer type.
func (d *Decl) instanceExpr() string {
	if d.needPtr && (d.Ctor == nil || !d.CtorPtr) {
		return "&v"
	}
	return "v"
}
