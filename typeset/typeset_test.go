package typeset

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"testing"
)

// checkSource type-checks a single-file package in memory and returns it.
// Type errors are tolerated so that fixtures may contain deliberately broken
// declarations.
func checkSource(t *testing.T, path, src string) *types.Package {
	t.Helper()
	pkg, _ := checkSourceInfo(t, path, src, nil)
	return pkg
}

func checkSourceInfo(t *testing.T, path, src string, deps map[string]*types.Package) (*types.Package, *types.Info) {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "fixture.go", src, 0)
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	info := &types.Info{
		Defs: map[*ast.Ident]types.Object{},
	}
	conf := types.Config{
		Error:    func(error) {},
		Importer: mapImporter(deps),
	}
	pkg, _ := conf.Check(path, fset, []*ast.File{f}, info)
	if pkg == nil {
		t.Fatalf("type checking produced no package for %s", path)
	}
	return pkg, info
}

type mapImporter map[string]*types.Package

func (m mapImporter) Import(path string) (*types.Package, error) {
	if pkg, ok := m[path]; ok {
		return pkg, nil
	}
	return nil, fmt.Errorf("fixture does not provide package %q", path)
}

func lookupType(t *testing.T, pkg *types.Package, name string) types.Type {
	t.Helper()
	obj := pkg.Scope().Lookup(name)
	if obj == nil {
		t.Fatalf("fixture has no %s", name)
	}
	return obj.Type()
}

func lookupNamed(t *testing.T, pkg *types.Package, name string) *types.Named {
	t.Helper()
	named, ok := lookupType(t, pkg, name).(*types.Named)
	if !ok {
		t.Fatalf("%s is not a named type", name)
	}
	return named
}

func ifaceMethod(t *testing.T, named *types.Named, name string) *types.Func {
	t.Helper()
	iface, ok := named.Underlying().(*types.Interface)
	if !ok {
		t.Fatalf("%s is not an interface", named.Obj().Name())
	}
	for i := 0; i < iface.NumMethods(); i++ {
		if iface.Method(i).Name() == name {
			return iface.Method(i)
		}
	}
	t.Fatalf("%s has no method %s", named.Obj().Name(), name)
	return nil
}

func declaredMethod(t *testing.T, named *types.Named, name string) *types.Func {
	t.Helper()
	for i := 0; i < named.NumMethods(); i++ {
		if named.Method(i).Name() == name {
			return named.Method(i)
		}
	}
	t.Fatalf("%s does not declare method %s", named.Obj().Name(), name)
	return nil
}
