// Package processortest provides helpers for testing annotation processors
// against packages type-checked in memory. Processor packages declare a
// miniature source fixture of the root autogo package, type-check it at the
// real import path alongside the package under test, and collect generated
// files in memory instead of touching disk.
package processortest

import (
	"bytes"
	"go/ast"
	goparser "go/parser"
	"go/token"
	"go/types"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"

	"github.com/autogo-dev/autogo/processor"
)

const autogoPath = "github.com/autogo-dev/autogo"

type mapImporter map[string]*types.Package

func (m mapImporter) Import(path string) (*types.Package, error) {
	if pkg, ok := m[path]; ok {
		return pkg, nil
	}
	return nil, errors.Newf("package %s is not available", path)
}

// Typecheck parses and type-checks an in-memory package. The sources map is
// keyed by filename; imports resolve only to the given deps.
func Typecheck(t *testing.T, fset *token.FileSet, pkgPath string, sources map[string]string, deps ...*packages.Package) *packages.Package {
	t.Helper()

	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	files := make([]*ast.File, len(names))
	for i, name := range names {
		f, err := goparser.ParseFile(fset, name, sources[name], goparser.ParseComments|goparser.SkipObjectResolution)
		require.NoError(t, err)
		files[i] = f
	}

	imp := mapImporter{}
	imports := map[string]*packages.Package{}
	for _, dep := range deps {
		imp[dep.PkgPath] = dep.Types
		imports[dep.PkgPath] = dep
	}

	info := &types.Info{
		Defs:  map[*ast.Ident]types.Object{},
		Uses:  map[*ast.Ident]types.Object{},
		Types: map[ast.Expr]types.TypeAndValue{},
	}
	conf := types.Config{Importer: imp}
	tpkg, err := conf.Check(pkgPath, fset, files, info)
	require.NoError(t, err)

	return &packages.Package{
		ID:        pkgPath,
		PkgPath:   pkgPath,
		Name:      tpkg.Name(),
		Types:     tpkg,
		TypesInfo: info,
		Syntax:    files,
		Fset:      fset,
		Imports:   imports,
	}
}

// Context type-checks the given autogo fixture at its real import path, then
// the target package against it, and returns a processor context for the
// target.
func Context(t *testing.T, autogoSrc, pkgPath string, sources map[string]string) (*processor.Context, *processor.Reporter) {
	t.Helper()
	fset := token.NewFileSet()
	autogoPkg := Typecheck(t, fset, autogoPath, map[string]string{"annotations.go": autogoSrc})
	pkg := Typecheck(t, fset, pkgPath, sources, autogoPkg)
	rep := processor.NewReporter()
	return processor.NewContext(pkg, rep), rep
}

// Output collects generated files in memory.
type Output struct {
	Files map[string]*bytes.Buffer
}

func NewOutput() *Output {
	return &Output{Files: map[string]*bytes.Buffer{}}
}

// Factory is a processor.OutputFactory that writes into the Output.
func (o *Output) Factory(_ *packages.Package, filename string) (io.WriteCloser, error) {
	buf := &bytes.Buffer{}
	o.Files[filename] = buf
	return nopCloser{buf}, nil
}

// File returns the contents of a generated file, failing the test when no
// file of that name was written.
func (o *Output) File(t *testing.T, name string) string {
	t.Helper()
	buf, ok := o.Files[name]
	require.True(t, ok, "no generated file %s; have %v", name, o.Files)
	return buf.String()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// RequireClean fails the test when the reporter holds any error.
func RequireClean(t *testing.T, rep *processor.Reporter) {
	t.Helper()
	if rep.HasErrors() {
		var sb strings.Builder
		rep.Print(&sb)
		t.Fatalf("unexpected diagnostics:\n%s", sb.String())
	}
}

// RequireDiagnostic returns the first diagnostic whose message contains
// substr, failing the test when there is none.
func RequireDiagnostic(t *testing.T, rep *processor.Reporter, substr string) processor.Diagnostic {
	t.Helper()
	for _, d := range rep.Diagnostics() {
		if strings.Contains(d.Message, substr) {
			return d
		}
	}
	t.Fatalf("no diagnostic containing %q; have %v", substr, rep.Diagnostics())
	return processor.Diagnostic{}
}
