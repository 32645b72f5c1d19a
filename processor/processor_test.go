package processor

import (
	"go/ast"
	goparser "go/parser"
	"go/token"
	"go/types"
	"sort"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"

	"github.com/autogo-dev/autogo"
)

// autogoFixtureSrc is a miniature of the root autogo package, declaring just
// the marker types the processor bootstraps from. Tests type-check fixtures
// in memory instead of loading real packages from disk, so the markers need
// an in-memory home too.
const autogoFixtureSrc = `package autogo

type ElementType int

const (
	AnnotationTypes ElementType = iota
	AnnotationFields
	Types
	ConcreteTypes
	Interfaces
	Fields
	Methods
	InterfaceMethods
	InterfaceEmbeds
	Functions
	Variables
	Constants
)

type TypeRef interface{}

type AnyType interface{}

type SelfType interface{}

// @Annotation{AllowedElements: Types}
type Annotation struct {
	AllowedElements []ElementType
	AllowRepeated   bool
}

// @Annotation{AllowedElements: AnnotationFields}
type DefaultValue struct {
	// @Required
	Value SelfType
}

// @Annotation{AllowedElements: AnnotationFields}
type Required bool
`

type mapImporter map[string]*types.Package

func (m mapImporter) Import(path string) (*types.Package, error) {
	if pkg, ok := m[path]; ok {
		return pkg, nil
	}
	return nil, errors.Newf("package %s is not available", path)
}

// typecheckPackage parses and type-checks the given sources and assembles the
// result into a *packages.Package, the same shape Execute gets from loading
// packages for real.
func typecheckPackage(t *testing.T, fset *token.FileSet, pkgPath string, sources map[string]string, deps ...*packages.Package) *packages.Package {
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

func autogoFixture(t *testing.T, fset *token.FileSet) *packages.Package {
	t.Helper()
	return typecheckPackage(t, fset, autogoPkgPath, map[string]string{"annotations.go": autogoFixtureSrc})
}

// processSource type-checks src as package example.com/widgets, with the
// autogo fixture available as a dependency, and computes its annotations.
func processSource(t *testing.T, src string) (*Context, *Reporter) {
	t.Helper()
	fset := token.NewFileSet()
	pkg := typecheckPackage(t, fset, "example.com/widgets", map[string]string{"widgets.go": src}, autogoFixture(t, fset))
	rep := NewReporter()
	ctx := NewContext(pkg, rep)
	return ctx, rep
}

func requireClean(t *testing.T, rep *Reporter) {
	t.Helper()
	if rep.HasErrors() {
		var sb strings.Builder
		rep.Print(&sb)
		t.Fatalf("unexpected diagnostics:\n%s", sb.String())
	}
}

func requireDiagnostic(t *testing.T, rep *Reporter, substr string) Diagnostic {
	t.Helper()
	for _, d := range rep.Diagnostics() {
		if strings.Contains(d.Message, substr) {
			return d
		}
	}
	t.Fatalf("no diagnostic containing %q; have %v", substr, rep.Diagnostics())
	return Diagnostic{}
}

func elementFor(t *testing.T, ctx *Context, name string) *AnnotatedElement {
	t.Helper()
	obj := ctx.Package.Types.Scope().Lookup(name)
	require.NotNil(t, obj, "no such object: %s", name)
	ae := ctx.AllElementsByObject[obj]
	require.NotNil(t, ae, "no element for object: %s", name)
	return ae
}

func mirrorFor(t *testing.T, ctx *Context, elemName, annoName string) AnnotationMirror {
	t.Helper()
	annos := elementFor(t, ctx, elemName).FindAnnotations(ctx.Package.PkgPath, annoName)
	require.Len(t, annos, 1)
	return annos[0]
}

func entryFor(t *testing.T, av AnnotationValue, field string) AnnotationValue {
	t.Helper()
	require.Equal(t, KindStruct, av.Kind)
	for _, e := range av.AsStruct() {
		if e.Field.Name() == field {
			return e.Value
		}
	}
	t.Fatalf("no entry for field %s", field)
	return AnnotationValue{}
}

const decoSrc = `package widgets

import "github.com/autogo-dev/autogo"

// Deco configures how a widget type renders.
//
// @autogo.Annotation{AllowedElements: {autogo.ConcreteTypes, autogo.Variables}, AllowRepeated: true}
type Deco struct {
	// @autogo.Required
	Name string
	// @autogo.DefaultValue{3}
	Level int
	Tags  []string
	Embed autogo.TypeRef
}

// @Deco{Name: "frame", Level: 2, Tags: {"a", "b"}}
type Frame struct {
	Border string
}

// Widget describes things a widget can do.
type Widget interface {
	Render() string
}

// @Deco{Name: "style"}
var DefaultStyle = "plain"

func Helper() {}
`

func TestContextElements(t *testing.T) {
	ctx, rep := processSource(t, decoSrc)
	requireClean(t, rep)

	deco := elementFor(t, ctx, "Deco")
	assert.True(t, deco.IsElementType(autogo.Types))
	assert.True(t, deco.IsElementType(autogo.ConcreteTypes))
	assert.True(t, deco.IsElementType(autogo.AnnotationTypes))
	assert.False(t, deco.IsElementType(autogo.Interfaces))
	assert.Len(t, deco.Children, 4)
	for _, child := range deco.Children {
		assert.True(t, child.IsElementType(autogo.Fields))
		assert.True(t, child.IsElementType(autogo.AnnotationFields))
		assert.Same(t, deco, child.Parent)
	}

	frame := elementFor(t, ctx, "Frame")
	assert.True(t, frame.IsElementType(autogo.ConcreteTypes))
	assert.False(t, frame.IsElementType(autogo.AnnotationTypes))
	require.Len(t, frame.Children, 1)
	border := frame.Children[0]
	assert.True(t, border.IsElementType(autogo.Fields))
	assert.False(t, border.IsElementType(autogo.AnnotationFields))

	widget := elementFor(t, ctx, "Widget")
	assert.True(t, widget.IsElementType(autogo.Interfaces))
	require.Len(t, widget.Children, 1)
	assert.True(t, widget.Children[0].IsElementType(autogo.InterfaceMethods))

	assert.Equal(t, "widgets.go", frame.GetDeclaringFilename())

	annotated := ctx.ElementsAnnotatedWith("example.com/widgets", "Deco")
	require.Len(t, annotated, 2)
	assert.Same(t, frame, annotated[0])
	assert.Same(t, elementFor(t, ctx, "DefaultStyle"), annotated[1])

	var functions []string
	for _, ae := range ctx.ElementsOfType(autogo.Functions) {
		functions = append(functions, ae.Obj.Name())
	}
	assert.Contains(t, functions, "Helper")

	assert.Equal(t, map[string][]string{
		autogoPkgPath:         {"Annotation", "DefaultValue", "Required"},
		"example.com/widgets": {"Deco"},
	}, ctx.AllAnnotationTypes)

	total := ctx.NumElements()
	require.Greater(t, total, 0)
	seen := map[*AnnotatedElement]bool{}
	for i := 0; i < total; i++ {
		seen[ctx.GetElement(i)] = true
	}
	assert.True(t, seen[deco] && seen[frame] && seen[widget])
}

func TestAnnotationMetadata(t *testing.T) {
	ctx, rep := processSource(t, decoSrc)
	requireClean(t, rep)

	meta, err := ctx.GetMetadata("example.com/widgets", "Deco")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, []autogo.ElementType{autogo.ConcreteTypes, autogo.Variables}, meta.AllowedElements)
	assert.True(t, meta.AllowRepeated)
	assert.Equal(t, map[string]bool{"Name": true}, meta.RequiredFields)
	require.Contains(t, meta.DefaultFieldValues, "Level")
	def := meta.DefaultFieldValues["Level"]
	assert.Equal(t, KindInt, def.Kind)
	assert.Equal(t, int64(3), def.AsInt())

	// same metadata through the type name
	tn := ctx.Package.Types.Scope().Lookup("Deco").(*types.TypeName)
	meta2, err := ctx.GetMetadataForTypeName(tn)
	require.NoError(t, err)
	assert.Same(t, meta, meta2)

	// simple values on the Frame usage
	m := mirrorFor(t, ctx, "Frame", "Deco")
	assert.Equal(t, "frame", entryFor(t, m.Value, "Name").AsString())
	assert.Equal(t, int64(2), entryFor(t, m.Value, "Level").AsInt())
	tags := entryFor(t, m.Value, "Tags")
	require.Equal(t, KindSlice, tags.Kind)
	sl := tags.AsSlice()
	require.Len(t, sl, 2)
	assert.Equal(t, "a", sl[0].AsString())
	assert.Equal(t, "b", sl[1].AsString())

	vals, err := m.ValuesWithDefaults()
	require.NoError(t, err)
	require.Len(t, vals, 4)
	assert.Equal(t, "Name", vals[0].Field.Name())
	assert.Equal(t, "frame", vals[0].Value.AsString())
	assert.Equal(t, int64(2), vals[1].Value.AsInt())
	assert.Equal(t, KindSlice, vals[2].Value.Kind)
	assert.Equal(t, KindNil, vals[3].Value.Kind)
}

func TestDefaultValueApplied(t *testing.T) {
	ctx, rep := processSource(t, decoSrc+`
// @Deco{Name: "border"}
type Sidebar struct{}
`)
	requireClean(t, rep)

	m := mirrorFor(t, ctx, "Sidebar", "Deco")
	level := entryFor(t, m.Value, "Level")
	assert.Equal(t, KindInt, level.Kind)
	assert.Equal(t, int64(3), level.AsInt())
}

func TestRequiredFieldMissing(t *testing.T) {
	_, rep := processSource(t, decoSrc+`
// @Deco{Level: 1}
type Sidebar struct{}
`)
	requireDiagnostic(t, rep, "field Name is not specified but is required")
}

func TestRepeatedAnnotations(t *testing.T) {
	ctx, rep := processSource(t, decoSrc+`
// @Deco{Name: "a"}
// @Deco{Name: "b"}
type Panel struct{}
`)
	requireClean(t, rep)

	annos := elementFor(t, ctx, "Panel").FindAnnotations("example.com/widgets", "Deco")
	require.Len(t, annos, 2)
	assert.Equal(t, "a", entryFor(t, annos[0].Value, "Name").AsString())
	assert.Equal(t, "b", entryFor(t, annos[1].Value, "Name").AsString())
}

func TestAnnotationNotRepeatable(t *testing.T) {
	ctx, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Annotation{AllowedElements: autogo.ConcreteTypes}
type Once struct{ V int }

// @Once{V: 1}
// @Once{V: 2}
type Card struct{}
`)
	requireDiagnostic(t, rep, "annotation type example.com/widgets.Once appears more than once but cannot be repeated")
	obj := ctx.Package.Types.Scope().Lookup("Card")
	require.NotNil(t, obj)
	assert.Nil(t, ctx.AllElementsByObject[obj])
}

func TestAllowedElementsEnforced(t *testing.T) {
	_, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Annotation{AllowedElements: autogo.ConcreteTypes}
type Once struct{ V int }

// @Once{V: 3}
type Board interface{}
`)
	requireDiagnostic(t, rep, "annotation type example.com/widgets.Once cannot be used on interfaces")
}

func TestMisplacedAnnotations(t *testing.T) {
	_, rep := processSource(t, `package widgets

// @autogo.Annotation{}
import _ "github.com/autogo-dev/autogo"

func Move() {
	// @Deco{Name: "x"}
	var x int
	_ = x
}
`)
	diags := rep.Diagnostics()
	var matches []Diagnostic
	for _, d := range diags {
		if strings.Contains(d.Message, "annotations are only allowed on top-level") {
			matches = append(matches, d)
		}
	}
	require.Len(t, matches, 2)
	assert.Equal(t, 3, matches[0].Pos.Line)
	assert.Equal(t, 7, matches[1].Pos.Line)
}

func TestBareAnnotationValues(t *testing.T) {
	ctx, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Annotation{AllowedElements: autogo.ConcreteTypes}
type Flagged bool

// @autogo.Annotation{AllowedElements: autogo.ConcreteTypes}
type Opts struct{ N int }

// @Flagged
// @Opts
type Panel struct{}
`)
	requireClean(t, rep)

	m := mirrorFor(t, ctx, "Panel", "Flagged")
	assert.Equal(t, KindBool, m.Value.Kind)
	assert.True(t, m.Value.AsBool())

	m = mirrorFor(t, ctx, "Panel", "Opts")
	assert.Equal(t, KindStruct, m.Value.Kind)
	assert.Empty(t, m.Value.AsStruct())
}

func TestConstantExpressionValues(t *testing.T) {
	ctx, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Annotation{AllowedElements: autogo.Constants}
type Calc struct {
	N int
	S string
	F float64
	M uint8
	R int
}

const base = 40

// @Calc{N: 1 + 2*3, S: "a" + "b", F: 6.5, M: 1<<4 | 1, R: base}
const Answer = 42
`)
	requireClean(t, rep)

	m := mirrorFor(t, ctx, "Answer", "Calc")
	n := entryFor(t, m.Value, "N")
	assert.Equal(t, KindInt, n.Kind)
	assert.Equal(t, int64(7), n.AsInt())
	assert.Nil(t, n.Ref)

	assert.Equal(t, "ab", entryFor(t, m.Value, "S").AsString())
	assert.Equal(t, 6.5, entryFor(t, m.Value, "F").AsFloat())

	mask := entryFor(t, m.Value, "M")
	assert.Equal(t, KindUint, mask.Kind)
	assert.Equal(t, uint64(17), mask.AsUint())

	r := entryFor(t, m.Value, "R")
	assert.Equal(t, int64(40), r.AsInt())
	require.NotNil(t, r.Ref)
	assert.Equal(t, "base", r.Ref.Name())
}

func TestAnyTypeValues(t *testing.T) {
	ctx, rep := processSource(t, `package widgets

import "github.com/autogo-dev/autogo"

// @autogo.Annotation{AllowedElements: autogo.ConcreteTypes}
type Meta struct {
	V autogo.AnyType
	W autogo.AnyType
}

// @Meta{V: 42, W: "hi"}
type Blob struct{}
`)
	requireClean(t, rep)

	m := mirrorFor(t, ctx, "Blob", "Meta")
	v := entryFor(t, m.Value, "V")
	assert.Equal(t, KindInt, v.Kind)
	assert.Equal(t, int64(42), v.AsInt())
	assert.True(t, types.Identical(types.Typ[types.Int64], v.Type), "got type %v", v.Type)

	w := entryFor(t, m.Value, "W")
	assert.Equal(t, KindString, w.Kind)
	assert.Equal(t, "hi", w.AsString())
}

func TestFuncAndNilValues(t *testing.T) {
	ctx, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Annotation{AllowedElements: autogo.ConcreteTypes}
type Hooks struct {
	OnInit  func()
	OnClose func()
}

func Setup() {}

// @Hooks{OnInit: Setup, OnClose: nil}
type App struct{}
`)
	requireClean(t, rep)

	m := mirrorFor(t, ctx, "App", "Hooks")
	onInit := entryFor(t, m.Value, "OnInit")
	require.Equal(t, KindFunc, onInit.Kind)
	assert.Equal(t, "Setup", onInit.AsFunc().Name())

	onClose := entryFor(t, m.Value, "OnClose")
	assert.Equal(t, KindNil, onClose.Kind)
	assert.Nil(t, onClose.Value)
}

func TestMapAndSliceValues(t *testing.T) {
	ctx, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Annotation{AllowedElements: autogo.Variables}
type Attrs struct {
	M map[string]int
	L []int
}

// @Attrs{M: {"a": 1, "b": 2}, L: {3, 4}}
var Styled int
`)
	requireClean(t, rep)

	m := mirrorFor(t, ctx, "Styled", "Attrs")
	mv := entryFor(t, m.Value, "M")
	require.Equal(t, KindMap, mv.Kind)
	entries := mv.AsMap()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key.AsString())
	assert.Equal(t, int64(1), entries[0].Value.AsInt())
	assert.Equal(t, "b", entries[1].Key.AsString())
	assert.Equal(t, int64(2), entries[1].Value.AsInt())

	lv := entryFor(t, m.Value, "L")
	require.Equal(t, KindSlice, lv.Kind)
	sl := lv.AsSlice()
	require.Len(t, sl, 2)
	assert.Equal(t, int64(3), sl[0].AsInt())
	assert.Equal(t, int64(4), sl[1].AsInt())
}

func TestMapDuplicateKeys(t *testing.T) {
	_, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Annotation{AllowedElements: autogo.Variables}
type Attrs struct {
	M map[string]int
}

// @Attrs{M: {"a": 1, "a": 2}}
var Styled int
`)
	requireDiagnostic(t, rep, "map value has duplicate entries: key = a")
}

func TestSliceValuesRejectKeys(t *testing.T) {
	_, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Annotation{AllowedElements: autogo.Variables}
type Attrs struct {
	L []int
}

// @Attrs{L: {5: 6}}
var Styled int
`)
	requireDiagnostic(t, rep, "slice/array values should not have keys")
}

func TestTypeReferenceValues(t *testing.T) {
	ctx, rep := processSource(t, `package widgets

import "github.com/autogo-dev/autogo"

// @autogo.Annotation{AllowedElements: autogo.ConcreteTypes}
type Binds struct {
	Iface autogo.TypeRef
	Extra []autogo.TypeRef
}

type Widget struct{}

type Box[T any] struct{ v T }

// @Binds{Iface: Widget, Extra: Gadget}
type Gadget struct{}

// @Binds{Iface: autogo.ElementType}
type Chart struct{}

// @Binds{Iface: Box}
type Table struct{}
`)
	requireClean(t, rep)

	m := mirrorFor(t, ctx, "Gadget", "Binds")
	iface := entryFor(t, m.Value, "Iface")
	require.Equal(t, KindType, iface.Kind)
	assert.Equal(t, "Widget", iface.AsType().Name())
	assert.Nil(t, iface.Ref)

	extra := entryFor(t, m.Value, "Extra")
	require.Equal(t, KindSlice, extra.Kind)
	sl := extra.AsSlice()
	require.Len(t, sl, 1)
	require.Equal(t, KindType, sl[0].Kind)
	assert.Equal(t, "Gadget", sl[0].AsType().Name())

	m = mirrorFor(t, ctx, "Chart", "Binds")
	ref := entryFor(t, m.Value, "Iface").AsType()
	assert.Equal(t, "ElementType", ref.Name())
	assert.Equal(t, autogoPkgPath, ref.Pkg().Path())

	m = mirrorFor(t, ctx, "Table", "Binds")
	assert.Equal(t, "Box", entryFor(t, m.Value, "Iface").AsType().Name())
}

func TestTypeReferenceRejections(t *testing.T) {
	_, rep := processSource(t, `package widgets

import "github.com/autogo-dev/autogo"

// @autogo.Annotation{AllowedElements: autogo.ConcreteTypes}
type Binds struct {
	Iface autogo.TypeRef
}

type Box[T any] struct{ v T }

type IntBox = Box[int]

// @Binds{Iface: IntBox}
type Bad1 struct{}

// @Binds{Iface: "nope"}
type Bad2 struct{}
`)
	requireDiagnostic(t, rep, "type reference IntBox must not carry type arguments")
	requireDiagnostic(t, rep, "expecting a type reference")
}

func TestCrossPackageAnnotations(t *testing.T) {
	fset := token.NewFileSet()
	autogoPkg := autogoFixture(t, fset)
	annosPkg := typecheckPackage(t, fset, "example.com/annos", map[string]string{"annos.go": `package annos

import _ "github.com/autogo-dev/autogo"

// Marker tags a type for export.
//
// @autogo.Annotation{AllowedElements: autogo.Types}
type Marker struct {
	// @autogo.DefaultValue{"v1"}
	Version string
}
`}, autogoPkg)
	pkg := typecheckPackage(t, fset, "example.com/widgets", map[string]string{"widgets.go": `package widgets

import _ "example.com/annos"

// @annos.Marker{}
type Exported struct{}
`}, annosPkg)

	rep := NewReporter()
	ctx := NewContext(pkg, rep)
	requireClean(t, rep)

	annotated := ctx.ElementsAnnotatedWith("example.com/annos", "Marker")
	require.Len(t, annotated, 1)
	m := annotated[0].FindAnnotations("example.com/annos", "Marker")[0]
	version := entryFor(t, m.Value, "Version")
	assert.Equal(t, "v1", version.AsString())

	meta, err := ctx.GetMetadata("example.com/annos", "Marker")
	require.NoError(t, err)
	assert.Same(t, m.Metadata, meta)
	require.Contains(t, meta.DefaultFieldValues, "Version")
}

func TestAnnotationPositions(t *testing.T) {
	ctx, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// Deco holds display options.
//
// @autogo.Annotation{AllowedElements: autogo.Types}
type Deco struct {
	Name string
}

// @Deco{
//	Name: "frame",
// }
type Frame struct{}
`)
	requireClean(t, rep)

	annos := elementFor(t, ctx, "Deco").FindAnnotations(autogoPkgPath, "Annotation")
	require.Len(t, annos, 1)
	m := annos[0]
	assert.Equal(t, "widgets.go", m.Pos.Filename)
	assert.Equal(t, 7, m.Pos.Line)
	assert.Equal(t, 5, m.Pos.Column)

	m = mirrorFor(t, ctx, "Frame", "Deco")
	assert.Equal(t, 12, m.Pos.Line)
	assert.Equal(t, 5, m.Pos.Column)

	entries := m.Value.AsStruct()
	require.Len(t, entries, 1)
	assert.Equal(t, 13, entries[0].Pos.Line)
	assert.Equal(t, 4, entries[0].Pos.Column)
	assert.Equal(t, 13, entries[0].Value.Pos.Line)
	assert.Equal(t, 10, entries[0].Value.Pos.Column)
}

func TestResolutionErrors(t *testing.T) {
	_, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type helper struct{}

func Run() {}

// @nosuch.Thing{}
type A struct{}

// @Run{}
type B struct{}

// @helper{}
type C struct{}
`)
	requireDiagnostic(t, rep, "symbol nosuch.Thing does not exist")
	requireDiagnostic(t, rep, "Run is not a type")
	requireDiagnostic(t, rep, "helper is not an annotation type")
}

func TestDefaultValueTypeMismatch(t *testing.T) {
	_, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Annotation{AllowedElements: autogo.ConcreteTypes}
type Sized struct {
	// @autogo.DefaultValue{"big"}
	Level int
}
`)
	requireDiagnostic(t, rep, "annotation value of type string cannot be assigned to int")
}

func TestWrongValueType(t *testing.T) {
	_, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Annotation{AllowedElements: autogo.ConcreteTypes}
type Sized struct {
	Level int
}

// @Sized{Level: "big"}
type Panel struct{}
`)
	d := requireDiagnostic(t, rep, "annotation value of type string cannot be assigned to int")
	assert.Equal(t, "widgets.go", d.Pos.Filename)
}

func TestAnnotationValueRequired(t *testing.T) {
	_, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Annotation{AllowedElements: autogo.ConcreteTypes}
type Tags []string

// @Tags
type Panel struct{}
`)
	requireDiagnostic(t, rep, "requires a value since its type is not bool or struct")
}

func TestInitialPackages(t *testing.T) {
	plain := &packages.Package{ID: "example.com/a", PkgPath: "example.com/a"}
	withTests := &packages.Package{
		ID:      "example.com/a [example.com/a.test]",
		PkgPath: "example.com/a",
		Syntax:  []*ast.File{{}, {}},
	}
	external := &packages.Package{ID: "example.com/a_test [example.com/a.test]", PkgPath: "example.com/a_test"}
	binary := &packages.Package{ID: "example.com/a.test", PkgPath: "example.com/a.test"}

	got := initialPackages([]*packages.Package{plain, withTests, external, binary})
	require.Len(t, got, 2)
	assert.Same(t, withTests, got[0])
	assert.Same(t, external, got[1])
}

func TestPackagesErrorPos(t *testing.T) {
	cases := []struct {
		in   string
		want token.Position
	}{
		{"", token.Position{}},
		{"-", token.Position{}},
		{"widgets.go", token.Position{Filename: "widgets.go"}},
		{"widgets.go:12", token.Position{Filename: "widgets.go", Line: 12}},
		{"widgets.go:12:7", token.Position{Filename: "widgets.go", Line: 12, Column: 7}},
		{"c:/src/widgets.go:12:7", token.Position{Filename: "c:/src/widgets.go", Line: 12, Column: 7}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, packagesErrorPos(packages.Error{Pos: tc.in}), "pos %q", tc.in)
	}
}
