package factory

import (
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autogo-dev/autogo/processor"
	"github.com/autogo-dev/autogo/processor/processortest"
)

// autogoFixtureSrc is a miniature of the root autogo package with just the
// annotations the factory generator consumes.
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

// @Annotation{AllowedElements: Types}
type Annotation struct {
	AllowedElements []ElementType
	AllowRepeated   bool
}

// @Annotation{AllowedElements: AnnotationFields}
type Required bool

type TypeRef interface{}

// @Annotation{AllowedElements: Functions}
type Factory struct {
	Name       string
	Provided   []string
	Embed      TypeRef
	Implements []TypeRef
}
`

func processSource(t *testing.T, src string) (*processor.Context, *processor.Reporter) {
	t.Helper()
	return processortest.Context(t, autogoFixtureSrc, "example.com/widgets", map[string]string{"widgets.go": src})
}

// generate runs the factory generator over src and returns the generated
// file's contents. Diagnostics are the caller's to check.
func generate(t *testing.T, src string) (string, *processortest.Output, *processor.Reporter) {
	t.Helper()
	ctx, rep := processSource(t, src)
	out := processortest.NewOutput()
	require.NoError(t, Process(ctx, out.Factory))
	return out.File(t, "widgets.autofactory.go"), out, rep
}

// expectDiagnostic runs the factory generator over src, requires a diagnostic
// containing substr, and requires that nothing was generated.
func expectDiagnostic(t *testing.T, src, substr string) processor.Diagnostic {
	t.Helper()
	ctx, rep := processSource(t, src)
	out := processortest.NewOutput()
	require.NoError(t, Process(ctx, out.Factory))
	d := processortest.RequireDiagnostic(t, rep, substr)
	assert.Empty(t, out.Files)
	return d
}

func TestGenerateFactory(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import (
	"time"

	_ "github.com/autogo-dev/autogo"
)

type Scheduler struct {
	Clock func() time.Time
	Name  string
}

// @autogo.Factory{Provided: {"clock"}}
func NewScheduler(clock func() time.Time, name string) *Scheduler {
	return &Scheduler{Clock: clock, Name: name}
}
`)
	processortest.RequireClean(t, rep)

	want := `// Code generated by autogo. DO NOT EDIT.

package widgets

import (
	"time"
)

// SchedulerFactory is a generated factory for NewScheduler.
type SchedulerFactory struct {
	clock func() func() time.Time
}

// NewSchedulerFactory returns a new SchedulerFactory.
func NewSchedulerFactory(clock func() func() time.Time) *SchedulerFactory {
	if clock == nil {
		panic("autogo: nil provider for clock (argument 1 of 1)")
	}
	return &SchedulerFactory{
		clock: clock,
	}
}

// Create calls NewScheduler, inserting the factory's provided parameters.
func (f *SchedulerFactory) Create(name string) *Scheduler {
	return NewScheduler(f.clock(), name)
}
`
	require.Equal(t, want, src)
}

func TestAllParametersPassed(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Widget struct {
	Size int
}

// @autogo.Factory{}
func NewWidget(size int) *Widget {
	return &Widget{Size: size}
}
`)
	processortest.RequireClean(t, rep)

	assert.Contains(t, src, "func NewWidgetFactory() *WidgetFactory {")
	assert.Contains(t, src, "// Create calls NewWidget.\n")
	assert.Contains(t, src, "func (f *WidgetFactory) Create(size int) *Widget {")
	assert.Contains(t, src, "return NewWidget(size)")
	assert.NotContains(t, src, "nil provider")
}

func TestProvidersShareQualifierAndType(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Triple struct{}

// @autogo.Factory{Provided: {"alpha", "beta", "gamma:aux"}}
func NewTriple(alpha string, beta string, gamma string, label string) *Triple {
	return &Triple{}
}
`)
	processortest.RequireClean(t, rep)

	assert.Contains(t, src, "func NewTripleFactory(alpha func() string, gamma func() string) *TripleFactory {")
	assert.Contains(t, src, "return NewTriple(f.alpha(), f.alpha(), f.gamma(), label)")
	assert.Contains(t, src, `panic("autogo: nil provider for alpha (argument 1 of 2)")`)
	assert.Contains(t, src, `panic("autogo: nil provider for gamma (argument 2 of 2)")`)
	assert.Equal(t, 1, strings.Count(src, "alpha func() string\n"))
}

func TestProviderFieldNameCollision(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Pair struct{}

// @autogo.Factory{Provided: {"clock", "Clock:aux"}}
func NewPair(clock string, Clock string) *Pair {
	return &Pair{}
}
`)
	processortest.RequireClean(t, rep)

	assert.Contains(t, src, "clock1 func() string")
	assert.Contains(t, src, "clock2 func() string")
	assert.Contains(t, src, "return NewPair(f.clock1(), f.clock2())")
	assert.NotContains(t, src, "\tclock func()")
}

func TestEmbedZeroValue(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Base struct {
	Label string
}

type Report struct{}

// @autogo.Factory{Provided: {"title"}, Embed: Base}
func NewReport(title string) *Report {
	return &Report{}
}
`)
	processortest.RequireClean(t, rep)

	assert.Contains(t, src, "type ReportFactory struct {\n\tBase\n\ttitle func() string\n}")
	assert.Contains(t, src, "title: title,")
	assert.NotContains(t, src, "Base:")
}

func TestEmbedConstructor(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Base struct {
	limit int
}

func MakeBase() Base {
	return Base{limit: 16}
}

type Report struct{}

// @autogo.Factory{Embed: Base}
func NewReport() *Report {
	return &Report{}
}
`)
	processortest.RequireClean(t, rep)

	assert.Contains(t, src, "Base: MakeBase(),")
}

func TestEmbedAmbiguousConstructors(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Base struct{}

func MakeBase() Base {
	return Base{}
}

func NewBase() *Base {
	return &Base{}
}

type Report struct{}

// @autogo.Factory{Embed: Base}
func NewReport() *Report {
	return &Report{}
}
`, "embed type Base has ambiguous no-arg constructors: MakeBase, NewBase")
}

func TestEmbedWithUnexportedFieldsNeedsConstructor(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Base struct {
	limit int
}

type Report struct{}

// @autogo.Factory{Embed: Base}
func NewReport() *Report {
	return &Report{}
}
`, "embed type Base must have a no-arg constructor")
}

func TestEmbedMustBeStruct(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Flusher interface {
	Flush() error
}

type Report struct{}

// @autogo.Factory{Embed: Flusher}
func NewReport() *Report {
	return &Report{}
}
`, "embed type Flusher is not a struct type")
}

func TestImplementsSatisfied(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type DB struct{}

type Widget struct{}

type WidgetMaker interface {
	Create(name string) *Widget
}

// @autogo.Factory{Provided: {"db"}, Implements: {WidgetMaker}}
func NewWidget(db *DB, name string) *Widget {
	return &Widget{}
}
`)
	processortest.RequireClean(t, rep)

	assert.Contains(t, src, "var _ WidgetMaker = (*WidgetFactory)(nil)")
}

func TestImplementsViaEmbeddedMethods(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Base struct{}

func (Base) Ping() error {
	return nil
}

type Gadget struct{}

type Pinger interface {
	Ping() error
	Create() *Gadget
}

// @autogo.Factory{Embed: Base, Implements: {Pinger}}
func NewGadget() *Gadget {
	return &Gadget{}
}
`)
	processortest.RequireClean(t, rep)

	assert.Contains(t, src, "var _ Pinger = (*GadgetFactory)(nil)")
}

func TestImplementsMissingMethod(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Widget struct{}

type Maker interface {
	Create(name string) *Widget
	Close() error
}

// @autogo.Factory{Implements: {Maker}}
func NewWidget(name string) *Widget {
	return &Widget{}
}
`, "WidgetFactory would not implement Maker: missing method Close")
}

func TestImplementsSignatureMismatch(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Widget struct{}

type Maker interface {
	Create(size int) *Widget
}

// @autogo.Factory{Implements: {Maker}}
func NewWidget(name string) *Widget {
	return &Widget{}
}
`, "WidgetFactory would not implement Maker: missing method Create")
}

func TestImplementsMustBeInterface(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Widget struct{}

// @autogo.Factory{Implements: {Widget}}
func NewWidget() *Widget {
	return &Widget{}
}
`, "type Widget in Implements is not an interface")
}

func TestNameOverride(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Widget struct{}

// @autogo.Factory{Name: "Maker"}
func NewWidget() *Widget {
	return &Widget{}
}
`)
	processortest.RequireClean(t, rep)

	assert.Contains(t, src, "type Maker struct {")
	assert.Contains(t, src, "func NewMaker() *Maker {")
	assert.NotContains(t, src, "WidgetFactory")
}

func TestNameValidation(t *testing.T) {
	cases := []struct {
		name string
		diag string
	}{
		{"maker", `factory name "maker" must be exported`},
		{"for", `factory name "for" is not a legal identifier`},
		{"my-factory", `factory name "my-factory" is not a legal identifier`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Widget struct{}

// @autogo.Factory{Name: "`+tc.name+`"}
func NewWidget() *Widget {
	return &Widget{}
}
`, tc.diag)
		})
	}
}

func TestUnnamedTargetNeedsName(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Factory{}
func NewHandler() func() int {
	return func() int { return 0 }
}
`, "cannot derive a factory name from func() int; set Name on the annotation")
}

func TestResultShapes(t *testing.T) {
	cases := []struct {
		label string
		src   string
		diag  string
	}{
		{
			"nothing",
			`// @autogo.Factory{}
func Launch() {
}`,
			"factory function Launch returns nothing; it must return the constructed value",
		},
		{
			"only error",
			`// @autogo.Factory{}
func Connect() error {
	return nil
}`,
			"factory function Connect returns only an error",
		},
		{
			"second result not error",
			`type Widget struct{}

// @autogo.Factory{}
func Make() (*Widget, string) {
	return nil, ""
}`,
			"factory function Make must return an error as its second result, not string",
		},
		{
			"too many results",
			`type Widget struct{}

// @autogo.Factory{}
func Build() (*Widget, string, error) {
	return nil, "", nil
}`,
			"factory function Build returns 3 values; factories support one result and an optional error",
		},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			expectDiagnostic(t, "package widgets\n\nimport _ \"github.com/autogo-dev/autogo\"\n\n"+tc.src+"\n", tc.diag)
		})
	}
}

func TestErrorReturningTarget(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import (
	"time"

	_ "github.com/autogo-dev/autogo"
)

type Conn struct{}

// @autogo.Factory{Provided: {"timeout"}}
func Dial(timeout time.Duration, addr string) (*Conn, error) {
	return &Conn{}, nil
}
`)
	processortest.RequireClean(t, rep)

	assert.Contains(t, src, "type ConnFactory struct {")
	assert.Contains(t, src, "func (f *ConnFactory) Create(addr string) (*Conn, error) {")
	assert.Contains(t, src, "return Dial(f.timeout(), addr)")
}

func TestVariadicPassThrough(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type List struct{}

// @autogo.Factory{Provided: {"sep"}}
func NewList(sep string, items ...int) *List {
	return &List{}
}
`)
	processortest.RequireClean(t, rep)

	assert.Contains(t, src, "func (f *ListFactory) Create(items ...int) *List {")
	assert.Contains(t, src, "return NewList(f.sep(), items...)")
}

func TestVariadicParameterCannotBeProvided(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type List struct{}

// @autogo.Factory{Provided: {"items"}}
func NewList(sep string, items ...int) *List {
	return &List{}
}
`, "variadic parameter items cannot be provided")
}

func TestProvidedEntryErrors(t *testing.T) {
	cases := []struct {
		label string
		entry string
		diag  string
	}{
		{"unknown parameter", `"bogus"`, "function NewWidget has no parameter bogus"},
		{"duplicate", `"size", "size"`, "parameter size appears in Provided more than once"},
		{"empty entry", `""`, `Provided entry "" does not name a parameter`},
		{"empty qualifier", `"size:"`, `Provided entry "size:" has an empty qualifier`},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Widget struct{}

// @autogo.Factory{Provided: {`+tc.entry+`}}
func NewWidget(size int) *Widget {
	return &Widget{}
}
`, tc.diag)
		})
	}
}

func TestFactoryNameClash(t *testing.T) {
	ctx, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Widget struct{}

// @autogo.Factory{}
func NewWidget(size int) *Widget {
	return &Widget{}
}

// @autogo.Factory{}
func MakeWidget() *Widget {
	return &Widget{}
}
`)
	out := processortest.NewOutput()
	require.NoError(t, Process(ctx, out.Factory))
	processortest.RequireDiagnostic(t, rep, "functions NewWidget and MakeWidget both generate a factory named WidgetFactory")

	src := out.File(t, "widgets.autofactory.go")
	assert.Equal(t, 1, strings.Count(src, "type WidgetFactory struct"))
	assert.Contains(t, src, "Create(size int)")
	assert.NotContains(t, src, "MakeWidget(")
}

func TestExistingDeclarationBlocksGeneration(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type SchedulerFactory struct{}

type Scheduler struct{}

// @autogo.Factory{}
func NewScheduler() *Scheduler {
	return &Scheduler{}
}
`, "cannot generate SchedulerFactory for NewScheduler: the package already declares SchedulerFactory")

	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

func NewWidgetFactory() {}

type Widget struct{}

// @autogo.Factory{}
func NewWidget() *Widget {
	return &Widget{}
}
`, "cannot generate NewWidgetFactory for NewWidget: the package already declares NewWidgetFactory")
}

func TestRegenerationToleratesPreviousOutput(t *testing.T) {
	ctx, rep := processortest.Context(t, autogoFixtureSrc, "example.com/widgets", map[string]string{
		"widgets.go": `package widgets

import _ "github.com/autogo-dev/autogo"

type Scheduler struct{}

// @autogo.Factory{}
func NewScheduler() *Scheduler {
	return &Scheduler{}
}
`,
		"widgets.autofactory.go": `package widgets

type SchedulerFactory struct{}

func NewSchedulerFactory() *SchedulerFactory {
	return &SchedulerFactory{}
}
`,
	})
	out := processortest.NewOutput()
	require.NoError(t, Process(ctx, out.Factory))
	processortest.RequireClean(t, rep)

	src := out.File(t, "widgets.autofactory.go")
	assert.Contains(t, src, "// SchedulerFactory is a generated factory for NewScheduler.")
}

func TestGenericFunctionRejected(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Box[T any] struct {
	v T
}

// @autogo.Factory{}
func NewBox[T any](v T) *Box[T] {
	return &Box[T]{v: v}
}
`, "cannot generate a factory for generic function NewBox")
}

func TestUnnamedParametersRejected(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Thing struct{}

// @autogo.Factory{}
func NewThing(_ string) *Thing {
	return &Thing{}
}
`, "the parameters of factory function NewThing must be named")
}

func TestCrossPackageReferences(t *testing.T) {
	fset := token.NewFileSet()
	autogoPkg := processortest.Typecheck(t, fset, autogoPkgPath, map[string]string{"annotations.go": autogoFixtureSrc})
	streams := processortest.Typecheck(t, fset, "example.com/streams", map[string]string{"streams.go": `package streams

type Tracker struct {
	Count int
}

func NewTracker() *Tracker {
	return &Tracker{}
}

type Source struct {
	Name string
}
`})
	pkg := processortest.Typecheck(t, fset, "example.com/widgets", map[string]string{"widgets.go": `package widgets

import (
	"example.com/streams"

	_ "github.com/autogo-dev/autogo"
)

type Pipe struct {
	Src *streams.Source
}

// @autogo.Factory{Provided: {"src"}, Embed: streams.Tracker}
func NewPipe(src *streams.Source) *Pipe {
	return &Pipe{Src: src}
}
`}, autogoPkg, streams)
	rep := processor.NewReporter()
	ctx := processor.NewContext(pkg, rep)
	out := processortest.NewOutput()
	require.NoError(t, Process(ctx, out.Factory))
	processortest.RequireClean(t, rep)

	src := out.File(t, "widgets.autofactory.go")
	assert.Contains(t, src, "\t\"example.com/streams\"\n")
	assert.Contains(t, src, "\tstreams.Tracker\n")
	assert.Contains(t, src, "Tracker: *streams.NewTracker(),")
	assert.Contains(t, src, "src func() *streams.Source")
	assert.Contains(t, src, "return NewPipe(f.src())")
}

func TestNoAnnotatedFunctionsWritesNothing(t *testing.T) {
	ctx, rep := processSource(t, `package widgets

type Plain struct{}
`)
	out := processortest.NewOutput()
	require.NoError(t, Process(ctx, out.Factory))
	processortest.RequireClean(t, rep)
	assert.Empty(t, out.Files)
}
