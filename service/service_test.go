package service

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
// annotations the service generator consumes.
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

// @Annotation{AllowedElements: ConcreteTypes}
type Service struct {
	// @Required
	Implements []TypeRef
}
`

func processSource(t *testing.T, src string) (*processor.Context, *processor.Reporter) {
	t.Helper()
	return processortest.Context(t, autogoFixtureSrc, "example.com/widgets", map[string]string{"widgets.go": src})
}

// generate runs the service generator over src and returns the generated
// file's contents. Diagnostics are the caller's to check.
func generate(t *testing.T, src string) (string, *processortest.Output, *processor.Reporter) {
	t.Helper()
	ctx, rep := processSource(t, src)
	out := processortest.NewOutput()
	require.NoError(t, Process(ctx, out.Factory))
	return out.File(t, "widgets.autoservice.go"), out, rep
}

// expectDiagnostic runs the service generator over src, requires a diagnostic
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

func TestGenerateService(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Encoder interface {
	Encode(v interface{}) ([]byte, error)
}

// @autogo.Service{Implements: {Encoder}}
type JSONEncoder struct{}

func (e *JSONEncoder) Encode(v interface{}) ([]byte, error) {
	return nil, nil
}
`)
	processortest.RequireClean(t, rep)

	assert.True(t, strings.HasPrefix(src, "// Code generated by autogo. DO NOT EDIT.\n\npackage widgets\n"),
		"unexpected header:\n%s", src)
	assert.Contains(t, src, `"reflect"`)
	assert.Contains(t, src, `"github.com/autogo-dev/autogo"`)
	assert.Contains(t, src, `func init() {
	autogo.RegisterService(reflect.TypeOf((*Encoder)(nil)).Elem(), func() interface{} {
		var v JSONEncoder
		var impl Encoder = &v
		return impl
	})
}
`)
}

func TestValueReceiverRegistersValue(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Encoder interface {
	Encode(v interface{}) ([]byte, error)
}

// @autogo.Service{Implements: {Encoder}}
type JSONEncoder struct{}

func (e JSONEncoder) Encode(v interface{}) ([]byte, error) {
	return nil, nil
}
`)
	processortest.RequireClean(t, rep)
	assert.Contains(t, src, "var impl Encoder = v\n")
	assert.NotContains(t, src, "&v")
}

func TestConstructorDiscovered(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Store interface {
	Get(key string) string
}

// @autogo.Service{Implements: {Store}}
type Registry struct {
	entries map[string]string
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]string{}}
}

func (r *Registry) Get(key string) string {
	return r.entries[key]
}
`)
	processortest.RequireClean(t, rep)
	assert.Contains(t, src, "\t\tv := NewRegistry()\n")
	assert.Contains(t, src, "var impl Store = v\n")
	assert.NotContains(t, src, "var v Registry")
}

func TestValueConstructorPointerInterface(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Ticker interface {
	Tick() int
}

// @autogo.Service{Implements: {Ticker}}
type Clock struct{}

func MakeClock() Clock {
	return Clock{}
}

func (c *Clock) Tick() int {
	return 0
}
`)
	processortest.RequireClean(t, rep)
	assert.Contains(t, src, "\t\tv := MakeClock()\n")
	assert.Contains(t, src, "var impl Ticker = &v\n")
}

func TestMultipleInterfacesShareForm(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Encoder interface {
	Encode(v interface{}) ([]byte, error)
}

type Decoder interface {
	Decode(data []byte, v interface{}) error
}

// @autogo.Service{Implements: {Encoder, Decoder}}
type Codec struct{}

func (c Codec) Encode(v interface{}) ([]byte, error) {
	return nil, nil
}

func (c *Codec) Decode(data []byte, v interface{}) error {
	return nil
}
`)
	processortest.RequireClean(t, rep)

	// Encoder is satisfied by the value type alone, but every registration
	// of one service uses the same form.
	want := `	autogo.RegisterService(reflect.TypeOf((*Encoder)(nil)).Elem(), func() interface{} {
		var v Codec
		var impl Encoder = &v
		return impl
	})

	autogo.RegisterService(reflect.TypeOf((*Decoder)(nil)).Elem(), func() interface{} {
		var v Codec
		var impl Decoder = &v
		return impl
	})
`
	assert.Contains(t, src, want)
}

func TestRegistrationsFollowDeclarationOrder(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Store interface {
	Get(key string) string
}

// @autogo.Service{Implements: {Store}}
type FileStore struct{}

func (s *FileStore) Get(key string) string { return "" }

// @autogo.Service{Implements: {Store}}
type MemStore struct{}

func (s *MemStore) Get(key string) string { return "" }
`)
	processortest.RequireClean(t, rep)

	want := `	autogo.RegisterService(reflect.TypeOf((*Store)(nil)).Elem(), func() interface{} {
		var v FileStore
		var impl Store = &v
		return impl
	})

	autogo.RegisterService(reflect.TypeOf((*Store)(nil)).Elem(), func() interface{} {
		var v MemStore
		var impl Store = &v
		return impl
	})
`
	assert.Contains(t, src, want)
}

func TestSatisfactionViaEmbeddedMethods(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Pinger interface {
	Ping() error
}

type Base struct{}

func (b Base) Ping() error { return nil }

// @autogo.Service{Implements: {Pinger}}
type Agent struct {
	Base
}
`)
	processortest.RequireClean(t, rep)
	assert.Contains(t, src, "var v Agent\n")
	assert.Contains(t, src, "var impl Pinger = v\n")
}

func TestBasicTypeZeroValue(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Leveler interface {
	Level() int
}

// @autogo.Service{Implements: {Leveler}}
type Verbosity int

func (l Verbosity) Level() int {
	return int(l)
}
`)
	processortest.RequireClean(t, rep)
	assert.Contains(t, src, "var v Verbosity\n")
	assert.Contains(t, src, "var impl Leveler = v\n")
}

func TestCrossPackageInterface(t *testing.T) {
	fset := token.NewFileSet()
	autogoPkg := processortest.Typecheck(t, fset, autogoPkgPath, map[string]string{"annotations.go": autogoFixtureSrc})
	codec := processortest.Typecheck(t, fset, "example.com/codec", map[string]string{"codec.go": `package codec

type Encoder interface {
	Encode(v interface{}) ([]byte, error)
}
`})
	pkg := processortest.Typecheck(t, fset, "example.com/widgets", map[string]string{"widgets.go": `package widgets

import (
	"example.com/codec"

	_ "github.com/autogo-dev/autogo"
)

var _ codec.Encoder

// @autogo.Service{Implements: {codec.Encoder}}
type JSONEncoder struct{}

func (e *JSONEncoder) Encode(v interface{}) ([]byte, error) {
	return nil, nil
}
`}, autogoPkg, codec)
	rep := processor.NewReporter()
	ctx := processor.NewContext(pkg, rep)
	out := processortest.NewOutput()
	require.NoError(t, Process(ctx, out.Factory))
	processortest.RequireClean(t, rep)

	src := out.File(t, "widgets.autoservice.go")
	assert.Contains(t, src, "\t\"example.com/codec\"\n")
	assert.Contains(t, src, "(*codec.Encoder)(nil)")
	assert.Contains(t, src, "var impl codec.Encoder = &v\n")
}

func TestMissingMethod(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Closer interface {
	Close() error
}

// @autogo.Service{Implements: {Closer}}
type Widget struct{}
`, "Widget does not implement Closer: missing method Close")
}

func TestImplementsMustBeInterface(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Helper struct{}

// @autogo.Service{Implements: {Helper}}
type Widget struct{}
`, "type Helper in Implements is not an interface")
}

func TestImplementsIsRequired(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Service{}
type Widget struct{}
`, "field Implements is not specified but is required")
}

func TestImplementsMustNotBeEmpty(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Service{Implements: nil}
type Widget struct{}
`, "service type Widget must list at least one interface in Implements")
}

func TestGenericServiceRejected(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Closer interface {
	Close() error
}

// @autogo.Service{Implements: {Closer}}
type Box[T any] struct{}

func (b *Box[T]) Close() error {
	return nil
}
`, "cannot register generic type Box as a service")
}

func TestUnexportedServiceRejected(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Closer interface {
	Close() error
}

// @autogo.Service{Implements: {Closer}}
type widget struct{}

func (w *widget) Close() error {
	return nil
}
`, "service type widget must be exported")
}

func TestAliasRejected(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Closer interface {
	Close() error
}

type Widget struct{}

func (w *Widget) Close() error {
	return nil
}

// @autogo.Service{Implements: {Closer}}
type Gadget = Widget
`, "cannot register type alias Gadget as a service")
}

func TestAmbiguousConstructors(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Stamper interface {
	Stamp() string
}

// @autogo.Service{Implements: {Stamper}}
type Widget struct{}

func NewWidget() *Widget { return &Widget{} }

func MakeWidget() Widget { return Widget{} }

func (w *Widget) Stamp() string { return "" }
`, "service type Widget has ambiguous no-arg constructors: MakeWidget, NewWidget")
}

func TestUnexportedFieldsNeedConstructor(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Getter interface {
	Get(key string) string
}

// @autogo.Service{Implements: {Getter}}
type Cache struct {
	items map[string]string
}

func (c *Cache) Get(key string) string {
	return c.items[key]
}
`, "service type Cache must have a no-arg constructor")
}

func TestFuncTypeNeedsConstructor(t *testing.T) {
	expectDiagnostic(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Handler interface {
	Handle() error
}

// @autogo.Service{Implements: {Handler}}
type HandlerFunc func() error

func (h HandlerFunc) Handle() error {
	return h()
}
`, "service type HandlerFunc must have a no-arg constructor")
}

func TestNoAnnotatedTypesWritesNothing(t *testing.T) {
	ctx, rep := processSource(t, `package widgets

type Plain struct{}
`)
	out := processortest.NewOutput()
	require.NoError(t, Process(ctx, out.Factory))
	processortest.RequireClean(t, rep)
	assert.Empty(t, out.Files)
}
