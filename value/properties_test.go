package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertiesInDeclarationOrder(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Thing interface {
	Zebra() string
	Alpha() string
	Mango() string
}
`)
	requireClean(t, rep)

	assert.Contains(t, src, "func NewThing(zebra string, alpha string, mango string) Thing {")
	assert.Contains(t, src, `fmt.Sprintf("Thing{zebra: %v, alpha: %v, mango: %v}", v.zebra, v.alpha, v.mango)`)
}

func TestGetIsPrefixStripping(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Pet interface {
	GetName() string
	IsHappy() bool
}
`)
	requireClean(t, rep)

	assert.Contains(t, src, "func NewPet(name string, happy bool) Pet {")
	assert.Contains(t, src, "func (v *autoValue_Pet) GetName() string {\n\treturn v.name\n}")
	assert.Contains(t, src, "func (v *autoValue_Pet) IsHappy() bool {\n\treturn v.happy\n}")
}

// A single unprefixed accessor turns prefix stripping off for the whole type.
func TestMixedPrefixesKeepFullNames(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Pet interface {
	GetName() string
	Color() string
}
`)
	requireClean(t, rep)

	assert.Contains(t, src, "func NewPet(getName string, color string) Pet {")
}

// Is only strips for bool results, so IsoCode keeps its name even when every
// other accessor is prefixed.
func TestIsPrefixRequiresBool(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Country interface {
	IsoCode() string
}
`)
	requireClean(t, rep)

	assert.Contains(t, src, "func NewCountry(isoCode string) Country {")
}

func TestKeywordPropertyName(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Span interface {
	Range() []int
}
`)
	requireClean(t, rep)

	assert.Contains(t, src, "range_ []int")
	assert.Contains(t, src, "func NewSpan(range_ []int) Span {")
	assert.Contains(t, src, `panic("autogo: nil value for range (argument 1 of 1)")`)
}

func TestNilChecksAndNullable(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Doc interface {
	Tags() []string
	// @autogo.Nullable
	Note() *string
}
`)
	requireClean(t, rep)

	assert.Contains(t, src, "if tags == nil {")
	assert.Contains(t, src, `panic("autogo: nil value for tags (argument 1 of 2)")`)
	assert.NotContains(t, src, "nil value for note")
	assert.Contains(t, src, "reflect.DeepEqual(v.tags, o.Tags())")
	assert.Contains(t, src, "v.note == o.Note()")
	assert.Contains(t, src, `"reflect"`)
}

func TestInterfacePropertyComparesWithDeepEqual(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type Shape interface {
	Area() float64
}

// @autogo.Value
type Drawing interface {
	// @autogo.Nullable
	Outline() Shape
}
`)
	requireClean(t, rep)

	// an interface-typed property compiles under == but panics at runtime
	// for non-comparable dynamic types, so Equal goes through reflect
	assert.Contains(t, src, "reflect.DeepEqual(v.outline, o.Outline())")
}

func TestNullableOnNonNilableType(t *testing.T) {
	ctx, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Pet interface {
	// @autogo.Nullable
	Legs() int
}
`)
	out := newMemOutput()
	require.NoError(t, NewGenerator().Process(ctx, out.factory))
	requireDiagnostic(t, rep, "property legs has type int, which cannot be nil")
	assert.Empty(t, out.files)
}

func TestAccessorWithParamsRejected(t *testing.T) {
	ctx, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Pet interface {
	Feed(times int) error
}
`)
	out := newMemOutput()
	require.NoError(t, NewGenerator().Process(ctx, out.factory))
	requireDiagnostic(t, rep, "method Feed cannot be implemented by the generated value type")
	assert.Empty(t, out.files)
}

func TestDuplicatePropertyNames(t *testing.T) {
	ctx, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Pet interface {
	GetName() string
	IsName() bool
}
`)
	out := newMemOutput()
	require.NoError(t, NewGenerator().Process(ctx, out.factory))
	requireDiagnostic(t, rep, "methods GetName and IsName of Pet both map to property name")
	assert.Empty(t, out.files)
}

func TestEmbeddedInterfaceContributesProperties(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type named interface {
	Name() string
}

// @autogo.Value
type Animal interface {
	named
	Legs() int
}
`)
	requireClean(t, rep)

	// direct declarations come first, then embedded contributions
	assert.Contains(t, src, "func NewAnimal(legs int, name string) Animal {")
}

func TestEmbeddedMethodErrorNamesTheEmbed(t *testing.T) {
	ctx, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

type mutable interface {
	SetName(string)
}

// @autogo.Value
type Animal interface {
	mutable
}
`)
	out := newMemOutput()
	require.NoError(t, NewGenerator().Process(ctx, out.factory))
	requireDiagnostic(t, rep, "(embedded via mutable)")
	assert.Empty(t, out.files)
}

func TestValueOnNonInterface(t *testing.T) {
	ctx, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Pet struct {
	Name string
}
`)
	out := newMemOutput()
	require.NoError(t, NewGenerator().Process(ctx, out.factory))
	requireDiagnostic(t, rep, "cannot be used on concrete types")
	assert.Empty(t, out.files)
}

func TestGenericValue(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Pair[K comparable, V any] interface {
	Key() K
	Value() V
}
`)
	requireClean(t, rep)

	assert.Contains(t, src, "type autoValue_Pair[K comparable, V any] struct {")
	assert.Contains(t, src, "func NewPair[K comparable, V any](key K, value V) Pair[K, V] {")
	assert.Contains(t, src, "func (v *autoValue_Pair[K, V]) Key() K {")
	// K is constrained comparable, V is not
	assert.Contains(t, src, "v.key == o.Key()")
	assert.Contains(t, src, "reflect.DeepEqual(v.value, o.Value())")
}

func TestConstructorNameConflict(t *testing.T) {
	ctx, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Animal interface {
	Name() string
}

func NewAnimal(name string) Animal { return nil }
`)
	out := newMemOutput()
	require.NoError(t, NewGenerator().Process(ctx, out.factory))
	requireDiagnostic(t, rep, "the package already declares NewAnimal")
	assert.Empty(t, out.files)
}
