package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autogo-dev/autogo/processor"
	"github.com/autogo-dev/autogo/processor/processortest"
)

// autogoFixtureSrc is a miniature of the root autogo package with just the
// annotations the value generator consumes. Tests type-check fixtures in
// memory instead of loading real packages from disk.
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

// @Annotation{AllowedElements: Interfaces}
type Value bool

// @Annotation{AllowedElements: Interfaces}
type ValueBuilder bool

// @Annotation{AllowedElements: InterfaceMethods}
type Nullable bool
`

func processSource(t *testing.T, src string) (*processor.Context, *processor.Reporter) {
	t.Helper()
	return processortest.Context(t, autogoFixtureSrc, "example.com/widgets", map[string]string{"widgets.go": src})
}

// generate runs the value generator over src and returns the generated file's
// contents. Diagnostics are the caller's to check.
func generate(t *testing.T, src string, exts ...Extension) (string, *processortest.Output, *processor.Reporter) {
	t.Helper()
	ctx, rep := processSource(t, src)
	out := processortest.NewOutput()
	err := NewGenerator(exts...).Process(ctx, out.Factory)
	require.NoError(t, err)
	return out.File(t, "widgets.autovalue.go"), out, rep
}

func TestGenerateValue(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Animal interface {
	Name() string
	Legs() int
}
`)
	processortest.RequireClean(t, rep)

	want := `// Code generated by autogo. DO NOT EDIT.

package widgets

import (
	"fmt"
	"hash/fnv"
)

// autoValue_Animal is the generated implementation of Animal.
type autoValue_Animal struct {
	name string
	legs int
}

// NewAnimal returns an immutable Animal built from the given properties.
func NewAnimal(name string, legs int) Animal {
	return &autoValue_Animal{
		name: name,
		legs: legs,
	}
}

func (v *autoValue_Animal) Name() string {
	return v.name
}

func (v *autoValue_Animal) Legs() int {
	return v.legs
}

func (v *autoValue_Animal) String() string {
	return fmt.Sprintf("Animal{name: %v, legs: %v}", v.name, v.legs)
}

func (v *autoValue_Animal) Equal(o Animal) bool {
	if o == nil {
		return false
	}
	return v.name == o.Name() && v.legs == o.Legs()
}

func (v *autoValue_Animal) Hash() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%v\x00", v.name)
	fmt.Fprintf(h, "%v\x00", v.legs)
	return h.Sum64()
}
`
	require.Equal(t, want, src)
}

func TestGenerateBuilder(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Animal interface {
	Name() string
	Legs() int
	ToBuilder() AnimalBuilder
}

// @autogo.ValueBuilder
type AnimalBuilder interface {
	Name(string) AnimalBuilder
	Legs(int) AnimalBuilder
	Build() Animal
}
`)
	processortest.RequireClean(t, rep)

	want := `// Code generated by autogo. DO NOT EDIT.

package widgets

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// autoValue_Animal is the generated implementation of Animal.
type autoValue_Animal struct {
	name string
	legs int
}

// NewAnimal returns an immutable Animal built from the given properties.
func NewAnimal(name string, legs int) Animal {
	return &autoValue_Animal{
		name: name,
		legs: legs,
	}
}

func (v *autoValue_Animal) Name() string {
	return v.name
}

func (v *autoValue_Animal) Legs() int {
	return v.legs
}

func (v *autoValue_Animal) String() string {
	return fmt.Sprintf("Animal{name: %v, legs: %v}", v.name, v.legs)
}

func (v *autoValue_Animal) Equal(o Animal) bool {
	if o == nil {
		return false
	}
	return v.name == o.Name() && v.legs == o.Legs()
}

func (v *autoValue_Animal) Hash() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%v\x00", v.name)
	fmt.Fprintf(h, "%v\x00", v.legs)
	return h.Sum64()
}

func (v *autoValue_Animal) ToBuilder() AnimalBuilder {
	return &autoValue_AnimalBuilder{
		name:    v.name,
		nameSet: true,
		legs:    v.legs,
		legsSet: true,
	}
}

// NewAnimalBuilder returns an empty builder of Animal values.
func NewAnimalBuilder() AnimalBuilder {
	return &autoValue_AnimalBuilder{}
}

// autoValue_AnimalBuilder is the generated implementation of AnimalBuilder.
type autoValue_AnimalBuilder struct {
	name    string
	nameSet bool
	legs    int
	legsSet bool
}

func (b *autoValue_AnimalBuilder) Name(name string) AnimalBuilder {
	b.name = name
	b.nameSet = true
	return b
}

func (b *autoValue_AnimalBuilder) Legs(legs int) AnimalBuilder {
	b.legs = legs
	b.legsSet = true
	return b
}

func (b *autoValue_AnimalBuilder) Build() Animal {
	var missing []string
	if !b.nameSet {
		missing = append(missing, "name")
	}
	if !b.legsSet {
		missing = append(missing, "legs")
	}
	if len(missing) > 0 {
		panic("autogo: missing required properties: " + strings.Join(missing, ", "))
	}
	return &autoValue_Animal{
		name: b.name,
		legs: b.legs,
	}
}
`
	require.Equal(t, want, src)
}

func TestSurfaceMethodsAreNotProperties(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Animal interface {
	Name() string
	String() string
	Equal(Animal) bool
	Hash() uint64
}
`)
	processortest.RequireClean(t, rep)

	assert.Contains(t, src, "func NewAnimal(name string) Animal {")
	assert.Contains(t, src, `fmt.Sprintf("Animal{name: %v}", v.name)`)
	assert.NotContains(t, src, "v.string")
	assert.NotContains(t, src, "v.hash")
}

func TestNoPropertiesValue(t *testing.T) {
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Unit interface {
}
`)
	processortest.RequireClean(t, rep)

	assert.Contains(t, src, "func NewUnit() Unit {")
	assert.Contains(t, src, `return "Unit{}"`)
	assert.Contains(t, src, "return true")
	assert.NotContains(t, src, `"fmt"`)
	assert.Contains(t, src, `"hash/fnv"`)
}

func TestBrokenTypeStillGeneratesOthers(t *testing.T) {
	ctx, rep := processSource(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Good interface {
	Name() string
}

// @autogo.Value
type Bad interface {
	Resize(float64)
}
`)
	out := processortest.NewOutput()
	require.NoError(t, NewGenerator().Process(ctx, out.Factory))
	processortest.RequireDiagnostic(t, rep, "cannot be implemented by the generated value type")

	src := out.File(t, "widgets.autovalue.go")
	assert.Contains(t, src, "func NewGood(name string) Good {")
	assert.NotContains(t, src, "Bad")
}

func TestNoAnnotatedTypesWritesNothing(t *testing.T) {
	ctx, rep := processSource(t, `package widgets

type Plain struct{}
`)
	out := processortest.NewOutput()
	require.NoError(t, NewGenerator().Process(ctx, out.Factory))
	processortest.RequireClean(t, rep)
	assert.Empty(t, out.Files)
}
