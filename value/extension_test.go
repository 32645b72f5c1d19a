package value

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autogo-dev/autogo/processor"
	"github.com/autogo-dev/autogo/processor/processortest"
)

// fakeExt is a scriptable Extension for tests.
type fakeExt struct {
	name       string
	applicable func(tc *TypeContext) bool
	consume    []string
	gen        func(tc *TypeContext) (string, error)
}

func (e *fakeExt) Name() string {
	if e.name == "" {
		return "stub"
	}
	return e.name
}

func (e *fakeExt) Applicable(tc *TypeContext) bool {
	if e.applicable == nil {
		return true
	}
	return e.applicable(tc)
}

func (e *fakeExt) ConsumeProperties(tc *TypeContext) []string {
	return e.consume
}

func (e *fakeExt) GenerateCode(tc *TypeContext) (string, error) {
	if e.gen == nil {
		return "", nil
	}
	return e.gen(tc)
}

const animalWithLegsSrc = `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Animal interface {
	Name() string
	Legs() int
}
`

func TestExtensionConsumesProperty(t *testing.T) {
	ext := &fakeExt{
		consume: []string{"legs"},
		gen: func(tc *TypeContext) (string, error) {
			return "func (v *" + tc.ImplName() + ") Legs() int {\n\tif v.legs < 0 {\n\t\treturn 0\n\t}\n\treturn v.legs\n}\n", nil
		},
	}
	src, _, rep := generate(t, animalWithLegsSrc, ext)
	processortest.RequireClean(t, rep)

	// the consumed property keeps its field and constructor parameter
	assert.Contains(t, src, "func NewAnimal(name string, legs int) Animal {")
	assert.Contains(t, src, "\tname string\n\tlegs int\n}")

	// the extension's accessor replaces the generated one
	assert.Contains(t, src, "if v.legs < 0 {")
	assert.NotContains(t, src, "func (v *autoValue_Animal) Legs() int {\n\treturn v.legs")
	assert.Contains(t, src, "func (v *autoValue_Animal) Name() string {")

	// String, Equal, and Hash no longer mention the consumed property
	assert.Contains(t, src, `return fmt.Sprintf("Animal{name: %v}", v.name)`)
	assert.Contains(t, src, "return v.name == o.Name()")
	assert.NotContains(t, src, "o.Legs()")
	assert.Contains(t, src, `fmt.Fprintf(h, "%v\x00", v.name)`)
	assert.NotContains(t, src, `fmt.Fprintf(h, "%v\x00", v.legs)`)
}

func TestExtensionConsumedPropertyKeepsBuilder(t *testing.T) {
	ext := &fakeExt{
		consume: []string{"legs"},
		gen: func(tc *TypeContext) (string, error) {
			return "func (v *" + tc.ImplName() + ") Legs() int {\n\treturn v.legs + 0\n}\n", nil
		},
	}
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Animal interface {
	Name() string
	Legs() int
}

// @autogo.ValueBuilder
type AnimalBuilder interface {
	SetName(string) AnimalBuilder
	SetLegs(int) AnimalBuilder
	Build() Animal
}
`, ext)
	processortest.RequireClean(t, rep)

	assert.Contains(t, src, "func (b *autoValue_AnimalBuilder) SetLegs(legs int) AnimalBuilder {")
	assert.Contains(t, src, "\tif !b.legsSet {")
	assert.Contains(t, src, `missing = append(missing, "legs")`)
	assert.Contains(t, src, "return NewAnimal(b.name, b.legs)")
	assert.Contains(t, src, `return fmt.Sprintf("Animal{name: %v}", v.name)`)
}

func TestExtensionConsumesAllProperties(t *testing.T) {
	ext := &fakeExt{
		consume: []string{"tag"},
		gen: func(tc *TypeContext) (string, error) {
			return "func (v *" + tc.ImplName() + ") Tag() string {\n\treturn v.tag\n}\n", nil
		},
	}
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Widget interface {
	Tag() string
}
`, ext)
	processortest.RequireClean(t, rep)

	assert.Contains(t, src, "func NewWidget(tag string) Widget {")
	assert.Contains(t, src, `return "Widget{}"`)
	assert.Contains(t, src, "\treturn true\n}")
	assert.Contains(t, src, `"hash/fnv"`)
	assert.NotContains(t, src, `"fmt"`)
	assert.Equal(t, 1, strings.Count(src, "func (v *autoValue_Widget) Tag() string {"))
}

func TestExtensionWarnsOnUnknownProperty(t *testing.T) {
	ext := &fakeExt{consume: []string{"wings"}}
	src, _, rep := generate(t, animalWithLegsSrc, ext)
	processortest.RequireClean(t, rep)

	d := processortest.RequireDiagnostic(t, rep, "extension stub consumes property wings, which Animal does not have")
	assert.Equal(t, processor.Warning, d.Severity)

	// the unknown name is ignored and generation proceeds untouched
	assert.Contains(t, src, "func (v *autoValue_Animal) Legs() int {")
	assert.Contains(t, src, "o.Legs()")
}

func TestExtensionErrorAbandonsType(t *testing.T) {
	ext := &fakeExt{
		gen: func(tc *TypeContext) (string, error) {
			return "", errors.New("template missing")
		},
	}
	ctx, rep := processSource(t, animalWithLegsSrc)
	out := processortest.NewOutput()
	require.NoError(t, NewGenerator(ext).Process(ctx, out.Factory))

	d := processortest.RequireDiagnostic(t, rep, "extension stub failed for Animal: template missing")
	assert.Equal(t, processor.Error, d.Severity)
	assert.Empty(t, out.Files)
}

func TestExtensionErrorLeavesOtherTypes(t *testing.T) {
	ext := &fakeExt{
		applicable: func(tc *TypeContext) bool { return tc.Model.Obj.Name() == "Alpha" },
		gen: func(tc *TypeContext) (string, error) {
			return "", errors.New("template missing")
		},
	}
	src, _, rep := generate(t, `package widgets

import _ "github.com/autogo-dev/autogo"

// @autogo.Value
type Alpha interface {
	Name() string
}

// @autogo.Value
type Beta interface {
	Size() int
}
`, ext)
	processortest.RequireDiagnostic(t, rep, "extension stub failed for Alpha")

	assert.Contains(t, src, "func NewBeta(size int) Beta {")
	assert.NotContains(t, src, "autoValue_Alpha")
}

func TestExtensionNotApplicable(t *testing.T) {
	ext := &fakeExt{
		applicable: func(tc *TypeContext) bool { return false },
		consume:    []string{"name"},
		gen: func(tc *TypeContext) (string, error) {
			return "func (v *" + tc.ImplName() + ") wingspan() int {\n\treturn 0\n}\n", nil
		},
	}
	src, _, rep := generate(t, animalWithLegsSrc, ext)
	processortest.RequireClean(t, rep)

	assert.Contains(t, src, "func (v *autoValue_Animal) Name() string {\n\treturn v.name")
	assert.NotContains(t, src, "wingspan")
}

func TestExtensionsRunInOrder(t *testing.T) {
	first := &fakeExt{
		name: "first",
		gen: func(tc *TypeContext) (string, error) {
			return "func (v *" + tc.ImplName() + ") firstExtra() int {\n\treturn 1\n}\n", nil
		},
	}
	second := &fakeExt{
		name: "second",
		gen: func(tc *TypeContext) (string, error) {
			return "func (v *" + tc.ImplName() + ") secondExtra() int {\n\treturn 2\n}\n", nil
		},
	}
	src, _, rep := generate(t, animalWithLegsSrc, first, second)
	processortest.RequireClean(t, rep)

	i := strings.Index(src, "firstExtra")
	j := strings.Index(src, "secondExtra")
	require.True(t, i >= 0 && j >= 0)
	assert.Less(t, i, j)

	// extension code follows the implementation it extends
	assert.Less(t, strings.Index(src, "func (v *autoValue_Animal) Hash() uint64"), i)
}
