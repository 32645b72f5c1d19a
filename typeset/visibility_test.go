package typeset

import (
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const visibilityFixture = `
package impl

type Widget struct{}

type hidden struct{}

func (Widget) Exported()  {}
func (hidden) Visible()   {}

var Wired []*hidden

func Outer() {
	type local struct{}
	_ = local{}
}
`

func TestEffectiveVisibility(t *testing.T) {
	pkg, info := checkSourceInfo(t, "example.com/proj/internal/impl", visibilityFixture, nil)

	widget := pkg.Scope().Lookup("Widget")
	assert.Equal(t, Internal, EffectiveVisibility(widget), "exported under an internal path")

	hidden := pkg.Scope().Lookup("hidden")
	assert.Equal(t, PackagePrivate, EffectiveVisibility(hidden))

	// An exported method on an unexported type is only as visible as its
	// receiver.
	visible := declaredMethod(t, lookupNamed(t, pkg, "hidden"), "Visible")
	assert.Equal(t, PackagePrivate, EffectiveVisibility(visible))

	exported := declaredMethod(t, lookupNamed(t, pkg, "Widget"), "Exported")
	assert.Equal(t, Internal, EffectiveVisibility(exported))

	var local types.Object
	for ident, obj := range info.Defs {
		if ident.Name == "local" {
			local = obj
		}
	}
	require.NotNil(t, local, "fixture should define a function-local type")
	assert.Equal(t, Private, EffectiveVisibility(local))

	assert.Equal(t, Public, EffectiveVisibility(types.Universe.Lookup("error")))
}

func TestEffectiveVisibilityPublic(t *testing.T) {
	pkg := checkSource(t, "example.com/proj/widgets", visibilityFixture)
	assert.Equal(t, Public, EffectiveVisibility(pkg.Scope().Lookup("Widget")))
}

func TestVisibleFrom(t *testing.T) {
	pkg := checkSource(t, "example.com/proj/internal/impl", visibilityFixture)
	widget := pkg.Scope().Lookup("Widget")
	hidden := pkg.Scope().Lookup("hidden")

	inside := types.NewPackage("example.com/proj/server", "server")
	outside := types.NewPackage("example.com/other", "other")
	root := types.NewPackage("example.com/proj", "proj")

	assert.True(t, VisibleFrom(widget, inside))
	assert.True(t, VisibleFrom(widget, root))
	assert.False(t, VisibleFrom(widget, outside))
	assert.True(t, VisibleFrom(widget, pkg), "always visible in the defining package")

	assert.False(t, VisibleFrom(hidden, inside))
	assert.True(t, VisibleFrom(hidden, pkg))
}

func TestTypeVisibleFrom(t *testing.T) {
	pkg := checkSource(t, "example.com/proj/impl", visibilityFixture)
	elsewhere := types.NewPackage("example.com/users", "users")

	wired := lookupType(t, pkg, "Wired")
	ok, offender := TypeVisibleFrom(wired, elsewhere)
	assert.False(t, ok)
	require.NotNil(t, offender)
	assert.Equal(t, "hidden", offender.Name())

	ok, _ = TypeVisibleFrom(wired, pkg)
	assert.True(t, ok)

	ok, _ = TypeVisibleFrom(lookupType(t, pkg, "Widget"), elsewhere)
	assert.True(t, ok)
}

func TestVisibilityOrdering(t *testing.T) {
	assert.True(t, Private < PackagePrivate)
	assert.True(t, PackagePrivate < Internal)
	assert.True(t, Internal < Public)
	assert.Equal(t, "package-private", PackagePrivate.String())
}
