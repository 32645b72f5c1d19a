package typeset

import (
	"go/types"
	"strings"
)

// Visibility describes how widely an element can be referenced. The levels
// are ordered from most to least restrictive so that the effective visibility
// of a chain of enclosing elements is simply the minimum.
type Visibility int

const (
	// Private elements are declared inside a function body and cannot be
	// referenced from any other scope.
	Private Visibility = iota
	// PackagePrivate elements are unexported package-level declarations,
	// referenceable only within their own package.
	PackagePrivate
	// Internal elements are exported but live under an internal/ import
	// path, so only packages within the containing subtree may import them.
	Internal
	// Public elements are exported and importable from anywhere.
	Public
)

func (v Visibility) String() string {
	switch v {
	case Private:
		return "private"
	case PackagePrivate:
		return "package-private"
	case Internal:
		return "internal"
	case Public:
		return "public"
	default:
		return "unknown"
	}
}

// EffectiveVisibility computes the visibility of obj, taking the whole
// enclosing chain into account: a method is no more visible than its
// receiver's type, an exported name is no more visible than its package's
// import path allows, and anything declared inside a function is private.
// Universe-scope objects are public.
func EffectiveVisibility(obj types.Object) Visibility {
	if obj == nil {
		return Private
	}
	pkg := obj.Pkg()
	if pkg == nil {
		return Public
	}
	if parent := obj.Parent(); parent != nil && parent != types.Universe && parent != pkg.Scope() {
		return Private
	}

	v := Public
	if hasInternalSegment(pkg.Path()) {
		v = Internal
	}
	if !obj.Exported() {
		v = min(v, PackagePrivate)
	}
	if f, ok := obj.(*types.Func); ok {
		if recv := f.Type().(*types.Signature).Recv(); recv != nil {
			if base := namedOf(recv.Type()); base != nil {
				v = min(v, EffectiveVisibility(base.Obj()))
			}
		}
	}
	return v
}

// VisibleFrom reports whether code generated into the package from may
// reference obj.
func VisibleFrom(obj types.Object, from *types.Package) bool {
	if obj == nil {
		return false
	}
	pkg := obj.Pkg()
	if pkg == nil {
		return true
	}
	switch EffectiveVisibility(obj) {
	case Private:
		return false
	case PackagePrivate:
		return from != nil && pkg.Path() == from.Path()
	case Internal:
		if from != nil && pkg.Path() == from.Path() {
			return true
		}
		return from != nil && internalSubtreeAllows(pkg.Path(), from.Path())
	default:
		return true
	}
}

// TypeVisibleFrom walks t and reports whether every named type it mentions is
// visible from the given package. The first offending type name is returned
// for diagnostics.
func TypeVisibleFrom(t types.Type, from *types.Package) (bool, *types.TypeName) {
	var offender *types.TypeName
	var walk func(t types.Type) bool
	seen := map[types.Type]bool{}
	walk = func(t types.Type) bool {
		if t == nil || seen[t] {
			return true
		}
		seen[t] = true
		switch t := t.(type) {
		case *types.Named:
			if !VisibleFrom(t.Obj(), from) {
				offender = t.Obj()
				return false
			}
			for i := 0; i < t.TypeArgs().Len(); i++ {
				if !walk(t.TypeArgs().At(i)) {
					return false
				}
			}
		case *types.Pointer:
			return walk(t.Elem())
		case *types.Slice:
			return walk(t.Elem())
		case *types.Array:
			return walk(t.Elem())
		case *types.Chan:
			return walk(t.Elem())
		case *types.Map:
			return walk(t.Key()) && walk(t.Elem())
		case *types.Struct:
			for i := 0; i < t.NumFields(); i++ {
				if !walk(t.Field(i).Type()) {
					return false
				}
			}
		case *types.Signature:
			return walk(t.Params()) && walk(t.Results())
		case *types.Tuple:
			for i := 0; i < t.Len(); i++ {
				if !walk(t.At(i).Type()) {
					return false
				}
			}
		case *types.Interface:
			for i := 0; i < t.NumMethods(); i++ {
				if !walk(t.Method(i).Type()) {
					return false
				}
			}
		}
		return true
	}
	ok := walk(t)
	return ok, offender
}

func hasInternalSegment(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if seg == "internal" {
			return true
		}
	}
	return false
}

// internalSubtreeAllows reports whether the importer path lies within the
// subtree rooted at the parent of every internal segment of the imported
// path.
func internalSubtreeAllows(imported, importer string) bool {
	segs := strings.Split(imported, "/")
	for i, seg := range segs {
		if seg != "internal" {
			continue
		}
		root := strings.Join(segs[:i], "/")
		if root == "" {
			return false
		}
		if importer != root && !strings.HasPrefix(importer, root+"/") {
			return false
		}
	}
	return true
}

func namedOf(t types.Type) *types.Named {
	switch t := t.(type) {
	case *types.Named:
		return t
	case *types.Pointer:
		return namedOf(t.Elem())
	default:
		return nil
	}
}
