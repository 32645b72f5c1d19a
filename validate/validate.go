// Package validate reports whether a type or object model is superficially
// sound. The type checker produces partial models for source that contains
// errors: types come back as types.Invalid, objects lose their components,
// and anything derived from them misbehaves later. Generators call this
// package before classifying a declaration so that broken input is skipped
// with a diagnostic instead of producing garbage or panicking deeper in the
// pipeline.
//
// The walk is depth-bounded and cycle-safe, so it never fails to terminate
// even on self-referential or partially constructed models.
package validate

import (
	"go/types"

	"github.com/autogo-dev/autogo/processor"
)

const maxDepth = 32

// Type reports whether t and every type reachable from it is free of
// invalid or missing components.
func Type(t types.Type) bool {
	w := walker{seen: map[types.Type]bool{}}
	return w.walkType(t, 0)
}

// Object reports whether obj is present and its type is superficially sound.
func Object(obj types.Object) bool {
	if obj == nil {
		return false
	}
	if pkgName, ok := obj.(*types.PkgName); ok {
		return pkgName.Imported() != nil
	}
	return Type(obj.Type())
}

// Mirror reports whether an annotation mirror is complete: metadata present
// and sound, and every value in the graph carrying the payload its kind
// promises.
func Mirror(m processor.AnnotationMirror) bool {
	if m.Metadata == nil || !Object(m.Metadata.Type) {
		return false
	}
	return mirrorValue(m.Value, 0)
}

func mirrorValue(v processor.AnnotationValue, depth int) bool {
	if depth > maxDepth {
		return true
	}
	if !Type(v.Type) {
		return false
	}

	switch v.Kind {
	case processor.KindInt:
		_, ok := v.Value.(int64)
		return ok
	case processor.KindUint:
		_, ok := v.Value.(uint64)
		return ok
	case processor.KindFloat:
		_, ok := v.Value.(float64)
		return ok
	case processor.KindComplex:
		_, ok := v.Value.(complex128)
		return ok
	case processor.KindString:
		_, ok := v.Value.(string)
		return ok
	case processor.KindBool:
		_, ok := v.Value.(bool)
		return ok
	case processor.KindNil:
		return v.Value == nil

	case processor.KindFunc:
		fn, ok := v.Value.(*types.Func)
		return ok && fn != nil && Object(fn)
	case processor.KindType:
		tn, ok := v.Value.(*types.TypeName)
		return ok && tn != nil && Object(tn)

	case processor.KindSlice:
		elems, ok := v.Value.([]processor.AnnotationValue)
		if !ok {
			return false
		}
		for _, el := range elems {
			if !mirrorValue(el, depth+1) {
				return false
			}
		}
		return true
	case processor.KindMap:
		entries, ok := v.Value.([]processor.AnnotationMapEntry)
		if !ok {
			return false
		}
		for _, e := range entries {
			if !mirrorValue(e.Key, depth+1) || !mirrorValue(e.Value, depth+1) {
				return false
			}
		}
		return true
	case processor.KindStruct:
		entries, ok := v.Value.([]processor.AnnotationStructEntry)
		if !ok {
			return false
		}
		for _, e := range entries {
			if e.Field == nil || !Object(e.Field) || !mirrorValue(e.Value, depth+1) {
				return false
			}
		}
		return true
	}

	return false
}

type walker struct {
	seen map[types.Type]bool
}

func (w *walker) walkType(t types.Type, depth int) bool {
	if t == nil {
		return false
	}
	if depth > maxDepth {
		// too deep to judge; do not reject structures we cannot see the
		// bottom of
		return true
	}
	if w.seen[t] {
		return true
	}
	w.seen[t] = true

	switch t := t.(type) {
	case *types.Basic:
		return t.Kind() != types.Invalid

	case *types.Named:
		obj := t.Obj()
		if obj == nil || obj.Name() == "" {
			return false
		}
		for i := 0; i < t.TypeArgs().Len(); i++ {
			if !w.walkType(t.TypeArgs().At(i), depth+1) {
				return false
			}
		}
		return w.walkType(t.Underlying(), depth+1)

	case *types.TypeParam:
		return t.Obj() != nil && w.walkType(t.Constraint(), depth+1)

	case *types.Pointer:
		return w.walkType(t.Elem(), depth+1)

	case *types.Slice:
		return w.walkType(t.Elem(), depth+1)

	case *types.Array:
		return t.Len() >= 0 && w.walkType(t.Elem(), depth+1)

	case *types.Map:
		return w.walkType(t.Key(), depth+1) && w.walkType(t.Elem(), depth+1)

	case *types.Chan:
		return w.walkType(t.Elem(), depth+1)

	case *types.Struct:
		for i := 0; i < t.NumFields(); i++ {
			f := t.Field(i)
			if f == nil || !w.walkType(f.Type(), depth+1) {
				return false
			}
		}
		return true

	case *types.Tuple:
		for i := 0; i < t.Len(); i++ {
			v := t.At(i)
			if v == nil || !w.walkType(v.Type(), depth+1) {
				return false
			}
		}
		return true

	case *types.Signature:
		return w.walkType(t.Params(), depth+1) && w.walkType(t.Results(), depth+1)

	case *types.Interface:
		for i := 0; i < t.NumMethods(); i++ {
			m := t.Method(i)
			if m == nil || !w.walkType(m.Type(), depth+1) {
				return false
			}
		}
		for i := 0; i < t.NumEmbeddeds(); i++ {
			if !w.walkType(t.EmbeddedType(i), depth+1) {
				return false
			}
		}
		return true

	case *types.Union:
		for i := 0; i < t.Len(); i++ {
			term := t.Term(i)
			if term == nil || !w.walkType(term.Type(), depth+1) {
				return false
			}
		}
		return true
	}

	return false
}
