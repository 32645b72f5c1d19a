// Package typeset provides utilities for working with go/types models of
// annotated source: structural type equivalence that stays total on broken
// input, type-keyed maps and sets, method set resolution with provenance,
// element role casts, and visibility computation.
//
// The equivalence relation differs from types.Identical in one important way:
// the invalid type is equivalent only to itself. The type checker produces
// types.Invalid for components it could not resolve, and types.Identical
// treats such a type as identical to everything, which makes it useless for
// classifying declarations in packages that still contain errors. Equivalent
// is reflexive, symmetric, and transitive even when its inputs contain
// invalid components.
package typeset

import (
	"go/types"

	"github.com/cockroachdb/errors"
)

// Equivalent reports whether a and b are structurally equivalent. Named types
// are equivalent when they originate from the same type declaration and have
// pairwise-equivalent type arguments. Type parameters are equivalent only to
// themselves; to compare types from two generic declarations, build a
// ParamCorrespondence and use EquivalentUnder.
func Equivalent(a, b types.Type) bool {
	return equivalent(a, b, nil)
}

// EquivalentUnder is like Equivalent, but type parameters paired by corr are
// treated as equivalent to one another.
func EquivalentUnder(a, b types.Type, corr *ParamCorrespondence) bool {
	return equivalent(a, b, corr)
}

// ParamCorrespondence pairs the type parameters of two generic declarations.
type ParamCorrespondence struct {
	pairs map[*types.TypeParam]*types.TypeParam
}

// Correspond builds the correspondence between two type parameter lists,
// verifying that they have the same length and that parameters at the same
// position have the same name and equivalent constraints. Constraints are
// compared under the correspondence being built, so constraints may refer to
// other parameters of their own list.
func Correspond(a, b *types.TypeParamList) (*ParamCorrespondence, error) {
	corr, errs := CorrespondAll(a, b)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return corr, nil
}

// CorrespondAll is like Correspond, but collects every divergence between the
// two lists rather than stopping at the first. When the lists cannot be paired
// at all because their lengths differ, the returned correspondence is nil.
func CorrespondAll(a, b *types.TypeParamList) (*ParamCorrespondence, []error) {
	na, nb := a.Len(), b.Len()
	if na != nb {
		return nil, []error{errors.Newf("type parameter lists have different lengths: %d and %d", na, nb)}
	}
	if na == 0 {
		return &ParamCorrespondence{}, nil
	}
	corr := &ParamCorrespondence{pairs: make(map[*types.TypeParam]*types.TypeParam, 2*na)}
	for i := 0; i < na; i++ {
		pa, pb := a.At(i), b.At(i)
		corr.pairs[pa] = pb
		corr.pairs[pb] = pa
	}
	var errs []error
	for i := 0; i < na; i++ {
		pa, pb := a.At(i), b.At(i)
		if pa.Obj().Name() != pb.Obj().Name() {
			errs = append(errs, errors.Newf("type parameter %d is named %s on one declaration but %s on the other",
				i, pa.Obj().Name(), pb.Obj().Name()))
		}
		if !equivalent(pa.Constraint(), pb.Constraint(), corr) {
			errs = append(errs, errors.Newf("type parameter %s has constraint %v on one declaration but %v on the other",
				pa.Obj().Name(), pa.Constraint(), pb.Constraint()))
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return corr, nil
}

func (c *ParamCorrespondence) matches(a, b *types.TypeParam) bool {
	if c == nil || c.pairs == nil {
		return false
	}
	return c.pairs[a] == b
}

func equivalent(a, b types.Type, corr *ParamCorrespondence) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a == b {
		return true
	}

	switch a := a.(type) {
	case *types.Basic:
		b, ok := b.(*types.Basic)
		return ok && a.Kind() == b.Kind()

	case *types.Named:
		b, ok := b.(*types.Named)
		if !ok || a.Obj() != b.Obj() {
			return false
		}
		return typeListsEquivalent(a.TypeArgs(), b.TypeArgs(), corr)

	case *types.TypeParam:
		b, ok := b.(*types.TypeParam)
		return ok && corr.matches(a, b)

	case *types.Pointer:
		b, ok := b.(*types.Pointer)
		return ok && equivalent(a.Elem(), b.Elem(), corr)

	case *types.Slice:
		b, ok := b.(*types.Slice)
		return ok && equivalent(a.Elem(), b.Elem(), corr)

	case *types.Array:
		b, ok := b.(*types.Array)
		return ok && a.Len() == b.Len() && equivalent(a.Elem(), b.Elem(), corr)

	case *types.Map:
		b, ok := b.(*types.Map)
		return ok && equivalent(a.Key(), b.Key(), corr) && equivalent(a.Elem(), b.Elem(), corr)

	case *types.Chan:
		b, ok := b.(*types.Chan)
		return ok && a.Dir() == b.Dir() && equivalent(a.Elem(), b.Elem(), corr)

	case *types.Struct:
		b, ok := b.(*types.Struct)
		if !ok || a.NumFields() != b.NumFields() {
			return false
		}
		for i := 0; i < a.NumFields(); i++ {
			fa, fb := a.Field(i), b.Field(i)
			if fa.Name() != fb.Name() || fa.Embedded() != fb.Embedded() || a.Tag(i) != b.Tag(i) {
				return false
			}
			if !fa.Exported() && fa.Pkg() != fb.Pkg() {
				return false
			}
			if !equivalent(fa.Type(), fb.Type(), corr) {
				return false
			}
		}
		return true

	case *types.Tuple:
		b, ok := b.(*types.Tuple)
		if !ok || a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !equivalent(a.At(i).Type(), b.At(i).Type(), corr) {
				return false
			}
		}
		return true

	case *types.Signature:
		b, ok := b.(*types.Signature)
		if !ok || a.Variadic() != b.Variadic() {
			return false
		}
		// Receivers are not part of a signature's identity.
		if a.TypeParams().Len() != b.TypeParams().Len() {
			return false
		}
		if a.TypeParams().Len() > 0 {
			sub, err := Correspond(a.TypeParams(), b.TypeParams())
			if err != nil {
				return false
			}
			corr = merge(corr, sub)
		}
		return equivalent(a.Params(), b.Params(), corr) && equivalent(a.Results(), b.Results(), corr)

	case *types.Interface:
		b, ok := b.(*types.Interface)
		if !ok || a.NumMethods() != b.NumMethods() {
			return false
		}
		if a.IsComparable() != b.IsComparable() || a.IsMethodSet() != b.IsMethodSet() {
			return false
		}
		for i := 0; i < a.NumMethods(); i++ {
			ma, mb := a.Method(i), b.Method(i)
			if ma.Name() != mb.Name() || !equivalent(ma.Type(), mb.Type(), corr) {
				return false
			}
		}
		return unionTermsEquivalent(a, b, corr)

	case *types.Union:
		b, ok := b.(*types.Union)
		if !ok || a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			ta, tb := a.Term(i), b.Term(i)
			if ta.Tilde() != tb.Tilde() || !equivalent(ta.Type(), tb.Type(), corr) {
				return false
			}
		}
		return true
	}

	return false
}

func typeListsEquivalent(a, b *types.TypeList, corr *ParamCorrespondence) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if !equivalent(a.At(i), b.At(i), corr) {
			return false
		}
	}
	return true
}

// unionTermsEquivalent compares the type terms embedded in two constraint
// interfaces. Method-only interfaces have none and compare trivially.
func unionTermsEquivalent(a, b *types.Interface, corr *ParamCorrespondence) bool {
	ta, tb := unionTerms(a), unionTerms(b)
	if len(ta) != len(tb) {
		return false
	}
	for i := range ta {
		if ta[i].Tilde() != tb[i].Tilde() || !equivalent(ta[i].Type(), tb[i].Type(), corr) {
			return false
		}
	}
	return true
}

func unionTerms(iface *types.Interface) []*types.Term {
	var terms []*types.Term
	for i := 0; i < iface.NumEmbeddeds(); i++ {
		switch et := iface.EmbeddedType(i).(type) {
		case *types.Union:
			for j := 0; j < et.Len(); j++ {
				terms = append(terms, et.Term(j))
			}
		case *types.Interface:
			// already flattened into methods/comparable; nothing to collect
		case *types.Named:
			if sub, ok := et.Underlying().(*types.Interface); ok {
				terms = append(terms, unionTerms(sub)...)
			}
		}
	}
	return terms
}

func merge(base, extra *ParamCorrespondence) *ParamCorrespondence {
	if base == nil || base.pairs == nil {
		return extra
	}
	if extra == nil || extra.pairs == nil {
		return base
	}
	merged := &ParamCorrespondence{pairs: make(map[*types.TypeParam]*types.TypeParam, len(base.pairs)+len(extra.pairs))}
	for k, v := range base.pairs {
		merged.pairs[k] = v
	}
	for k, v := range extra.pairs {
		merged.pairs[k] = v
	}
	return merged
}
