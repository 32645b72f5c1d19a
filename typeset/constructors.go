package typeset

import "go/types"

// NoArgConstructors returns the exported functions in t's package that take
// no arguments and return t or a pointer to t, in name order. Generic
// functions are excluded.
func NoArgConstructors(t *types.Named) []*types.Func {
	pkg := t.Obj().Pkg()
	if pkg == nil {
		return nil
	}
	var ctors []*types.Func
	for _, name := range pkg.Scope().Names() {
		fn, ok := pkg.Scope().Lookup(name).(*types.Func)
		if !ok || !fn.Exported() {
			continue
		}
		sig := fn.Type().(*types.Signature)
		if sig.Params().Len() != 0 || sig.Results().Len() != 1 || sig.TypeParams().Len() != 0 {
			continue
		}
		res := sig.Results().At(0).Type()
		if ptr, ok := res.(*types.Pointer); ok {
			res = ptr.Elem()
		}
		named, ok := res.(*types.Named)
		if !ok || named.Origin() != t.Origin() {
			continue
		}
		ctors = append(ctors, fn)
	}
	return ctors
}
