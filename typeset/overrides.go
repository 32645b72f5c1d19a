package typeset

import (
	"go/types"
	"sort"
)

// Method is a resolved member of a type's method set, along with how it got
// there: the embedding depth and the chain of embedded types it was promoted
// through. Abstract methods are those declared by an interface (directly or
// via an embedded interface-typed field) rather than with a concrete body.
type Method struct {
	Obj      *types.Func
	Depth    int
	Via      []types.Type
	Abstract bool
}

// MethodSet is the resolved method set of a type, computed by an explicit
// walk over the embedding graph rather than via types.NewMethodSet, so that
// every resolved method carries provenance and shadowed or ambiguous
// candidates remain observable for diagnostics. Membership agrees with
// types.NewMethodSet.
type MethodSet struct {
	resolved  map[string]Method
	shadowed  map[string][]Method
	ambiguous map[string][]Method
	names     []string
}

// ResolveMethods computes the method set of t. Pass a pointer type to resolve
// the pointer's method set (which includes pointer-receiver methods).
func ResolveMethods(t types.Type) *MethodSet {
	ms := &MethodSet{
		resolved:  map[string]Method{},
		shadowed:  map[string][]Method{},
		ambiguous: map[string][]Method{},
	}

	type item struct {
		t    types.Type
		via  []types.Type
		addr bool
		// viaIface marks items reached through interface embedding, whose
		// duplicate methods union instead of conflicting
		viaIface bool
	}
	type entry struct {
		m        Method
		isField  bool
		ptrRecv  bool
		addr     bool
		viaIface bool
	}

	unionEntries := func(entries []entry) (Method, bool) {
		first := entries[0]
		if first.isField || !first.viaIface || !first.m.Abstract {
			return Method{}, false
		}
		for _, e := range entries[1:] {
			if e.isField || !e.viaIface || !e.m.Abstract {
				return Method{}, false
			}
			if !Equivalent(e.m.Obj.Type(), first.m.Obj.Type()) {
				return Method{}, false
			}
		}
		return first.m, true
	}

	current := []item{{t: t}}
	seen := map[*types.Named]bool{}
	blocked := map[string]bool{}

	for depth := 0; len(current) > 0; depth++ {
		level := map[string][]entry{}
		levelSeen := map[*types.Named]bool{}
		var next []item

		for _, it := range current {
			tt := it.t
			addr := it.addr
			if ptr, ok := tt.(*types.Pointer); ok {
				tt = ptr.Elem()
				addr = true
				if _, isIface := tt.Underlying().(*types.Interface); isIface {
					// a pointer to an interface has no methods
					continue
				}
			}

			if named, ok := tt.(*types.Named); ok {
				if seen[named] {
					continue
				}
				levelSeen[named] = true
				for i := 0; i < named.NumMethods(); i++ {
					m := named.Method(i)
					sig := m.Type().(*types.Signature)
					_, ptrRecv := sig.Recv().Type().(*types.Pointer)
					level[m.Name()] = append(level[m.Name()], entry{
						m:       Method{Obj: m, Depth: depth, Via: it.via},
						ptrRecv: ptrRecv,
						addr:    addr,
					})
				}
			}

			switch u := tt.Underlying().(type) {
			case *types.Struct:
				for i := 0; i < u.NumFields(); i++ {
					f := u.Field(i)
					level[f.Name()] = append(level[f.Name()], entry{isField: true})
					if f.Embedded() {
						via := appendVia(it.via, f.Type())
						next = append(next, item{t: f.Type(), via: via, addr: addr})
					}
				}
			case *types.Interface:
				for i := 0; i < u.NumExplicitMethods(); i++ {
					m := u.ExplicitMethod(i)
					level[m.Name()] = append(level[m.Name()], entry{
						m:        Method{Obj: m, Depth: depth, Via: it.via, Abstract: true},
						addr:     true,
						viaIface: it.viaIface,
					})
				}
				for i := 0; i < u.NumEmbeddeds(); i++ {
					et := u.EmbeddedType(i)
					if _, isUnion := et.(*types.Union); isUnion {
						continue
					}
					next = append(next, item{t: et, via: appendVia(it.via, et), addr: true, viaIface: true})
				}
			}
		}

		for name, entries := range level {
			if blocked[name] {
				for _, e := range entries {
					if !e.isField {
						ms.shadowed[name] = append(ms.shadowed[name], e.m)
					}
				}
				continue
			}
			blocked[name] = true
			if len(entries) > 1 {
				// Overlapping methods reached purely through interface
				// embedding union into one method as long as their
				// signatures agree; everything else is ambiguous.
				if unioned, ok := unionEntries(entries); ok {
					ms.resolved[name] = unioned
					continue
				}
				var mm []Method
				for _, e := range entries {
					if !e.isField {
						mm = append(mm, e.m)
					}
				}
				if len(mm) > 0 {
					ms.ambiguous[name] = mm
				}
				continue
			}
			e := entries[0]
			if e.isField {
				continue
			}
			if e.ptrRecv && !e.addr {
				// a pointer-receiver method is not in the value's method
				// set, but its name still shadows deeper candidates
				continue
			}
			ms.resolved[name] = e.m
		}

		for n := range levelSeen {
			seen[n] = true
		}
		current = next
	}

	ms.names = make([]string, 0, len(ms.resolved))
	for name := range ms.resolved {
		ms.names = append(ms.names, name)
	}
	sort.Strings(ms.names)
	return ms
}

func appendVia(via []types.Type, t types.Type) []types.Type {
	out := make([]types.Type, len(via)+1)
	copy(out, via)
	out[len(via)] = t
	return out
}

// Lookup returns the resolved method with the given name.
func (ms *MethodSet) Lookup(name string) (Method, bool) {
	m, ok := ms.resolved[name]
	return m, ok
}

// All returns the resolved methods sorted by name.
func (ms *MethodSet) All() []Method {
	out := make([]Method, 0, len(ms.names))
	for _, name := range ms.names {
		out = append(out, ms.resolved[name])
	}
	return out
}

// Shadowed returns candidates for name that were hidden by a resolution at a
// shallower embedding depth.
func (ms *MethodSet) Shadowed(name string) []Method {
	return ms.shadowed[name]
}

// AmbiguousNames returns the names that could not be resolved because
// multiple candidates appeared at the same shallowest depth.
func (ms *MethodSet) AmbiguousNames() []string {
	names := make([]string, 0, len(ms.ambiguous))
	for name := range ms.ambiguous {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Overrides reports whether candidate is the method that resolves for its
// name in within's method set while overridden is a same-named candidate
// shadowed at a greater embedding depth. A method never overrides itself.
// Resolution follows the host language's promotion and shadowing rules
// exactly, so the result agrees with what a selector expression on within
// would invoke.
func Overrides(candidate, overridden *types.Func, within types.Type) bool {
	if candidate == nil || overridden == nil || sameFunc(candidate, overridden) {
		return false
	}
	ms := ResolveMethods(within)
	res, ok := ms.Lookup(candidate.Name())
	if !ok || !sameFunc(res.Obj, candidate) {
		return false
	}
	for _, sh := range ms.Shadowed(candidate.Name()) {
		if sameFunc(sh.Obj, overridden) {
			return true
		}
	}
	return false
}

func sameFunc(a, b *types.Func) bool {
	if a == b {
		return true
	}
	return a != nil && b != nil && a.Origin() == b.Origin()
}

// MissingMethods returns the methods of iface that impl does not provide,
// either because no method of that name resolves or because the resolved
// method's signature is not equivalent. Unexported interface methods can only
// be satisfied from the interface's own package.
func MissingMethods(impl types.Type, iface *types.Interface) []*types.Func {
	ms := ResolveMethods(impl)
	var missing []*types.Func
	for i := 0; i < iface.NumMethods(); i++ {
		im := iface.Method(i)
		got, ok := ms.Lookup(im.Name())
		if !ok {
			missing = append(missing, im)
			continue
		}
		if !im.Exported() && got.Obj.Pkg() != im.Pkg() {
			missing = append(missing, im)
			continue
		}
		if !Equivalent(got.Obj.Type(), im.Type()) {
			missing = append(missing, im)
		}
	}
	return missing
}
