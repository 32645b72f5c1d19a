package typeset

import "go/types"

// Kind tags mixed into hashes so that structurally similar types of
// different shapes do not collide trivially.
const (
	tagBasic uint32 = iota + 1
	tagNamed
	tagTypeParam
	tagPointer
	tagSlice
	tagArray
	tagMap
	tagChan
	tagStruct
	tagTuple
	tagSignature
	tagInterface
	tagUnion
	tagNil
)

// Hash returns a hash of t that is consistent with Equivalent: equivalent
// types hash to the same value. It is also consistent with EquivalentUnder
// for any correspondence, because type parameters are hashed by their
// position rather than their identity.
func Hash(t types.Type) uint32 {
	h := hasher{h: 2166136261}
	h.hashType(t)
	return h.h
}

type hasher struct {
	h uint32
}

func (h *hasher) mix(v uint32) {
	// FNV-1a over the value's bytes.
	for i := 0; i < 4; i++ {
		h.h ^= v & 0xff
		h.h *= 16777619
		v >>= 8
	}
}

func (h *hasher) mixString(s string) {
	for i := 0; i < len(s); i++ {
		h.h ^= uint32(s[i])
		h.h *= 16777619
	}
}

func (h *hasher) hashType(t types.Type) {
	if t == nil {
		h.mix(tagNil)
		return
	}
	switch t := t.(type) {
	case *types.Basic:
		h.mix(tagBasic)
		h.mix(uint32(t.Kind()))

	case *types.Named:
		h.mix(tagNamed)
		if pkg := t.Obj().Pkg(); pkg != nil {
			h.mixString(pkg.Path())
		}
		h.mixString(t.Obj().Name())
		args := t.TypeArgs()
		h.mix(uint32(args.Len()))
		for i := 0; i < args.Len(); i++ {
			h.hashType(args.At(i))
		}

	case *types.TypeParam:
		h.mix(tagTypeParam)
		h.mix(uint32(t.Index()))

	case *types.Pointer:
		h.mix(tagPointer)
		h.hashType(t.Elem())

	case *types.Slice:
		h.mix(tagSlice)
		h.hashType(t.Elem())

	case *types.Array:
		h.mix(tagArray)
		h.mix(uint32(t.Len()))
		h.hashType(t.Elem())

	case *types.Map:
		h.mix(tagMap)
		h.hashType(t.Key())
		h.hashType(t.Elem())

	case *types.Chan:
		h.mix(tagChan)
		h.mix(uint32(t.Dir()))
		h.hashType(t.Elem())

	case *types.Struct:
		h.mix(tagStruct)
		h.mix(uint32(t.NumFields()))
		for i := 0; i < t.NumFields(); i++ {
			f := t.Field(i)
			h.mixString(f.Name())
			h.mixString(t.Tag(i))
			if f.Embedded() {
				h.mix(1)
			}
			h.hashType(f.Type())
		}

	case *types.Tuple:
		h.mix(tagTuple)
		h.mix(uint32(t.Len()))
		for i := 0; i < t.Len(); i++ {
			h.hashType(t.At(i).Type())
		}

	case *types.Signature:
		h.mix(tagSignature)
		if t.Variadic() {
			h.mix(1)
		}
		h.mix(uint32(t.TypeParams().Len()))
		h.hashType(t.Params())
		h.hashType(t.Results())

	case *types.Interface:
		h.mix(tagInterface)
		h.mix(uint32(t.NumMethods()))
		for i := 0; i < t.NumMethods(); i++ {
			m := t.Method(i)
			h.mixString(m.Name())
			h.hashType(m.Type())
		}
		if t.IsComparable() {
			h.mix(1)
		}
		for _, term := range unionTerms(t) {
			if term.Tilde() {
				h.mix(1)
			}
			h.hashType(term.Type())
		}

	case *types.Union:
		h.mix(tagUnion)
		h.mix(uint32(t.Len()))
		for i := 0; i < t.Len(); i++ {
			term := t.Term(i)
			if term.Tilde() {
				h.mix(1)
			}
			h.hashType(term.Type())
		}

	default:
		h.mix(tagNil)
	}
}

type mapEntry[V any] struct {
	key types.Type
	val V
}

// Map associates values with types, keyed by Equivalent/Hash rather than by
// pointer identity. Iteration follows insertion order, so generators that
// build output from a Map produce deterministic results.
//
// The zero value is ready to use.
type Map[V any] struct {
	buckets map[uint32][]mapEntry[V]
	keys    []types.Type
}

// At returns the value stored for a type equivalent to t.
func (m *Map[V]) At(t types.Type) (V, bool) {
	for _, e := range m.buckets[Hash(t)] {
		if Equivalent(e.key, t) {
			return e.val, true
		}
	}
	var zero V
	return zero, false
}

// Set stores v for t, replacing any value stored for an equivalent type.
func (m *Map[V]) Set(t types.Type, v V) {
	h := Hash(t)
	if m.buckets == nil {
		m.buckets = map[uint32][]mapEntry[V]{}
	}
	bucket := m.buckets[h]
	for i, e := range bucket {
		if Equivalent(e.key, t) {
			bucket[i].val = v
			return
		}
	}
	m.buckets[h] = append(bucket, mapEntry[V]{key: t, val: v})
	m.keys = append(m.keys, t)
}

// Len returns the number of distinct keys.
func (m *Map[V]) Len() int {
	return len(m.keys)
}

// Range calls f for each entry in insertion order until f returns false.
func (m *Map[V]) Range(f func(types.Type, V) bool) {
	for _, k := range m.keys {
		v, _ := m.At(k)
		if !f(k, v) {
			return
		}
	}
}

// Set is a set of types keyed by Equivalent/Hash.
//
// The zero value is ready to use.
type Set struct {
	m Map[struct{}]
}

// Add adds t to the set and reports whether it was newly added.
func (s *Set) Add(t types.Type) bool {
	if s.Has(t) {
		return false
	}
	s.m.Set(t, struct{}{})
	return true
}

// Has reports whether the set contains a type equivalent to t.
func (s *Set) Has(t types.Type) bool {
	_, ok := s.m.At(t)
	return ok
}

// Len returns the number of distinct types in the set.
func (s *Set) Len() int {
	return s.m.Len()
}
