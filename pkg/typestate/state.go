package typestate

import (
	"cmp"
	"iter"
	"slices"
	"strings"
	"sync/atomic"
)

// TypeState is an immutable set of analysis objects together with a
// nullability flag. The shapes are the empty and null-only singletons,
// *SingleTypeState and *MultiTypeState. Every transformation returns either
// a new state or one of its inputs; no state is modified after creation.
type TypeState interface {
	// CanBeNull reports whether the value may be nil.
	CanBeNull() bool
	// IsMerged reports whether some union folded objects of this state
	// into their summary. The flag is sticky across unions.
	IsMerged() bool
	// IsEmpty reports a state with no objects that cannot be null.
	IsEmpty() bool
	// IsNull reports a state with no objects that can be null.
	IsNull() bool
	TypesCount() int
	ObjectsCount() int
	// Objects returns the member objects ordered by type id, then object id.
	// The slice is shared and must not be modified.
	Objects() []*Object
	// ObjectsOf returns the members of type t. The slice is shared.
	ObjectsOf(t *Type) []*Object
	// Types yields the member types in ascending id order.
	Types() iter.Seq[*Type]
	// ExactType returns the only member type, or nil.
	ExactType() *Type
	ContainsType(t *Type) bool
	ContainsObject(o *Object) bool
	// ForCanBeNull returns the state with the given nullability, sharing
	// the object payload.
	ForCanBeNull(canBeNull bool) TypeState
	String() string

	withMeta(canBeNull, merged bool) TypeState
}

type stateMeta struct {
	canBeNull bool
	merged    bool
}

func (m stateMeta) CanBeNull() bool { return m.canBeNull }
func (m stateMeta) IsMerged() bool  { return m.merged }

type emptyTypeState struct {
	canBeNull bool
}

var (
	emptyState = &emptyTypeState{}
	nullState  = &emptyTypeState{canBeNull: true}
)

// Empty returns the state without objects that cannot be null.
func Empty() TypeState { return emptyState }

// Null returns the state holding only nil.
func Null() TypeState { return nullState }

func emptyFor(canBeNull bool) TypeState {
	if canBeNull {
		return nullState
	}
	return emptyState
}

func (e *emptyTypeState) CanBeNull() bool               { return e.canBeNull }
func (e *emptyTypeState) IsMerged() bool                { return false }
func (e *emptyTypeState) IsEmpty() bool                 { return !e.canBeNull }
func (e *emptyTypeState) IsNull() bool                  { return e.canBeNull }
func (e *emptyTypeState) TypesCount() int               { return 0 }
func (e *emptyTypeState) ObjectsCount() int             { return 0 }
func (e *emptyTypeState) Objects() []*Object            { return nil }
func (e *emptyTypeState) ObjectsOf(*Type) []*Object     { return nil }
func (e *emptyTypeState) Types() iter.Seq[*Type]        { return func(func(*Type) bool) {} }
func (e *emptyTypeState) ExactType() *Type              { return nil }
func (e *emptyTypeState) ContainsType(*Type) bool       { return false }
func (e *emptyTypeState) ContainsObject(*Object) bool   { return false }
func (e *emptyTypeState) ForCanBeNull(b bool) TypeState { return emptyFor(b) }
func (e *emptyTypeState) withMeta(b, _ bool) TypeState  { return emptyFor(b) }

func (e *emptyTypeState) String() string {
	if e.canBeNull {
		return "null"
	}
	return "empty"
}

// SingleTypeState holds one or more objects of a single type.
type SingleTypeState struct {
	stateMeta
	typ     *Type
	objects []*Object
}

// NewSingleTypeState builds a state from objects of one type sorted by id.
func NewSingleTypeState(u *Universe, canBeNull bool, objects []*Object) *SingleTypeState {
	if u.asserts() {
		checkSingle("new single-type state", objects)
	}
	return newSingle(objects[0].typ, objects, canBeNull, false)
}

func newSingle(t *Type, objects []*Object, canBeNull, merged bool) *SingleTypeState {
	return &SingleTypeState{stateMeta: stateMeta{canBeNull: canBeNull, merged: merged}, typ: t, objects: objects}
}

func (s *SingleTypeState) IsEmpty() bool      { return false }
func (s *SingleTypeState) IsNull() bool       { return false }
func (s *SingleTypeState) TypesCount() int    { return 1 }
func (s *SingleTypeState) ObjectsCount() int  { return len(s.objects) }
func (s *SingleTypeState) Objects() []*Object { return s.objects }
func (s *SingleTypeState) ExactType() *Type   { return s.typ }

// Type returns the type of all member objects.
func (s *SingleTypeState) Type() *Type { return s.typ }

func (s *SingleTypeState) ObjectsOf(t *Type) []*Object {
	if t != s.typ {
		return nil
	}
	return s.objects
}

func (s *SingleTypeState) Types() iter.Seq[*Type] {
	return func(yield func(*Type) bool) { yield(s.typ) }
}

func (s *SingleTypeState) ContainsType(t *Type) bool { return t == s.typ }

func (s *SingleTypeState) ContainsObject(o *Object) bool {
	if o.typ != s.typ {
		return false
	}
	_, found := slices.BinarySearchFunc(s.objects, o, compareObjects)
	return found
}

func (s *SingleTypeState) ForCanBeNull(canBeNull bool) TypeState {
	return s.withMeta(canBeNull, s.merged)
}

func (s *SingleTypeState) withMeta(canBeNull, merged bool) TypeState {
	if s.canBeNull == canBeNull && s.merged == merged {
		return s
	}
	c := *s
	c.canBeNull, c.merged = canBeNull, merged
	return &c
}

func (s *SingleTypeState) String() string { return formatState(s.objects, s.stateMeta) }

// MultiTypeState holds objects of at least two types.
type MultiTypeState struct {
	stateMeta
	p *multiPayload
}

// multiPayload is shared by all states that differ only in metadata.
type multiPayload struct {
	objects []*Object
	bits    bitset
	types   int

	// ids caches typeIDs.
	ids atomic.Pointer[[]int]
}

// typeIDs returns the per-slot type id projection used by the filtering
// scans. It is computed on first use.
func (p *multiPayload) typeIDs() []int {
	if ids := p.ids.Load(); ids != nil {
		return *ids
	}
	ids := make([]int, len(p.objects))
	for i, o := range p.objects {
		ids[i] = o.typ.id
	}
	p.ids.CompareAndSwap(nil, &ids)
	return *p.ids.Load()
}

// NewMultiTypeState builds a state from objects of at least two types sorted
// by type id, then object id.
func NewMultiTypeState(u *Universe, canBeNull bool, objects []*Object) *MultiTypeState {
	var bits bitset
	for _, o := range objects {
		bits = bits.with(o.typ.id)
	}
	if u.asserts() {
		checkMulti("new multi-type state", objects, bits)
	}
	return newMulti(objects, bits, canBeNull, false)
}

func newMulti(objects []*Object, bits bitset, canBeNull, merged bool) *MultiTypeState {
	p := &multiPayload{objects: objects, bits: bits, types: bits.count()}
	return &MultiTypeState{stateMeta: stateMeta{canBeNull: canBeNull, merged: merged}, p: p}
}

func (s *MultiTypeState) IsEmpty() bool      { return false }
func (s *MultiTypeState) IsNull() bool       { return false }
func (s *MultiTypeState) TypesCount() int    { return s.p.types }
func (s *MultiTypeState) ObjectsCount() int  { return len(s.p.objects) }
func (s *MultiTypeState) Objects() []*Object { return s.p.objects }
func (s *MultiTypeState) ExactType() *Type   { return nil }

func (s *MultiTypeState) ObjectsOf(t *Type) []*Object {
	if !s.p.bits.has(t.id) {
		return nil
	}
	lo, hi := s.p.typeRange(t.id)
	return s.p.objects[lo:hi:hi]
}

func (s *MultiTypeState) Types() iter.Seq[*Type] {
	return func(yield func(*Type) bool) {
		var prev *Type
		for _, o := range s.p.objects {
			if o.typ != prev {
				prev = o.typ
				if !yield(prev) {
					return
				}
			}
		}
	}
}

func (s *MultiTypeState) ContainsType(t *Type) bool { return s.p.bits.has(t.id) }

func (s *MultiTypeState) ContainsObject(o *Object) bool {
	if !s.p.bits.has(o.typ.id) {
		return false
	}
	_, found := slices.BinarySearchFunc(s.p.objects, o, compareObjects)
	return found
}

func (s *MultiTypeState) ForCanBeNull(canBeNull bool) TypeState {
	return s.withMeta(canBeNull, s.merged)
}

func (s *MultiTypeState) withMeta(canBeNull, merged bool) TypeState {
	if s.canBeNull == canBeNull && s.merged == merged {
		return s
	}
	return &MultiTypeState{stateMeta: stateMeta{canBeNull: canBeNull, merged: merged}, p: s.p}
}

func (s *MultiTypeState) String() string { return formatState(s.p.objects, s.stateMeta) }

// typeRange returns the bounds of the slice holding objects of type id. The
// type must be present.
func (p *multiPayload) typeRange(id int) (lo, hi int) {
	objs := p.objects
	l, h := 0, len(objs)
	k := -1
	for l < h {
		m := int(uint(l+h) >> 1)
		switch c := cmp.Compare(objs[m].typ.id, id); {
		case c < 0:
			l = m + 1
		case c > 0:
			h = m
		default:
			k = m
			l = h
		}
	}
	if k < 0 {
		return l, l
	}
	lo, hi = k, k+1
	for lo > 0 && objs[lo-1].typ.id == id {
		lo--
	}
	for hi < len(objs) && objs[hi].typ.id == id {
		hi++
	}
	return lo, hi
}

func (p *multiPayload) firstTypeID() int { return p.objects[0].typ.id }
func (p *multiPayload) lastTypeID() int  { return p.objects[len(p.objects)-1].typ.id }

// typeEnd returns the index after the last object sharing the type of objs[i].
func typeEnd(objs []*Object, i int) int {
	t := objs[i].typ
	j := i + 1
	for j < len(objs) && objs[j].typ == t {
		j++
	}
	return j
}

// fromSorted picks the shape matching a sorted, non-shared object slice.
func fromSorted(objects []*Object, canBeNull, merged bool) TypeState {
	if len(objects) == 0 {
		return emptyFor(canBeNull)
	}
	var bits bitset
	for _, o := range objects {
		bits = bits.with(o.typ.id)
	}
	if bits.count() == 1 {
		return newSingle(objects[0].typ, objects, canBeNull, merged)
	}
	return newMulti(objects, bits, canBeNull, merged)
}

// FromObjects builds the state holding the given objects in any order.
// Duplicates are removed, and a summary absorbs the other objects of its
// type, which are marked merged.
func FromObjects(u *Universe, canBeNull bool, objects ...*Object) TypeState {
	objs := slices.Clone(objects)
	slices.SortFunc(objs, compareObjects)
	objs = slices.Compact(objs)
	objs, merged := absorbIntoSummaries(objs)
	s := fromSorted(objs, canBeNull, merged)
	if u.asserts() {
		checkState("from objects", s)
	}
	return s
}

// absorbIntoSummaries replaces every type group of the sorted objs that holds
// its summary by the summary alone.
func absorbIntoSummaries(objs []*Object) ([]*Object, bool) {
	absorbed := false
	out := objs[:0]
	for i := 0; i < len(objs); {
		j := typeEnd(objs, i)
		group := objs[i:j]
		if j-i > 1 && slices.ContainsFunc(group, (*Object).IsSummary) {
			absorbed = markAbsorbed(group) || absorbed
			out = append(out, group[0].typ.summary)
		} else {
			out = append(out, group...)
		}
		i = j
	}
	return out, absorbed
}

// ForExactType returns the state holding the summary object of t.
func ForExactType(t *Type, canBeNull bool) TypeState {
	return newSingle(t, t.summarySlice, canBeNull, false)
}

// ForExactTypes returns the state holding the summary objects of types.
func ForExactTypes(canBeNull bool, types ...*Type) TypeState {
	objs := make([]*Object, 0, len(types))
	for _, t := range types {
		objs = append(objs, t.summary)
	}
	slices.SortFunc(objs, compareObjects)
	return fromSorted(slices.Compact(objs), canBeNull, false)
}

// ForObject returns the state holding only o.
func ForObject(o *Object) TypeState {
	if o.kind == SummaryObject {
		return newSingle(o.typ, o.typ.summarySlice, false, false)
	}
	return newSingle(o.typ, []*Object{o}, false, false)
}

// ForNull returns the null state when canBeNull is set and the empty state otherwise.
func ForNull(canBeNull bool) TypeState { return emptyFor(canBeNull) }

// Equal reports whether a and b hold the same objects with the same flags.
func Equal(a, b TypeState) bool {
	if a == b {
		return true
	}
	if a.CanBeNull() != b.CanBeNull() || a.IsMerged() != b.IsMerged() {
		return false
	}
	return slices.Equal(a.Objects(), b.Objects())
}

// samePayload reports whether x and y share their object storage.
func samePayload(x, y TypeState) bool {
	switch x := x.(type) {
	case *SingleTypeState:
		y, ok := y.(*SingleTypeState)
		return ok && len(x.objects) == len(y.objects) && &x.objects[0] == &y.objects[0]
	case *MultiTypeState:
		y, ok := y.(*MultiTypeState)
		return ok && x.p == y.p
	default:
		return x.ObjectsCount() == 0 && y.ObjectsCount() == 0
	}
}

func formatState(objects []*Object, m stateMeta) string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, o := range objects {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(o.String())
	}
	sb.WriteByte('}')
	if m.canBeNull {
		sb.WriteString("+null")
	}
	if m.merged {
		sb.WriteString(" merged")
	}
	return sb.String()
}
