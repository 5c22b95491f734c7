package typestate

import (
	"cmp"
	"slices"
)

// Union returns the join of a and b. The result can be null if either input
// can. For every type T, the T-objects of the result are the summary of T
// when an input holds that summary or when the combined T-objects exceed
// Options.MaxObjectSetSize; the dropped objects are marked merged. Otherwise
// they are the union of the inputs' T-objects. When the result equals an
// input, that input is returned.
func Union(u *Universe, a, b TypeState) TypeState {
	u.stats.unions.Inc()
	if u.asserts() {
		checkState("union", a)
		checkState("union", b)
	}
	r := union(u, a, b)
	if u.asserts() {
		checkState("union", r)
	}
	if samePayload(r, a) || samePayload(r, b) {
		u.stats.unionReuses.Inc()
	}
	return r
}

func union(u *Universe, a, b TypeState) TypeState {
	if a == b {
		return a
	}
	if e, ok := a.(*emptyTypeState); ok {
		return b.ForCanBeNull(e.canBeNull || b.CanBeNull())
	}
	if e, ok := b.(*emptyTypeState); ok {
		return a.ForCanBeNull(e.canBeNull || a.CanBeNull())
	}

	switch a := a.(type) {
	case *SingleTypeState:
		switch b := b.(type) {
		case *SingleTypeState:
			return unionSingles(u, a, b)
		case *MultiTypeState:
			return unionMultiSingle(u, b, a)
		}
	case *MultiTypeState:
		switch b := b.(type) {
		case *SingleTypeState:
			return unionMultiSingle(u, a, b)
		case *MultiTypeState:
			return unionMultis(u, a, b)
		}
	}
	panic(internalErrorf("union", "unexpected shapes %T and %T", a, b))
}

const (
	mergedSlice = iota
	reusedFirst
	reusedSecond
)

// mergeSlices joins two non-empty slices of the same type, both sorted by id.
// It reports which input was reused, if any, and whether objects were
// absorbed into the summary.
func mergeSlices(u *Universe, a, b []*Object) (out []*Object, from int, absorbed bool) {
	t := a[0].typ
	aSum, bSum := a[0].IsSummary(), b[0].IsSummary()
	if aSum || bSum {
		absA := markAbsorbed(a)
		absB := markAbsorbed(b)
		absorbed = absA || absB
		switch {
		case aSum && len(a) == 1:
			return a, reusedFirst, absorbed
		case bSum && len(b) == 1:
			return b, reusedSecond, absorbed
		default:
			return t.summarySlice, mergedSlice, absorbed
		}
	}

	i, j, n := 0, 0, 0
	onlyA, onlyB := 0, 0
	for i < len(a) && j < len(b) {
		switch c := cmp.Compare(a[i].id, b[j].id); {
		case c < 0:
			onlyA++
			i++
		case c > 0:
			onlyB++
			j++
		default:
			i++
			j++
		}
		n++
	}
	onlyA += len(a) - i
	onlyB += len(b) - j
	n += len(a) - i + len(b) - j

	if onlyB == 0 {
		return a, reusedFirst, false
	}
	if onlyA == 0 {
		return b, reusedSecond, false
	}
	if n > u.opts.MaxObjectSetSize {
		markAll(a)
		markAll(b)
		u.collapsed(t, n)
		return t.summarySlice, mergedSlice, true
	}

	out = make([]*Object, 0, n)
	i, j = 0, 0
	for i < len(a) && j < len(b) {
		switch c := cmp.Compare(a[i].id, b[j].id); {
		case c < 0:
			out = append(out, a[i])
			i++
		case c > 0:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out, mergedSlice, false
}

// markAbsorbed marks every non-summary object merged and reports whether
// there was one.
func markAbsorbed(objs []*Object) bool {
	found := false
	for _, o := range objs {
		if !o.IsSummary() {
			o.markMerged()
			found = true
		}
	}
	return found
}

func markAll(objs []*Object) {
	for _, o := range objs {
		o.markMerged()
	}
}

func unionSingles(u *Universe, a, b *SingleTypeState) TypeState {
	canBeNull := a.canBeNull || b.canBeNull
	merged := a.merged || b.merged
	if a.typ == b.typ {
		objs, from, absorbed := mergeSlices(u, a.objects, b.objects)
		merged = merged || absorbed
		switch from {
		case reusedFirst:
			return a.withMeta(canBeNull, merged)
		case reusedSecond:
			return b.withMeta(canBeNull, merged)
		}
		return newSingle(a.typ, objs, canBeNull, merged)
	}

	lo, hi := a, b
	if lo.typ.id > hi.typ.id {
		lo, hi = hi, lo
	}
	objs := make([]*Object, 0, len(lo.objects)+len(hi.objects))
	objs = append(objs, lo.objects...)
	objs = append(objs, hi.objects...)
	return newMulti(objs, bitsetOf(lo.typ.id, hi.typ.id), canBeNull, merged)
}

func unionMultiSingle(u *Universe, m *MultiTypeState, s *SingleTypeState) TypeState {
	canBeNull := m.canBeNull || s.canBeNull
	merged := m.merged || s.merged
	p := m.p

	// Propagating one constant or array element into a larger state is the
	// common case.
	if len(s.objects) == 1 {
		if _, found := slices.BinarySearchFunc(p.objects, s.objects[0], compareObjects); found {
			return m.withMeta(canBeNull, merged)
		}
	}

	id := s.typ.id
	if !p.bits.has(id) {
		pos, _ := slices.BinarySearchFunc(p.objects, id, func(o *Object, id int) int {
			return cmp.Compare(o.typ.id, id)
		})
		objs := make([]*Object, 0, len(p.objects)+len(s.objects))
		objs = append(objs, p.objects[:pos]...)
		objs = append(objs, s.objects...)
		objs = append(objs, p.objects[pos:]...)
		return newMulti(objs, p.bits.with(id), canBeNull, merged)
	}

	lo, hi := p.typeRange(id)
	slice, from, absorbed := mergeSlices(u, p.objects[lo:hi], s.objects)
	merged = merged || absorbed
	if from == reusedFirst {
		return m.withMeta(canBeNull, merged)
	}
	objs := make([]*Object, 0, len(p.objects)-(hi-lo)+len(slice))
	objs = append(objs, p.objects[:lo]...)
	objs = append(objs, slice...)
	objs = append(objs, p.objects[hi:]...)
	return newMulti(objs, p.bits, canBeNull, merged)
}

func unionMultis(u *Universe, a, b *MultiTypeState) TypeState {
	canBeNull := a.canBeNull || b.canBeNull
	merged := a.merged || b.merged
	if a.p == b.p {
		return a.withMeta(canBeNull, merged)
	}
	if a.p.lastTypeID() < b.p.firstTypeID() {
		return concatMultis(a, b, canBeNull, merged)
	}
	if b.p.lastTypeID() < a.p.firstTypeID() {
		return concatMultis(b, a, canBeNull, merged)
	}
	return withScratch(u, func(s *scratch) TypeState {
		return unionScan(u, a, b, s, canBeNull, merged)
	})
}

func concatMultis(lo, hi *MultiTypeState, canBeNull, merged bool) TypeState {
	objs := make([]*Object, 0, len(lo.p.objects)+len(hi.p.objects))
	objs = append(objs, lo.p.objects...)
	objs = append(objs, hi.p.objects...)
	return newMulti(objs, lo.p.bits.or(hi.p.bits), canBeNull, merged)
}

// unionScan walks both object arrays once, one type slice at a time.
func unionScan(u *Universe, a, b *MultiTypeState, s *scratch, canBeNull, merged bool) TypeState {
	ao, bo := a.p.objects, b.p.objects
	sameAsA, sameAsB := true, true
	i, j := 0, 0
	for i < len(ao) && j < len(bo) {
		ta, tb := ao[i].typ.id, bo[j].typ.id
		switch {
		case ta < tb:
			ie := typeEnd(ao, i)
			s.objects = append(s.objects, ao[i:ie]...)
			sameAsB = false
			i = ie
		case ta > tb:
			je := typeEnd(bo, j)
			s.objects = append(s.objects, bo[j:je]...)
			sameAsA = false
			j = je
		default:
			ie, je := typeEnd(ao, i), typeEnd(bo, j)
			slice, from, absorbed := mergeSlices(u, ao[i:ie], bo[j:je])
			merged = merged || absorbed
			if from != reusedFirst {
				sameAsA = false
			}
			if from != reusedSecond {
				sameAsB = false
			}
			s.objects = append(s.objects, slice...)
			i, j = ie, je
		}
	}
	if i < len(ao) {
		s.objects = append(s.objects, ao[i:]...)
		sameAsB = false
	}
	if j < len(bo) {
		s.objects = append(s.objects, bo[j:]...)
		sameAsA = false
	}

	switch {
	case sameAsA:
		return a.withMeta(canBeNull, merged)
	case sameAsB:
		return b.withMeta(canBeNull, merged)
	}
	return newMulti(s.detach(), a.p.bits.or(b.p.bits), canBeNull, merged)
}
