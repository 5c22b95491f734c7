package typestate

// Intersect keeps the objects of a whose type is in filter. The filter must
// consist of summary objects only. The result can be null only if both
// inputs can.
func Intersect(u *Universe, a, filter TypeState) TypeState {
	u.stats.intersections.Inc()
	if u.asserts() {
		checkSummaryOnly("intersect", filter)
		checkState("intersect", a)
	}
	r := intersect(u, a, filter)
	if u.asserts() {
		checkState("intersect", r)
	}
	return r
}

func intersect(u *Universe, a, f TypeState) TypeState {
	canBeNull := a.CanBeNull() && f.CanBeNull()
	if a.ObjectsCount() == 0 || f.ObjectsCount() == 0 {
		return emptyFor(canBeNull)
	}

	switch a := a.(type) {
	case *SingleTypeState:
		if f.ContainsType(a.typ) {
			return a.ForCanBeNull(canBeNull)
		}
		return emptyFor(canBeNull)
	case *MultiTypeState:
		switch f := f.(type) {
		case *SingleTypeState:
			return a.singleOf(f.typ, canBeNull)
		case *MultiTypeState:
			return intersectMultis(u, a, f, canBeNull)
		}
	}
	panic(internalErrorf("intersect", "unexpected shapes %T and %T", a, f))
}

func intersectMultis(u *Universe, a, f *MultiTypeState, canBeNull bool) TypeState {
	ab, fb := a.p.bits, f.p.bits
	// Equal bits are the common case when filtering by a declared type the
	// state already satisfies.
	if a.p == f.p || ab.subsetOf(fb) {
		return a.ForCanBeNull(canBeNull)
	}
	if !ab.intersects(fb) {
		return emptyFor(canBeNull)
	}
	keep := ab.and(fb)
	if keep.count() == 1 {
		return a.singleOfID(keep.first(), canBeNull)
	}
	return withScratch(u, func(s *scratch) TypeState {
		for k, id := range a.p.typeIDs() {
			if fb.has(id) {
				s.objects = append(s.objects, a.p.objects[k])
			}
		}
		return newMulti(s.detach(), keep, canBeNull, a.merged)
	})
}

// Subtract removes from a the objects whose type is in filter. The filter
// must consist of summary objects only. The result can be null only if a can
// and filter cannot.
func Subtract(u *Universe, a, filter TypeState) TypeState {
	u.stats.subtractions.Inc()
	if u.asserts() {
		checkSummaryOnly("subtract", filter)
		checkState("subtract", a)
	}
	r := subtract(u, a, filter)
	if u.asserts() {
		checkState("subtract", r)
	}
	return r
}

func subtract(u *Universe, a, f TypeState) TypeState {
	canBeNull := a.CanBeNull() && !f.CanBeNull()
	if a.ObjectsCount() == 0 {
		return emptyFor(canBeNull)
	}
	if f.ObjectsCount() == 0 {
		return a.ForCanBeNull(canBeNull)
	}

	switch a := a.(type) {
	case *SingleTypeState:
		if f.ContainsType(a.typ) {
			return emptyFor(canBeNull)
		}
		return a.ForCanBeNull(canBeNull)
	case *MultiTypeState:
		switch f := f.(type) {
		case *SingleTypeState:
			return a.without(f.typ.id, canBeNull)
		case *MultiTypeState:
			return subtractMultis(u, a, f, canBeNull)
		}
	}
	panic(internalErrorf("subtract", "unexpected shapes %T and %T", a, f))
}

func subtractMultis(u *Universe, a, f *MultiTypeState, canBeNull bool) TypeState {
	ab, fb := a.p.bits, f.p.bits
	if a.p == f.p || ab.subsetOf(fb) {
		return emptyFor(canBeNull)
	}
	if !ab.intersects(fb) {
		return a.ForCanBeNull(canBeNull)
	}
	keep := ab.andNot(fb)
	if keep.count() == 1 {
		return a.singleOfID(keep.first(), canBeNull)
	}
	return withScratch(u, func(s *scratch) TypeState {
		for k, id := range a.p.typeIDs() {
			if !fb.has(id) {
				s.objects = append(s.objects, a.p.objects[k])
			}
		}
		return newMulti(s.detach(), keep, canBeNull, a.merged)
	})
}

func (s *MultiTypeState) singleOf(t *Type, canBeNull bool) TypeState {
	if !s.p.bits.has(t.id) {
		return emptyFor(canBeNull)
	}
	return s.singleOfID(t.id, canBeNull)
}

// singleOfID projects s to the type with the given id, sharing the slice.
func (s *MultiTypeState) singleOfID(id int, canBeNull bool) TypeState {
	lo, hi := s.p.typeRange(id)
	objs := s.p.objects[lo:hi:hi]
	return newSingle(objs[0].typ, objs, canBeNull, s.merged)
}

// without drops the type with the given id from s.
func (s *MultiTypeState) without(id int, canBeNull bool) TypeState {
	if !s.p.bits.has(id) {
		return s.ForCanBeNull(canBeNull)
	}
	lo, hi := s.p.typeRange(id)
	bits := s.p.bits.andNot(bitsetOf(id))
	if bits.count() == 1 {
		return s.singleOfID(bits.first(), canBeNull)
	}
	objs := make([]*Object, 0, len(s.p.objects)-(hi-lo))
	objs = append(objs, s.p.objects[:lo]...)
	objs = append(objs, s.p.objects[hi:]...)
	return newMulti(objs, bits, canBeNull, s.merged)
}

// ContextInsensitive replaces every object of s by the summary of its type.
func ContextInsensitive(s TypeState) TypeState {
	switch s := s.(type) {
	case *SingleTypeState:
		if len(s.objects) == 1 && s.objects[0].IsSummary() {
			return s
		}
		return newSingle(s.typ, s.typ.summarySlice, s.canBeNull, s.merged)
	case *MultiTypeState:
		if len(s.p.objects) == s.p.types && allSummaries(s.p.objects) {
			return s
		}
		objs := make([]*Object, 0, s.p.types)
		for t := range s.Types() {
			objs = append(objs, t.summary)
		}
		return newMulti(objs, s.p.bits, s.canBeNull, s.merged)
	}
	return s
}

func allSummaries(objs []*Object) bool {
	for _, o := range objs {
		if !o.IsSummary() {
			return false
		}
	}
	return true
}
