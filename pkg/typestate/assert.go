package typestate

import "fmt"

// InternalError reports a broken engine invariant. It is only raised when
// Options.ExtendedAsserts is set and is never recovered by this package.
type InternalError struct {
	Op  string
	Msg string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("typestate: internal error in %s: %s", e.Op, e.Msg)
}

func internalErrorf(op, format string, args ...any) *InternalError {
	return &InternalError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

func (u *Universe) asserts() bool { return u.opts.ExtendedAsserts }

// checkSorted verifies strict (type id, object id) order.
func checkSorted(op string, objects []*Object) {
	for i := 1; i < len(objects); i++ {
		if objects[i-1].Compare(objects[i]) >= 0 {
			panic(internalErrorf(op, "objects not sorted at %d: %s >= %s", i, objects[i-1], objects[i]))
		}
	}
}

func checkSingle(op string, objects []*Object) {
	if len(objects) == 0 {
		panic(internalErrorf(op, "single-type state without objects"))
	}
	t := objects[0].typ
	for _, o := range objects[1:] {
		if o.typ != t {
			panic(internalErrorf(op, "single-type state mixes %s and %s", t, o.typ))
		}
	}
	checkSorted(op, objects)
	checkSummaryAlone(op, objects)
}

// checkSummaryAlone verifies that a summary is the only object of its type.
func checkSummaryAlone(op string, objects []*Object) {
	for i := 0; i < len(objects); {
		j := typeEnd(objects, i)
		if j-i > 1 {
			for _, o := range objects[i:j] {
				if o.IsSummary() {
					panic(internalErrorf(op, "summary %s shares its type with other objects", o))
				}
			}
		}
		i = j
	}
}

func checkMulti(op string, objects []*Object, bits bitset) {
	checkSorted(op, objects)
	if len(objects) < 2 {
		panic(internalErrorf(op, "multi-type state with %d objects", len(objects)))
	}
	want := bitset(nil)
	for _, o := range objects {
		want = want.with(o.typ.id)
	}
	if !want.equal(bits) {
		panic(internalErrorf(op, "type bits %s disagree with objects %s", bits, want))
	}
	if bits.count() < 2 {
		panic(internalErrorf(op, "multi-type state with %d types", bits.count()))
	}
	checkSummaryAlone(op, objects)
}

// checkSummaryOnly verifies the precondition of Intersect and Subtract.
func checkSummaryOnly(op string, s TypeState) {
	for _, o := range s.Objects() {
		if !o.IsSummary() {
			panic(internalErrorf(op, "filter contains non-summary object %s", o))
		}
	}
}

// checkState runs the structural checks matching the shape of s.
func checkState(op string, s TypeState) {
	switch s := s.(type) {
	case *SingleTypeState:
		checkSingle(op, s.objects)
	case *MultiTypeState:
		checkMulti(op, s.p.objects, s.p.bits)
	}
}
