package typestate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntersect(t *testing.T) {
	f := newFixture(t)
	a1, a2, b1, c1 := f.alloc(f.a, 1), f.alloc(f.a, 2), f.alloc(f.b, 1), f.alloc(f.c, 1)
	abc := f.state(a1, a2, b1, c1)

	tests := []struct {
		name      string
		state     TypeState
		filter    TypeState
		want      []*Object
		canBeNull bool
		same      bool
	}{
		{name: "empty state", state: Empty(), filter: ForExactType(f.a, true)},
		{name: "null state and nullable filter", state: Null(), filter: ForExactType(f.a, true), canBeNull: true},
		{name: "null state and non-null filter", state: Null(), filter: ForExactType(f.a, false)},
		{name: "null filter", state: f.nullable(a1), filter: Null(), canBeNull: true},
		{name: "single kept", state: f.state(a1, a2), filter: ForExactTypes(false, f.a, f.b), want: []*Object{a1, a2}, same: true},
		{name: "single dropped", state: f.state(a1), filter: ForExactType(f.b, false)},
		{name: "multi by single", state: abc, filter: ForExactType(f.a, false), want: []*Object{a1, a2}},
		{name: "multi by absent single", state: abc, filter: ForExactType(f.d, false)},
		{name: "multi covered", state: abc, filter: ForExactTypes(false, f.a, f.b, f.c, f.d), want: []*Object{a1, a2, b1, c1}, same: true},
		{name: "multi disjoint", state: f.state(a1, b1), filter: ForExactTypes(false, f.c, f.d)},
		{name: "multi to one type", state: abc, filter: ForExactTypes(false, f.b, f.d), want: []*Object{b1}},
		{name: "multi general", state: abc, filter: ForExactTypes(false, f.a, f.c, f.d), want: []*Object{a1, a2, c1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Intersect(f.u, tt.state, tt.filter)
			require.Equal(t, objectIDs(tt.want...), ids(got))
			require.Equal(t, tt.canBeNull, got.CanBeNull())
			if tt.same {
				require.Same(t, tt.state, got)
			}
			checkState("test", got)
		})
	}
}

func TestSubtract(t *testing.T) {
	f := newFixture(t)
	a1, a2, b1, c1 := f.alloc(f.a, 1), f.alloc(f.a, 2), f.alloc(f.b, 1), f.alloc(f.c, 1)
	abc := f.state(a1, a2, b1, c1)

	tests := []struct {
		name      string
		state     TypeState
		filter    TypeState
		want      []*Object
		canBeNull bool
		same      bool
	}{
		{name: "null state and non-null filter", state: Null(), filter: ForExactType(f.a, false), canBeNull: true},
		{name: "null state and nullable filter", state: Null(), filter: ForExactType(f.a, true)},
		{name: "empty filter", state: abc, filter: Empty(), want: []*Object{a1, a2, b1, c1}, same: true},
		{name: "null filter", state: f.nullable(a1), filter: Null(), want: []*Object{a1}},
		{name: "single removed", state: f.nullable(a1), filter: ForExactType(f.a, false), canBeNull: true},
		{name: "single kept", state: f.state(a1), filter: ForExactType(f.b, false), want: []*Object{a1}, same: true},
		{name: "multi minus single", state: abc, filter: ForExactType(f.b, false), want: []*Object{a1, a2, c1}},
		{name: "multi minus single to one type", state: f.state(a1, b1), filter: ForExactType(f.a, false), want: []*Object{b1}},
		{name: "multi minus absent single", state: abc, filter: ForExactType(f.d, false), want: []*Object{a1, a2, b1, c1}, same: true},
		{name: "multi covered", state: abc, filter: ForExactTypes(false, f.a, f.b, f.c)},
		{name: "multi disjoint", state: f.state(a1, b1), filter: ForExactTypes(false, f.c, f.d), want: []*Object{a1, b1}, same: true},
		{name: "multi to one type", state: abc, filter: ForExactTypes(false, f.a, f.c), want: []*Object{b1}},
		{name: "multi general", state: abc, filter: ForExactTypes(false, f.b, f.d), want: []*Object{a1, a2, c1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Subtract(f.u, tt.state, tt.filter)
			require.Equal(t, objectIDs(tt.want...), ids(got))
			require.Equal(t, tt.canBeNull, got.CanBeNull())
			if tt.same {
				require.Same(t, tt.state, got)
			}
			checkState("test", got)
		})
	}
}

func TestIntersectSubtract_Partition(t *testing.T) {
	f := newFixture(t)
	s := f.state(f.alloc(f.a, 1), f.alloc(f.b, 1), f.alloc(f.b, 2), f.alloc(f.c, 1), f.alloc(f.d, 1))
	filter := ForExactTypes(false, f.b, f.d)

	in := Intersect(f.u, s, filter)
	out := Subtract(f.u, s, filter)
	require.True(t, Equal(s, Union(f.u, in, out)))
	require.Equal(t, 0, Intersect(f.u, in, ContextInsensitive(out)).ObjectsCount())
}

func TestFilters_RejectContextSensitiveFilter(t *testing.T) {
	f := newFixture(t)
	s := f.state(f.alloc(f.a, 1), f.alloc(f.b, 1))

	ops := map[string]func(*Universe, TypeState, TypeState) TypeState{
		"intersect": Intersect,
		"subtract":  Subtract,
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			defer func() {
				err, ok := recover().(*InternalError)
				require.True(t, ok, "expected *InternalError")
				require.Equal(t, name, err.Op)
				require.Contains(t, err.Msg, "non-summary object")
			}()
			op(f.u, s, s)
		})
	}
}

func TestContextInsensitive(t *testing.T) {
	f := newFixture(t)
	a1, a2, b1 := f.alloc(f.a, 1), f.alloc(f.a, 2), f.alloc(f.b, 1)

	single := ContextInsensitive(f.nullable(a1, a2))
	require.Equal(t, objectIDs(f.a.Summary()), ids(single))
	require.True(t, single.CanBeNull())

	multi := f.state(a1, a2, b1)
	projected := ContextInsensitive(multi)
	require.Equal(t, objectIDs(f.a.Summary(), f.b.Summary()), ids(projected))
	mb, pb := multi.(*MultiTypeState).p.bits, projected.(*MultiTypeState).p.bits
	require.True(t, &mb[0] == &pb[0], "bits not shared")
	require.Same(t, projected, ContextInsensitive(projected))
	require.Same(t, Null(), ContextInsensitive(Null()))
}
