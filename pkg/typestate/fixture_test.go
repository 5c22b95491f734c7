package typestate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	u          *Universe
	a, b, c, d *Type
}

func newFixture(t *testing.T, configure ...func(*Options)) *fixture {
	t.Helper()
	opts := DefaultOptions()
	opts.ExtendedAsserts = true
	for _, fn := range configure {
		fn(&opts)
	}
	u, err := NewUniverse(opts)
	require.NoError(t, err)
	return &fixture{
		u: u,
		a: u.Type("A", nil),
		b: u.Type("B", nil),
		c: u.Type("C", nil),
		d: u.Type("D", nil),
	}
}

func (f *fixture) alloc(t *Type, index int) *Object {
	return f.u.AllocationObject(t, Location{Method: "main.main", Index: index}, EmptyContext())
}

func (f *fixture) state(objs ...*Object) TypeState {
	return FromObjects(f.u, false, objs...)
}

func (f *fixture) nullable(objs ...*Object) TypeState {
	return FromObjects(f.u, true, objs...)
}

func ids(s TypeState) []int {
	out := make([]int, 0, s.ObjectsCount())
	for _, o := range s.Objects() {
		out = append(out, o.ID())
	}
	return out
}

func objectIDs(objs ...*Object) []int {
	out := make([]int, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.ID())
	}
	return out
}
