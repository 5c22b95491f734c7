package typestate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func loc(name string) Location { return Location{Method: name, Index: 0} }

func TestUniverse_ContextCanonicalization(t *testing.T) {
	f := newFixture(t)
	u := f.u

	c1 := u.Context(loc("L1"), loc("L2"))
	c2 := u.Context(loc("L1"), loc("L2"))
	require.Same(t, c1, c2)
	require.NotSame(t, c1, u.Context(loc("L2"), loc("L1")))
	require.Same(t, EmptyContext(), u.Context())
	require.Equal(t, "[L1@0, L2@0]", c1.String())

	// Separator characters inside method names must not alias chains.
	x := u.Context(Location{Method: "a;1:b", Index: 1})
	y := u.Context(Location{Method: "a", Index: 1}, Location{Method: "b", Index: 1})
	require.NotSame(t, x, y)
}

func TestUniverse_Peel(t *testing.T) {
	f := newFixture(t)
	u := f.u

	tests := []struct {
		name  string
		chain []Location
		depth int
		want  []Location
	}{
		{name: "drops oldest", chain: []Location{loc("L1"), loc("L2"), loc("L3")}, depth: 2, want: []Location{loc("L2"), loc("L3")}},
		{name: "short chain unchanged", chain: []Location{loc("L1")}, depth: 2, want: []Location{loc("L1")}},
		{name: "zero depth", chain: []Location{loc("L1")}, depth: 0, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := u.Peel(u.Context(tt.chain...), tt.depth)
			require.Same(t, u.Context(tt.want...), got)
		})
	}
}

func TestUniverse_PeelingConvergesOnSharedSuffix(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.MaxHeapContextDepth = 2 })
	u := f.u
	p := NewPolicy(u)

	first := p.AllocationContext(u.Context(loc("L1"), loc("L2"), loc("L3")))
	second := p.AllocationContext(u.Context(loc("L4"), loc("L2"), loc("L3")))
	require.Same(t, first, second)
	require.Equal(t, []Location{loc("L2"), loc("L3")}, first.Locations())

	site := loc("new")
	o1 := u.AllocationObject(f.a, site, first)
	o2 := u.AllocationObject(f.a, site, second)
	require.Same(t, o1, o2)
}

func TestUniverse_Extend(t *testing.T) {
	f := newFixture(t)
	u := f.u

	base := u.Context(loc("L1"), loc("L2"))
	require.Same(t, u.Context(loc("L2"), loc("L3")), u.Extend(base, loc("L3"), 2))
	require.Same(t, u.Context(loc("L3")), u.Extend(base, loc("L3"), 1))
	require.Same(t, EmptyContext(), u.Extend(base, loc("L3"), 0))
	require.Same(t, u.Context(loc("L1"), loc("L2"), loc("L3")), u.Extend(base, loc("L3"), 5))
}

func TestUniverse_ConcurrentContextDerivation(t *testing.T) {
	f := newFixture(t)
	u := f.u

	const workers = 16
	results := make([]*Context, workers)
	var start sync.WaitGroup
	start.Add(1)
	var g errgroup.Group
	for i := range workers {
		g.Go(func() error {
			start.Wait()
			base := u.Context(Location{Method: "caller", Index: i})
			results[i] = u.Extend(base, loc("callee"), 1)
			return nil
		})
	}
	start.Done()
	require.NoError(t, g.Wait())

	for _, c := range results[1:] {
		require.Same(t, results[0], c)
	}
}

func TestUniverse_TypeRegistration(t *testing.T) {
	f := newFixture(t)
	u := f.u

	require.Same(t, f.a, u.Type("A", "ignored"))
	require.Equal(t, 0, f.a.ID())
	require.Equal(t, 3, f.d.ID())
	require.Same(t, f.c, u.TypeByID(2))
	require.Nil(t, u.TypeByID(42))
	require.True(t, f.a.Summary().IsSummary())
	require.Same(t, f.a, f.a.Summary().Type())

	// The summary sorts before every later object of its type.
	o := f.alloc(f.a, 1)
	require.Negative(t, f.a.Summary().Compare(o))
	require.Negative(t, o.Compare(f.b.Summary()))

	var g errgroup.Group
	types := make([]*Type, 32)
	for i := range types {
		g.Go(func() error {
			types[i] = u.Type("Shared", nil)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for _, typ := range types {
		require.Same(t, types[0], typ)
	}
	require.Equal(t, 5, u.NumTypes())
}
