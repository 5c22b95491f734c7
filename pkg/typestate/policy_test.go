package typestate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPolicy_Sensitive(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.MaxHeapContextDepth = 1
		o.MaxCallingContextDepth = 2
	})
	p := NewPolicy(f.u)
	require.True(t, p.IsContextSensitive())

	method := f.u.Context(loc("m1"), loc("m2"))
	heap := p.AllocationContext(method)
	require.Same(t, f.u.Context(loc("m2")), heap)

	s := p.ForAllocation(loc("new"), f.a, heap)
	recv := s.Objects()[0]
	require.True(t, recv.IsAllocation())
	require.False(t, p.IsSummaryObject(recv))
	require.Same(t, heap, recv.Context())

	// Allocation contexts longer than the heap depth are peeled.
	require.Same(t, recv, p.ForAllocation(loc("new"), f.a, method).Objects()[0])

	tests := []struct {
		name     string
		receiver *Object
		depth    int
		want     *Context
	}{
		{name: "extends receiver context", receiver: recv, depth: 2, want: f.u.Context(loc("m2"), loc("new"))},
		{name: "peels to depth", receiver: recv, depth: 1, want: f.u.Context(loc("new"))},
		{name: "zero depth", receiver: recv, depth: 0, want: EmptyContext()},
		{name: "summary receiver", receiver: f.a.Summary(), depth: 2, want: EmptyContext()},
		{name: "constant receiver", receiver: f.u.ConstantObject(f.b, "k"), depth: 2, want: EmptyContext()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Same(t, tt.want, p.CalleeContext(tt.receiver, tt.depth))
		})
	}

	require.Same(t, method, p.StaticCalleeContext(method, loc("call")))

	k := p.ForConstant("hello", f.b)
	require.True(t, k.Objects()[0].IsConstant())
	require.Same(t, k.Objects()[0], p.ForConstant("hello", f.b).Objects()[0])
}

func TestPolicy_HybridStaticContext(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.HybridStaticContext = true
		o.MaxCallingContextDepth = 2
	})
	p := NewPolicy(f.u)

	caller := f.u.Context(loc("c1"), loc("c2"))
	require.Same(t, f.u.Context(loc("c2"), loc("call")), p.StaticCalleeContext(caller, loc("call")))
	require.Same(t, f.u.Context(loc("call")), p.StaticCalleeContext(EmptyContext(), loc("call")))
}

func TestPolicy_Insensitive(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.AllocationSiteSensitiveHeap = false })
	p := NewPolicy(f.u)
	require.False(t, p.IsContextSensitive())

	s := p.ForAllocation(loc("new"), f.a, f.u.Context(loc("m")))
	require.True(t, p.IsSummaryObject(s.Objects()[0]))
	require.True(t, p.ForConstant("x", f.b).Objects()[0].IsSummary())
	require.Same(t, EmptyContext(), p.CalleeContext(f.alloc(f.a, 1), 3))
	require.Same(t, EmptyContext(), p.StaticCalleeContext(f.u.Context(loc("m")), loc("call")))
	require.Same(t, EmptyContext(), p.AllocationContext(f.u.Context(loc("m"))))

	u := p.Union(s, p.ForAllocation(loc("other"), f.b, EmptyContext()))
	require.Equal(t, objectIDs(f.a.Summary(), f.b.Summary()), ids(u))
}

func TestPolicy_CloneState(t *testing.T) {
	f := newFixture(t)
	p := NewPolicy(f.u)
	a1, b1 := f.alloc(f.a, 1), f.alloc(f.b, 1)

	current := f.state(a1)
	got := p.CloneState(current, f.state(a1, b1), loc("append"), EmptyContext())
	require.Equal(t, 2, got.TypesCount())
	require.Equal(t, []*Object{a1}, got.ObjectsOf(f.a))
	clone := got.ObjectsOf(f.b)
	require.Len(t, clone, 1)
	require.Equal(t, loc("append"), clone[0].Site())

	require.Same(t, current, p.CloneState(current, f.state(a1), loc("append"), EmptyContext()))
}
