package typestate

// Policy decides how much context the analysis keeps and builds type states
// accordingly. The two implementations are selected once per run by
// NewPolicy.
type Policy interface {
	Universe() *Universe
	Options() Options
	IsContextSensitive() bool
	EmptyContext() *Context
	IsSummaryObject(o *Object) bool

	// ForAllocation returns the state of a value allocated at site with
	// exact type t, in the given heap context.
	ForAllocation(site Location, t *Type, ctx *Context) TypeState
	// ForConstant returns the state of the constant identified by key.
	ForConstant(key string, t *Type) TypeState
	// CloneState adds to current one allocation at site for every type of
	// input that current does not hold yet.
	CloneState(current, input TypeState, site Location, ctx *Context) TypeState

	Union(a, b TypeState) TypeState
	Intersect(a, filter TypeState) TypeState
	Subtract(a, filter TypeState) TypeState
	ContextInsensitive(s TypeState) TypeState

	// CalleeContext derives the context of a method invoked on receiver.
	CalleeContext(receiver *Object, depth int) *Context
	// StaticCalleeContext derives the context of a statically bound call
	// made at invoke from a method analyzed in caller.
	StaticCalleeContext(caller *Context, invoke Location) *Context
	// AllocationContext derives the heap context of objects allocated in a
	// method analyzed in the given context.
	AllocationContext(method *Context) *Context

	TypesObjects(s TypeState) *TypesObjectsIterator
}

// NewPolicy returns the policy selected by the universe options.
func NewPolicy(u *Universe) Policy {
	if u.opts.AllocationSiteSensitiveHeap {
		return &sensitivePolicy{basePolicy{u: u}}
	}
	return &insensitivePolicy{basePolicy{u: u}}
}

type basePolicy struct {
	u *Universe
}

func (p basePolicy) Universe() *Universe            { return p.u }
func (p basePolicy) Options() Options               { return p.u.opts }
func (p basePolicy) EmptyContext() *Context         { return emptyContext }
func (p basePolicy) IsSummaryObject(o *Object) bool { return o.IsSummary() }

func (p basePolicy) Union(a, b TypeState) TypeState           { return Union(p.u, a, b) }
func (p basePolicy) Intersect(a, f TypeState) TypeState       { return Intersect(p.u, a, f) }
func (p basePolicy) Subtract(a, f TypeState) TypeState        { return Subtract(p.u, a, f) }
func (p basePolicy) ContextInsensitive(s TypeState) TypeState { return ContextInsensitive(s) }

func (p basePolicy) TypesObjects(s TypeState) *TypesObjectsIterator {
	return NewTypesObjectsIterator(s)
}

func cloneState(p Policy, current, input TypeState, site Location, ctx *Context) TypeState {
	result := current
	for t := range input.Types() {
		if !current.ContainsType(t) {
			result = p.Union(result, p.ForAllocation(site, t, ctx))
		}
	}
	return result
}

// sensitivePolicy qualifies allocations by heap contexts and methods by the
// allocation sites of their receivers.
type sensitivePolicy struct {
	basePolicy
}

func (p *sensitivePolicy) IsContextSensitive() bool { return true }

func (p *sensitivePolicy) ForAllocation(site Location, t *Type, ctx *Context) TypeState {
	o := p.u.AllocationObject(t, site, p.u.Peel(ctx, p.u.opts.MaxHeapContextDepth))
	return newSingle(t, []*Object{o}, false, false)
}

func (p *sensitivePolicy) ForConstant(key string, t *Type) TypeState {
	return newSingle(t, []*Object{p.u.ConstantObject(t, key)}, false, false)
}

func (p *sensitivePolicy) CloneState(current, input TypeState, site Location, ctx *Context) TypeState {
	return cloneState(p, current, input, site, ctx)
}

func (p *sensitivePolicy) CalleeContext(receiver *Object, depth int) *Context {
	if depth == 0 || !receiver.IsAllocation() {
		return emptyContext
	}
	return p.u.Extend(receiver.Context(), receiver.site, depth)
}

func (p *sensitivePolicy) StaticCalleeContext(caller *Context, invoke Location) *Context {
	if !p.u.opts.HybridStaticContext {
		return p.u.canonical(caller)
	}
	return p.u.Extend(caller, invoke, p.u.opts.MaxCallingContextDepth)
}

func (p *sensitivePolicy) AllocationContext(method *Context) *Context {
	return p.u.Peel(method, p.u.opts.MaxHeapContextDepth)
}

// insensitivePolicy folds every object into its type's summary and keeps no
// contexts.
type insensitivePolicy struct {
	basePolicy
}

func (p *insensitivePolicy) IsContextSensitive() bool { return false }

func (p *insensitivePolicy) ForAllocation(_ Location, t *Type, _ *Context) TypeState {
	return ForExactType(t, false)
}

func (p *insensitivePolicy) ForConstant(_ string, t *Type) TypeState {
	return ForExactType(t, false)
}

func (p *insensitivePolicy) CloneState(current, input TypeState, site Location, ctx *Context) TypeState {
	return cloneState(p, current, input, site, ctx)
}

func (p *insensitivePolicy) CalleeContext(*Object, int) *Context             { return emptyContext }
func (p *insensitivePolicy) StaticCalleeContext(*Context, Location) *Context { return emptyContext }
func (p *insensitivePolicy) AllocationContext(*Context) *Context             { return emptyContext }
