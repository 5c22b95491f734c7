package typestate

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// Universe owns everything that lives for one analysis run: the type and
// object registries, the context table, the scratch pool and statistics.
// All methods are safe for concurrent use.
type Universe struct {
	opts Options

	typesByName *xsync.Map[string, *Type]
	typesMu     *xsync.RBMutex
	types       []*Type

	allocations *xsync.Map[allocationKey, *Object]
	constants   *xsync.Map[constantKey, *Object]
	contexts    *xsync.Map[string, *Context]

	nextObjectID atomic.Int64

	scratch *scratchPool
	stats   counters
}

type allocationKey struct {
	typ     int
	site    Location
	context *Context
}

type constantKey struct {
	typ int
	key string
}

type counters struct {
	unions        *xsync.Counter
	unionReuses   *xsync.Counter
	intersections *xsync.Counter
	subtractions  *xsync.Counter
	collapses     *xsync.Counter
}

// Stats is a snapshot of the run counters.
type Stats struct {
	Types         int   `json:"types"`
	Objects       int   `json:"objects"`
	Contexts      int   `json:"contexts"`
	Unions        int64 `json:"unions"`
	UnionReuses   int64 `json:"union_reuses"`
	Intersections int64 `json:"intersections"`
	Subtractions  int64 `json:"subtractions"`
	Collapses     int64 `json:"collapses"`
}

// NewUniverse creates the registries for a run with the given options.
func NewUniverse(opts Options) (*Universe, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return &Universe{
		opts:        opts,
		typesByName: xsync.NewMap[string, *Type](),
		typesMu:     xsync.NewRBMutex(),
		allocations: xsync.NewMap[allocationKey, *Object](),
		constants:   xsync.NewMap[constantKey, *Object](),
		contexts:    xsync.NewMap[string, *Context](),
		scratch:     newScratchPool(),
		stats: counters{
			unions:        xsync.NewCounter(),
			unionReuses:   xsync.NewCounter(),
			intersections: xsync.NewCounter(),
			subtractions:  xsync.NewCounter(),
			collapses:     xsync.NewCounter(),
		},
	}, nil
}

// Options returns the run options.
func (u *Universe) Options() Options { return u.opts }

// Type returns the type registered under name, registering it with payload
// on first use. The payload of later calls is ignored.
func (u *Universe) Type(name string, payload any) *Type {
	if t, ok := u.typesByName.Load(name); ok {
		return t
	}
	t, _ := u.typesByName.LoadOrCompute(name, func() (*Type, bool) {
		u.typesMu.Lock()
		defer u.typesMu.Unlock()
		t := &Type{id: len(u.types), name: name, payload: payload}
		// The summary is minted together with the type, so it has the
		// smallest object id of its type and sorts first in every slice.
		t.summary = &Object{id: u.newObjectID(), typ: t, kind: SummaryObject}
		t.summarySlice = []*Object{t.summary}
		u.types = append(u.types, t)
		return t, false
	})
	return t
}

// LookupType returns the type registered under name.
func (u *Universe) LookupType(name string) (*Type, bool) {
	return u.typesByName.Load(name)
}

// TypeByID returns the type with the given id, or nil.
func (u *Universe) TypeByID(id int) *Type {
	tok := u.typesMu.RLock()
	defer u.typesMu.RUnlock(tok)
	if id < 0 || id >= len(u.types) {
		return nil
	}
	return u.types[id]
}

// NumTypes returns the number of registered types.
func (u *Universe) NumTypes() int {
	tok := u.typesMu.RLock()
	defer u.typesMu.RUnlock(tok)
	return len(u.types)
}

// AllocationObject returns the object of type t allocated at site under ctx.
func (u *Universe) AllocationObject(t *Type, site Location, ctx *Context) *Object {
	ctx = u.canonical(ctx)
	key := allocationKey{typ: t.id, site: site, context: ctx}
	if o, ok := u.allocations.Load(key); ok {
		return o
	}
	o, _ := u.allocations.LoadOrCompute(key, func() (*Object, bool) {
		return &Object{id: u.newObjectID(), typ: t, kind: AllocationObject, site: site, context: ctx}, false
	})
	return o
}

// ConstantObject returns the object of exact type t standing for the
// constant identified by key.
func (u *Universe) ConstantObject(t *Type, key string) *Object {
	k := constantKey{typ: t.id, key: key}
	if o, ok := u.constants.Load(k); ok {
		return o
	}
	o, _ := u.constants.LoadOrCompute(k, func() (*Object, bool) {
		return &Object{id: u.newObjectID(), typ: t, kind: ConstantObject, constant: key}, false
	})
	return o
}

func (u *Universe) newObjectID() int {
	return int(u.nextObjectID.Add(1))
}

// Stats returns a snapshot of the run counters.
func (u *Universe) Stats() Stats {
	return Stats{
		Types:         u.NumTypes(),
		Objects:       int(u.nextObjectID.Load()),
		Contexts:      u.contexts.Size(),
		Unions:        u.stats.unions.Value(),
		UnionReuses:   u.stats.unionReuses.Value(),
		Intersections: u.stats.intersections.Value(),
		Subtractions:  u.stats.subtractions.Value(),
		Collapses:     u.stats.collapses.Value(),
	}
}

func (u *Universe) collapsed(t *Type, size int) {
	u.stats.collapses.Inc()
	slog.Debug("object set collapsed to summary", "type", t.name, "size", size, "limit", u.opts.MaxObjectSetSize)
}
