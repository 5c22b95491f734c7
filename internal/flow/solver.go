// Package flow propagates type states through the SSA form of a program until
// a fixed point is reached. Functions are cloned per context as chosen by a
// typestate.Policy, and calls through interfaces and function values are
// resolved from the type states of their receivers.
package flow

import (
	"context"
	"fmt"
	"go/types"
	"log/slog"
	"runtime"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/types/typeutil"

	"github.com/715d/pointsto/internal/analysis"
	"github.com/715d/pointsto/pkg/typestate"
)

// DefaultMaxRounds bounds the number of propagation rounds.
const DefaultMaxRounds = 500

// Config tunes a Solver.
type Config struct {
	// MaxRounds bounds the number of rounds; zero means DefaultMaxRounds.
	MaxRounds int

	// Workers bounds the clones processed concurrently; zero means one per CPU.
	Workers int

	// IsTarget reports whether a function body is analyzed. Calls to other
	// functions return states built from the declared result types. Nil
	// analyzes every function with a body.
	IsTarget func(*ssa.Function) bool
}

// Solver computes the type states of one program.
type Solver struct {
	prog   *ssa.Program
	policy typestate.Policy
	u      *typestate.Universe
	names  *analysis.NameCache
	cfg    Config

	funcs    *xsync.Map[*ssa.Function, *funcData]
	clones   *xsync.Map[cloneKey, *clone]
	heap     *xsync.Map[heapKey, *cell]
	closures *xsync.Map[*typestate.Object, []*ssa.Function]
	// holders lists, per type, the objects that own heap cells or closures.
	holders  *xsync.Map[*typestate.Type, []*typestate.Object]
	methods  *xsync.Map[methodKey, *ssa.Function]
	globals  *xsync.Map[*ssa.Global, typestate.TypeState]
	edges    *xsync.Map[edge, struct{}]
	msets    typeutil.MethodSetCache

	changed atomic.Bool
}

type methodKey struct {
	t      *typestate.Type
	method *types.Func
}

// NewSolver creates a solver for prog. Type states are built by policy and
// types are named with names.
func NewSolver(prog *ssa.Program, policy typestate.Policy, names *analysis.NameCache, cfg Config) *Solver {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.IsTarget == nil {
		cfg.IsTarget = func(fn *ssa.Function) bool { return len(fn.Blocks) > 0 }
	}
	return &Solver{
		prog:     prog,
		policy:   policy,
		u:        policy.Universe(),
		names:    names,
		cfg:      cfg,
		funcs:    xsync.NewMap[*ssa.Function, *funcData](),
		clones:   xsync.NewMap[cloneKey, *clone](),
		heap:     xsync.NewMap[heapKey, *cell](),
		closures: xsync.NewMap[*typestate.Object, []*ssa.Function](),
		holders:  xsync.NewMap[*typestate.Type, []*typestate.Object](),
		methods:  xsync.NewMap[methodKey, *ssa.Function](),
		globals:  xsync.NewMap[*ssa.Global, typestate.TypeState](),
		edges:    xsync.NewMap[edge, struct{}](),
	}
}

// Solve analyzes the program from entries, each in the empty context, and
// returns the per-function results.
func (s *Solver) Solve(ctx context.Context, entries []*ssa.Function) (*Result, error) {
	start := time.Now()
	for _, fn := range entries {
		if len(fn.Blocks) == 0 {
			continue
		}
		s.cloneOf(fn, s.policy.EmptyContext())
	}

	rounds := 0
	converged := false
	for rounds < s.cfg.MaxRounds {
		rounds++
		s.changed.Store(false)
		if err := s.round(ctx); err != nil {
			return nil, err
		}
		if !s.changed.Load() {
			converged = true
			break
		}
	}
	if !converged {
		slog.Warn("type states did not reach a fixed point", "rounds", rounds)
	}

	res := s.result()
	res.Stats.Rounds = rounds
	res.Stats.Converged = converged
	res.Stats.Duration = time.Since(start)
	slog.Debug("analysis finished",
		"rounds", rounds,
		"clones", res.Stats.Clones,
		"functions", res.Stats.Functions,
		"duration", res.Stats.Duration)
	return res, nil
}

// round processes every clone known at its start once.
func (s *Solver) round(ctx context.Context) error {
	batch := make([]*clone, 0, s.clones.Size())
	s.clones.Range(func(_ cloneKey, c *clone) bool {
		batch = append(batch, c)
		return true
	})

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, c := range batch {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return s.process(c)
		})
	}
	return g.Wait()
}

func (s *Solver) process(c *clone) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		ie, ok := r.(*typestate.InternalError)
		if !ok {
			panic(r)
		}
		err = fmt.Errorf("analyzing %s: %w", c, ie)
	}()

	w := &walker{s: s, c: c, heapCtx: s.policy.AllocationContext(c.ctx)}
	for _, b := range c.fn.Blocks {
		for _, instr := range b.Instrs {
			w.visit(instr)
		}
	}
	return nil
}

func (s *Solver) markChanged() { s.changed.Store(true) }

// cloneOf returns the clone of fn for ctx, creating it on first use.
func (s *Solver) cloneOf(fn *ssa.Function, ctx *typestate.Context) *clone {
	key := cloneKey{fn: fn, ctx: ctx}
	c, loaded := s.clones.LoadOrCompute(key, func() (*clone, bool) {
		return newClone(fn, ctx, s.funcData(fn)), false
	})
	if !loaded {
		s.markChanged()
	}
	return c
}

func (s *Solver) funcData(fn *ssa.Function) *funcData {
	d, _ := s.funcs.LoadOrCompute(fn, func() (*funcData, bool) {
		return newFuncData(fn, s.names.FuncName(fn)), false
	})
	return d
}

func (s *Solver) cell(key heapKey) *cell {
	c, loaded := s.heap.LoadOrCompute(key, func() (*cell, bool) { return newCell(), false })
	if !loaded {
		s.hold(key.obj)
	}
	return c
}

// hold records that o owns facts in the heap or the closure registry.
func (s *Solver) hold(o *typestate.Object) {
	s.holders.Compute(o.Type(), func(old []*typestate.Object, _ bool) ([]*typestate.Object, xsync.ComputeOp) {
		if slices.Contains(old, o) {
			return old, xsync.CancelOp
		}
		return append(slices.Clip(old), o), xsync.UpdateOp
	})
}

// aliases returns the objects whose facts a read through o must see. The
// summary of a type stands for every object merged into it. Any other object
// may be reached through the summary as well, so stores made through the
// summary are visible to it.
func (s *Solver) aliases(o *typestate.Object) []*typestate.Object {
	held, _ := s.holders.Load(o.Type())
	if len(held) == 0 {
		return []*typestate.Object{o}
	}
	out := []*typestate.Object{o}
	if !o.IsSummary() {
		if sum := o.Type().Summary(); slices.Contains(held, sum) {
			out = append(out, sum)
		}
		return out
	}
	for _, h := range held {
		if h != o && h.IsMerged() {
			out = append(out, h)
		}
	}
	return out
}

func (s *Solver) add(c *cell, st typestate.TypeState) {
	if c.add(s.policy, st) {
		s.markChanged()
	}
}

// typeOf returns the analysis type of t, registering it on first use.
func (s *Solver) typeOf(t types.Type) *typestate.Type {
	return s.u.Type(s.names.TypeName(t), t)
}

// global returns the state of the address of g.
func (s *Solver) global(g *ssa.Global) typestate.TypeState {
	st, _ := s.globals.LoadOrCompute(g, func() (typestate.TypeState, bool) {
		site := typestate.Location{Method: g.String()}
		return s.policy.ForAllocation(site, s.typeOf(g.Type()), s.policy.EmptyContext()), false
	})
	return st
}

// function returns the state of fn used as a value and remembers which
// functions each function object may denote.
func (s *Solver) function(fn *ssa.Function) typestate.TypeState {
	st := s.policy.ForConstant(fn.String(), s.typeOf(fn.Signature))
	for _, o := range st.Objects() {
		s.bindFunc(o, fn)
	}
	return st
}

func (s *Solver) bindFunc(o *typestate.Object, fn *ssa.Function) {
	s.hold(o)
	s.closures.Compute(o, func(old []*ssa.Function, _ bool) ([]*ssa.Function, xsync.ComputeOp) {
		if slices.Contains(old, fn) {
			return old, xsync.CancelOp
		}
		return append(slices.Clip(old), fn), xsync.UpdateOp
	})
}

// fieldObjects returns the addresses of a field of every object in base.
func (s *Solver) fieldObjects(base typestate.TypeState, field int, ptr types.Type) typestate.TypeState {
	if base.ObjectsCount() == 0 {
		return typestate.Empty()
	}
	t := s.typeOf(ptr)
	out := typestate.Empty()
	for _, o := range base.Objects() {
		s.hold(o)
		for _, a := range s.aliases(o) {
			site := typestate.Location{Method: "&#" + strconv.Itoa(a.ID()), Index: field}
			out = s.policy.Union(out, s.policy.ForAllocation(site, t, a.Context()))
		}
	}
	return out
}

// contents joins the heap cells (o, field) of every object in base.
func (s *Solver) contents(base typestate.TypeState, field int) typestate.TypeState {
	out := typestate.Empty()
	for _, o := range base.Objects() {
		for _, a := range s.aliases(o) {
			out = s.policy.Union(out, s.cell(heapKey{obj: a, field: field}).load())
		}
	}
	return out
}

// store adds st to the heap cells (o, field) of every object in base.
func (s *Solver) store(base typestate.TypeState, field int, st typestate.TypeState) {
	if isNothing(st) {
		return
	}
	for _, o := range base.Objects() {
		s.add(s.cell(heapKey{obj: o, field: field}), st)
	}
}

// elements returns the elements of the slices or arrays in base, whose
// element type is elem.
func (s *Solver) elements(base typestate.TypeState, elem types.Type) typestate.TypeState {
	return s.contents(s.fieldObjects(base, fieldElem, types.NewPointer(elem)), fieldContent)
}

func (s *Solver) storeElements(base typestate.TypeState, elem types.Type, st typestate.TypeState) {
	if isNothing(st) {
		return
	}
	s.store(s.fieldObjects(base, fieldElem, types.NewPointer(elem)), fieldContent, st)
}

// lookupMethod returns the concrete method of t selected by an interface
// method, or nil when t has none.
func (s *Solver) lookupMethod(t *typestate.Type, method *types.Func) *ssa.Function {
	key := methodKey{t: t, method: method}
	fn, _ := s.methods.LoadOrCompute(key, func() (*ssa.Function, bool) {
		typ, ok := t.Payload().(types.Type)
		if !ok || types.IsInterface(typ) {
			return nil, false
		}
		sel := s.msets.MethodSet(typ).Lookup(method.Pkg(), method.Name())
		if sel == nil {
			return nil, false
		}
		return s.prog.MethodValue(sel), false
	})
	return fn
}

// opaque is the state of a value of static type t produced by code that is
// not analyzed: an object of exactly t for concrete reference types.
func (s *Solver) opaque(t types.Type) typestate.TypeState {
	if !isReference(t) {
		return typestate.Empty()
	}
	if types.IsInterface(t) {
		return typestate.Null()
	}
	if _, ok := t.Underlying().(*types.Signature); ok {
		return typestate.Null()
	}
	return typestate.ForExactType(s.typeOf(t), true)
}

func isReference(t types.Type) bool {
	switch u := t.Underlying().(type) {
	case *types.Pointer, *types.Interface, *types.Slice, *types.Map, *types.Chan, *types.Signature:
		return true
	case *types.Basic:
		return u.Kind() == types.UnsafePointer
	}
	return false
}
