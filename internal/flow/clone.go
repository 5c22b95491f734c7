package flow

import (
	"fmt"
	"sync"

	"golang.org/x/tools/go/ssa"

	"github.com/715d/pointsto/pkg/typestate"
)

// Pseudo field indexes of heap cells. Struct fields use their index.
const (
	fieldContent = -1
	fieldElem    = -2
	fieldKey     = -3
)

// cell is a monotonically growing type state shared between goroutines.
type cell struct {
	mu    sync.Mutex
	state typestate.TypeState
}

func newCell() *cell { return &cell{state: typestate.Empty()} }

func (c *cell) load() typestate.TypeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// add joins s into the cell and reports whether the cell grew.
func (c *cell) add(p typestate.Policy, s typestate.TypeState) bool {
	if isNothing(s) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := p.Union(c.state, s)
	if n == c.state || typestate.Equal(n, c.state) {
		return false
	}
	c.state = n
	return true
}

func isNothing(s typestate.TypeState) bool {
	return s.ObjectsCount() == 0 && !s.CanBeNull()
}

type heapKey struct {
	obj   *typestate.Object
	field int
	// fn is set for the free variable cells of closures.
	fn *ssa.Function
}

type cloneKey struct {
	fn  *ssa.Function
	ctx *typestate.Context
}

type edge struct {
	caller, callee *ssa.Function
}

// funcData is the context independent view of a function body.
type funcData struct {
	name     string
	params   map[*ssa.Parameter]int
	freeVars map[*ssa.FreeVar]int
	sites    map[ssa.Instruction]int
}

func newFuncData(fn *ssa.Function, name string) *funcData {
	d := &funcData{
		name:     name,
		params:   make(map[*ssa.Parameter]int, len(fn.Params)),
		freeVars: make(map[*ssa.FreeVar]int, len(fn.FreeVars)),
		sites:    make(map[ssa.Instruction]int),
	}
	for i, p := range fn.Params {
		d.params[p] = i
	}
	for i, fv := range fn.FreeVars {
		d.freeVars[fv] = i
	}
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			d.sites[instr] = len(d.sites)
		}
	}
	return d
}

// clone is a function analyzed in one context. Its parameter, free variable
// and result cells are shared with callers; values is owned by the goroutine
// processing the clone.
type clone struct {
	fn   *ssa.Function
	ctx  *typestate.Context
	data *funcData

	params   []*cell
	freeVars []*cell
	results  []*cell

	values map[valueKey]typestate.TypeState
	failed map[*ssa.TypeAssert]typestate.TypeState
}

type valueKey struct {
	v ssa.Value
	i int
}

func newClone(fn *ssa.Function, ctx *typestate.Context, data *funcData) *clone {
	c := &clone{
		fn:       fn,
		ctx:      ctx,
		data:     data,
		params:   make([]*cell, len(fn.Params)),
		freeVars: make([]*cell, len(fn.FreeVars)),
		results:  make([]*cell, fn.Signature.Results().Len()),
		values:   make(map[valueKey]typestate.TypeState),
		failed:   make(map[*ssa.TypeAssert]typestate.TypeState),
	}
	for _, cells := range [][]*cell{c.params, c.freeVars, c.results} {
		for i := range cells {
			cells[i] = newCell()
		}
	}
	return c
}

func (c *clone) String() string { return fmt.Sprintf("%s%s", c.data.name, c.ctx) }
