package flow

import (
	"go/constant"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ssa"

	"github.com/715d/pointsto/pkg/typestate"
)

// walker applies the transfer functions of one clone's instructions.
type walker struct {
	s       *Solver
	c       *clone
	heapCtx *typestate.Context
}

func (w *walker) site(instr ssa.Instruction) typestate.Location {
	return typestate.Location{Method: w.c.data.name, Index: w.c.data.sites[instr]}
}

// value returns the current state of v in the clone.
func (w *walker) value(v ssa.Value) typestate.TypeState {
	switch v := v.(type) {
	case *ssa.Const:
		if v.IsNil() {
			return typestate.Null()
		}
		return typestate.Empty()
	case *ssa.Global:
		return w.s.global(v)
	case *ssa.Function:
		return w.s.function(v)
	case *ssa.Builtin:
		return typestate.Empty()
	case *ssa.Parameter:
		if i, ok := w.c.data.params[v]; ok {
			return w.c.params[i].load()
		}
		return typestate.Empty()
	case *ssa.FreeVar:
		if i, ok := w.c.data.freeVars[v]; ok {
			return w.c.freeVars[i].load()
		}
		return typestate.Empty()
	}
	return w.component(v, 0)
}

// component returns the i-th component of a tuple valued instruction, or the
// instruction's value for i == 0.
func (w *walker) component(v ssa.Value, i int) typestate.TypeState {
	if st, ok := w.c.values[valueKey{v: v, i: i}]; ok {
		return st
	}
	return typestate.Empty()
}

// set joins st into the i-th component of v.
func (w *walker) set(v ssa.Value, i int, st typestate.TypeState) {
	if isNothing(st) {
		return
	}
	key := valueKey{v: v, i: i}
	old, ok := w.c.values[key]
	if !ok {
		w.c.values[key] = st
		w.s.markChanged()
		return
	}
	n := w.s.policy.Union(old, st)
	if n == old || typestate.Equal(n, old) {
		return
	}
	w.c.values[key] = n
	w.s.markChanged()
}

func (w *walker) alloc(instr ssa.Instruction, t types.Type) typestate.TypeState {
	return w.s.policy.ForAllocation(w.site(instr), w.s.typeOf(t), w.heapCtx)
}

func (w *walker) visit(instr ssa.Instruction) {
	switch v := instr.(type) {
	case *ssa.Alloc:
		w.set(v, 0, w.alloc(v, v.Type()))
	case *ssa.MakeSlice:
		w.set(v, 0, w.alloc(v, v.Type()))
	case *ssa.MakeMap:
		w.set(v, 0, w.alloc(v, v.Type()))
	case *ssa.MakeChan:
		w.set(v, 0, w.alloc(v, v.Type()))
	case *ssa.MakeInterface:
		w.set(v, 0, w.makeInterface(v))
	case *ssa.MakeClosure:
		w.set(v, 0, w.makeClosure(v))

	case *ssa.Phi:
		for _, e := range v.Edges {
			w.set(v, 0, w.value(e))
		}
	case *ssa.ChangeType:
		w.set(v, 0, w.value(v.X))
	case *ssa.ChangeInterface:
		w.set(v, 0, w.value(v.X))
	case *ssa.Slice:
		w.set(v, 0, w.value(v.X))
	case *ssa.SliceToArrayPointer:
		w.set(v, 0, w.value(v.X))
	case *ssa.Range:
		w.set(v, 0, w.value(v.X))
	case *ssa.Convert:
		if isReference(v.Type()) && isReference(v.X.Type()) {
			w.set(v, 0, w.value(v.X))
		}
	case *ssa.MultiConvert:
		if isReference(v.Type()) && isReference(v.X.Type()) {
			w.set(v, 0, w.value(v.X))
		}

	case *ssa.FieldAddr:
		w.set(v, 0, w.s.fieldObjects(w.value(v.X), v.Field, v.Type()))
	case *ssa.IndexAddr:
		w.set(v, 0, w.s.fieldObjects(w.value(v.X), fieldElem, v.Type()))
	case *ssa.UnOp:
		w.unOp(v)
	case *ssa.Store:
		w.s.store(w.value(v.Addr), fieldContent, w.value(v.Val))

	case *ssa.Lookup:
		if m, ok := v.X.Type().Underlying().(*types.Map); ok && isReference(m.Elem()) {
			// Missing keys yield the zero value.
			w.set(v, 0, w.s.contents(w.value(v.X), fieldElem).ForCanBeNull(true))
		}
	case *ssa.MapUpdate:
		m := w.value(v.Map)
		w.s.store(m, fieldKey, w.value(v.Key))
		w.s.store(m, fieldElem, w.value(v.Value))
	case *ssa.Next:
		if !v.IsString {
			m := w.value(v.Iter)
			w.set(v, 1, w.s.contents(m, fieldKey))
			w.set(v, 2, w.s.contents(m, fieldElem))
		}
	case *ssa.Send:
		w.s.store(w.value(v.Chan), fieldElem, w.value(v.X))
	case *ssa.Select:
		w.selectStates(v)
	case *ssa.Extract:
		w.set(v, 0, w.component(v.Tuple, v.Index))

	case *ssa.TypeAssert:
		w.typeAssert(v)
	case *ssa.Call:
		w.call(v)
	case *ssa.Go:
		w.call(v)
	case *ssa.Defer:
		w.call(v)
	case *ssa.Return:
		for i, r := range v.Results {
			if i < len(w.c.results) {
				w.s.add(w.c.results[i], w.value(r))
			}
		}
	}
}

func (w *walker) unOp(v *ssa.UnOp) {
	switch v.Op {
	case token.MUL:
		if isReference(v.Type()) {
			w.set(v, 0, w.s.contents(w.value(v.X), fieldContent))
		}
	case token.ARROW:
		if ch, ok := v.X.Type().Underlying().(*types.Chan); ok && isReference(ch.Elem()) {
			// Receiving from a closed channel yields the zero value.
			w.set(v, 0, w.s.contents(w.value(v.X), fieldElem).ForCanBeNull(true))
		}
	}
}

func (w *walker) selectStates(v *ssa.Select) {
	recv := 0
	for _, st := range v.States {
		if st.Dir == types.RecvOnly {
			w.set(v, 2+recv, w.s.contents(w.value(st.Chan), fieldElem))
			recv++
			continue
		}
		w.s.store(w.value(st.Chan), fieldElem, w.value(st.Send))
	}
}

func (w *walker) makeInterface(v *ssa.MakeInterface) typestate.TypeState {
	x := v.X
	if isReference(x.Type()) {
		return w.value(x)
	}
	t := w.s.typeOf(x.Type())
	if c, ok := x.(*ssa.Const); ok {
		return w.s.policy.ForConstant(constantKey(c), t)
	}
	return w.s.policy.ForAllocation(w.site(v), t, w.heapCtx)
}

func constantKey(c *ssa.Const) string {
	if c.Value == nil {
		return "zero"
	}
	if c.Value.Kind() == constant.String {
		return constant.StringVal(c.Value)
	}
	return c.Value.ExactString()
}

func (w *walker) makeClosure(v *ssa.MakeClosure) typestate.TypeState {
	fn := v.Fn.(*ssa.Function)
	st := w.alloc(v, v.Type())
	for _, o := range st.Objects() {
		w.s.bindFunc(o, fn)
		for i, b := range v.Bindings {
			w.s.add(w.s.cell(heapKey{obj: o, field: i, fn: fn}), w.value(b))
		}
	}
	return st
}

// typeAssert keeps the part of the operand's state that satisfies the
// asserted type. Without comma-ok the remainder is recorded as a failing
// assertion.
func (w *walker) typeAssert(v *ssa.TypeAssert) {
	x := w.value(v.X)
	filter := w.assertFilter(x, v.AssertedType)
	w.set(v, 0, w.s.policy.Intersect(x, filter))
	if v.CommaOk {
		return
	}
	fail := w.s.policy.Subtract(x, filter)
	if fail.TypesCount() == 0 {
		return
	}
	old, ok := w.c.failed[v]
	if !ok {
		w.c.failed[v] = fail
		return
	}
	w.c.failed[v] = w.s.policy.Union(old, fail)
}

// assertFilter returns the summaries of the types of x that satisfy asserted.
func (w *walker) assertFilter(x typestate.TypeState, asserted types.Type) typestate.TypeState {
	iface, ok := asserted.Underlying().(*types.Interface)
	if !ok {
		return typestate.ForExactType(w.s.typeOf(asserted), false)
	}
	var matching []*typestate.Type
	for t := range x.Types() {
		typ, ok := t.Payload().(types.Type)
		if ok && types.Implements(typ, iface) {
			matching = append(matching, t)
		}
	}
	return typestate.ForExactTypes(false, matching...)
}
