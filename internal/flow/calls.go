package flow

import (
	"go/types"

	"golang.org/x/tools/go/ssa"

	"github.com/715d/pointsto/pkg/typestate"
)

// call links a call, go or defer instruction to its possible callees.
func (w *walker) call(instr ssa.CallInstruction) {
	common := instr.Common()
	if common.IsInvoke() {
		w.invoke(instr, common)
		return
	}
	args := w.args(common.Args)
	switch callee := common.Value.(type) {
	case *ssa.Builtin:
		w.builtin(instr, callee, common.Args, args)
	case *ssa.Function:
		w.static(instr, callee, args)
	default:
		w.dynamic(instr, w.value(common.Value), args)
	}
}

func (w *walker) args(values []ssa.Value) []typestate.TypeState {
	args := make([]typestate.TypeState, len(values))
	for i, v := range values {
		args[i] = w.value(v)
	}
	return args
}

// invoke dispatches an interface method call on every type the receiver may
// hold. Each receiver object selects the callee context of its clone.
func (w *walker) invoke(instr ssa.CallInstruction, common *ssa.CallCommon) {
	recv := w.value(common.Value)
	args := w.args(common.Args)
	if recv.ObjectsCount() == 0 {
		return
	}

	it := w.s.policy.TypesObjects(recv)
	for it.HasNextType() {
		t := it.NextType()
		callee := w.s.lookupMethod(t, common.Method)
		if callee == nil {
			it.SkipType()
			continue
		}
		w.dispatch(instr, callee, it, args)
	}
}

// dispatch links callee once per distinct callee context of the objects the
// iterator yields for the current type.
func (w *walker) dispatch(instr ssa.CallInstruction, callee *ssa.Function, it *typestate.TypesObjectsIterator, args []typestate.TypeState) {
	depth := w.s.u.Options().MaxCallingContextDepth
	var order []*typestate.Context
	receivers := make(map[*typestate.Context]typestate.TypeState)
	for it.HasNextObject() {
		o := it.NextObject()
		ctx := w.s.policy.CalleeContext(o, depth)
		st, ok := receivers[ctx]
		if !ok {
			order = append(order, ctx)
			st = typestate.Empty()
		}
		receivers[ctx] = w.s.policy.Union(st, typestate.ForObject(o))
	}
	for _, ctx := range order {
		full := make([]typestate.TypeState, 0, len(args)+1)
		full = append(full, receivers[ctx])
		full = append(full, args...)
		w.link(instr, callee, ctx, full, nil)
	}
}

// static links a call to a known function. Methods called directly take
// their context from the receiver objects like interface calls do.
func (w *walker) static(instr ssa.CallInstruction, callee *ssa.Function, args []typestate.TypeState) {
	if isSetFinalizer(callee) && len(args) == 2 {
		// The collector calls the finalizer with the object.
		w.dynamic(instr, args[1], args[:1])
	}
	if callee.Signature.Recv() != nil && len(args) > 0 && args[0].ObjectsCount() > 0 {
		it := w.s.policy.TypesObjects(args[0])
		for it.HasNextType() {
			it.NextType()
			w.dispatch(instr, callee, it, args[1:])
		}
		return
	}
	ctx := w.s.policy.StaticCalleeContext(w.c.ctx, w.site(instr))
	w.link(instr, callee, ctx, args, nil)
}

// dynamic calls every function a function value may denote.
func (w *walker) dynamic(instr ssa.CallInstruction, fv typestate.TypeState, args []typestate.TypeState) {
	depth := w.s.u.Options().MaxCallingContextDepth
	for _, o := range fv.Objects() {
		ctx := w.s.policy.CalleeContext(o, depth)
		// A summary denotes the functions of every object merged into it.
		for _, a := range w.s.aliases(o) {
			fns, _ := w.s.closures.Load(a)
			for _, fn := range fns {
				if len(fn.Params) != len(args) {
					continue
				}
				bind := func(cl *clone) {
					for i := range cl.freeVars {
						w.s.add(cl.freeVars[i], w.s.cell(heapKey{obj: a, field: i, fn: fn}).load())
					}
				}
				w.link(instr, fn, ctx, args, bind)
			}
		}
	}
}

// link passes args to the clone of callee for ctx and its results back to
// the call. Functions outside the analyzed packages are summarized by their
// declared result types.
func (w *walker) link(instr ssa.CallInstruction, callee *ssa.Function, ctx *typestate.Context, args []typestate.TypeState, bind func(*clone)) {
	v := instr.Value()
	if len(callee.Blocks) == 0 || !w.s.cfg.IsTarget(callee) {
		if v != nil {
			w.opaqueResults(v, callee.Signature)
		}
		return
	}
	w.s.edges.Store(edge{caller: w.c.fn, callee: callee}, struct{}{})

	cl := w.s.cloneOf(callee, ctx)
	for i, a := range args {
		if i < len(cl.params) {
			w.s.add(cl.params[i], a)
		}
	}
	if bind != nil {
		bind(cl)
	}
	if v == nil {
		return
	}
	for i, r := range cl.results {
		w.set(v, i, r.load())
	}
}

func (w *walker) opaqueResults(v *ssa.Call, sig *types.Signature) {
	results := sig.Results()
	for i := range results.Len() {
		w.set(v, i, w.s.opaque(results.At(i).Type()))
	}
}

// builtin models the builtins that move references: append and copy.
func (w *walker) builtin(instr ssa.CallInstruction, b *ssa.Builtin, values []ssa.Value, args []typestate.TypeState) {
	switch b.Name() {
	case "append":
		v := instr.Value()
		if v == nil || len(values) < 2 {
			return
		}
		slice, ok := v.Type().Underlying().(*types.Slice)
		if !ok {
			return
		}
		// The result is either the operand or a fresh backing array.
		result := w.s.policy.CloneState(args[0].ForCanBeNull(false), typestate.ForExactType(w.s.typeOf(v.Type()), false), w.site(instr), w.heapCtx)
		if isReference(slice.Elem()) {
			elems := w.s.policy.Union(w.s.elements(args[0], slice.Elem()), w.s.elements(args[1], slice.Elem()))
			w.s.storeElements(result, slice.Elem(), elems)
		}
		w.set(v, 0, result)
	case "copy":
		if len(values) < 2 {
			return
		}
		dst, ok := values[0].Type().Underlying().(*types.Slice)
		if !ok || !isReference(dst.Elem()) {
			return
		}
		w.s.storeElements(args[0], dst.Elem(), w.s.elements(args[1], dst.Elem()))
	}
}

func isSetFinalizer(fn *ssa.Function) bool {
	obj := fn.Object()
	return obj != nil && obj.Pkg() != nil && obj.Pkg().Path() == "runtime" && obj.Name() == "SetFinalizer"
}
