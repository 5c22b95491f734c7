package flow

import (
	"cmp"
	"slices"
	"time"

	"github.com/yourbasic/graph"
	"golang.org/x/tools/go/ssa"

	"github.com/715d/pointsto/internal/analysis"
	"github.com/715d/pointsto/pkg/typestate"
)

// Result holds the per-function type states of a solved program.
type Result struct {
	// Funcs lists every analyzed function, sorted by name.
	Funcs []*analysis.FuncInfo
	Stats Stats
}

// Stats describes the work done by a solver run.
type Stats struct {
	typestate.Stats
	Rounds              int           `json:"rounds"`
	Converged           bool          `json:"converged"`
	Clones              int           `json:"clones"`
	Functions           int           `json:"functions"`
	RecursiveComponents int           `json:"recursive_components"`
	Duration            time.Duration `json:"duration_ns"`
}

// Func returns the results of the function with the given name.
func (r *Result) Func(name string) (*analysis.FuncInfo, bool) {
	i, found := slices.BinarySearchFunc(r.Funcs, name, func(fi *analysis.FuncInfo, name string) int {
		return cmp.Compare(fi.Name, name)
	})
	if !found {
		return nil, false
	}
	return r.Funcs[i], true
}

// result merges the clones of every function into one FuncInfo.
func (s *Solver) result() *Result {
	byFunc := make(map[*ssa.Function]*analysis.FuncInfo)
	clones := 0
	s.clones.Range(func(key cloneKey, c *clone) bool {
		clones++
		fi, ok := byFunc[key.fn]
		if !ok {
			fi = analysis.NewFuncInfo(key.fn, s.names)
			byFunc[key.fn] = fi
		}
		fi.Contexts = append(fi.Contexts, key.ctx)
		for i, p := range c.params {
			fi.Params[i].State = s.policy.Union(fi.Params[i].State, p.load())
		}
		for i, r := range c.results {
			fi.Results[i].State = s.policy.Union(fi.Results[i].State, r.load())
		}
		return true
	})

	// Assertions are merged across clones before they are reported.
	failed := make(map[*ssa.TypeAssert]typestate.TypeState)
	s.clones.Range(func(_ cloneKey, c *clone) bool {
		for instr, st := range c.failed {
			if old, ok := failed[instr]; ok {
				st = s.policy.Union(old, st)
			}
			failed[instr] = st
		}
		return true
	})
	for instr, st := range failed {
		fi := byFunc[instr.Parent()]
		fi.FailedAssertions = append(fi.FailedAssertions, analysis.FailedAssertion{
			Position: instr.Parent().Prog.Fset.Position(instr.Pos()),
			Asserted: s.names.TypeName(instr.AssertedType),
			Failing:  s.policy.ContextInsensitive(st),
		})
	}

	res := &Result{Funcs: make([]*analysis.FuncInfo, 0, len(byFunc))}
	for _, fi := range byFunc {
		slices.SortFunc(fi.Contexts, func(a, b *typestate.Context) int {
			return cmp.Compare(a.String(), b.String())
		})
		slices.SortFunc(fi.FailedAssertions, func(a, b analysis.FailedAssertion) int {
			return cmp.Or(
				cmp.Compare(a.Position.Line, b.Position.Line),
				cmp.Compare(a.Position.Column, b.Position.Column),
			)
		})
		res.Funcs = append(res.Funcs, fi)
	}
	slices.SortFunc(res.Funcs, func(a, b *analysis.FuncInfo) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Function.String(), b.Function.String()))
	})

	res.Stats = Stats{
		Stats:               s.u.Stats(),
		Clones:              clones,
		Functions:           len(res.Funcs),
		RecursiveComponents: s.markRecursive(res.Funcs),
	}
	return res
}

// markRecursive flags the functions on call graph cycles and returns the
// number of strongly connected components that contain a cycle.
func (s *Solver) markRecursive(funcs []*analysis.FuncInfo) int {
	index := make(map[*ssa.Function]int, len(funcs))
	for i, fi := range funcs {
		index[fi.Function] = i
	}
	g := graph.New(len(funcs))
	selfLoops := make(map[int]bool)
	s.edges.Range(func(e edge, _ struct{}) bool {
		from, ok1 := index[e.caller]
		to, ok2 := index[e.callee]
		if !ok1 || !ok2 {
			return true
		}
		g.Add(from, to)
		if from == to {
			selfLoops[from] = true
		}
		return true
	})

	count := 0
	for _, comp := range graph.StrongComponents(g) {
		if len(comp) == 1 && !selfLoops[comp[0]] {
			continue
		}
		count++
		for _, v := range comp {
			funcs[v].Recursive = true
		}
	}
	return count
}
