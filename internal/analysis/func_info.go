// Package analysis holds the per-function results of a points-to run and the
// naming shared by the solver and its reports.
package analysis

import (
	"fmt"
	"go/token"
	"go/types"
	"slices"
	"strings"

	"golang.org/x/tools/go/ssa"

	"github.com/715d/pointsto/pkg/typestate"
)

// ValueInfo is the context-merged type state of one parameter or result.
type ValueInfo struct {
	// Name is the declared name, or p<i>/r<i> for unnamed values.
	Name string

	// Type is the static type of the value.
	Type types.Type

	// State is the union of the value's states over all analyzed contexts.
	State typestate.TypeState
}

// TypeNames returns the sorted names of the types the value may hold.
func (v ValueInfo) TypeNames() []string {
	if v.State == nil {
		return nil
	}
	var names []string
	for t := range v.State.Types() {
		names = append(names, t.Name())
	}
	slices.Sort(names)
	return names
}

// FailedAssertion is a type assertion without comma-ok that may panic because
// some type reaching it does not satisfy the asserted type.
type FailedAssertion struct {
	Position token.Position
	Asserted string
	Failing  typestate.TypeState
}

func (a FailedAssertion) String() string {
	var names []string
	for t := range a.Failing.Types() {
		names = append(names, t.Name())
	}
	slices.Sort(names)
	return fmt.Sprintf("%s: .(%s) fails for %s", a.Position, a.Asserted, strings.Join(names, ", "))
}

// FuncInfo represents the analysis results of one reachable function.
type FuncInfo struct {
	// Function is the SSA function the results belong to.
	Function *ssa.Function

	// Name is the canonical function name, see NameCache.FuncName.
	Name string

	// Package is the import path of the package declaring the function, empty
	// for synthetic wrappers.
	Package string

	// Position is where the function is declared.
	Position token.Position

	// Contexts lists the distinct contexts the function was analyzed in.
	Contexts []*typestate.Context

	Params  []ValueInfo
	Results []ValueInfo

	FailedAssertions []FailedAssertion

	// Recursive marks functions on a call graph cycle.
	Recursive bool
}

// NewFuncInfo creates an empty FuncInfo for fn with one slot per parameter
// and result.
func NewFuncInfo(fn *ssa.Function, names *NameCache) *FuncInfo {
	fi := &FuncInfo{
		Function: fn,
		Name:     names.FuncName(fn),
	}
	if pkg := fn.Package(); pkg != nil {
		fi.Package = pkg.Pkg.Path()
	}
	if fn.Prog != nil && fn.Prog.Fset != nil && fn.Pos().IsValid() {
		fi.Position = fn.Prog.Fset.Position(fn.Pos())
	}

	declared := declaredParams(fn.Signature)
	fi.Params = make([]ValueInfo, len(fn.Params))
	for i, p := range fn.Params {
		name := p.Name()
		if len(declared) == len(fn.Params) {
			name = declared[i].Name()
		}
		if name == "" || name == "_" {
			name = fmt.Sprintf("p%d", i)
		}
		fi.Params[i] = ValueInfo{Name: name, Type: p.Type(), State: typestate.Empty()}
	}
	results := fn.Signature.Results()
	fi.Results = make([]ValueInfo, results.Len())
	for i := range results.Len() {
		v := results.At(i)
		name := v.Name()
		if name == "" || name == "_" {
			name = fmt.Sprintf("r%d", i)
		}
		fi.Results[i] = ValueInfo{Name: name, Type: v.Type(), State: typestate.Empty()}
	}
	return fi
}

// declaredParams returns the receiver followed by the parameters of sig.
func declaredParams(sig *types.Signature) []*types.Var {
	var vars []*types.Var
	if recv := sig.Recv(); recv != nil {
		vars = append(vars, recv)
	}
	for i := range sig.Params().Len() {
		vars = append(vars, sig.Params().At(i))
	}
	return vars
}

// IsInInternalPackage checks if this function is defined in an internal package.
func (fi *FuncInfo) IsInInternalPackage() bool {
	pkgPath := fi.Package

	// Check if the package path contains "internal" as a complete path segment.
	return strings.Contains(pkgPath, "/internal/") ||
		strings.HasSuffix(pkgPath, "/internal") ||
		strings.HasPrefix(pkgPath, "internal/") ||
		pkgPath == "internal"
}

// IsClosure reports whether the function is an anonymous function literal.
func (fi *FuncInfo) IsClosure() bool {
	return fi.Function != nil && fi.Function.Parent() != nil
}

// ShouldReport determines if the function belongs in a report. Returns true
// when the function was reached and is declared in source, a closure or an
// instance of a generic function. Wrappers and thunks are left out.
func (fi *FuncInfo) ShouldReport() bool {
	if len(fi.Contexts) == 0 {
		return false
	}
	if fi.Function == nil {
		return false
	}
	return fi.Function.Synthetic == "" || fi.Function.Origin() != nil
}

// Param returns the parameter with the given name.
func (fi *FuncInfo) Param(name string) (ValueInfo, bool) {
	for _, p := range fi.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ValueInfo{}, false
}
