package pointsto

import (
	"cmp"
	"go/token"
	"slices"

	"github.com/715d/pointsto/internal/flow"
	"github.com/715d/pointsto/pkg/typestate"
)

// Report is the outcome of one analysis run.
type Report struct {
	Functions []FunctionReport `json:"functions"`
	Stats     flow.Stats       `json:"stats"`
	Options   typestate.Options `json:"options"`
}

// FunctionReport holds the context-merged type states of a reachable function.
type FunctionReport struct {
	Name      string         `json:"name"`
	Package   string         `json:"package"`
	Position  token.Position `json:"position"`
	Contexts  []string       `json:"contexts"`
	Recursive bool           `json:"recursive,omitempty"`
	Closure   bool           `json:"closure,omitempty"`

	Params           []ValueReport     `json:"params,omitempty"`
	Results          []ValueReport     `json:"results,omitempty"`
	FailedAssertions []AssertionReport `json:"failed_assertions,omitempty"`
}

// ValueReport describes the state of one parameter or result.
type ValueReport struct {
	Name string `json:"name"`
	Type string `json:"type"`

	// Types lists the exact types the value may hold, sorted by name.
	Types []string `json:"types"`

	// Objects counts the abstract objects the value may point to.
	Objects int `json:"objects"`

	CanBeNull bool `json:"can_be_null"`

	// Merged is set when objects were collapsed into their type's summary.
	Merged bool `json:"merged,omitempty"`
}

// AssertionReport is a type assertion that may panic.
type AssertionReport struct {
	Position token.Position `json:"position"`
	Asserted string         `json:"asserted"`

	// Failing lists the types reaching the assertion that do not satisfy it.
	Failing []string `json:"failing"`

	Suppressed bool   `json:"suppressed,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Function returns the report of the function with the given name.
func (r *Report) Function(name string) (FunctionReport, bool) {
	i, found := slices.BinarySearchFunc(r.Functions, name, func(f FunctionReport, name string) int {
		return cmp.Compare(f.Name, name)
	})
	if !found {
		return FunctionReport{}, false
	}
	return r.Functions[i], true
}

// FailingAssertions counts the assertions that may fail and are not
// suppressed.
func (r *Report) FailingAssertions() int {
	n := 0
	for _, f := range r.Functions {
		for _, a := range f.FailedAssertions {
			if !a.Suppressed {
				n++
			}
		}
	}
	return n
}
