package harness

import (
	"fmt"

	yaml "gopkg.in/yaml.v3"

	"github.com/715d/pointsto/pkg/typestate"
)

// FuncExpectation describes what the analysis must report for one function.
// Unset fields are not checked.
type FuncExpectation struct {
	// FuncName is the canonical function name.
	FuncName string `yaml:"func"`

	// Unreached requires the function to be absent from the report.
	Unreached bool `yaml:"unreached,omitempty"`

	// Contexts is the number of distinct contexts the function was analyzed in.
	Contexts *int `yaml:"contexts,omitempty"`

	Recursive *bool `yaml:"recursive,omitempty"`
	Closure   *bool `yaml:"closure,omitempty"`

	// Params and Results are matched by name.
	Params  []ValueExpectation `yaml:"params,omitempty"`
	Results []ValueExpectation `yaml:"results,omitempty"`

	// FailingAssertions, when present, must match the reported assertions in
	// source order. An empty list requires that no assertion may fail.
	FailingAssertions *[]AssertionExpectation `yaml:"failing_assertions,omitempty"`

	// File is the optional file path (relative to test dir).
	File string `yaml:"file,omitempty"`
}

// ValueExpectation describes the state of a parameter or result.
type ValueExpectation struct {
	Name string `yaml:"name"`

	// Types are the exact type names the value may hold, in any order.
	Types []string `yaml:"types"`

	// Objects is the number of abstract objects the value may point to.
	Objects *int `yaml:"objects,omitempty"`

	CanBeNull *bool `yaml:"can_be_null,omitempty"`
	Merged    *bool `yaml:"merged,omitempty"`
}

// AssertionExpectation describes a type assertion that may fail.
type AssertionExpectation struct {
	Asserted   string   `yaml:"asserted"`
	Failing    []string `yaml:"failing"`
	Suppressed bool     `yaml:"suppressed,omitempty"`
}

// decodeOptions decodes node on top of the default options. An empty node
// yields the defaults.
func decodeOptions(node yaml.Node) (typestate.Options, error) {
	opts := typestate.DefaultOptions()
	if node.Kind == 0 {
		return opts, nil
	}
	if err := node.Decode(&opts); err != nil {
		return typestate.Options{}, fmt.Errorf("decoding options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return typestate.Options{}, fmt.Errorf("invalid options: %w", err)
	}
	return opts, nil
}
