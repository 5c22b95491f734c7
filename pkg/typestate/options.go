package typestate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	yaml "gopkg.in/yaml.v3"
)

// Options holds the run parameters of an analysis. They are fixed when the
// Universe is created and read-only afterwards.
type Options struct {
	// MaxCallingContextDepth bounds the contexts of analyzed method clones.
	MaxCallingContextDepth int `yaml:"max_calling_context_depth" json:"max_calling_context_depth"`

	// MaxHeapContextDepth bounds the contexts attached to allocation objects.
	MaxHeapContextDepth int `yaml:"max_heap_context_depth" json:"max_heap_context_depth"`

	// MaxObjectSetSize is the number of objects of one type a state may hold
	// before the type collapses to its summary object.
	MaxObjectSetSize int `yaml:"max_object_set_size" json:"max_object_set_size"`

	// AllocationSiteSensitiveHeap selects the context-sensitive policy.
	AllocationSiteSensitiveHeap bool `yaml:"allocation_site_sensitive_heap" json:"allocation_site_sensitive_heap"`

	// HybridStaticContext extends the caller context at static call sites.
	HybridStaticContext bool `yaml:"hybrid_static_context" json:"hybrid_static_context"`

	// ExtendedAsserts enables deep invariant checks. Violations panic with an
	// *InternalError.
	ExtendedAsserts bool `yaml:"extended_asserts" json:"extended_asserts"`
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		MaxCallingContextDepth:      2,
		MaxHeapContextDepth:         1,
		MaxObjectSetSize:            100,
		AllocationSiteSensitiveHeap: true,
	}
}

// Validate reports the first invalid parameter.
func (o Options) Validate() error {
	var errs []error
	if o.MaxCallingContextDepth < 0 {
		errs = append(errs, fmt.Errorf("max_calling_context_depth must not be negative, got %d", o.MaxCallingContextDepth))
	}
	if o.MaxHeapContextDepth < 0 {
		errs = append(errs, fmt.Errorf("max_heap_context_depth must not be negative, got %d", o.MaxHeapContextDepth))
	}
	if o.MaxObjectSetSize < 1 {
		errs = append(errs, fmt.Errorf("max_object_set_size must be at least 1, got %d", o.MaxObjectSetSize))
	}
	return errors.Join(errs...)
}

// LoadOptions reads options from a YAML file. Fields missing from the file
// keep their default values.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("reading options: %w", err)
	}
	return ParseOptions(data)
}

// ParseOptions decodes YAML options on top of DefaultOptions. Unknown keys
// are rejected.
func ParseOptions(data []byte) (Options, error) {
	opts := DefaultOptions()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, fmt.Errorf("decoding options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, fmt.Errorf("invalid options: %w", err)
	}
	return opts, nil
}
