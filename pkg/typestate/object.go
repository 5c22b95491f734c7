package typestate

import (
	"cmp"
	"fmt"
	"strconv"
	"sync/atomic"
)

// ObjectKind distinguishes the three flavours of analysis objects.
type ObjectKind uint8

const (
	// SummaryObject stands for every object of its type.
	SummaryObject ObjectKind = iota
	// AllocationObject is an allocation site qualified by a heap context.
	AllocationObject
	// ConstantObject is a constant value of an exact type.
	ConstantObject
)

func (k ObjectKind) String() string {
	switch k {
	case SummaryObject:
		return "summary"
	case AllocationObject:
		return "allocation"
	case ConstantObject:
		return "constant"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Object is an abstract heap object. Objects are interned by the Universe,
// so pointer equality is identity.
type Object struct {
	id   int
	typ  *Type
	kind ObjectKind

	site     Location
	context  *Context
	constant string

	merged atomic.Bool
}

// ID returns the creation-order id of the object.
func (o *Object) ID() int { return o.id }

// Type returns the exact type of the object.
func (o *Object) Type() *Type { return o.typ }

// Kind returns the flavour of the object.
func (o *Object) Kind() ObjectKind { return o.kind }

// IsSummary reports whether o is the context-insensitive object of its type.
func (o *Object) IsSummary() bool { return o.kind == SummaryObject }

// IsAllocation reports whether o was created for an allocation site.
func (o *Object) IsAllocation() bool { return o.kind == AllocationObject }

// IsConstant reports whether o was created for a constant.
func (o *Object) IsConstant() bool { return o.kind == ConstantObject }

// Site returns the allocation site. Only meaningful for allocation objects.
func (o *Object) Site() Location { return o.site }

// Context returns the heap context of an allocation object, or the empty context.
func (o *Object) Context() *Context {
	if o.context == nil {
		return EmptyContext()
	}
	return o.context
}

// Constant returns the constant key of a constant object.
func (o *Object) Constant() string { return o.constant }

// IsMerged reports whether the object was absorbed into its type's summary
// by some union. The flag is advisory and never cleared.
func (o *Object) IsMerged() bool { return o.merged.Load() }

func (o *Object) markMerged() {
	if !o.merged.Load() {
		o.merged.Store(true)
	}
}

// Compare orders objects by type id, then by object id.
func (o *Object) Compare(other *Object) int {
	if c := cmp.Compare(o.typ.id, other.typ.id); c != 0 {
		return c
	}
	return cmp.Compare(o.id, other.id)
}

func (o *Object) String() string {
	switch o.kind {
	case AllocationObject:
		return fmt.Sprintf("%s#%d@%s%s", o.typ.name, o.id, o.site, o.Context())
	case ConstantObject:
		return fmt.Sprintf("%s#%d=%s", o.typ.name, o.id, strconv.Quote(o.constant))
	default:
		return fmt.Sprintf("%s#%d!", o.typ.name, o.id)
	}
}

func compareObjects(a, b *Object) int { return a.Compare(b) }
