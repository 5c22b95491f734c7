package typestate

// Type is an analysis type. Its id is dense, assigned on first registration
// and used as the bit index of the type in every multi-type state.
type Type struct {
	id      int
	name    string
	payload any

	summary      *Object
	summarySlice []*Object
}

// ID returns the dense id of the type.
func (t *Type) ID() int { return t.id }

// Name returns the name the type was registered under.
func (t *Type) Name() string { return t.name }

// Payload returns the value attached at registration, typically a go/types.Type.
func (t *Type) Payload() any { return t.payload }

// Summary returns the context-insensitive object of the type.
func (t *Type) Summary() *Object { return t.summary }

func (t *Type) String() string { return t.name }
