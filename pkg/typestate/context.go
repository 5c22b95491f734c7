package typestate

import (
	"slices"
	"strconv"
	"strings"
)

// Location is a program point: an instruction index inside a method.
type Location struct {
	Method string
	Index  int
}

func (l Location) String() string {
	return l.Method + "@" + strconv.Itoa(l.Index)
}

// Context is an immutable chain of locations, oldest first. Contexts are
// canonicalized by their Universe, so two contexts with equal chains are the
// same pointer.
type Context struct {
	locations []Location
	key       string
}

var emptyContext = &Context{}

// EmptyContext returns the shared context without locations.
func EmptyContext() *Context { return emptyContext }

// Len returns the number of locations in the chain.
func (c *Context) Len() int { return len(c.locations) }

// Locations returns a copy of the chain, oldest first.
func (c *Context) Locations() []Location { return slices.Clone(c.locations) }

// At returns the i-th location, oldest first.
func (c *Context) At(i int) Location { return c.locations[i] }

// Equal reports whether both chains hold the same locations.
func (c *Context) Equal(other *Context) bool {
	return c == other || c.key == other.key
}

func (c *Context) String() string {
	if len(c.locations) == 0 {
		return "[]"
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, l := range c.locations {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(l.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

// contextKey encodes a chain so that distinct chains never share a key even
// when method names contain separator characters.
func contextKey(locs []Location) string {
	if len(locs) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, l := range locs {
		sb.WriteString(strconv.Itoa(len(l.Method)))
		sb.WriteByte(':')
		sb.WriteString(l.Method)
		sb.WriteByte('@')
		sb.WriteString(strconv.Itoa(l.Index))
		sb.WriteByte(';')
	}
	return sb.String()
}

// Context returns the canonical context for the given chain.
func (u *Universe) Context(locs ...Location) *Context {
	if len(locs) == 0 {
		return emptyContext
	}
	key := contextKey(locs)
	if c, ok := u.contexts.Load(key); ok {
		return c
	}
	c, _ := u.contexts.LoadOrCompute(key, func() (*Context, bool) {
		return &Context{locations: slices.Clone(locs), key: key}, false
	})
	return c
}

// Peel keeps the newest depth locations of c.
func (u *Universe) Peel(c *Context, depth int) *Context {
	if depth <= 0 {
		return emptyContext
	}
	if len(c.locations) <= depth {
		return u.canonical(c)
	}
	return u.Context(c.locations[len(c.locations)-depth:]...)
}

// Extend appends loc to c and peels the result to depth.
func (u *Universe) Extend(c *Context, loc Location, depth int) *Context {
	if depth <= 0 {
		return emptyContext
	}
	keep := min(len(c.locations), depth-1)
	locs := make([]Location, 0, keep+1)
	locs = append(locs, c.locations[len(c.locations)-keep:]...)
	locs = append(locs, loc)
	return u.Context(locs...)
}

// canonical returns the registered instance equal to c. Contexts built by
// this package are already canonical; the lookup guards against contexts of
// a different Universe.
func (u *Universe) canonical(c *Context) *Context {
	if len(c.locations) == 0 {
		return emptyContext
	}
	if got, ok := u.contexts.Load(c.key); ok {
		return got
	}
	return u.Context(c.locations...)
}
