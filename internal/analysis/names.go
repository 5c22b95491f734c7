package analysis

import (
	"go/types"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/tools/go/ssa"
)

// NameCache computes canonical names for functions and types. Type names are
// the identity of analysis types, so identical types built separately by the
// type checker must get the same name.
type NameCache struct {
	objCache  *xsync.Map[types.Object, string]
	typeCache *xsync.Map[types.Type, string]
	funcCache *xsync.Map[*ssa.Function, string]
}

func NewNameCache() *NameCache {
	return &NameCache{
		objCache:  xsync.NewMap[types.Object, string](),
		typeCache: xsync.NewMap[types.Type, string](),
		funcCache: xsync.NewMap[*ssa.Function, string](),
	}
}

// ObjectName returns packagePath.Name for functions and packagePath.*Recv.Name
// or packagePath.Recv.Name for methods. Generic functions keep their type
// parameter list, e.g. "example.com/m.Map[K, V]".
func (c *NameCache) ObjectName(obj types.Object) string {
	if obj == nil {
		return ""
	}
	if name, ok := c.objCache.Load(obj); ok {
		return name
	}
	name := c.computeObjectName(obj)
	c.objCache.Store(obj, name)
	return name
}

// TypeName returns the canonical name of typ: packagePath.Name[Args] for named
// types, a leading * for pointers to them and the fully qualified type string
// for everything else.
func (c *NameCache) TypeName(typ types.Type) string {
	if typ == nil {
		return ""
	}
	if name, ok := c.typeCache.Load(typ); ok {
		return name
	}
	name := c.computeTypeName(typ)
	c.typeCache.Store(typ, name)
	return name
}

// FuncName names an SSA function. Declared functions and methods use
// ObjectName; closures, wrappers and generic instances use the SSA name,
// which is unique within the program.
func (c *NameCache) FuncName(fn *ssa.Function) string {
	if fn == nil {
		return ""
	}
	if name, ok := c.funcCache.Load(fn); ok {
		return name
	}
	var name string
	if obj := fn.Object(); obj != nil && fn.Synthetic == "" && fn.Origin() == nil && fn.Parent() == nil {
		name = c.ObjectName(obj)
	} else {
		name = fn.String()
	}
	c.funcCache.Store(fn, name)
	return name
}

func (c *NameCache) computeObjectName(obj types.Object) string {
	var builder strings.Builder
	builder.Grow(128)
	if pkg := obj.Pkg(); pkg != nil {
		builder.WriteString(pkg.Path())
		builder.WriteByte('.')
	}

	fn, ok := obj.(*types.Func)
	if !ok {
		builder.WriteString(obj.Name())
		return builder.String()
	}
	sig, ok := fn.Type().(*types.Signature)
	if !ok {
		builder.WriteString(obj.Name())
		return builder.String()
	}

	if recv := sig.Recv(); recv != nil {
		recvType := recv.Type()
		if ptr, ok := recvType.(*types.Pointer); ok {
			recvType = ptr.Elem()
			builder.WriteByte('*')
		}
		// Only the receiver's own name; the package path is already written.
		recvName := genericTypeName(recvType)
		if i := strings.LastIndexByte(recvName, '.'); i >= 0 && !strings.ContainsRune(recvName, '[') {
			recvName = recvName[i+1:]
		}
		builder.WriteString(recvName)
		builder.WriteByte('.')
		builder.WriteString(obj.Name())
		return builder.String()
	}

	builder.WriteString(obj.Name())
	if tparams := sig.TypeParams(); tparams != nil && tparams.Len() > 0 {
		writeTypeParams(&builder, tparams)
	}
	return builder.String()
}

func (c *NameCache) computeTypeName(typ types.Type) string {
	switch t := typ.(type) {
	case *types.Pointer:
		elem := c.TypeName(t.Elem())
		if elem == "" {
			return ""
		}
		return "*" + elem
	case *types.Named:
		obj := t.Obj()
		if obj == nil {
			return typ.String()
		}
		var builder strings.Builder
		builder.Grow(128)
		if pkg := obj.Pkg(); pkg != nil {
			builder.WriteString(pkg.Path())
			builder.WriteByte('.')
		}
		builder.WriteString(genericTypeName(t))
		return builder.String()
	case *types.Alias:
		return c.TypeName(types.Unalias(t))
	}
	// Composite and basic types print with fully qualified package paths.
	return typ.String()
}

// genericTypeName returns the local name of a named type with its type
// arguments, or its type parameters for an uninstantiated generic type.
func genericTypeName(typ types.Type) string {
	named, ok := typ.(*types.Named)
	if !ok {
		return typ.String()
	}
	name := named.Obj().Name()
	if args := named.TypeArgs(); args != nil && args.Len() > 0 {
		var builder strings.Builder
		builder.WriteString(name)
		builder.WriteByte('[')
		for i := range args.Len() {
			if i > 0 {
				builder.WriteString(", ")
			}
			builder.WriteString(args.At(i).String())
		}
		builder.WriteByte(']')
		return builder.String()
	}
	if tparams := named.TypeParams(); tparams != nil && tparams.Len() > 0 {
		var builder strings.Builder
		builder.WriteString(name)
		writeTypeParams(&builder, tparams)
		return builder.String()
	}
	return name
}

func writeTypeParams(builder *strings.Builder, tparams *types.TypeParamList) {
	builder.WriteByte('[')
	for i := range tparams.Len() {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(tparams.At(i).Obj().Name())
	}
	builder.WriteByte(']')
}
