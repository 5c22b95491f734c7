// Package directive recognizes the compiler directives of Go source files.
// Some of them make a function callable from code the SSA program does not
// contain: C code through cgo exports, or other packages through linkname.
package directive

import (
	"go/ast"
	"strings"
)

// Kind is a directive kind.
type Kind int

const (
	None Kind = iota
	Nosplit
	Noinline
	Norace
	Nocheckptr
	Linkname
	Export
)

// Directive is a parsed directive comment.
type Directive struct {
	Kind Kind
	// Args are the space separated words after the directive name.
	Args []string
}

var kinds = map[string]Kind{
	"go:nosplit":    Nosplit,
	"go:noinline":   Noinline,
	"go:norace":     Norace,
	"go:nocheckptr": Nocheckptr,
	"go:linkname":   Linkname,
}

// Parse parses a single comment. Directives start right after the slashes;
// "// go:noinline" is an ordinary comment.
func Parse(comment string) (Directive, bool) {
	text, ok := strings.CutPrefix(comment, "//")
	if !ok || text == "" || text[0] == ' ' || text[0] == '\t' {
		return Directive{}, false
	}
	fields := strings.Fields(text)
	if fields[0] == "export" {
		return Directive{Kind: Export, Args: fields[1:]}, len(fields) > 1
	}
	kind, ok := kinds[fields[0]]
	if !ok {
		return Directive{}, false
	}
	return Directive{Kind: kind, Args: fields[1:]}, true
}

// Of returns the directives in the doc comment of decl.
func Of(decl *ast.FuncDecl) []Directive {
	if decl.Doc == nil {
		return nil
	}
	var out []Directive
	for _, c := range decl.Doc.List {
		if d, ok := Parse(c.Text); ok {
			out = append(out, d)
		}
	}
	return out
}

// ExternalFuncs returns the names of the package-level functions of file that
// are called from outside Go code: cgo exports and the local side of linkname
// directives. Linkname directives may appear anywhere in the file.
func ExternalFuncs(file *ast.File) map[string]struct{} {
	out := make(map[string]struct{})
	for _, group := range file.Comments {
		for _, c := range group.List {
			d, ok := Parse(c.Text)
			if ok && d.Kind == Linkname && len(d.Args) > 0 {
				out[d.Args[0]] = struct{}{}
			}
		}
	}
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv != nil || fd.Body == nil {
			continue
		}
		for _, d := range Of(fd) {
			if d.Kind == Export {
				out[fd.Name.Name] = struct{}{}
			}
		}
	}
	return out
}
