package ssa

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	gotypes "go/types"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
)

// checkPackage parses and type checks code into a package suitable for SSA
// construction.
func checkPackage(t *testing.T, path, code string, deps ...*packages.Package) *packages.Package {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "test.go", code, parser.ParseComments)
	require.NoError(t, err)

	pkg := &packages.Package{
		ID:         path,
		Name:       file.Name.Name,
		PkgPath:    path,
		Syntax:     []*ast.File{file},
		Fset:       fset,
		TypesSizes: gotypes.SizesFor("gc", "amd64"),
	}
	imports := make(map[string]*packages.Package, len(deps))
	for _, dep := range deps {
		imports[dep.PkgPath] = dep
	}
	pkg.Imports = imports
	conf := gotypes.Config{Importer: importerFunc(func(path string) (*gotypes.Package, error) {
		if dep, ok := imports[path]; ok {
			return dep.Types, nil
		}
		return importer.Default().Import(path)
	})}
	info := &gotypes.Info{
		Types:        make(map[ast.Expr]gotypes.TypeAndValue),
		Defs:         make(map[*ast.Ident]gotypes.Object),
		Uses:         make(map[*ast.Ident]gotypes.Object),
		Selections:   make(map[*ast.SelectorExpr]*gotypes.Selection),
		Implicits:    make(map[ast.Node]gotypes.Object),
		Instances:    make(map[*ast.Ident]gotypes.Instance),
		Scopes:       make(map[ast.Node]*gotypes.Scope),
		FileVersions: make(map[*ast.File]string),
	}
	pkg.TypesInfo = info
	pkg.Types, err = conf.Check(path, fset, []*ast.File{file}, info)
	require.NoError(t, err)
	return pkg
}

type importerFunc func(path string) (*gotypes.Package, error)

func (f importerFunc) Import(path string) (*gotypes.Package, error) { return f(path) }

func TestNewProgram(t *testing.T) {
	tests := []struct {
		name        string
		setupPkgs   func(t *testing.T) []*packages.Package
		expectError bool
	}{
		{
			name: "valid package",
			setupPkgs: func(t *testing.T) []*packages.Package {
				return []*packages.Package{checkPackage(t, "example.com/app", "package main\n\nfunc main() {}\n")}
			},
		},
		{
			name:        "empty package slice",
			setupPkgs:   func(*testing.T) []*packages.Package { return nil },
			expectError: true,
		},
		{
			name:        "nil package in slice",
			setupPkgs:   func(*testing.T) []*packages.Package { return []*packages.Package{nil} },
			expectError: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := NewProgram(tt.setupPkgs(t), false)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, prog.SSA())
		})
	}
}

func TestEntryPoints(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		code     string
		strict   bool
		expected []string
	}{
		{
			name: "main package",
			path: "example.com/app",
			code: `package main

func helper() {}

func Exported() {}

func init() { helper() }

func main() { Exported() }
`,
			expected: []string{"main", "init"},
		},
		{
			name: "library package exposes exported API",
			path: "example.com/lib",
			code: `package lib

type Store struct{}

func (s *Store) Get() int { return 0 }

func (s *Store) reset() {}

func New() *Store { return &Store{} }

func TestNew() {}

func helper() {}
`,
			expected: []string{"init", "New", "TestNew", "Get"},
		},
		{
			name:   "strict mode keeps only roots",
			path:   "example.com/lib",
			strict: true,
			code: `package lib

func New() int { return 0 }

func TestNew() {}
`,
			expected: []string{"init", "TestNew"},
		},
		{
			name:   "exported to C and linknamed functions are roots",
			path:   "example.com/lib",
			strict: true,
			code: `package lib

//export OnEvent
func OnEvent() {}

//go:linkname hook
func hook() {}

func unused() {}
`,
			expected: []string{"init", "OnEvent", "hook"},
		},
		{
			name: "internal package has no API roots",
			path: "example.com/internal/lib",
			code: `package lib

func New() int { return 0 }
`,
			expected: []string{"init"},
		},
		{
			name: "generic templates are skipped",
			path: "example.com/lib",
			code: `package lib

func Map[T any](xs []T) []T { return xs }

func Ints() []int { return Map([]int{1}) }
`,
			expected: []string{"init", "Ints"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := NewProgram([]*packages.Package{checkPackage(t, tt.path, tt.code)}, tt.strict)
			require.NoError(t, err)

			var names []string
			for _, fn := range prog.EntryPoints() {
				names = append(names, fn.Name())
				require.True(t, prog.IsTarget(fn), "entry point %s must be a target", fn)
			}
			require.ElementsMatch(t, tt.expected, names)
		})
	}
}

func TestIsTarget(t *testing.T) {
	dep := checkPackage(t, "example.com/dep", `package dep

func Upper(s string) string { return s }
`)
	dep.Module = &packages.Module{Path: "example.com/dep"}
	pkg := checkPackage(t, "example.com/app", `package main

import "example.com/dep"

type Box[T any] struct{ v T }

func (b *Box[T]) Get() T { return b.v }

func main() {
	b := &Box[int]{v: 1}
	_ = b.Get()
	_ = dep.Upper("x")
}
`, dep)
	prog, err := NewProgram([]*packages.Package{pkg, dep}, true)
	require.NoError(t, err)

	main := prog.EntryPoints()[0]
	require.Equal(t, "main", main.Name())

	var callees []*ssa.Function
	for _, b := range main.Blocks {
		for _, instr := range b.Instrs {
			if call, ok := instr.(*ssa.Call); ok {
				if fn := call.Call.StaticCallee(); fn != nil {
					callees = append(callees, fn)
				}
			}
		}
	}
	require.Len(t, callees, 2)
	require.True(t, prog.IsTarget(callees[0]), "generic instance %s", callees[0])
	require.NotNil(t, callees[0].Origin())
	require.False(t, prog.IsTarget(callees[1]), "dependency function %s", callees[1])
}
