// Package ssa builds the SSA program a points-to run analyzes and selects the
// functions the run starts from.
package ssa

import (
	"fmt"
	"go/types"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/715d/pointsto/pkg/assembly"
	"github.com/715d/pointsto/pkg/directive"
)

const mainPkg = "main"

type Set[T comparable] map[T]struct{}

// Program is a built SSA program together with the packages whose function
// bodies are analyzed. Functions of other packages are treated as opaque.
type Program struct {
	// program is the SSA program representation
	program *ssa.Program

	// ssaPkg maps import paths to SSA packages
	ssaPkg map[string]*ssa.Package

	// packages are the loaded packages
	packages []*packages.Package

	// loaded maps SSA packages back to the packages they were built from
	loaded map[*ssa.Package]*packages.Package

	// targets are the SSA packages of the main module
	targets Set[*ssa.Package]

	entryPoints []*ssa.Function

	// strict mode: when true, only main, init and test functions are entry points
	strict bool
}

// NewProgram builds the SSA program for pkgs and finds its entry points.
func NewProgram(pkgs []*packages.Package, strict bool) (*Program, error) {
	validPkgs := make([]*packages.Package, 0, len(pkgs))
	for _, pkg := range pkgs {
		if pkg == nil {
			continue
		}
		validPkgs = append(validPkgs, pkg)
	}
	if len(validPkgs) == 0 {
		return nil, fmt.Errorf("no valid packages provided")
	}

	p := &Program{
		packages: validPkgs,
		loaded:   make(map[*ssa.Package]*packages.Package, len(validPkgs)),
		targets:  make(Set[*ssa.Package]),
		strict:   strict,
	}
	if err := p.build(); err != nil {
		return nil, fmt.Errorf("build ssa program: %w", err)
	}
	return p, nil
}

// SSA returns the underlying SSA program.
func (p *Program) SSA() *ssa.Program { return p.program }

// EntryPoints returns the functions the analysis starts from, in a
// deterministic order.
func (p *Program) EntryPoints() []*ssa.Function { return p.entryPoints }

// IsTarget reports whether fn's body belongs to the analyzed module. Synthetic
// wrappers and generic instances count as part of the package of the function
// they derive from.
func (p *Program) IsTarget(fn *ssa.Function) bool {
	pkg := fn.Package()
	if pkg == nil {
		if origin := fn.Origin(); origin != nil {
			pkg = origin.Package()
		}
	}
	if pkg == nil {
		if obj, ok := fn.Object().(*types.Func); ok && obj.Pkg() != nil {
			pkg = p.program.Package(obj.Pkg())
		}
	}
	if pkg == nil {
		return false
	}
	_, ok := p.targets[pkg]
	return ok
}

// build constructs the SSA representation with generic instantiation.
func (p *Program) build() error {
	mode := ssa.InstantiateGenerics | ssa.BareInits

	var pkgs []*ssa.Package
	p.program, pkgs = ssautil.AllPackages(p.packages, mode)
	if p.program == nil {
		return fmt.Errorf("SSA program construction failed")
	}
	p.program.Build()

	p.ssaPkg = make(map[string]*ssa.Package, len(pkgs))
	for i, pkg := range pkgs {
		if pkg == nil {
			continue
		}
		p.ssaPkg[pkg.Pkg.Path()] = pkg
		p.loaded[pkg] = p.packages[i]
		if isTargetPackage(p.packages[i]) {
			p.targets[pkg] = struct{}{}
		}
	}

	p.findEntryPoints()
	slog.Debug("built ssa program", "packages", len(pkgs), "targets", len(p.targets), "entry_points", len(p.entryPoints))
	return nil
}

// findEntryPoints collects main, init and test functions of the target
// packages, and the functions called from assembly, cgo or linknamed code.
// Outside strict mode, exported functions and methods of non-main,
// non-internal packages are added as well: they form a public API whose
// callers are not part of the program.
func (p *Program) findEntryPoints() {
	seen := make(Set[*ssa.Function])
	add := func(fn *ssa.Function) {
		if fn == nil || !isConcrete(fn) {
			return
		}
		if _, ok := seen[fn]; ok {
			return
		}
		seen[fn] = struct{}{}
		p.entryPoints = append(p.entryPoints, fn)
	}

	paths := make([]string, 0, len(p.ssaPkg))
	for path, pkg := range p.ssaPkg {
		if _, ok := p.targets[pkg]; ok {
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)

	for _, path := range paths {
		pkg := p.ssaPkg[path]
		isMain := pkg.Pkg.Name() == mainPkg
		isAPI := !p.strict && !isMain && !isInternalPackage(path)

		add(pkg.Func("main"))
		for _, fn := range p.externalFuncs(pkg) {
			add(fn)
		}

		names := make([]string, 0, len(pkg.Members))
		for name := range pkg.Members {
			names = append(names, name)
		}
		slices.Sort(names)

		for _, name := range names {
			switch m := pkg.Members[name].(type) {
			case *ssa.Function:
				if m.Name() == "init" || isTestFunction(m) {
					add(m)
					continue
				}
				if isAPI && m.Object() != nil && m.Object().Exported() {
					add(m)
				}
			case *ssa.Type:
				if !isAPI {
					continue
				}
				named, ok := m.Type().(*types.Named)
				if !ok || named.TypeParams().Len() > 0 {
					continue
				}
				for _, recv := range []types.Type{named, types.NewPointer(named)} {
					mset := p.program.MethodSets.MethodSet(recv)
					for i := range mset.Len() {
						sel := mset.At(i)
						if sel.Obj().Exported() {
							add(p.program.MethodValue(sel))
						}
					}
				}
			}
		}
	}
}

// externalFuncs returns the package-level functions of pkg that are reached
// from code the SSA program does not contain.
func (p *Program) externalFuncs(pkg *ssa.Package) []*ssa.Function {
	lp := p.loaded[pkg]
	if lp == nil {
		return nil
	}
	names := make(Set[string])
	for _, f := range lp.Syntax {
		maps.Copy(names, directive.ExternalFuncs(f))
	}
	syms, err := assembly.Scan(lp)
	if err != nil {
		slog.Warn("skipping assembly callers", "package", lp.PkgPath, "error", err)
	}
	maps.Copy(names, syms.Called)

	var fns []*ssa.Function
	for _, name := range slices.Sorted(maps.Keys(names)) {
		if fn := pkg.Func(name); fn != nil {
			fns = append(fns, fn)
		}
	}
	return fns
}

// isConcrete filters out generic templates: their bodies are analyzed through
// instantiations only.
func isConcrete(fn *ssa.Function) bool {
	return (fn.TypeParams() == nil || fn.Origin() != nil) && len(fn.Blocks) > 0
}

func isTestFunction(fn *ssa.Function) bool {
	name := fn.Name()
	return strings.HasPrefix(name, "Test") ||
		strings.HasPrefix(name, "Benchmark") ||
		strings.HasPrefix(name, "Example")
}

// isInternalPackage checks if a package path is an internal package.
func isInternalPackage(pkgPath string) bool {
	return strings.Contains(pkgPath, "/internal/") ||
		strings.HasSuffix(pkgPath, "/internal") ||
		strings.HasPrefix(pkgPath, "internal/") ||
		pkgPath == "internal"
}
