// Package pointsto loads Go packages and computes the types every parameter,
// result and type assertion operand of their reachable functions may hold.
package pointsto

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"golang.org/x/tools/go/packages"
)

// loadMode requests everything SSA construction needs. NeedTypesInfo is the
// expensive part and cannot be avoided.
const loadMode = packages.NeedDeps |
	packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo |
	packages.NeedModule

// LoaderOptions configures package loading behavior.
type LoaderOptions struct {
	// Packages are the package patterns to load, "./..." when empty.
	Packages []string

	// BuildTags are build tags to apply during loading.
	BuildTags []string

	// Dir is the directory to load packages from.
	// If empty, uses the current working directory.
	Dir string

	// Env is the environment to use for loading; nil inherits the process
	// environment.
	Env []string

	// SkipTests leaves test files out, so tests are not analyzed as entry
	// points.
	SkipTests bool
}

// LoadPackages loads the packages to analyze. Test variants replace the
// packages they extend and the result is sorted by import path.
func LoadPackages(ctx context.Context, opts LoaderOptions) ([]*packages.Package, error) {
	patterns := opts.Packages
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	cfg := &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Tests:   !opts.SkipTests,
		Dir:     opts.Dir,
		Env:     opts.Env,
	}
	if len(opts.BuildTags) > 0 {
		cfg.BuildFlags = []string{"-tags", strings.Join(opts.BuildTags, ",")}
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found matching patterns: %v", patterns)
	}

	// The solver needs complete type information, so any error is fatal.
	var problems []string
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, err := range pkg.Errors {
			problems = append(problems, fmt.Sprintf("package %s: %v", pkg.PkgPath, err))
		}
	})
	if len(problems) > 0 {
		return nil, fmt.Errorf("package errors:\n%s", strings.Join(problems, "\n"))
	}

	return deduplicatePackages(pkgs), nil
}

// deduplicatePackages keeps one package per import path. A test variant
// (an ID with a "[...]" suffix) holds the production files plus the in-package
// tests, so it wins over the plain package. Generated test mains are dropped.
func deduplicatePackages(pkgs []*packages.Package) []*packages.Package {
	best := make(map[string]*packages.Package)
	for _, pkg := range pkgs {
		if strings.HasSuffix(pkg.ID, ".test") && !isTestVariant(pkg) {
			continue
		}
		if existing, ok := best[pkg.PkgPath]; !ok || isSuperset(pkg, existing) {
			best[pkg.PkgPath] = pkg
		}
	}
	return slices.SortedFunc(maps.Values(best), func(a, b *packages.Package) int {
		return cmp.Compare(a.PkgPath, b.PkgPath)
	})
}

// isSuperset reports whether pkg contains every file of existing and more.
func isSuperset(pkg, existing *packages.Package) bool {
	return isTestVariant(pkg) && !isTestVariant(existing)
}

func isTestVariant(pkg *packages.Package) bool {
	return strings.Contains(pkg.ID, "[")
}
