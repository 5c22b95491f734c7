package pointsto

import (
	"context"
	"fmt"
	"go/ast"
	"go/token"
	"log/slog"

	"golang.org/x/tools/go/packages"

	"github.com/715d/pointsto/internal/analysis"
	"github.com/715d/pointsto/internal/flow"
	"github.com/715d/pointsto/pkg/ssa"
	"github.com/715d/pointsto/pkg/suppress"
	"github.com/715d/pointsto/pkg/typestate"
)

// AnalyzerOptions holds configuration options for the analyzer.
type AnalyzerOptions struct {
	// Options are the engine parameters; the zero value means
	// typestate.DefaultOptions.
	Options typestate.Options

	// MaxRounds bounds the propagation rounds, see flow.Config.
	MaxRounds int

	// Workers bounds the functions analyzed concurrently.
	Workers int

	// Strict limits entry points to main, init and test functions. Otherwise
	// exported functions and methods of library packages are roots too.
	Strict bool
}

// Analyzer orchestrates SSA construction and type state propagation.
type Analyzer struct {
	suppressions *suppress.Checker
	nameCache    *analysis.NameCache
	opts         AnalyzerOptions
}

// NewAnalyzer creates a new analyzer with the given options.
func NewAnalyzer(opts AnalyzerOptions) *Analyzer {
	if opts.Options == (typestate.Options{}) {
		opts.Options = typestate.DefaultOptions()
	}
	return &Analyzer{
		suppressions: suppress.NewChecker(),
		nameCache:    analysis.NewNameCache(),
		opts:         opts,
	}
}

// Analyze runs the points-to analysis over pkgs. Only functions declared in
// the main module are analyzed; calls into dependencies and the standard
// library are summarized by their signatures.
func (a *Analyzer) Analyze(ctx context.Context, pkgs []*packages.Package) (*Report, error) {
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages provided")
	}

	if err := a.loadSuppressions(pkgs); err != nil {
		return nil, fmt.Errorf("failed to load suppressions: %w", err)
	}

	prog, err := ssa.NewProgram(pkgs, a.opts.Strict)
	if err != nil {
		return nil, fmt.Errorf("create SSA program: %w", err)
	}

	u, err := typestate.NewUniverse(a.opts.Options)
	if err != nil {
		return nil, fmt.Errorf("create universe: %w", err)
	}

	entries := prog.EntryPoints()
	slog.Debug("starting analysis",
		"packages", len(pkgs),
		"entry_points", len(entries),
		"context_sensitive", a.opts.Options.AllocationSiteSensitiveHeap)

	solver := flow.NewSolver(prog.SSA(), typestate.NewPolicy(u), a.nameCache, flow.Config{
		MaxRounds: a.opts.MaxRounds,
		Workers:   a.opts.Workers,
		IsTarget:  prog.IsTarget,
	})
	res, err := solver.Solve(ctx, entries)
	if err != nil {
		return nil, fmt.Errorf("propagating type states: %w", err)
	}

	return a.report(res), nil
}

// loadSuppressions loads suppression comments from all files in the given packages.
func (a *Analyzer) loadSuppressions(pkgs []*packages.Package) error {
	a.suppressions.Clear()

	var files []*ast.File
	var fset *token.FileSet
	for _, pkg := range pkgs {
		if pkg == nil {
			continue
		}
		if pkg.Fset != nil {
			fset = pkg.Fset
		}
		for _, file := range pkg.Syntax {
			if file != nil {
				files = append(files, file)
			}
		}
	}

	if fset == nil || len(files) == 0 {
		return nil
	}
	return a.suppressions.Load(fset, files)
}

func (a *Analyzer) report(res *flow.Result) *Report {
	r := &Report{Stats: res.Stats, Options: a.opts.Options}
	for _, fi := range res.Funcs {
		if !fi.ShouldReport() {
			continue
		}
		fr := FunctionReport{
			Name:      fi.Name,
			Package:   fi.Package,
			Position:  fi.Position,
			Recursive: fi.Recursive,
			Closure:   fi.IsClosure(),
			Params:    a.values(fi.Params),
			Results:   a.values(fi.Results),
		}
		for _, ctx := range fi.Contexts {
			fr.Contexts = append(fr.Contexts, ctx.String())
		}

		funcSuppressed, funcReason := a.suppressions.IsFuncSuppressed(declPos(fi))
		for _, fa := range fi.FailedAssertions {
			ar := AssertionReport{
				Position: fa.Position,
				Asserted: fa.Asserted,
				Failing:  analysis.ValueInfo{State: fa.Failing}.TypeNames(),
			}
			if funcSuppressed {
				ar.Suppressed, ar.Reason = true, funcReason
			} else {
				ar.Suppressed, ar.Reason = a.suppressions.IsLineSuppressed(fa.Position)
			}
			fr.FailedAssertions = append(fr.FailedAssertions, ar)
		}
		r.Functions = append(r.Functions, fr)
	}
	return r
}

func (a *Analyzer) values(vs []analysis.ValueInfo) []ValueReport {
	out := make([]ValueReport, 0, len(vs))
	for _, v := range vs {
		out = append(out, ValueReport{
			Name:      v.Name,
			Type:      a.nameCache.TypeName(v.Type),
			Types:     v.TypeNames(),
			Objects:   v.State.ObjectsCount(),
			CanBeNull: v.State.CanBeNull(),
			Merged:    v.State.IsMerged(),
		})
	}
	return out
}

// declPos returns the position of the name of the declaration enclosing fi.
// Closures and generic instances resolve to their declared function.
func declPos(fi *analysis.FuncInfo) token.Pos {
	fn := fi.Function
	for fn.Parent() != nil {
		fn = fn.Parent()
	}
	if origin := fn.Origin(); origin != nil {
		fn = origin
	}
	if obj := fn.Object(); obj != nil {
		return obj.Pos()
	}
	return token.NoPos
}
