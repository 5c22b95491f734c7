// Package suppress implements comment-based suppression of failing type
// assertion findings.
package suppress

import (
	"fmt"
	"go/ast"
	"go/token"
	"regexp"
	"strings"
)

// Linter is the rule name suppression comments refer to.
const Linter = "pointsto"

// Checker handles nolint and lint:ignore comment suppression.
type Checker struct {
	// funcs maps function name positions to suppression reasons
	funcs map[token.Pos]string

	// lines maps file and line to the suppression written on that line
	lines map[lineKey]string
}

type lineKey struct {
	file string
	line int
}

// Suppression represents a parsed suppression directive.
type Suppression struct {
	Position token.Pos
	Reason   string
	Type     SuppressionType
}

// SuppressionType represents different types of suppression comments.
type SuppressionType int

const (
	// SuppressionNolint represents //nolint:pointsto comments.
	SuppressionNolint SuppressionType = iota

	// SuppressionLintIgnore represents //lint:ignore pointsto comments.
	SuppressionLintIgnore
)

// Suppression patterns for different comment styles.
var (
	// nolintPattern matches //nolint:pointsto comments
	nolintPattern = regexp.MustCompile(`//\s*nolint:` + Linter + `(?:\s+//\s*(.+))?$`)

	// lintIgnorePattern matches //lint:ignore pointsto comments
	lintIgnorePattern = regexp.MustCompile(`//\s*lint:ignore\s+` + Linter + `(?:\s+(.+))?`)

	// genericNolintPattern matches //nolint comments without specific linter
	genericNolintPattern = regexp.MustCompile(`//\s*nolint(?:\s|$)`)

	// nolintWithMultipleRules matches nolint with multiple comma-separated rules
	nolintWithMultipleRules = regexp.MustCompile(`//\s*nolint:([^/\s]+)`)
)

// NewChecker creates a new suppression checker.
func NewChecker() *Checker {
	return &Checker{
		funcs: make(map[token.Pos]string),
		lines: make(map[lineKey]string),
	}
}

// Load parses suppression comments from AST files. A comment on the line of
// a function declaration, or on the line before it, suppresses every finding
// in the function. Any other comment suppresses findings on its own line and
// on the line after it.
func (sc *Checker) Load(fset *token.FileSet, files []*ast.File) error {
	if fset == nil {
		return fmt.Errorf("fset cannot be nil")
	}
	if files == nil {
		return fmt.Errorf("files cannot be nil")
	}

	for _, file := range files {
		for _, commentGroup := range file.Comments {
			for _, comment := range commentGroup.List {
				s := sc.parseComment(comment)
				if s == nil {
					continue
				}
				pos := fset.Position(comment.Pos())
				sc.lines[lineKey{file: pos.Filename, line: pos.Line}] = reasonOf(s)
			}
		}

		// Functions take the suppression on the line before them or on their own line.
		ast.Inspect(file, func(n ast.Node) bool {
			funcDecl, ok := n.(*ast.FuncDecl)
			if !ok {
				return true
			}
			funcPos := funcDecl.Name.Pos()
			declPos := fset.Position(funcDecl.Pos())
			for _, line := range []int{declPos.Line - 1, declPos.Line} {
				if reason, ok := sc.lines[lineKey{file: declPos.Filename, line: line}]; ok {
					sc.funcs[funcPos] = reason
					break
				}
			}
			return false
		})
	}

	return nil
}

func reasonOf(s *Suppression) string {
	if s.Reason == "" {
		return "suppressed"
	}
	return s.Reason
}

// parseComment parses a comment to check if it's a suppression directive.
func (sc *Checker) parseComment(comment *ast.Comment) *Suppression {
	text := comment.Text

	if matches := nolintPattern.FindStringSubmatch(text); matches != nil {
		return &Suppression{
			Position: comment.Pos(),
			Reason:   strings.TrimSpace(matches[1]),
			Type:     SuppressionNolint,
		}
	}

	if matches := lintIgnorePattern.FindStringSubmatch(text); matches != nil {
		return &Suppression{
			Position: comment.Pos(),
			Reason:   strings.TrimSpace(matches[1]),
			Type:     SuppressionLintIgnore,
		}
	}

	if genericNolintPattern.MatchString(text) {
		return &Suppression{
			Position: comment.Pos(),
			Type:     SuppressionNolint,
		}
	}

	if matches := nolintWithMultipleRules.FindStringSubmatch(text); len(matches) > 1 {
		for rule := range strings.SplitSeq(matches[1], ",") {
			if strings.TrimSpace(rule) != Linter {
				continue
			}
			reason := ""
			if _, after, found := strings.Cut(text[2:], "//"); found {
				reason = strings.TrimSpace(after)
			}
			return &Suppression{
				Position: comment.Pos(),
				Reason:   reason,
				Type:     SuppressionNolint,
			}
		}
	}

	return nil
}

// IsFuncSuppressed checks if the function whose name is at pos is suppressed.
func (sc *Checker) IsFuncSuppressed(pos token.Pos) (bool, string) {
	if reason, exists := sc.funcs[pos]; exists {
		return true, reason
	}
	return false, ""
}

// IsLineSuppressed checks if a finding at pos is suppressed by a comment on
// the same line or on the line before.
func (sc *Checker) IsLineSuppressed(pos token.Position) (bool, string) {
	for _, line := range []int{pos.Line, pos.Line - 1} {
		if reason, exists := sc.lines[lineKey{file: pos.Filename, line: line}]; exists {
			return true, reason
		}
	}
	return false, ""
}

// Clear clears all suppressions.
func (sc *Checker) Clear() {
	sc.funcs = make(map[token.Pos]string)
	sc.lines = make(map[lineKey]string)
}
