// Package assembly finds the Go functions that assembly files of a package
// define or call. Calls from assembly are invisible to SSA, so the functions
// they target are roots of the analysis.
package assembly

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/tools/go/packages"
)

// Symbols lists the package-local symbols referenced by assembly.
type Symbols struct {
	// Defined are functions whose body is written in assembly.
	Defined map[string]struct{}
	// Called are functions that assembly code jumps to or calls.
	Called map[string]struct{}
}

func newSymbols() *Symbols {
	return &Symbols{
		Defined: make(map[string]struct{}),
		Called:  make(map[string]struct{}),
	}
}

// A package-local symbol is written ·name(SB).
var (
	textRE = regexp.MustCompile(`^TEXT\s+·(\w+)(?:<\w+>)?\(SB\)`)
	callRE = regexp.MustCompile(`\b(?:CALL|JMP|BL|B)\s+·(\w+)(?:<\w+>)?\(SB\)`)
)

// Scan reads the .s files of pkg. Only the files selected by the build
// configuration pkg was loaded with are listed in OtherFiles.
func Scan(pkg *packages.Package) (*Symbols, error) {
	syms := newSymbols()
	if pkg == nil {
		return syms, nil
	}
	for _, name := range pkg.OtherFiles {
		if filepath.Ext(name) != ".s" {
			continue
		}
		if err := scanFile(name, syms); err != nil {
			return syms, fmt.Errorf("scanning %s: %w", name, err)
		}
	}
	return syms, nil
}

func scanFile(name string, syms *Symbols) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return scan(f, syms)
}

func scan(r io.Reader, syms *Symbols) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if i := strings.Index(line, "//"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		if m := textRE.FindStringSubmatch(line); m != nil {
			syms.Defined[m[1]] = struct{}{}
		}
		if m := callRE.FindStringSubmatch(line); m != nil {
			syms.Called[m[1]] = struct{}{}
		}
	}
	return sc.Err()
}
