package pointsto

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"
)

func TestDeduplicatePackages(t *testing.T) {
	tests := []struct {
		name     string
		input    []*packages.Package
		expected []string // IDs after deduplication
	}{
		{
			name: "regular_and_test_variant",
			input: []*packages.Package{
				{PkgPath: "example.com/pkg", ID: "example.com/pkg"},
				{PkgPath: "example.com/pkg", ID: "example.com/pkg [example.com/pkg.test]"},
			},
			expected: []string{"example.com/pkg [example.com/pkg.test]"},
		},
		{
			name: "test_variant_first",
			input: []*packages.Package{
				{PkgPath: "example.com/pkg", ID: "example.com/pkg [example.com/pkg.test]"},
				{PkgPath: "example.com/pkg", ID: "example.com/pkg"},
			},
			expected: []string{"example.com/pkg [example.com/pkg.test]"},
		},
		{
			name: "test_binary_filtered",
			input: []*packages.Package{
				{PkgPath: "example.com/pkg", ID: "example.com/pkg"},
				{PkgPath: "example.com/pkg.test", ID: "example.com/pkg.test"},
			},
			expected: []string{"example.com/pkg"},
		},
		{
			name: "external_test_package",
			input: []*packages.Package{
				{PkgPath: "example.com/pkg_test", ID: "example.com/pkg_test [example.com/pkg.test]"},
				{PkgPath: "example.com/pkg", ID: "example.com/pkg"},
			},
			expected: []string{"example.com/pkg", "example.com/pkg_test [example.com/pkg.test]"},
		},
		{
			name: "sorted_by_path",
			input: []*packages.Package{
				{PkgPath: "example.com/z", ID: "example.com/z"},
				{PkgPath: "example.com/a", ID: "example.com/a"},
				{PkgPath: "example.com/m", ID: "example.com/m"},
			},
			expected: []string{"example.com/a", "example.com/m", "example.com/z"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ids []string
			for _, pkg := range deduplicatePackages(tt.input) {
				ids = append(ids, pkg.ID)
			}
			require.Equal(t, tt.expected, ids)
		})
	}
}

func TestIsSuperset(t *testing.T) {
	tests := []struct {
		name     string
		pkg      string
		existing string
		expected bool
	}{
		{name: "test_is_superset_of_regular", pkg: "pkg [pkg.test]", existing: "pkg", expected: true},
		{name: "regular_not_superset_of_test", pkg: "pkg", existing: "pkg [pkg.test]", expected: false},
		{name: "both_regular_not_superset", pkg: "pkg", existing: "pkg", expected: false},
		{name: "both_test_not_superset", pkg: "pkg [pkg.test]", existing: "pkg [pkg.test]", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isSuperset(&packages.Package{ID: tt.pkg}, &packages.Package{ID: tt.existing})
			require.Equal(t, tt.expected, got)
		})
	}
}

func TestLoadPackages(t *testing.T) {
	if testing.Short() {
		t.Skip("loads packages with the go command")
	}
	dir := writeModule(t, map[string]string{
		"main.go": "package main\n\nfunc main() {}\n",
	})

	pkgs, err := LoadPackages(context.Background(), LoaderOptions{Dir: dir})
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	require.Equal(t, "example.com/load", pkgs[0].PkgPath)
	require.NotNil(t, pkgs[0].Module)
	require.True(t, pkgs[0].Module.Main)
}

func TestLoadPackages_Errors(t *testing.T) {
	if testing.Short() {
		t.Skip("loads packages with the go command")
	}
	dir := writeModule(t, map[string]string{
		"main.go": "package main\n\nfunc main() { undefined() }\n",
	})

	_, err := LoadPackages(context.Background(), LoaderOptions{Dir: dir})
	require.ErrorContains(t, err, "package errors")
}

func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files["go.mod"] = "module example.com/load\n\ngo 1.24\n"
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}
