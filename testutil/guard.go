// Package testutil provides test helpers that enforce the repository's
// import boundaries: plugin packages stay behind the schemaapi facade and
// the public leaf packages stay leaves.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// AssertNoDirectImports parses every non-test .go file directly in dir and
// fails the test when an import path satisfies forbidden. Subdirectories are
// not descended into; call it once per package directory. The reason string
// is appended to the failure message.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	violations, err := importViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("scan imports: %v", err)
	}
	if len(violations) > 0 {
		t.Fatalf("forbidden direct imports (%s):\n%s", reason, strings.Join(violations, "\n"))
	}
}

// AssertNoTransitiveDependency resolves the full dependency set of pattern
// through `go list -deps` and fails the test when any dependency path
// satisfies forbidden.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	out, err := goListDeps(pattern)
	if err != nil {
		t.Fatalf("go list failed: %v\n%s", err, string(out))
	}
	violations := listViolations(out, forbidden)
	if len(violations) > 0 {
		t.Fatalf("forbidden transitive dependency (%s):\n%s", reason, strings.Join(violations, "\n"))
	}
}

// DomainImportForbidden matches the internal domain model package, with or
// without a module version suffix.
func DomainImportForbidden(path string) bool {
	return strings.HasSuffix(path, "/pkg/domain") || strings.Contains(path, "/pkg/domain@")
}

// InternalImportForbidden matches any path under an internal/ tree.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// goListDeps is a seam for tests; production callers shell out.
var goListDeps = func(pattern string) ([]byte, error) {
	cmd := exec.Command("go", "list", "-deps", pattern)
	return cmd.CombinedOutput()
}

func listViolations(out []byte, forbidden func(path string) bool) []string {
	var violations []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if forbidden(line) {
			violations = append(violations, line)
		}
	}
	return violations
}

func importViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var violations []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		parsed, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range parsed.Imports {
			path := strings.Trim(imp.Path.Value, "\"")
			if forbidden(path) {
				violations = append(violations, path+" (in "+name+")")
			}
		}
	}
	return violations, nil
}
