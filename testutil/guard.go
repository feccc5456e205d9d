// Package testutil holds helpers that keep the layering of the module honest:
// the compiler engine stays free of storage drivers and pkg/domain stays free
// of internal packages.
package testutil

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// Predicate reports whether an import path is forbidden.
type Predicate func(path string) bool

// InternalImportForbidden matches any path containing /internal/.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// InfraImportForbidden matches the concrete blob and persistence drivers.
func InfraImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/infra/") || strings.HasSuffix(path, "/internal/infra")
}

// DriverImportForbidden matches the third-party storage clients.
func DriverImportForbidden(path string) bool {
	for _, prefix := range []string{
		"github.com/jackc/pgx",
		"modernc.org/sqlite",
		"github.com/aws/aws-sdk-go-v2",
	} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Any combines predicates.
func Any(preds ...Predicate) Predicate {
	return func(path string) bool {
		for _, p := range preds {
			if p(path) {
				return true
			}
		}
		return false
	}
}

// AssertNoDirectImports parses the non-test .go files directly inside dir and
// fails if any import matches forbidden. Subdirectories and build tags are
// ignored.
func AssertNoDirectImports(t testing.TB, dir string, forbidden Predicate, reason string) {
	t.Helper()
	viols, err := DirectImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	report(t, "forbidden direct imports", reason, viols)
}

// AssertNoTransitiveDependency loads pattern relative to dir and fails if any
// package in its dependency closure matches forbidden.
func AssertNoTransitiveDependency(t testing.TB, dir, pattern string, forbidden Predicate, reason string) {
	t.Helper()
	viols, err := TransitiveViolations(dir, pattern, forbidden)
	if err != nil {
		t.Fatalf("load %s: %v", pattern, err)
	}
	report(t, "forbidden transitive dependency", reason, viols)
}

// DirectImportViolations lists "import (in file)" for every forbidden import.
func DirectImportViolations(dir string, forbidden Predicate) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range f.Imports {
			ip := strings.Trim(imp.Path.Value, "\"`")
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

// TransitiveViolations lists "dep (via importer)" for every forbidden package
// reachable from pattern. Each dep is reported once.
func TransitiveViolations(dir, pattern string, forbidden Predicate) ([]string, error) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps, Dir: dir}
	roots, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("no packages match %q", pattern)
	}
	seen := map[string]string{}
	var walk func(pkg *packages.Package)
	walk = func(pkg *packages.Package) {
		for path, dep := range pkg.Imports {
			if _, ok := seen[path]; ok {
				continue
			}
			seen[path] = pkg.PkgPath
			walk(dep)
		}
	}
	for _, root := range roots {
		if len(root.Errors) > 0 {
			return nil, fmt.Errorf("%s: %v", root.PkgPath, root.Errors[0])
		}
		walk(root)
	}
	var viols []string
	for path, via := range seen {
		if forbidden(path) {
			viols = append(viols, path+" (via "+via+")")
		}
	}
	sort.Strings(viols)
	return viols, nil
}

type fatalf interface {
	Fatalf(format string, args ...any)
}

func report(t fatalf, what, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("%s (%s):\n%s", what, reason, strings.Join(viols, "\n"))
	}
}
