// Command sqllint checks that every inline SQL constant starts with a unique
// "--sql <uuid>" marker so statements can be traced back from query logs.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	sqlKeyword = regexp.MustCompile(`(?i)^\s*(--sql[^\n]*\n\s*)?(select|insert|update|delete|with)\b`)
	markerLine = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

type finding struct {
	pos     token.Position
	name    string
	message string
}

func (f finding) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", f.pos.Filename, f.pos.Line, f.message, f.name)
}

type linter struct {
	fset     *token.FileSet
	markers  map[string]finding
	findings []finding
}

func newLinter() *linter {
	return &linter{fset: token.NewFileSet(), markers: make(map[string]finding)}
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}

	l := newLinter()
	for _, target := range targets {
		if err := l.walk(target); err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(1)
		}
	}
	if len(l.findings) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "sqllint: inline SQL marker problems")
	for _, f := range l.sorted() {
		fmt.Fprintf(os.Stderr, "  %s\n", f)
	}
	os.Exit(1)
}

func (l *linter) walk(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		return l.file(path)
	})
}

func (l *linter) file(path string) error {
	file, err := parser.ParseFile(l.fset, path, nil, parser.SkipObjectResolution)
	if err != nil {
		return err
	}
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.CONST {
			continue
		}
		for _, spec := range gen.Specs {
			vs := spec.(*ast.ValueSpec)
			for i, value := range vs.Values {
				lit := leftmostString(value)
				if lit == nil {
					continue
				}
				name := "_"
				if i < len(vs.Names) {
					name = vs.Names[i].Name
				}
				l.check(name, lit)
			}
		}
	}
	return nil
}

func (l *linter) check(name string, lit *ast.BasicLit) {
	raw, err := strconv.Unquote(lit.Value)
	if err != nil || !sqlKeyword.MatchString(raw) {
		return
	}
	pos := l.fset.Position(lit.Pos())
	marker := firstLine(raw)
	if !markerLine.MatchString(marker) {
		l.findings = append(l.findings, finding{pos: pos, name: name, message: "missing or invalid --sql <uuid> marker"})
		return
	}
	if prev, dup := l.markers[marker]; dup {
		l.findings = append(l.findings, finding{pos: pos, name: name, message: "marker already used by " + prev.name})
		return
	}
	l.markers[marker] = finding{pos: pos, name: name}
}

func (l *linter) sorted() []finding {
	out := append([]finding(nil), l.findings...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].pos.Filename != out[j].pos.Filename {
			return out[i].pos.Filename < out[j].pos.Filename
		}
		return out[i].pos.Line < out[j].pos.Line
	})
	return out
}

// leftmostString returns the literal a concatenated constant starts with.
func leftmostString(expr ast.Expr) *ast.BasicLit {
	for {
		switch e := expr.(type) {
		case *ast.BasicLit:
			if e.Kind != token.STRING {
				return nil
			}
			return e
		case *ast.BinaryExpr:
			if e.Op != token.ADD {
				return nil
			}
			expr = e.X
		case *ast.ParenExpr:
			expr = e.X
		default:
			return nil
		}
	}
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}
