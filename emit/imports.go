// Package emit manages import qualifiers for generated files. Qualifier
// assignment and alias conflicts are delegated to the gopoet import tracker,
// while the import lines a file actually needs are tracked separately, so a
// renderer can reserve packages up front and roll back the imports of an
// abandoned declaration without disturbing the qualifiers already handed out.
package emit

import (
	"fmt"
	"go/types"
	"sort"
	"strings"

	"github.com/jhump/gopoet"
)

// Imports assigns package qualifiers for one generated file and records
// which import lines the file needs.
type Imports struct {
	selfPath string
	imp      *gopoet.Imports
	quals    map[string]string
	pending  map[string]importLine
	lines    []importLine
}

type importLine struct {
	alias string
	path  string
}

// NewImports returns an import tracker for a file generated into the package
// at selfPath. The reserved paths get their qualifiers assigned immediately,
// so no later registration can steal their names, but their import lines
// appear in the block only once actually used.
func NewImports(selfPath string, reserved ...string) *Imports {
	im := &Imports{
		selfPath: selfPath,
		imp:      gopoet.NewImportsFor(selfPath),
		quals:    map[string]string{},
		pending:  map[string]importLine{},
	}
	for _, path := range reserved {
		q := strings.TrimSuffix(im.imp.RegisterImportForPackage(gopoet.NewPackage(path)), ".")
		im.quals[path] = q
		line := importLine{path: path}
		if q != path[strings.LastIndex(path, "/")+1:] {
			line.alias = q
		}
		im.pending[path] = line
	}
	return im
}

// Stdlib returns the qualifier for one of the reserved packages, committing
// its import line.
func (im *Imports) Stdlib(path string) string {
	im.use(path)
	return im.quals[path]
}

func (im *Imports) use(path string) {
	if line, ok := im.pending[path]; ok {
		im.lines = append(im.lines, line)
		delete(im.pending, path)
	}
}

// Mark and Rollback bracket the rendering of one declaration. Rolling back
// parks the imports the abandoned declaration added back in the pending set,
// so the emitted import block only lists packages the surviving code refers
// to while their qualifiers stay stable.
func (im *Imports) Mark() int {
	return len(im.lines)
}

func (im *Imports) Rollback(mark int) {
	for _, line := range im.lines[mark:] {
		im.pending[line.path] = line
	}
	im.lines = im.lines[:mark]
}

// Qualify is a types.Qualifier over the file's imports.
func (im *Imports) Qualify(p *types.Package) string {
	if p == nil || p.Path() == im.selfPath {
		return ""
	}
	if q, ok := im.quals[p.Path()]; ok {
		im.use(p.Path())
		return q
	}
	q := strings.TrimSuffix(im.imp.RegisterImportForPackage(gopoet.PackageForGoType(p)), ".")
	im.quals[p.Path()] = q
	line := importLine{path: p.Path()}
	if q != p.Name() {
		line.alias = q
	}
	im.lines = append(im.lines, line)
	return q
}

// TypeString renders t with the file's qualifiers, registering any imports
// the reference needs.
func (im *Imports) TypeString(t types.Type) string {
	return types.TypeString(t, im.Qualify)
}

// FuncRef renders a reference to a package-level function.
func (im *Imports) FuncRef(fn *types.Func) string {
	if fn.Pkg() == nil || fn.Pkg().Path() == im.selfPath {
		return fn.Name()
	}
	return im.Qualify(fn.Pkg()) + "." + fn.Name()
}

// Block renders the file's import block, path-sorted, or "" when the file
// imports nothing.
func (im *Imports) Block() string {
	if len(im.lines) == 0 {
		return ""
	}
	sorted := append([]importLine(nil), im.lines...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].path < sorted[j].path })
	var sb strings.Builder
	sb.WriteString("import (\n")
	for _, l := range sorted {
		if l.alias != "" {
			fmt.Fprintf(&sb, "\t%s %q\n", l.alias, l.path)
		} else {
			fmt.Fprintf(&sb, "\t%q\n", l.path)
		}
	}
	sb.WriteString(")\n")
	return sb.String()
}
