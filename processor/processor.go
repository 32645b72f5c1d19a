package processor

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"text/scanner"
	"unicode"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"

	"github.com/autogo-dev/autogo"
	"github.com/autogo-dev/autogo/parser"
)

var (
	emptyInterface = types.NewInterfaceType(nil, nil).Complete()
	emptyStruct    = types.NewStruct(nil, nil)

	autogoPkgPath string

	anyTypePkg, anyTypeName, selfTypePkg, selfTypeName string
	typeRefPkg, typeRefName                            string
	requiredPkg, requiredName, defaultPkg, defaultName string

	annoTypeForAnnotation, annoTypeForRequired, annoTypeForDefault annoType
)

func init() {
	f := func(rt reflect.Type) (string, string) {
		return rt.PkgPath(), rt.Name()
	}

	annotationPkg, annotationName := f(reflect.TypeOf(autogo.Annotation{}))
	autogoPkgPath = annotationPkg
	annoTypeForAnnotation = annoType{packagePath: annotationPkg, name: annotationName}

	requiredPkg, requiredName = f(reflect.TypeOf(autogo.Required(false)))
	defaultPkg, defaultName = f(reflect.TypeOf(autogo.DefaultValue{}))
	annoTypeForRequired = annoType{packagePath: requiredPkg, name: requiredName}
	annoTypeForDefault = annoType{packagePath: defaultPkg, name: defaultName}

	anyTypePkg, anyTypeName = f(reflect.TypeOf((*autogo.AnyType)(nil)).Elem())
	selfTypePkg, selfTypeName = f(reflect.TypeOf((*autogo.SelfType)(nil)).Elem())
	typeRefPkg, typeRefName = f(reflect.TypeOf((*autogo.TypeRef)(nil)).Elem())
}

var log = zap.NewNop().Sugar()

// SetLogger replaces the logger used by this package and by the processors
// built on it. The default logger discards everything.
func SetLogger(l *zap.SugaredLogger) {
	log = l
}

// Log returns the logger currently in use by this package. Processor
// implementations report progress through it.
func Log() *zap.SugaredLogger {
	return log
}

// ErrorWithPosition is an error that has source position information associated
// with it. The position indicates the location in a source file where the error
// was encountered.
type ErrorWithPosition struct {
	err error
	pos token.Position
}

// Error implements the error interface. It includes position information in the
// returned message.
func (e *ErrorWithPosition) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.pos.Filename, e.pos.Line, e.pos.Column, e.err.Error())
}

// Underlying returns the underlying error.
func (e *ErrorWithPosition) Underlying() error {
	return e.err
}

// Unwrap returns the underlying error, allowing errors.Is and errors.As to
// see through the position wrapper.
func (e *ErrorWithPosition) Unwrap() error {
	return e.err
}

// Pos returns the location in source where the underlying error was
// encountered.
func (e *ErrorWithPosition) Pos() token.Position {
	return e.pos
}

// NewErrorWithPosition returns the given error, but associates it with the
// given source code location.
func NewErrorWithPosition(pos token.Position, err error) *ErrorWithPosition {
	return &ErrorWithPosition{err: err, pos: pos}
}

// OutputFactory is a function that creates a writer for a generated file. The
// package being processed determines the destination directory; filename is
// the base name of the file to create. Output factories typically use
// os.OpenFile, but this function allows the behavior to be customized, such
// as writing outputs to an in-memory filesystem in tests.
type OutputFactory func(pkg *packages.Package, filename string) (io.WriteCloser, error)

// Processor is a function that acts on annotations and is invoked from the
// annotation processor tool. Typical processor implementations generate code
// based on the annotations present in source.
type Processor func(ctx *Context, output OutputFactory) error

// ProcessAll invokes all registered Processor instances to process the given
// packages. If the given outputDir is blank, generated files are written next
// to the sources of the package they were generated from.
func ProcessAll(pkgPaths []string, includeTest bool, outputDir string) error {
	return Process(pkgPaths, includeTest, outputDir, AllRegisteredProcessors()...)
}

// Process invokes the given processors to process the given packages. It
// returns an error if the packages cannot be loaded or outputs cannot be
// written, or an error summarizing the diagnostics if any annotations were
// invalid.
func Process(pkgPaths []string, includeTest bool, outputDir string, procs ...Processor) error {
	cfg := Config{
		Packages:      pkgPaths,
		IncludeTests:  includeTest,
		Processors:    procs,
		OutputFactory: DefaultOutputFactory(outputDir),
		Reporter:      NewReporter(),
	}
	if err := cfg.Execute(); err != nil {
		return err
	}
	return cfg.Reporter.Err()
}

// DefaultOutputFactory returns the default OutputFactory used by Process and
// ProcessAll. If the given rootDir is blank, each generated file is written
// to the directory that contains the sources of the package it was generated
// for. Otherwise the destination is <rootDir>/<import path>, which is created
// if it does not already exist.
//
// After computing the destination, os.OpenFile is used to open the file for
// writing (creating the file if necessary, truncating it if it already
// exists).
func DefaultOutputFactory(rootDir string) OutputFactory {
	return func(pkg *packages.Package, filename string) (io.WriteCloser, error) {
		var dest string
		if rootDir == "" {
			dir, err := packageDir(pkg)
			if err != nil {
				return nil, err
			}
			dest = dir
		} else {
			dest = filepath.Join(rootDir, filepath.FromSlash(pkg.PkgPath))
			if err := os.MkdirAll(dest, 0755); err != nil {
				return nil, errors.Wrapf(err, "could not create output directory %s", dest)
			}
		}
		dest = filepath.Join(dest, filename)
		log.Debugf("writing %s", dest)
		return os.OpenFile(dest, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0666)
	}
}

func packageDir(pkg *packages.Package) (string, error) {
	files := pkg.GoFiles
	if len(files) == 0 {
		files = pkg.CompiledGoFiles
	}
	if len(files) == 0 {
		return "", errors.Newf("could not determine source directory for package %s", pkg.PkgPath)
	}
	return filepath.Dir(files[0]), nil
}

// Config represents the configuration for running one or more Processors.
// Callers should configure the exported fields and then call the Execute
// method to actually invoke the processors.
type Config struct {
	// Packages lists the packages to load and process, in the same pattern
	// syntax accepted by the go tool (import paths or "./..." patterns).
	Packages []string
	// IncludeTests indicates whether annotations in the packages' test
	// sources are processed as well.
	IncludeTests bool
	// Dir is the directory from which packages are loaded. If blank, the
	// current working directory is used.
	Dir string
	// Processors are invoked, in order, for each processed package.
	Processors []Processor
	// OutputFactory creates writers for generated files. If nil, the factory
	// returned by DefaultOutputFactory("") is used.
	OutputFactory OutputFactory
	// Reporter accumulates the diagnostics emitted while processing. If nil,
	// a new reporter is created when Execute is called.
	Reporter *Reporter
}

// Execute loads the configured packages and invokes the configured processors
// for each one. The returned error indicates an infrastructure failure, such
// as packages that could not be loaded at all or outputs that could not be
// written. Problems with the annotations themselves do not stop processing of
// other elements and packages; they accumulate in the Reporter, whose Err
// method folds them into a single error.
func (cfg *Config) Execute() error {
	if cfg.Reporter == nil {
		cfg.Reporter = NewReporter()
	}
	if cfg.OutputFactory == nil {
		cfg.OutputFactory = DefaultOutputFactory("")
	}

	fset := token.NewFileSet()
	pkgs, err := packages.Load(loadConfig(fset, cfg.Dir, cfg.IncludeTests), cfg.Packages...)
	if err != nil {
		return errors.Wrap(err, "loading packages")
	}
	pkgs = initialPackages(pkgs)

	pool := map[*types.Package]*Context{}
	index := map[string]*packages.Package{}
	metadata := map[*types.TypeName]*AnnotationMetadata{}
	for _, pkg := range pkgs {
		index[pkg.PkgPath] = pkg
	}
	for _, pkg := range pkgs {
		registerImports(index, pkg)
	}

	for _, pkg := range pkgs {
		if len(pkg.Errors) > 0 {
			for _, pkgErr := range pkg.Errors {
				cfg.Reporter.Errorf(packagesErrorPos(pkgErr), "%s", pkgErr.Msg)
			}
			continue
		}
		ctx := pool[pkg.Types]
		if ctx == nil {
			ctx = newContext(pkg, fset, cfg.Reporter, pool, index, metadata)
		}
		ctx.computeAllAnnotations()
		log.Debugf("processing package %s: %d annotated elements", pkg.PkgPath, ctx.NumElements())
		for _, proc := range cfg.Processors {
			if err := proc(ctx, cfg.OutputFactory); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadConfig(fset *token.FileSet, dir string, tests bool) *packages.Config {
	return &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedDeps | packages.NeedTypes |
			packages.NeedSyntax | packages.NeedTypesInfo,
		Fset:  fset,
		Tests: tests,
		Dir:   dir,
	}
}

// initialPackages filters loaded roots down to the set worth processing. When
// tests are requested, the same import path can appear multiple times: the
// plain package, the package recompiled with its test files, and the
// synthesized test binary. The variant that includes test files supersedes
// the plain one, and the test binary is never interesting.
func initialPackages(pkgs []*packages.Package) []*packages.Package {
	byPath := map[string]int{}
	var result []*packages.Package
	for _, pkg := range pkgs {
		if strings.HasSuffix(pkg.ID, ".test") {
			continue
		}
		if i, ok := byPath[pkg.PkgPath]; ok {
			if len(pkg.Syntax) > len(result[i].Syntax) {
				result[i] = pkg
			}
			continue
		}
		byPath[pkg.PkgPath] = len(result)
		result = append(result, pkg)
	}
	return result
}

// registerImports records the transitive imports of pkg in the package index.
// Paths already present are left alone, so roots registered ahead of time win
// over the plain variants of themselves that show up in import graphs when
// tests are loaded.
func registerImports(index map[string]*packages.Package, pkg *packages.Package) {
	seen := map[*packages.Package]bool{}
	var walk func(p *packages.Package)
	walk = func(p *packages.Package) {
		if seen[p] {
			return
		}
		seen[p] = true
		if _, ok := index[p.PkgPath]; !ok {
			index[p.PkgPath] = p
		}
		for _, imp := range p.Imports {
			walk(imp)
		}
	}
	walk(pkg)
}

// packagesErrorPos recovers a token.Position from the stringified position
// carried by a packages.Error. The position may be empty, "-", "file",
// "file:line", or "file:line:col"; the filename itself may contain colons.
func packagesErrorPos(e packages.Error) token.Position {
	var pos token.Position
	s := e.Pos
	if s == "" || s == "-" {
		return pos
	}
	parts := strings.Split(s, ":")
	n := len(parts)
	if n > 2 {
		if col, err := strconv.Atoi(parts[n-1]); err == nil {
			if line, err := strconv.Atoi(parts[n-2]); err == nil {
				pos.Filename = strings.Join(parts[:n-2], ":")
				pos.Line = line
				pos.Column = col
				return pos
			}
		}
	}
	if n > 1 {
		if line, err := strconv.Atoi(parts[n-1]); err == nil {
			pos.Filename = strings.Join(parts[:n-1], ":")
			pos.Line = line
			return pos
		}
	}
	pos.Filename = s
	return pos
}

// Context represents the environment for an annotation processor. It represents
// a single package (for which the processors were invoked). It provides access
// to all annotations and annotated elements encountered in the package.
type Context struct {
	// Package holds all information about the package being processed. It
	// provides access to the ASTs of files in the package as well as the
	// results of type analysis, to allow for introspection of package elements.
	Package *packages.Package

	// Fset resolves source positions for the package and everything loaded
	// alongside it, including its transitive dependencies.
	Fset *token.FileSet

	// Reporter accumulates the diagnostics produced while computing
	// annotations and running processors against this package.
	Reporter *Reporter

	allContexts map[*types.Package]*Context
	allPackages map[string]*packages.Package
	metadata    map[*types.TypeName]*AnnotationMetadata

	allElements []*AnnotatedElement
	// AllElementsByObject is a map of all elements in the package (represented
	// by types.Object instances) that have annotations to a corresponding
	// AnnotatedElement structure.
	//
	// Also see methods Context.NumElements, Context.GetElement, and
	// Context.ElementsOfType.
	AllElementsByObject map[types.Object]*AnnotatedElement
	// AllAnnotationTypes indicates the names of all annotation types found in
	// the package's sources. The map is keyed by package import path, with the
	// values being slices of unqualified names of annotation types in that
	// package.
	AllAnnotationTypes map[string][]string
	byType             map[autogo.ElementType][]*AnnotatedElement
	byAnnotation       map[annoType][]*AnnotatedElement
	processed          map[*ast.CommentGroup]struct{}
}

func newContext(pkg *packages.Package, fset *token.FileSet, rep *Reporter, pool map[*types.Package]*Context, index map[string]*packages.Package, metadata map[*types.TypeName]*AnnotationMetadata) *Context {
	ctx := &Context{
		Package:             pkg,
		Fset:                fset,
		Reporter:            rep,
		AllElementsByObject: map[types.Object]*AnnotatedElement{},
		AllAnnotationTypes:  map[string][]string{},
		byType:              map[autogo.ElementType][]*AnnotatedElement{},
		byAnnotation:        map[annoType][]*AnnotatedElement{},
		allContexts:         pool,
		allPackages:         index,
		metadata:            metadata,
		processed:           map[*ast.CommentGroup]struct{}{},
	}
	pool[pkg.Types] = ctx
	return ctx
}

// NewContext creates a context for a single already-loaded package and
// computes its annotations. Most callers use Process or a Config, which load
// packages themselves; this is for tools that already have a loaded
// *packages.Package in hand. If rep is nil, a new reporter is created.
func NewContext(pkg *packages.Package, rep *Reporter) *Context {
	if rep == nil {
		rep = NewReporter()
	}
	fset := pkg.Fset
	if fset == nil {
		fset = token.NewFileSet()
	}
	index := map[string]*packages.Package{}
	registerImports(index, pkg)
	ctx := newContext(pkg, fset, rep, map[*types.Package]*Context{}, index, map[*types.TypeName]*AnnotationMetadata{})
	ctx.computeAllAnnotations()
	return ctx
}

// contextFor returns the context responsible for the given package, creating
// one that shares this context's caches if none exists yet. Shared caches
// mean metadata reached through cross-package annotation references is
// computed at most once per run.
func (c *Context) contextFor(pkg *packages.Package) *Context {
	if pkg.Types == c.Package.Types {
		return c
	}
	ctx := c.allContexts[pkg.Types]
	if ctx == nil {
		ctx = newContext(pkg, c.Fset, c.Reporter, c.allContexts, c.allPackages, c.metadata)
	}
	return ctx
}

// packageFor maps a type-checker package back to the loaded package that
// carries its syntax. Test variants share an import path with the plain
// package but have distinct types.Package instances, so identity is checked
// before falling back to the path index.
func (c *Context) packageFor(p *types.Package) *packages.Package {
	if c.Package.Types == p {
		return c.Package
	}
	if pkg := c.allPackages[p.Path()]; pkg != nil && pkg.Types == p {
		return pkg
	}
	for _, pkg := range c.allPackages {
		if pkg.Types == p {
			return pkg
		}
	}
	return c.allPackages[p.Path()]
}

// LookupPackage returns the loaded package with the given import path, or nil
// if it is neither being processed nor a dependency of anything processed.
func (c *Context) LookupPackage(path string) *packages.Package {
	return c.allPackages[path]
}

// GetMetadata returns annotation metadata for the given annotation type. If
// the given type's package has not yet been loaded (possible if the requested
// annotation type is not in the transitive dependencies of the context's
// package), it is loaded and processed.
func (c *Context) GetMetadata(packagePath, name string) (*AnnotationMetadata, error) {
	pkg := c.allPackages[packagePath]
	if pkg == nil {
		// If we don't know about this package, load it.
		log.Debugf("loading package %s for annotation metadata", packagePath)
		loaded, err := packages.Load(loadConfig(c.Fset, "", false), packagePath)
		if err != nil {
			return nil, errors.Wrapf(err, "could not load package %s", packagePath)
		}
		if len(loaded) == 0 || len(loaded[0].Errors) > 0 {
			return nil, errors.Newf("could not load package %s", packagePath)
		}
		pkg = loaded[0]
		registerImports(c.allPackages, pkg)
	}

	obj := pkg.Types.Scope().Lookup(name)
	if obj == nil {
		return nil, errors.Newf("no such symbol %s in package %s", name, packagePath)
	}
	t, ok := obj.(*types.TypeName)
	if !ok {
		return nil, errors.Newf("%s.%s is not a type", packagePath, name)
	}

	return c.getMetadata(t, pkg, parser.Identifier{PackageAlias: packagePath, Name: name})
}

// GetMetadataForTypeName returns annotation metadata for the given annotation
// type. If the given type's package has not yet been loaded (possible if the
// requested annotation type is not in the transitive dependencies of the
// context's package), it is loaded and processed.
func (c *Context) GetMetadataForTypeName(t *types.TypeName) (*AnnotationMetadata, error) {
	if meta, ok := c.metadata[t]; ok {
		return meta, nil
	}
	pkg := c.packageFor(t.Pkg())
	if pkg == nil {
		return c.GetMetadata(t.Pkg().Path(), t.Name())
	}
	return c.getMetadata(t, pkg, parser.Identifier{PackageAlias: t.Pkg().Path(), Name: t.Name()})
}

// NumElements returns the number of annotated elements for the context's
// package.
//
// Note that only packages configured to be processed will have a non-zero
// number of elements. Other packages (such as dependencies of those being
// processed), may actually have annotations therein, but since they will not
// have been processed, the context will not include them.
func (c *Context) NumElements() int {
	return len(c.allElements)
}

// GetElement returns the annotation element at the given index. The given index
// must be greater than or equal to zero and less than c.NumElements().
//
// Note that only packages configured to be processed will have a non-zero
// number of elements. Other packages (such as dependencies of those being
// processed), may actually have annotations therein, but since they will not
// have been processed, the context will not include them.
func (c *Context) GetElement(index int) *AnnotatedElement {
	return c.allElements[index]
}

// ElementsOfType returns a slice of annotated elements of the given type.
//
// Note that only packages configured to be processed will have a non-zero
// number of elements. Other packages (such as dependencies of those being
// processed), may actually have annotations therein, but since they will not
// have been processed, the context will not include them.
func (c *Context) ElementsOfType(t autogo.ElementType) []*AnnotatedElement {
	return c.byType[t]
}

// ElementsAnnotatedWith returns a slice of elements that have been annotated
// with the given annotation type.
//
// Note that only packages configured to be processed will have a non-zero
// number of elements. Other packages (such as dependencies of those being
// processed), may actually have annotations therein, but since they will not
// have been processed, the context will not include them.
func (c *Context) ElementsAnnotatedWith(packagePath, typeName string) []*AnnotatedElement {
	return c.byAnnotation[annoType{packagePath: packagePath, name: typeName}]
}

func (c *Context) computeAllAnnotations() {
	for _, file := range c.Package.Syntax {
		c.computeAnnotationsFromFile(file)
	}

	// Now that we've processed everything, create the map that conveys all
	// annotation types. First, de-dup using a map of sets.
	annoTypes := map[string]map[string]struct{}{}
	for a := range c.byAnnotation {
		names := annoTypes[a.packagePath]
		if names == nil {
			names = map[string]struct{}{}
			annoTypes[a.packagePath] = names
		}
		names[a.name] = struct{}{}
	}

	// Then convert that into map of slices.
	for pkg, names := range annoTypes {
		nameSlice := make([]string, len(names))
		i := 0
		for n := range names {
			nameSlice[i] = n
			i++
		}
		sort.Strings(nameSlice)
		c.AllAnnotationTypes[pkg] = nameSlice
	}
}

func (c *Context) computeAnnotationsFromFile(file *ast.File) {
	for _, decl := range file.Decls {
		switch decl := decl.(type) {
		case *ast.GenDecl:
			for _, s := range decl.Specs {
				if decl.Tok == token.CONST || decl.Tok == token.VAR {
					spec := s.(*ast.ValueSpec)
					for _, id := range spec.Names {
						doc := spec.Doc
						if doc == nil || len(doc.List) == 0 {
							doc = decl.Doc
						}
						var et autogo.ElementType
						if decl.Tok == token.CONST {
							et = autogo.Constants
						} else {
							et = autogo.Variables
						}
						if err := c.computeAnnotationsFromElement(file, []autogo.ElementType{et}, id, doc, nil); err != nil {
							c.Reporter.Report(err)
						}
					}
				} else if decl.Tok == token.TYPE {
					spec := s.(*ast.TypeSpec)
					doc := spec.Doc
					if doc == nil || len(doc.List) == 0 {
						doc = decl.Doc
					}
					if err := c.computeAnnotationsFromType(file, spec, doc); err != nil {
						c.Reporter.Report(err)
					}
				}
			}
		case *ast.FuncDecl:
			var ets []autogo.ElementType
			ets = append(ets, autogo.Functions)
			if decl.Recv != nil {
				ets = append(ets, autogo.Methods)
			}
			if err := c.computeAnnotationsFromElement(file, ets, decl.Name, decl.Doc, nil); err != nil {
				c.Reporter.Report(err)
			}
		}
	}

	// Whatever has not been visited by now is not a valid home for
	// annotations; flag doc comments that try anyway.
	ast.Inspect(file, func(node ast.Node) bool {
		var doc *ast.CommentGroup
		switch node := node.(type) {
		case *ast.ImportSpec:
			doc = node.Doc
		case *ast.TypeSpec:
			doc = node.Doc
		case *ast.ValueSpec:
			doc = node.Doc
		case *ast.GenDecl:
			doc = node.Doc
		case *ast.FuncDecl:
			doc = node.Doc
		case *ast.Field:
			doc = node.Doc
		case *ast.File:
			doc = node.Doc
		}
		if doc == nil {
			return true
		}
		if _, ok := c.processed[doc]; ok {
			return true
		}
		if pos, found := hasAnnotations(doc); found {
			c.Reporter.Errorf(c.Fset.Position(pos), "annotations are only allowed on top-level types, functions, variables, and constants or fields and methods of top-level types")
		}
		return true
	})
}

func (c *Context) computeAnnotationsFromElement(file *ast.File, ets []autogo.ElementType, id *ast.Ident, doc *ast.CommentGroup, parent *AnnotatedElement) error {
	obj := c.Package.TypesInfo.ObjectOf(id)
	if obj == nil {
		return nil
	}
	if _, ok := c.AllElementsByObject[obj]; ok {
		// already processed this one
		return nil
	}
	annos, err := c.parseAnnotations(file, obj.Type(), doc, modeAll)
	if err != nil {
		return err
	}

	if err := checkAnnotations(annos, ets); err != nil {
		return err
	}

	c.newElement(file, id, obj, annos, ets, parent)
	return nil
}

func (c *Context) computeAnnotationsFromType(file *ast.File, spec *ast.TypeSpec, doc *ast.CommentGroup) error {
	id := spec.Name
	obj, ok := c.Package.TypesInfo.ObjectOf(id).(*types.TypeName)
	if !ok {
		return nil
	}
	if _, ok := c.AllElementsByObject[obj]; ok {
		// already processed this one
		return nil
	}
	annos, err := c.parseAnnotations(file, obj.Type(), doc, modeAll)
	if err != nil {
		return err
	}

	var ets []autogo.ElementType
	ets = append(ets, autogo.Types)
	objType := obj.Type().Underlying()
	if _, ok := objType.(*types.Interface); ok {
		ets = append(ets, autogo.Interfaces)
	} else {
		ets = append(ets, autogo.ConcreteTypes)
	}

	for _, a := range annos {
		// see if this type is actually an annotation type
		if a.annoType() == annoTypeForAnnotation {
			// make sure we have annotation metadata for this one
			if _, ok := c.metadata[obj]; !ok {
				if _, err := c.putMetadata(obj, a); err != nil {
					return err
				}
			}
			ets = append(ets, autogo.AnnotationTypes)
			break
		}
	}

	if err := checkAnnotations(annos, ets); err != nil {
		return err
	}

	ae := c.newElement(file, id, obj, annos, ets, nil)
	if iface, ok := spec.Type.(*ast.InterfaceType); ok {
		if iface.Methods != nil {
			for _, method := range iface.Methods.List {
				names := method.Names
				elType := autogo.InterfaceMethods
				if names == nil {
					embedded := embeddedFieldName(method.Type)
					if embedded == nil {
						continue
					}
					names = []*ast.Ident{embedded}
					elType = autogo.InterfaceEmbeds
				}
				for _, n := range names {
					if err := c.computeAnnotationsFromElement(file, []autogo.ElementType{elType}, n, method.Doc, ae); err != nil {
						c.Reporter.Report(err)
					}
				}
			}
		}
	} else if strct, ok := spec.Type.(*ast.StructType); ok {
		if strct.Fields != nil {
			for _, fld := range strct.Fields.List {
				var fieldTypes []autogo.ElementType
				fieldTypes = append(fieldTypes, autogo.Fields)
				for _, et := range ets {
					if et == autogo.AnnotationTypes {
						fieldTypes = append(fieldTypes, autogo.AnnotationFields)
						break
					}
				}

				names := fld.Names
				if names == nil {
					// anonymous/embedded field
					embedded := embeddedFieldName(fld.Type)
					if embedded == nil {
						continue
					}
					names = []*ast.Ident{embedded}
				}
				for _, n := range names {
					if err := c.computeAnnotationsFromElement(file, fieldTypes, n, fld.Doc, ae); err != nil {
						c.Reporter.Report(err)
					}
				}
			}
		}
	}
	return nil
}

// embeddedFieldName digs the identifier out of an embedded field's type
// expression. Embedded fields may be qualified, pointers, or instantiated
// generic types; the annotations hang off the innermost name.
func embeddedFieldName(expr ast.Expr) *ast.Ident {
	switch t := expr.(type) {
	case *ast.Ident:
		return t
	case *ast.StarExpr:
		return embeddedFieldName(t.X)
	case *ast.SelectorExpr:
		return t.Sel
	case *ast.IndexExpr:
		return embeddedFieldName(t.X)
	case *ast.IndexListExpr:
		return embeddedFieldName(t.X)
	}
	return nil
}

func (c *Context) newElement(file *ast.File, id *ast.Ident, obj types.Object, annos []AnnotationMirror, ets []autogo.ElementType, p *AnnotatedElement) *AnnotatedElement {
	ae := &AnnotatedElement{
		Context:         c,
		Ident:           id,
		File:            file,
		Obj:             obj,
		Parent:          p,
		ApplicableTypes: ets,
		Annotations:     annos,
	}
	c.AllElementsByObject[obj] = ae
	c.allElements = append(c.allElements, ae)
	for _, et := range ets {
		c.byType[et] = append(c.byType[et], ae)
	}
	var prevType annoType
	for _, anno := range annos {
		at := anno.annoType()
		if at != prevType {
			c.byAnnotation[at] = append(c.byAnnotation[at], ae)
			prevType = at
		}
	}
	if p != nil {
		p.Children = append(p.Children, ae)
	}
	return ae
}

type parseMode int

const (
	modeAll parseMode = iota
	modeTypeMetadata
	modeFieldMetadata
)

func (c *Context) parseAnnotations(file *ast.File, selfType types.Type, doc *ast.CommentGroup, mode parseMode) ([]AnnotationMirror, error) {
	c.processed[doc] = struct{}{}
	buf, adjuster := c.extractAnnotations(doc)
	if buf == nil {
		return nil, nil
	}

	annos, perr := parser.ParseAnnotations("", buf)
	if perr != nil {
		pos := adjuster.adjustPosition(perr.Pos())
		return nil, NewErrorWithPosition(pos, perr.Underlying())
	}

	if mode != modeAll {
		var mirrors []AnnotationMirror
		for _, anno := range annos {
			mirror, err := c.convertAnnotation(file, selfType, anno, adjuster, mode)
			if err != nil {
				return nil, err
			}
			if mirror.Metadata != nil {
				if mode == modeTypeMetadata {
					// there is only one kind of annotation we look for in this
					// mode; so if we found one, we're done
					return []AnnotationMirror{mirror}, nil
				} else if mirrors == nil {
					mirrors = make([]AnnotationMirror, 0, 2)
				}
				mirrors = append(mirrors, mirror)
			}
		}
		return mirrors, nil
	}

	mirrors := make([]AnnotationMirror, len(annos))
	for i, anno := range annos {
		var err error
		mirrors[i], err = c.convertAnnotation(file, selfType, anno, adjuster, modeAll)
		if err != nil {
			return nil, err
		}
	}

	// for repeated annotations, group them together; we use stable sort so that
	// elements are re-grouped but otherwise remain in original order
	sort.SliceStable(mirrors, func(i, j int) bool {
		ati := mirrors[i].annoType()
		atj := mirrors[j].annoType()
		if ati.packagePath == atj.packagePath {
			return ati.name < atj.name
		}
		return ati.packagePath < atj.packagePath
	})
	return mirrors, nil
}

func (c *Context) convertAnnotation(file *ast.File, selfType types.Type, a parser.Annotation, adjuster posAdjuster, mode parseMode) (AnnotationMirror, error) {
	var mirror AnnotationMirror
	annoPkg, anno, err := c.resolveSymbol(file, a.Type, adjuster)
	if err != nil {
		return mirror, err
	}
	annoName, ok := anno.(*types.TypeName)
	if !ok {
		pos := adjuster.adjustPosition(a.Type.Pos)
		return mirror, NewErrorWithPosition(pos, errors.Newf("%v is not a type", a.Type))
	}

	if mode == modeTypeMetadata {
		at := annoType{packagePath: annoPkg.Types.Path(), name: a.Type.Name}
		if at != annoTypeForAnnotation {
			// no metadata in this one
			return mirror, nil
		}
	} else if mode == modeFieldMetadata {
		at := annoType{packagePath: annoPkg.Types.Path(), name: a.Type.Name}
		if at != annoTypeForRequired && at != annoTypeForDefault {
			// no metadata in this one
			return mirror, nil
		}
	}

	meta, err := c.getMetadata(annoName, annoPkg, a.Type)
	if err != nil {
		return mirror, err
	}
	if meta == nil {
		// we've already queried metadata for the type; it's not an annotation
		pos := adjuster.adjustPosition(a.Type.Pos)
		return mirror, NewErrorWithPosition(pos, errors.Newf("%v is not an annotation type", a.Type))
	}

	mirror.Pos = adjuster.adjustPosition(a.Type.Pos)
	rep := meta.Type.Type()
	p := annoPkg.Types
	var av AnnotationValue
	if a.Value != nil {
		av, err = c.convertExpression(file, a.Value, selfType, rep, p, adjuster)
	} else {
		var tv typeAndVal
		tv.pos = mirror.Pos
		_, u := getUnderlyingType(rep)
		switch u.(type) {
		case *types.Basic:
			tv.v = true
		case *types.Struct:
			tv.v = ([]parser.Element)(nil)
		default:
			return mirror, NewErrorWithPosition(tv.pos, errors.Newf("annotation %v requires a value since its type is not bool or struct", a.Type))
		}
		av, err = c.convertValue(file, tv, selfType, rep, p, adjuster)
	}
	if err != nil {
		return mirror, err
	}
	mirror.Value = av
	mirror.Metadata = meta

	return mirror, nil
}

func (c *Context) resolveSymbol(file *ast.File, id parser.Identifier, adjuster posAdjuster) (*packages.Package, types.Object, error) {
	var pkg *packages.Package
	var obj types.Object
	if id.PackageAlias == "" {
		obj = c.Package.Types.Scope().Lookup(id.Name)
		if obj == nil {
			// try again below by searching in "." imports
			id.PackageAlias = "."
		} else {
			pkg = c.Package
		}
	}
	if obj == nil {
		pos := adjuster.adjustPosition(id.Pos)
		for _, imp := range file.Imports {
			path, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				continue
			}
			impPkg := c.Package.Imports[path]
			if impPkg == nil {
				continue
			}
			local := impPkg.Types.Name()
			if imp.Name != nil {
				local = imp.Name.Name
			}
			var o types.Object
			if local == id.PackageAlias {
				o = impPkg.Types.Scope().Lookup(id.Name)
			} else if local == "_" && impPkg.Types.Name() == id.PackageAlias {
				// underscore imports can still be referenced from
				// annotations, using the package's own name as qualifier
				o = impPkg.Types.Scope().Lookup(id.Name)
			}
			if o == nil {
				continue
			}
			if obj != nil && obj.Pkg() != o.Pkg() {
				return nil, nil, NewErrorWithPosition(pos, errors.Newf("package name %s is ambiguous; could be %q or %q", id.PackageAlias, obj.Pkg().Path(), o.Pkg().Path()))
			}
			obj = o
			pkg = impPkg
		}
		if obj == nil || !obj.Exported() {
			return nil, nil, NewErrorWithPosition(pos, errors.Newf("symbol %v does not exist", id))
		}
	}

	return pkg, obj, nil
}

func (c *Context) getMetadata(anno *types.TypeName, annoPkg *packages.Package, a parser.Identifier) (*AnnotationMetadata, error) {
	if meta, ok := c.metadata[anno]; ok {
		return meta, nil
	}

	// find the file that declares the indicated annotation type
	spec, file, doc := findTypeDecl(annoPkg, a.Name)
	if spec == nil {
		// no syntax available, so no annotations to inspect
		c.metadata[anno] = nil
		return nil, nil
	}

	ctx := c.contextFor(annoPkg)
	at := annoType{packagePath: annoPkg.Types.Path(), name: a.Name}
	if at == annoTypeForAnnotation {
		// We have a boot-strapping cycle trying to get metadata for the
		// Annotation type itself. So we must seed the metadata with a
		// provisional entry so the next step doesn't cause infinite
		// recursion.
		ctx.metadata[anno] = &AnnotationMetadata{Type: anno}
	}
	mirrors, err := ctx.parseAnnotations(file, anno.Type(), doc, modeTypeMetadata)
	if err != nil {
		return nil, err
	}
	if len(mirrors) == 0 {
		// the type is not annotated as an annotation type; record that so
		// the files are not searched again
		ctx.metadata[anno] = nil
		return nil, nil
	}
	return ctx.putMetadata(anno, mirrors[0])
}

// findTypeDecl locates the declaration of a named type in the given package.
// Files are parsed without object resolution, so this walks declarations
// rather than consulting ast scopes. The returned comment group is the
// spec's doc, falling back to the enclosing declaration's doc the same way
// the parser attaches docs for unparenthesized declarations.
func findTypeDecl(pkg *packages.Package, name string) (*ast.TypeSpec, *ast.File, *ast.CommentGroup) {
	for _, f := range pkg.Syntax {
		for _, d := range f.Decls {
			decl, ok := d.(*ast.GenDecl)
			if !ok || decl.Tok != token.TYPE {
				continue
			}
			for _, s := range decl.Specs {
				spec := s.(*ast.TypeSpec)
				if spec.Name.Name != name {
					continue
				}
				doc := spec.Doc
				if doc == nil || len(doc.List) == 0 {
					doc = decl.Doc
				}
				return spec, f, doc
			}
		}
	}
	return nil, nil, nil
}

func (c *Context) putMetadata(anno *types.TypeName, am AnnotationMirror) (*AnnotationMetadata, error) {
	meta := &AnnotationMetadata{Type: anno}
	for _, fieldEntry := range am.Value.AsStruct() {
		name := fieldEntry.Field.Name()
		val := fieldEntry.Value
		switch name {
		case "AllowedElements":
			if val.Kind != KindNil {
				sl := val.AsSlice()
				meta.AllowedElements = make([]autogo.ElementType, len(sl))
				for i, v := range sl {
					meta.AllowedElements[i] = autogo.ElementType(v.AsInt())
				}
			}
		case "AllowRepeated":
			meta.AllowRepeated = val.AsBool()
		default:
			return nil, errors.AssertionFailedf("unknown field of @Annotation: %s", name)
		}
	}
	// install before visiting fields so that self-referential annotation
	// types do not recurse forever
	c.metadata[anno] = meta
	if err := c.collectFieldMetadata(anno, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// collectFieldMetadata visits the declared fields of a struct-backed
// annotation type and records which are required and which have declared
// defaults.
func (c *Context) collectFieldMetadata(anno *types.TypeName, meta *AnnotationMetadata) error {
	strct, ok := anno.Type().Underlying().(*types.Struct)
	if !ok {
		return nil
	}
	annoPkg := c.packageFor(anno.Pkg())
	if annoPkg == nil {
		return nil
	}
	spec, file, _ := findTypeDecl(annoPkg, anno.Name())
	if spec == nil {
		return nil
	}
	structAST, ok := spec.Type.(*ast.StructType)
	if !ok || structAST.Fields == nil {
		return nil
	}
	docs := map[string]*ast.CommentGroup{}
	for _, fld := range structAST.Fields.List {
		for _, nm := range fld.Names {
			docs[nm.Name] = fld.Doc
		}
	}
	ctx := c.contextFor(annoPkg)
	for i := 0; i < strct.NumFields(); i++ {
		fld := strct.Field(i)
		doc := docs[fld.Name()]
		if doc == nil || len(doc.List) == 0 {
			continue
		}
		mirrors, err := ctx.parseAnnotations(file, fld.Type(), doc, modeFieldMetadata)
		if err != nil {
			return err
		}
		for _, m := range mirrors {
			switch m.annoType() {
			case annoTypeForRequired:
				if m.Value.AsBool() {
					if meta.RequiredFields == nil {
						meta.RequiredFields = map[string]bool{}
					}
					meta.RequiredFields[fld.Name()] = true
				}
			case annoTypeForDefault:
				def := m.Value.AsStruct()[0].Value
				if meta.DefaultFieldValues == nil {
					meta.DefaultFieldValues = map[string]AnnotationValue{}
				}
				meta.DefaultFieldValues[fld.Name()] = def
			}
		}
	}
	return nil
}

func (c *Context) extractAnnotations(doc *ast.CommentGroup) (*bytes.Buffer, posAdjuster) {
	if doc == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	var adjuster posAdjuster
	found := false
	prevSingleLine := false
	var pos token.Position
	for _, l := range doc.List {
		txt := l.Text
		singleLine := false
		if strings.HasPrefix(txt, "/*") {
			txt = txt[2:]
			if strings.HasSuffix(txt, "*/") {
				txt = txt[:len(txt)-2]
			}
		} else if strings.HasPrefix(txt, "//") {
			singleLine = true
			txt = txt[2:]
		}

		if singleLine != prevSingleLine {
			found = false
			buf.Reset()
			prevSingleLine = singleLine
			adjuster = nil
		}

		pos = c.Fset.Position(l.Slash)
		// skip past opening "//" or "/*"
		pos.Offset += 2
		pos.Column += 2

		for _, line := range strings.Split(txt, "\n") {
			trimmed := strings.TrimSpace(line)
			if !found && trimmed != "" && trimmed[0] == '@' {
				found = true
			}
			if found {
				adjuster = append(adjuster, posAdj{outOffset: buf.Len(), inPos: pos})
				buf.WriteString(line)
				buf.WriteByte('\n')
			}
			pos.Offset += len(line) + 1
			pos.Line++
			pos.Column = 1
		}

		// set this so we can record end of input as the last entry in adjuster
		pos = c.Fset.Position(l.End())
	}
	if !found {
		return nil, nil
	}
	adjuster = append(adjuster, posAdj{outOffset: buf.Len(), inPos: pos})
	return &buf, adjuster
}

type posAdj struct {
	outOffset int
	inPos     token.Position
}

type posAdjuster []posAdj

func (a posAdjuster) adjustPosition(pos scanner.Position) token.Position {
	i := pos.Line - 1
	if i < 0 {
		i = 0
	} else if i >= len(a) {
		i = len(a) - 1
	}
	el := a[i]
	var tok token.Position
	tok.Filename = el.inPos.Filename
	tok.Line = el.inPos.Line
	tok.Column = el.inPos.Column + pos.Column - 1
	tok.Offset = el.inPos.Offset + (pos.Offset - el.outOffset)
	return tok
}

func hasAnnotations(doc *ast.CommentGroup) (token.Pos, bool) {
	if doc == nil {
		return 0, false
	}
	for _, l := range doc.List {
		txt := l.Text
		if strings.HasPrefix(txt, "/*") {
			txt = strings.TrimSuffix(txt[2:], "*/")
		} else if strings.HasPrefix(txt, "//") {
			txt = txt[2:]
		}
		for _, line := range strings.Split(txt, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" && trimmed[0] == '@' {
				return l.Slash, true
			}
		}
	}
	return 0, false
}

func checkAnnotations(annos []AnnotationMirror, ets []autogo.ElementType) error {
	contains := func(et autogo.ElementType) bool {
		for _, e := range ets {
			if e == et {
				return true
			}
		}
		return false
	}
	var prevType annoType
	for _, a := range annos {
		at := a.annoType()
		if a.Metadata.AllowedElements != nil {
			found := false
			for _, aet := range a.Metadata.AllowedElements {
				if contains(aet) {
					found = true
					break
				}
			}
			if !found {
				return NewErrorWithPosition(a.Pos, errors.Newf("annotation type %s.%s cannot be used on %s", at.packagePath, at.name, strings.ToLower(ets[len(ets)-1].String())))
			}
		}
		if at == prevType && !a.Metadata.AllowRepeated {
			return NewErrorWithPosition(a.Pos, errors.Newf("annotation type %s.%s appears more than once but cannot be repeated", at.packagePath, at.name))
		}
		prevType = at
	}
	return nil
}

func (c *Context) convertExpression(file *ast.File, exp parser.ExpressionNode, selfType, targetType types.Type, p *types.Package, adjuster posAdjuster) (AnnotationValue, error) {
	var tv typeAndVal
	tv.pos = adjuster.adjustPosition(exp.Pos())
	var err error
	tv.t, tv.v, tv.ref, err = c.getExpressionValue(file, exp, adjuster)
	if err != nil {
		return AnnotationValue{}, err
	}
	return c.convertValue(file, tv, selfType, targetType, p, adjuster)
}

type typeAndVal struct {
	t   types.Type
	v   interface{}
	ref *types.Const
	pos token.Position
}

func (c *Context) convertValue(file *ast.File, tv typeAndVal, selfType, targetType types.Type, p *types.Package, adjuster posAdjuster) (av AnnotationValue, err error) {
	av, err = c.tryConvertValue(file, tv, selfType, targetType, p, adjuster)
	if wte, ok := err.(wrongTypeError); ok {
		ntyp, typ := getUnderlyingType(targetType)
		var elemType types.Type
		var fld *types.Var
		switch t := typ.(type) {
		case *types.Array:
			if t.Len() != 1 {
				return nilValue, NewErrorWithPosition(tv.pos, errors.Newf("array must have length %d but given literal value has 1 element", t.Len()))
			}
			elemType = t.Elem()
		case *types.Slice:
			elemType = t.Elem()
		case *types.Struct:
			if t.NumFields() == 1 && t.Field(0).Name() == "Value" {
				fld = t.Field(0)
				elemType = fld.Type()
			}
		}
		if elemType == nil {
			// unwrap the marker error type
			return nilValue, wte.err
		}
		// try to convert the value to an element of the array/slice/struct
		av, err = c.tryConvertValue(file, tv, selfType, elemType, p, adjuster)
		if wte, ok := err.(wrongTypeError); ok {
			// unwrap the marker error type
			return nilValue, wte.err
		} else if err != nil {
			return nilValue, err
		}
		// that worked! so we need to wrap the value as a single element slice
		if fld != nil {
			return newValue(ntyp, KindStruct, []AnnotationStructEntry{{Field: fld, Pos: tv.pos, Value: av}}, tv.pos), nil
		}
		return newValue(ntyp, KindSlice, []AnnotationValue{av}, tv.pos), nil
	}
	return av, err
}

func (c *Context) tryConvertValue(file *ast.File, tv typeAndVal, selfType, targetType types.Type, p *types.Package, adjuster posAdjuster) (av AnnotationValue, err error) {
	defer func() {
		if err == nil {
			av.Ref = tv.ref
		}
	}()

	ntyp, typ := getUnderlyingType(targetType)

	// Fields declared as type references only accept names of types; no
	// ordinary value satisfies them even though everything is assignable to
	// the marker's underlying interface.
	if isTypeRefTarget(ntyp) {
		tn, ok := tv.v.(*types.TypeName)
		if !ok {
			return nilValue, wrongTypeError{err: NewErrorWithPosition(tv.pos, errors.Newf("annotation value cannot be assigned to %v (expecting a type reference)", targetType))}
		}
		if err := checkTypeReference(tn, tv.pos); err != nil {
			return nilValue, err
		}
		return newValue(tn.Type(), KindType, tn, tv.pos), nil
	}

	// A field declared as SelfType holds values of the annotated element's
	// own type, so validate against that type instead of the marker.
	if selfType != nil && IsSelfType(ntyp) {
		return c.tryConvertValue(file, tv, nil, selfType, p, adjuster)
	}

	var sourceType string

	if tv.t != nil {
		sourceType = tv.t.String()
		if assignable(tv.t, ntyp, selfType, false) {
			if n, ok := tv.t.(*types.Named); ok {
				p = n.Obj().Pkg()
			}
			ttv := typeAndVal{t: nil, v: tv.v, pos: tv.pos}
			av, err := c.convertValue(file, ttv, selfType, targetType, p, adjuster)
			if err == nil && av.Kind != KindType {
				av.Type = typ
			}
			return av, err
		}
	} else {
		switch v := tv.v.(type) {
		case int64:
			sourceType = "int"
			if av, ok := convertInt(v, typ, tv.pos); ok {
				return av, nil
			}

		case uint64:
			sourceType = "uint"
			if av, ok := convertUint(v, typ, tv.pos); ok {
				return av, nil
			}

		case float64:
			sourceType = "float"
			if av, ok := convertFloat(v, typ, tv.pos); ok {
				return av, nil
			}

		case complex128:
			sourceType = "complex"
			if av, ok := convertComplex(v, typ, tv.pos); ok {
				return av, nil
			}

		case bool:
			sourceType = "bool"
			if types.AssignableTo(typeBool, typ) {
				return annotationValue(typeBool, typ, v, KindBool, tv.pos), nil
			}

		case string:
			sourceType = "string"
			if types.AssignableTo(typeString, typ) {
				return annotationValue(typeString, typ, v, KindString, tv.pos), nil
			}

		case []parser.Element:
			sourceType = "composite"

			switch t := typ.(type) {
			case *types.Struct:
				return c.convertStructValue(file, v, tv.pos, selfType, t, ntyp, p, adjuster)
			case *types.Map:
				return c.convertMapValue(file, v, tv.pos, selfType, t, ntyp, adjuster)
			case *types.Array:
				if t.Len() != int64(len(v)) {
					return nilValue, NewErrorWithPosition(tv.pos, errors.Newf("array must have length %d but given literal value has %d elements", t.Len(), len(v)))
				}
				return c.convertSliceValue(file, v, tv.pos, selfType, t.Elem(), ntyp, adjuster)
			case *types.Slice:
				return c.convertSliceValue(file, v, tv.pos, selfType, t.Elem(), ntyp, adjuster)
			case *types.Interface:
				if t.NumMethods() == 0 {
					// Type is empty interface, so we can assign any value to it. So
					// assume map or struct if the value has keys. Otherwise, assume
					// slice. If it has keys and they are all unqualified names then
					// assume it is a struct; otherwise it is a map.
					return c.convertCompositeValue(file, v, tv.pos, selfType, adjuster)
				}
			}

		case *types.Func:
			sourceType = v.Type().String()
			if t := canAssignIndirect(v.Type(), targetType, selfType); t != nil {
				return annotationValue(v.Type(), t, v, KindFunc, tv.pos), nil
			}

		case *types.TypeName:
			sourceType = "type reference"

		case nil:
			sourceType = "nil"
			switch targetType.(type) {
			case *types.Pointer, *types.Slice, *types.Signature, *types.Interface, *types.Map, *types.Chan:
				return newValue(targetType, KindNil, nil, tv.pos), nil
			}

		default:
			panic(fmt.Sprintf("%s:%d:%d: unsupported kind of value: %T", tv.pos.Filename, tv.pos.Line, tv.pos.Column, v))
		}
	}

	rewritten := rewriteSelfType(targetType, selfType)
	if types.Identical(targetType, rewritten) {
		return nilValue, wrongTypeError{err: NewErrorWithPosition(tv.pos, errors.Newf("annotation value of type %s cannot be assigned to %v", sourceType, targetType))}
	}
	return nilValue, wrongTypeError{err: NewErrorWithPosition(tv.pos, errors.Newf("annotation value of type %s cannot be assigned to %v (%v)", sourceType, targetType, rewritten))}
}

type wrongTypeError struct {
	err error
}

func (e wrongTypeError) Error() string {
	return e.err.Error()
}

// isTypeRefTarget reports whether the given type is the autogo.TypeRef
// marker.
func isTypeRefTarget(t types.Type) bool {
	return isNamedType(t, typeRefPkg, typeRefName)
}

// checkTypeReference validates that a referenced type can be named in
// generated code. An alias that resolves to an instantiated generic type
// cannot: there is no way to name the instantiation without repeating its
// type arguments, which annotation values do not carry.
func checkTypeReference(tn *types.TypeName, pos token.Position) error {
	if named, ok := tn.Type().(*types.Named); ok && named.TypeArgs().Len() > 0 {
		return NewErrorWithPosition(pos, errors.Newf("type reference %s must not carry type arguments", tn.Name()))
	}
	return nil
}

// Candidate types for numeric conversions, widest first. The order matters:
// when several candidates are assignable to the target, such as an interface
// target, the first match decides the value's type, and generated code must
// not vary from run to run.
type numericType struct {
	t  types.Type
	rt reflect.Type
}

var (
	intTypes = []numericType{
		{typeInt64, reflect.TypeOf(int64(0))},
		{typeInt32, reflect.TypeOf(int32(0))},
		{typeInt, reflect.TypeOf(int(0))},
		{typeInt16, reflect.TypeOf(int16(0))},
		{typeInt8, reflect.TypeOf(int8(0))},
	}
	uintTypes = []numericType{
		{typeUint64, reflect.TypeOf(uint64(0))},
		{typeUint32, reflect.TypeOf(uint32(0))},
		{typeUint, reflect.TypeOf(uint(0))},
		{typeUintptr, reflect.TypeOf(uintptr(0))},
		{typeUint16, reflect.TypeOf(uint16(0))},
		{typeUint8, reflect.TypeOf(uint8(0))},
	}
	floatTypes = []numericType{
		{typeFloat64, reflect.TypeOf(float64(0))},
		{typeFloat32, reflect.TypeOf(float32(0))},
	}
	complexTypes = []numericType{
		{typeComplex128, reflect.TypeOf(complex128(0))},
		{typeComplex64, reflect.TypeOf(complex64(0))},
	}
)

func convertInt(i int64, t types.Type, pos token.Position) (AnnotationValue, bool) {
	for _, k := range intTypes {
		if types.AssignableTo(k.t, t) {
			// round trip to see if the value overflows
			v := reflect.ValueOf(i).Convert(k.rt).Int()
			if v == i {
				return annotationValue(k.t, t, i, KindInt, pos), true
			}
		}
	}
	if i > 0 {
		// because int and uint are mutually auto-convertible, we can't
		// just call convertUint, because it could call convertInt and
		// result in infinite cycle
		u := uint64(i)
		for _, k := range uintTypes {
			if types.AssignableTo(k.t, t) {
				// round trip to see if the value overflows
				v := reflect.ValueOf(u).Convert(k.rt).Uint()
				if v == u {
					return annotationValue(k.t, t, u, KindUint, pos), true
				}
			}
		}
	}
	// try to promote to float
	return convertFloat(float64(i), t, pos)
}

func convertUint(u uint64, t types.Type, pos token.Position) (AnnotationValue, bool) {
	for _, k := range uintTypes {
		if types.AssignableTo(k.t, t) {
			// round trip to see if the value overflows
			v := reflect.ValueOf(u).Convert(k.rt).Uint()
			if v == u {
				return annotationValue(k.t, t, u, KindUint, pos), true
			}
		}
	}
	if u <= math.MaxInt64 {
		// because int and uint are mutually auto-convertible, we can't
		// just call convertInt, because it could call convertUint and
		// result in infinite cycle
		i := int64(u)
		for _, k := range intTypes {
			if types.AssignableTo(k.t, t) {
				// round trip to see if the value overflows
				v := reflect.ValueOf(i).Convert(k.rt).Int()
				if v == i {
					return annotationValue(k.t, t, i, KindInt, pos), true
				}
			}
		}
	}
	// try to promote to float
	return convertFloat(float64(u), t, pos)
}

func convertFloat(f float64, t types.Type, pos token.Position) (AnnotationValue, bool) {
	for _, k := range floatTypes {
		if types.AssignableTo(k.t, t) {
			// round trip to see if the value overflows
			v := reflect.ValueOf(f).Convert(k.rt).Float()
			if v == f {
				return annotationValue(k.t, t, f, KindFloat, pos), true
			}
		}
	}
	// try to promote to complex
	return convertComplex(complex(f, 0), t, pos)
}

func convertComplex(c complex128, t types.Type, pos token.Position) (AnnotationValue, bool) {
	for _, k := range complexTypes {
		if types.AssignableTo(k.t, t) {
			// round trip to see if the value overflows
			v := reflect.ValueOf(c).Convert(k.rt).Complex()
			if v == c {
				return annotationValue(k.t, t, c, KindComplex, pos), true
			}
		}
	}
	return nilValue, false
}

func annotationValue(sourceType, targetType types.Type, value interface{}, kind ValueKind, pos token.Position) AnnotationValue {
	// prefer concrete types, so if target type is interface and source type is not, use the source type
	if _, ok := targetType.Underlying().(*types.Interface); ok {
		if _, ok := sourceType.Underlying().(*types.Interface); !ok {
			if b, ok := sourceType.Underlying().(*types.Basic); ok {
				switch b.Kind() {
				// upgrade from untyped kinds to typed kinds
				case types.UntypedBool:
					sourceType = typeBool
				case types.UntypedString:
					sourceType = typeString
				case types.UntypedComplex:
					sourceType = typeComplex128
				case types.UntypedFloat:
					sourceType = typeFloat64
				case types.UntypedRune:
					sourceType = typeInt32
				case types.UntypedNil:
					// instead of using a nil type, just use the target interface type
					sourceType = targetType
				case types.UntypedInt:
					// we have to leave UntypedInt alone since we don't know at this
					// point whether it needs to be int64 (e.g. if it's negative) or
					// uint64 (e.g. too big to fit in int64).
				}
			}
			return newValue(sourceType, kind, value, pos)
		}
	}
	return newValue(targetType, kind, value, pos)
}

func assignable(from, to, selfType types.Type, insideOfFunction bool) bool {
	if IsAnyType(to) {
		return true
	}
	if selfType != nil && IsSelfType(to) {
		to = selfType
	}
	if types.AssignableTo(from, to) {
		return true
	} else if !containsSpecialType(to, selfType != nil) {
		return false
	}
	return assignableToSpecial(from, to, selfType, insideOfFunction)
}

func assignableToSpecial(from, to, selfType types.Type, insideOfFunction bool) bool {
	// recursive calls may swap out selfType for nil since SelfType is only
	// supported in scalar and function types
	switch from := from.(type) {
	case *types.Named:
		return assignableToSpecial(from.Underlying(), to, selfType, insideOfFunction)
	case *types.Basic:
	case *types.Pointer:
		if to, ok := to.(*types.Pointer); ok {
			return assignable(from.Elem(), to.Elem(), selfType, insideOfFunction)
		}
	case *types.Array:
		if to, ok := to.(*types.Array); ok {
			if from.Len() != to.Len() {
				return false
			}
			if !insideOfFunction {
				selfType = nil
			}
			return assignable(from.Elem(), to.Elem(), selfType, insideOfFunction)
		}
	case *types.Slice:
		if to, ok := to.(*types.Slice); ok {
			if !insideOfFunction {
				selfType = nil
			}
			return assignable(from.Elem(), to.Elem(), selfType, insideOfFunction)
		}
	case *types.Map:
		if to, ok := to.(*types.Map); ok {
			if !insideOfFunction {
				selfType = nil
			}
			return assignable(from.Key(), to.Key(), selfType, insideOfFunction) &&
				assignable(from.Elem(), to.Elem(), selfType, insideOfFunction)
		}
	case *types.Chan:
		if to, ok := to.(*types.Chan); ok {
			if !insideOfFunction {
				selfType = nil
			}
			if from.Dir() != to.Dir() {
				return false
			}
			return assignable(from.Elem(), to.Elem(), selfType, insideOfFunction)
		}
	case *types.Struct:
	case *types.Interface:
	case *types.Tuple:
	case *types.Signature:
		if to, ok := to.(*types.Signature); ok {
			if from.Params().Len() != to.Params().Len() || from.Results().Len() != to.Results().Len() {
				return false
			}
			for i := 0; i < from.Params().Len(); i++ {
				if !assignable(from.Params().At(i).Type(), to.Params().At(i).Type(), selfType, true) {
					return false
				}
			}
			for i := 0; i < from.Results().Len(); i++ {
				if !assignable(from.Results().At(i).Type(), to.Results().At(i).Type(), selfType, true) {
					return false
				}
			}
			return true
		}
	}
	return false
}

// IsAnyType returns true if the given type is autogo.AnyType.
func IsAnyType(t types.Type) bool {
	return isNamedType(t, anyTypePkg, anyTypeName)
}

// IsSelfType returns true if the given type is autogo.SelfType.
func IsSelfType(t types.Type) bool {
	return isNamedType(t, selfTypePkg, selfTypeName)
}

func isNamedType(t types.Type, pkgPath, name string) bool {
	nt, ok := t.(*types.Named)
	if !ok {
		return false
	}
	obj := nt.Obj()
	return obj.Pkg() != nil && obj.Pkg().Path() == pkgPath && obj.Name() == name
}

func containsSpecialType(t types.Type, includeSelfType bool) bool {
	switch t := t.(type) {
	case *types.Named:
		obj := t.Obj()
		if obj.Pkg() == nil {
			return false
		}
		if obj.Pkg().Path() == anyTypePkg && obj.Name() == anyTypeName {
			return true
		}
		if includeSelfType && obj.Pkg().Path() == selfTypePkg && obj.Name() == selfTypeName {
			return true
		}
	case *types.Pointer:
		return containsSpecialType(t.Elem(), includeSelfType)
	case *types.Array:
		return containsSpecialType(t.Elem(), includeSelfType)
	case *types.Slice:
		return containsSpecialType(t.Elem(), includeSelfType)
	case *types.Map:
		return containsSpecialType(t.Key(), includeSelfType) ||
			containsSpecialType(t.Elem(), includeSelfType)
	case *types.Chan:
		return containsSpecialType(t.Elem(), includeSelfType)
	case *types.Signature:
		for i := 0; i < t.Params().Len(); i++ {
			if containsSpecialType(t.Params().At(i).Type(), includeSelfType) {
				return true
			}
		}
		for i := 0; i < t.Results().Len(); i++ {
			if containsSpecialType(t.Results().At(i).Type(), includeSelfType) {
				return true
			}
		}
	}
	return false
}

func rewriteSelfType(t types.Type, self types.Type) types.Type {
	if self == nil {
		return t
	}
	switch t := t.(type) {
	case *types.Named:
		obj := t.Obj()
		if obj.Pkg() != nil && obj.Pkg().Path() == selfTypePkg && obj.Name() == selfTypeName {
			return self
		}
		return t

	case *types.Pointer:
		e := t.Elem()
		re := rewriteSelfType(e, self)
		if re == e {
			return t
		}
		return types.NewPointer(re)

	case *types.Array:
		e := t.Elem()
		re := rewriteSelfType(e, self)
		if re == e {
			return t
		}
		return types.NewArray(re, t.Len())

	case *types.Slice:
		e := t.Elem()
		re := rewriteSelfType(e, self)
		if re == e {
			return t
		}
		return types.NewSlice(re)

	case *types.Map:
		k := t.Key()
		rk := rewriteSelfType(k, self)
		e := t.Elem()
		re := rewriteSelfType(e, self)
		if rk == k && re == e {
			return t
		}
		return types.NewMap(rk, re)

	case *types.Chan:
		e := t.Elem()
		re := rewriteSelfType(e, self)
		if re == e {
			return t
		}
		return types.NewChan(t.Dir(), re)

	case *types.Tuple:
		var rc []*types.Var
		for i := 0; i < t.Len(); i++ {
			v := t.At(i)
			e := v.Type()
			re := rewriteSelfType(e, self)
			if re != e {
				if rc == nil {
					rc = make([]*types.Var, t.Len())
					for j := 0; j < i; j++ {
						rc[j] = t.At(j)
					}
				}
				rv := types.NewParam(v.Pos(), v.Pkg(), v.Name(), re)
				rc[i] = rv
			} else if rc != nil {
				rc[i] = v
			}
		}
		if rc == nil {
			return t
		}
		return types.NewTuple(rc...)

	case *types.Signature:
		p := t.Params()
		rp := rewriteSelfType(p, self).(*types.Tuple)
		r := t.Results()
		rr := rewriteSelfType(r, self).(*types.Tuple)
		if rp == p && rr == r {
			return t
		}
		return types.NewSignatureType(t.Recv(), nil, nil, rp, rr, t.Variadic())

	default:
		return t
	}
}

func (c *Context) convertStructValue(file *ast.File, v []parser.Element, pos token.Position, selfType types.Type, structType *types.Struct, nt types.Type, p *types.Package, adjuster posAdjuster) (AnnotationValue, error) {
	isLocal := p == c.Package.Types
	var meta *AnnotationMetadata
	if named, ok := nt.(*types.Named); ok {
		// NB: This call computes annotations for the type if they have not
		// already been computed. That is what makes the required fields and
		// declared defaults below available.
		var err error
		meta, err = c.GetMetadataForTypeName(named.Obj())
		if err != nil {
			return nilValue, err
		}
	}

	strct := make([]AnnotationStructEntry, len(v))
	if len(v) > 0 && !v[0].HasKey {
		if len(v) != structType.NumFields() {
			return nilValue, NewErrorWithPosition(pos, errors.Newf("too few values for struct type %s; expecting %d, got %d", nt.String(), structType.NumFields(), len(v)))
		}
		for i, fldVal := range v {
			fld := structType.Field(i)
			if !fld.Exported() && !isLocal {
				pos := adjuster.adjustPosition(fldVal.Pos())
				return nilValue, NewErrorWithPosition(pos, errors.Newf("cannot set non-exported field %s of type %s", fld.Name(), nt.String()))
			}
			av, err := c.convertExpression(file, fldVal.Value, selfType, fld.Type(), fld.Pkg(), adjuster)
			if err != nil {
				return nilValue, err
			}
			pos := adjuster.adjustPosition(fldVal.Pos())
			strct[i] = AnnotationStructEntry{Field: fld, Pos: pos, Value: av}
		}
	} else {
		fields := map[string]*types.Var{}
		for i := 0; i < structType.NumFields(); i++ {
			fields[structType.Field(i).Name()] = structType.Field(i)
		}

		fieldNames := map[string]struct{}{}
		for i, fldVal := range v {
			var fldName string
			if ref, ok := fldVal.Key.(parser.RefNode); ok {
				id := ref.Ident
				if id.PackageAlias == "" {
					fldName = id.Name
				}
			}
			if fldName == "" {
				return nilValue, NewErrorWithPosition(pos, errors.Newf("cannot assign map value to type %s", nt.String()))
			}
			if _, ok := fieldNames[fldName]; ok {
				pos := adjuster.adjustPosition(fldVal.Key.Pos())
				return nilValue, NewErrorWithPosition(pos, errors.Newf("struct value has duplicate entries: field %q", fldName))
			}
			fld := fields[fldName]
			if fld == nil {
				pos := adjuster.adjustPosition(fldVal.Pos())
				return nilValue, NewErrorWithPosition(pos, errors.Newf("struct type %s has no field named %s", nt.String(), fldName))
			}
			if !fld.Exported() && !isLocal {
				pos := adjuster.adjustPosition(fldVal.Pos())
				return nilValue, NewErrorWithPosition(pos, errors.Newf("cannot set non-exported field %s of type %s", fld.Name(), nt.String()))
			}
			delete(fields, fldName)
			av, err := c.convertExpression(file, fldVal.Value, selfType, fld.Type(), fld.Pkg(), adjuster)
			if err != nil {
				return nilValue, err
			}
			fieldNames[fldName] = struct{}{}
			pos := adjuster.adjustPosition(fldVal.Pos())
			strct[i] = AnnotationStructEntry{Field: fld, Pos: pos, Value: av}
		}

		// visit unset fields in declaration order so defaults are appended
		// deterministically
		for i := 0; i < structType.NumFields(); i++ {
			fld := structType.Field(i)
			if _, ok := fields[fld.Name()]; !ok {
				continue
			}
			if meta == nil {
				continue
			}
			if meta.RequiredFields[fld.Name()] {
				return nilValue, NewErrorWithPosition(pos, errors.Newf("field %s is not specified but is required", fld.Name()))
			}
			if def, ok := meta.DefaultFieldValues[fld.Name()]; ok {
				strct = append(strct, AnnotationStructEntry{Field: fld, Pos: def.Pos, Value: def})
			}
		}
	}
	return newValue(nt, KindStruct, strct, pos), nil
}

func (c *Context) convertMapValue(file *ast.File, v []parser.Element, pos token.Position, selfType types.Type, mapType *types.Map, nt types.Type, adjuster posAdjuster) (AnnotationValue, error) {
	mp := make([]AnnotationMapEntry, 0, len(v))
	keys := map[interface{}]struct{}{}
	for _, e := range v {
		if !e.HasKey {
			pos := adjuster.adjustPosition(e.Value.Pos())
			return nilValue, NewErrorWithPosition(pos, errors.New("map values must have keys"))
		}
		avk, err := c.convertExpression(file, e.Key, selfType, mapType.Key(), c.Package.Types, adjuster)
		if err != nil {
			return nilValue, err
		}
		k := c.GetValue(avk, true)
		if _, ok := keys[k]; ok {
			pos := adjuster.adjustPosition(e.Key.Pos())
			return nilValue, NewErrorWithPosition(pos, errors.Newf("map value has duplicate entries: key = %v", k))
		}
		avv, err := c.convertExpression(file, e.Value, selfType, mapType.Elem(), c.Package.Types, adjuster)
		if err != nil {
			return nilValue, err
		}
		keys[k] = struct{}{}
		mp = append(mp, AnnotationMapEntry{Key: avk, Value: avv})
	}

	return newValue(nt, KindMap, mp, pos), nil
}

func (c *Context) convertSliceValue(file *ast.File, v []parser.Element, pos token.Position, selfType types.Type, elemType, nt types.Type, adjuster posAdjuster) (AnnotationValue, error) {
	if len(v) > 0 && v[0].HasKey {
		pos := adjuster.adjustPosition(v[0].Key.Pos())
		return nilValue, NewErrorWithPosition(pos, errors.New("slice/array values should not have keys"))
	}

	sl := make([]AnnotationValue, len(v))
	for i, e := range v {
		av, err := c.convertExpression(file, e.Value, selfType, elemType, c.Package.Types, adjuster)
		if err != nil {
			return nilValue, err
		}
		sl[i] = av
	}

	return newValue(nt, KindSlice, sl, pos), nil
}

func (c *Context) convertCompositeValue(file *ast.File, v []parser.Element, pos token.Position, selfType types.Type, adjuster posAdjuster) (AnnotationValue, error) {
	isStruct := true
	hasKeys := false
	for _, e := range v {
		if e.HasKey {
			hasKeys = true
			if ref, ok := e.Key.(parser.RefNode); !ok || ref.Ident.PackageAlias != "" {
				isStruct = false
			}
		} else {
			isStruct = false
		}
	}

	if isStruct {
		strct := make([]AnnotationStructEntry, len(v))
		fieldNames := map[string]struct{}{}
		fields := make([]*types.Var, len(v))
		for i, e := range v {
			av, err := c.convertExpression(file, e.Value, selfType, emptyInterface, c.Package.Types, adjuster)
			if err != nil {
				return nilValue, err
			}
			fld := types.NewField(token.NoPos, c.Package.Types, e.Key.(parser.RefNode).Ident.Name, av.Type, false)
			fields[i] = fld
			pos := adjuster.adjustPosition(e.Key.Pos())
			if _, ok := fieldNames[fld.Name()]; ok {
				return nilValue, NewErrorWithPosition(pos, errors.Newf("struct value has duplicate entries: field %q", fld.Name()))
			}
			fieldNames[fld.Name()] = struct{}{}
			strct[i] = AnnotationStructEntry{Field: fld, Pos: pos, Value: av}
		}
		strctType := types.NewStruct(fields, nil)
		return newValue(strctType, KindStruct, strct, pos), nil

	} else if hasKeys {
		mp := make([]AnnotationMapEntry, 0, len(v))
		keys := map[interface{}]struct{}{}
		var elType, keyType types.Type
		for _, e := range v {
			avk, err := c.convertExpression(file, e.Key, selfType, emptyInterface, c.Package.Types, adjuster)
			if err != nil {
				return nilValue, err
			}
			k := c.GetValue(avk, true)
			if _, ok := keys[k]; ok {
				pos := adjuster.adjustPosition(e.Key.Pos())
				return nilValue, NewErrorWithPosition(pos, errors.Newf("map value has duplicate entries: key = %v", k))
			}
			if keyType == nil {
				keyType = avk.Type
			} else if !types.AssignableTo(avk.Type, keyType) {
				keyType = emptyInterface
			}
			avv, err := c.convertExpression(file, e.Value, selfType, emptyInterface, c.Package.Types, adjuster)
			if err != nil {
				return nilValue, err
			}
			if elType == nil {
				elType = avv.Type
			} else if !types.AssignableTo(avv.Type, elType) {
				elType = emptyInterface
			}
			keys[k] = struct{}{}
			mp = append(mp, AnnotationMapEntry{Key: avk, Value: avv})
		}
		if keyType == nil {
			keyType = emptyInterface
		}
		if elType == nil {
			elType = emptyInterface
		}
		mpType := types.NewMap(keyType, elType)
		return newValue(mpType, KindMap, mp, pos), nil

	} else {
		sl := make([]AnnotationValue, len(v))
		var elType types.Type
		for i, e := range v {
			av, err := c.convertExpression(file, e.Value, selfType, emptyInterface, c.Package.Types, adjuster)
			if err != nil {
				return nilValue, err
			}
			if elType == nil {
				elType = av.Type
			} else if !types.AssignableTo(av.Type, elType) {
				elType = emptyInterface
			}
			sl[i] = av
		}
		if elType == nil {
			elType = emptyInterface
		}
		arType := types.NewArray(elType, int64(len(sl)))
		return newValue(arType, KindSlice, sl, pos), nil
	}
}

// GetValue returns a plain Go value for the given annotation value. Scalars
// map to their obvious representation. Maps become map[interface{}]interface{}
// and structs are built with reflect.StructOf. If forceArray is true, slice
// values are returned as arrays so that the result is usable as a map key.
func (c *Context) GetValue(av AnnotationValue, forceArray bool) interface{} {
	switch av.Kind {
	case KindMap:
		mp := map[interface{}]interface{}{}
		for _, entry := range av.AsMap() {
			k := c.GetValue(entry.Key, true)
			mp[k] = c.GetValue(entry.Value, false)
		}
		return mp
	case KindSlice:
		s := av.AsSlice()
		sl := make([]interface{}, len(s))
		for i, v := range s {
			sl[i] = c.GetValue(v, true)
		}
		if forceArray {
			return asArray(reflect.ValueOf(sl)).Interface()
		}
		return sl
	case KindStruct:
		s := av.AsStruct()
		fields := make([]reflect.StructField, 0, len(s))
		vals := map[string]interface{}{}
		exported := true
		for _, entry := range s {
			v := c.GetValue(entry.Value, forceArray)
			name := entry.Field.Name()
			vals[name] = v
			if !isExported(name) {
				exported = false
				continue
			}
			ft := reflect.TypeOf(v)
			if ft == nil {
				ft = typeOfEmptyInterface
			}
			fields = append(fields, reflect.StructField{
				Name: name,
				Type: ft,
			})
		}
		if !exported {
			// reflect.StructOf cannot build types with unexported fields;
			// the result only needs to be comparable, so a stable string
			// stands in
			return fmt.Sprintf("%v", vals)
		}
		strct := reflect.New(reflect.StructOf(fields)).Elem()
		for name, val := range vals {
			if val == nil {
				continue
			}
			strct.FieldByName(name).Set(reflect.ValueOf(val))
		}
		return strct.Interface()

	default:
		return av.Value
	}
}

func isExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		r = rune(name[0])
	}
	return unicode.IsUpper(r)
}

func canAssignIndirect(sourceType, targetType, selfType types.Type) types.Type {
	for {
		if assignable(sourceType, targetType, selfType, false) {
			return targetType
		}
		if p, ok := targetType.Underlying().(*types.Pointer); ok {
			targetType = p.Elem()
		} else {
			return nil
		}
	}
}

func (c *Context) convertType(file *ast.File, t parser.Type, adjuster posAdjuster) (types.Type, error) {
	switch {
	case t.IsMap():
		k, err := c.convertType(file, t.Key(), adjuster)
		if err != nil {
			return nil, err
		}
		v, err := c.convertType(file, t.Elem(), adjuster)
		if err != nil {
			return nil, err
		}
		return types.NewMap(k, v), nil

	case t.IsArray():
		exptyp, v, _, err := c.getExpressionValue(file, t.Len(), adjuster)
		if err != nil {
			return nil, err
		}
		pos := adjuster.adjustPosition(t.Len().Pos())
		var l int64
		if i, ok := v.(int64); ok {
			if i < 0 {
				return nil, NewErrorWithPosition(pos, errors.Newf("array bound is negative: %v", v))
			}
			l = i
		} else if u, ok := v.(uint64); ok {
			if u > math.MaxInt64 {
				return nil, NewErrorWithPosition(pos, errors.Newf("array bound overflows int64: %v", v))
			}
			l = int64(u)
		} else {
			return nil, NewErrorWithPosition(pos, errors.Newf("array bound must be integer type; got %v", exptyp))
		}

		e, err := c.convertType(file, t.Elem(), adjuster)
		if err != nil {
			return nil, err
		}
		return types.NewArray(e, l), nil

	case t.IsSlice():
		e, err := c.convertType(file, t.Elem(), adjuster)
		if err != nil {
			return nil, err
		}
		return types.NewSlice(e), nil

	case t.IsPointer():
		e, err := c.convertType(file, t.Elem(), adjuster)
		if err != nil {
			return nil, err
		}
		return types.NewPointer(e), nil

	case t.IsEmptyInterface():
		return emptyInterface, nil

	case t.IsEmptyStruct():
		return emptyStruct, nil

	default:
		if t.Name().PackageAlias == "" {
			switch t.Name().Name {
			case "string":
				return typeString, nil
			case "bool":
				return typeBool, nil
			case "byte":
				return typeUint8, nil
			case "rune":
				return typeInt32, nil
			case "int":
				return typeInt, nil
			case "int8":
				return typeInt8, nil
			case "int16":
				return typeInt16, nil
			case "int32":
				return typeInt32, nil
			case "int64":
				return typeInt64, nil
			case "uint":
				return typeUint, nil
			case "uint8":
				return typeUint8, nil
			case "uint16":
				return typeUint16, nil
			case "uint32":
				return typeUint32, nil
			case "uint64":
				return typeUint64, nil
			case "float32":
				return typeFloat32, nil
			case "float64":
				return typeFloat64, nil
			case "complex64":
				return typeComplex64, nil
			case "complex128":
				return typeComplex128, nil
			case "uintptr":
				return typeUintptr, nil
			}
		}
		_, obj, err := c.resolveSymbol(file, t.Name(), adjuster)
		if err != nil {
			return nil, err
		}
		return obj.Type(), nil
	}
}

func getUnderlyingType(t types.Type) (named types.Type, underlying types.Type) {
	nt := t
	for {
		t = nt.Underlying()
		if p, ok := t.(*types.Pointer); ok {
			nt = p.Elem()
		} else {
			break
		}
	}
	return nt, t
}

var typeOfEmptyInterface = reflect.TypeOf((*interface{})(nil)).Elem()

func asArray(slice reflect.Value) reflect.Value {
	if slice.Kind() != reflect.Slice {
		panic(fmt.Sprintf("argument must be a slice, instead was %v", slice.Type()))
	}

	elemType := slice.Type().Elem()
	if elemType.Kind() == reflect.Slice {
		// Since purpose of converting to array is to use as map key, we must
		// recursively convert contents when elements are also slices. But then
		// we cannot necessarily compute a single element type, since the
		// lengths of nested slices may have heterogenous lengths (and arrays
		// with different lengths are necessarily different types, regardless of
		// whether they have the same element type or not). So for this case, we
		// use interface{} as the element type of the result
		elemType = typeOfEmptyInterface
	}

	array := reflect.New(reflect.ArrayOf(slice.Len(), elemType)).Elem()
	for i := 0; i < slice.Len(); i++ {
		e := slice.Index(i)
		if e.Kind() == reflect.Slice {
			e = asArray(e)
		}
		array.Index(i).Set(e)
	}
	return array
}
