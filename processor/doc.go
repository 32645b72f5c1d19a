// Package processor contains the runtime library used by code that processes
// annotations.
//
// This package defines an interface, Processor, which is implemented by things
// that can process annotations.
//
//	func(ctx *Context, output processor.OutputFactory) error
//
// Processing is generally expected to validate annotation values and,
// optionally, generate code that is derived from the annotation values.
//
// Problems with the processed source should be reported through the context's
// Reporter rather than returned: reported diagnostics carry source positions,
// and processing continues with other elements and packages so that users see
// every problem in one run. An error returned from a processor aborts the run
// and should be reserved for failures of the processor itself, such as an
// output that cannot be written.
//
// The OutputFactory passed to the processor is used to create generated
// files. The factory places each output in a directory determined by the
// package it was generated for, so processors only choose file names. The
// returned writer can be used with the WriteGoFile function in the
// github.com/jhump/gopoet package, making it easy to author Go source code
// from an annotation processor.
//
// The remaining APIs and types in this package can be broken into three main
// categories: processor registration, processor invocation, and mirrors.
//
// # Processor Registration
//
// Processor implementations are registered under a name with the
// RegisterProcessor function, usually from an init function in the package
// that implements them. Registered processors can be queried individually
// with RegisteredProcessor or all together with AllRegisteredProcessors, and
// their names listed with ProcessorNames. The autogo command runs registered
// processors; custom tools can do the same by importing the packages that
// register the processors they want and calling ProcessAll.
//
// # Processor Invocation
//
// The package includes functions and types used to invoke processors. Key
// among them is Config. This struct defines the packages that will be
// processed, the processors that will be invoked, the output factory (which
// controls where generated files are actually written), and the Reporter that
// accumulates diagnostics.
//
// After a Config is constructed, its Execute method is used to actually
// invoke the configured processors. This involves parsing the source code for
// all packages to process, performing full type analysis on the sources, and
// then extracting annotations. Once annotations are extracted, they are
// passed to each configured processor, via a Context, one package at a time.
//
// There are also some "shortcut" functions in this package: Process and
// ProcessAll. These create a Config from the arguments given, using typical
// values for the other settings, execute it, and fold any accumulated
// diagnostics into the returned error. ProcessAll invokes every processor
// that has been registered with this package.
//
// # Mirrors
//
// The "mirrors" API consists of several key types:
//
// AnnotationMirror: The mirror is a representation of the annotation that
// processors can query. The mirror refers to an AnnotationMetadata instance,
// which describes the annotation type, and to an AnnotationValue instance,
// which describes the actual value.
//
// AnnotationMetadata: The metadata describes the type of an annotation. It
// augments the "go/types" representation of the type by also providing
// resolved values for attributes interesting to an annotation processor, such
// as the allowed element types, whether the annotation can be repeated, and
// which fields are required or carry declared defaults.
//
// AnnotationValue: Since it is possible that the annotation types are not
// "known" to a processor (e.g. not compiled and linked into the processor
// implementation), these values must expose the data in a way that is similar
// to reflection, where the consumer need not know the actual type(s) ahead of
// time. Unlike reflect.Value, an AnnotationValue can only represent a valid
// annotation value (not all values and types in Go are valid as annotation
// values). An AnnotationValue also includes information about the position in
// source code where the values were defined (to assist with good error
// reporting). Finally, an AnnotationValue that refers to other program
// elements (such as a constant, a function, or a named type) does so via
// values that implement types.Object (in particular, *types.Const for
// constants, *types.Func for functions, and *types.TypeName for type
// references).
//
// AnnotatedElement: An annotated element is an element in Go source that has
// annotations. This struct provides access to the Go program element via the
// corresponding types.Object as well as references to the element in the
// program AST. It also provides access to AnnotationMirror instances for
// every annotation present on the element.
//
// Processors can inspect the annotated elements and corresponding annotation
// mirrors, to inspect and validate values and/or to generate code derived
// from them. The entry point for this inspection is the Context (provided to
// the processor when it is invoked), which provides several ways to query for
// annotated elements in a package.
package processor
