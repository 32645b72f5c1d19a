package autogo

import "fmt"

//go:generate autogo gen github.com/autogo-dev/autogo

// Value is an annotation for interface types that describe immutable values.
// The annotation processor generates a struct implementation of the interface,
// along with a constructor function, in the same package. For example:
//
//	// @autogo.Value
//	type Animal interface {
//	    Name() string
//	    Legs() int
//	}
//
// Running the processor on the package containing this interface generates an
// implementation type and a NewAnimal constructor whose parameters appear in
// the same order as the interface's methods.
//
// The interface's methods define the value's properties: each method must take
// no arguments and return a single value. Methods named String, Equal, and
// Hash with the generated signatures are implemented by the generated type and
// are not treated as properties. A method that returns the value's builder
// interface (see ValueBuilder) is implemented as a copying conversion to a
// builder.
//
// @Annotation{AllowedElements: Interfaces}
type Value bool

// ValueBuilder is an annotation for interface types that describe builders for
// value interfaces in the same package. A builder interface must have exactly
// one method with no arguments that returns the value type; its other methods
// must be setters (one argument, returning the builder type), getters (no
// arguments, returning a property's type), or property builders (returning a
// builder for a property's type).
//
//	// @autogo.ValueBuilder
//	type AnimalBuilder interface {
//	    Name(string) AnimalBuilder
//	    Legs(int) AnimalBuilder
//	    Build() Animal
//	}
//
// At most one builder interface may correspond to a given value type.
//
// @Annotation{AllowedElements: Interfaces}
type ValueBuilder bool

// Nullable is an annotation for methods of value interfaces. It marks the
// corresponding property as permitting nil, which exempts it from the nil
// check in the generated constructor and from the required-property check in
// a generated builder. It may only be used on properties whose type can
// actually hold nil: pointers, slices, maps, channels, functions, and
// interfaces.
//
// @Annotation{AllowedElements: InterfaceMethods}
type Nullable bool

// Factory is an annotation for constructor functions. The processor generates
// a factory type whose Create method invokes the annotated function. Some of
// the function's parameters can be designated as provided: instead of being
// passed to Create, they are supplied by provider functions given to the
// factory's own constructor.
//
//	// @autogo.Factory{Provided: {"clock"}}
//	func NewScheduler(clock func() time.Time, name string) *Scheduler { ... }
//
// generates
//
//	type SchedulerFactory struct { ... }
//	func NewSchedulerFactory(clock func() func() time.Time) *SchedulerFactory
//	func (f *SchedulerFactory) Create(name string) *Scheduler
//
// @Annotation{AllowedElements: Functions}
type Factory struct {
	// Name overrides the generated factory type's name. It must be a legal
	// exported Go identifier. When empty, the name is derived from the
	// function's return type with a "Factory" suffix.
	Name string

	// Provided lists the names of function parameters that are supplied by
	// the factory rather than by callers of Create. Each entry is a parameter
	// name, optionally followed by a colon and a qualifier; parameters with
	// the same type and qualifier share a single provider.
	Provided []string

	// Embed names a struct type that the generated factory embeds. The type
	// must either have a usable zero value or offer a single no-argument
	// constructor function in its package.
	Embed TypeRef

	// Implements lists interface types that the generated factory must
	// satisfy.
	Implements []TypeRef
}

// Service is an annotation for concrete types that are implementations of one
// or more service interfaces. The processor generates an init function that
// registers the type under each interface via RegisterService, so that
// callers can discover implementations at runtime with ServicesFor.
//
//	// @autogo.Service{Implements: {codec.Encoder}}
//	type JSONEncoder struct { ... }
//
// @Annotation{AllowedElements: ConcreteTypes}
type Service struct {
	// Implements lists the interface types to register the annotated type
	// under. The annotated type, or a pointer to it, must satisfy every
	// listed interface.
	//
	// @Required
	Implements []TypeRef
}

// Annotation is a meta-annotation. Other types that will be used as
// annotations should be annotated with it. For example:
//
//	// @autogo.Annotation
//	type MyNewAnnotation struct {
//	    Foo int
//	    Bar []string
//	}
//
// Annotations may appear on top-level elements (and fields and methods of
// top-level types). Annotations on constructs defined inside of function and
// method bodies (types and fields thereof) are not allowed.
//
// @Annotation{AllowedElements: Types}
type Annotation struct {
	// AllowedElements indicates the kinds of elements that can be annotated.
	// If it is empty, the annotation can be used on any kind of element.
	AllowedElements []ElementType

	// AllowRepeated indicates whether an element can have more than one
	// annotation of this type on it.
	AllowRepeated bool
}

// DefaultValue is an annotation that indicates a default value for an
// annotation field. It is not valid to use on types or methods. It is also not
// valid to use with fields in structs that are not themselves annotations.
//
// @Annotation{AllowedElements: AnnotationFields}
type DefaultValue struct {
	// @Required
	Value SelfType
}

// Required is an annotation that indicates an annotation field that must be
// defined in an annotation. When this annotation is not present, fields that
// are not defined in a given annotation will use the zero value for the
// field's type or a DefaultValue if that annotation is present. But when this
// annotation is present, they may not assume a default value; the annotation
// must explicitly define a value.
//
// @Annotation{AllowedElements: AnnotationFields}
type Required bool

// ElementType is an enumeration of the kinds of elements that can be annotated.
type ElementType int

const (
	// AnnotationTypes are type elements that are themselves annotations (e.g.
	// annotated with @autogo.Annotation).
	//
	// Only top-level, named types can be annotated. Types defined inside of
	// functions and methods cannot be annotated.
	AnnotationTypes ElementType = iota

	// AnnotationFields are fields of annotation types that are structs. Only
	// fields of top-level, named types can be annotated.
	AnnotationFields

	// Types are type elements. This is a superset of AnnotationTypes and is
	// also the union of ConcreteTypes and Interfaces.
	//
	// Only top-level, named types can be annotated. Types defined inside of
	// functions and methods cannot be annotated.
	Types

	// ConcreteTypes are type elements that are *not* interfaces. This is a
	// subset of Types. This is the complement of Interfaces. The union of
	// ConcreteTypes and Interfaces is the same as Types.
	//
	// Only top-level, named types can be annotated.
	ConcreteTypes

	// Interfaces are type elements that are defined to be interfaces. This is a
	// subset of Types. This is the complement of ConcreteTypes. The union of
	// ConcreteTypes and Interfaces is the same as Types.
	//
	// Only top-level, named interfaces can be annotated.
	Interfaces

	// Fields are fields of struct type elements. Only fields of top-level,
	// named types can be annotated. Annotations that allow fields will also
	// allow annotation fields (e.g. fields of annotation types).
	Fields

	// Methods are method elements. Only methods of top-level, named types
	// can be annotated.
	Methods

	// InterfaceMethods are the methods that comprise an interface. Only methods
	// of top-level, named interfaces can be annotated.
	InterfaceMethods

	// InterfaceEmbeds are the interface types embedded in another interface.
	// Only the embeds of top-level, named interfaces can be annotated.
	InterfaceEmbeds

	// Functions are top-level, named functions. Methods for named types are
	// functions, too. So an annotation that allows function elements also allows
	// such method elements. However, this only applies to methods that have
	// bodies: interface methods are not allowed unless InterfaceMethods is also
	// used.
	Functions

	// Variables are top-level (e.g. package-level) variables. Variables inside
	// function and method bodies cannot be annotated.
	Variables

	// Constants are top-level (e.g. package-level) constants. Constants that
	// are defined inside of function and method bodies cannot be annotated.
	Constants
)

func (et ElementType) String() string {
	switch et {
	case AnnotationTypes:
		return "annotation types"
	case AnnotationFields:
		return "annotation fields"
	case Types:
		return "types"
	case ConcreteTypes:
		return "concrete types"
	case Interfaces:
		return "interfaces"
	case Fields:
		return "fields"
	case Methods:
		return "methods"
	case InterfaceMethods:
		return "interface methods"
	case InterfaceEmbeds:
		return "interface embeds"
	case Functions:
		return "functions"
	case Variables:
		return "variables"
	case Constants:
		return "constants"
	default:
		return fmt.Sprintf("?%d?", int(et))
	}
}

// TypeRef is a special marker type for annotation fields that reference named
// types. In annotation values, such a field is written as a plain qualified
// identifier that must resolve to a named type:
//
//	// @autogo.Service{Implements: {codec.Encoder}}
//
// The referenced type must not carry type arguments. A generic type is
// referenced in its uninstantiated form; an alias of an instantiation is
// rejected.
type TypeRef interface{}

// AnyType is a special marker type that is used in annotation fields where
// one might use interface{} in an ordinary Go struct. The annotation parser
// allows any kind of value.
//
// The kinds of values that the parser may assign to an AnyType field follow:
//  1. Numeric types: int64, uint64, float64, or complex128
//  2. Character types: string, rune
//  3. Other scalars: bool
//  4. Structs. This is the type used for values that appear to be structs. A
//     value appears to be a struct if it has the shape of a map but all of its
//     keys are unqualified identifiers, in which case the identifiers are
//     taken to be field names. The concrete type of an AnyType with a struct
//     value will be an unnamed struct type.
//  5. Arrays of any supported type. The array's element type will be AnyType
//     if the contents appear heterogenous.
//  6. Maps whose keys and values are of any supported type. Like any other map
//     in the Go language, maps cannot be used as keys in other maps. The map's
//     key and/or value types will be AnyType if they appear heterogenous.
type AnyType interface{}

// SelfType is a special marker type. When an annotation is a struct that
// contains a field of this type, the value of that field will be the same
// type as the annotated type. This can only be used to annotate types and
// fields (in which case it refers to the field's type). It cannot be used
// in annotations on methods.
//
// Note that the kinds of values that can actually be described in an
// annotation are limited. For example, function types can only refer to named
// functions. Channels aren't supported at all.
type SelfType interface{}
