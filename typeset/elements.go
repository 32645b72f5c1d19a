package typeset

import (
	"go/types"

	"github.com/cockroachdb/errors"
)

// ObjectKind describes a types.Object in the terms used by diagnostics.
func ObjectKind(obj types.Object) string {
	switch obj := obj.(type) {
	case *types.PkgName:
		return "package"
	case *types.TypeName:
		return "type"
	case *types.Var:
		if obj.IsField() {
			return "field"
		}
		return "variable"
	case *types.Func:
		if obj.Type().(*types.Signature).Recv() != nil {
			return "method"
		}
		return "function"
	case *types.Const:
		return "constant"
	case *types.Label:
		return "label"
	case *types.Builtin:
		return "builtin"
	case *types.Nil:
		return "nil"
	case nil:
		return "nothing"
	default:
		return "object"
	}
}

// AsPackage returns obj as a package name, or an error describing what it
// actually is.
func AsPackage(obj types.Object) (*types.PkgName, error) {
	if p, ok := obj.(*types.PkgName); ok {
		return p, nil
	}
	return nil, errors.Newf("%s is a %s, not a package", objectName(obj), ObjectKind(obj))
}

// AsTypeName returns obj as a type name, or an error describing what it
// actually is.
func AsTypeName(obj types.Object) (*types.TypeName, error) {
	if t, ok := obj.(*types.TypeName); ok {
		return t, nil
	}
	return nil, errors.Newf("%s is a %s, not a type", objectName(obj), ObjectKind(obj))
}

// AsVar returns obj as a variable or field, or an error describing what it
// actually is.
func AsVar(obj types.Object) (*types.Var, error) {
	if v, ok := obj.(*types.Var); ok {
		return v, nil
	}
	return nil, errors.Newf("%s is a %s, not a variable", objectName(obj), ObjectKind(obj))
}

// AsFunc returns obj as a function or method, or an error describing what it
// actually is.
func AsFunc(obj types.Object) (*types.Func, error) {
	if f, ok := obj.(*types.Func); ok {
		return f, nil
	}
	return nil, errors.Newf("%s is a %s, not a function", objectName(obj), ObjectKind(obj))
}

func objectName(obj types.Object) string {
	if obj == nil {
		return "<nil>"
	}
	if obj.Name() == "" {
		return "<unnamed>"
	}
	return obj.Name()
}
