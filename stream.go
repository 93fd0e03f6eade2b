package exchange

import "reflect"

// isStreamType reports whether t has the shape of iter.Seq2[R, error]:
// func(yield func(R, error) bool). It returns R.
func isStreamType(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Func || t.NumIn() != 1 || t.NumOut() != 0 {
		return nil, false
	}
	yield := t.In(0)
	if yield.Kind() != reflect.Func || yield.NumIn() != 2 || yield.NumOut() != 1 {
		return nil, false
	}
	if yield.In(1) != errorType || yield.Out(0).Kind() != reflect.Bool {
		return nil, false
	}
	return yield.In(0), true
}

// shapeOf infers the result shape from the first result type of a client
// function. It returns false for types that cannot be a result.
func shapeOf(t reflect.Type) (Shape, bool) {
	switch {
	case t.Implements(futureBinderType):
		return ShapeFuture, true
	case t.Implements(entityMarkerType):
		return ShapeEntity, true
	}
	if _, ok := isStreamType(t); ok {
		return ShapeStream, true
	}
	switch t.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return 0, false
	}
	return ShapeScalar, true
}
