package exchange

import (
	"net/http"
	"reflect"
)

// Entity is the result of a call with the entity shape: the decoded body
// together with the response status and headers.
//
// A non-2xx status is not an error for this shape. When the body of a non-2xx
// response cannot be decoded into T, Body is left at its zero value.
type Entity[T any] struct {
	StatusCode int
	Header     http.Header
	Body       T
}

// IsSuccess reports whether the status is 2xx.
func (e *Entity[T]) IsSuccess() bool {
	return isSuccess(e.StatusCode)
}

func (e *Entity[T]) entity() {}

type entityMarker interface {
	entity()
}

var entityMarkerType = reflect.TypeFor[entityMarker]()
