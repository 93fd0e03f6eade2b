package middleware

import (
	"github.com/google/uuid"

	"github.com/jsxtech/exchange"
)

// RequestIDHeader is the header set by RequestID.
const RequestIDHeader = "X-Request-ID"

// RequestIDAttribute is the request attribute RequestID reads an explicit ID from.
const RequestIDAttribute = "request_id"

// RequestID creates a filter that sets the X-Request-ID header.
//
// The ID is taken from the request_id attribute when the call supplies one,
// otherwise a random UUID is used. A header already set on the request wins.
func RequestID() exchange.Filter {
	return func(req *exchange.Request, next exchange.ExchangeFunc) (*exchange.Response, error) {
		if req.Header.Get(RequestIDHeader) == "" {
			id := uuid.New().String()
			if v, ok := req.Attribute(RequestIDAttribute); ok {
				if s, ok := v.(string); ok && s != "" {
					id = s
				}
			}
			req.Header.Set(RequestIDHeader, id)
		}
		return next(req)
	}
}
