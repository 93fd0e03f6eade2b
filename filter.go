package exchange

// Filter is a hook that wraps the exchange of a single request.
//
//	func timing(req *exchange.Request, next exchange.ExchangeFunc) (*exchange.Response, error) {
//	    start := time.Now()
//	    resp, err := next(req)
//	    log.Printf("%s took %v", req.Name(), time.Since(start))
//	    return resp, err
//	}
//
// The next parameter is the rest of the chain. Filters can:
//   - Read the request attributes
//   - Add headers, or pass a copy of the request made with WithContext
//   - Inspect the response after calling next
//   - Short-circuit by returning without calling next
type Filter func(req *Request, next ExchangeFunc) (*Response, error)

// chainFilters combines filters around final.
// The first filter in the slice is the outer-most one (runs first).
func chainFilters(filters []Filter, final ExchangeFunc) ExchangeFunc {
	chain := final
	for i := len(filters) - 1; i >= 0; i-- {
		current := filters[i]
		next := chain
		chain = func(req *Request) (*Response, error) {
			return current(req, next)
		}
	}
	return chain
}

// WithFilters wraps t so that every exchange runs through filters first.
func WithFilters(t Transport, filters ...Filter) Transport {
	if len(filters) == 0 {
		return t
	}
	fs := append([]Filter(nil), filters...)
	return ExchangeFunc(func(req *Request) (*Response, error) {
		return chainFilters(fs, t.Exchange)(req)
	})
}
