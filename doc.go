// Package exchange builds HTTP clients from declarations.
//
// A client is declared once, either as a struct of tagged func fields or as
// a list of Declaration values, and a ProxyFactory turns it into callables
// that send requests through a Transport:
//
//	type Greetings struct {
//	    Get func(ctx context.Context) (string, error) `http:"GET /greeting"`
//	}
//
//	t, _ := exchange.NewHTTPTransport("https://api.example.com")
//	svc, err := exchange.CreateClient[Greetings](exchange.NewProxyFactory(t))
//	...
//	greeting, err := svc.Get(ctx)
//
// The same declaration can deliver its result in four shapes: blocking
// (R, error), an awaitable *Future[R], a one-shot iter.Seq2[R, error], or an
// *Entity[R] carrying status and headers. All four are adapters over a
// single Pending result.
//
// Each call sends exactly one request. There are no retries and no caching.
package exchange
