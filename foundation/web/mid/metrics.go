package mid

import (
	"context"
	"expvar"
	"net/http"
	"runtime"

	"github.com/carbonchain/node/foundation/web"
)

// m holds the service-wide counters metrics exposes via expvar, read at
// /debug/vars alongside the standard library's own runtime counters.
var m = struct {
	req  *expvar.Int
	err  *expvar.Int
	goro *expvar.Int
}{
	req:  expvar.NewInt("requests"),
	err:  expvar.NewInt("errors"),
	goro: expvar.NewInt("goroutines"),
}

// Metrics updates program counters using the expvar package, a
// low-overhead approach to basic request/error/goroutine counts.
func Metrics() web.Middleware {
	mw := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)

			m.req.Add(1)
			if err != nil {
				m.err.Add(1)
			}
			m.goro.Set(int64(runtime.NumGoroutine()))

			return err
		}

		return h
	}

	return mw
}
