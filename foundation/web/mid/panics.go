package mid

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/carbonchain/node/foundation/web"
)

// Panics recovers a panicking handler (a nil-pointer bug in a new
// handler, say) into an error so the service keeps serving other
// requests instead of crashing the process.
func Panics() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("panic: %v: %s", rec, debug.Stack())
				}
			}()

			return handler(ctx, w, r)
		}

		return h
	}

	return m
}
