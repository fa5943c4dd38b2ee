// Package web is a thin layer on top of httptreemux that provides
// context-aware handlers and a middleware chain. Every service binary
// builds one *App and registers its route groups against it; the
// package itself knows nothing about the blockchain domain.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/google/uuid"
)

// Handler is the signature every application handler implements: it
// returns an error instead of writing one directly, so a single
// middleware can centralize error-to-response translation.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// Middleware wraps a Handler to produce a new Handler, the shape every
// cross-cutting concern (logging, panic recovery, CORS) is written
// against.
type Middleware func(Handler) Handler

// ctxKey is an unexported type so Values can't collide with another
// package's context key.
type ctxKey int

const valuesKey ctxKey = 1

// Values carries per-request state set once at the top of the
// middleware chain and read by any handler or middleware further down.
type Values struct {
	TraceID    string
	Now        time.Time
	StatusCode int
}

// GetValues returns the Values stored on ctx by App.Handle's wrapper.
// A handler invoked outside that wrapper (a test calling it directly)
// gets an error rather than a nil-pointer panic.
func GetValues(ctx context.Context) (*Values, error) {
	v, ok := ctx.Value(valuesKey).(*Values)
	if !ok {
		return nil, errors.New("web value missing from context")
	}
	return v, nil
}

// SetStatusCode records the status code a handler responded with, so
// logging middleware further up the chain can report it.
func SetStatusCode(ctx context.Context, statusCode int) error {
	v, err := GetValues(ctx)
	if err != nil {
		return err
	}
	v.StatusCode = statusCode
	return nil
}

// App wraps an httptreemux router with a shutdown channel and a set of
// middleware applied to every route registered on it.
type App struct {
	mux      *httptreemux.ContextMux
	shutdown chan os.Signal
	mw       []Middleware
}

// NewApp constructs an App. shutdown is the channel the OS signal
// handler sends on; SignalShutdown lets a handler trigger the same
// graceful-shutdown path from inside a request (an integrity fault
// detected mid-request, for instance).
func NewApp(shutdown chan os.Signal, mw ...Middleware) *App {
	return &App{
		mux:      httptreemux.NewContextMux(),
		shutdown: shutdown,
		mw:       mw,
	}
}

// ServeHTTP implements http.Handler by delegating to the wrapped mux.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// SignalShutdown tells the service to begin a graceful shutdown, for use
// by a handler that detects a condition (like an IntegrityFault) the
// process cannot safely continue past.
func (a *App) SignalShutdown() {
	a.shutdown <- syscall.SIGTERM
}

// Handle registers a route. group is prefixed to path as "/group/path"
// when non-empty ("v1" groups every blockchain query/command route
// under /v1/...); an empty group registers path as given.
func (a *App) Handle(method string, group string, path string, handler Handler, mw ...Middleware) {
	handler = wrapMiddleware(mw, handler)
	handler = wrapMiddleware(a.mw, handler)

	h := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		v := Values{
			TraceID: uuid.NewString(),
			Now:     time.Now(),
		}
		ctx = context.WithValue(ctx, valuesKey, &v)

		if err := handler(ctx, w, r); err != nil {
			if IsShutdown(err) {
				a.SignalShutdown()
			}
			return
		}
	}

	finalPath := path
	if group != "" {
		finalPath = "/" + group + path
	}

	a.mux.Handle(method, finalPath, h)
}

// Param returns the value of a named path parameter, mirroring
// httptreemux's own accessor so handlers never import httptreemux
// directly.
func Param(r *http.Request, key string) string {
	m := httptreemux.ContextParams(r.Context())
	return m[key]
}

func wrapMiddleware(mw []Middleware, handler Handler) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h := mw[i]
		if h != nil {
			handler = h(handler)
		}
	}
	return handler
}

// respondJSON writes v as a JSON response body with the given status
// code; it is the shared tail of Respond and the error middleware.
func respondJSON(w http.ResponseWriter, v any, statusCode int) error {
	if statusCode == http.StatusNoContent {
		w.WriteHeader(statusCode)
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_, err = w.Write(data)
	return err
}
