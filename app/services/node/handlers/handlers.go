// Package handlers manages the different versions of the API and the
// debug-only mux.
package handlers

import (
	"expvar"
	"net/http"
	"net/http/pprof"
	"os"

	"github.com/carbonchain/node/app/services/node/handlers/debug/checkgrp"
	v1 "github.com/carbonchain/node/app/services/node/handlers/v1"
	"github.com/carbonchain/node/foundation/events"
	"github.com/carbonchain/node/foundation/node"
	"github.com/carbonchain/node/foundation/web"
	"github.com/carbonchain/node/foundation/web/mid"
	"go.uber.org/zap"
)

// MuxConfig contains all the mandatory systems required by handlers.
type MuxConfig struct {
	Shutdown chan os.Signal
	Log      *zap.SugaredLogger
	Node     *node.Node
	Evts     *events.Events
}

// PublicMux constructs a http.Handler with every wallet/explorer-facing
// route defined.
func PublicMux(cfg MuxConfig) http.Handler {
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(),
		mid.Cors("*"),
		mid.Panics(),
	)

	v1.PublicRoutes(app, v1.Config{
		Log:  cfg.Log,
		Node: cfg.Node,
		Evts: cfg.Evts,
	})

	return app
}

// PrivateMux constructs a http.Handler with every node-to-node route
// defined.
func PrivateMux(cfg MuxConfig) http.Handler {
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(),
		mid.Panics(),
	)

	v1.PrivateRoutes(app, v1.Config{
		Log:  cfg.Log,
		Node: cfg.Node,
	})

	return app
}

// debugStandardLibraryMux registers the standard library's own debug
// endpoints into a mux that bypasses http.DefaultServeMux — using the
// default mux would let an imported dependency register a handler into
// this service without it being a deliberate choice.
func debugStandardLibraryMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	return mux
}

// DebugMux registers the standard library debug routes plus this
// service's readiness/liveness checks.
func DebugMux(build string, log *zap.SugaredLogger) http.Handler {
	mux := debugStandardLibraryMux()

	cgh := checkgrp.Handlers{
		Build: build,
		Log:   log,
	}
	mux.HandleFunc("/debug/readiness", cgh.Readiness)
	mux.HandleFunc("/debug/liveness", cgh.Liveness)

	return mux
}
