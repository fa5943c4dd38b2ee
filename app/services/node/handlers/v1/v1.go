// Package v1 contains the full set of handler functions and routes
// supported by the v1 web API, wired against a *node.Node, the UTXO/
// certificate-ledger binding this chain uses in place of an
// account-model store.
package v1

import (
	"net/http"

	"github.com/carbonchain/node/app/services/node/handlers/v1/private"
	"github.com/carbonchain/node/app/services/node/handlers/v1/public"
	"github.com/carbonchain/node/foundation/events"
	"github.com/carbonchain/node/foundation/node"
	"github.com/carbonchain/node/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log  *zap.SugaredLogger
	Node *node.Node
	Evts *events.Events
}

// PublicRoutes binds every query/command route a wallet or block
// explorer is expected to call.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:  cfg.Log,
		Node: cfg.Node,
		Evts: cfg.Evts,
		WS:   websocket.Upgrader{},
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/tip", pbl.Tip)
	app.Handle(http.MethodGet, version, "/block/height/:height", pbl.GetBlockByHeight)
	app.Handle(http.MethodGet, version, "/block/hash/:hash", pbl.GetBlockByHash)
	app.Handle(http.MethodGet, version, "/tx/:txid", pbl.GetTx)
	app.Handle(http.MethodGet, version, "/utxo/:txid/:index", pbl.GetUTXO)
	app.Handle(http.MethodGet, version, "/balance/:address", pbl.Balance)
	app.Handle(http.MethodGet, version, "/utxos/:address", pbl.UTXOs)
	app.Handle(http.MethodGet, version, "/certificate/:id", pbl.Certificate)
	app.Handle(http.MethodGet, version, "/project/:id", pbl.Project)
	app.Handle(http.MethodGet, version, "/mempool", pbl.MempoolInfo)
	app.Handle(http.MethodPost, version, "/tx/submit", pbl.SubmitTx)
}

// PrivateRoutes binds the node-to-node route a peer uses to relay a
// mined block.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:  cfg.Log,
		Node: cfg.Node,
	}

	app.Handle(http.MethodGet, version, "/node/tip", prv.Tip)
	app.Handle(http.MethodPost, version, "/node/block/submit", prv.SubmitBlock)
}
