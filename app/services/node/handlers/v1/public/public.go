// Package public maintains the group of handlers any wallet, explorer,
// or monitoring client calls: the node's stable query surface plus
// submit_tx and the event stream.
package public

import (
	"context"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/carbonchain/node/foundation/blockchain/chainmodel"
	"github.com/carbonchain/node/foundation/blockchain/chainerr"
	"github.com/carbonchain/node/foundation/events"
	"github.com/carbonchain/node/foundation/node"
	"github.com/carbonchain/node/foundation/web"
	"github.com/carbonchain/node/foundation/web/errs"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers groups the public v1 endpoints.
type Handlers struct {
	Log  *zap.SugaredLogger
	Node *node.Node
	WS   websocket.Upgrader
	Evts *events.Events
}

// Events upgrades to a web socket and streams every ChainEvent published
// for the life of the connection.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, open := <-ch:
			if !open {
				return nil
			}
			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Tip answers tip() → (height, hash, cumulative_work).
func (h Handlers) Tip(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Node.Tip(), http.StatusOK)
}

// GetBlockByHeight answers get_block(height).
func (h Handlers) GetBlockByHeight(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	height, err := strconv.ParseUint(web.Param(r, "height"), 10, 32)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	block, ok := h.Node.GetBlockByHeight(uint32(height))
	if !ok {
		return errs.NewTrusted(chainerr.New(chainerr.UnknownParent, chainerr.CodeUnknownParent, "no block at that height"), http.StatusNotFound)
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}

// GetBlockByHash answers get_block(hash).
func (h Handlers) GetBlockByHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash, err := parseHash(web.Param(r, "hash"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	block, ok := h.Node.GetBlockByHash(hash)
	if !ok {
		return errs.NewTrusted(chainerr.New(chainerr.UnknownParent, chainerr.CodeUnknownParent, "unknown block hash"), http.StatusNotFound)
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}

// GetTx answers get_tx(txid).
func (h Handlers) GetTx(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	txid, err := parseHash(web.Param(r, "txid"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	tx, ok := h.Node.GetTx(txid)
	if !ok {
		return errs.NewTrusted(chainerr.New(chainerr.Malformed, chainerr.CodeMalformedEncoding, "unknown txid"), http.StatusNotFound)
	}

	return web.Respond(ctx, w, tx, http.StatusOK)
}

// GetUTXO answers get_utxo(OutPoint).
func (h Handlers) GetUTXO(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	txid, err := parseHash(web.Param(r, "txid"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	index, err := strconv.ParseUint(web.Param(r, "index"), 10, 32)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	out, ok := h.Node.GetUTXO(chainmodel.OutPoint{TxID: txid, Index: uint32(index)})
	if !ok {
		return errs.NewTrusted(chainerr.New(chainerr.Conflict, chainerr.CodeUnknownUTXO, "outpoint not spendable"), http.StatusNotFound)
	}

	return web.Respond(ctx, w, out, http.StatusOK)
}

// Balance answers balance(address).
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := web.Param(r, "address")

	resp := struct {
		Address string `json:"address"`
		Balance uint64 `json:"balance"`
	}{
		Address: address,
		Balance: h.Node.Balance(address),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// UTXOs answers utxos(address).
func (h Handlers) UTXOs(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := web.Param(r, "address")
	return web.Respond(ctx, w, h.Node.UTXOs(address), http.StatusOK)
}

// Certificate answers certificate(id).
func (h Handlers) Certificate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id := web.Param(r, "id")

	cert, ok := h.Node.Certificate(id)
	if !ok {
		return errs.NewTrusted(chainerr.New(chainerr.InvalidTx, chainerr.CodeMissingCertificate, "unknown certificate id"), http.StatusNotFound)
	}

	return web.Respond(ctx, w, cert, http.StatusOK)
}

// Project answers project(id).
func (h Handlers) Project(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id := web.Param(r, "id")

	proj, ok := h.Node.Project(id)
	if !ok {
		return errs.NewTrusted(chainerr.New(chainerr.InvalidTx, chainerr.CodeInvalidCertificateID, "unknown project id"), http.StatusNotFound)
	}

	return web.Respond(ctx, w, proj, http.StatusOK)
}

// MempoolInfo answers mempool_info().
func (h Handlers) MempoolInfo(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Node.MempoolInfo(), http.StatusOK)
}

// SubmitTx answers submit_tx(bytes) → txid | error.
func (h Handlers) SubmitTx(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var payload submitTxRequest
	if err := web.Decode(r, &payload); err != nil {
		return err
	}

	raw, err := hex.DecodeString(payload.Raw)
	if err != nil {
		return errs.NewTrusted(chainerr.New(chainerr.Malformed, chainerr.CodeMalformedEncoding, "raw is not valid hex"), http.StatusBadRequest)
	}

	txid, err := h.Node.SubmitTx(raw)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, submitTxResponse{TxID: txid}, http.StatusOK)
}

// parseHash decodes a 64-character hex string into a chainmodel.Hash.
func parseHash(s string) (chainmodel.Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return chainmodel.Hash{}, chainerr.New(chainerr.Malformed, chainerr.CodeMalformedEncoding, "not valid hex")
	}

	var h chainmodel.Hash
	if len(b) != len(h) {
		return chainmodel.Hash{}, chainerr.New(chainerr.Malformed, chainerr.CodeMalformedEncoding, "wrong hash length")
	}
	copy(h[:], b)

	return h, nil
}
