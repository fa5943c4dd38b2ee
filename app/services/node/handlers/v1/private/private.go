// Package private maintains the group of handlers used for node-to-node
// traffic: block relay between peers.
package private

import (
	"context"
	"encoding/hex"
	"net/http"

	"github.com/carbonchain/node/foundation/blockchain/chainerr"
	"github.com/carbonchain/node/foundation/node"
	"github.com/carbonchain/node/foundation/web"
	"go.uber.org/zap"
)

// Handlers groups the private v1 endpoints.
type Handlers struct {
	Log  *zap.SugaredLogger
	Node *node.Node
}

// Tip answers the same tip() query as the public route, for a peer
// deciding whether it needs to request blocks from this node.
func (h Handlers) Tip(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Node.Tip(), http.StatusOK)
}

// submitBlockRequest carries a hex-encoded canonical block encoding.
type submitBlockRequest struct {
	Raw string `json:"raw" validate:"required,hexadecimal"`
}

// SubmitBlock answers submit_block(bytes) → accepted | rejected(reason).
func (h Handlers) SubmitBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var payload submitBlockRequest
	if err := web.Decode(r, &payload); err != nil {
		return err
	}

	raw, err := hex.DecodeString(payload.Raw)
	if err != nil {
		return chainerr.New(chainerr.Malformed, chainerr.CodeMalformedEncoding, "raw is not valid hex")
	}

	if err := h.Node.SubmitBlock(raw); err != nil {
		h.Log.Infow("submit block rejected", "traceid", v.TraceID, "ERROR", err)

		if ce, ok := chainerr.As(err); ok && ce.Kind == chainerr.IntegrityFault {
			return web.NewShutdownError(ce.Error())
		}

		return err
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "accepted",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
