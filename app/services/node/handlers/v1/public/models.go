package public

import "github.com/carbonchain/node/foundation/blockchain/chainmodel"

// submitTxRequest carries a hex-encoded canonical transaction encoding:
// submit_tx takes the wire bytes, not a structured object — the
// signature and every other field lives inside the canonical encoding
// itself.
type submitTxRequest struct {
	Raw string `json:"raw" validate:"required,hexadecimal"`
}

// submitTxResponse returns the accepted transaction's id.
type submitTxResponse struct {
	TxID chainmodel.Hash `json:"txid"`
}
