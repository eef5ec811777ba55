package rpc

import (
	"encoding/json"

	"github.com/veloride/settlement-core/internal/ledger"
)

type Request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// Application-level revert codes the settlement node returns for
// deterministic precondition failures. Codes outside this table (and all
// JSON-RPC server errors) are left to the retry classifier.
const (
	codeDuplicateRide   = 1001
	codeInvalidParties  = 1002
	codeInvalidAmount   = 1003
	codeNotActive       = 1004
	codeNotDisputed     = 1005
	codeUnauthorized    = 1006
	codeNotFound        = 1007
	codeDriverIDTaken   = 1008
	codeNotVerified     = 1009
	codeScoreOutOfRange = 1010
	codeTransferFailed  = 1011
)

var revertErrors = map[int]error{
	codeDuplicateRide:   ledger.ErrDuplicateRide,
	codeInvalidParties:  ledger.ErrInvalidParties,
	codeInvalidAmount:   ledger.ErrInvalidAmount,
	codeNotActive:       ledger.ErrNotActive,
	codeNotDisputed:     ledger.ErrNotDisputed,
	codeUnauthorized:    ledger.ErrUnauthorized,
	codeNotFound:        ledger.ErrNotFound,
	codeDriverIDTaken:   ledger.ErrDriverIDTaken,
	codeNotVerified:     ledger.ErrNotVerified,
	codeScoreOutOfRange: ledger.ErrScoreOutOfRange,
	codeTransferFailed:  ledger.ErrTransferFailed,
}

// receiptDTO is the wire shape of a transition receipt.
type receiptDTO struct {
	Sequence int64  `json:"sequence"`
	TxHash   string `json:"tx_hash"`
	EscrowID int64  `json:"escrow_id,omitempty"`
	Time     string `json:"time"` // RFC 3339
}
