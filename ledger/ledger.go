// Package ledger records credential anchors, revocations and DID controllers.
package ledger

//go:generate mockgen -source=ledger.go -destination=mock/mock_ledger.go -package=mock

import (
	"context"
	"errors"
)

var (
	// ErrNoBackend is returned by reads on a ledger that has no chain connection.
	ErrNoBackend = errors.New("ledger has no backend")
	// ErrRevocationUnsupported is returned when the ledger cannot revoke.
	ErrRevocationUnsupported = errors.New("ledger does not support revocation")
)

// AnchorResult describes the transaction that anchored a credential hash.
type AnchorResult struct {
	Success bool   `json:"success"`
	TxHash  string `json:"txHash"`
	// RawTx is the hex RLP encoding of the signed transaction, when one was built.
	RawTx string `json:"rawTx,omitempty"`
}

// Ledger is the on-chain registry consulted during issuance and verification.
type Ledger interface {
	IsRevoked(ctx context.Context, hash string) (bool, error)
	AnchorCredential(ctx context.Context, hash, address string) (*AnchorResult, error)
	RegisterIdentity(ctx context.Context, did, address string) error
	// GetController returns the controller address registered for did and
	// whether one exists.
	GetController(ctx context.Context, did string) (string, bool, error)
}

// Revoker is implemented by ledgers that accept revocations from issuers.
type Revoker interface {
	RevokeCredential(ctx context.Context, hash string) error
}
