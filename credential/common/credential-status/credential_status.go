// Package credentialstatus consults the ledger for the revocation status of
// credentials whose signature has already been verified.
package credentialstatus

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pilacorp/go-degree-credential/ledger"
)

// Checker looks up credential hashes on a ledger.
type Checker struct {
	ledger ledger.Ledger
	logger *zap.Logger
}

func NewChecker(l ledger.Ledger, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{ledger: l, logger: logger}
}

// Check returns the revocation status of hash. Lookup failures are reported
// in the result with Checked set to false and are never returned as errors.
func (c *Checker) Check(ctx context.Context, hash string) Result {
	if c.ledger == nil {
		return Result{Err: fmt.Errorf("revocation lookup: %w", ledger.ErrNoBackend)}
	}

	revoked, err := c.ledger.IsRevoked(ctx, hash)
	if err != nil {
		c.logger.Warn("revocation lookup failed", zap.String("hash", hash), zap.Error(err))
		return Result{Err: fmt.Errorf("revocation lookup: %w", err)}
	}

	return Result{Revoked: revoked, Checked: true}
}
