package vc

import (
	"fmt"

	"github.com/pilacorp/go-degree-credential/credential/common/canonical"
	vccrypto "github.com/pilacorp/go-degree-credential/credential/common/crypto"
)

// WithoutProof returns a shallow copy of the credential with the proof removed.
func (c *Credential) WithoutProof() *Credential {
	clone := *c
	clone.Proof = nil
	return &clone
}

// SigningInput returns the canonical JSON bytes covered by the proof.
func (c *Credential) SigningInput() ([]byte, error) {
	data, err := canonical.Canonicalize(c.WithoutProof())
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize credential: %w", err)
	}
	return data, nil
}

// ComputeHash returns the 0x-prefixed Keccak-256 digest of the credential's
// signing input.
func ComputeHash(c *Credential) (string, error) {
	if c == nil {
		return "", fmt.Errorf("credential is nil")
	}

	data, err := c.SigningInput()
	if err != nil {
		return "", err
	}

	return vccrypto.Keccak256Hex(data), nil
}
