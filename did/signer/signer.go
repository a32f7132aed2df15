package signer

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	vccrypto "github.com/pilacorp/go-degree-credential/credential/common/crypto"
)

// Signer produces 65-byte r||s||v secp256k1 signatures (v in {0,1}) over
// 32-byte digests.
type Signer interface {
	Sign(hash []byte) ([]byte, error)
	GetAddress() string
}

// DefaultSigner signs with a private key held in memory.
type DefaultSigner struct {
	priv    *ecdsa.PrivateKey
	address string
}

// NewDefaultSigner parses a hex private key, with or without the 0x prefix.
func NewDefaultSigner(privHex string) (*DefaultSigner, error) {
	priv, err := vccrypto.ParsePrivateKey(privHex)
	if err != nil {
		return nil, err
	}
	return NewDefaultSignerFromKey(priv), nil
}

func NewDefaultSignerFromKey(priv *ecdsa.PrivateKey) *DefaultSigner {
	return &DefaultSigner{
		priv:    priv,
		address: crypto.PubkeyToAddress(priv.PublicKey).Hex(),
	}
}

func (s *DefaultSigner) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}

	signature, err := crypto.Sign(hash, s.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	if len(signature) != vccrypto.SignatureLength {
		return nil, fmt.Errorf("invalid signature length: expected 65 bytes, got %d", len(signature))
	}

	return signature, nil
}

// GetAddress returns the checksummed address of the key.
func (s *DefaultSigner) GetAddress() string {
	return s.address
}

// PublicKeyHex returns the 0x-prefixed compressed public key.
func (s *DefaultSigner) PublicKeyHex() string {
	pub := secp256k1.PrivKeyFromBytes(crypto.FromECDSA(s.priv)).PubKey()
	return "0x" + hex.EncodeToString(pub.SerializeCompressed())
}

// PrivateKeyHex returns the 0x-prefixed private key.
func (s *DefaultSigner) PrivateKeyHex() string {
	return vccrypto.PrivateKeyHex(s.priv)
}

// TxSignerFn creates a bind.SignerFn-compatible function using a generic Signer.
// It hashes the transaction with EIP-155 and signs it via the provided Signer.
func TxSignerFn(chainID *big.Int, s Signer) func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
	return func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
		eip155Signer := types.NewEIP155Signer(chainID)
		h := eip155Signer.Hash(tx)
		sig, err := s.Sign(h.Bytes())
		if err != nil {
			return nil, err
		}

		return tx.WithSignature(eip155Signer, sig)
	}
}

var addressCheckDigest = crypto.Keccak256([]byte("degree signer address check"))

// CheckAddress signs a fixed digest with s and confirms the recovered key
// controls s.GetAddress().
func CheckAddress(s Signer) error {
	sig, err := s.Sign(addressCheckDigest)
	if err != nil {
		return fmt.Errorf("failed to sign address check: %w", err)
	}
	if len(sig) != vccrypto.SignatureLength {
		return fmt.Errorf("invalid signature length: expected %d bytes, got %d", vccrypto.SignatureLength, len(sig))
	}

	pub, err := crypto.SigToPub(addressCheckDigest, sig)
	if err != nil {
		return fmt.Errorf("failed to recover signer: %w", err)
	}
	recovered := crypto.PubkeyToAddress(*pub)

	if !common.IsHexAddress(s.GetAddress()) || recovered != common.HexToAddress(s.GetAddress()) {
		return fmt.Errorf("signer address mismatch: configured %s, key controls %s", s.GetAddress(), recovered.Hex())
	}
	return nil
}
