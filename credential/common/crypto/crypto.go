package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size of an [r || s || v] secp256k1 signature.
const SignatureLength = 65

// Keccak256Hex returns the Keccak-256 digest of data as 0x-prefixed lowercase hex.
func Keccak256Hex(data []byte) string {
	return hexutil.Encode(crypto.Keccak256(data))
}

// DecodeHash decodes a 0x-prefixed 32-byte hex digest.
func DecodeHash(hash string) ([]byte, error) {
	b, err := hexutil.Decode(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to decode hash: %w", err)
	}
	if len(b) != common.HashLength {
		return nil, fmt.Errorf("invalid hash length: expected %d bytes, got %d", common.HashLength, len(b))
	}
	return b, nil
}

// PersonalMessageDigest returns the EIP-191 digest of msg
// (keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg)).
func PersonalMessageDigest(msg []byte) []byte {
	return accounts.TextHash(msg)
}

// ToEthereumSignature converts a recovery id in {0,1} into the {27,28} form used by
// wallet signatures. The input is not modified.
func ToEthereumSignature(sig []byte) ([]byte, error) {
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("invalid signature length: expected %d bytes, got %d", SignatureLength, len(sig))
	}
	out := make([]byte, SignatureLength)
	copy(out, sig)
	if out[64] < 27 {
		out[64] += 27
	}
	return out, nil
}

// DecodeSignature parses a hex signature (with or without 0x) and normalizes the
// recovery id to {0,1}.
func DecodeSignature(signature string) ([]byte, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("invalid signature length: expected %d bytes, got %d", SignatureLength, len(sig))
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return nil, errors.New("invalid signature recovery id")
	}
	return sig, nil
}

// RecoverPersonalMessageSigner recovers the address that produced sig over the
// EIP-191 digest of msg.
func RecoverPersonalMessageSigner(msg []byte, signature string) (common.Address, error) {
	sig, err := DecodeSignature(signature)
	if err != nil {
		return common.Address{}, err
	}

	pub, err := crypto.SigToPub(PersonalMessageDigest(msg), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// ParsePrivateKey parses a secp256k1 private key from hex, with or without 0x.
func ParsePrivateKey(key string) (*ecdsa.PrivateKey, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "0x")
	if len(key) == 0 || len(key)%2 != 0 {
		return nil, errors.New("invalid private key: empty or odd length")
	}
	privKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return privKey, nil
}

// PrivateKeyHex encodes a private key as 0x-prefixed hex.
func PrivateKeyHex(key *ecdsa.PrivateKey) string {
	return hexutil.Encode(crypto.FromECDSA(key))
}

// EncodeSignature encodes a signature as 0x-prefixed lowercase hex.
func EncodeSignature(sig []byte) string {
	return hexutil.Encode(sig)
}
