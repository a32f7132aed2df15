// Package did derives decentralized identifiers from secp256k1 key addresses.
//
// Identifiers have the fixed form did:<method>:<address>; no resolution beyond
// that string convention is performed.
package did

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// DefaultMethod is the DID method used when none is configured.
	DefaultMethod = "ethr"
	// ControllerFragment names the verification method referenced by proofs.
	ControllerFragment = "controller"

	prefix = "did:"
)

// FormatDID builds did:<method>:<address>. The method may be given with or
// without its "did:" prefix.
func FormatDID(method, address string) string {
	method = strings.TrimPrefix(method, prefix)
	if method == "" {
		method = DefaultMethod
	}
	return fmt.Sprintf("%s%s:%s", prefix, method, address)
}

// VerificationMethodID returns the controller verification method of a DID.
func VerificationMethodID(did string) string {
	return did + "#" + ControllerFragment
}

// ParseAddress extracts the address from a DID or a DID URL such as
// did:ethr:0xabc#controller. The address is the last colon-separated segment.
func ParseAddress(didURL string) (common.Address, error) {
	id, _, _ := strings.Cut(didURL, "#")
	if !strings.HasPrefix(id, prefix) {
		return common.Address{}, fmt.Errorf("invalid DID %q: missing did: prefix", didURL)
	}

	parts := strings.Split(id, ":")
	if len(parts) < 3 {
		return common.Address{}, fmt.Errorf("invalid DID %q: expected did:<method>:<address>", didURL)
	}

	address := parts[len(parts)-1]
	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("invalid DID %q: %q is not an address", didURL, address)
	}

	return common.HexToAddress(address), nil
}

// SameAddress reports whether two address strings refer to the same account.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// GenerateKeyPair generates a new secp256k1 key and derives its DID.
func GenerateKeyPair(method string) (*KeyPair, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %v", err)
	}

	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}
	address := crypto.PubkeyToAddress(*publicKeyECDSA).Hex()

	return &KeyPair{
		Address:    address,
		PublicKey:  "0x" + hex.EncodeToString(crypto.CompressPubkey(publicKeyECDSA)),
		PrivateKey: "0x" + hex.EncodeToString(crypto.FromECDSA(privateKey)),
		Identifier: FormatDID(method, address),
	}, nil
}

// AddressFromPublicKeyHex converts a hex-encoded public key to a checksummed address.
//
// Supports both compressed (33 bytes) and uncompressed (65 bytes) keys, with or
// without the 0x prefix.
func AddressFromPublicKeyHex(publicKeyHex string) (string, error) {
	publicKeyBytes, err := hex.DecodeString(strings.TrimPrefix(publicKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("failed to decode public key hex: %w", err)
	}

	if len(publicKeyBytes) == 33 && (publicKeyBytes[0] == 0x02 || publicKeyBytes[0] == 0x03) {
		parsed, err := btcec.ParsePubKey(publicKeyBytes)
		if err != nil {
			return "", fmt.Errorf("failed to parse compressed public key: %w", err)
		}
		publicKeyBytes = parsed.SerializeUncompressed()
	}

	if len(publicKeyBytes) != 65 || publicKeyBytes[0] != 0x04 {
		return "", fmt.Errorf("unsupported public key format: expected 33 or 65 bytes, got %d", len(publicKeyBytes))
	}

	publicKey, err := crypto.UnmarshalPubkey(publicKeyBytes)
	if err != nil {
		return "", fmt.Errorf("failed to unmarshal public key: %w", err)
	}

	return crypto.PubkeyToAddress(*publicKey).Hex(), nil
}

// GenerateDIDDocument creates a DID document publishing the controller
// verification method of an address-derived DID.
func GenerateDIDDocument(did, address, publicKeyHex string) *DIDDocument {
	vmID := VerificationMethodID(did)
	return &DIDDocument{
		Context: []string{
			"https://www.w3.org/ns/did/v1",
			"https://w3id.org/security/suites/secp256k1recovery-2020/v2",
		},
		Id:         did,
		Controller: did,
		VerificationMethod: []VerificationMethod{{
			Id:                  vmID,
			Type:                "EcdsaSecp256k1RecoveryMethod2020",
			Controller:          did,
			BlockchainAccountID: "eip155:1:" + address,
			PublicKeyHex:        publicKeyHex,
		}},
		Authentication:  []string{vmID},
		AssertionMethod: []string{vmID},
	}
}
