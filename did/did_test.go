package did

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDID(t *testing.T) {
	assert.Equal(t, "did:ethr:0xAbC", FormatDID("ethr", "0xAbC"))
	assert.Equal(t, "did:nda:testnet:0x1", FormatDID("did:nda:testnet", "0x1"))
	assert.Equal(t, "did:ethr:0x1", FormatDID("", "0x1"))
	assert.Equal(t, "did:ethr:0x1#controller", VerificationMethodID("did:ethr:0x1"))
}

func TestParseAddress(t *testing.T) {
	const addr = "0x36e4418dafb9d1e5fff7408f5a57981e240c8f8e"

	tests := []struct {
		name     string
		input    string
		errorMsg string
	}{
		{name: "verification method", input: "did:ethr:" + addr + "#controller"},
		{name: "plain did", input: "did:ethr:" + addr},
		{name: "network segment", input: "did:ethr:sepolia:" + addr + "#controller"},
		{name: "missing prefix", input: addr, errorMsg: "missing did: prefix"},
		{name: "too few segments", input: "did:" + addr, errorMsg: "expected did:<method>:<address>"},
		{name: "not an address", input: "did:ethr:alice#controller", errorMsg: "is not an address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.input)
			if tt.errorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			require.NoError(t, err)
			assert.True(t, SameAddress(addr, got.Hex()))
		})
	}
}

func TestGenerateKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair("ethr")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(kp.Identifier, "did:ethr:0x"))
	assert.Equal(t, FormatDID("ethr", kp.Address), kp.Identifier)
	assert.Len(t, kp.PrivateKey, 66)

	fromPub, err := AddressFromPublicKeyHex(kp.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, kp.Address, fromPub)

	parsed, err := ParseAddress(VerificationMethodID(kp.Identifier))
	require.NoError(t, err)
	assert.Equal(t, kp.Address, parsed.Hex())
}

func TestAddressFromPublicKeyHex(t *testing.T) {
	_, err := AddressFromPublicKeyHex("0xzz")
	require.Error(t, err)

	_, err = AddressFromPublicKeyHex("0x0102")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported public key format")
}

func TestGenerateDIDDocument(t *testing.T) {
	doc := GenerateDIDDocument("did:ethr:0x1", "0x1", "0x02ab")

	assert.Equal(t, "did:ethr:0x1", doc.Id)
	require.Len(t, doc.VerificationMethod, 1)
	assert.Equal(t, "did:ethr:0x1#controller", doc.VerificationMethod[0].Id)
	assert.Equal(t, []string{"did:ethr:0x1#controller"}, doc.AssertionMethod)
}
