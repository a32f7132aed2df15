package crypto

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrivateKey = "0x8f49e4492f97ca6334e15117fc6c4c06f4652cac7fb27ed4ecc5ef9ea6ad5820"

func TestKeccak256Hex(t *testing.T) {
	// keccak256("") is a well-known constant.
	assert.Equal(t, "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", Keccak256Hex(nil))
	assert.Len(t, Keccak256Hex([]byte("degree")), 66)
}

func TestDecodeHash(t *testing.T) {
	_, err := DecodeHash(Keccak256Hex([]byte("x")))
	require.NoError(t, err)

	_, err = DecodeHash("0x1234")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid hash length")

	_, err = DecodeHash("not-hex")
	require.Error(t, err)
}

func TestSignAndRecoverPersonalMessage(t *testing.T) {
	priv, err := ParsePrivateKey(testPrivateKey)
	require.NoError(t, err)
	msg := crypto.Keccak256([]byte("credential"))

	raw, err := crypto.Sign(PersonalMessageDigest(msg), priv)
	require.NoError(t, err)
	sig, err := ToEthereumSignature(raw)
	require.NoError(t, err)
	assert.Contains(t, []byte{27, 28}, sig[64])
	assert.Less(t, raw[64], byte(2), "input must not be modified")

	recovered, err := RecoverPersonalMessageSigner(msg, "0x"+hex.EncodeToString(sig))
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(priv.PublicKey), recovered)

	// Without 0x prefix and with a raw {0,1} recovery id.
	recovered, err = RecoverPersonalMessageSigner(msg, hex.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(priv.PublicKey), recovered)

	other, err := RecoverPersonalMessageSigner([]byte("other message"), "0x"+hex.EncodeToString(sig))
	require.NoError(t, err)
	assert.NotEqual(t, crypto.PubkeyToAddress(priv.PublicKey), other)
}

func TestDecodeSignature(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		errorMsg string
	}{
		{name: "not hex", input: "0xzz", errorMsg: "failed to decode signature"},
		{name: "short", input: "0x" + strings.Repeat("ab", 64), errorMsg: "invalid signature length"},
		{name: "bad recovery id", input: "0x" + strings.Repeat("ab", 64) + "05", errorMsg: "invalid signature recovery id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSignature(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestParsePrivateKey(t *testing.T) {
	key, err := ParsePrivateKey(testPrivateKey)
	require.NoError(t, err)
	assert.Equal(t, testPrivateKey, PrivateKeyHex(key))

	_, err = ParsePrivateKey("0x123")
	require.Error(t, err)

	_, err = ParsePrivateKey("")
	require.Error(t, err)

	_, err = ParsePrivateKey(strings.Repeat("zz", 32))
	require.Error(t, err)
}
