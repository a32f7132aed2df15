package signer

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-degree-credential/did"
)

const (
	testKey  = "0x8f49e4492f97ca6334e15117fc6c4c06f4652cac7fb27ed4ecc5ef9ea6ad5820"
	otherKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
)

func TestDefaultSigner(t *testing.T) {
	s, err := NewDefaultSigner(testKey)
	require.NoError(t, err)

	hash := crypto.Keccak256([]byte("degree"))
	sig, err := s.Sign(hash)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	pub, err := crypto.SigToPub(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, s.GetAddress(), crypto.PubkeyToAddress(*pub).Hex())

	fromPub, err := did.AddressFromPublicKeyHex(s.PublicKeyHex())
	require.NoError(t, err)
	assert.Equal(t, s.GetAddress(), fromPub)
	assert.Equal(t, testKey, s.PrivateKeyHex())

	_, err = s.Sign([]byte("short"))
	require.Error(t, err)
}

func TestNewDefaultSignerInvalidKey(t *testing.T) {
	_, err := NewDefaultSigner("0x1234")
	require.Error(t, err)
}

func newSigningServer(t *testing.T, local *DefaultSigner) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))

		var in struct {
			PayloadHex string `json:"payload_hex"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		payload, err := hex.DecodeString(in.PayloadHex)
		require.NoError(t, err)

		sig, err := local.Sign(payload)
		require.NoError(t, err)
		sig[64] += 27

		_ = json.NewEncoder(w).Encode(map[string]string{"signature_hex": "0x" + hex.EncodeToString(sig)})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRemoteSigner(t *testing.T) {
	local, err := NewDefaultSigner(testKey)
	require.NoError(t, err)
	server := newSigningServer(t, local)

	remote, err := NewRemoteSigner(server.URL, "secret", local.GetAddress())
	require.NoError(t, err)

	hash := crypto.Keccak256([]byte("degree"))
	sig, err := remote.Sign(hash)
	require.NoError(t, err)
	assert.LessOrEqual(t, sig[64], byte(1))

	pub, err := crypto.SigToPub(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, local.GetAddress(), crypto.PubkeyToAddress(*pub).Hex())
}

func TestCheckAddress(t *testing.T) {
	local, err := NewDefaultSigner(testKey)
	require.NoError(t, err)
	require.NoError(t, CheckAddress(local))

	server := newSigningServer(t, local)

	remote, err := NewRemoteSigner(server.URL, "secret", local.GetAddress())
	require.NoError(t, err)
	require.NoError(t, CheckAddress(remote))

	other, err := NewDefaultSigner(otherKey)
	require.NoError(t, err)
	misconfigured, err := NewRemoteSigner(server.URL, "secret", other.GetAddress())
	require.NoError(t, err)

	err = CheckAddress(misconfigured)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signer address mismatch")
	assert.Contains(t, err.Error(), local.GetAddress())

	badAddress, err := NewRemoteSigner(server.URL, "secret", "not-an-address")
	require.NoError(t, err)
	assert.Error(t, CheckAddress(badAddress))

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()
	unreachable, err := NewRemoteSigner(failing.URL, "", local.GetAddress())
	require.NoError(t, err)
	err = CheckAddress(unreachable)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to sign address check")
}

func TestRemoteSignerErrors(t *testing.T) {
	_, err := NewRemoteSigner("", "", "0x1")
	require.Error(t, err)
	_, err = NewRemoteSigner("http://localhost", "", " ")
	require.Error(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	remote, err := NewRemoteSigner(server.URL, "", "0x1")
	require.NoError(t, err)

	_, err = remote.Sign(make([]byte, 32))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote signer http 403")

	_, err = remote.Sign([]byte{1})
	require.Error(t, err)
}

func TestTxSignerFn(t *testing.T) {
	s, err := NewDefaultSigner(testKey)
	require.NoError(t, err)

	chainID := big.NewInt(1337)
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tx := types.NewTx(&types.LegacyTx{Nonce: 1, To: &to, Gas: 21000, GasPrice: big.NewInt(1)})

	signed, err := TxSignerFn(chainID, s)(common.HexToAddress(s.GetAddress()), tx)
	require.NoError(t, err)

	sender, err := types.Sender(types.NewEIP155Signer(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, s.GetAddress(), sender.Hex())
}
