package ledger

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rlp"
	"go.uber.org/zap"

	vccrypto "github.com/pilacorp/go-degree-credential/credential/common/crypto"
	"github.com/pilacorp/go-degree-credential/did/signer"
)

//go:embed registry_abi.json
var registryArtifactJSON []byte

const (
	anchorGasLimit   = uint64(80000)
	registerGasLimit = uint64(200000)
)

// HardhatArtifact is the compiled contract artifact holding the registry ABI.
type HardhatArtifact struct {
	Format       string          `json:"_format"`
	ContractName string          `json:"contractName"`
	SourceName   string          `json:"sourceName"`
	ABI          json.RawMessage `json:"abi"`
}

// Backend is the subset of an Ethereum client used by Registry.
// *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Registry is a Ledger backed by a credential registry contract. Transactions
// are signed with txSigner. Without a backend they are built offline with
// nonce 0 and gas price 0 and never submitted, and reads fail with ErrNoBackend.
type Registry struct {
	abi          abi.ABI
	contract     *bind.BoundContract
	contractAddr common.Address
	chainID      *big.Int
	txSigner     signer.Signer
	backend      Backend
	logger       *zap.Logger
}

type RegistryOption func(*Registry)

func WithBackend(b Backend) RegistryOption {
	return func(r *Registry) { r.backend = b }
}

func WithRegistryLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates a Registry for the contract deployed at address.
func NewRegistry(address string, chainID int64, txSigner signer.Signer, opts ...RegistryOption) (*Registry, error) {
	if address == "" || !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid configuration: registry address %q", address)
	}
	if txSigner == nil {
		return nil, fmt.Errorf("invalid configuration: transaction signer missing")
	}

	var artifact HardhatArtifact
	if err := json.Unmarshal(registryArtifactJSON, &artifact); err != nil {
		return nil, fmt.Errorf("error parsing registry abi JSON: %w", err)
	}

	parsedABI, err := abi.JSON(bytes.NewReader(artifact.ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	contractAddr := common.HexToAddress(address)
	r := &Registry{
		abi:          parsedABI,
		contract:     bind.NewBoundContract(contractAddr, parsedABI, nil, nil, nil),
		contractAddr: contractAddr,
		chainID:      big.NewInt(chainID),
		txSigner:     txSigner,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// DialRegistry connects to rpcURL and returns a Registry that submits its
// transactions there.
func DialRegistry(ctx context.Context, rpcURL, address string, chainID int64, txSigner signer.Signer, opts ...RegistryOption) (*Registry, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rpcURL, err)
	}
	return NewRegistry(address, chainID, txSigner, append(opts, WithBackend(client))...)
}

func (r *Registry) AnchorCredential(ctx context.Context, hash, address string) (*AnchorResult, error) {
	hashBytes, err := toBytes32(hash)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid issuer address %q", address)
	}

	tx, raw, err := r.transact(ctx, anchorGasLimit, "anchorCredential", hashBytes, common.HexToAddress(address))
	if err != nil {
		return nil, err
	}

	return &AnchorResult{Success: true, TxHash: tx.Hash().Hex(), RawTx: raw}, nil
}

func (r *Registry) RevokeCredential(ctx context.Context, hash string) error {
	hashBytes, err := toBytes32(hash)
	if err != nil {
		return err
	}
	_, _, err = r.transact(ctx, anchorGasLimit, "revokeCredential", hashBytes)
	return err
}

func (r *Registry) RegisterIdentity(ctx context.Context, did, address string) error {
	if did == "" || !common.IsHexAddress(address) {
		return fmt.Errorf("did and a valid controller address are required")
	}
	_, _, err := r.transact(ctx, registerGasLimit, "registerIdentity", did, common.HexToAddress(address))
	return err
}

func (r *Registry) IsRevoked(ctx context.Context, hash string) (bool, error) {
	hashBytes, err := toBytes32(hash)
	if err != nil {
		return false, err
	}

	out, err := r.call(ctx, "isRevoked", hashBytes)
	if err != nil {
		return false, err
	}
	revoked, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected isRevoked output %T", out[0])
	}
	return revoked, nil
}

func (r *Registry) GetController(ctx context.Context, did string) (string, bool, error) {
	out, err := r.call(ctx, "controllerOf", did)
	if err != nil {
		return "", false, err
	}
	controller, ok := out[0].(common.Address)
	if !ok {
		return "", false, fmt.Errorf("unexpected controllerOf output %T", out[0])
	}
	if controller == (common.Address{}) {
		return "", false, nil
	}
	return controller.Hex(), true, nil
}

// transact builds and signs a contract call and submits it when a backend is
// configured. It returns the signed transaction and its hex RLP encoding.
func (r *Registry) transact(ctx context.Context, gasLimit uint64, method string, params ...interface{}) (*types.Transaction, string, error) {
	auth, err := r.transactOpts(ctx, gasLimit)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create transaction options: %w", err)
	}

	tx, err := r.contract.Transact(auth, method, params...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate %s Tx: %w", method, err)
	}

	var buf bytes.Buffer
	if err := rlp.Encode(&buf, tx); err != nil {
		return nil, "", fmt.Errorf("failed to serialize transaction: %w", err)
	}

	if r.backend != nil {
		if err := r.backend.SendTransaction(ctx, tx); err != nil {
			return nil, "", fmt.Errorf("failed to send %s Tx: %w", method, err)
		}
		r.logger.Info("submitted registry transaction", zap.String("method", method), zap.String("tx_hash", tx.Hash().Hex()))
	}

	return tx, hex.EncodeToString(buf.Bytes()), nil
}

func (r *Registry) transactOpts(ctx context.Context, gasLimit uint64) (*bind.TransactOpts, error) {
	from := common.HexToAddress(r.txSigner.GetAddress())
	nonce, gasPrice := uint64(0), big.NewInt(0)

	if r.backend != nil {
		var err error
		if nonce, err = r.backend.PendingNonceAt(ctx, from); err != nil {
			return nil, fmt.Errorf("failed to fetch nonce: %w", err)
		}
		if gasPrice, err = r.backend.SuggestGasPrice(ctx); err != nil {
			return nil, fmt.Errorf("failed to fetch gas price: %w", err)
		}
	}

	return &bind.TransactOpts{
		From:     from,
		Nonce:    new(big.Int).SetUint64(nonce),
		Value:    big.NewInt(0),
		GasLimit: gasLimit,
		GasPrice: gasPrice,
		Context:  ctx,
		Signer:   signer.TxSignerFn(r.chainID, r.txSigner),
		NoSend:   true,
	}, nil
}

func (r *Registry) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	if r.backend == nil {
		return nil, ErrNoBackend
	}

	input, err := r.abi.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	to := r.contractAddr
	output, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}

	out, err := r.abi.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty %s output", method)
	}
	return out, nil
}

// TxFromHex decodes a hex RLP transaction such as AnchorResult.RawTx.
func TxFromHex(rawTxHex string) (*types.Transaction, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(rawTxHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode hex string: %w", err)
	}
	var tx types.Transaction
	if err := rlp.DecodeBytes(b, &tx); err != nil {
		return nil, fmt.Errorf("failed to decode RLP: %w", err)
	}
	return &tx, nil
}

func toBytes32(hash string) ([32]byte, error) {
	var out [32]byte
	b, err := vccrypto.DecodeHash(hash)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}
