// Package config reads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Key store backends.
const (
	KeystoreMemory = "memory"
	KeystoreFile   = "file"
	KeystoreRedis  = "redis"
)

// Ledger backends.
const (
	LedgerSimulated = "simulated"
	LedgerRegistry  = "registry"
)

// Default values
const (
	DefaultAddr         = ":8080"
	DefaultLogLevel     = "info"
	DefaultDIDMethod    = "ethr"
	DefaultKeystore     = KeystoreFile
	DefaultKeystorePath = "degree-keystore.json"
	DefaultRedisURL     = "redis://localhost:6379/0"
	DefaultLedger       = LedgerSimulated
	DefaultLedgerDelay  = 500 * time.Millisecond
	DefaultRPC          = "https://rpc-testnet.pila.vn"
	DefaultChainID      = 6789
	DefaultStorageDelay = 500 * time.Millisecond
	DefaultPinningURL   = "https://api.pinata.cloud/pinning/pinFileToIPFS"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// Environment variable names
const (
	EnvAddr            = "DEGREE_ADDR"
	EnvLogLevel        = "DEGREE_LOG_LEVEL"
	EnvDIDMethod       = "DEGREE_DID_METHOD"
	EnvKeystore        = "DEGREE_KEYSTORE"
	EnvKeystorePath    = "DEGREE_KEYSTORE_PATH"
	EnvRedisURL        = "DEGREE_REDIS_URL"
	EnvLedger          = "DEGREE_LEDGER"
	EnvLedgerDelay     = "DEGREE_LEDGER_DELAY"
	EnvRPC             = "DEGREE_RPC_URL"
	EnvChainID         = "DEGREE_CHAIN_ID"
	EnvRegistryAddress = "DEGREE_REGISTRY_ADDRESS"
	EnvStorageDelay    = "DEGREE_STORAGE_DELAY"
	EnvPinningURL      = "DEGREE_PINNING_URL"
	EnvPinningJWT      = "DEGREE_PINNING_JWT"
	EnvSignerEndpoint  = "DEGREE_SIGNER_ENDPOINT"
	EnvSignerAPIKey    = "DEGREE_SIGNER_API_KEY"
	EnvSignerAddress   = "DEGREE_SIGNER_ADDRESS"
)

// Server captures the process configuration.
type Server struct {
	Addr      string
	LogLevel  string
	DIDMethod string

	Keystore     string
	KeystorePath string
	RedisURL     string

	Ledger          string
	LedgerDelay     time.Duration
	RPC             string
	ChainID         int64
	RegistryAddress string

	StorageDelay time.Duration
	PinningURL   string
	// PinningJWT enables the pinning service. Without it transcripts go to the
	// in-process mock store.
	PinningJWT string

	// SignerEndpoint, when set, signs as the institution through a remote signer.
	SignerEndpoint string
	SignerAPIKey   string
	SignerAddress  string
}

// FromEnv builds a Server config from environment variables. Unparseable
// numeric values fall back to their defaults.
func FromEnv() Server {
	return Server{
		Addr:            stringEnv(EnvAddr, DefaultAddr),
		LogLevel:        stringEnv(EnvLogLevel, DefaultLogLevel),
		DIDMethod:       stringEnv(EnvDIDMethod, DefaultDIDMethod),
		Keystore:        strings.ToLower(stringEnv(EnvKeystore, DefaultKeystore)),
		KeystorePath:    stringEnv(EnvKeystorePath, DefaultKeystorePath),
		RedisURL:        stringEnv(EnvRedisURL, DefaultRedisURL),
		Ledger:          strings.ToLower(stringEnv(EnvLedger, DefaultLedger)),
		LedgerDelay:     durationEnv(EnvLedgerDelay, DefaultLedgerDelay),
		RPC:             stringEnv(EnvRPC, DefaultRPC),
		ChainID:         chainID(),
		RegistryAddress: os.Getenv(EnvRegistryAddress),
		StorageDelay:    durationEnv(EnvStorageDelay, DefaultStorageDelay),
		PinningURL:      stringEnv(EnvPinningURL, DefaultPinningURL),
		PinningJWT:      os.Getenv(EnvPinningJWT),
		SignerEndpoint:  os.Getenv(EnvSignerEndpoint),
		SignerAPIKey:    os.Getenv(EnvSignerAPIKey),
		SignerAddress:   os.Getenv(EnvSignerAddress),
	}
}

// Validate reports combinations the server cannot start with.
func (s Server) Validate() error {
	var errs []error

	switch s.Keystore {
	case KeystoreMemory, KeystoreRedis:
	case KeystoreFile:
		if s.KeystorePath == "" {
			errs = append(errs, fmt.Errorf("%s is required for the file keystore", EnvKeystorePath))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown keystore %q", s.Keystore))
	}

	switch s.Ledger {
	case LedgerSimulated:
	case LedgerRegistry:
		if !common.IsHexAddress(s.RegistryAddress) || s.RegistryAddress == zeroAddress {
			errs = append(errs, fmt.Errorf("%s must be a contract address", EnvRegistryAddress))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger %q", s.Ledger))
	}

	if s.SignerEndpoint != "" && !common.IsHexAddress(s.SignerAddress) {
		errs = append(errs, fmt.Errorf("%s must be set with %s", EnvSignerAddress, EnvSignerEndpoint))
	}

	return errors.Join(errs...)
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			return d
		}
	}
	return def
}

func chainID() int64 {
	if chainIDStr := os.Getenv(EnvChainID); chainIDStr != "" {
		if id, err := strconv.ParseInt(chainIDStr, 10, 64); err == nil {
			return id
		}
	}
	return DefaultChainID
}
