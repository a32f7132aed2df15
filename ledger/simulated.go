package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	vccrypto "github.com/pilacorp/go-degree-credential/credential/common/crypto"
)

// DefaultSimulatedDelay is the latency applied to every simulated call.
const DefaultSimulatedDelay = 500 * time.Millisecond

// Simulated is an in-memory Ledger with a fixed per-call latency.
type Simulated struct {
	delay  time.Duration
	logger *zap.Logger

	mu          sync.Mutex
	nonce       uint64
	anchors     map[string]string
	revoked     map[string]bool
	controllers map[string]string
}

type SimulatedOption func(*Simulated)

func WithDelay(d time.Duration) SimulatedOption {
	return func(s *Simulated) { s.delay = d }
}

func WithSimulatedLogger(l *zap.Logger) SimulatedOption {
	return func(s *Simulated) { s.logger = l }
}

func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		delay:       DefaultSimulatedDelay,
		logger:      zap.NewNop(),
		anchors:     make(map[string]string),
		revoked:     make(map[string]bool),
		controllers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulated) wait(ctx context.Context) error {
	if s.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Simulated) IsRevoked(ctx context.Context, hash string) (bool, error) {
	if err := s.wait(ctx); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[normalizeHash(hash)], nil
}

func (s *Simulated) AnchorCredential(ctx context.Context, hash, address string) (*AnchorResult, error) {
	if _, err := vccrypto.DecodeHash(hash); err != nil {
		return nil, err
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.anchors[normalizeHash(hash)] = address
	txHash := s.nextTxHash("anchorCredential", hash, address)
	s.logger.Debug("anchored credential", zap.String("hash", hash), zap.String("tx_hash", txHash))

	return &AnchorResult{Success: true, TxHash: txHash}, nil
}

func (s *Simulated) RevokeCredential(ctx context.Context, hash string) error {
	if _, err := vccrypto.DecodeHash(hash); err != nil {
		return err
	}
	if err := s.wait(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[normalizeHash(hash)] = true
	return nil
}

func (s *Simulated) RegisterIdentity(ctx context.Context, did, address string) error {
	if did == "" || address == "" {
		return fmt.Errorf("did and address are required")
	}
	if err := s.wait(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.controllers[did] = address
	s.nextTxHash("registerIdentity", did, address)
	return nil
}

func (s *Simulated) GetController(ctx context.Context, did string) (string, bool, error) {
	if err := s.wait(ctx); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	addr, ok := s.controllers[did]
	return addr, ok, nil
}

// IsAnchored reports whether hash was anchored and by which address.
func (s *Simulated) IsAnchored(hash string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr, ok := s.anchors[normalizeHash(hash)]
	return addr, ok
}

// nextTxHash must be called with s.mu held.
func (s *Simulated) nextTxHash(method string, args ...string) string {
	s.nonce++
	return vccrypto.Keccak256Hex([]byte(fmt.Sprintf("%s:%d:%s", method, s.nonce, strings.Join(args, ":"))))
}

func normalizeHash(hash string) string {
	return strings.ToLower(hash)
}
