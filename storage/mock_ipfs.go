package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMockDelay is the simulated upload latency.
	DefaultMockDelay = 500 * time.Millisecond

	mockCIDPrefix = "bafybeig"
	mockCIDRandom = 46
)

// MockIPFS pretends to upload content and returns a random CID-shaped string.
type MockIPFS struct {
	delay  time.Duration
	logger *zap.Logger
}

type MockOption func(*MockIPFS)

func WithMockDelay(d time.Duration) MockOption {
	return func(m *MockIPFS) { m.delay = d }
}

func WithMockLogger(l *zap.Logger) MockOption {
	return func(m *MockIPFS) { m.logger = l }
}

func NewMockIPFS(opts ...MockOption) *MockIPFS {
	m := &MockIPFS{delay: DefaultMockDelay, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockIPFS) Upload(ctx context.Context, content Content) (*UploadResult, error) {
	if len(content.Data) == 0 {
		return nil, errors.New("content is empty")
	}

	if m.delay > 0 {
		t := time.NewTimer(m.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	buf := make([]byte, mockCIDRandom/2)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	cid := mockCIDPrefix + hex.EncodeToString(buf)

	m.logger.Debug("simulated upload", zap.String("name", content.Name), zap.Int("size", len(content.Data)), zap.String("cid", cid))
	return &UploadResult{CID: cid}, nil
}
