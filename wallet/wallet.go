// Package wallet holds the credentials of a student, persisted in a key-value
// store.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pilacorp/go-degree-credential/credential/vc"
	"github.com/pilacorp/go-degree-credential/kvstore"
)

// StorageKey is the key under which the wallet is persisted.
const StorageKey = "student_credentials"

var (
	ErrDuplicateCredential = errors.New("credential already in wallet")
	ErrNotFound            = errors.New("credential not found")
)

type ImportStatus string

const (
	ImportImported  ImportStatus = "imported"
	ImportDuplicate ImportStatus = "duplicate"
)

// ImportResult reports what Import did with a credential.
type ImportResult struct {
	Status     ImportStatus   `json:"status"`
	Credential *vc.Credential `json:"credential"`
}

// Wallet is an ordered collection of credentials unique by id.
type Wallet struct {
	store  kvstore.Store
	key    string
	logger *zap.Logger

	mu    sync.RWMutex
	creds []*vc.Credential
}

type Option func(*Wallet)

// WithStorageKey overrides StorageKey.
func WithStorageKey(key string) Option {
	return func(w *Wallet) { w.key = key }
}

func WithLogger(l *zap.Logger) Option {
	return func(w *Wallet) { w.logger = l }
}

// Open loads the wallet persisted in store, or starts an empty one.
func Open(ctx context.Context, store kvstore.Store, opts ...Option) (*Wallet, error) {
	w := &Wallet{store: store, key: StorageKey, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(w)
	}

	raw, ok, err := store.Get(ctx, w.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &w.creds); err != nil {
			return nil, fmt.Errorf("failed to decode wallet: %w", err)
		}
	}

	return w, nil
}

// Import decodes raw (base64, compact or JSON) and adds the credential. A
// credential whose id is already held is reported as a duplicate and the
// wallet is left unchanged.
func (w *Wallet) Import(ctx context.Context, raw string) (ImportResult, error) {
	c, err := vc.ParseCredential(raw, vc.WithLogger(w.logger))
	if err != nil {
		return ImportResult{}, err
	}

	err = w.Add(ctx, c)
	if errors.Is(err, ErrDuplicateCredential) {
		w.logger.Info("credential already in wallet", zap.String("credential_id", c.ID))
		return ImportResult{Status: ImportDuplicate, Credential: c}, nil
	}
	if err != nil {
		return ImportResult{}, err
	}

	return ImportResult{Status: ImportImported, Credential: c}, nil
}

// Add appends c and persists the wallet.
func (w *Wallet) Add(ctx context.Context, c *vc.Credential) error {
	if c == nil {
		return fmt.Errorf("credential is nil")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.indexOf(c.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateCredential, c.ID)
	}

	next := append(w.creds[:len(w.creds):len(w.creds)], c)
	if err := w.persist(ctx, next); err != nil {
		return err
	}
	w.creds = next

	w.logger.Info("added credential", zap.String("credential_id", c.ID), zap.Int("count", len(next)))
	return nil
}

// List returns the credentials in insertion order.
func (w *Wallet) List() []*vc.Credential {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*vc.Credential, len(w.creds))
	copy(out, w.creds)
	return out
}

func (w *Wallet) Get(id string) (*vc.Credential, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	i := w.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return w.creds[i], nil
}

// Export returns the base64 transport encoding of a held credential.
func (w *Wallet) Export(id string) (string, error) {
	c, err := w.Get(id)
	if err != nil {
		return "", err
	}
	return vc.Encode(c)
}

// ExportCompact returns the gzip base64url encoding of a held credential.
func (w *Wallet) ExportCompact(id string) (string, error) {
	c, err := w.Get(id)
	if err != nil {
		return "", err
	}
	return vc.EncodeCompact(c)
}

func (w *Wallet) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.creds)
}

// indexOf must be called with w.mu held.
func (w *Wallet) indexOf(id string) int {
	for i, c := range w.creds {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (w *Wallet) persist(ctx context.Context, creds []*vc.Credential) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode wallet: %w", err)
	}
	if err := w.store.Set(ctx, w.key, string(data)); err != nil {
		return fmt.Errorf("failed to persist wallet: %w", err)
	}
	return nil
}
