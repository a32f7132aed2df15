// Package identity manages the institution and holder signing identities and
// their persisted key material.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	vccrypto "github.com/pilacorp/go-degree-credential/credential/common/crypto"
	"github.com/pilacorp/go-degree-credential/did"
	"github.com/pilacorp/go-degree-credential/did/signer"
	"github.com/pilacorp/go-degree-credential/kvstore"
)

// Scope selects one of the identities managed by a Provider.
type Scope string

const (
	ScopeInstitution Scope = "institution"
	ScopeHolder      Scope = "holder"
)

// Storage keys of the persisted private keys.
const (
	InstitutionKey = "university_private_key"
	HolderKey      = "student_private_key"
)

var (
	// ErrIdentityLoad is returned when key material cannot be read or parsed.
	ErrIdentityLoad = errors.New("identity load failed")
	ErrUnknownScope = errors.New("unknown identity scope")
)

// ParseScope validates a scope name.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeInstitution, ScopeHolder:
		return Scope(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScope, s)
}

// StorageKey returns the key under which the scope's private key is persisted.
func (s Scope) StorageKey() (string, error) {
	switch s {
	case ScopeInstitution:
		return InstitutionKey, nil
	case ScopeHolder:
		return HolderKey, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScope, string(s))
}

// Identity is a signer bound to its address-derived DID.
type Identity struct {
	signer signer.Signer
	did    string
}

func newIdentity(s signer.Signer, method string) *Identity {
	return &Identity{signer: s, did: did.FormatDID(method, s.GetAddress())}
}

func (i *Identity) Address() string { return i.signer.GetAddress() }

func (i *Identity) DID() string { return i.did }

func (i *Identity) Signer() signer.Signer { return i.signer }

// PublicKeyHex returns the compressed public key, or "" when the key is held
// by a remote signer.
func (i *Identity) PublicKeyHex() string {
	if s, ok := i.signer.(interface{ PublicKeyHex() string }); ok {
		return s.PublicKeyHex()
	}
	return ""
}

// SignMessage signs msg as an EIP-191 personal message and returns a 65-byte
// signature with v in {27,28}.
func (i *Identity) SignMessage(msg []byte) ([]byte, error) {
	sig, err := i.signer.Sign(vccrypto.PersonalMessageDigest(msg))
	if err != nil {
		return nil, err
	}
	return vccrypto.ToEthereumSignature(sig)
}

// Document returns the DID document publishing the identity's controller key.
func (i *Identity) Document() *did.DIDDocument {
	return did.GenerateDIDDocument(i.did, i.Address(), i.PublicKeyHex())
}

// Provider lazily loads or creates identities and caches them for the life of
// the process. Use Load to re-read a scope from the store and Reset to drop it.
type Provider struct {
	store  kvstore.Store
	method string
	logger *zap.Logger

	mu        sync.RWMutex
	cache     map[Scope]*Identity
	overrides map[Scope]*Identity
	group     singleflight.Group
}

type Option func(*Provider)

// WithMethod sets the DID method of derived identifiers.
func WithMethod(method string) Option {
	return func(p *Provider) { p.method = method }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

func NewProvider(store kvstore.Store, opts ...Option) *Provider {
	p := &Provider{
		store:     store,
		method:    did.DefaultMethod,
		logger:    zap.NewNop(),
		cache:     make(map[Scope]*Identity),
		overrides: make(map[Scope]*Identity),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithSigner binds scope to an externally managed signer such as a remote
// signing service. Stored key material for the scope is then ignored.
func (p *Provider) WithSigner(scope Scope, s signer.Signer) error {
	if _, err := scope.StorageKey(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.overrides[scope] = newIdentity(s, p.method)
	return nil
}

// Get returns the identity for scope, creating and persisting a new key on
// first use.
func (p *Provider) Get(ctx context.Context, scope Scope) (*Identity, error) {
	p.mu.RLock()
	if id, ok := p.overrides[scope]; ok {
		p.mu.RUnlock()
		return id, nil
	}
	if id, ok := p.cache[scope]; ok {
		p.mu.RUnlock()
		return id, nil
	}
	p.mu.RUnlock()

	v, err, _ := p.group.Do(string(scope), func() (interface{}, error) {
		p.mu.RLock()
		cached, ok := p.cache[scope]
		p.mu.RUnlock()
		if ok {
			return cached, nil
		}
		return p.load(ctx, scope)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Identity), nil
}

// Load re-reads the scope's key from the store, replacing the cached identity.
func (p *Provider) Load(ctx context.Context, scope Scope) (*Identity, error) {
	p.mu.RLock()
	id, ok := p.overrides[scope]
	p.mu.RUnlock()
	if ok {
		return id, nil
	}

	v, err, _ := p.group.Do(string(scope), func() (interface{}, error) {
		return p.load(ctx, scope)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Identity), nil
}

// Reset drops the cached identity for scope.
func (p *Provider) Reset(scope Scope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cache, scope)
}

func (p *Provider) load(ctx context.Context, scope Scope) (*Identity, error) {
	key, err := scope.StorageKey()
	if err != nil {
		return nil, err
	}

	stored, ok, err := p.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrIdentityLoad, key, err)
	}

	var s *signer.DefaultSigner
	if ok {
		s, err = signer.NewDefaultSigner(stored)
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrIdentityLoad, key, err)
		}
	} else {
		kp, err := did.GenerateKeyPair(p.method)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIdentityLoad, err)
		}
		if err := p.store.Set(ctx, key, kp.PrivateKey); err != nil {
			return nil, fmt.Errorf("%w: persist %s: %v", ErrIdentityLoad, key, err)
		}
		if s, err = signer.NewDefaultSigner(kp.PrivateKey); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIdentityLoad, err)
		}
		p.logger.Info("created identity", zap.String("scope", string(scope)), zap.String("address", kp.Address))
	}

	id := newIdentity(s, p.method)

	p.mu.Lock()
	p.cache[scope] = id
	p.mu.Unlock()

	return id, nil
}
