// Package degree orchestrates the issuer, holder and verifier flows of the
// degree credential system.
package degree

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	credentialstatus "github.com/pilacorp/go-degree-credential/credential/common/credential-status"
	"github.com/pilacorp/go-degree-credential/credential/vc"
	"github.com/pilacorp/go-degree-credential/did"
	"github.com/pilacorp/go-degree-credential/did/identity"
	"github.com/pilacorp/go-degree-credential/ledger"
	"github.com/pilacorp/go-degree-credential/storage"
)

// Status is the outcome of a verification.
type Status string

const (
	StatusValid            Status = "valid"
	StatusInvalidSignature Status = "invalid_signature"
	StatusRevoked          Status = "revoked"
	StatusMalformed        Status = "malformed"
	StatusUndecodable      Status = "undecodable"
)

var (
	// ErrNotIssuer is returned when revoking a credential the institution did not issue.
	ErrNotIssuer = errors.New("credential was not issued by this institution")
	// ErrInvalidSignature is returned when an operation requires a credential
	// whose proof does not verify.
	ErrInvalidSignature = errors.New("credential signature is invalid")
)

// IdentityProvider resolves the signing identities.
type IdentityProvider interface {
	Get(ctx context.Context, scope identity.Scope) (*identity.Identity, error)
}

type IssueRequest struct {
	SubjectDID string         `json:"subjectDid"`
	Degree     vc.DegreeClaim `json:"degree"`
	// Transcript is uploaded and referenced as evidence when set.
	Transcript *storage.Content `json:"-"`
	// Anchor records the credential hash on the ledger after signing.
	Anchor bool `json:"anchor"`
}

type IssueResult struct {
	Credential *vc.Credential       `json:"credential"`
	Encoded    string               `json:"encoded"`
	Hash       string               `json:"hash"`
	Anchor     *ledger.AnchorResult `json:"anchor,omitempty"`
	// AnchorErr is set when anchoring was requested and failed. The credential
	// is still valid.
	AnchorErr error `json:"-"`
}

type VerificationResult struct {
	Status            Status         `json:"status"`
	Message           string         `json:"message"`
	SignatureValid    bool           `json:"signatureValid"`
	RevocationChecked bool           `json:"revocationChecked"`
	Hash              string         `json:"hash,omitempty"`
	Warning           string         `json:"warning,omitempty"`
	Credential        *vc.Credential `json:"credential,omitempty"`
}

// Service runs the credential flows against injected collaborators.
type Service struct {
	identities IdentityProvider
	ledger     ledger.Ledger
	storage    storage.ContentStore
	status     *credentialstatus.Checker
	metrics    *Metrics
	logger     *zap.Logger
	credOpts   []vc.CredentialOpt
}

type Option func(*Service)

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithCredentialOptions passes options to every credential build, sign and
// parse operation.
func WithCredentialOptions(opts ...vc.CredentialOpt) Option {
	return func(s *Service) { s.credOpts = append(s.credOpts, opts...) }
}

func NewService(identities IdentityProvider, l ledger.Ledger, store storage.ContentStore, opts ...Option) *Service {
	s := &Service{
		identities: identities,
		ledger:     l,
		storage:    store,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	s.status = credentialstatus.NewChecker(l, s.logger)
	return s
}

func (s *Service) vcOpts() []vc.CredentialOpt {
	return append([]vc.CredentialOpt{vc.WithLogger(s.logger)}, s.credOpts...)
}

// RegisterInstitution registers the institution DID on the ledger unless a
// controller is already recorded for it.
func (s *Service) RegisterInstitution(ctx context.Context) error {
	inst, err := s.identities.Get(ctx, identity.ScopeInstitution)
	if err != nil {
		return err
	}

	_, ok, err := s.ledger.GetController(ctx, inst.DID())
	if err != nil {
		return fmt.Errorf("failed to look up controller: %w", err)
	}
	if ok {
		return nil
	}

	if err := s.ledger.RegisterIdentity(ctx, inst.DID(), inst.Address()); err != nil {
		return fmt.Errorf("failed to register institution: %w", err)
	}
	s.logger.Info("registered institution DID", zap.String("did", inst.DID()))
	return nil
}

// Issue signs a degree credential with the institution identity.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	inst, err := s.identities.Get(ctx, identity.ScopeInstitution)
	if err != nil {
		return nil, err
	}

	var evidence []vc.Evidence
	if req.Transcript != nil {
		uploaded, err := s.storage.Upload(ctx, *req.Transcript)
		if err != nil {
			return nil, fmt.Errorf("failed to upload transcript: %w", err)
		}
		evidence = []vc.Evidence{{
			ID:   uploaded.URI(),
			Type: []string{vc.EvidenceTypeTranscript},
			Name: req.Transcript.Name,
			CID:  uploaded.CID,
		}}
	}

	start := time.Now()
	c, err := vc.Issue(req.SubjectDID, req.Degree, evidence, inst, s.vcOpts()...)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveSigning(start)
	s.metrics.IncrementIssued()

	hash, err := vc.ComputeHash(c)
	if err != nil {
		return nil, err
	}
	encoded, err := vc.Encode(c)
	if err != nil {
		return nil, err
	}

	result := &IssueResult{Credential: c, Encoded: encoded, Hash: hash}

	if req.Anchor {
		anchor, err := s.ledger.AnchorCredential(ctx, hash, inst.Address())
		switch {
		case err != nil:
			result.AnchorErr = err
		case anchor == nil || !anchor.Success:
			result.AnchorErr = errors.New("ledger rejected anchor")
		default:
			result.Anchor = anchor
		}
		if result.AnchorErr != nil {
			s.metrics.IncrementAnchorFailure()
			s.logger.Warn("failed to anchor credential", zap.String("credential_id", c.ID), zap.Error(result.AnchorErr))
		}
	}

	return result, nil
}

// Derive creates a selective-disclosure credential from source, signed by the
// holder identity.
func (s *Service) Derive(ctx context.Context, source *vc.Credential, fields []vc.DegreeField) (*vc.Credential, error) {
	holder, err := s.identities.Get(ctx, identity.ScopeHolder)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	derived, err := vc.Derive(source, fields, holder, s.vcOpts()...)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveSigning(start)
	s.metrics.IncrementDerived()

	return derived, nil
}

// Verify decodes raw and verifies the resulting credential.
func (s *Service) Verify(ctx context.Context, raw string) VerificationResult {
	c, err := vc.ParseCredential(raw, s.vcOpts()...)
	if err != nil {
		result := VerificationResult{Status: StatusMalformed, Message: "Invalid credential: " + err.Error()}
		if errors.Is(err, vc.ErrUndecodableCredential) {
			result = VerificationResult{Status: StatusUndecodable, Message: "Invalid format. Provide an encoded credential or valid JSON."}
		}
		s.metrics.IncrementVerification(result.Status)
		return result
	}

	return s.VerifyCredential(ctx, c)
}

// VerifyCredential checks the signature and then the revocation status of c.
// A failed revocation lookup leaves the credential valid with a warning.
func (s *Service) VerifyCredential(ctx context.Context, c *vc.Credential) VerificationResult {
	result := s.verify(ctx, c)
	s.metrics.IncrementVerification(result.Status)
	return result
}

func (s *Service) verify(ctx context.Context, c *vc.Credential) VerificationResult {
	if c == nil {
		return VerificationResult{Status: StatusMalformed, Message: "Invalid credential: credential is empty."}
	}

	if !vc.Verify(c, s.vcOpts()...) {
		return VerificationResult{
			Status:     StatusInvalidSignature,
			Message:    "Verification failed: Invalid signature.",
			Credential: c,
		}
	}

	hash, err := vc.ComputeHash(c)
	if err != nil {
		return VerificationResult{Status: StatusMalformed, Message: "Invalid credential: " + err.Error(), Credential: c}
	}

	result := VerificationResult{SignatureValid: true, Hash: hash, Credential: c}

	status := s.status.Check(ctx, hash)
	switch {
	case !status.Checked:
		result.Status = StatusValid
		result.Message = "Signature is valid."
		result.Warning = "Revocation status could not be checked: " + status.Err.Error()
	case status.Revoked:
		result.Status = StatusRevoked
		result.Message = "Credential has been revoked by the issuer."
		result.RevocationChecked = true
	default:
		result.Status = StatusValid
		result.Message = "Credential is valid and authentic."
		result.RevocationChecked = true
	}

	return result
}

// ComputeHash returns the ledger hash of c.
func (s *Service) ComputeHash(c *vc.Credential) (string, error) {
	return vc.ComputeHash(c)
}

// Revoke records the revocation of a credential issued by the institution.
func (s *Service) Revoke(ctx context.Context, c *vc.Credential) error {
	revoker, ok := s.ledger.(ledger.Revoker)
	if !ok {
		return ledger.ErrRevocationUnsupported
	}
	if c == nil {
		return fmt.Errorf("%w: credential is nil", vc.ErrMalformedCredential)
	}

	inst, err := s.identities.Get(ctx, identity.ScopeInstitution)
	if err != nil {
		return err
	}
	if err := vc.VerifySignature(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	// The proof verified, so the verification method names the actual signer.
	signerAddr, err := did.ParseAddress(c.Proof.VerificationMethod)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if c.Issuer != inst.DID() || !did.SameAddress(signerAddr.Hex(), inst.Address()) {
		return fmt.Errorf("%w: issuer %s", ErrNotIssuer, c.Issuer)
	}

	hash, err := vc.ComputeHash(c)
	if err != nil {
		return err
	}
	if err := revoker.RevokeCredential(ctx, hash); err != nil {
		return fmt.Errorf("failed to revoke credential: %w", err)
	}

	s.logger.Info("revoked credential", zap.String("credential_id", c.ID), zap.String("hash", hash))
	return nil
}
