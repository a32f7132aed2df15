// Package vc issues, signs, derives and verifies university degree
// credentials.
//
// The signing input of a credential is the Keccak-256 digest of its
// canonical JSON form with the proof removed. The digest is signed as an
// EIP-191 personal message by the key behind the issuer's DID.
package vc

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pilacorp/go-degree-credential/credential/common/canonical"
	"github.com/pilacorp/go-degree-credential/credential/common/dto"
)

const (
	ContextCredentialsV1 = "https://www.w3.org/2018/credentials/v1"

	TypeVerifiableCredential     = "VerifiableCredential"
	TypeUniversityDegree         = "UniversityDegreeCredential"
	TypeDerivedUniversityDegree  = "DerivedUniversityDegreeCredential"
	EvidenceTypeTranscript       = "Transcript"
	EvidenceTypeSourceCredential = "SourceCredential"

	SourceEvidenceName = "Original University Degree Credential"

	// TimeLayout is the millisecond ISO-8601 UTC form of all timestamps.
	TimeLayout = "2006-01-02T15:04:05.000Z"
)

var (
	ErrEmptySelection        = errors.New("at least one degree field must be selected")
	ErrUnknownDegreeField    = errors.New("unknown degree field")
	ErrMalformedCredential   = errors.New("malformed credential")
	ErrUndecodableCredential = errors.New("credential could not be decoded")
	ErrAlreadySigned         = errors.New("credential already carries a proof")
	ErrInvalidIssueRequest   = errors.New("invalid issue request")
)

// Credential is a degree credential as exchanged between issuer, holder and
// verifier. Field order is the serialization order of nested values.
type Credential struct {
	Context           []string          `json:"@context"`
	ID                string            `json:"id"`
	Type              []string          `json:"type"`
	Issuer            string            `json:"issuer"`
	IssuanceDate      string            `json:"issuanceDate"`
	CredentialSubject CredentialSubject `json:"credentialSubject"`
	Evidence          []Evidence        `json:"evidence,omitempty"`
	Proof             *dto.Proof        `json:"proof,omitempty"`
}

type CredentialSubject struct {
	ID        string      `json:"id"`
	Degree    DegreeClaim `json:"degree"`
	IssueDate string      `json:"issueDate"`
}

// DegreeClaim describes the awarded degree. Empty fields are absent.
type DegreeClaim struct {
	Type  string `json:"type,omitempty"`
	Name  string `json:"name,omitempty"`
	Major string `json:"major,omitempty"`
}

// Evidence references supporting material such as an uploaded transcript or
// the source of a derived credential.
type Evidence struct {
	ID   string   `json:"id"`
	Type []string `json:"type"`
	Name string   `json:"name"`
	CID  string   `json:"cid,omitempty"`
}

// Signer signs credential digests on behalf of a DID.
type Signer interface {
	DID() string
	// SignMessage returns a 65-byte r||s||v signature over the EIP-191
	// personal-message digest of msg.
	SignMessage(msg []byte) ([]byte, error)
}

// MarshalJSON emits an explicitly empty evidence list as "evidence":[].
// A nil list is omitted.
func (c Credential) MarshalJSON() ([]byte, error) {
	type plain Credential
	if c.Evidence == nil || len(c.Evidence) > 0 {
		return canonical.Marshal(plain(c))
	}
	return canonical.Marshal(struct {
		plain
		Evidence []Evidence `json:"evidence"`
	}{plain(c), c.Evidence})
}

// HasType reports whether the credential lists t among its types.
func (c *Credential) HasType(t string) bool {
	for _, ct := range c.Type {
		if ct == t {
			return true
		}
	}
	return false
}

// IsDerived reports whether the credential was derived from another one.
func (c *Credential) IsDerived() bool {
	return c.HasType(TypeDerivedUniversityDegree)
}

// CredentialOpt configures credential processing.
type CredentialOpt func(*credentialOptions)

type credentialOptions struct {
	ctx      context.Context
	clock    func() time.Time
	newID    func() string
	contexts []string
	logger   *zap.Logger
	decoders []Decoder
}

// WithClock overrides the time source used for issuance and proof dates.
func WithClock(clock func() time.Time) CredentialOpt {
	return func(o *credentialOptions) {
		o.clock = clock
	}
}

// WithIDGenerator overrides the credential id generator.
func WithIDGenerator(newID func() string) CredentialOpt {
	return func(o *credentialOptions) {
		o.newID = newID
	}
}

// WithContext sets the @context of issued credentials.
func WithContext(contexts ...string) CredentialOpt {
	return func(o *credentialOptions) {
		o.contexts = contexts
	}
}

func WithLogger(logger *zap.Logger) CredentialOpt {
	return func(o *credentialOptions) {
		o.logger = logger
	}
}

// WithRequestContext attaches ctx to log entries and cancellation checks.
func WithRequestContext(ctx context.Context) CredentialOpt {
	return func(o *credentialOptions) {
		o.ctx = ctx
	}
}

// WithDecoders replaces the decoder chain used by ParseCredential.
func WithDecoders(decoders ...Decoder) CredentialOpt {
	return func(o *credentialOptions) {
		o.decoders = decoders
	}
}

func getOptions(opts ...CredentialOpt) *credentialOptions {
	options := &credentialOptions{
		ctx:      context.Background(),
		clock:    time.Now,
		newID:    NewID,
		contexts: []string{ContextCredentialsV1},
		logger:   zap.NewNop(),
		decoders: DefaultDecoders(),
	}

	for _, opt := range opts {
		opt(options)
	}

	return options
}

// NewID returns a fresh urn:uuid identifier.
func NewID() string {
	return "urn:uuid:" + uuid.NewString()
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
