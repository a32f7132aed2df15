package vc

import (
	"fmt"

	"go.uber.org/zap"

	vccrypto "github.com/pilacorp/go-degree-credential/credential/common/crypto"
	"github.com/pilacorp/go-degree-credential/credential/common/dto"
	"github.com/pilacorp/go-degree-credential/did"
)

// Sign computes the credential hash and returns a proof signed by signer.
// The credential itself is not modified.
func Sign(c *Credential, signer Signer, opts ...CredentialOpt) (*dto.Proof, error) {
	if c == nil {
		return nil, fmt.Errorf("credential is nil")
	}
	if c.Proof != nil {
		return nil, ErrAlreadySigned
	}
	if signer == nil {
		return nil, fmt.Errorf("signer is nil")
	}
	options := getOptions(opts...)

	hash, err := ComputeHash(c)
	if err != nil {
		return nil, err
	}

	digest, err := vccrypto.DecodeHash(hash)
	if err != nil {
		return nil, err
	}

	sig, err := signer.SignMessage(digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign credential: %w", err)
	}
	if len(sig) != vccrypto.SignatureLength {
		return nil, fmt.Errorf("invalid signature length: expected %d bytes, got %d", vccrypto.SignatureLength, len(sig))
	}

	return &dto.Proof{
		Type:               dto.ProofTypeSecp256k1Signature2019,
		Created:            FormatTime(options.clock()),
		ProofPurpose:       dto.ProofPurposeAssertionMethod,
		VerificationMethod: did.VerificationMethodID(signer.DID()),
		Signature:          vccrypto.EncodeSignature(sig),
	}, nil
}

// AddProof signs the credential and attaches the proof.
func (c *Credential) AddProof(signer Signer, opts ...CredentialOpt) error {
	proof, err := Sign(c, signer, opts...)
	if err != nil {
		return err
	}
	c.Proof = proof
	return nil
}

// VerifySignature checks that the proof signature was produced over the
// credential's current content by the key named in proof.verificationMethod.
func VerifySignature(c *Credential) error {
	if c == nil {
		return fmt.Errorf("credential is nil")
	}
	if c.Proof == nil {
		return fmt.Errorf("credential has no proof")
	}
	if c.Proof.Signature == "" {
		return fmt.Errorf("proof has no signature")
	}

	hash, err := ComputeHash(c)
	if err != nil {
		return err
	}
	digest, err := vccrypto.DecodeHash(hash)
	if err != nil {
		return err
	}

	recovered, err := vccrypto.RecoverPersonalMessageSigner(digest, c.Proof.Signature)
	if err != nil {
		return fmt.Errorf("failed to recover signer: %w", err)
	}

	expected, err := did.ParseAddress(c.Proof.VerificationMethod)
	if err != nil {
		return fmt.Errorf("invalid verification method: %w", err)
	}

	if !did.SameAddress(recovered.Hex(), expected.Hex()) {
		return fmt.Errorf("signer mismatch: recovered %s, verification method names %s", recovered.Hex(), expected.Hex())
	}

	return nil
}

// Verify reports whether the credential's proof is valid. Failures are logged
// and never returned.
func Verify(c *Credential, opts ...CredentialOpt) bool {
	options := getOptions(opts...)

	if err := VerifySignature(c); err != nil {
		fields := []zap.Field{zap.Error(err)}
		if c != nil {
			fields = append(fields, zap.String("credential_id", c.ID))
		}
		options.logger.Warn("credential signature verification failed", fields...)
		return false
	}

	options.logger.Debug("credential signature verified", zap.String("credential_id", c.ID))
	return true
}
