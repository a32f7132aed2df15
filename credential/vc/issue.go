package vc

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Issue builds a UniversityDegreeCredential for subjectDID and signs it.
// The degree must carry at least a type and a name.
func Issue(subjectDID string, degree DegreeClaim, evidence []Evidence, signer Signer, opts ...CredentialOpt) (*Credential, error) {
	if strings.TrimSpace(subjectDID) == "" {
		return nil, fmt.Errorf("%w: subject DID is required", ErrInvalidIssueRequest)
	}
	if degree.Type == "" || degree.Name == "" {
		return nil, fmt.Errorf("%w: degree type and name are required", ErrInvalidIssueRequest)
	}
	if signer == nil {
		return nil, fmt.Errorf("%w: signer is required", ErrInvalidIssueRequest)
	}
	options := getOptions(opts...)

	issuanceDate := FormatTime(options.clock())
	c := &Credential{
		Context:      append([]string(nil), options.contexts...),
		ID:           options.newID(),
		Type:         []string{TypeVerifiableCredential, TypeUniversityDegree},
		Issuer:       signer.DID(),
		IssuanceDate: issuanceDate,
		CredentialSubject: CredentialSubject{
			ID:        subjectDID,
			Degree:    degree,
			IssueDate: issuanceDate,
		},
		Evidence: evidence,
	}

	if err := c.AddProof(signer, opts...); err != nil {
		return nil, err
	}

	options.logger.Info("issued credential",
		zap.String("credential_id", c.ID),
		zap.String("issuer", c.Issuer),
		zap.String("subject", subjectDID))

	return c, nil
}
