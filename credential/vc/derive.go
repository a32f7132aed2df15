package vc

import (
	"fmt"

	"go.uber.org/zap"
)

// DegreeField names a disclosable attribute of a DegreeClaim.
type DegreeField string

const (
	DegreeFieldType  DegreeField = "type"
	DegreeFieldName  DegreeField = "name"
	DegreeFieldMajor DegreeField = "major"
)

// ParseDegreeField validates a field name.
func ParseDegreeField(s string) (DegreeField, error) {
	switch f := DegreeField(s); f {
	case DegreeFieldType, DegreeFieldName, DegreeFieldMajor:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDegreeField, s)
}

// DegreeSelection accumulates the degree fields to disclose from a source claim.
type DegreeSelection struct {
	source DegreeClaim
	fields map[DegreeField]bool
	err    error
}

func NewDegreeSelection(source DegreeClaim) *DegreeSelection {
	return &DegreeSelection{source: source, fields: make(map[DegreeField]bool)}
}

// Include adds fields to the selection. An unknown field fails Build.
func (s *DegreeSelection) Include(fields ...DegreeField) *DegreeSelection {
	for _, f := range fields {
		if _, err := ParseDegreeField(string(f)); err != nil {
			if s.err == nil {
				s.err = err
			}
			continue
		}
		s.fields[f] = true
	}
	return s
}

// Build returns the claim restricted to the selected fields. Fields absent
// from the source are skipped.
func (s *DegreeSelection) Build() (DegreeClaim, error) {
	if s.err != nil {
		return DegreeClaim{}, s.err
	}

	var out DegreeClaim
	if s.fields[DegreeFieldType] {
		out.Type = s.source.Type
	}
	if s.fields[DegreeFieldName] {
		out.Name = s.source.Name
	}
	if s.fields[DegreeFieldMajor] {
		out.Major = s.source.Major
	}

	if out == (DegreeClaim{}) {
		return DegreeClaim{}, ErrEmptySelection
	}
	return out, nil
}

// Derive creates a new credential disclosing only the selected degree fields of
// source, signed by the holder. Its evidence references the source credential.
func Derive(source *Credential, fields []DegreeField, signer Signer, opts ...CredentialOpt) (*Credential, error) {
	if source == nil {
		return nil, fmt.Errorf("source credential is nil")
	}
	if signer == nil {
		return nil, fmt.Errorf("signer is nil")
	}

	degree, err := NewDegreeSelection(source.CredentialSubject.Degree).Include(fields...).Build()
	if err != nil {
		return nil, err
	}
	options := getOptions(opts...)

	issuanceDate := FormatTime(options.clock())
	derived := &Credential{
		Context:      append([]string(nil), source.Context...),
		ID:           options.newID(),
		Type:         []string{TypeVerifiableCredential, TypeDerivedUniversityDegree},
		Issuer:       signer.DID(),
		IssuanceDate: issuanceDate,
		CredentialSubject: CredentialSubject{
			ID:        source.CredentialSubject.ID,
			Degree:    degree,
			IssueDate: issuanceDate,
		},
		Evidence: []Evidence{{
			ID:   source.ID,
			Type: []string{EvidenceTypeSourceCredential},
			Name: SourceEvidenceName,
		}},
	}

	if err := derived.AddProof(signer, opts...); err != nil {
		return nil, err
	}

	options.logger.Info("derived credential",
		zap.String("credential_id", derived.ID),
		zap.String("source_id", source.ID),
		zap.Any("fields", fields))

	return derived, nil
}
