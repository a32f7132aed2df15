// Package schema validates the structural shape of imported credentials.
package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// CredentialSchema is the minimum shape a credential must have to be held or
// verified: an issuer, a subject and a proof.
const CredentialSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["issuer", "credentialSubject", "proof"],
  "properties": {
    "id": {"type": "string"},
    "issuer": {"type": "string", "minLength": 1},
    "issuanceDate": {"type": "string"},
    "type": {"type": "array", "items": {"type": "string"}},
    "credentialSubject": {"type": "object"},
    "evidence": {"type": "array", "items": {"type": "object"}},
    "proof": {"type": "object"}
  }
}`

// Validator checks JSON documents against a compiled schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the given JSON schema.
func NewValidator(schema string) (*Validator, error) {
	compiled, err := gojsonschema.NewSchemaLoader().Compile(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile JSON schema: %w", err)
	}

	return &Validator{schema: compiled}, nil
}

// NewCredentialValidator returns a Validator for CredentialSchema.
func NewCredentialValidator() *Validator {
	v, err := NewValidator(CredentialSchema)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks a raw JSON document.
func (v *Validator) Validate(doc []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("loader error: %w", err)
	}

	if !result.Valid() {
		return fmt.Errorf("validation error: %w", validationErrors(result.Errors()))
	}

	return nil
}

type validationErrors []gojsonschema.ResultError

func (e validationErrors) Error() string {
	var errMsg string

	for i, msg := range e {
		errMsg += msg.String()
		if i+1 < len(e) {
			errMsg += "; "
		}
	}

	return fmt.Sprintf("[%s]", errMsg)
}
