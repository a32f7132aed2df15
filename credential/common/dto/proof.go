package dto

// Proof types and purposes used by degree credentials.
const (
	ProofTypeSecp256k1Signature2019 = "EcdsaSecp256k1Signature2019"
	ProofPurposeAssertionMethod     = "assertionMethod"
)

// Proof represents the signature envelope attached to a Verifiable Credential.
//
// Field order is the serialized order; do not reorder.
type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	ProofPurpose       string `json:"proofPurpose"`
	VerificationMethod string `json:"verificationMethod"`
	Signature          string `json:"signature"`
}
