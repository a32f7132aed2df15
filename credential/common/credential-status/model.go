package credentialstatus

// Result is the outcome of a revocation lookup.
type Result struct {
	// Revoked is meaningful only when Checked is true.
	Revoked bool
	// Checked is false when the ledger could not be consulted.
	Checked bool
	Err     error
}
