package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/pilacorp/go-degree-credential/credential/vc"
	"github.com/pilacorp/go-degree-credential/degree"
	"github.com/pilacorp/go-degree-credential/ledger"
)

type IdentityResponse struct {
	DID     string `json:"did"`
	Address string `json:"address"`
}

type IssueResponse struct {
	Credential  *vc.Credential       `json:"credential"`
	Encoded     string               `json:"encoded"`
	Hash        string               `json:"hash"`
	Anchor      *ledger.AnchorResult `json:"anchor,omitempty"`
	AnchorError string               `json:"anchorError,omitempty"`
}

// FromIssueResult maps a service result to the response body.
func FromIssueResult(r *degree.IssueResult) IssueResponse {
	resp := IssueResponse{
		Credential: r.Credential,
		Encoded:    r.Encoded,
		Hash:       r.Hash,
		Anchor:     r.Anchor,
	}
	if r.AnchorErr != nil {
		resp.AnchorError = r.AnchorErr.Error()
	}
	return resp
}

type HashResponse struct {
	Hash string `json:"hash"`
}

type WalletListResponse struct {
	Credentials []*vc.Credential `json:"credentials"`
}

type ExportResponse struct {
	Encoded string `json:"encoded"`
	Compact string `json:"compact"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
