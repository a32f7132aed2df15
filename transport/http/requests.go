package httptransport

import (
	"fmt"

	"github.com/pilacorp/go-degree-credential/credential/vc"
)

// IssueRequest is the body of POST /v1/credentials/issue.
type IssueRequest struct {
	SubjectDID string          `json:"subjectDid"`
	Degree     vc.DegreeClaim  `json:"degree"`
	Transcript *TranscriptFile `json:"transcript,omitempty"`
	Anchor     bool            `json:"anchor"`
}

// TranscriptFile carries an uploaded file. Data is base64 in JSON.
type TranscriptFile struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

// DeriveRequest is the body of POST /v1/wallet/credentials/{id}/derive.
type DeriveRequest struct {
	Fields []string `json:"fields"`
}

// ParsedFields converts the field names, rejecting unknown ones.
func (r DeriveRequest) ParsedFields() ([]vc.DegreeField, error) {
	fields := make([]vc.DegreeField, 0, len(r.Fields))
	for _, name := range r.Fields {
		f, err := vc.ParseDegreeField(name)
		if err != nil {
			return nil, fmt.Errorf("invalid fields: %w", err)
		}
		fields = append(fields, f)
	}
	return fields, nil
}
