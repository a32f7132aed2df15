// Package storage uploads credential evidence to content-addressed storage.
package storage

import "context"

// Content is a file to upload.
type Content struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadResult identifies uploaded content.
type UploadResult struct {
	CID string `json:"cid"`
}

// URI returns the ipfs:// URI of the uploaded content.
func (r UploadResult) URI() string {
	return "ipfs://" + r.CID
}

// ContentStore persists content and returns its content identifier.
type ContentStore interface {
	Upload(ctx context.Context, content Content) (*UploadResult, error)
}
