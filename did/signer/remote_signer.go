package signer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	vccrypto "github.com/pilacorp/go-degree-credential/credential/common/crypto"
)

const defaultRemoteTimeout = 10 * time.Second

// RemoteSigner signs digests through an HTTP signing service holding the key.
type RemoteSigner struct {
	endpoint string
	apiKey   string
	address  string
	client   *http.Client
}

// NewRemoteSigner creates a RemoteSigner for the key controlling address.
func NewRemoteSigner(endpoint, apiKey, address string) (*RemoteSigner, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("endpoint required")
	}
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("signer address required")
	}

	return &RemoteSigner{
		endpoint: endpoint,
		apiKey:   apiKey,
		address:  address,
		client: &http.Client{
			Timeout:   defaultRemoteTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

func (s *RemoteSigner) GetAddress() string {
	return s.address
}

func (s *RemoteSigner) Sign(hash []byte) ([]byte, error) {
	return s.SignContext(context.Background(), hash)
}

// SignContext signs a 32-byte digest. Signatures returned with v in {27,28}
// are normalized to {0,1}.
func (s *RemoteSigner) SignContext(ctx context.Context, hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("payload must be 32 bytes, got %d", len(hash))
	}

	reqBody, err := json.Marshal(map[string]any{
		"payload_hex": hex.EncodeToString(hash),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote signer http %d", resp.StatusCode)
	}

	var out struct {
		SignatureHex string `json:"signature_hex"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode remote signer response: %w", err)
	}

	sig, err := vccrypto.DecodeSignature(out.SignatureHex)
	if err != nil {
		return nil, fmt.Errorf("remote signer: %w", err)
	}

	return sig, nil
}
