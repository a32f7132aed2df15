package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// DefaultPinningEndpoint is the Pinata pinFileToIPFS API.
const DefaultPinningEndpoint = "https://api.pinata.cloud/pinning/pinFileToIPFS"

// PinningClient uploads content to a Pinata-compatible pinning service.
type PinningClient struct {
	endpoint string
	jwt      string
	client   *http.Client
	logger   *zap.Logger
}

type PinningOption func(*PinningClient)

func WithHTTPClient(c *http.Client) PinningOption {
	return func(p *PinningClient) { p.client = c }
}

func WithPinningLogger(l *zap.Logger) PinningOption {
	return func(p *PinningClient) { p.logger = l }
}

// NewPinningClient creates a client authenticating with a bearer JWT. An empty
// endpoint uses DefaultPinningEndpoint.
func NewPinningClient(endpoint, jwt string, opts ...PinningOption) (*PinningClient, error) {
	if jwt == "" {
		return nil, errors.New("pinning service token required")
	}
	if endpoint == "" {
		endpoint = DefaultPinningEndpoint
	}

	p := &PinningClient{
		endpoint: endpoint,
		jwt:      jwt,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

func (p *PinningClient) Upload(ctx context.Context, content Content) (*UploadResult, error) {
	if len(content.Data) == 0 {
		return nil, errors.New("content is empty")
	}

	body, contentType, err := multipartBody(content)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+p.jwt)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call pinning service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pinning service returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	var out pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode pinning response: %w", err)
	}
	if out.IpfsHash == "" {
		return nil, errors.New("pinning response has no IpfsHash")
	}

	p.logger.Info("pinned content", zap.String("name", content.Name), zap.String("cid", out.IpfsHash), zap.Int64("size", out.PinSize))
	return &UploadResult{CID: out.IpfsHash}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func multipartBody(content Content) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := content.Name
	if name == "" {
		name = "evidence"
	}
	ct := content.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(name)))
	h.Set("Content-Type", ct)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content.Data); err != nil {
		return nil, "", err
	}

	meta, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField("pinataMetadata", string(meta)); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
