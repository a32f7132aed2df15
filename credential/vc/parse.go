package vc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pilacorp/go-degree-credential/credential/common/canonical"
	"github.com/pilacorp/go-degree-credential/credential/common/schema"
	"github.com/pilacorp/go-degree-credential/credential/common/util"
)

// Decoder turns transport text into credential JSON.
type Decoder interface {
	Name() string
	Decode(raw string) ([]byte, error)
}

type base64JSONDecoder struct{}

func (base64JSONDecoder) Name() string { return "base64" }

func (base64JSONDecoder) Decode(raw string) ([]byte, error) {
	data, err := util.DecodeBase64(raw)
	if err != nil {
		return nil, err
	}
	return requireJSONObject(data)
}

type compactDecoder struct{}

func (compactDecoder) Name() string { return "compact" }

func (compactDecoder) Decode(raw string) ([]byte, error) {
	data, err := util.DecompressFromBase64URL(raw)
	if err != nil {
		return nil, err
	}
	return requireJSONObject(data)
}

type rawJSONDecoder struct{}

func (rawJSONDecoder) Name() string { return "json" }

func (rawJSONDecoder) Decode(raw string) ([]byte, error) {
	return requireJSONObject([]byte(raw))
}

func requireJSONObject(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' || !json.Valid(data) {
		return nil, errors.New("not a JSON object")
	}
	return data, nil
}

var (
	Base64JSONDecoder Decoder = base64JSONDecoder{}
	CompactDecoder    Decoder = compactDecoder{}
	RawJSONDecoder    Decoder = rawJSONDecoder{}
)

// DefaultDecoders returns the decoders tried by ParseCredential, in order:
// base64 JSON, gzip base64url JSON, raw JSON.
func DefaultDecoders() []Decoder {
	return []Decoder{Base64JSONDecoder, CompactDecoder, RawJSONDecoder}
}

var credentialValidator = schema.NewCredentialValidator()

// ParseCredential decodes a credential from any supported transport encoding.
// The first decoder that yields a JSON object wins. The document must then
// carry an issuer, a credentialSubject and a proof.
func ParseCredential(raw string, opts ...CredentialOpt) (*Credential, error) {
	options := getOptions(opts...)

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: %w: input is empty", ErrMalformedCredential, ErrUndecodableCredential)
	}

	var data []byte
	for _, d := range options.decoders {
		decoded, err := d.Decode(raw)
		if err != nil {
			options.logger.Debug("decoder rejected input", zap.String("decoder", d.Name()), zap.Error(err))
			continue
		}
		data = decoded
		break
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCredential, ErrUndecodableCredential)
	}

	if err := credentialValidator.Validate(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}

	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}

	return &c, nil
}

// JSON returns the credential as compact JSON without HTML escaping.
func (c *Credential) JSON() ([]byte, error) {
	return canonical.Marshal(c)
}

// Encode returns the standard base64 encoding of the credential JSON.
func Encode(c *Credential) (string, error) {
	data, err := c.JSON()
	if err != nil {
		return "", fmt.Errorf("failed to encode credential: %w", err)
	}
	return util.EncodeBase64(data), nil
}

// EncodeCompact returns the gzip + base64url encoding of the credential JSON.
func EncodeCompact(c *Credential) (string, error) {
	data, err := c.JSON()
	if err != nil {
		return "", fmt.Errorf("failed to encode credential: %w", err)
	}
	return util.CompressToBase64URL(data)
}
