// Package util holds the transport encodings used to move credentials between
// parties as copy/paste text or QR payloads.
package util

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxDecompressedSize bounds the output of Decompress.
const MaxDecompressedSize = 1 << 20

var errTooLarge = errors.New("decompressed payload exceeds size limit")

// Compress gzips data.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decompress gunzips data, refusing outputs larger than MaxDecompressedSize.
func Decompress(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	out, err := io.ReadAll(io.LimitReader(gz, MaxDecompressedSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > MaxDecompressedSize {
		return nil, errTooLarge
	}

	return out, nil
}

// EncodeBase64 encodes data with the standard padded alphabet.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes standard base64, with or without padding. Whitespace,
// including line breaks introduced by copy/paste, is ignored.
func DecodeBase64(s string) ([]byte, error) {
	s = stripSpace(s)
	if s == "" {
		return nil, errors.New("empty base64 input")
	}

	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// CompressToBase64URL gzips data and encodes it with the unpadded URL alphabet.
func CompressToBase64URL(data []byte) (string, error) {
	compressed, err := Compress(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(compressed), nil
}

// DecompressFromBase64URL reverses CompressToBase64URL.
func DecompressFromBase64URL(s string) ([]byte, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(stripSpace(s), "="))
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64url: %w", err)
	}
	return Decompress(compressed)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}
