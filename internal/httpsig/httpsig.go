// Package httpsig signs and verifies HTTP requests the way Open Payments
// authorization and resource servers expect: RFC 9421 message signatures
// with ed25519 keys and an RFC 9530 sha-512 Content-Digest. Signing itself is
// done by github.com/yaronf/httpsign; this package picks the covered
// components and handles key formats.
package httpsig

import (
	"bytes"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/yaronf/httpsign"
)

var (
	ErrInvalidKey       = errors.New("invalid ed25519 private key")
	ErrMissingSignature = errors.New("missing signature headers")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrDigestMismatch   = errors.New("content digest mismatch")
)

const (
	Label     = "sig1"
	Algorithm = "ed25519"

	HeaderSignature      = "Signature"
	HeaderSignatureInput = "Signature-Input"
	HeaderContentDigest  = "Content-Digest"
)

// Signer signs outgoing requests
type Signer struct {
	KeyId string
	Key   ed25519.PrivateKey
}

// LoadPrivateKey accepts a PKCS#8 PEM block, the same PEM base64 encoded
// (as exported by the Interledger test wallet) or a raw base64 ed25519 seed
func LoadPrivateKey(contents []byte) (key ed25519.PrivateKey, err error) {
	contents = bytes.TrimSpace(contents)
	if len(contents) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidKey)
	}

	if !bytes.HasPrefix(contents, []byte("-----BEGIN")) {
		decoded, err := base64.StdEncoding.DecodeString(string(contents))
		if err != nil {
			return nil, fmt.Errorf("%w: not PEM nor base64: %w", ErrInvalidKey, err)
		}
		if len(decoded) == ed25519.SeedSize {
			return ed25519.NewKeyFromSeed(decoded), nil
		}
		contents = bytes.TrimSpace(decoded)
	}

	block, _ := pem.Decode(contents)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidKey)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: expecting ed25519, got %T", ErrInvalidKey, parsed)
	}
	return key, nil
}

// EncodePrivateKey returns key as a PKCS#8 PEM block
func EncodePrivateKey(key ed25519.PrivateKey) (contents []byte, err error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// JWK is the public key format wallets register for a key id
type JWK struct {
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
}

func PublicJWK(keyId string, key ed25519.PrivateKey) JWK {
	return JWK{
		Kid: keyId,
		Alg: "EdDSA",
		Kty: "OKP",
		Crv: "Ed25519",
		X:   base64.RawURLEncoding.EncodeToString(key.Public().(ed25519.PublicKey)),
	}
}

func ContentDigest(body []byte) (digest string, err error) {
	rc := io.NopCloser(bytes.NewReader(body))
	digest, err = httpsign.GenerateContentDigestHeader(&rc, []string{httpsign.DigestSha512})
	if err != nil {
		return "", fmt.Errorf("failed to digest body: %w", err)
	}
	return digest, nil
}

// Components covered by the signature of req. Body related components only
// when there is a body
func components(req *http.Request, hasBody bool) (fields httpsign.Fields) {
	names := []string{"@method", "@target-uri"}
	if hasBody {
		names = append(names, "content-digest", "content-length", "content-type")
	}
	if req.Header.Get("Authorization") != "" {
		names = append(names, "authorization")
	}
	return httpsign.Headers(names...)
}

// Sign sets Content-Digest (when body is not empty), Signature-Input and
// Signature on req. body must be the exact bytes sent
func (s *Signer) Sign(req *http.Request, body []byte) (err error) {
	if len(s.Key) != ed25519.PrivateKeySize {
		return ErrInvalidKey
	}

	hasBody := len(body) > 0
	if hasBody {
		digest, err := ContentDigest(body)
		if err != nil {
			return err
		}
		req.Header.Set(HeaderContentDigest, digest)
		req.Header.Set("Content-Length", strconv.Itoa(len(body)))
	}

	config := httpsign.NewSignConfig().SetKeyID(s.KeyId)
	signer, err := httpsign.NewEd25519Signer(s.Key, config, components(req, hasBody))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	input, signature, err := httpsign.SignRequest(Label, *signer, req)
	if err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}
	req.Header.Set(HeaderSignatureInput, input)
	req.Header.Set(HeaderSignature, signature)
	return nil
}

// Verify checks the request signature against key. body is the request body
// already read by the caller
func Verify(req *http.Request, body []byte, key ed25519.PublicKey) (err error) {
	if req.Header.Get(HeaderSignatureInput) == "" || req.Header.Get(HeaderSignature) == "" {
		return ErrMissingSignature
	}

	hasBody := len(body) > 0
	if hasBody {
		rc := io.NopCloser(bytes.NewReader(body))
		err = httpsign.ValidateContentDigestHeader(req.Header.Values(HeaderContentDigest), &rc, []string{httpsign.DigestSha512})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDigestMismatch, err)
		}
	}

	verifier, err := httpsign.NewEd25519Verifier(key, httpsign.NewVerifyConfig(), components(req, hasBody))
	if err != nil {
		return fmt.Errorf("failed to prepare verifier: %w", err)
	}
	err = httpsign.VerifyRequest(Label, *verifier, req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return nil
}
