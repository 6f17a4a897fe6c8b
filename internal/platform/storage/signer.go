package storage

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Signer signs payloads for V4 signed URLs and names the account they are
// signed as.
type Signer interface {
	Email() string
	SignBytes(ctx context.Context, payload []byte) ([]byte, error)
}

// ServiceAccountSigner signs with a service account's RSA private key.
type ServiceAccountSigner struct {
	email string
	key   *rsa.PrivateKey
}

// NewServiceAccountSignerFromFile loads a service account JSON key file and
// builds a signer from its client_email and private_key fields.
func NewServiceAccountSignerFromFile(path string) (*ServiceAccountSigner, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read service account file: %w", err)
	}

	var key struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err := json.Unmarshal(contents, &key); err != nil {
		return nil, fmt.Errorf("storage: decode service account json: %w", err)
	}

	email := strings.TrimSpace(key.ClientEmail)
	if email == "" {
		return nil, errors.New("storage: client_email missing in service account JSON")
	}
	rsaKey, err := decodePrivateKey(strings.TrimSpace(key.PrivateKey))
	if err != nil {
		return nil, err
	}
	return &ServiceAccountSigner{email: email, key: rsaKey}, nil
}

// Email implements Signer.
func (s *ServiceAccountSigner) Email() string {
	if s == nil {
		return ""
	}
	return s.email
}

// SignBytes implements Signer using RSA PKCS#1 v1.5 over SHA-256, the scheme
// Cloud Storage expects for SigningSchemeV4.
func (s *ServiceAccountSigner) SignBytes(ctx context.Context, payload []byte) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, errors.New("storage: signer not initialised")
	}
	if len(payload) == 0 {
		return nil, errors.New("storage: payload is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("storage: sign payload: %w", err)
	}
	return sig, nil
}

// decodePrivateKey accepts PKCS#8 and PKCS#1 encoded RSA keys, the two forms
// Google issues for service accounts.
func decodePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	if pemData == "" {
		return nil, errors.New("storage: private_key missing in service account JSON")
	}
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("storage: failed to decode PEM private key")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("storage: private key is not RSA")
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("storage: parse RSA private key: %w", err)
	}
	return rsaKey, nil
}
