package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ObjectRef identifies an object within a Cloud Storage bucket.
type ObjectRef struct {
	Bucket string
	Object string
}

// ErrInvalidProofRef is returned when a stored proof reference cannot be resolved.
var ErrInvalidProofRef = errors.New("storage: invalid payment proof reference")

// ProofObjectPath composes the canonical object key for an order's payment proof.
func ProofObjectPath(orderID, fileName string) (string, error) {
	orderID, err := validateSegment("orderID", orderID)
	if err != nil {
		return "", err
	}
	fileName, err = validateFileName(fileName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("orders/%s/proofs/%s", orderID, fileName), nil
}

// ArchiveProofObjectPath composes the object key a superseded proof is moved to.
func ArchiveProofObjectPath(orderID, fileName string) (string, error) {
	orderID, err := validateSegment("orderID", orderID)
	if err != nil {
		return "", err
	}
	fileName, err = validateFileName(fileName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("orders/%s/proofs/archive/%s", orderID, fileName), nil
}

// ParseProofRef resolves a stored proof reference into a bucket and object.
// Accepts "gs://bucket/path/to/object" references and bare object paths, where
// the bare form falls back to the configured default bucket.
func ParseProofRef(ref, defaultBucket string) (ObjectRef, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ObjectRef{}, ErrInvalidProofRef
	}

	if rest, ok := strings.CutPrefix(ref, "gs://"); ok {
		bucket, object, found := strings.Cut(rest, "/")
		if !found || strings.TrimSpace(bucket) == "" || strings.TrimSpace(object) == "" {
			return ObjectRef{}, fmt.Errorf("%w: %q", ErrInvalidProofRef, ref)
		}
		if strings.Contains(object, "..") {
			return ObjectRef{}, fmt.Errorf("%w: %q", ErrInvalidProofRef, ref)
		}
		return ObjectRef{Bucket: bucket, Object: object}, nil
	}

	if strings.Contains(ref, "://") || strings.Contains(ref, "..") || strings.HasPrefix(ref, "/") {
		return ObjectRef{}, fmt.Errorf("%w: %q", ErrInvalidProofRef, ref)
	}
	defaultBucket = strings.TrimSpace(defaultBucket)
	if defaultBucket == "" {
		return ObjectRef{}, fmt.Errorf("%w: no bucket for %q", ErrInvalidProofRef, ref)
	}
	return ObjectRef{Bucket: defaultBucket, Object: ref}, nil
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", name)
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: %s contains invalid traversal sequence", name)
	}
	return value, nil
}

func validateFileName(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: fileName is required")
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: fileName contains invalid path characters")
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: fileName contains invalid traversal sequence")
	}
	return value, nil
}
