package storage

import (
	"context"
	"errors"
	"strings"

	gcs "cloud.google.com/go/storage"
)

// ProofArchiver moves superseded payment-proof objects aside when a customer
// resubmits proof, so the original upload stays auditable.
type ProofArchiver struct {
	client *gcs.Client
}

// NewProofArchiver constructs a ProofArchiver backed by the provided Cloud Storage client.
func NewProofArchiver(client *gcs.Client) (*ProofArchiver, error) {
	if client == nil {
		return nil, errors.New("storage archiver: client is required")
	}
	return &ProofArchiver{client: client}, nil
}

// Archive copies the proof object to the destination key within the same bucket.
// The source object is left in place; lifecycle rules clean it up.
func (a *ProofArchiver) Archive(ctx context.Context, ref ObjectRef, destObject string) error {
	if a == nil || a.client == nil {
		return errors.New("storage archiver: client is not initialised")
	}

	bucket := strings.TrimSpace(ref.Bucket)
	srcObject := strings.TrimSpace(ref.Object)
	dstObject := strings.TrimSpace(destObject)
	if bucket == "" || srcObject == "" || dstObject == "" {
		return errors.New("storage archiver: source and destination must be provided")
	}
	if srcObject == dstObject {
		return nil
	}

	src := a.client.Bucket(bucket).Object(srcObject)
	dst := a.client.Bucket(bucket).Object(dstObject)
	_, err := dst.CopierFrom(src).Run(ctx)
	return err
}
