// Package artifact persists the binary side-products of a job (the original
// upload, the overlay and the mask) keyed by job id and a fixed name.
package artifact

import (
	"context"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	apperrors "vision-gateway/pkg/errors"
)

type Name string

const (
	Original Name = "original"
	Overlay  Name = "overlay"
	Mask     Name = "mask"
)

// Names is the complete artifact vocabulary.
var Names = []Name{Original, Overlay, Mask}

// ParseName accepts only the fixed vocabulary, so a caller-supplied name can
// never reach a path or object key.
func ParseName(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Names {
		if n == known {
			return n, nil
		}
	}
	return "", apperrors.ErrInvalidArtifactName.WithDetail(s)
}

// Store writes are idempotent per key: the last write wins.
type Store interface {
	Write(ctx context.Context, jobID string, name Name, data []byte) error
	Read(ctx context.Context, jobID string, name Name) ([]byte, error)
	Delete(ctx context.Context, jobID string) error
}

// MediaType sniffs the content type of an artifact.
func MediaType(data []byte) string {
	return mimetype.Detect(data).String()
}

// checkKey rejects anything but a canonical job id and a known name.
func checkKey(jobID string, name Name) error {
	if err := checkJobID(jobID); err != nil {
		return err
	}
	if _, err := ParseName(string(name)); err != nil {
		return err
	}
	return nil
}

func checkJobID(jobID string) error {
	id, err := uuid.Parse(jobID)
	if err != nil || id.String() != jobID {
		return apperrors.New(apperrors.CodeInvalidParams, "Invalid job id").WithDetail(jobID)
	}
	return nil
}

func notFound(jobID string, name Name) error {
	return apperrors.ErrArtifactNotFound.WithDetail(jobID + "/" + string(name))
}
