// Package validator checks ingestion requests and reports per-field errors.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/errors"
)

const (
	maxTitleLength    = 1024
	maxMetadataLength = 256
	maxContentLength  = 16 << 20
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	switch {
	case req.ID == nil:
		errs["id"] = "id is required"
	case *req.ID < 0:
		errs["id"] = "id must not be negative"
	}
	if len(req.Title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if len(req.Author) > maxMetadataLength {
		errs["author"] = fmt.Sprintf("author must be at most %d characters", maxMetadataLength)
	}
	if len(req.Language) > maxMetadataLength {
		errs["language"] = fmt.Sprintf("language must be at most %d characters", maxMetadataLength)
	}
	if len(req.ReleaseDate) > maxMetadataLength {
		errs["releaseDate"] = fmt.Sprintf("releaseDate must be at most %d characters", maxMetadataLength)
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		errs["content"] = "content is required"
	} else if len(req.Content) > maxContentLength {
		errs["content"] = fmt.Sprintf("content must be at most %d bytes", maxContentLength)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
