package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id(v int64) *int64 { return &v }

func TestValidateIngestRequest(t *testing.T) {
	tests := []struct {
		name   string
		req    ingestion.IngestRequest
		fields []string
	}{
		{"valid", ingestion.IngestRequest{ID: id(0), Content: "hello"}, nil},
		{"missing id", ingestion.IngestRequest{Content: "hello"}, []string{"id"}},
		{"negative id", ingestion.IngestRequest{ID: id(-1), Content: "hello"}, []string{"id"}},
		{"blank content", ingestion.IngestRequest{ID: id(7), Content: " \n\t"}, []string{"content"}},
		{"long title", ingestion.IngestRequest{ID: id(7), Title: strings.Repeat("x", maxTitleLength+1), Content: "x"}, []string{"title"}},
		{"several", ingestion.IngestRequest{Author: strings.Repeat("a", maxMetadataLength+1)}, []string{"author", "content", "id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIngestRequest(&tt.req)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
			for _, field := range tt.fields {
				assert.Contains(t, verr.Fields, field)
			}
			assert.Len(t, verr.Fields, len(tt.fields))
		})
	}
}

func TestValidationErrorIsStable(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"id": "a", "content": "b"}}
	assert.Equal(t, "content: b; id: a", err.Error())
}
