package document

import (
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestExtractYear(t *testing.T) {
	tests := map[string]string{
		"March 3, 1999":            "1999",
		"1865-11-26":               "1865",
		"EBook #11, released 2008": "2008",
		"12345 then 2001":          "2001",
		"c1999, reprinted 2004":    "2004",
		"1999-05":                  "1999",
		"v2001b":                   "unknown",
		"":                         "unknown",
		"sometime in the 90s":      "unknown",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExtractYear(in), in)
	}
}

func TestFilterMatches(t *testing.T) {
	doc := &Document{Author: "Jane Doe", Language: "English", ReleaseDate: "June 1, 2001"}

	assert.True(t, Filter{}.Matches(doc))
	assert.True(t, Filter{Author: "doe"}.Matches(doc))
	assert.True(t, Filter{Language: "ENG"}.Matches(doc))
	assert.True(t, Filter{Year: "2001"}.Matches(doc))
	assert.True(t, Filter{Author: "jane", Language: "english", Year: "2001"}.Matches(doc))
	assert.False(t, Filter{Author: "Roe"}.Matches(doc))
	assert.False(t, Filter{Year: "200"}.Matches(doc))
	assert.False(t, Filter{Year: "2002"}.Matches(doc))
}

func TestMatchesYearNeedsWordBoundaries(t *testing.T) {
	tests := []struct {
		releaseDate string
		want        bool
	}{
		{"May 1999,", true},
		{"1999-05", true},
		{"(1999)", true},
		{"1999", true},
		{"c1999", false},
		{"v1999b", false},
		{"1999_05", false},
		{"19990", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchesYear(tt.releaseDate, "1999"), tt.releaseDate)
	}
}

func TestFilterValidate(t *testing.T) {
	assert.NoError(t, Filter{Year: "1999"}.Validate())
	assert.ErrorIs(t, Filter{Year: "99"}.Validate(), apperrors.ErrInvalidInput)
	assert.ErrorIs(t, Filter{Year: "19x9"}.Validate(), apperrors.ErrInvalidInput)
}
