package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name     string
		page     string
		size     string
		wantPage int
		wantSize int
	}{
		{"defaults", "", "", 1, 20},
		{"explicit", "3", "50", 3, 50},
		{"zero page clamps to first", "0", "10", 1, 10},
		{"negative page clamps to first", "-2", "10", 1, 10},
		{"oversized page_size capped", "1", "500", 1, 100},
		{"zero page_size falls back to default", "1", "0", 1, 20},
		{"garbage falls back to defaults", "abc", "xyz", 1, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, size := ParsePagination(tt.page, tt.size, 20, 100)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantSize, size)
		})
	}
}

func TestParseInt(t *testing.T) {
	assert.Equal(t, 42, ParseInt("42", 0))
	assert.Equal(t, 7, ParseInt("not a number", 7))
	assert.Equal(t, 7, ParseInt("", 7))
}

func TestNormalizeSearchQuery(t *testing.T) {
	assert.Equal(t, "claims triage", NormalizeSearchQuery("  Claims Triage "))
	assert.Equal(t, "", NormalizeSearchQuery("   "))
}
