package util

import (
	"strconv"
	"strings"
)

// ParseInt parses a string to an integer, returning defaultValue if parsing fails
func ParseInt(s string, defaultValue int) int {
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return defaultValue
}

// ParseFloat parses a string to a float64, returning defaultValue if parsing fails
func ParseFloat(s string, defaultValue float64) float64 {
	if val, err := strconv.ParseFloat(s, 64); err == nil {
		return val
	}
	return defaultValue
}

// ParsePagination extracts page/page_size query values with clamped bounds.
// page is 1-based; page_size is capped at maxSize.
func ParsePagination(pageStr, sizeStr string, defaultSize, maxSize int) (page, size int) {
	page = ParseInt(pageStr, 1)
	if page < 1 {
		page = 1
	}
	size = ParseInt(sizeStr, defaultSize)
	if size < 1 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	return page, size
}

// NormalizeSearchQuery trims and lowercases a catalog search term
func NormalizeSearchQuery(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
