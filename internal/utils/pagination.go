package utils

import "strconv"

// Pagination defaults
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxPage         = 100000
)

// Page describes a requested window into a list
type Page struct {
	Page     int `json:"page"`      // Current page
	PageSize int `json:"page_size"` // Page size
}

// Offset returns the number of rows to skip
func (p Page) Offset() int { return (p.Page - 1) * p.PageSize }

// ParsePagination reads page and page_size query values, falling back to defaults
// and capping both
func ParsePagination(page, pageSize string) Page {
	p := Page{Page: DefaultPage, PageSize: DefaultPageSize}
	if v, err := strconv.Atoi(page); err == nil && v > 0 {
		p.Page = min(v, MaxPage) // Keeps Offset far from overflow
	}
	if v, err := strconv.Atoi(pageSize); err == nil && v > 0 {
		p.PageSize = min(v, MaxPageSize) // Oversized requests get the largest page
	}
	return p
}

// TotalPages computes the page count for total rows
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
