package service

import "math"

// maxOffset bounds how deep a caller can page. Deeper pages are clamped so
// offsets never overflow and stay within what SQL and Mongo skips accept.
const maxOffset = math.MaxInt32

// PageConfig bounds page sizes accepted from callers.
type PageConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Normalize applies defaults: a non-positive size becomes the default, sizes
// above the maximum are capped, page numbers start at 1, and page numbers
// past maxOffset are clamped.
func (c PageConfig) Normalize(pageSize, pageNumber int) (int, int) {
	if pageSize <= 0 {
		pageSize = c.DefaultPageSize
	}
	if c.MaxPageSize > 0 && pageSize > c.MaxPageSize {
		pageSize = c.MaxPageSize
	}
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize > 0 && pageNumber-1 > maxOffset/pageSize {
		pageNumber = maxOffset/pageSize + 1
	}
	return pageSize, pageNumber
}

// pageOffset returns the number of items before a 1-based page.
func pageOffset(pageSize, pageNumber int) int {
	if pageSize <= 0 || pageNumber <= 1 {
		return 0
	}
	if pageNumber-1 > maxOffset/pageSize {
		return maxOffset
	}
	return (pageNumber - 1) * pageSize
}

// window returns the [start, end) bounds of a 1-based page over n items.
// Pages past the end are empty.
func window(n, pageSize, pageNumber int) (int, int) {
	if pageSize <= 0 {
		return n, n
	}
	if pageNumber > 1 && pageNumber-1 >= (n+pageSize-1)/pageSize {
		return n, n
	}
	start := pageOffset(pageSize, pageNumber)
	end := start + pageSize
	if end > n {
		end = n
	}
	return start, end
}
