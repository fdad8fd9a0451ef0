package service

import "math"

// Pagination is a 1-based page request.
type Pagination struct {
	Page  int
	Limit int
}

const (
	maxPageLimit = 100
	// maxPage keeps (Page-1)*Limit inside 32 bits.
	maxPage = math.MaxInt32 / maxPageLimit
)

// normalize fills in defaults and clamps the page and limit.
func (p Pagination) normalize(defaultLimit int) Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > maxPage {
		p.Page = maxPage
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	return p
}

func (p Pagination) offset() int {
	return (p.Page - 1) * p.Limit
}

func totalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
