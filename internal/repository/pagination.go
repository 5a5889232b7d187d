package repository

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageRequest is a 1-based page of PageSize rows. Zero values select the defaults.
type PageRequest struct {
	Page     int
	PageSize int
}

type PageResult[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	Total      int64
	TotalPages int
}

// CheckPageQuery validates client supplied page and limit values, keyed by
// query parameter. Zero means unset.
func CheckPageQuery(page, limit int) map[string]string {
	fields := map[string]string{}
	if page < 0 {
		fields["page"] = "Page must be a positive integer"
	}
	if limit < 0 || limit > MaxPageSize {
		fields["limit"] = "Limit must be between 1 and 100"
	}
	return fields
}

// Offset is the number of rows before the normalized page.
func (p PageRequest) Offset() int {
	n := normalizePageRequest(p)
	return (n.Page - 1) * n.PageSize
}

func normalizePageRequest(req PageRequest) PageRequest {
	if req.Page < 1 {
		req.Page = DefaultPage
	}
	if req.PageSize < 1 {
		req.PageSize = DefaultPageSize
	}
	if req.PageSize > MaxPageSize {
		req.PageSize = MaxPageSize
	}
	return req
}

func calcTotalPages(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	size := int64(pageSize)
	return int((total + size - 1) / size)
}
