package utils

// NormalizePage applies the listing defaults: 1-indexed pages, default and
// maximum page size.
func NormalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

// TotalPages returns the number of pages needed for total items at the given
// page size. Zero items means zero pages.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	pages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		pages++
	}
	return pages
}

// Paginate slices items for a 1-indexed page. Out-of-range pages yield an
// empty slice rather than an error; callers render "no results".
func Paginate[T any](items []T, page, pageSize int) []T {
	page, pageSize = NormalizePage(page, pageSize)
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
