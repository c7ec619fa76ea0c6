package grid

// Paginate returns the 1-based page and page size covering [start, end).
// A missing or non-positive span falls back to defaultSize.
func Paginate(start int, end *int, defaultSize int) (page, size int) {
	if start < 0 {
		start = 0
	}
	if end == nil || *end <= start {
		size = max(defaultSize, 1)
	} else {
		size = *end - start
	}
	return start/size + 1, size
}

// Locate maps an absolute row index to its page and offset inside that page.
func Locate(rowIndex, pageSize int) (page, rowInPage int, err error) {
	if rowIndex < 0 {
		return 0, 0, ErrNegativeRowIndex
	}
	pageSize = max(pageSize, 1)
	return rowIndex/pageSize + 1, rowIndex % pageSize, nil
}
