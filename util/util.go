package util

func MinInt(a, b int) int {
	if a <= b {
		return a
	} else {
		return b
	}
}

// Roundup rounds x up to a multiple of y.
func Roundup(x, y int) int {
	return (x + y - 1) / y * y
}

// TruncateToPageBoundary rounds n down to a multiple of pageSize.
func TruncateToPageBoundary(pageSize, n int) int {
	Assert(pageSize > 0 && pageSize&(pageSize-1) == 0)
	return n - n&(pageSize-1)
}

func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
