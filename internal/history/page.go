package history

import "math"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	PlayersPageSize = 45

	// MaxPageNumber keeps every offset within a signed 32-bit integer.
	MaxPageNumber = math.MaxInt32/MaxPageSize + 1
)

// Page is a 1-based page window.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"size"`
}

// NewPage clamps number to [1, MaxPageNumber] and size to (0, MaxPageSize],
// using DefaultPageSize when size is not positive.
func NewPage(number, size int) Page {
	number = clampNumber(number)
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) Limit() int {
	return p.Size
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PageCount is the number of pages needed for total items, at least 1.
func PageCount(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return int((total + int64(size) - 1) / int64(size))
}

func clampNumber(number int) int {
	return min(max(number, 1), MaxPageNumber)
}
