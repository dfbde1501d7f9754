package pagination

const (
	// DefaultSize is the standard page size when one is not provided.
	DefaultSize = 20
	// MaxSize caps how many rows any page query can request.
	MaxSize = 100
)

// Page holds offset pagination inputs from controllers or services.
// Page numbers are zero-based.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page number and size to supported bounds.
func Normalize(p Page) Page {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultSize
	}
	if p.Size > MaxSize {
		p.Size = MaxSize
	}
	return p
}

// Offset returns the row offset for the normalized page.
func (p Page) Offset() int {
	n := Normalize(p)
	return n.Number * n.Size
}

// Result wraps one page of rows plus the totals callers need to render
// paging controls.
type Result[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int64 `json:"total_pages"`
}

// NewResult assembles a Result from a normalized page and the total row count.
func NewResult[T any](items []T, p Page, total int64) Result[T] {
	n := Normalize(p)
	pages := total / int64(n.Size)
	if total%int64(n.Size) != 0 {
		pages++
	}
	if items == nil {
		items = []T{}
	}
	return Result[T]{
		Items:      items,
		Page:       n.Number,
		Size:       n.Size,
		TotalItems: total,
		TotalPages: pages,
	}
}
