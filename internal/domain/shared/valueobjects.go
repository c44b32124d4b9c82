package shared

import (
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// Window Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Window is an inclusive time range [Start, End]. Either bound may be nil,
// which means the window is unbounded on that side.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// Unbounded returns a window covering all time.
func Unbounded() Window {
	return Window{}
}

// NewWindow creates a new Window with validation.
func NewWindow(start, end *time.Time) (Window, error) {
	w := Window{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Validate returns ErrInvalidWindow when start is after end.
func (w Window) Validate() error {
	if w.Start != nil && w.End != nil && w.Start.After(*w.End) {
		return ErrInvalidWindow
	}
	return nil
}

// IsUnbounded reports whether neither bound is set.
func (w Window) IsUnbounded() bool {
	return w.Start == nil && w.End == nil
}

// Contains checks if a time is within the window, bounds inclusive.
func (w Window) Contains(tm time.Time) bool {
	if w.Start != nil && tm.Before(*w.Start) {
		return false
	}
	if w.End != nil && tm.After(*w.End) {
		return false
	}
	return true
}

// Key returns a stable textual form used in cache keys.
func (w Window) Key() string {
	var b strings.Builder
	if w.Start != nil {
		b.WriteString(w.Start.UTC().Format(time.RFC3339Nano))
	} else {
		b.WriteString("-")
	}
	b.WriteByte('~')
	if w.End != nil {
		b.WriteString(w.End.UTC().Format(time.RFC3339Nano))
	} else {
		b.WriteString("-")
	}
	return b.String()
}

const dateLayout = "2006-01-02"

// ParseWindowBound parses a window bound in RFC3339 or YYYY-MM-DD form.
// An empty string yields nil. Date-only values expand to the start of the day
// for a start bound and to the last instant of the day for an end bound.
func ParseWindowBound(value string, isEnd bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		t = t.UTC()
		return &t, nil
	}

	d, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, WrapError("ranking", "ParseWindow", ErrInvalidFormat,
			"window bound must be RFC3339 or YYYY-MM-DD", err)
	}
	if isEnd {
		d = d.Add(24*time.Hour - time.Nanosecond)
	}
	return &d, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 25
	MaxPageSize     = 200
)

// Offset returns the number of items preceding the page.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// TotalPages returns the number of pages needed for total items.
func (p Pagination) TotalPages(total int) int {
	if total <= 0 || p.PageSize <= 0 {
		return 0
	}
	return (total + p.PageSize - 1) / p.PageSize
}

// NewPagination creates a new Pagination, clamping page to >= 1 and
// pageSize to [1, maxPageSize]. A non-positive pageSize selects defaultSize.
func NewPagination(page, pageSize, defaultSize, maxPageSize int) Pagination {
	if defaultSize <= 0 {
		defaultSize = DefaultPageSize
	}
	if maxPageSize <= 0 {
		maxPageSize = MaxPageSize
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// DefaultPagination returns default pagination.
func DefaultPagination() Pagination {
	return NewPagination(1, DefaultPageSize, DefaultPageSize, MaxPageSize)
}
