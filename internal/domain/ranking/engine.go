package ranking

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Engine holds the immutable configuration of the ranking pipeline.
// It is safe for concurrent use.
type Engine struct {
	scores          *ScoreTable
	ids             IDFilter
	defaultSort     SortKey
	searchMinLength int
	defaultPageSize int
	maxPageSize     int
}

// Option configures an Engine.
type Option func(*Engine)

// WithScoreTable sets the composite score formulas.
func WithScoreTable(t *ScoreTable) Option {
	return func(e *Engine) {
		if t != nil {
			e.scores = t
		}
	}
}

// WithIDFilter sets the minimum identifier length per kind.
func WithIDFilter(f IDFilter) Option {
	return func(e *Engine) {
		e.ids = f
	}
}

// WithDefaultSort sets the key used when the requested one is unknown.
func WithDefaultSort(k SortKey) Option {
	return func(e *Engine) {
		e.defaultSort = k
	}
}

// WithSearchMinLength sets the minimum length of a name search term.
func WithSearchMinLength(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.searchMinLength = n
		}
	}
}

// WithPageSizes sets the default and maximum page size.
func WithPageSizes(defaultSize, maxSize int) Option {
	return func(e *Engine) {
		if defaultSize > 0 {
			e.defaultPageSize = defaultSize
		}
		if maxSize > 0 {
			e.maxPageSize = maxSize
		}
	}
}

// NewEngine creates an engine with DKP scoring, power as default sort key,
// a three-character search minimum and shared pagination limits.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		scores:          DefaultScoreTable(),
		ids:             DefaultIDFilter(),
		defaultSort:     RawKey(snapshot.MetricPower),
		searchMinLength: 3,
		defaultPageSize: shared.DefaultPageSize,
		maxPageSize:     shared.MaxPageSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.defaultPageSize > e.maxPageSize {
		e.defaultPageSize = e.maxPageSize
	}
	return e
}

// Scores returns the engine's score table.
func (e *Engine) Scores() *ScoreTable {
	return e.scores
}

// DefaultSort returns the fallback sort key.
func (e *Engine) DefaultSort() SortKey {
	return e.defaultSort
}

// ResolveSortKey parses key, falling back to the default sort key.
// fallback is true when key was non-empty and not recognised.
func (e *Engine) ResolveSortKey(key string) (k SortKey, fallback bool) {
	if parsed, ok := ParseSortKey(key, e.scores); ok {
		return parsed, false
	}
	return e.defaultSort, strings.TrimSpace(key) != ""
}

// ──────────────────────────────────────────────────────────────────────────────
// Records
// ──────────────────────────────────────────────────────────────────────────────

// BuildRecords reduces raw snapshots of one kind to one record per entity.
// Entities with too-short ids or no snapshot inside the window are omitted.
func (e *Engine) BuildRecords(kind snapshot.Kind, snaps []*snapshot.Snapshot, window shared.Window) ([]*Record, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	var records []*Record
	for _, group := range GroupByEntity(snaps) {
		if !e.ids.Allow(kind, group.EntityID) {
			continue
		}
		b, ok := ResolveBoundary(group.Snapshots, window)
		if !ok {
			continue
		}
		records = append(records, NewRecord(b, e.scores))
	}
	return records, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Ranking
// ──────────────────────────────────────────────────────────────────────────────

// RankOptions controls ordering, filtering and pagination.
type RankOptions struct {
	SortKey   string
	Direction Direction
	Search    string
	Page      int
	PageSize  int
}

// RankResult is one page of ranked records.
type RankResult struct {
	Items      []*Record
	TotalItems int
	TotalPages int
	Page       int
	PageSize   int
	HasNext    bool
	HasPrev    bool

	SortKey   SortKey
	Direction Direction
	// SortFallback is set when the requested key was unknown.
	SortFallback bool
	// RequestedSortKey echoes the caller's key when it fell back.
	RequestedSortKey string
}

// RankEntities builds records from raw snapshots and ranks them.
func (e *Engine) RankEntities(kind snapshot.Kind, snaps []*snapshot.Snapshot, window shared.Window, opts RankOptions) (*RankResult, error) {
	records, err := e.BuildRecords(kind, snaps, window)
	if err != nil {
		return nil, err
	}
	return e.Rank(records, opts), nil
}

// Rank sorts records into a total order, assigns 1-based ranks over the whole
// list, then applies search and pagination. Ranks survive filtering, so a
// searched entity keeps its leaderboard position.
func (e *Engine) Rank(records []*Record, opts RankOptions) *RankResult {
	key, fallback := e.ResolveSortKey(opts.SortKey)
	dir := opts.Direction
	if dir != Ascending {
		dir = Descending
	}

	ordered := make([]*Record, len(records))
	copy(ordered, records)
	sortRecords(ordered, key, dir)
	for i, r := range ordered {
		r.Rank = i + 1
	}

	filtered := e.search(ordered, opts.Search)

	p := shared.NewPagination(opts.Page, opts.PageSize, e.defaultPageSize, e.maxPageSize)
	total := len(filtered)
	totalPages := p.TotalPages(total)

	items := []*Record{}
	if from := p.Offset(); from < total {
		to := from + p.PageSize
		if to > total {
			to = total
		}
		items = filtered[from:to]
	}

	res := &RankResult{
		Items:        items,
		TotalItems:   total,
		TotalPages:   totalPages,
		Page:         p.Page,
		PageSize:     p.PageSize,
		HasNext:      p.Page < totalPages,
		HasPrev:      p.Page > 1,
		SortKey:      key,
		Direction:    dir,
		SortFallback: fallback,
	}
	if fallback {
		res.RequestedSortKey = opts.SortKey
	}
	return res
}

// sortRecords orders by key in dir, then name ascending, then entity id
// ascending regardless of dir.
func sortRecords(records []*Record, key SortKey, dir Direction) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if c := key.Value(a).Cmp(key.Value(b)); c != 0 {
			if dir == Ascending {
				return c < 0
			}
			return c > 0
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return compareIDs(a.EntityID, b.EntityID) < 0
	})
}

// compareIDs orders numeric ids numerically and anything else lexically.
// Numerically equal ids with different zero padding fall back to a lexical
// compare, so the order stays total.
func compareIDs(a, b string) int {
	if isDigits(a) && isDigits(b) {
		ta, tb := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
		if len(ta) != len(tb) {
			if len(ta) < len(tb) {
				return -1
			}
			return 1
		}
		if c := strings.Compare(ta, tb); c != 0 {
			return c
		}
	}
	return strings.Compare(a, b)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// search filters ordered records by term. A purely numeric term matches the
// entity id exactly. Other terms match names case-insensitively once they
// reach the minimum length; shorter terms leave the list unfiltered.
func (e *Engine) search(records []*Record, term string) []*Record {
	term = strings.TrimSpace(term)
	if term == "" {
		return records
	}

	if isDigits(term) {
		out := []*Record{}
		for _, r := range records {
			if r.EntityID == term {
				out = append(out, r)
			}
		}
		return out
	}

	if utf8.RuneCountInString(term) < e.searchMinLength {
		return records
	}

	needle := foldCase(term)
	out := []*Record{}
	for _, r := range records {
		if strings.Contains(foldCase(r.Name), needle) {
			out = append(out, r)
		}
	}
	return out
}

func foldCase(s string) string {
	return strings.Map(unicode.ToLower, s)
}
