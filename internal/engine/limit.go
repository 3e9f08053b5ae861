package engine

import (
	"fmt"

	"github.com/roach88/aqlengine/internal/queryir"
)

// FetchPrecedence decides what happens when a query carries its own LIMIT
// and the request also asks for a fetch size.
type FetchPrecedence string

const (
	// PrecedenceMinFetch takes the smaller of LIMIT and fetch. A query OFFSET
	// combined with a request fetch is rejected. This is the default.
	PrecedenceMinFetch FetchPrecedence = "min_fetch"

	// PrecedenceReject rejects a request fetch or offset on a query that
	// has a LIMIT.
	PrecedenceReject FetchPrecedence = "reject"
)

// ParseFetchPrecedence maps a configuration string to a FetchPrecedence.
// The empty string selects PrecedenceMinFetch.
func ParseFetchPrecedence(s string) (FetchPrecedence, error) {
	switch FetchPrecedence(s) {
	case "", PrecedenceMinFetch:
		return PrecedenceMinFetch, nil
	case PrecedenceReject:
		return PrecedenceReject, nil
	default:
		return "", fmt.Errorf("unknown fetch precedence %q (want %q or %q)", s, PrecedenceMinFetch, PrecedenceReject)
	}
}

// LimitPolicy reconciles query-level LIMIT/OFFSET with request offset/fetch.
//
// Zero fields impose nothing: DefaultLimit 0 means "all rows", MaxLimit and
// MaxFetch 0 mean "unbounded".
type LimitPolicy struct {
	DefaultLimit int
	MaxLimit     int
	MaxFetch     int
	Precedence   FetchPrecedence
}

// Window is the slice of the ordered result that is returned.
type Window struct {
	Offset int
	Limit  *int // nil = all remaining rows
}

// Apply slices n rows and returns the [start, end) bounds.
func (w Window) Apply(n int) (start, end int) {
	start = min(w.Offset, n)
	end = n
	if w.Limit != nil {
		end = start + min(*w.Limit, n-start)
	}
	return start, end
}

// Window computes the pagination window for q and the request values.
//
// Rules:
//   - negative offset or fetch is rejected
//   - LIMIT above MaxLimit, or fetch above MaxFetch, is rejected
//   - only one of LIMIT and fetch present: that one is the limit
//   - both present: Precedence decides (see FetchPrecedence)
//   - neither present: DefaultLimit, if set
//   - the request offset wins over the query OFFSET
func (p LimitPolicy) Window(q *queryir.Query, offset, fetch *int) (Window, error) {
	if offset != nil && *offset < 0 {
		return Window{}, newLimitError(fmt.Sprintf("offset %d must not be negative", *offset), "offset", *offset)
	}
	if fetch != nil && *fetch < 0 {
		return Window{}, newLimitError(fmt.Sprintf("fetch %d must not be negative", *fetch), "fetch", *fetch)
	}
	if p.MaxLimit > 0 && q.Limit != nil && *q.Limit > p.MaxLimit {
		return Window{}, newLimitError(
			fmt.Sprintf("query LIMIT %d exceeds maximum limit %d", *q.Limit, p.MaxLimit),
			"limit", *q.Limit, "max_limit", p.MaxLimit)
	}
	if p.MaxFetch > 0 && fetch != nil && *fetch > p.MaxFetch {
		return Window{}, newLimitError(
			fmt.Sprintf("fetch %d exceeds maximum fetch %d", *fetch, p.MaxFetch),
			"fetch", *fetch, "max_fetch", p.MaxFetch)
	}

	var limit *int
	switch {
	case q.Limit == nil:
		limit = fetch
	case fetch == nil && (offset == nil || p.Precedence != PrecedenceReject):
		limit = q.Limit
	case p.Precedence == PrecedenceReject:
		return Window{}, newLimitError("query contains a LIMIT clause, fetch and offset must not be used (fetch precedence reject)")
	case q.Offset != nil:
		return Window{}, newLimitError("query contains an OFFSET clause, fetch must not be used (fetch precedence min_fetch)")
	default:
		n := min(*q.Limit, *fetch)
		limit = &n
	}
	if limit == nil && p.DefaultLimit > 0 {
		n := p.DefaultLimit
		limit = &n
	}

	w := Window{Limit: limit}
	switch {
	case offset != nil:
		w.Offset = *offset
	case q.Offset != nil:
		w.Offset = *q.Offset
	}
	return w, nil
}
