package engine

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrCodeQuota indicates a query that bound more candidates than allowed.
const ErrCodeQuota ErrorCode = "E_QUOTA"

// bindingQuota counts candidate bindings across all workers of one
// evaluation and enforces a maximum.
//
// A containment chain without archetype filters visits every node of every
// record. The quota turns such a query into an error instead of an
// unbounded walk.
//
// Thread-safety: check may be called from any worker.
type bindingQuota struct {
	max     int64 // 0 = unbounded
	current atomic.Int64
}

func newBindingQuota(limit int) *bindingQuota {
	return &bindingQuota{max: int64(limit)}
}

// check adds n bindings and reports QuotaExceededError once the total
// passes the limit.
func (q *bindingQuota) check(queryID string, n int) error {
	total := q.current.Add(int64(n))
	if q.max > 0 && total > q.max {
		return &QuotaExceededError{QueryID: queryID, Bindings: total, Limit: q.max}
	}
	return nil
}

// Current returns the number of bindings counted so far.
func (q *bindingQuota) Current() int64 {
	return q.current.Load()
}

// QuotaExceededError is returned when a query binds more candidates than
// the engine's binding quota (see WithMaxBindings). The evaluation is
// cancelled and no rows are returned.
type QuotaExceededError struct {
	QueryID  string // Execution id of the query
	Bindings int64  // Bindings counted when the quota tripped
	Limit    int64  // Configured maximum
}

// Error implements the error interface.
func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s: query %s exceeded binding quota: %d bindings > %d limit",
		ErrCodeQuota, e.QueryID, e.Bindings, e.Limit)
}

// Code returns ErrCodeQuota.
func (e *QuotaExceededError) Code() ErrorCode {
	return ErrCodeQuota
}

// IsQuotaExceededError returns true if the error is a QuotaExceededError.
// Uses errors.As to handle wrapped errors.
func IsQuotaExceededError(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
