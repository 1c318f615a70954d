package vision

import (
	"context"
	"sync"
)

// Entitlement decides whether a vision call may be made. Allowed is checked
// before each call and Record after each successful one.
type Entitlement interface {
	Allowed(ctx context.Context) bool
	Record(ctx context.Context)
}

// Unlimited permits every call.
type Unlimited struct{}

func (Unlimited) Allowed(context.Context) bool { return true }
func (Unlimited) Record(context.Context)       {}

// Quota permits a fixed number of successful calls per process.
type Quota struct {
	mu    sync.Mutex
	limit int
	used  int
}

// NewQuota returns a quota of limit calls. limit <= 0 means unlimited.
func NewQuota(limit int) Entitlement {
	if limit <= 0 {
		return Unlimited{}
	}
	return &Quota{limit: limit}
}

// Allowed reports whether calls remain.
func (q *Quota) Allowed(context.Context) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used < q.limit
}

// Record consumes one call.
func (q *Quota) Record(context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.used++
}

// Remaining returns the number of calls left.
func (q *Quota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.used >= q.limit {
		return 0
	}
	return q.limit - q.used
}
