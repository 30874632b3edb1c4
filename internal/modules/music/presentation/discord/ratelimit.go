package discord

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"
)

// UserLimiter rate-limits resolution-triggering commands per user so a
// single user cannot flood the resolver backends.
type UserLimiter struct {
	mu       sync.Mutex
	limiters map[snowflake.ID]*rate.Limiter

	limit rate.Limit
	burst int
}

// NewUserLimiter creates a UserLimiter allowing limit events per second
// with the given burst.
func NewUserLimiter(limit rate.Limit, burst int) *UserLimiter {
	return &UserLimiter{
		limiters: make(map[snowflake.ID]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Allow reports whether the user may proceed right now.
func (l *UserLimiter) Allow(userID snowflake.ID) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}
