package chat

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdle = 10 * time.Minute

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is a token bucket per user id.
type Limiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu    sync.Mutex
	users map[string]*userLimiter
}

// NewLimiter allows one request per interval and user on average, with the
// given burst. An interval of zero disables limiting.
func NewLimiter(interval time.Duration, burst int) *Limiter {
	l := &Limiter{
		limit: rate.Inf,
		burst: burst,
		now:   time.Now,
		users: map[string]*userLimiter{},
	}
	if interval > 0 {
		l.limit = rate.Every(interval)
	}
	return l
}

// Allow consumes one token of userID's bucket.
func (l *Limiter) Allow(userID string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[userID]
	if !ok {
		if len(l.users) >= 1024 {
			l.prune(now)
		}
		u = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.users[userID] = u
	}
	u.lastSeen = now
	return u.limiter.AllowN(now, 1)
}

func (l *Limiter) prune(now time.Time) {
	for id, u := range l.users {
		if now.Sub(u.lastSeen) > limiterIdle {
			delete(l.users, id)
		}
	}
}
