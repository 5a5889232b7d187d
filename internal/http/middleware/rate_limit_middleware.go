package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/timber-social/timber-backend/internal/http/response"
	"github.com/timber-social/timber-backend/internal/observability"
	"github.com/timber-social/timber-backend/internal/security"
)

// RateLimitPolicy allows Limit hits per fixed Window.
type RateLimitPolicy struct {
	Limit  int
	Window time.Duration
}

func (p RateLimitPolicy) normalized() RateLimitPolicy {
	if p.Limit <= 0 {
		p.Limit = 1
	}
	if p.Window <= 0 {
		p.Window = time.Minute
	}
	return p
}

// bucket returns the window index for now and the instant that window closes.
func (p RateLimitPolicy) bucket(now time.Time) (int64, time.Time) {
	idx := now.UnixNano() / int64(p.Window)
	return idx, time.Unix(0, (idx+1)*int64(p.Window))
}

type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
	ResetAt    time.Time
}

func decide(policy RateLimitPolicy, count int, now, resetAt time.Time) Decision {
	if count > policy.Limit {
		return Decision{RetryAfter: resetAt.Sub(now), ResetAt: resetAt}
	}
	return Decision{Allowed: true, Remaining: policy.Limit - count, ResetAt: resetAt}
}

type Limiter interface {
	Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error)
}

type FailureMode string

const (
	FailOpen   FailureMode = "fail_open"
	FailClosed FailureMode = "fail_closed"
)

// KeyFunc derives the counter key for a request. An empty key means the
// request carries no identity for this limiter.
type KeyFunc func(r *http.Request) string

// MemoryFixedWindowLimiter is the single-process counterpart of
// RedisFixedWindowLimiter; both produce identical decisions for the same clock.
type MemoryFixedWindowLimiter struct {
	mu      sync.Mutex
	counts  map[string]memoryWindow
	sweepAt time.Time
	now     func() time.Time
}

type memoryWindow struct {
	bucket  int64
	count   int
	resetAt time.Time
}

func NewMemoryFixedWindowLimiter() *MemoryFixedWindowLimiter {
	return &MemoryFixedWindowLimiter{counts: make(map[string]memoryWindow), now: time.Now}
}

func (l *MemoryFixedWindowLimiter) Allow(_ context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	policy = policy.normalized()
	now := l.now()
	idx, resetAt := policy.bucket(now)

	l.mu.Lock()
	defer l.mu.Unlock()
	if !now.Before(l.sweepAt) {
		for k, w := range l.counts {
			if !now.Before(w.resetAt) {
				delete(l.counts, k)
			}
		}
		l.sweepAt = now.Add(policy.Window)
	}
	w := l.counts[key]
	if w.bucket != idx {
		w = memoryWindow{bucket: idx, resetAt: resetAt}
	}
	w.count++
	l.counts[key] = w
	return decide(policy, w.count, now, resetAt), nil
}

type RateLimiter struct {
	limiter     Limiter
	policy      RateLimitPolicy
	mode        FailureMode
	scope       string
	keyFunc     KeyFunc
	skipUnkeyed bool
}

// NewRateLimiter keeps counters in process memory, keyed by client IP.
func NewRateLimiter(limit int, window time.Duration, scope string) *RateLimiter {
	return NewDistributedRateLimiterWithKey(NewMemoryFixedWindowLimiter(), limit, window, FailClosed, scope, nil)
}

// NewDistributedRateLimiterWithKey keys requests with keyFunc, falling back to
// the client IP when keyFunc yields nothing.
func NewDistributedRateLimiterWithKey(
	limiter Limiter,
	limit int,
	window time.Duration,
	mode FailureMode,
	scope string,
	keyFunc KeyFunc,
) *RateLimiter {
	if scope == "" {
		scope = "api"
	}
	if keyFunc == nil {
		keyFunc = clientIPKey
	}
	return &RateLimiter{
		limiter: limiter,
		policy:  RateLimitPolicy{Limit: limit, Window: window}.normalized(),
		mode:    mode,
		scope:   scope,
		keyFunc: keyFunc,
	}
}

// NewEmailRateLimiter throttles one-time code traffic per target mailbox, so
// a code cannot be guessed or re-sent from many addresses at once. Requests
// without an email in the body pass through to the handler's validation.
func NewEmailRateLimiter(limiter Limiter, limit int, window time.Duration, mode FailureMode) *RateLimiter {
	rl := NewDistributedRateLimiterWithKey(limiter, limit, window, mode, "code_email", EmailBodyKeyFunc)
	rl.skipUnkeyed = true
	return rl
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.keyFunc(r)
			if key == "" {
				if rl.skipUnkeyed {
					next.ServeHTTP(w, r)
					return
				}
				key = clientIPKey(r)
			}
			decision, err := rl.limiter.Allow(r.Context(), rl.scope+":"+key, rl.policy)
			if err != nil {
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "backend_error")
				if rl.mode == FailOpen {
					slog.WarnContext(r.Context(), "rate limiter backend unavailable, allowing request",
						"scope", rl.scope,
						"error", err.Error(),
					)
					next.ServeHTTP(w, r)
					return
				}
				rejectRateLimited(w, r, rl.policy.Limit, rl.policy.Window, time.Now().Add(rl.policy.Window))
				return
			}
			if !decision.Allowed {
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "deny")
				rejectRateLimited(w, r, rl.policy.Limit, decision.RetryAfter, decision.ResetAt)
				return
			}
			writeRateLimitHeaders(w.Header(), rl.policy.Limit, decision.Remaining, decision.ResetAt)
			observability.RecordRateLimitDecision(r.Context(), rl.scope, "allow")
			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request, limit int, retryAfter time.Duration, resetAt time.Time) {
	writeRateLimitHeaders(w.Header(), limit, 0, resetAt)
	w.Header().Set("Retry-After", retryAfterHeader(retryAfter))
	response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
}

// SubjectOrIPKeyFunc keys authenticated callers by subject so that users behind
// a shared address do not starve each other.
func SubjectOrIPKeyFunc(jwtMgr *security.JWTManager) KeyFunc {
	return func(r *http.Request) string {
		if jwtMgr == nil {
			return ""
		}
		raw, _ := extractAccessToken(r)
		if raw == "" {
			return ""
		}
		claims, ok := jwtMgr.VerifyAccessToken(raw)
		if !ok || claims.Subject == "" {
			return ""
		}
		return "sub:" + claims.Subject
	}
}

// EmailBodyKeyFunc reads the "email" field of a JSON body and restores the
// body for the next handler.
func EmailBodyKeyFunc(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	raw, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	var replay io.Reader = bytes.NewReader(raw)
	if err != nil {
		replay = io.MultiReader(replay, failedRead{err: err})
	}
	r.Body = io.NopCloser(replay)
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &payload) != nil {
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" {
		return ""
	}
	return "email:" + email
}

// failedRead hands a body read error, such as *http.MaxBytesError, on to the
// next reader of a replayed body.
type failedRead struct{ err error }

func (f failedRead) Read([]byte) (int, error) { return 0, f.err }

func clientIPKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return r.RemoteAddr
}

func retryAfterHeader(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

func writeRateLimitHeaders(h http.Header, limit, remaining int, resetAt time.Time) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(max(limit, 0)))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}
