package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Limiter — счетчик попыток с фиксированным окном по произвольному ключу.
// Используется и как HTTP middleware (ключ — IP клиента), и напрямую,
// например для попыток входа по email+IP. Нулевой лимит отключает ограничение.
type Limiter struct {
	limit  int
	window time.Duration

	mu   sync.Mutex
	seen map[string]*windowCount
}

type windowCount struct {
	n     int
	reset time.Time
}

func NewLimiter(limit int, window time.Duration) *Limiter {
	l := &Limiter{limit: limit, window: window}
	if limit > 0 && window > 0 {
		l.seen = make(map[string]*windowCount)
	}
	return l
}

// Allow учитывает одну попытку по ключу и сообщает, укладывается ли она в лимит.
func (l *Limiter) Allow(key string) bool {
	if l == nil || l.seen == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	wc, ok := l.seen[key]
	if !ok || now.After(wc.reset) {
		l.seen[key] = &windowCount{n: 1, reset: now.Add(l.window)}
		return true
	}

	wc.n++
	return wc.n <= l.limit
}

// Reset сбрасывает счетчик ключа, например после успешного входа.
func (l *Limiter) Reset(key string) {
	if l == nil || l.seen == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.seen, key)
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	if l == nil || l.seen == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if r == nil {
		return "unknown"
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}
