package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pawhaven/pawhaven-backend/pkg/clientip"
)

const (
	headerXContentTypeOptions     = "X-Content-Type-Options"
	headerXFrameOptions           = "X-Frame-Options"
	headerXXSSProtection          = "X-XSS-Protection"
	headerContentSecurityPolicy   = "Content-Security-Policy"
	headerStrictTransportSecurity = "Strict-Transport-Security"
)

// SecurityHeaders sets security-related response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerXContentTypeOptions, "nosniff")
		w.Header().Set(headerXFrameOptions, "DENY")
		w.Header().Set(headerXXSSProtection, "1; mode=block")
		w.Header().Set(headerContentSecurityPolicy, "default-src 'self'")
		w.Header().Set(headerStrictTransportSecurity, "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// ProductionSecurity is the middleware chain enabled in production:
// security headers plus the Redis-backed per-IP rate limit.
func ProductionSecurity() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		SecurityHeaders,
		RateLimitMiddleware,
	}
}

// --- Upload route rate limiting (in-process, 1 req/2s, burst 5 per IP) ---
// The Redis limiter guards the whole API; uploads get a tighter local
// limiter because a single client hammering Cloudinary is the costly case.

var (
	uploadEntries    = make(map[string]*limiterEntry)
	uploadEntriesMu  sync.Mutex
	uploadCleanupRun bool
)

const (
	uploadRateLimitEvery  = 2 * time.Second
	uploadRateLimitBurst  = 5
	uploadCleanupInterval = 5 * time.Minute
	uploadLimiterTTL      = 30 * time.Minute
)

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

func getUploadLimiter(ip string) *rate.Limiter {
	uploadEntriesMu.Lock()
	defer uploadEntriesMu.Unlock()
	startUploadCleanupOnce()
	e, ok := uploadEntries[ip]
	if !ok {
		e = &limiterEntry{
			limiter: rate.NewLimiter(rate.Every(uploadRateLimitEvery), uploadRateLimitBurst),
			lastUse: time.Now(),
		}
		uploadEntries[ip] = e
	}
	e.lastUse = time.Now()
	return e.limiter
}

func startUploadCleanupOnce() {
	if uploadCleanupRun {
		return
	}
	uploadCleanupRun = true
	go func() {
		ticker := time.NewTicker(uploadCleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			uploadEntriesMu.Lock()
			now := time.Now()
			for ip, e := range uploadEntries {
				if now.Sub(e.lastUse) > uploadLimiterTTL {
					delete(uploadEntries, ip)
				}
			}
			uploadEntriesMu.Unlock()
		}
	}()
}

// UploadRateLimit limits upload requests per IP. Returns 429 when exceeded.
func UploadRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientip.RealClientIP(r)
		if !getUploadLimiter(ip).Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"Too many uploads. Please slow down."}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
