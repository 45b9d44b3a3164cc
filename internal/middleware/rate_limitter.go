package middleware

import (
	"ConveyorVision/pkg/response"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	ErrTooManyRequests = response.NewError(http.StatusTooManyRequests, "too many requests")
)

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterSweepEvery = 1024
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client and camera, so a gateway
// forwarding several cameras does not starve one feed with another.
type rateLimiter struct {
	bucket    map[string]*limiterEntry
	rate      rate.Limit
	burstSize int
	mutex     *sync.Mutex
	lookups   int
	now       func() time.Time
}

func newRateLimiter(reqRate rate.Limit, burstSize int) *rateLimiter {
	return &rateLimiter{
		bucket:    make(map[string]*limiterEntry),
		rate:      reqRate,
		burstSize: burstSize,
		mutex:     &sync.Mutex{},
		now:       time.Now,
	}
}

func (r *rateLimiter) GetLimiterFrom(key string) *rate.Limiter {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.now()
	r.lookups++
	if r.lookups%limiterSweepEvery == 0 {
		r.sweep(now)
	}

	entry, exist := r.bucket[key]
	if !exist {
		entry = &limiterEntry{limiter: rate.NewLimiter(r.rate, r.burstSize)}
		r.bucket[key] = entry
	}
	entry.lastSeen = now

	return entry.limiter
}

// sweep drops buckets idle long enough to have refilled. Callers hold mutex.
func (r *rateLimiter) sweep(now time.Time) {
	for key, entry := range r.bucket {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(r.bucket, key)
		}
	}
}

func (r *rateLimiter) size() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.bucket)
}

func (r *rateLimiter) retryAfter() string {
	if r.rate <= 0 {
		return "1"
	}
	return strconv.Itoa(int(math.Max(1, math.Ceil(1/float64(r.rate)))))
}

func (m *middleware) NewRateLimiter(ctx *fiber.Ctx) error {
	clientIP := ctx.IP()
	cameraID := ctx.Params("camera_id")
	limiter := m.rateLimitter.GetLimiterFrom(clientIP + "|" + cameraID)

	if !limiter.Allow() {
		m.log.WithFields(logrus.Fields{
			"ip":        clientIP,
			"camera_id": cameraID,
		}).Warn("Too many requests")
		ctx.Set(fiber.HeaderRetryAfter, m.rateLimitter.retryAfter())
		return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": ErrTooManyRequests.Error(),
		})
	}

	return ctx.Next()
}
