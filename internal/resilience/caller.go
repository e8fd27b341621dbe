package resilience

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"tweetgram/internal/constants"
	"tweetgram/internal/errors"
	"tweetgram/internal/metrics"
	"tweetgram/internal/models"

	"github.com/sirupsen/logrus"
)

// Thunk is one outbound API invocation wrapped by the caller
type Thunk func(ctx context.Context) (interface{}, error)

// Caller wraps outbound operations with per-operation rate-limit spacing,
// bounded retry with exponential backoff, and a short-lived result cache.
// The spacing table and cache are shared across all callers of a given
// operation name; the guarantee is per-operation, not per-goroutine.
type Caller struct {
	cfg      models.RateLimitConfig
	logger   *logrus.Logger
	registry *metrics.Registry

	mu       sync.Mutex
	lastCall map[string]time.Time
	cache    map[string]cacheEntry
}

type cacheEntry struct {
	value    interface{}
	storedAt time.Time
}

// NewCaller creates a resilient caller. The metrics registry may be nil.
func NewCaller(cfg models.RateLimitConfig, logger *logrus.Logger, registry *metrics.Registry) *Caller {
	return &Caller{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		lastCall: make(map[string]time.Time),
		cache:    make(map[string]cacheEntry),
	}
}

// Call invokes fn under the caller's rate-limit and retry policy.
//
// Order of business: cache lookup, spacing wait, invocation, then on failure
// either an immediate error (non-retriable), a backoff-and-retry
// (rate-limited or transient) or exhaustion of the retry budget.
func (c *Caller) Call(ctx context.Context, operation string, cacheInputs []interface{}, fn Thunk) (interface{}, error) {
	// A nil input slice marks a state-changing operation: those are never
	// cached, or a second confirm could silently skip the real call.
	cacheable := cacheInputs != nil
	key := c.cacheKey(operation, cacheInputs)

	if cacheable {
		if value, ok := c.cachedResult(key); ok {
			c.logger.WithField("operation", operation).Debug("Returning cached result")
			return value, nil
		}
	}

	minInterval := time.Duration(c.cfg.MinIntervalSec) * time.Second
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.waitForSpacing(ctx, operation, minInterval); err != nil {
			return nil, err
		}

		start := time.Now()
		result, err := fn(ctx)
		duration := time.Since(start)
		if c.registry != nil {
			c.registry.RecordTimer("api_call_duration", duration, map[string]string{"operation": operation})
		}

		if err == nil {
			if cacheable {
				c.storeResult(key, result)
			}
			if attempt > 0 {
				c.logger.WithFields(logrus.Fields{
					"operation": operation,
					"attempt":   attempt + 1,
				}).Info("Call succeeded after retry")
			}
			return result, nil
		}

		lastErr = err
		code := errors.GetCode(err)

		switch code {
		case errors.ErrCodeNonRetriable, errors.ErrCodeAuthorizationDenied:
			// Permanent failures indicate a fixable content or credential
			// problem; burning retry budget on them helps nobody.
			c.logger.WithFields(logrus.Fields{
				"operation": operation,
				"error":     err,
			}).Error("Call failed permanently, not retrying")
			c.count("api_call_failures", operation, string(code))
			return nil, err

		case errors.ErrCodeRateLimited:
			if attempt >= c.cfg.MaxRetries {
				c.count("api_call_failures", operation, string(code))
				return nil, errors.NewRateLimitError(operation, 0, err)
			}
			wait := c.retryDelay(minInterval, attempt, err)
			c.logger.WithFields(logrus.Fields{
				"operation": operation,
				"attempt":   attempt + 1,
				"wait":      wait,
			}).Warn("Rate limited, backing off before retry")
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}

		default:
			if attempt >= c.cfg.MaxRetries {
				c.count("api_call_failures", operation, string(errors.ErrCodeTransientFailure))
				return nil, errors.NewTransientError(operation, err)
			}
			wait := c.backoffDelay(minInterval, attempt)
			c.logger.WithFields(logrus.Fields{
				"operation": operation,
				"attempt":   attempt + 1,
				"error":     err,
				"wait":      wait,
			}).Warn("Call failed, retrying")
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
		}
	}

	return nil, errors.NewTransientError(operation, lastErr)
}

// waitForSpacing blocks until at least minInterval has elapsed since the
// start of the previous attempt for this operation, then claims the new
// invocation slot. The lock is never held while sleeping.
func (c *Caller) waitForSpacing(ctx context.Context, operation string, minInterval time.Duration) error {
	if minInterval <= 0 {
		return nil
	}

	c.mu.Lock()
	now := time.Now()
	prev := c.lastCall[operation]
	next := prev.Add(minInterval)
	if next.Before(now) {
		next = now
	}
	c.lastCall[operation] = next
	c.mu.Unlock()

	if wait := time.Until(next); wait > 0 {
		c.logger.WithFields(logrus.Fields{
			"operation": operation,
			"wait":      wait,
		}).Debug("Waiting for rate-limit spacing")
		if err := sleepCtx(ctx, wait); err != nil {
			// The call never happened; release the slot so the next caller
			// does not wait out an interval for nothing.
			c.mu.Lock()
			if c.lastCall[operation].Equal(next) {
				c.lastCall[operation] = prev
			}
			c.mu.Unlock()
			return err
		}
	}
	return nil
}

func (c *Caller) backoffDelay(minInterval time.Duration, attempt int) time.Duration {
	return time.Duration(float64(minInterval) * math.Pow(c.cfg.BackoffFactor, float64(attempt)))
}

// retryDelay is the sleep before the next attempt: the exponential backoff,
// shortened by the transport's reset hint when the hint promises an earlier
// reset. A hint longer than the backoff never extends the wait.
func (c *Caller) retryDelay(minInterval time.Duration, attempt int, err error) time.Duration {
	wait := c.backoffDelay(minInterval, attempt)
	if hint := errors.GetRetryAfter(err); hint > 0 && hint < wait {
		wait = hint
	}
	return wait
}

// cacheKey derives a key from the operation name plus a sanitized projection
// of the inputs. Only short primitive values participate, so credentials and
// message bodies never end up in the cache table.
func (c *Caller) cacheKey(operation string, inputs []interface{}) string {
	parts := []string{operation}
	var safe []string
	for _, in := range inputs {
		var s string
		switch v := in.(type) {
		case string:
			s = v
		case bool:
			s = fmt.Sprintf("%t", v)
		case int, int32, int64, uint, uint32, uint64:
			s = fmt.Sprintf("%d", v)
		default:
			continue
		}
		if len(s) == 0 || len(s) >= constants.MaxCacheKeyInputLength {
			continue
		}
		safe = append(safe, s)
	}
	sort.Strings(safe)
	parts = append(parts, safe...)
	return strings.Join(parts, "_")
}

func (c *Caller) cachedResult(key string) (interface{}, bool) {
	if !c.cfg.CacheEnabled {
		return nil, false
	}
	ttl := time.Duration(c.cfg.CacheTTLSec) * time.Second

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[key]
	if !ok || time.Since(entry.storedAt) >= ttl {
		return nil, false
	}
	return entry.value, true
}

func (c *Caller) storeResult(key string, value interface{}) {
	if !c.cfg.CacheEnabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{value: value, storedAt: time.Now()}
}

// InvalidateCache drops every cached result, for use after state-changing
// operations that make cached reads stale.
func (c *Caller) InvalidateCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry)
}

func (c *Caller) count(name, operation, code string) {
	if c.registry != nil {
		c.registry.IncrementCounter(name, map[string]string{"operation": operation, "code": code})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
