// internal/middleware/idempotency.go
package middleware

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/printforge/marketplace-backend/internal/cache"
	"github.com/printforge/marketplace-backend/internal/utils"
)

const (
	idempotencyHeader = "Idempotency-Key"

	// The lock covers the in-flight window; the stored response covers
	// client retries long after.
	idempotencyLockTTL = 10 * time.Second
	idempotencyDataTTL = 7 * 24 * time.Hour
)

// IdempotencyResponse is the replayable capture of a completed request.
type IdempotencyResponse struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
}

// IdempotencyStore persists first-run responses keyed by the client's
// idempotency key.
type IdempotencyStore interface {
	// Lock atomically claims the key. False means another request holds it
	// or a response is already stored.
	Lock(ctx context.Context, key string) (bool, error)

	GetResponse(ctx context.Context, key string) (*IdempotencyResponse, bool, error)
	SaveResponse(ctx context.Context, key string, resp IdempotencyResponse) error
	Delete(ctx context.Context, key string) error
}

type RedisIdempotencyStore struct {
	cache *cache.RedisClient
}

var _ IdempotencyStore = (*RedisIdempotencyStore)(nil)

func NewRedisIdempotencyStore(c *cache.RedisClient) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{cache: c}
}

func lockKey(key string) string { return "idem:lock:" + key }
func dataKey(key string) string { return "idem:data:" + key }

func (s *RedisIdempotencyStore) Lock(ctx context.Context, key string) (bool, error) {
	// A stored response wins over a fresh lock attempt.
	_, found, err := cache.Get[IdempotencyResponse](s.cache, ctx, dataKey(key))
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}

	return cache.SetNX(s.cache, ctx, lockKey(key), "1", idempotencyLockTTL)
}

func (s *RedisIdempotencyStore) GetResponse(ctx context.Context, key string) (*IdempotencyResponse, bool, error) {
	return cache.Get[IdempotencyResponse](s.cache, ctx, dataKey(key))
}

func (s *RedisIdempotencyStore) SaveResponse(ctx context.Context, key string, resp IdempotencyResponse) error {
	return cache.Set(s.cache, ctx, dataKey(key), resp, idempotencyDataTTL)
}

func (s *RedisIdempotencyStore) Delete(ctx context.Context, key string) error {
	if err := cache.Del(s.cache, ctx, lockKey(key)); err != nil {
		return err
	}
	return cache.Del(s.cache, ctx, dataKey(key))
}

// Headers the replay must not copy; the current exchange owns them.
var replayIgnoredHeaders = map[string]struct{}{
	"Access-Control-Allow-Origin":      {},
	"Access-Control-Allow-Credentials": {},
	"Access-Control-Expose-Headers":    {},
	"Date":                             {},
	"Content-Length":                   {},
	"Connection":                       {},
	"X-Request-Id":                     {},
}

type responseRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency makes mutating endpoints safe to retry. First run executes and
// stores the response; a concurrent duplicate gets 409 with Retry-After; a
// later duplicate gets the stored response with X-Idempotency-Hit set.
// Requests without the header pass through untouched.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()

		acquired, err := store.Lock(ctx, key)
		if err != nil {
			// Fail closed: proceeding without the lock could double-execute.
			utils.RespondError(c, utils.NewAppError(utils.ErrInternal, "Unable to process request. Please try again later.", err))
			return
		}

		if !acquired {
			stored, found, err := store.GetResponse(ctx, key)
			if err != nil {
				utils.RespondError(c, utils.NewAppError(utils.ErrInternal, "Unable to process request. Please try again later.", err))
				return
			}

			if found {
				replayResponse(c, stored)
				return
			}

			// Original request still running.
			c.Header("Retry-After", "1")
			utils.RespondError(c, utils.NewAppError(utils.ErrConflict, "A request with this idempotency key is already in progress", nil))
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer(nil),
		}
		c.Writer = recorder

		c.Next()

		status := c.Writer.Status()

		// Server faults and throttles must stay retryable with the same key.
		if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
			go func() {
				cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				if err := store.Delete(cleanupCtx, key); err != nil {
					logrus.WithFields(logrus.Fields{
						"idempotency_key": key,
						"error":           err,
					}).Error("Failed to release idempotency key")
				}
			}()
			return
		}

		stored := IdempotencyResponse{
			StatusCode: status,
			Headers:    map[string][]string(c.Writer.Header().Clone()),
			Body:       recorder.body.Bytes(),
		}

		// Persist off the request path; the client already has its response.
		go func() {
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := store.SaveResponse(saveCtx, key, stored); err != nil {
				logrus.WithFields(logrus.Fields{
					"idempotency_key": key,
					"error":           err,
				}).Error("Failed to persist idempotent response")
			}
		}()
	}
}

func replayResponse(c *gin.Context, stored *IdempotencyResponse) {
	for name, values := range stored.Headers {
		if _, skip := replayIgnoredHeaders[http.CanonicalHeaderKey(name)]; skip {
			continue
		}
		for _, v := range values {
			c.Writer.Header().Add(name, v)
		}
	}

	c.Writer.Header().Set("X-Idempotency-Hit", "true")
	c.Status(stored.StatusCode)
	c.Writer.Write(stored.Body)
	c.Abort()
}
