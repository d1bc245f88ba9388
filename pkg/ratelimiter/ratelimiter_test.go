package ratelimiter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cboard-org/cboard-billing/pkg/ratelimiter"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNew(t *testing.T) {
	t.Parallel()
	store := ratelimiter.NewMemoryStore()

	_, err := ratelimiter.New(store, ratelimiter.Config{Limit: 0, Window: time.Minute})
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	_, err = ratelimiter.New(store, ratelimiter.Config{Limit: 1})
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	_, err = ratelimiter.New(nil, ratelimiter.Config{Limit: 1, Window: time.Minute})
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
}

func TestRedisStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mr, client := newRedis(t)

	limiter, err := ratelimiter.New(ratelimiter.NewRedisStore(client, ""), ratelimiter.Config{Limit: 2, Window: time.Minute})
	require.NoError(t, err)

	for i := range 2 {
		res, err := limiter.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, res.Allowed())
		assert.Equal(t, 1-i, res.Remaining)
	}

	res, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, res.Allowed())
	assert.Positive(t, res.RetryAfter(time.Now()))

	other, err := limiter.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, other.Allowed(), "keys are independent")

	assert.True(t, mr.Exists(ratelimiter.DefaultKeyPrefix+"u1"))
	assert.Equal(t, time.Minute, mr.TTL(ratelimiter.DefaultKeyPrefix+"u1"))

	mr.FastForward(time.Minute)
	res, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Allowed(), "window resets")
	assert.Equal(t, 1, res.Remaining)

	_, err = limiter.AllowN(ctx, "u1", 0)
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)
}

func TestRedisStoreUnavailable(t *testing.T) {
	t.Parallel()
	mr, client := newRedis(t)
	mr.Close()

	limiter, err := ratelimiter.New(ratelimiter.NewRedisStore(client, "test:"), ratelimiter.Config{Limit: 1, Window: time.Minute})
	require.NoError(t, err)

	_, err = limiter.Allow(context.Background(), "u1")
	assert.ErrorIs(t, err, ratelimiter.ErrStoreUnavailable)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := ratelimiter.NewMemoryStore()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.Increment(ctx, "u1", 1, time.Minute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, ttl, err := store.Increment(ctx, "u1", 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(51), count)
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()
	_, client := newRedis(t)
	limiter, err := ratelimiter.New(ratelimiter.NewRedisStore(client, ""), ratelimiter.Config{Limit: 1, Window: time.Minute})
	require.NoError(t, err)

	key := func(r *http.Request) string { return r.Header.Get("X-User") }
	h := ratelimiter.Middleware(limiter, key)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(user string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/subscriber/x/transaction", nil)
		if user != "" {
			r.Header.Set("X-User", user)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	rec := call("u1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = call("u1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, call("u2").Code)
	assert.Equal(t, http.StatusOK, call("").Code, "empty key is not limited")
	assert.Equal(t, http.StatusOK, call("").Code)

	t.Run("custom limited handler", func(t *testing.T) {
		t.Parallel()
		var limited *ratelimiter.Result
		h := ratelimiter.Middleware(limiter, key, ratelimiter.WithLimitedHandler(
			func(w http.ResponseWriter, _ *http.Request, res *ratelimiter.Result) {
				limited = res
				w.WriteHeader(http.StatusTeapot)
			},
		))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.Header.Set("X-User", "u1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusTeapot, rec.Code)
		require.NotNil(t, limited)
		assert.Equal(t, -2, limited.Remaining)
	})
}

func TestMiddlewareStoreFailure(t *testing.T) {
	t.Parallel()
	mr, client := newRedis(t)
	limiter, err := ratelimiter.New(ratelimiter.NewRedisStore(client, ""), ratelimiter.Config{Limit: 1, Window: time.Minute})
	require.NoError(t, err)
	mr.Close()

	key := func(*http.Request) string { return "u1" }
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	t.Run("fails closed by default", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ratelimiter.Middleware(limiter, key)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("fail open", func(t *testing.T) {
		var seen error
		h := ratelimiter.Middleware(limiter, key,
			ratelimiter.WithFailOpen(),
			ratelimiter.WithErrorHandler(func(_ http.ResponseWriter, _ *http.Request, err error) { seen = err }),
		)(next)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.ErrorIs(t, seen, ratelimiter.ErrStoreUnavailable)
	})
}

func TestComposite(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	static := func(s string) ratelimiter.KeyFunc { return func(*http.Request) string { return s } }

	assert.Equal(t, "tx:u1", ratelimiter.Composite(static("tx"), static(""), static("u1"))(r))
	assert.Empty(t, ratelimiter.Composite(static(""))(r))

	long := ratelimiter.Composite(static("tx"), static(string(make([]byte, 80))))(r)
	assert.LessOrEqual(t, len(long), 64)
}
