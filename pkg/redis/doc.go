// Package redis connects to Redis with retries and exposes a readiness check.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	limiter, err := ratelimiter.New(ratelimiter.NewRedisStore(client, ""), rlCfg)
//
// The client is a plain *redis.Client from github.com/redis/go-redis/v9.
package redis
