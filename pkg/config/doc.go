// Package config loads typed configuration from environment variables.
//
// It combines github.com/joho/godotenv, which seeds the environment from
// .env files, with github.com/caarlos0/env/v11, which parses the environment
// into structs annotated with env and envDefault tags. Every package that
// needs configuration declares its own struct (mongo.Config, redis.Config,
// paypal.Config and so on) and the binary loads each of them once at start:
//
//	var cfg app.Config
//	config.MustLoad(&cfg)
//
// Parsed values are cached per type. Tests that change the environment call
// Reset between cases.
package config
