// Package config loads typed configuration structs from environment
// variables, with optional .env file support for local development.
package config

import (
	"errors"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrFailedToLoadEnvFile = errors.New("config: failed to load env file")
	ErrFailedToParseEnv    = errors.New("config: failed to parse environment")
)

// Load populates a config struct of type T from the environment. Any given
// .env files are loaded first without overriding variables already set, so
// real environment always wins over file defaults.
func Load[T any](envFiles ...string) (T, error) {
	var cfg T

	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return cfg, errors.Join(ErrFailedToLoadEnvFile, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, errors.Join(ErrFailedToParseEnv, err)
	}
	return cfg, nil
}

// MustLoad is Load that panics on failure, for use in main wiring where a
// bad environment should stop the process.
func MustLoad[T any](envFiles ...string) T {
	cfg, err := Load[T](envFiles...)
	if err != nil {
		panic(err)
	}
	return cfg
}
