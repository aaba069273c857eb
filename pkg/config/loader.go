package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Option tunes a single Load call.
type Option func(*loader)

type loader struct {
	files  []string
	prefix string
}

// WithEnvFiles loads dotenv files before parsing. Missing files are skipped;
// variables already present in the process environment win.
func WithEnvFiles(files ...string) Option {
	return func(l *loader) { l.files = append(l.files, files...) }
}

// WithPrefix only reads variables carrying the given prefix.
func WithPrefix(prefix string) Option {
	return func(l *loader) { l.prefix = prefix }
}

// Load parses environment variables into v based on its `env` struct tags.
// By default the ".env" file in the working directory is read when present.
//
// Example:
//
//	type StripeConfig struct {
//		SecretKey string        `env:"STRIPE_SECRET_KEY,required"`
//		Timeout   time.Duration `env:"BILLING_TIMEOUT" envDefault:"10s"`
//	}
//
//	var cfg StripeConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	l := &loader{files: []string{".env"}}
	for _, opt := range opts {
		opt(l)
	}

	for _, f := range l.files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Join(ErrLoadingEnvFile, fmt.Errorf("%s: %w", f, err))
		}
	}

	if err := env.ParseWithOptions(v, env.Options{
		Prefix:      l.prefix,
		Environment: env.ToMap(os.Environ()),
	}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
// Use it for configuration the process cannot start without.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
