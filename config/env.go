package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// source resolves a key from the environment, then from the flat TOML table,
// where keys are the lower-cased variable names (chunk_max_size = 800).
type source struct {
	file map[string]any
	errs []error
}

func (s *source) lookup(key string) (string, bool) {
	if value := os.Getenv(key); value != "" {
		return value, true
	}
	if v, ok := s.file[strings.ToLower(key)]; ok && v != nil {
		return fmt.Sprint(v), true
	}
	return "", false
}

func (s *source) getEnv(key, defaultValue string) string {
	if value, ok := s.lookup(key); ok {
		return value
	}
	return defaultValue
}

func (s *source) getEnvInt(key string, defaultValue int) int {
	if value, ok := s.lookup(key); ok {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
		s.invalid(key, value, err)
	}
	return defaultValue
}

func (s *source) getEnvFloat64(key string, defaultValue float64) float64 {
	if value, ok := s.lookup(key); ok {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
		s.invalid(key, value, err)
	}
	return defaultValue
}

func (s *source) getEnvBool(key string, defaultValue bool) bool {
	if value, ok := s.lookup(key); ok {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
		s.invalid(key, value, err)
	}
	return defaultValue
}

func (s *source) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := s.lookup(key); ok {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
		s.invalid(key, value, err)
	}
	return defaultValue
}

// invalid records a value that could not be parsed; Load reports all of them.
func (s *source) invalid(key, value string, err error) {
	s.errs = append(s.errs, fmt.Errorf("invalid %s %q: %w", key, value, err))
}

func (s *source) err() error {
	return errors.Join(s.errs...)
}
