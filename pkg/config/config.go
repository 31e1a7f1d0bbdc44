// Package config loads YAML configuration with environment variable
// expansion.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configuration types that can check
// themselves after loading.
type Validator interface {
	Validate() error
}

// Load reads a YAML file, expands ${VAR} environment references, and
// unmarshals it into target. If target implements Validator, it is
// validated before returning.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", filename, err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), target); err != nil {
		return fmt.Errorf("parse config file %s: %w", filename, err)
	}

	if v, ok := any(target).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

// LoadOrDefault loads filename when it exists and falls back to the
// supplied defaults constructor when it does not. A file that exists but
// fails to load or validate is still an error.
func LoadOrDefault[T any](filename string, defaults func() *T) (*T, error) {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return defaults(), nil
	}
	target := defaults()
	if err := Load(filename, target); err != nil {
		return nil, err
	}
	return target, nil
}
