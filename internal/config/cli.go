package config

import (
	"fmt"
	"strconv"
)

// Entry is one config key with its effective value, for display.
type Entry struct {
	Key    string
	Value  string
	Secret bool
}

// Entries lists every config key with its effective value. Secret values are
// redacted.
func Entries(cfg Config) []Entry {
	entries := make([]Entry, 0, len(specs))
	for _, s := range specs {
		e := Entry{Key: s.key, Secret: s.secret}
		if s.secret {
			if s.extract(cfg) != "" {
				e.Value = "(set)"
			} else {
				e.Value = "(unset)"
			}
		} else {
			e.Value = fmt.Sprintf("%v", s.extract(cfg))
		}
		entries = append(entries, e)
	}
	return entries
}

// Set writes one key to the persistent config file. Secret keys are rejected;
// they are only read from environment variables.
func Set(key, value string) error {
	return setWith(newFileBackend(), key, value)
}

func setWith(b Backend, key, value string) error {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		if s.secret {
			return fmt.Errorf("%s is a secret, set it via the %s environment variable", key, s.env)
		}
		switch s.typ {
		case kString:
			return b.SetString(key, value)
		case kInt:
			i, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("%s expects an integer: %w", key, err)
			}
			return b.SetInt(key, i)
		}
	}
	return fmt.Errorf("unknown config key %q", key)
}
