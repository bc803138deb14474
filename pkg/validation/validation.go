package validation

import (
	"fmt"
	"strings"
	"time"
)

func ValidateNonEmptyString(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

func ValidateNonNegative(fieldName string, value int) error {
	if value < 0 {
		return fmt.Errorf("%s must be zero or positive, got %d", fieldName, value)
	}
	return nil
}

func ValidateNonNegativeDuration(fieldName string, value time.Duration) error {
	if value < 0 {
		return fmt.Errorf("%s must be zero or positive, got %s", fieldName, value)
	}
	return nil
}

func ValidateOneOf(fieldName, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %s (must be one of: %s)", fieldName, value, strings.Join(allowed, ", "))
}

// ValidateStorageKey rejects keys that are blank or padded with whitespace.
func ValidateStorageKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("storage key cannot be empty")
	}
	if strings.TrimSpace(key) != key {
		return fmt.Errorf("storage key %q has leading or trailing whitespace", key)
	}
	return nil
}
