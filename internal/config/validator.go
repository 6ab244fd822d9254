package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/taskdump/internal/logging"
)

// ValidationError names the offending key.
type ValidationError struct {
	Key     string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

// Validate returns every problem joined into one error, or nil.
func (c Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendSQLite, BackendTOML:
	default:
		errs = append(errs, ValidationError{Key: "storage.backend", Message: fmt.Sprintf("must be %q or %q, got %q", BackendSQLite, BackendTOML, c.Storage.Backend)})
	}
	if strings.TrimSpace(c.Storage.Dir) == "" {
		errs = append(errs, ValidationError{Key: "storage.dir", Message: "must not be empty"})
	}

	errs = appendIf(errs, validateBaseURL("tracker.base_url", c.Tracker.BaseURL))
	errs = appendIf(errs, positiveDuration("tracker.timeout", c.Tracker.Timeout))
	errs = appendIf(errs, positiveDuration("tracker.backoff", c.Tracker.Backoff))
	errs = appendIf(errs, positiveDuration("tracker.max_backoff", c.Tracker.MaxBackoff))
	if c.Tracker.MaxAttempts <= 0 {
		errs = append(errs, ValidationError{Key: "tracker.max_attempts", Message: "must be positive"})
	}
	if strings.TrimSpace(c.Tracker.TokenKey) == "" {
		errs = append(errs, ValidationError{Key: "tracker.token_key", Message: "must not be empty"})
	}

	errs = appendIf(errs, validateBaseURL("model.base_url", c.Model.BaseURL))
	errs = appendIf(errs, positiveDuration("model.timeout", c.Model.Timeout))
	if strings.TrimSpace(c.Model.Name) == "" {
		errs = append(errs, ValidationError{Key: "model.name", Message: "must not be empty"})
	}
	if strings.TrimSpace(c.Model.KeyKey) == "" {
		errs = append(errs, ValidationError{Key: "model.key_key", Message: "must not be empty"})
	}

	errs = appendIf(errs, positiveDuration("context.ttl", c.Context.TTL))

	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, ValidationError{Key: "log.level", Message: fmt.Sprintf("must be one of %s", strings.Join(logging.ValidLevels(), ", "))})
	}

	if strings.TrimSpace(c.Server.Listen) == "" {
		errs = append(errs, ValidationError{Key: "server.listen", Message: "must not be empty"})
	}
	errs = appendIf(errs, positiveDuration("server.dedupe_ttl", c.Server.DedupeTTL))

	return errors.Join(errs...)
}

func appendIf(errs []error, err error) []error {
	if err == nil {
		return errs
	}
	return append(errs, err)
}

func positiveDuration(key string, value time.Duration) error {
	if value <= 0 {
		return ValidationError{Key: key, Message: "must be a positive duration"}
	}
	return nil
}

func validateBaseURL(key, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ValidationError{Key: key, Message: err.Error()}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ValidationError{Key: key, Message: "must use http or https"}
	}
	if parsed.Host == "" {
		return ValidationError{Key: key, Message: "host is required"}
	}
	return nil
}
