package model

import "fmt"

// ParseError reports that one field of one record could not be canonicalized.
// It is never fatal: callers degrade the field to absent.
type ParseError struct {
	Field  string
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %s", e.Field, e.Input, e.Reason)
}

// ConfigError reports missing or invalid settings. It aborts before any
// records are processed.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// ExternalServiceError reports that the upstream store or a required
// collaborator failed. The whole batch fails when one is returned.
type ExternalServiceError struct {
	Service string
	Op      string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Service, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
