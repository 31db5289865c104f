package config

import "fmt"

// ConfigurationError reports a fatal problem with the startup configuration
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError wraps err into a ConfigurationError
func NewConfigurationError(format string, args ...interface{}) error {
	return &ConfigurationError{Err: fmt.Errorf(format, args...)}
}
