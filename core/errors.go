package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeInvalidGeometry = "INVALID_GEOMETRY"
	ErrCodeInvalidParams   = "INVALID_PARAMS"
	ErrCodeUnknownBackend  = "UNKNOWN_BACKEND"
	ErrCodeMissingAuth     = "MISSING_AUTH"
	ErrCodeMissingConfig   = "MISSING_CONFIG"
	ErrCodePromptFile      = "PROMPT_FILE"
)

// ErrInvalidGeometry returns an error for tile sizes that cannot form a 2x2 overlapping layout.
func ErrInvalidGeometry(targetSize, tileSize int, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidGeometry,
		Message: fmt.Sprintf("Invalid tiling geometry (target=%d, tile=%d): %s", targetSize, tileSize, reason),
		Action:  "Set SR_TARGET_SIZE and SR_TILE_SIZE so that TILE < TARGET < 2*TILE",
	}
}

// ErrInvalidParams returns an error for refinement parameters out of range.
func ErrInvalidParams(name string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidParams,
		Message: fmt.Sprintf("Invalid refinement parameter %s: %s", name, reason),
		Action:  fmt.Sprintf("Adjust %s in your .env file", name),
	}
}

// ErrUnknownBackend returns an error for an unsupported refiner backend name.
func ErrUnknownBackend(name string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeUnknownBackend,
		Message: fmt.Sprintf("Unknown refiner backend: %q", name),
		Action:  "Set SR_BACKEND to one of: identity, local, openai",
	}
}

// ErrMissingAuth returns an error for missing authentication credentials
func ErrMissingAuth(service string) *ConfigError {
	var action string
	switch service {
	case "openai":
		action = "Set OPENAI_API_KEY in your .env file (or use SR_BACKEND=local)"
	default:
		action = fmt.Sprintf("Set the required API key for %s in your .env file", service)
	}
	return &ConfigError{
		Code:    ErrCodeMissingAuth,
		Message: fmt.Sprintf("Missing authentication credentials for %s", service),
		Action:  action,
	}
}

// ErrMissingConfig returns an error for missing required configuration
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your .env file", varName),
	}
}

// ErrPromptFile returns an error for an unreadable or malformed prompt file.
func ErrPromptFile(path string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodePromptFile,
		Message: fmt.Sprintf("Cannot load prompt file %s: %s", path, reason),
		Action:  "Fix the YAML file or unset SR_PROMPT_FILE to use the built-in prompts",
	}
}

// IsConfigError checks if an error is (or wraps) a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
