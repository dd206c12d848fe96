package content

import "fmt"

// ConfigurationError reports malformed or missing reference data
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("content configuration error in %s: %s", e.Field, e.Message)
}
