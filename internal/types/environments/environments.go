package environments

import "strings"

type Environment string

const (
	Production  Environment = "production"
	Development Environment = "development"
	Staging     Environment = "staging"
	Test        Environment = "test"
)

// Parse maps APP_ENV values onto a known environment, defaulting to development.
func Parse(value string) Environment {
	switch env := Environment(strings.ToLower(strings.TrimSpace(value))); env {
	case Production, Staging, Test, Development:
		return env
	default:
		return Development
	}
}
