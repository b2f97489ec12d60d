// Package logging builds the process-wide zap logger.
package logging

import (
	"strings"

	"go.uber.org/zap"
)

// New returns a logger tuned for the given environment. Anything other
// than "production" gets the human-readable development encoder.
func New(env string) (*zap.Logger, error) {
	if strings.EqualFold(strings.TrimSpace(env), "production") {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// NewNop returns a no-op logger for tests and optional dependencies.
func NewNop() *zap.Logger {
	return zap.NewNop()
}
