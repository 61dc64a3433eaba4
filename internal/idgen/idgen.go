// Package idgen issues short, URL-safe ids for construction runs and
// service requests, backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Kind prefixes. A run id names one construction stream from open to
// termination; a request id names one mutating service call in the audit log.
const (
	RunPrefix     = "run-"
	RequestPrefix = "req-"
)

// Alphabet is the character set of the random part.
var Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of random characters (excluding the prefix).
var Length = 12

// Run returns a new construction run id.
func Run() (string, error) {
	return WithPrefix(RunPrefix)
}

// Request returns a new request id.
func Request() (string, error) {
	return WithPrefix(RequestPrefix)
}

// WithPrefix returns a new unique id with the given prefix.
func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
