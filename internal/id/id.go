// Package id generates prefixed identifiers for sessions and stream clients.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for the identifiers the server hands out.
const (
	PrefixSession = "spot"
	PrefixClient  = "sse"
)

// Generate creates a prefixed unique ID using NanoID, e.g. "spot-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// Session returns a new session identifier.
func Session() (string, error) {
	return Generate(PrefixSession)
}
