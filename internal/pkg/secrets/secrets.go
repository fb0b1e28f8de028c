// Package secrets resolves named credentials for the gateway.
//
// Route configurations only carry the *name* of the secret they need
// (authKeyEnvName); the value is looked up here at request time so that the
// set of places reading credentials stays small and can be faked in tests.
package secrets

import (
	"os"
	"strings"
)

// Resolver looks up a secret by name. An empty value is reported as absent.
type Resolver interface {
	Lookup(name string) (string, bool)
}

// EnvResolver reads secrets from the process environment.
type EnvResolver struct{}

// Lookup implements Resolver.
func (EnvResolver) Lookup(name string) (string, bool) {
	if strings.TrimSpace(name) == "" {
		return "", false
	}
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// MapResolver serves secrets from a fixed map.
type MapResolver map[string]string

// Lookup implements Resolver.
func (m MapResolver) Lookup(name string) (string, bool) {
	v, ok := m[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Chain tries each resolver in order and returns the first hit.
type Chain []Resolver

// Lookup implements Resolver.
func (c Chain) Lookup(name string) (string, bool) {
	for _, r := range c {
		if r == nil {
			continue
		}
		if v, ok := r.Lookup(name); ok {
			return v, true
		}
	}
	return "", false
}
