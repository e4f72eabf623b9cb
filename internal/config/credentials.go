package config

import "os"

// Credentials resolves the secret stored under a named variable.
type Credentials interface {
	Lookup(name string) (string, bool)
}

// EnvCredentials reads credentials from the process environment. Empty
// values count as missing.
type EnvCredentials struct{}

// Lookup implements Credentials.
func (EnvCredentials) Lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	return v, ok && v != ""
}

// StaticCredentials is a fixed set of credentials.
type StaticCredentials map[string]string

// Lookup implements Credentials.
func (s StaticCredentials) Lookup(name string) (string, bool) {
	v, ok := s[name]
	return v, ok && v != ""
}
