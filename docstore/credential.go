package docstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// DefaultKeyEnv is the environment variable consulted for an explicit
// account key.
const DefaultKeyEnv = "COSMOSDB_ACCOUNT_KEY"

// KeySource supplies an explicit account key. An empty key with a nil
// error means no explicit key is configured and the ambient identity
// should be used.
type KeySource interface {
	AccountKey() (string, error)
}

// EnvKey reads the key from the named environment variable.
type EnvKey string

// AccountKey implements KeySource.
func (e EnvKey) AccountKey() (string, error) {
	name := string(e)
	if name == "" {
		name = DefaultKeyEnv
	}
	return strings.TrimSpace(os.Getenv(name)), nil
}

// FileKey reads the key from a file, typically a mounted secret. A missing
// file means no key.
type FileKey string

// AccountKey implements KeySource.
func (f FileKey) AccountKey() (string, error) {
	if f == "" {
		return "", nil
	}
	data, err := os.ReadFile(string(f))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", &Error{Kind: KindAuthFailure, Op: OpResolve, Err: fmt.Errorf("read key file: %w", err)}
	}
	return strings.TrimSpace(string(data)), nil
}

// KeyChain returns the first non-empty key from its sources.
type KeyChain []KeySource

// AccountKey implements KeySource.
func (c KeyChain) AccountKey() (string, error) {
	for _, src := range c {
		if src == nil {
			continue
		}
		key, err := src.AccountKey()
		if err != nil {
			return "", err
		}
		if key != "" {
			return key, nil
		}
	}
	return "", nil
}
