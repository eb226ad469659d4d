// Package configstore is the namespaced key/value surface through which one
// stack's provisioned identifiers (bucket name, domain) become discoverable
// by independently-deployed stacks. Entries are write-once: a second publish
// to the same key path is a configuration error, not an overwrite. The
// in-memory Store holds entries at definition time; Publisher flushes them
// to SSM Parameter Store and reads them back at release time.
package configstore

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Entry is a write-once, namespace-addressed configuration value.
type Entry struct {
	KeyPath string
	Value   string
}

// DuplicateKeyError reports a second publish to an already-published key path.
type DuplicateKeyError struct {
	KeyPath string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("config key path %q already published", e.KeyPath)
}

// Store accumulates published entries under a fixed namespace prefix, e.g.
// "/cra-serverless/prod".
type Store struct {
	namespace string
	values    map[string]string
}

// New returns an empty store rooted at the given namespace. The namespace
// must be a hierarchical path starting with "/".
func New(namespace string) (*Store, error) {
	if !strings.HasPrefix(namespace, "/") || strings.HasSuffix(namespace, "/") {
		return nil, fmt.Errorf("namespace %q must start with '/' and not end with one", namespace)
	}
	return &Store{namespace: namespace, values: map[string]string{}}, nil
}

// Namespace returns the store's namespace prefix.
func (s *Store) Namespace() string { return s.namespace }

// Publish records a value under the namespace. The key is relative to the
// namespace ("website/bucket-name"); publishing the same key twice returns
// DuplicateKeyError.
func (s *Store) Publish(key, value string) error {
	keyPath, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if _, ok := s.values[keyPath]; ok {
		return &DuplicateKeyError{KeyPath: keyPath}
	}
	s.values[keyPath] = value
	return nil
}

// Get returns the value published at the given relative key.
func (s *Store) Get(key string) (string, bool) {
	keyPath, err := s.keyPath(key)
	if err != nil {
		return "", false
	}
	v, ok := s.values[keyPath]
	return v, ok
}

// Entries returns all published entries with absolute key paths, sorted.
func (s *Store) Entries() []Entry {
	out := make([]Entry, 0, len(s.values))
	for _, keyPath := range slices.Sorted(maps.Keys(s.values)) {
		out = append(out, Entry{KeyPath: keyPath, Value: s.values[keyPath]})
	}
	return out
}

func (s *Store) keyPath(key string) (string, error) {
	key = strings.Trim(key, "/")
	if key == "" {
		return "", fmt.Errorf("config key must not be empty")
	}
	return s.namespace + "/" + key, nil
}
