package omnifile

import (
	"fmt"
	"sort"
	"sync"
)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]BackendFactory)
)

// BackendFactory creates a Backend from a string configuration map,
// as produced by command-line "key=value" flags.
type BackendFactory func(config map[string]string) (Backend, error)

// Register registers a backend factory under the given name.
// Backend packages call it from init(), so a blank import makes
// the backend available to Open.
//
// Register panics if factory is nil or name is already registered.
func Register(name string, factory BackendFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()

	if factory == nil {
		panic("omnifile: Register factory is nil")
	}
	if _, dup := backends[name]; dup {
		panic("omnifile: Register called twice for backend " + name)
	}
	backends[name] = factory
}

// Open opens a backend by name with the given configuration.
//
// Open returns ErrUnknownBackend if no backend with the given name is registered.
//
//	backend, err := omnifile.Open("s3", map[string]string{
//	    "bucket": "reads",
//	    "region": "us-west-2",
//	})
func Open(name string, config map[string]string) (Backend, error) {
	backendsMu.RLock()
	factory, ok := backends[name]
	backendsMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s (registered: %v)", ErrUnknownBackend, name, Backends())
	}
	if config == nil {
		config = map[string]string{}
	}
	return factory(config)
}

// Backends returns a sorted list of registered backend names.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered returns true if a backend with the given name is registered.
func IsRegistered(name string) bool {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Unregister removes a registered backend. Used by tests.
func Unregister(name string) bool {
	backendsMu.Lock()
	defer backendsMu.Unlock()

	if _, ok := backends[name]; ok {
		delete(backends, name)
		return true
	}
	return false
}
