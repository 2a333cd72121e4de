package storage

import (
	"fmt"
	"sort"

	"docvault/internal/config"
)

// Factory builds a driver from the application configuration.
type Factory func(cfg *config.AppConfig) (Driver, error)

// Registry maps driver names to factories. It is built at startup and passed to
// whoever needs to resolve a driver; there is no package level registry.
type Registry map[string]Factory

// DefaultRegistry returns the registry of the built-in drivers.
func DefaultRegistry() Registry {
	return Registry{
		"filesystem": func(cfg *config.AppConfig) (Driver, error) { return NewFilesystem(cfg.Storage.FilesystemRoot) },
		"minio":      func(cfg *config.AppConfig) (Driver, error) { return NewMinIO(cfg.MinIO) },
		"s3":         func(cfg *config.AppConfig) (Driver, error) { return NewS3(cfg.S3) },
		"memory":     func(cfg *config.AppConfig) (Driver, error) { return NewMemory(), nil },
	}
}

// New resolves and builds the driver registered under name.
func (r Registry) New(name string, cfg *config.AppConfig) (Driver, error) {
	factory, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("unknown storage driver %q (available: %v)", name, r.Names())
	}
	return factory(cfg)
}

// Names returns the registered driver names in lexical order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
