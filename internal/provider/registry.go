package provider

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// Factory creates a provider instance from opaque config (provider-specific).
type Factory func(any) (Provider, error)

var registry = map[string]Factory{}

// ErrNotFound is returned by New for an unregistered provider name.
var ErrNotFound = errors.New("provider not found")

// Register binds a provider name to its factory.
func Register(name string, f Factory) {
	registry[strings.ToLower(name)] = f
}

// New returns a provider instance by name. An empty name or "none" means
// no offsite copy and returns a nil Provider.
func New(name string, cfg any) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "none" {
		return nil, nil
	}
	f, ok := registry[name]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%s (registered: %s)", name, strings.Join(Names(), ", "))
	}
	return f(cfg)
}

// Names lists registered providers, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
