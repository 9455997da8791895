package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"
)

// refPattern matches ${secret:name}.
var refPattern = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// Resolver looks secrets up across providers and caches the values.
type Resolver struct {
	providers []Provider
	ttl       time.Duration
	now       func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewResolver creates a resolver. A zero ttl disables caching.
func NewResolver(ttl time.Duration, providers ...Provider) *Resolver {
	return &Resolver{
		providers: providers,
		ttl:       ttl,
		now:       time.Now,
		cache:     make(map[string]cacheEntry),
	}
}

// GetSecret returns the value from the first provider that has it.
func (r *Resolver) GetSecret(ctx context.Context, name string) (string, error) {
	if value, ok := r.cached(name); ok {
		return value, nil
	}

	var errs []error
	for _, p := range r.providers {
		value, err := p.GetSecret(ctx, name)
		if err == nil {
			r.store(name, value)
			slog.Debug("secret resolved", "provider", p.Name(), "name", redactName(name))
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	if len(errs) > 0 {
		return "", fmt.Errorf("failed to get secret %q: %w", name, errors.Join(errs...))
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, name)
}

// ResolveReferences replaces every ${secret:name} in input. Unresolved
// references are left in place and reported in the error.
func (r *Resolver) ResolveReferences(ctx context.Context, input string) (string, error) {
	var errs []error
	output := refPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := refPattern.FindStringSubmatch(match)[1]
		value, err := r.GetSecret(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return match
		}
		return value
	})
	return output, errors.Join(errs...)
}

// HasReferences reports whether input contains a secret reference.
func HasReferences(input string) bool {
	return refPattern.MatchString(input)
}

// Clear drops cached values.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.cache)
}

func (r *Resolver) cached(name string) (string, bool) {
	if r.ttl <= 0 {
		return "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.cache[name]
	if !ok || r.now().After(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

func (r *Resolver) store(name, value string) {
	if r.ttl <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[name] = cacheEntry{value: value, expiresAt: r.now().Add(r.ttl)}
}

// redactName keeps the first and last two characters for debugging.
func redactName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
