package schema

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	defaultsMu sync.RWMutex
	defaults   = map[string]DefaultFunc{
		"uuid": func() any { return uuid.New() },
		"now":  func() any { return time.Now().UTC().Truncate(time.Microsecond) },
	}
)

// RegisterDefault makes a named default provider available to `default=<name>` tags.
func RegisterDefault(name string, fn DefaultFunc) {
	defaultsMu.Lock()
	defer defaultsMu.Unlock()
	defaults[name] = fn
}

func lookupDefault(name string) (DefaultFunc, bool) {
	defaultsMu.RLock()
	defer defaultsMu.RUnlock()
	fn, ok := defaults[name]
	return fn, ok
}

// Literal returns a provider that always yields v.
func Literal(v any) DefaultFunc {
	return func() any { return v }
}
