package observability

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
)

var (
	observers = map[string]Observer{
		"noop":      NoOpObserver{},
		"slog":      NewSlogObserver(slog.Default()),
		"slog-json": NewSlogObserver(slog.New(slog.NewJSONHandler(os.Stderr, nil))),
	}
	mutex sync.RWMutex
)

// GetObserver returns a registered observer by name.
// Pre-registered observers: "noop" (NoOpObserver), "slog" (default logger),
// and "slog-json" (JSON records on stderr).
func GetObserver(name string) (Observer, error) {
	mutex.RLock()
	defer mutex.RUnlock()

	obs, exists := observers[name]
	if !exists {
		return nil, fmt.Errorf("unknown observer: %s", name)
	}
	return obs, nil
}

// RegisterObserver adds or replaces a named observer in the global registry.
func RegisterObserver(name string, observer Observer) {
	mutex.Lock()
	defer mutex.Unlock()

	observers[name] = observer
}

// Observers returns the registered observer names in sorted order.
func Observers() []string {
	mutex.RLock()
	defer mutex.RUnlock()

	names := make([]string, 0, len(observers))
	for name := range observers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
