package game

import (
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
)

var (
	mu       sync.RWMutex
	adapters = map[string]GameAdapter{}
)

func Register(adapter GameAdapter) {
	mu.Lock()
	defer mu.Unlock()
	adapters[adapter.Game()] = adapter
}

func Get(game string) GameAdapter {
	mu.RLock()
	defer mu.RUnlock()
	return adapters[game]
}

// Lookup is Get with an error naming the known games.
func Lookup(game string) (GameAdapter, error) {
	if a := Get(game); a != nil {
		return a, nil
	}
	return nil, fmt.Errorf("unknown game %q (known: %v)", game, Names())
}

func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := lo.Keys(adapters)
	slices.Sort(names)
	return names
}
