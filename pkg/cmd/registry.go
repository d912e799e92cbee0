package cmd

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// DefaultRegistry is the registry the Discord adapter serves from.
var DefaultRegistry = NewRegistry()

// Registry stores commands by name. Lookup is case-insensitive. It is safe
// for concurrent use, since the bot registers commands from its ready
// handler while interactions may already be arriving.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds c, replacing an earlier command of the same name.
func (r *Registry) Register(c Command) error {
	name := strings.ToLower(c.Name())
	if name == "" {
		return fmt.Errorf("register command: empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[name] = c
	return nil
}

func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[strings.ToLower(name)]
	return c, ok
}

// GetAll returns every command sorted by name.
func (r *Registry) GetAll() []Command {
	r.mu.RLock()
	list := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		list = append(list, c)
	}
	r.mu.RUnlock()

	slices.SortFunc(list, func(a, b Command) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return list
}
