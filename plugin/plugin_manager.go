package plugin

import (
	"errors"
	"github.com/sirupsen/logrus"
	"sort"
	"strings"
	"sync"
)

// Manager defines the Plugin Manager holding the plugin id to Plugin table.
type Manager struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewManager initializes a new *Manager.
func NewManager() *Manager {
	return &Manager{
		plugins: make(map[string]Plugin),
	}
}

// Register plugs in a new Plugin. Ids are opaque and matched exactly. A
// plugin registered under an id that is already taken replaces the previous one.
func (m *Manager) Register(p Plugin) error {
	if p == nil {
		return errors.New("nil plugin")
	}

	id := p.ID()
	if len(strings.TrimSpace(id)) == 0 {
		return errors.New("plugin has an empty id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.plugins[id]; ok {
		logrus.Warnf("plugin %s (%s) replaced by %s", id, prev.Name(), p.Name())
	}
	m.plugins[id] = p
	return nil
}

// Remove unplugs a Plugin.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.plugins[id]; !ok {
		return false
	}
	delete(m.plugins, id)
	return true
}

// Count returns the number of registered plugins.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.plugins)
}

// Resolve retrieves the Plugin registered for id.
func (m *Manager) Resolve(id string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plugins[id]
	return p, ok
}

// List returns the registered plugins sorted by id.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ret := make([]Info, 0, len(m.plugins))
	for id, p := range m.plugins {
		ret = append(ret, Info{
			ID:          id,
			Name:        p.Name(),
			Description: p.Description(),
		})
	}

	sort.Slice(ret, func(i, j int) bool {
		return lessID(ret[i].ID, ret[j].ID)
	})
	return ret
}

// lessID orders numeric ids numerically and everything else lexically.
func lessID(a, b string) bool {
	if isDigits(a) && isDigits(b) {
		a, b = strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
		if len(a) != len(b) {
			return len(a) < len(b)
		}
	}
	return a < b
}

func isDigits(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
