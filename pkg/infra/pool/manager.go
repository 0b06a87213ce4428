package pool

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// Manager owns a set of named pools.
type Manager struct {
	mu    sync.RWMutex
	pools map[string]*Pool
}

// NewManager 创建池管理器
func NewManager() *Manager {
	return &Manager{pools: make(map[string]*Pool)}
}

// Register 创建并注册一个命名池
func (m *Manager) Register(name string, typ Type, config *Config) (*Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pools[name]; ok {
		return nil, ErrPoolAlreadyExists
	}
	p, err := NewPool(name, typ, config)
	if err != nil {
		return nil, err
	}
	m.pools[name] = p
	return p, nil
}

// Get 按名称获取池
func (m *Manager) Get(name string) (*Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pools[name]
	if !ok {
		return nil, ErrPoolNotFound
	}
	return p, nil
}

// List 返回已注册的池名称（有序）
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.pools))
	for name := range m.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats 返回所有池的统计信息
func (m *Manager) Stats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Stats, len(m.pools))
	for name, p := range m.pools {
		out[name] = p.Stats()
	}
	return out
}

// ReleaseAll 关闭所有池，每个池最多等待 timeout
func (m *Manager) ReleaseAll(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, p := range m.pools {
		if err := p.Release(timeout); err != nil {
			errs = append(errs, err)
		}
		delete(m.pools, name)
	}
	return errors.Join(errs...)
}
