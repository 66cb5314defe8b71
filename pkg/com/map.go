package com

import (
	"errors"
	"sync"
)

// Map defines a concurrent-safe map structure.
// Keys are never overwritten in place, new values get in
// only through Put or the atomic GetOrCreate.
type Map[K comparable, V any] struct {
	m  map[K]V
	mu sync.RWMutex
}

var ErrNotFound = errors.New("not found")

func NewMap[K comparable, V any]() *Map[K, V] { return &Map[K, V]{m: make(map[K]V, 10)} }

func (m *Map[K, _]) Has(key K) bool { _, err := m.Find(key); return err == nil }
func (m *Map[_, _]) IsEmpty() bool  { return m.Len() == 0 }
func (m *Map[_, _]) Len() int       { m.mu.RLock(); defer m.mu.RUnlock(); return len(m.m) }
func (m *Map[K, V]) Put(key K, v V) { m.mu.Lock(); m.lazy(); m.m[key] = v; m.mu.Unlock() }
func (m *Map[K, _]) Remove(key K)   { m.mu.Lock(); delete(m.m, key); m.mu.Unlock() }

func (m *Map[K, V]) lazy() {
	if m.m == nil {
		m.m = make(map[K]V, 10)
	}
}

// Find returns a value by its key, ErrNotFound otherwise.
func (m *Map[K, V]) Find(key K) (v V, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.m[key]; ok {
		return c, nil
	}
	return v, ErrNotFound
}

// GetOrCreate returns the value stored under the key or
// stores and returns the result of the create func.
// The create func is called at most once per missing key and
// under the write lock, so concurrent callers always share
// the same value. The second result tells whether the value
// was created by this call.
func (m *Map[K, V]) GetOrCreate(key K, create func() (V, error)) (V, bool, error) {
	m.mu.RLock()
	v, ok := m.m[key]
	m.mu.RUnlock()
	if ok {
		return v, false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok = m.m[key]; ok {
		return v, false, nil
	}
	v, err := create()
	if err != nil {
		var empty V
		return empty, false, err
	}
	m.lazy()
	m.m[key] = v
	return v, true, nil
}

// Pop removes and returns the value, ok is false when there was none.
func (m *Map[K, V]) Pop(key K) (v V, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok = m.m[key]; ok {
		delete(m.m, key)
	}
	return
}

// FindBy searches the first value with the provided predicate function.
func (m *Map[K, V]) FindBy(fn func(v V) bool) (v V, err error) {
	for _, x := range m.Values() {
		if fn(x) {
			return x, nil
		}
	}
	return v, ErrNotFound
}

// Values returns a copy of all stored values.
func (m *Map[_, V]) Values() []V {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vv := make([]V, 0, len(m.m))
	for _, v := range m.m {
		vv = append(vv, v)
	}
	return vv
}

// ForEach processes every element with the provided callback function.
// The callback runs outside of the lock, so it may safely
// call back into the map.
func (m *Map[K, V]) ForEach(fn func(v V)) {
	for _, v := range m.Values() {
		fn(v)
	}
}

// Drain removes every element and returns them.
func (m *Map[K, V]) Drain() map[K]V {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.m
	m.m = make(map[K]V, 10)
	return old
}
