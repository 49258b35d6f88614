// Package graphcache memoizes a farm's graph state for the duration of one
// logical operation. A Scope is never shared between operations.
package graphcache

import (
	"context"
	"sync"

	"github.com/agrisense/agrisense-backend/internal/engine"
)

type scopeKey struct{}

// Scope holds at most one graph state per farm.
type Scope struct {
	mu     sync.Mutex
	states map[string]engine.GraphState
	locks  map[string]*sync.Mutex
}

func NewScope() *Scope {
	return &Scope{
		states: map[string]engine.GraphState{},
		locks:  map[string]*sync.Mutex{},
	}
}

// WithScope returns ctx carrying a fresh, empty scope.
func WithScope(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey{}, NewScope())
}

// FromContext returns the scope attached to ctx. Without one it returns a
// throwaway scope, so every access rebuilds.
func FromContext(ctx context.Context) *Scope {
	if ctx != nil {
		if s, ok := ctx.Value(scopeKey{}).(*Scope); ok && s != nil {
			return s
		}
	}
	return NewScope()
}

// HasScope reports whether ctx already carries a scope.
func HasScope(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	_, ok := ctx.Value(scopeKey{}).(*Scope)
	return ok
}

func (s *Scope) farmLock(farmID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[farmID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[farmID] = l
	}
	return l
}

// Get returns the memoized state of farmID, calling load on first access.
// Concurrent first accesses for one farm run load once.
func (s *Scope) Get(ctx context.Context, farmID string, load func(context.Context) (engine.GraphState, error)) (engine.GraphState, error) {
	if st, ok := s.Snapshot(farmID); ok {
		return st, nil
	}
	l := s.farmLock(farmID)
	l.Lock()
	defer l.Unlock()
	if st, ok := s.Snapshot(farmID); ok {
		return st, nil
	}
	st, err := load(ctx)
	if err != nil {
		return engine.GraphState{}, err
	}
	s.Set(farmID, st)
	return st, nil
}

func (s *Scope) Set(farmID string, state engine.GraphState) {
	s.mu.Lock()
	s.states[farmID] = state
	s.mu.Unlock()
}

// Snapshot returns the current state of farmID. GraphState is immutable, so
// the returned value stays valid after later Set calls.
func (s *Scope) Snapshot(farmID string) (engine.GraphState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[farmID]
	return st, ok
}

// Restore puts back a value taken with Snapshot. When ok is false the farm
// had no state at snapshot time and its entry is dropped.
func (s *Scope) Restore(farmID string, state engine.GraphState, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		delete(s.states, farmID)
		return
	}
	s.states[farmID] = state
}

// Reset drops every memoized state.
func (s *Scope) Reset() {
	s.mu.Lock()
	s.states = map[string]engine.GraphState{}
	s.mu.Unlock()
}
