// Package lock serializa operações por chave (ex.: alocação de número por tenant).
package lock

import (
	"context"
	"sync"
)

// Unlock libera um lock obtido por Locker.Lock
type Unlock func()

// Locker obtém locks exclusivos por chave, respeitando o cancelamento do contexto
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// MemoryLocker é um mutex por chave válido dentro de um único processo
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewMemoryLocker cria uma nova instância de MemoryLocker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]*slot)}
}

// Lock bloqueia até obter a chave ou o contexto ser cancelado
func (l *MemoryLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, s, true) })
	}, nil
}

func (l *MemoryLocker) release(key string, s *slot, held bool) {
	if held {
		<-s.ch
	}
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}
