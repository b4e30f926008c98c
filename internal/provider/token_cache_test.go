package provider

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newCache(clock *fakeClock) *TokenCache {
	c := NewTokenCache()
	c.now = clock.Now
	return c
}

func TestSafetyMargin(t *testing.T) {
	assert.Equal(t, 30*time.Second, SafetyMargin(300*time.Second))
	assert.Equal(t, 30*time.Second, SafetyMargin(time.Hour))
	assert.Equal(t, 6*time.Second, SafetyMargin(60*time.Second))
}

func TestTokenCache_ExpiresBeforeDeadline(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := newCache(clock)

	c.Set("t1", "abc", 0)
	tk, ok := c.Get("t1")
	require.True(t, ok)
	assert.Equal(t, "abc", tk)

	clock.Advance(269 * time.Second)
	_, ok = c.Get("t1")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("t1")
	assert.False(t, ok, "token não deve ser reutilizado dentro da margem de segurança")
}

func TestTokenCache_Invalidate(t *testing.T) {
	c := NewTokenCache()
	c.Set("t1", "abc", time.Hour)
	c.Invalidate("t1")
	_, ok := c.Get("t1")
	assert.False(t, ok)
}

func TestTokenCache_GetOrFetchCollapsesConcurrentRefreshes(t *testing.T) {
	c := NewTokenCache()

	var calls int32
	release := make(chan struct{})
	fetch := func(context.Context) (*Token, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &Token{AccessToken: "novo", ExpiresIn: time.Minute}, nil
	}

	const workers = 20
	var wg sync.WaitGroup
	results := make([]string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tk, err := c.GetOrFetch(context.Background(), "t1", fetch)
			assert.NoError(t, err)
			results[i] = tk
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, "novo", r)
	}

	_, err := c.GetOrFetch(context.Background(), "t1", func(context.Context) (*Token, error) {
		t.Fatal("não deveria buscar novamente")
		return nil, nil
	})
	require.NoError(t, err)
}

func TestTokenCache_GetOrFetchErrorIsNotCached(t *testing.T) {
	c := NewTokenCache()

	_, err := c.GetOrFetch(context.Background(), "t1", func(context.Context) (*Token, error) {
		return nil, errors.New("endpoint indisponível")
	})
	require.Error(t, err)

	tk, err := c.GetOrFetch(context.Background(), "t1", func(context.Context) (*Token, error) {
		return &Token{AccessToken: "ok"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", tk)

	_, err = NewTokenCache().GetOrFetch(context.Background(), "t2", func(context.Context) (*Token, error) {
		return &Token{}, nil
	})
	assert.Error(t, err)
}

func TestTokenCache_GetOrFetchSurvivesFirstCallerCancel(t *testing.T) {
	c := NewTokenCache()

	started := make(chan struct{})
	release := make(chan struct{})
	var fetchErr atomic.Value
	fetch := func(ctx context.Context) (*Token, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			fetchErr.Store(err)
			return nil, err
		}
		return &Token{AccessToken: "compartilhado", ExpiresIn: time.Minute}, nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := c.GetOrFetch(firstCtx, "t1", fetch)
		firstDone <- err
	}()
	<-started

	secondDone := make(chan string, 1)
	go func() {
		tk, err := c.GetOrFetch(context.Background(), "t1", fetch)
		assert.NoError(t, err)
		secondDone <- tk
	}()

	cancelFirst()
	assert.ErrorIs(t, <-firstDone, context.Canceled)

	time.Sleep(20 * time.Millisecond)
	close(release)

	assert.Equal(t, "compartilhado", <-secondDone)
	assert.Nil(t, fetchErr.Load())

	tk, ok := c.Get("t1")
	assert.True(t, ok)
	assert.Equal(t, "compartilhado", tk)
}
