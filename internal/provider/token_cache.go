package provider

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTokenTTL é usado quando o provedor não informa expires_in
	DefaultTokenTTL = 300 * time.Second
	maxSafetyMargin = 30 * time.Second
	// fetchTimeout limita a renovação compartilhada, que não segue o cancelamento de quem a iniciou
	fetchTimeout = 45 * time.Second
)

type cachedToken struct {
	value     string
	expiresAt time.Time
	margin    time.Duration
}

// TokenCache guarda o token de acesso de cada tenant até pouco antes de expirar.
// Renovações simultâneas do mesmo tenant são agrupadas em uma única chamada.
type TokenCache struct {
	mu      sync.RWMutex
	entries map[string]cachedToken
	group   singleflight.Group
	now     func() time.Time
	timeout time.Duration
}

// NewTokenCache cria uma nova instância de TokenCache
func NewTokenCache() *TokenCache {
	return &TokenCache{entries: make(map[string]cachedToken), now: time.Now, timeout: fetchTimeout}
}

// SafetyMargin retorna a antecedência com que um token deixa de ser reutilizado
func SafetyMargin(ttl time.Duration) time.Duration {
	if m := ttl / 10; m < maxSafetyMargin {
		return m
	}
	return maxSafetyMargin
}

// Get retorna o token do tenant se ainda estiver válido considerando a margem de segurança
func (c *TokenCache) Get(tenantID string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[tenantID]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !c.now().Add(entry.margin).Before(entry.expiresAt) {
		return "", false
	}
	return entry.value, true
}

// Set armazena o token do tenant. ttl <= 0 usa DefaultTokenTTL.
func (c *TokenCache) Set(tenantID, token string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	c.mu.Lock()
	c.entries[tenantID] = cachedToken{
		value:     token,
		expiresAt: c.now().Add(ttl),
		margin:    SafetyMargin(ttl),
	}
	c.mu.Unlock()
}

// Invalidate descarta o token do tenant (ex.: após um 401 do provedor)
func (c *TokenCache) Invalidate(tenantID string) {
	c.mu.Lock()
	delete(c.entries, tenantID)
	c.mu.Unlock()
}

// GetOrFetch retorna o token em cache ou obtém um novo com fetch.
// Cada chamador espera pelo próprio ctx; cancelar um deles não interrompe a
// renovação compartilhada com os demais.
func (c *TokenCache) GetOrFetch(ctx context.Context, tenantID string, fetch func(ctx context.Context) (*Token, error)) (string, error) {
	if token, ok := c.Get(tenantID); ok {
		return token, nil
	}

	ch := c.group.DoChan(tenantID, func() (interface{}, error) {
		if token, ok := c.Get(tenantID); ok {
			return token, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		tk, err := fetch(fetchCtx)
		if err != nil {
			return "", err
		}
		if tk == nil || tk.AccessToken == "" {
			return "", errors.New("provedor retornou token vazio")
		}
		c.Set(tenantID, tk.AccessToken, tk.ExpiresIn)
		return tk.AccessToken, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}
