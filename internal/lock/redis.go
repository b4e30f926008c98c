package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/hugohenrick/nfse-emissor/pkg/logger"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const (
	defaultTTL   = 30 * time.Second
	retryBackoff = 50 * time.Millisecond
	keyPrefix    = "nfse:lock:"
)

// RedisLocker é um lock distribuído via SET NX, para múltiplas instâncias da aplicação
type RedisLocker struct {
	client redis.Cmdable
	script *redis.Script
	ttl    time.Duration
	log    logger.Logger
}

// NewRedisLocker cria uma nova instância de RedisLocker
func NewRedisLocker(client redis.Cmdable, ttl time.Duration, log logger.Logger) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("cliente redis não configurado")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisLocker{
		client: client,
		script: redis.NewScript(releaseScript),
		ttl:    ttl,
		log:    log,
	}, nil
}

// TryLock tenta obter o lock uma única vez, retornando o token do dono
func (l *RedisLocker) TryLock(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("chave do lock vazia")
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, keyPrefix+key, token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("falha ao obter lock: %w", err)
	}
	return token, ok, nil
}

// Lock tenta obter o lock repetidamente até conseguir ou o contexto ser cancelado
func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	for {
		token, ok, err := l.TryLock(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				// O lock precisa ser liberado mesmo que o contexto da operação já tenha expirado
				if err := l.Release(context.WithoutCancel(ctx), key, token); err != nil {
					l.log.Warn("falha ao liberar lock", "key", key, "error", err)
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryBackoff):
		}
	}
}

// Release libera o lock somente se ainda pertencer ao token informado
func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{keyPrefix + key}, token).Err()
}
