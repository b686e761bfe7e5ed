package postgres

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/kiosco-api/internal/domain"
)

// AdvisoryLock es un lock consultivo de PostgreSQL con nombre, visible entre
// réplicas del servicio. Los advisory locks son de sesión, así que el lock
// fija una conexión del pool mientras lo sostiene; Release la devuelve.
type AdvisoryLock struct {
	pool *pgxpool.Pool
	key  int64

	mu   sync.Mutex
	conn *pgxpool.Conn
}

// NewAdvisoryLock construye el lock para un nombre lógico. El nombre se
// hashea a la clave bigint que exige pg_try_advisory_lock.
func NewAdvisoryLock(pool *pgxpool.Pool, name string) *AdvisoryLock {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return &AdvisoryLock{pool: pool, key: int64(h.Sum64())}
}

// TryAcquire intenta tomar el lock sin bloquear. Devuelve false si otra
// réplica lo sostiene; el caller debe reintentar en su timer, no esperar.
func (l *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return true, nil
	}
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire conn for advisory lock: %w", err)
	}
	var got bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&got); err != nil {
		conn.Release()
		return false, fmt.Errorf("pg_try_advisory_lock: %w", err)
	}
	if !got {
		conn.Release()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Held indica si esta instancia sostiene el lock.
func (l *AdvisoryLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

// Release suelta el lock y devuelve la conexión al pool. Idempotente; debe
// llamarse en el apagado ordenado de la réplica que lo sostiene.
func (l *AdvisoryLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	var released bool
	err := l.conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, l.key).Scan(&released)
	l.conn.Release()
	l.conn = nil
	if err != nil {
		return fmt.Errorf("pg_advisory_unlock: %w", err)
	}
	if !released {
		return fmt.Errorf("%w: advisory lock %d no era de esta sesión", domain.ErrLockNotHeld, l.key)
	}
	return nil
}
