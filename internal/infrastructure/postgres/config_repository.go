package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/kiosco-api/internal/domain/entity"
	"github.com/jhoicas/kiosco-api/internal/domain/repository"
)

var _ repository.ConfigRepository = (*ConfigRepo)(nil)

// ConfigRepo implementación del almacén clave/valor de configuración sobre
// PostgreSQL (tabla app_config con columna JSONB).
type ConfigRepo struct {
	q Querier
}

// NewConfigRepository construye el adaptador. Pasar pool o tx (Querier).
func NewConfigRepository(q Querier) *ConfigRepo {
	return &ConfigRepo{q: q}
}

// Get obtiene el valor de una clave. Clave ausente devuelve (nil, nil); el
// JSON se decodifica una sola vez aquí a la unión etiquetada ConfigValue.
func (r *ConfigRepo) Get(ctx context.Context, key string) (*entity.ConfigValue, error) {
	query := `SELECT value FROM app_config WHERE key = $1`
	var raw []byte
	err := r.q.QueryRow(ctx, query, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get config %q: %w", key, err)
	}
	v := entity.DecodeConfigValue(raw)
	return &v, nil
}

// Set guarda (upsert) el valor de una clave, registrando el actor del cambio.
func (r *ConfigRepo) Set(ctx context.Context, key string, value entity.ConfigValue, actor string) error {
	raw, err := value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal config %q: %w", key, err)
	}
	query := `
		INSERT INTO app_config (key, value, updated_by, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = now()`
	if _, err := r.q.Exec(ctx, query, key, raw, nullIfEmpty(actor)); err != nil {
		return fmt.Errorf("set config %q: %w", key, err)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
