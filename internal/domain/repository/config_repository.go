package repository

import (
	"context"

	"github.com/jhoicas/kiosco-api/internal/domain/entity"
)

// ConfigRepository define el puerto del almacén clave/valor de configuración
// (toggles, destinatarios, horarios, mantenimiento). Claves ausentes
// devuelven (nil, nil); valores no parseables se degradan a string plano.
type ConfigRepository interface {
	Get(ctx context.Context, key string) (*entity.ConfigValue, error)
	Set(ctx context.Context, key string, value entity.ConfigValue, actor string) error
}
