// Package notification implementa el pipeline de alertas de stock bajo:
// encolado idempotente en el log de notificaciones, parsing defensivo de
// destinatarios y un worker de entrega con reintentos acotados coordinado
// entre réplicas mediante un advisory lock.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/kiosco-api/internal/domain/entity"
	"github.com/jhoicas/kiosco-api/internal/domain/repository"
	"github.com/jhoicas/kiosco-api/pkg/logger"
)

// Pipeline evalúa el estado de stock bajo después de cada mutación de
// inventario y mantiene el log de alertas: a lo sumo una alerta activa por
// producto y destinatario por quiebre.
type Pipeline struct {
	notifRepo  repository.NotificationLogRepository
	configRepo repository.ConfigRepository
	log        *logger.Logger
	now        func() time.Time
}

// NewPipeline construye el pipeline.
func NewPipeline(notifRepo repository.NotificationLogRepository, configRepo repository.ConfigRepository, log *logger.Logger) *Pipeline {
	return &Pipeline{notifRepo: notifRepo, configRepo: configRepo, log: log, now: time.Now}
}

// Evaluate procesa el snapshot de un producto tras una mutación. Stock bajo
// encola alertas (si no hay una activa); stock recuperado hace soft-resolve
// de las activas. Las fallas se loguean y no se propagan: este camino corre
// después del commit y nunca debe romper la operación que lo disparó.
func (p *Pipeline) Evaluate(ctx context.Context, snapshot *entity.Snapshot) {
	if snapshot == nil {
		return
	}
	if snapshot.LowStock {
		p.queueAlerts(ctx, snapshot)
		return
	}
	resolved, err := p.notifRepo.ResolveActive(ctx, snapshot.ProductID, p.now())
	if err != nil {
		p.log.Warn().Err(err).Str("product_id", snapshot.ProductID).Msg("soft-resolve de alertas falló")
		return
	}
	if resolved > 0 {
		p.log.Info().Str("product_id", snapshot.ProductID).Int64("resolved", resolved).
			Msg("stock recuperado: alertas resueltas")
	}
}

func (p *Pipeline) queueAlerts(ctx context.Context, snapshot *entity.Snapshot) {
	recipients, err := p.Recipients(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("lectura de destinatarios falló")
		return
	}
	if len(recipients) == 0 {
		return
	}
	now := p.now()
	for _, recipient := range recipients {
		// Chequeo de existencia dedicado antes del insert: a lo sumo una
		// alerta activa por producto+destinatario durante el quiebre.
		active, err := p.notifRepo.HasActiveAlert(ctx, snapshot.ProductID, recipient)
		if err != nil {
			p.log.Warn().Err(err).Str("recipient", recipient).Msg("chequeo de alerta activa falló")
			continue
		}
		if active {
			continue
		}
		alert := &entity.NotificationLog{
			Type:      entity.NotificationTypeLowStock,
			Recipient: recipient,
			Subject:   fmt.Sprintf("Stock bajo: producto %s", snapshot.ProductID),
			Payload: entity.NotificationPayload{
				ProductID:    snapshot.ProductID,
				CurrentStock: snapshot.CurrentStock,
				Threshold:    snapshot.LowStockThreshold,
				TriggeredAt:  now,
			},
			Status:    entity.NotificationStatusPending,
			CreatedAt: now,
		}
		if err := p.notifRepo.Create(ctx, alert); err != nil {
			p.log.Warn().Err(err).Str("recipient", recipient).Msg("encolado de alerta falló")
			continue
		}
		p.log.Info().Str("product_id", snapshot.ProductID).Str("recipient", recipient).
			Int64("current_stock", snapshot.CurrentStock).Msg("alerta de stock bajo encolada")
	}
}

// Recipients lee los destinatarios configurados: array JSON o string
// separado por comas. Entradas sin '@' se descartan en silencio (parsing
// defensivo, no validación con error).
func (p *Pipeline) Recipients(ctx context.Context) ([]string, error) {
	v, err := p.configRepo.Get(ctx, entity.ConfigKeyRecipients)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	var out []string
	for _, item := range v.AsStringList() {
		if strings.Contains(item, "@") {
			out = append(out, item)
		}
	}
	return out, nil
}
